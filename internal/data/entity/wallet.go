package entity

import (
	"github.com/google/uuid"
)

type WalletTxType string

const (
	WalletCredit WalletTxType = "credit"
	WalletDebit  WalletTxType = "debit"
)

// WalletTransaction is one ledger entry. (ReferenceID, Type) is unique, which
// makes a repeated credit or debit for the same reference a no-op.
type WalletTransaction struct {
	BaseSimple
	UserID      uuid.UUID    `db:"user_id"`
	Type        WalletTxType `db:"type"`
	Amount      float64      `db:"amount"`
	Description string       `db:"description"`
	ReferenceID uuid.UUID    `db:"reference_id"`
}
