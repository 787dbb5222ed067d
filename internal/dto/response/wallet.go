package response

import (
	"time"

	"clinic-booking/internal/data/entity"
)

type WalletBalanceResponse struct {
	UserID  string  `json:"user_id"`
	Balance float64 `json:"balance"`
}

type WalletTransactionResponse struct {
	ID          string              `json:"id"`
	Type        entity.WalletTxType `json:"type"`
	Amount      float64             `json:"amount"`
	Description string              `json:"description"`
	ReferenceID string              `json:"reference_id"`
	CreatedAt   time.Time           `json:"created_at"`
}

func WalletTxToResponse(tx *entity.WalletTransaction) WalletTransactionResponse {
	return WalletTransactionResponse{
		ID:          tx.ID.String(),
		Type:        tx.Type,
		Amount:      tx.Amount,
		Description: tx.Description,
		ReferenceID: tx.ReferenceID.String(),
		CreatedAt:   tx.CreatedAt,
	}
}
