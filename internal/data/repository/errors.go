package repository

import "errors"

var (
	// ErrStaleState is returned when a conditional update matched no row
	// because the record was no longer in the expected state.
	ErrStaleState = errors.New("record changed concurrently")
	// ErrDuplicate is returned when an insert hits a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrInsufficientFunds is returned when a wallet debit exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
)
