package domain

import "time"

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionDeposit  TransactionType = "deposit"
	TransactionTransfer TransactionType = "transfer"
)

// TransactionStatus is the lifecycle state of a ledger entry. A pending entry
// moves to success exactly once and never back.
type TransactionStatus string

const (
	StatusPending TransactionStatus = "pending"
	StatusSuccess TransactionStatus = "success"
)

// Transaction is one balance-affecting event keyed by its reference.
type Transaction struct {
	ID             int64
	Reference      string
	Type           TransactionType
	Amount         int64
	Status         TransactionStatus
	FromUserID     string // empty for deposits
	ToWalletNumber string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TransactionDeposit || t == TransactionTransfer
}

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	return s == StatusPending || s == StatusSuccess
}
