package domain

import "time"

// WalletNumberLength is the fixed width of a wallet number.
const WalletNumberLength = 13

// Wallet is the single stored-value account owned by a user.
type Wallet struct {
	ID           int64
	UserID       string
	WalletNumber string
	Balance      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
