package domain

import "errors"

// Ledger errors. Each one is caller-correctable and leaves no partial state.
var (
	ErrInvalidAmount             = errors.New("amount must be positive")
	ErrSenderNotFound            = errors.New("sender wallet not found")
	ErrRecipientNotFound         = errors.New("recipient not found")
	ErrSelfTransfer              = errors.New("cannot transfer to your own wallet")
	ErrInsufficientBalance       = errors.New("insufficient balance")
	ErrWalletAllocationExhausted = errors.New("failed to generate unique wallet number")
	ErrDuplicateReference        = errors.New("duplicate transaction reference")
	ErrUnknownReference          = errors.New("transaction not found")
)

var (
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrAmountMismatch is returned when a provider-confirmed amount differs
	// from the amount recorded on the pending deposit.
	ErrAmountMismatch = errors.New("confirmed amount does not match deposit")

	// ErrMissingDestination marks a ledger entry without a target wallet.
	ErrMissingDestination = errors.New("transaction missing target wallet")

	// ErrBalanceOverflow is returned when a credit would exceed the largest
	// representable balance.
	ErrBalanceOverflow = errors.New("balance limit exceeded")

	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidSignature   = errors.New("invalid signature")
)

// API key errors.
var (
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrAPIKeyRevoked      = errors.New("API key revoked")
	ErrAPIKeyExpired      = errors.New("API key expired")
	ErrAPIKeyNotFound     = errors.New("key not found")
	ErrAPIKeyNotExpired   = errors.New("key not expired")
	ErrAPIKeyLimitReached = errors.New("maximum number of active API keys reached")
	ErrInvalidPermission  = errors.New("invalid permission")
	ErrInvalidExpiry      = errors.New("invalid expiry format, use 1H, 1D, 1M or 1Y")
	ErrForbidden          = errors.New("forbidden")
)
