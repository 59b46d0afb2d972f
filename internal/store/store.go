package store

import (
	"context"
	"errors"

	"github.com/congo-pay/paywallet/internal/domain"
)

var (
	// ErrNotFound is returned by point lookups that match no row.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateUserWallet means another wallet already exists for the user.
	ErrDuplicateUserWallet = errors.New("wallet already exists for user")

	// ErrDuplicateWalletNumber means the drawn wallet number is already taken.
	ErrDuplicateWalletNumber = errors.New("wallet number already taken")

	// ErrLockTimeout is returned when a row lock could not be acquired in time.
	ErrLockTimeout = errors.New("lock wait timeout")

	// ErrDeadlock is returned when the database aborted the unit of work to
	// break a lock cycle.
	ErrDeadlock = errors.New("deadlock detected")

	// ErrSerialization is returned for serialization failures.
	ErrSerialization = errors.New("serialization failure")
)

// IsTransient reports whether err is an infrastructure failure the caller may
// retry with the same reference.
func IsTransient(err error) bool {
	return errors.Is(err, ErrLockTimeout) ||
		errors.Is(err, ErrDeadlock) ||
		errors.Is(err, ErrSerialization) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Reader exposes non-locking point reads.
type Reader interface {
	WalletByUserID(ctx context.Context, userID string) (domain.Wallet, error)
	WalletByNumber(ctx context.Context, walletNumber string) (domain.Wallet, error)
	WalletNumbersForUser(ctx context.Context, userID string) ([]string, error)
	TransactionByReference(ctx context.Context, reference string) (domain.Transaction, error)
	// TransactionsForUser lists entries sent by userID or received by one of
	// walletNumbers, newest first.
	TransactionsForUser(ctx context.Context, userID string, walletNumbers []string, limit, offset int) ([]domain.Transaction, error)
}

// Tx is a single unit of work. Locks taken through it are held until the
// unit of work commits or rolls back.
type Tx interface {
	Reader

	// LockWallet acquires an exclusive lock on the wallet row and returns its
	// current state.
	LockWallet(ctx context.Context, id int64) (domain.Wallet, error)

	// AddBalance applies delta to the wallet balance and returns the new
	// balance. The caller must hold the wallet lock.
	AddBalance(ctx context.Context, id int64, delta int64) (int64, error)

	// InsertTransaction appends a ledger entry. It fails with
	// domain.ErrDuplicateReference when the reference exists.
	InsertTransaction(ctx context.Context, txn domain.Transaction) (domain.Transaction, error)

	// LockTransaction acquires an exclusive lock on the ledger entry.
	LockTransaction(ctx context.Context, reference string) (domain.Transaction, error)

	// UpdateTransactionStatus moves the entry from one status to another and
	// reports whether a row changed.
	UpdateTransactionStatus(ctx context.Context, reference string, from, to domain.TransactionStatus) (bool, error)
}

// Store is the shared transactional store handle passed to every component.
type Store interface {
	Reader

	// WithinTx runs fn as one atomic unit of work. Any error returned by fn,
	// or cancellation of ctx, rolls back every effect.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// CreateWallet inserts a wallet row. Uniqueness violations surface as
	// ErrDuplicateUserWallet or ErrDuplicateWalletNumber.
	CreateWallet(ctx context.Context, wallet domain.Wallet) (domain.Wallet, error)
}
