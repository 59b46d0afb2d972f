package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/congo-pay/paywallet/internal/domain"
	"github.com/congo-pay/paywallet/internal/store"
)

const (
	// DefaultPageSize is used when a history request carries no limit.
	DefaultPageSize = 20
	// MaxPageSize caps a single history page.
	MaxPageSize = 100
)

// Ledger is the append-mostly log of transfers and deposits. It is the only
// authority on whether an event has already been applied.
type Ledger struct {
	store  store.Store
	logger *slog.Logger
}

// New constructs a ledger over the shared store.
func New(st store.Store, logger *slog.Logger) *Ledger {
	return &Ledger{store: st, logger: logger}
}

// Append inserts a new entry inside the caller's unit of work. A reference
// that already exists fails with domain.ErrDuplicateReference.
func (l *Ledger) Append(ctx context.Context, tx store.Tx, entry domain.Transaction) (domain.Transaction, error) {
	if err := validate(entry); err != nil {
		return domain.Transaction{}, err
	}
	return tx.InsertTransaction(ctx, entry)
}

// Record appends entry in its own unit of work.
func (l *Ledger) Record(ctx context.Context, entry domain.Transaction) (domain.Transaction, error) {
	var recorded domain.Transaction
	err := l.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		recorded, err = l.Append(ctx, tx, entry)
		return err
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	l.logger.Info("ledger entry recorded",
		slog.String("reference", recorded.Reference),
		slog.String("type", string(recorded.Type)),
		slog.String("status", string(recorded.Status)),
		slog.Int64("amount", recorded.Amount),
	)
	return recorded, nil
}

// FindByReference looks an entry up inside the caller's unit of work. With
// forUpdate the row stays exclusively locked until the unit of work ends.
func (l *Ledger) FindByReference(ctx context.Context, tx store.Tx, reference string, forUpdate bool) (domain.Transaction, error) {
	var (
		txn domain.Transaction
		err error
	)
	if forUpdate {
		txn, err = tx.LockTransaction(ctx, reference)
	} else {
		txn, err = tx.TransactionByReference(ctx, reference)
	}
	if errors.Is(err, store.ErrNotFound) {
		return domain.Transaction{}, domain.ErrUnknownReference
	}
	return txn, err
}

// MarkSuccess moves a pending entry to success. It reports false, without
// error, when the entry was already successful.
func (l *Ledger) MarkSuccess(ctx context.Context, tx store.Tx, reference string) (bool, error) {
	changed, err := tx.UpdateTransactionStatus(ctx, reference, domain.StatusPending, domain.StatusSuccess)
	if err != nil {
		return false, err
	}
	if changed {
		return true, nil
	}

	current, err := l.FindByReference(ctx, tx, reference, false)
	if err != nil {
		return false, err
	}
	if current.Status == domain.StatusSuccess {
		return false, nil
	}
	return false, fmt.Errorf("%w: unexpected status %q", domain.ErrInvalidTransaction, current.Status)
}

// Get returns the entry for reference outside any unit of work.
func (l *Ledger) Get(ctx context.Context, reference string) (domain.Transaction, error) {
	txn, err := l.store.TransactionByReference(ctx, reference)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Transaction{}, domain.ErrUnknownReference
	}
	return txn, err
}

// History lists the user's sent and received entries, newest first.
func (l *Ledger) History(ctx context.Context, userID string, page, limit int) ([]domain.Transaction, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	numbers, err := l.store.WalletNumbersForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return l.store.TransactionsForUser(ctx, userID, numbers, limit, (page-1)*limit)
}

func validate(entry domain.Transaction) error {
	switch {
	case entry.Reference == "":
		return fmt.Errorf("%w: reference is required", domain.ErrInvalidTransaction)
	case !entry.Type.Valid():
		return fmt.Errorf("%w: unknown type %q", domain.ErrInvalidTransaction, entry.Type)
	case !entry.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTransaction, entry.Status)
	case entry.Amount <= 0:
		return domain.ErrInvalidAmount
	case entry.ToWalletNumber == "":
		return domain.ErrMissingDestination
	case entry.Type == domain.TransactionTransfer && entry.FromUserID == "":
		return fmt.Errorf("%w: transfer requires a sender", domain.ErrInvalidTransaction)
	case entry.Type == domain.TransactionDeposit && entry.FromUserID != "":
		return fmt.Errorf("%w: deposit has no sender", domain.ErrInvalidTransaction)
	}
	return nil
}
