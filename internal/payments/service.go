package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/congo-pay/paywallet/internal/domain"
	"github.com/congo-pay/paywallet/internal/ledger"
	"github.com/congo-pay/paywallet/internal/notification"
	"github.com/congo-pay/paywallet/internal/store"
)

// Service moves funds between two wallets as one unit of work.
type Service struct {
	store    store.Store
	ledger   *ledger.Ledger
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService constructs a transfer service.
func NewService(st store.Store, l *ledger.Ledger, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{store: st, ledger: l, notifier: notifier, logger: logger}
}

// TransferInput captures the data needed to move funds between wallets.
type TransferInput struct {
	SenderUserID          string
	RecipientWalletNumber string
	Amount                int64
}

// TransferResult describes a committed transfer.
type TransferResult struct {
	Reference     string
	SenderBalance int64
	CompletedAt   time.Time
}

// Transfer debits the sender, credits the recipient and records a successful
// transfer entry. Either all three effects commit or none do.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	if input.Amount <= 0 {
		return TransferResult{}, domain.ErrInvalidAmount
	}

	var (
		result    TransferResult
		recipient domain.Wallet
	)
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		sender, err := tx.WalletByUserID(ctx, input.SenderUserID)
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrSenderNotFound
		}
		if err != nil {
			return err
		}

		recipient, err = tx.WalletByNumber(ctx, input.RecipientWalletNumber)
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrRecipientNotFound
		}
		if err != nil {
			return err
		}

		if sender.WalletNumber == recipient.WalletNumber {
			return domain.ErrSelfTransfer
		}

		locked, err := lockInOrder(ctx, tx, sender.ID, recipient.ID)
		if err != nil {
			return err
		}
		if locked[sender.ID].Balance < input.Amount {
			return domain.ErrInsufficientBalance
		}

		senderBalance, err := tx.AddBalance(ctx, sender.ID, -input.Amount)
		if err != nil {
			return err
		}
		if _, err := tx.AddBalance(ctx, recipient.ID, input.Amount); err != nil {
			return err
		}

		entry, err := s.ledger.Append(ctx, tx, domain.Transaction{
			Reference:      ledger.NewTransferReference(),
			Type:           domain.TransactionTransfer,
			Amount:         input.Amount,
			Status:         domain.StatusSuccess,
			FromUserID:     input.SenderUserID,
			ToWalletNumber: recipient.WalletNumber,
		})
		if err != nil {
			return err
		}

		result = TransferResult{
			Reference:     entry.Reference,
			SenderBalance: senderBalance,
			CompletedAt:   entry.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}

	s.logger.Info("transfer completed",
		slog.String("reference", result.Reference),
		slog.String("sender", input.SenderUserID),
		slog.String("recipient_wallet", recipient.WalletNumber),
		slog.Int64("amount", input.Amount),
	)

	notification.Deliver(ctx, s.notifier, s.logger, notification.Message{
		Kind:        notification.KindTransferReceived,
		Destination: recipient.UserID,
		Reference:   result.Reference,
		Amount:      input.Amount,
		Body:        fmt.Sprintf("You received %d from %s", input.Amount, input.SenderUserID),
	})

	return result, nil
}

// lockInOrder locks both wallets by ascending id so that transfers in
// opposite directions between the same pair cannot deadlock.
func lockInOrder(ctx context.Context, tx store.Tx, a, b int64) (map[int64]domain.Wallet, error) {
	first, second := a, b
	if second < first {
		first, second = second, first
	}

	locked := make(map[int64]domain.Wallet, 2)
	for _, id := range []int64{first, second} {
		w, err := tx.LockWallet(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lock wallet %d: %w", id, err)
		}
		locked[id] = w
	}
	return locked, nil
}
