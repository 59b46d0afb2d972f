package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/congo-pay/paywallet/internal/domain"
	"github.com/congo-pay/paywallet/internal/ledger"
	"github.com/congo-pay/paywallet/internal/notification"
	"github.com/congo-pay/paywallet/internal/store"
	"github.com/congo-pay/paywallet/internal/wallet"
)

const fallbackEmail = "no-reply@example.com"

// CreditStatus is the outcome of applying an external credit.
type CreditStatus string

const (
	CreditCredited         CreditStatus = "credited"
	CreditAlreadyProcessed CreditStatus = "already_processed"
)

// Service initiates deposits and applies provider confirmations to wallets.
type Service struct {
	store       store.Store
	ledger      *ledger.Ledger
	wallets     *wallet.Service
	provider    Provider
	notifier    notification.Notifier
	logger      *slog.Logger
	checkAmount bool
}

// Option customises a Service.
type Option func(*Service)

// WithAmountCheck toggles rejecting confirmations whose amount differs from
// the pending deposit. It is on by default.
func WithAmountCheck(enabled bool) Option {
	return func(s *Service) { s.checkAmount = enabled }
}

// NewService constructs a funding service. A nil provider falls back to a
// StaticProvider.
func NewService(st store.Store, l *ledger.Ledger, wallets *wallet.Service, provider Provider, notifier notification.Notifier, logger *slog.Logger, opts ...Option) (*Service, error) {
	if wallets == nil {
		return nil, fmt.Errorf("wallet service is required")
	}
	if provider == nil {
		provider = NewStaticProvider()
	}
	s := &Service{
		store:       st,
		ledger:      l,
		wallets:     wallets,
		provider:    provider,
		notifier:    notifier,
		logger:      logger,
		checkAmount: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreditResult describes what ApplyExternalCredit did.
type CreditResult struct {
	Status       CreditStatus
	Reference    string
	WalletNumber string
	Amount       int64
}

// ApplyExternalCredit credits the wallet targeted by a pending deposit and
// marks the deposit successful. Repeated calls for the same reference credit
// the wallet once and then report CreditAlreadyProcessed.
func (s *Service) ApplyExternalCredit(ctx context.Context, reference string, amount int64) (CreditResult, error) {
	if amount <= 0 {
		return CreditResult{}, domain.ErrInvalidAmount
	}

	result := CreditResult{Reference: reference, Amount: amount}
	var owner string
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		txn, err := s.ledger.FindByReference(ctx, tx, reference, true)
		if err != nil {
			return err
		}
		result.WalletNumber = txn.ToWalletNumber
		if txn.Status == domain.StatusSuccess {
			result.Status = CreditAlreadyProcessed
			return nil
		}
		if txn.Type != domain.TransactionDeposit {
			return fmt.Errorf("%w: %s is not a deposit", domain.ErrInvalidTransaction, reference)
		}
		if txn.ToWalletNumber == "" {
			return domain.ErrMissingDestination
		}
		if s.checkAmount && txn.Amount != amount {
			return fmt.Errorf("%w: expected %d, confirmed %d", domain.ErrAmountMismatch, txn.Amount, amount)
		}

		w, err := tx.WalletByNumber(ctx, txn.ToWalletNumber)
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrWalletNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.LockWallet(ctx, w.ID); err != nil {
			return err
		}
		if _, err := tx.AddBalance(ctx, w.ID, amount); err != nil {
			return err
		}

		applied, err := s.ledger.MarkSuccess(ctx, tx, reference)
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("%w: %s changed while locked", domain.ErrInvalidTransaction, reference)
		}
		result.Status = CreditCredited
		owner = w.UserID
		return nil
	})
	if err != nil {
		return CreditResult{}, err
	}

	if result.Status == CreditAlreadyProcessed {
		s.logger.Info("deposit already processed", slog.String("reference", reference))
		return result, nil
	}

	s.logger.Info("deposit credited",
		slog.String("reference", reference),
		slog.String("wallet", result.WalletNumber),
		slog.Int64("amount", amount),
	)
	notification.Deliver(ctx, s.notifier, s.logger, notification.Message{
		Kind:        notification.KindDepositCredited,
		Destination: owner,
		Reference:   reference,
		Amount:      amount,
		Body:        fmt.Sprintf("Your wallet was credited with %d", amount),
	})
	return result, nil
}

// DepositInput captures a request to fund the caller's wallet.
type DepositInput struct {
	UserID      string
	Email       string
	Amount      int64
	CallbackURL string
}

// DepositResult is returned to the payer to complete the deposit.
type DepositResult struct {
	Reference        string
	AuthorizationURL string
}

// InitiateDeposit records a pending deposit and asks the provider for a
// checkout URL. The provider call happens after the deposit is committed.
func (s *Service) InitiateDeposit(ctx context.Context, input DepositInput) (DepositResult, error) {
	if input.Amount <= 0 || input.Amount > MaxDepositAmount {
		return DepositResult{}, domain.ErrInvalidAmount
	}

	w, err := s.wallets.GetOrCreate(ctx, input.UserID)
	if err != nil {
		return DepositResult{}, err
	}

	entry, err := s.ledger.Record(ctx, domain.Transaction{
		Reference:      ledger.NewDepositReference(),
		Type:           domain.TransactionDeposit,
		Amount:         input.Amount,
		Status:         domain.StatusPending,
		ToWalletNumber: w.WalletNumber,
	})
	if err != nil {
		return DepositResult{}, err
	}

	email := input.Email
	if email == "" {
		email = fallbackEmail
	}
	auth, err := s.provider.Initialize(ctx, InitializeRequest{
		Email:       email,
		Amount:      input.Amount,
		Reference:   entry.Reference,
		CallbackURL: input.CallbackURL,
	})
	if err != nil {
		s.logger.Error("deposit initialization failed",
			slog.String("reference", entry.Reference),
			slog.String("error", err.Error()),
		)
		return DepositResult{}, err
	}

	return DepositResult{Reference: entry.Reference, AuthorizationURL: auth.AuthorizationURL}, nil
}

// VerifyResult pairs the provider's verdict with any credit it triggered.
type VerifyResult struct {
	Verification Verification
	Credit       *CreditResult
}

// VerifyAndApply asks the provider for the deposit state and applies the
// credit when the provider reports success. No lock is held during the
// provider call.
func (s *Service) VerifyAndApply(ctx context.Context, reference string) (VerifyResult, error) {
	v, err := s.provider.Verify(ctx, reference)
	if err != nil {
		return VerifyResult{}, err
	}
	out := VerifyResult{Verification: v}
	if !v.Succeeded() {
		return out, nil
	}

	credit, err := s.ApplyExternalCredit(ctx, reference, v.Amount)
	if err != nil {
		return out, err
	}
	out.Credit = &credit
	return out, nil
}

// DepositStatus reports the provider's view of a deposit without applying it.
func (s *Service) DepositStatus(ctx context.Context, reference string) (Verification, error) {
	v, err := s.provider.Verify(ctx, reference)
	if err != nil {
		return Verification{}, err
	}
	s.logger.Info("deposit status checked",
		slog.String("reference", reference),
		slog.String("status", v.Status),
		slog.Int64("amount", v.Amount),
	)
	return v, nil
}
