package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/congo-pay/paywallet/internal/domain"
	"github.com/congo-pay/paywallet/internal/store"
)

// DefaultMaxAttempts bounds wallet number draws per allocation.
const DefaultMaxAttempts = 10

// Service owns wallet lookup and lazy creation.
type Service struct {
	store       store.Store
	numbers     NumberGenerator
	maxAttempts int
	logger      *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithNumberGenerator replaces the random wallet number source.
func WithNumberGenerator(gen NumberGenerator) Option {
	return func(s *Service) {
		if gen != nil {
			s.numbers = gen
		}
	}
}

// WithMaxAttempts overrides the number of draws before allocation fails.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// NewService builds a wallet service instance.
func NewService(st store.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:       st,
		numbers:     RandomNumber,
		maxAttempts: DefaultMaxAttempts,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the user's wallet, allocating one with a zero balance
// on first access. Concurrent first calls for the same user converge on the
// single row the store's uniqueness constraint lets through.
func (s *Service) GetOrCreate(ctx context.Context, userID string) (domain.Wallet, error) {
	if userID == "" {
		return domain.Wallet{}, fmt.Errorf("user id is required")
	}

	existing, err := s.store.WalletByUserID(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Wallet{}, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		number, err := s.numbers()
		if err != nil {
			return domain.Wallet{}, err
		}

		created, err := s.store.CreateWallet(ctx, domain.Wallet{UserID: userID, WalletNumber: number})
		switch {
		case err == nil:
			s.logger.Info("wallet created",
				slog.String("user_id", userID),
				slog.String("wallet_number", created.WalletNumber),
				slog.Int("attempt", attempt),
			)
			return created, nil
		case errors.Is(err, store.ErrDuplicateUserWallet):
			// Lost the race to a concurrent creator for the same user.
			return s.store.WalletByUserID(ctx, userID)
		case errors.Is(err, store.ErrDuplicateWalletNumber):
			s.logger.Debug("wallet number collision", slog.String("user_id", userID), slog.Int("attempt", attempt))
			continue
		default:
			return domain.Wallet{}, err
		}
	}

	s.logger.Error("wallet number allocation exhausted",
		slog.String("user_id", userID),
		slog.Int("attempts", s.maxAttempts),
	)
	return domain.Wallet{}, domain.ErrWalletAllocationExhausted
}

// Balance returns the user's balance, or zero when the user has no wallet.
// It never creates a wallet.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	w, err := s.store.WalletByUserID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

// ByNumber looks a wallet up by its public number.
func (s *Service) ByNumber(ctx context.Context, walletNumber string) (domain.Wallet, error) {
	w, err := s.store.WalletByNumber(ctx, walletNumber)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Wallet{}, domain.ErrWalletNotFound
	}
	return w, err
}
