package store

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/congo-pay/paywallet/internal/domain"
)

// memoryStore serializes every unit of work behind one mutex and undoes
// partial effects on failure, which gives tests the same all-or-nothing
// behaviour as the Postgres store.
type memoryStore struct {
	mu           sync.Mutex
	nextWalletID int64
	nextTxnID    int64
	wallets      map[int64]domain.Wallet
	byUser       map[string]int64
	byNumber     map[string]int64
	transactions map[string]domain.Transaction
	now          func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit tests.
func NewInMemory() Store {
	return &memoryStore{
		wallets:      make(map[int64]domain.Wallet),
		byUser:       make(map[string]int64),
		byNumber:     make(map[string]int64),
		transactions: make(map[string]domain.Transaction),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *memoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{s: s}
	err := fn(tx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *memoryStore) CreateWallet(ctx context.Context, wallet domain.Wallet) (domain.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return domain.Wallet{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUser[wallet.UserID]; exists {
		return domain.Wallet{}, ErrDuplicateUserWallet
	}
	if _, exists := s.byNumber[wallet.WalletNumber]; exists {
		return domain.Wallet{}, ErrDuplicateWalletNumber
	}

	s.nextWalletID++
	now := s.now()
	wallet.ID = s.nextWalletID
	wallet.CreatedAt = now
	wallet.UpdatedAt = now
	s.wallets[wallet.ID] = wallet
	s.byUser[wallet.UserID] = wallet.ID
	s.byNumber[wallet.WalletNumber] = wallet.ID
	return wallet, nil
}

func (s *memoryStore) WalletByUserID(_ context.Context, userID string) (domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.walletByUserID(userID)
}

func (s *memoryStore) WalletByNumber(_ context.Context, walletNumber string) (domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.walletByNumber(walletNumber)
}

func (s *memoryStore) WalletNumbersForUser(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.walletNumbersForUser(userID), nil
}

func (s *memoryStore) TransactionByReference(_ context.Context, reference string) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactionByReference(reference)
}

func (s *memoryStore) TransactionsForUser(_ context.Context, userID string, walletNumbers []string, limit, offset int) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactionsForUser(userID, walletNumbers, limit, offset), nil
}

func (s *memoryStore) walletByUserID(userID string) (domain.Wallet, error) {
	id, ok := s.byUser[userID]
	if !ok {
		return domain.Wallet{}, ErrNotFound
	}
	return s.wallets[id], nil
}

func (s *memoryStore) walletByNumber(walletNumber string) (domain.Wallet, error) {
	id, ok := s.byNumber[walletNumber]
	if !ok {
		return domain.Wallet{}, ErrNotFound
	}
	return s.wallets[id], nil
}

func (s *memoryStore) walletNumbersForUser(userID string) []string {
	id, ok := s.byUser[userID]
	if !ok {
		return nil
	}
	return []string{s.wallets[id].WalletNumber}
}

func (s *memoryStore) transactionByReference(reference string) (domain.Transaction, error) {
	txn, ok := s.transactions[reference]
	if !ok {
		return domain.Transaction{}, ErrNotFound
	}
	return txn, nil
}

func (s *memoryStore) transactionsForUser(userID string, walletNumbers []string, limit, offset int) []domain.Transaction {
	targets := make(map[string]struct{}, len(walletNumbers))
	for _, n := range walletNumbers {
		targets[n] = struct{}{}
	}

	var matched []domain.Transaction
	for _, txn := range s.transactions {
		_, received := targets[txn.ToWalletNumber]
		if (userID != "" && txn.FromUserID == userID) || received {
			matched = append(matched, txn)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	if offset >= len(matched) {
		return nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched
}

// memoryTx runs with memoryStore.mu held.
type memoryTx struct {
	s    *memoryStore
	undo []func()
}

func (t *memoryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memoryTx) WalletByUserID(ctx context.Context, userID string) (domain.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return domain.Wallet{}, err
	}
	return t.s.walletByUserID(userID)
}

func (t *memoryTx) WalletByNumber(ctx context.Context, walletNumber string) (domain.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return domain.Wallet{}, err
	}
	return t.s.walletByNumber(walletNumber)
}

func (t *memoryTx) WalletNumbersForUser(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.s.walletNumbersForUser(userID), nil
}

func (t *memoryTx) TransactionByReference(ctx context.Context, reference string) (domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Transaction{}, err
	}
	return t.s.transactionByReference(reference)
}

func (t *memoryTx) TransactionsForUser(ctx context.Context, userID string, walletNumbers []string, limit, offset int) ([]domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.s.transactionsForUser(userID, walletNumbers, limit, offset), nil
}

func (t *memoryTx) LockWallet(ctx context.Context, id int64) (domain.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return domain.Wallet{}, err
	}
	w, ok := t.s.wallets[id]
	if !ok {
		return domain.Wallet{}, ErrNotFound
	}
	return w, nil
}

func (t *memoryTx) AddBalance(ctx context.Context, id int64, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	w, ok := t.s.wallets[id]
	if !ok {
		return 0, ErrNotFound
	}
	if delta > 0 && w.Balance > math.MaxInt64-delta {
		return 0, domain.ErrBalanceOverflow
	}
	if w.Balance+delta < 0 {
		return 0, domain.ErrInsufficientBalance
	}

	prev := w
	w.Balance += delta
	w.UpdatedAt = t.s.now()
	t.s.wallets[id] = w
	t.undo = append(t.undo, func() { t.s.wallets[id] = prev })
	return w.Balance, nil
}

func (t *memoryTx) InsertTransaction(ctx context.Context, txn domain.Transaction) (domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Transaction{}, err
	}
	if _, exists := t.s.transactions[txn.Reference]; exists {
		return domain.Transaction{}, domain.ErrDuplicateReference
	}

	t.s.nextTxnID++
	now := t.s.now()
	txn.ID = t.s.nextTxnID
	txn.CreatedAt = now
	txn.UpdatedAt = now
	t.s.transactions[txn.Reference] = txn

	ref := txn.Reference
	t.undo = append(t.undo, func() { delete(t.s.transactions, ref) })
	return txn, nil
}

func (t *memoryTx) LockTransaction(ctx context.Context, reference string) (domain.Transaction, error) {
	return t.TransactionByReference(ctx, reference)
}

func (t *memoryTx) UpdateTransactionStatus(ctx context.Context, reference string, from, to domain.TransactionStatus) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	txn, ok := t.s.transactions[reference]
	if !ok || txn.Status != from {
		return false, nil
	}

	prev := txn
	txn.Status = to
	txn.UpdatedAt = t.s.now()
	t.s.transactions[reference] = txn
	t.undo = append(t.undo, func() { t.s.transactions[reference] = prev })
	return true, nil
}
