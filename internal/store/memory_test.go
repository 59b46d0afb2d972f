package store

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/congo-pay/paywallet/internal/domain"
)

func TestInMemory_CreateWalletEnforcesUniqueness(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	first, err := s.CreateWallet(ctx, domain.Wallet{UserID: "user-a", WalletNumber: "0000000000001"})
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	_, err = s.CreateWallet(ctx, domain.Wallet{UserID: "user-a", WalletNumber: "0000000000002"})
	require.ErrorIs(t, err, ErrDuplicateUserWallet)

	_, err = s.CreateWallet(ctx, domain.Wallet{UserID: "user-b", WalletNumber: "0000000000001"})
	require.ErrorIs(t, err, ErrDuplicateWalletNumber)
}

func TestInMemory_WithinTxRollsBackOnError(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	w, err := s.CreateWallet(ctx, domain.Wallet{UserID: "user-a", WalletNumber: "0000000000001"})
	require.NoError(t, err)
	SeedBalance(s, w.WalletNumber, 500)

	boom := errors.New("boom")
	err = s.WithinTx(ctx, func(tx Tx) error {
		if _, err := tx.LockWallet(ctx, w.ID); err != nil {
			return err
		}
		if _, err := tx.AddBalance(ctx, w.ID, -200); err != nil {
			return err
		}
		if _, err := tx.InsertTransaction(ctx, domain.Transaction{
			Reference: "tr_rollback", Type: domain.TransactionTransfer, Amount: 200, Status: domain.StatusSuccess,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	after, err := s.WalletByUserID(ctx, "user-a")
	require.NoError(t, err)
	require.Equal(t, int64(500), after.Balance)

	_, err = s.TransactionByReference(ctx, "tr_rollback")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInMemory_CancelledContextRollsBack(t *testing.T) {
	s := NewInMemory()
	w, err := s.CreateWallet(context.Background(), domain.Wallet{UserID: "user-a", WalletNumber: "0000000000001"})
	require.NoError(t, err)
	SeedBalance(s, w.WalletNumber, 100)

	ctx, cancel := context.WithCancel(context.Background())
	err = s.WithinTx(ctx, func(tx Tx) error {
		if _, err := tx.AddBalance(ctx, w.ID, 50); err != nil {
			return err
		}
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)

	after, err := s.WalletByNumber(context.Background(), w.WalletNumber)
	require.NoError(t, err)
	require.Equal(t, int64(100), after.Balance)
}

func TestInMemory_AddBalanceRejectsNegative(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w, err := s.CreateWallet(ctx, domain.Wallet{UserID: "user-a", WalletNumber: "0000000000001"})
	require.NoError(t, err)

	err = s.WithinTx(ctx, func(tx Tx) error {
		_, err := tx.AddBalance(ctx, w.ID, -1)
		return err
	})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestInMemory_AddBalanceRejectsOverflow(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w, err := s.CreateWallet(ctx, domain.Wallet{UserID: "user-a", WalletNumber: "0000000000001"})
	require.NoError(t, err)
	SeedBalance(s, w.WalletNumber, math.MaxInt64-10)

	err = s.WithinTx(ctx, func(tx Tx) error {
		_, err := tx.AddBalance(ctx, w.ID, 100)
		return err
	})
	require.ErrorIs(t, err, domain.ErrBalanceOverflow)

	after, err := s.WalletByUserID(ctx, "user-a")
	require.NoError(t, err)
	require.Equal(t, int64(math.MaxInt64-10), after.Balance)

	err = s.WithinTx(ctx, func(tx Tx) error {
		_, err := tx.AddBalance(ctx, w.ID, 10)
		return err
	})
	require.NoError(t, err)
}

func TestInMemory_UpdateTransactionStatusIsConditional(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	err := s.WithinTx(ctx, func(tx Tx) error {
		_, err := tx.InsertTransaction(ctx, domain.Transaction{
			Reference: "ps_1", Type: domain.TransactionDeposit, Amount: 150,
			Status: domain.StatusPending, ToWalletNumber: "0000000000001",
		})
		return err
	})
	require.NoError(t, err)

	var changed, again bool
	err = s.WithinTx(ctx, func(tx Tx) error {
		var err error
		if changed, err = tx.UpdateTransactionStatus(ctx, "ps_1", domain.StatusPending, domain.StatusSuccess); err != nil {
			return err
		}
		again, err = tx.UpdateTransactionStatus(ctx, "ps_1", domain.StatusPending, domain.StatusSuccess)
		return err
	})
	require.NoError(t, err)
	require.True(t, changed)
	require.False(t, again)

	txn, err := s.TransactionByReference(ctx, "ps_1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusSuccess, txn.Status)
}

func TestInMemory_TransactionsForUserNewestFirst(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	refs := []string{"tr_1", "tr_2", "tr_3"}
	for _, ref := range refs {
		ref := ref
		require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
			_, err := tx.InsertTransaction(ctx, domain.Transaction{
				Reference: ref, Type: domain.TransactionTransfer, Amount: 10,
				Status: domain.StatusSuccess, FromUserID: "user-a", ToWalletNumber: "0000000000009",
			})
			return err
		}))
	}
	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
		_, err := tx.InsertTransaction(ctx, domain.Transaction{
			Reference: "ps_other", Type: domain.TransactionDeposit, Amount: 10,
			Status: domain.StatusPending, ToWalletNumber: "0000000000005",
		})
		return err
	}))

	page, err := s.TransactionsForUser(ctx, "user-a", nil, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "tr_3", page[0].Reference)
	require.Equal(t, "tr_2", page[1].Reference)

	next, err := s.TransactionsForUser(ctx, "user-a", nil, 2, 2)
	require.NoError(t, err)
	require.Len(t, next, 1)
	require.Equal(t, "tr_1", next[0].Reference)

	received, err := s.TransactionsForUser(ctx, "user-z", []string{"0000000000005"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, received, 1)
	require.Equal(t, "ps_other", received[0].Reference)
}
