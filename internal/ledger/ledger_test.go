package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/congo-pay/paywallet/internal/domain"
	"github.com/congo-pay/paywallet/internal/logging"
	"github.com/congo-pay/paywallet/internal/store"
)

func deposit(ref, to string, amount int64) domain.Transaction {
	return domain.Transaction{
		Reference:      ref,
		Type:           domain.TransactionDeposit,
		Status:         domain.StatusPending,
		Amount:         amount,
		ToWalletNumber: to,
	}
}

func TestRecordRejectsDuplicateReference(t *testing.T) {
	l := New(store.NewInMemory(), logging.Discard())
	ctx := context.Background()

	if _, err := l.Record(ctx, deposit("ps_1", "1000000000001", 150)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := l.Record(ctx, deposit("ps_1", "1000000000001", 150)); !errors.Is(err, domain.ErrDuplicateReference) {
		t.Fatalf("expected duplicate reference, got %v", err)
	}
}

func TestAppendValidatesEntries(t *testing.T) {
	l := New(store.NewInMemory(), logging.Discard())
	ctx := context.Background()

	cases := []struct {
		name  string
		entry domain.Transaction
		want  error
	}{
		{"zero amount", deposit("ps_a", "1000000000001", 0), domain.ErrInvalidAmount},
		{"negative amount", deposit("ps_b", "1000000000001", -5), domain.ErrInvalidAmount},
		{"missing destination", deposit("ps_c", "", 10), domain.ErrMissingDestination},
		{"missing reference", deposit("", "1000000000001", 10), domain.ErrInvalidTransaction},
		{"unknown type", domain.Transaction{Reference: "x", Type: "refund", Status: domain.StatusPending, Amount: 1, ToWalletNumber: "1"}, domain.ErrInvalidTransaction},
		{"transfer without sender", domain.Transaction{Reference: "tr_x", Type: domain.TransactionTransfer, Status: domain.StatusSuccess, Amount: 1, ToWalletNumber: "1"}, domain.ErrInvalidTransaction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := l.Record(ctx, tc.entry); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestMarkSuccessIsOneWay(t *testing.T) {
	st := store.NewInMemory()
	l := New(st, logging.Discard())
	ctx := context.Background()

	if _, err := l.Record(ctx, deposit("ps_1", "1000000000001", 150)); err != nil {
		t.Fatalf("record: %v", err)
	}

	var first, second bool
	err := st.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		first, err = l.MarkSuccess(ctx, tx, "ps_1")
		return err
	})
	if err != nil || !first {
		t.Fatalf("expected first mark to apply, got %v (%v)", first, err)
	}

	err = st.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		second, err = l.MarkSuccess(ctx, tx, "ps_1")
		return err
	})
	if err != nil || second {
		t.Fatalf("expected second mark to be a no-op, got %v (%v)", second, err)
	}

	got, err := l.Get(ctx, "ps_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusSuccess {
		t.Fatalf("expected success, got %s", got.Status)
	}
}

func TestFindByReferenceUnknown(t *testing.T) {
	st := store.NewInMemory()
	l := New(st, logging.Discard())
	ctx := context.Background()

	err := st.WithinTx(ctx, func(tx store.Tx) error {
		_, err := l.FindByReference(ctx, tx, "ps_missing", true)
		return err
	})
	if !errors.Is(err, domain.ErrUnknownReference) {
		t.Fatalf("expected unknown reference, got %v", err)
	}
	if _, err := l.Get(ctx, "ps_missing"); !errors.Is(err, domain.ErrUnknownReference) {
		t.Fatalf("expected unknown reference from get, got %v", err)
	}

	err = st.WithinTx(ctx, func(tx store.Tx) error {
		_, err := l.MarkSuccess(ctx, tx, "ps_missing")
		return err
	})
	if !errors.Is(err, domain.ErrUnknownReference) {
		t.Fatalf("expected unknown reference from mark, got %v", err)
	}
}

func TestHistoryIncludesSentAndReceived(t *testing.T) {
	st := store.NewInMemory()
	l := New(st, logging.Discard())
	ctx := context.Background()

	alice, err := st.CreateWallet(ctx, domain.Wallet{UserID: "alice", WalletNumber: "1000000000001"})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if _, err := st.CreateWallet(ctx, domain.Wallet{UserID: "bob", WalletNumber: "1000000000002"}); err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	entries := []domain.Transaction{
		deposit("ps_1", alice.WalletNumber, 500),
		{Reference: "tr_1", Type: domain.TransactionTransfer, Status: domain.StatusSuccess, Amount: 200, FromUserID: "alice", ToWalletNumber: "1000000000002"},
		{Reference: "tr_2", Type: domain.TransactionTransfer, Status: domain.StatusSuccess, Amount: 50, FromUserID: "bob", ToWalletNumber: alice.WalletNumber},
		deposit("ps_2", "1000000000002", 75),
	}
	for _, e := range entries {
		if _, err := l.Record(ctx, e); err != nil {
			t.Fatalf("record %s: %v", e.Reference, err)
		}
	}

	got, err := l.History(ctx, "alice", 1, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries for alice, got %d", len(got))
	}
	for _, txn := range got {
		if txn.Reference == "ps_2" {
			t.Fatal("bob's deposit must not appear in alice's history")
		}
	}

	page, err := l.History(ctx, "alice", 2, 2)
	if err != nil {
		t.Fatalf("history page 2: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("expected 1 entry on page 2, got %d", len(page))
	}

	none, err := l.History(ctx, "carol", 1, 20)
	if err != nil {
		t.Fatalf("history for stranger: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected empty history, got %d", len(none))
	}
}

func TestReferencesArePrefixedAndUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		ref := NewTransferReference()
		if !strings.HasPrefix(ref, "tr_") {
			t.Fatalf("unexpected transfer reference %q", ref)
		}
		if _, dup := seen[ref]; dup {
			t.Fatalf("duplicate reference %q", ref)
		}
		seen[ref] = struct{}{}
	}
	if ref := NewDepositReference(); !strings.HasPrefix(ref, "ps_") || len(ref) != len("ps_")+36 {
		t.Fatalf("unexpected deposit reference %q", ref)
	}
}
