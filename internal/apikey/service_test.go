package apikey

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/congo-pay/paywallet/internal/domain"
	"github.com/congo-pay/paywallet/internal/logging"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (*Service, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)}
	svc := NewService(NewMemoryRepository(), logging.Discard(), WithCost(bcrypt.MinCost), WithClock(clk.Now))
	return svc, clk
}

func TestCreateAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Create(ctx, CreateInput{UserID: "u1", Name: "billing", Permissions: []string{"read", "deposit"}, Expiry: "1D"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(issued.Secret, "sk_live_"))
	require.NotContains(t, string(issued.Key.Hash), issued.Secret)

	key, err := svc.Authenticate(ctx, issued.Secret)
	require.NoError(t, err)
	require.Equal(t, issued.Key.ID, key.ID)
	require.True(t, key.Allows(domain.PermissionDeposit))
	require.False(t, key.Allows(domain.PermissionTransfer))

	_, err = svc.Authenticate(ctx, "sk_live_nope")
	require.ErrorIs(t, err, domain.ErrInvalidAPIKey)
	_, err = svc.Authenticate(ctx, "")
	require.ErrorIs(t, err, domain.ErrInvalidAPIKey)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateInput
		want  error
	}{
		{"missing name", CreateInput{UserID: "u1", Permissions: []string{"read"}, Expiry: "1D"}, ErrNameRequired},
		{"no permissions", CreateInput{UserID: "u1", Name: "k", Expiry: "1D"}, domain.ErrInvalidPermission},
		{"unknown permission", CreateInput{UserID: "u1", Name: "k", Permissions: []string{"withdraw"}, Expiry: "1D"}, domain.ErrInvalidPermission},
		{"zero expiry", CreateInput{UserID: "u1", Name: "k", Permissions: []string{"read"}, Expiry: "0D"}, domain.ErrInvalidExpiry},
		{"lowercase unit", CreateInput{UserID: "u1", Name: "k", Permissions: []string{"read"}, Expiry: "1d"}, domain.ErrInvalidExpiry},
		{"unknown unit", CreateInput{UserID: "u1", Name: "k", Permissions: []string{"read"}, Expiry: "1W"}, domain.ErrInvalidExpiry},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.input)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParseExpiry(t *testing.T) {
	now := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)

	got, err := ParseExpiry("2H", now)
	require.NoError(t, err)
	require.Equal(t, now.Add(2*time.Hour), got)

	got, err = ParseExpiry("10D", now)
	require.NoError(t, err)
	require.Equal(t, now.AddDate(0, 0, 10), got)

	got, err = ParseExpiry("1M", now)
	require.NoError(t, err)
	require.Equal(t, now.AddDate(0, 1, 0), got)

	got, err = ParseExpiry("1Y", now)
	require.NoError(t, err)
	require.Equal(t, 2026, got.Year())
}

func TestActiveKeyLimit(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	var first Issued
	for i := 0; i < DefaultMaxActive; i++ {
		issued, err := svc.Create(ctx, CreateInput{UserID: "u1", Name: "k", Permissions: []string{"read"}, Expiry: "1H"})
		require.NoError(t, err)
		if i == 0 {
			first = issued
		}
	}

	_, err := svc.Create(ctx, CreateInput{UserID: "u1", Name: "k", Permissions: []string{"read"}, Expiry: "1H"})
	require.ErrorIs(t, err, domain.ErrAPIKeyLimitReached)

	_, err = svc.Create(ctx, CreateInput{UserID: "u2", Name: "k", Permissions: []string{"read"}, Expiry: "1H"})
	require.NoError(t, err, "limit is per user")

	require.NoError(t, svc.Revoke(ctx, "u1", first.Key.ID))
	_, err = svc.Create(ctx, CreateInput{UserID: "u1", Name: "k", Permissions: []string{"read"}, Expiry: "1D"})
	require.NoError(t, err, "revoked keys do not count")

	clk.now = clk.now.Add(2 * time.Hour)
	_, err = svc.Create(ctx, CreateInput{UserID: "u1", Name: "k", Permissions: []string{"read"}, Expiry: "1D"})
	require.NoError(t, err, "expired keys do not count")
}

func TestRevokedAndExpiredKeysAreRejected(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	revoked, err := svc.Create(ctx, CreateInput{UserID: "u1", Name: "a", Permissions: []string{"read"}, Expiry: "1D"})
	require.NoError(t, err)
	require.ErrorIs(t, svc.Revoke(ctx, "u2", revoked.Key.ID), domain.ErrForbidden)
	require.NoError(t, svc.Revoke(ctx, "u1", revoked.Key.ID))
	_, err = svc.Authenticate(ctx, revoked.Secret)
	require.ErrorIs(t, err, domain.ErrAPIKeyRevoked)

	expiring, err := svc.Create(ctx, CreateInput{UserID: "u1", Name: "b", Permissions: []string{"read"}, Expiry: "1H"})
	require.NoError(t, err)
	clk.now = clk.now.Add(time.Hour)
	_, err = svc.Authenticate(ctx, expiring.Secret)
	require.ErrorIs(t, err, domain.ErrAPIKeyExpired)
}

func TestRollover(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	old, err := svc.Create(ctx, CreateInput{UserID: "u1", Name: "ops", Permissions: []string{"transfer"}, Expiry: "1H"})
	require.NoError(t, err)

	_, err = svc.Rollover(ctx, "u1", old.Key.ID, "1D")
	require.ErrorIs(t, err, domain.ErrAPIKeyNotExpired)

	clk.now = clk.now.Add(2 * time.Hour)

	_, err = svc.Rollover(ctx, "u2", old.Key.ID, "1D")
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.Rollover(ctx, "u1", "00000000-0000-0000-0000-000000000000", "1D")
	require.ErrorIs(t, err, domain.ErrAPIKeyNotFound)

	fresh, err := svc.Rollover(ctx, "u1", old.Key.ID, "1D")
	require.NoError(t, err)
	require.NotEqual(t, old.Secret, fresh.Secret)
	require.Equal(t, "ops", fresh.Key.Name)
	require.Equal(t, []domain.Permission{domain.PermissionTransfer}, fresh.Key.Permissions)

	key, err := svc.Authenticate(ctx, fresh.Secret)
	require.NoError(t, err)
	require.Equal(t, fresh.Key.ID, key.ID)

	keys, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, keys, 2)
}
