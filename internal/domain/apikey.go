package domain

import (
	"slices"
	"time"
)

// Permission scopes an API key to a subset of wallet operations.
type Permission string

const (
	PermissionDeposit  Permission = "deposit"
	PermissionTransfer Permission = "transfer"
	PermissionRead     Permission = "read"
)

// ParsePermission validates a raw permission string.
func ParsePermission(raw string) (Permission, error) {
	switch p := Permission(raw); p {
	case PermissionDeposit, PermissionTransfer, PermissionRead:
		return p, nil
	default:
		return "", ErrInvalidPermission
	}
}

// APIKey is a stored service credential. The secret itself is never stored,
// only its bcrypt hash and a SHA-256 fingerprint used for lookup.
type APIKey struct {
	ID          string
	UserID      string
	Name        string
	Hash        []byte
	Fingerprint string
	Permissions []Permission
	ExpiresAt   time.Time
	Revoked     bool
	CreatedAt   time.Time
}

// Expired reports whether the key is past its expiry at now.
func (k APIKey) Expired(now time.Time) bool {
	return !k.ExpiresAt.IsZero() && !now.Before(k.ExpiresAt)
}

// Active reports whether the key can still authenticate at now.
func (k APIKey) Active(now time.Time) bool {
	return !k.Revoked && !k.Expired(now)
}

// Allows reports whether the key carries perm.
func (k APIKey) Allows(perm Permission) bool {
	return slices.Contains(k.Permissions, perm)
}
