package apikey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/paywallet/internal/domain"
)

// Repository persists API keys.
type Repository interface {
	// Insert stores key unless its owner already holds maxActive active keys
	// at now, in which case it returns domain.ErrAPIKeyLimitReached.
	Insert(ctx context.Context, key domain.APIKey, maxActive int, now time.Time) error
	FindByID(ctx context.Context, id string) (domain.APIKey, error)
	FindByFingerprint(ctx context.Context, fingerprint string) (domain.APIKey, error)
	ListByUser(ctx context.Context, userID string) ([]domain.APIKey, error)
	Revoke(ctx context.Context, id string) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed API key repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const keyColumns = `id, user_id, name, key_hash, key_fingerprint, permissions, expires_at, revoked, created_at`

// Insert serializes inserts per user with an advisory lock so the active
// key count cannot be raced past maxActive.
func (r *PostgresRepository) Insert(ctx context.Context, key domain.APIKey, maxActive int, now time.Time) error {
	id, err := uuid.Parse(key.ID)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key.UserID); err != nil {
		return fmt.Errorf("lock api keys: %w", err)
	}

	if maxActive > 0 {
		var active int
		err := tx.QueryRow(ctx, `SELECT count(*) FROM api_keys
            WHERE user_id = $1 AND NOT revoked AND (expires_at IS NULL OR expires_at > $2)`,
			key.UserID, now.UTC()).Scan(&active)
		if err != nil {
			return fmt.Errorf("count api keys: %w", err)
		}
		if active >= maxActive {
			return domain.ErrAPIKeyLimitReached
		}
	}

	_, err = tx.Exec(ctx, `INSERT INTO api_keys (`+keyColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, key.UserID, key.Name, key.Hash, key.Fingerprint, toStrings(key.Permissions),
		nullableTime(key.ExpiresAt), key.Revoked, key.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return tx.Commit(ctx)
}

// FindByID fetches a key by its identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (domain.APIKey, error) {
	keyID, err := uuid.Parse(id)
	if err != nil {
		return domain.APIKey{}, domain.ErrAPIKeyNotFound
	}
	return scanKey(r.db.QueryRow(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE id = $1`, keyID))
}

// FindByFingerprint fetches a key by the SHA-256 fingerprint of its secret.
func (r *PostgresRepository) FindByFingerprint(ctx context.Context, fingerprint string) (domain.APIKey, error) {
	return scanKey(r.db.QueryRow(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE key_fingerprint = $1`, fingerprint))
}

// ListByUser returns every key the user owns, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]domain.APIKey, error) {
	rows, err := r.db.Query(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.APIKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Revoke marks a key as revoked.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	keyID, err := uuid.Parse(id)
	if err != nil {
		return domain.ErrAPIKeyNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE api_keys SET revoked = true WHERE id = $1`, keyID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrAPIKeyNotFound
	}
	return nil
}

func scanKey(row pgx.Row) (domain.APIKey, error) {
	var (
		id          uuid.UUID
		permissions []string
		expiresAt   *time.Time
		k           domain.APIKey
	)
	err := row.Scan(&id, &k.UserID, &k.Name, &k.Hash, &k.Fingerprint, &permissions, &expiresAt, &k.Revoked, &k.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.APIKey{}, domain.ErrAPIKeyNotFound
	}
	if err != nil {
		return domain.APIKey{}, err
	}
	k.ID = id.String()
	k.CreatedAt = k.CreatedAt.UTC()
	if expiresAt != nil {
		k.ExpiresAt = expiresAt.UTC()
	}
	for _, p := range permissions {
		k.Permissions = append(k.Permissions, domain.Permission(p))
	}
	return k, nil
}

func toStrings(perms []domain.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
