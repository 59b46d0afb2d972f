package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/paywallet/internal/domain"
)

const (
	constraintWalletUser   = "wallets_user_id_key"
	constraintWalletNumber = "wallets_wallet_number_key"
	constraintReference    = "transactions_reference_key"
	constraintBalance      = "wallets_balance_check"
)

// Options tunes how units of work run against Postgres.
type Options struct {
	// LockTimeout bounds every row-lock wait inside a unit of work.
	LockTimeout time.Duration
	// TxTimeout bounds the whole unit of work. Expiry rolls it back.
	TxTimeout time.Duration
}

// PostgresStore persists wallets and ledger entries in PostgreSQL.
type PostgresStore struct {
	db   *pgxpool.Pool
	opts Options
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool, opts Options) *PostgresStore {
	return &PostgresStore{db: db, opts: opts}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithinTx runs fn inside a read-committed transaction.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	if s.opts.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.TxTimeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", translate(err))
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if s.opts.LockTimeout > 0 {
		timeout := fmt.Sprintf("%dms", s.opts.LockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
			return fmt.Errorf("set lock timeout: %w", translate(err))
		}
	}

	// fn queries with the caller's context, so the unit deadline has to
	// interrupt the running statement server side. The connection must not
	// go back to the pool while a cancel request for it is in flight.
	cancelDone := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(cancelDone)
		_ = tx.Conn().PgConn().CancelRequest(context.Background())
	})
	defer func() {
		if !stop() {
			<-cancelDone
		}
	}()

	if err := fn(&postgresTx{q: tx}); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ctxErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", translate(err))
	}
	return nil
}

// CreateWallet inserts a wallet outside any unit of work so that a
// uniqueness violation does not poison an enclosing transaction.
func (s *PostgresStore) CreateWallet(ctx context.Context, wallet domain.Wallet) (domain.Wallet, error) {
	const query = `
        INSERT INTO wallets (user_id, wallet_number, balance)
        VALUES ($1, $2, $3)
        RETURNING id, user_id, wallet_number, balance, created_at, updated_at`
	created, err := scanWallet(s.db.QueryRow(ctx, query, wallet.UserID, wallet.WalletNumber, wallet.Balance))
	if err != nil {
		return domain.Wallet{}, translate(err)
	}
	return created, nil
}

func (s *PostgresStore) WalletByUserID(ctx context.Context, userID string) (domain.Wallet, error) {
	return walletByUserID(ctx, s.db, userID)
}

func (s *PostgresStore) WalletByNumber(ctx context.Context, walletNumber string) (domain.Wallet, error) {
	return walletByNumber(ctx, s.db, walletNumber)
}

func (s *PostgresStore) WalletNumbersForUser(ctx context.Context, userID string) ([]string, error) {
	return walletNumbersForUser(ctx, s.db, userID)
}

func (s *PostgresStore) TransactionByReference(ctx context.Context, reference string) (domain.Transaction, error) {
	return transactionByReference(ctx, s.db, reference, false)
}

func (s *PostgresStore) TransactionsForUser(ctx context.Context, userID string, walletNumbers []string, limit, offset int) ([]domain.Transaction, error) {
	return transactionsForUser(ctx, s.db, userID, walletNumbers, limit, offset)
}

type postgresTx struct {
	q querier
}

func (t *postgresTx) WalletByUserID(ctx context.Context, userID string) (domain.Wallet, error) {
	return walletByUserID(ctx, t.q, userID)
}

func (t *postgresTx) WalletByNumber(ctx context.Context, walletNumber string) (domain.Wallet, error) {
	return walletByNumber(ctx, t.q, walletNumber)
}

func (t *postgresTx) WalletNumbersForUser(ctx context.Context, userID string) ([]string, error) {
	return walletNumbersForUser(ctx, t.q, userID)
}

func (t *postgresTx) TransactionByReference(ctx context.Context, reference string) (domain.Transaction, error) {
	return transactionByReference(ctx, t.q, reference, false)
}

func (t *postgresTx) TransactionsForUser(ctx context.Context, userID string, walletNumbers []string, limit, offset int) ([]domain.Transaction, error) {
	return transactionsForUser(ctx, t.q, userID, walletNumbers, limit, offset)
}

func (t *postgresTx) LockWallet(ctx context.Context, id int64) (domain.Wallet, error) {
	const query = `
        SELECT id, user_id, wallet_number, balance, created_at, updated_at
        FROM wallets WHERE id = $1 FOR UPDATE`
	w, err := scanWallet(t.q.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Wallet{}, translate(err)
	}
	return w, nil
}

func (t *postgresTx) AddBalance(ctx context.Context, id int64, delta int64) (int64, error) {
	const query = `
        UPDATE wallets SET balance = balance + $2, updated_at = now()
        WHERE id = $1
        RETURNING balance`
	var balance int64
	if err := t.q.QueryRow(ctx, query, id, delta).Scan(&balance); err != nil {
		return 0, translate(err)
	}
	return balance, nil
}

func (t *postgresTx) InsertTransaction(ctx context.Context, txn domain.Transaction) (domain.Transaction, error) {
	const query = `
        INSERT INTO transactions (reference, type, amount, status, from_user_id, to_wallet_number)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, reference, type, amount, status, from_user_id, to_wallet_number, created_at, updated_at`
	row := t.q.QueryRow(ctx, query,
		txn.Reference, string(txn.Type), txn.Amount, string(txn.Status),
		nullable(txn.FromUserID), nullable(txn.ToWalletNumber))
	inserted, err := scanTransaction(row)
	if err != nil {
		return domain.Transaction{}, translate(err)
	}
	return inserted, nil
}

func (t *postgresTx) LockTransaction(ctx context.Context, reference string) (domain.Transaction, error) {
	return transactionByReference(ctx, t.q, reference, true)
}

func (t *postgresTx) UpdateTransactionStatus(ctx context.Context, reference string, from, to domain.TransactionStatus) (bool, error) {
	cmd, err := t.q.Exec(ctx, `UPDATE transactions SET status = $3, updated_at = now()
        WHERE reference = $1 AND status = $2`, reference, string(from), string(to))
	if err != nil {
		return false, translate(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func walletByUserID(ctx context.Context, q querier, userID string) (domain.Wallet, error) {
	const query = `
        SELECT id, user_id, wallet_number, balance, created_at, updated_at
        FROM wallets WHERE user_id = $1`
	w, err := scanWallet(q.QueryRow(ctx, query, userID))
	if err != nil {
		return domain.Wallet{}, translate(err)
	}
	return w, nil
}

func walletByNumber(ctx context.Context, q querier, walletNumber string) (domain.Wallet, error) {
	const query = `
        SELECT id, user_id, wallet_number, balance, created_at, updated_at
        FROM wallets WHERE wallet_number = $1`
	w, err := scanWallet(q.QueryRow(ctx, query, walletNumber))
	if err != nil {
		return domain.Wallet{}, translate(err)
	}
	return w, nil
}

func walletNumbersForUser(ctx context.Context, q querier, userID string) ([]string, error) {
	rows, err := q.Query(ctx, `SELECT wallet_number FROM wallets WHERE user_id = $1`, userID)
	if err != nil {
		return nil, translate(err)
	}
	numbers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, translate(err)
	}
	return numbers, nil
}

func transactionByReference(ctx context.Context, q querier, reference string, forUpdate bool) (domain.Transaction, error) {
	query := `
        SELECT id, reference, type, amount, status, from_user_id, to_wallet_number, created_at, updated_at
        FROM transactions WHERE reference = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	txn, err := scanTransaction(q.QueryRow(ctx, query, reference))
	if err != nil {
		return domain.Transaction{}, translate(err)
	}
	return txn, nil
}

func transactionsForUser(ctx context.Context, q querier, userID string, walletNumbers []string, limit, offset int) ([]domain.Transaction, error) {
	const query = `
        SELECT id, reference, type, amount, status, from_user_id, to_wallet_number, created_at, updated_at
        FROM transactions
        WHERE from_user_id = $1 OR to_wallet_number = ANY($2)
        ORDER BY created_at DESC, id DESC
        LIMIT $3 OFFSET $4`
	if walletNumbers == nil {
		walletNumbers = []string{}
	}
	rows, err := q.Query(ctx, query, userID, walletNumbers, limit, offset)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, translate(err)
		}
		out = append(out, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func scanWallet(row pgx.Row) (domain.Wallet, error) {
	var w domain.Wallet
	if err := row.Scan(&w.ID, &w.UserID, &w.WalletNumber, &w.Balance, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return domain.Wallet{}, err
	}
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var (
		txn          domain.Transaction
		kind, status string
		fromUserID   *string
		toWallet     *string
	)
	if err := row.Scan(&txn.ID, &txn.Reference, &kind, &txn.Amount, &status, &fromUserID, &toWallet, &txn.CreatedAt, &txn.UpdatedAt); err != nil {
		return domain.Transaction{}, err
	}
	txn.Type = domain.TransactionType(kind)
	txn.Status = domain.TransactionStatus(status)
	if fromUserID != nil {
		txn.FromUserID = *fromUserID
	}
	if toWallet != nil {
		txn.ToWalletNumber = *toWallet
	}
	txn.CreatedAt = txn.CreatedAt.UTC()
	txn.UpdatedAt = txn.UpdatedAt.UTC()
	return txn, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// translate maps driver errors onto the store's sentinel errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		switch pgErr.ConstraintName {
		case constraintWalletUser:
			return ErrDuplicateUserWallet
		case constraintWalletNumber:
			return ErrDuplicateWalletNumber
		case constraintReference:
			return domain.ErrDuplicateReference
		}
	case "23514":
		if pgErr.ConstraintName == constraintBalance {
			return domain.ErrInsufficientBalance
		}
	case "22003":
		return fmt.Errorf("%w: %s", domain.ErrBalanceOverflow, pgErr.Message)
	case "55P03":
		return fmt.Errorf("%w: %s", ErrLockTimeout, pgErr.Message)
	case "40P01":
		return fmt.Errorf("%w: %s", ErrDeadlock, pgErr.Message)
	case "40001":
		return fmt.Errorf("%w: %s", ErrSerialization, pgErr.Message)
	}
	return err
}
