package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrInsufficientBalance is returned by Adjust when a debit would take the
	// balance below zero. Nothing is written in that case.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrZeroDelta is returned by Adjust for a zero adjustment.
	ErrZeroDelta = errors.New("adjustment delta must be non-zero")
)

// Store defines the credit ledger operations. Balance changes are relative
// deltas applied atomically; there is no way to overwrite a balance.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// EnsureAccount creates the account if missing, granting initialBalance
	// through the journal, and refreshes the display name when non-empty.
	// It reports whether the account was created.
	EnsureAccount(ctx context.Context, userID int64, displayName string, initialBalance int64) (bool, error)

	// GetAccount returns the account, or nil, nil if it does not exist.
	GetAccount(ctx context.Context, userID int64) (*Account, error)

	// Balance returns the current balance; unknown accounts have balance 0.
	Balance(ctx context.Context, userID int64) (int64, error)

	// Adjust applies delta to the balance and journals it, returning the new
	// balance. Debits that would go below zero fail with ErrInsufficientBalance.
	Adjust(ctx context.Context, userID int64, delta int64, reason, reference string) (int64, error)

	// IsWhitelisted reports whether the account is exempt from charges.
	IsWhitelisted(ctx context.Context, userID int64) (bool, error)

	// SetWhitelisted sets the whitelist flag, creating the account if needed.
	SetWhitelisted(ctx context.Context, userID int64, whitelisted bool) error

	// DisplayName returns the stored display name, or "" if unknown.
	DisplayName(ctx context.Context, userID int64) (string, error)

	// ListEntries returns the most recent journal entries for a user, newest first.
	ListEntries(ctx context.Context, userID int64, limit int) ([]LedgerEntry, error)

	// RecordReconciliation stores a refund that must be fixed by hand.
	RecordReconciliation(ctx context.Context, r *Reconciliation) error

	// ListReconciliations returns unresolved reconciliations, oldest first.
	ListReconciliations(ctx context.Context) ([]Reconciliation, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore implements Store using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a Store backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) EnsureAccount(ctx context.Context, userID int64, displayName string, initialBalance int64) (bool, error) {
	if userID == 0 {
		return false, fmt.Errorf("user_id cannot be zero")
	}
	if initialBalance < 0 {
		return false, fmt.Errorf("initial balance cannot be negative")
	}

	var created bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		created, err = s.insertAccount(ctx, tx, userID, displayName)
		if err != nil {
			return err
		}

		if !created {
			if displayName == "" {
				return nil
			}
			_, err = tx.ExecContext(ctx,
				`UPDATE accounts SET display_name = ?, updated_at = ? WHERE user_id = ? AND display_name <> ?;`,
				displayName, s.now(), userID, displayName)
			if err != nil {
				return fmt.Errorf("failed to update display name for user %d: %w", userID, err)
			}
			return nil
		}

		if initialBalance > 0 {
			if _, err := s.adjustTx(ctx, tx, userID, initialBalance, ReasonInitialGrant, ""); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to ensure account", "user_id", userID, "error", err)
		return false, err
	}

	if created {
		s.logger.InfoContext(ctx, "Account created", "user_id", userID, "initial_balance", initialBalance)
	}
	return created, nil
}

func (s *sqlxStore) GetAccount(ctx context.Context, userID int64) (*Account, error) {
	var acc Account
	err := s.db.GetContext(ctx, &acc, `
        SELECT user_id, display_name, balance, whitelisted, created_at, updated_at
        FROM accounts
        WHERE user_id = ?;
    `, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account for user %d: %w", userID, err)
	}
	return &acc, nil
}

func (s *sqlxStore) Balance(ctx context.Context, userID int64) (int64, error) {
	acc, err := s.GetAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	if acc == nil {
		return 0, nil
	}
	return acc.Balance, nil
}

func (s *sqlxStore) Adjust(ctx context.Context, userID int64, delta int64, reason, reference string) (int64, error) {
	if userID == 0 {
		return 0, fmt.Errorf("user_id cannot be zero")
	}
	if delta == 0 {
		return 0, ErrZeroDelta
	}

	var balance int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.insertAccount(ctx, tx, userID, ""); err != nil {
			return err
		}
		var err error
		balance, err = s.adjustTx(ctx, tx, userID, delta, reason, reference)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrInsufficientBalance) {
			s.logger.ErrorContext(ctx, "Balance adjustment failed",
				"user_id", userID, "delta", delta, "reason", reason, "reference", reference, "error", err)
		}
		return 0, err
	}

	s.logger.DebugContext(ctx, "Balance adjusted",
		"user_id", userID, "delta", delta, "balance", balance, "reason", reason, "reference", reference)
	return balance, nil
}

func (s *sqlxStore) IsWhitelisted(ctx context.Context, userID int64) (bool, error) {
	acc, err := s.GetAccount(ctx, userID)
	if err != nil {
		return false, err
	}
	return acc != nil && acc.Whitelisted, nil
}

func (s *sqlxStore) SetWhitelisted(ctx context.Context, userID int64, whitelisted bool) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.insertAccount(ctx, tx, userID, ""); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE accounts SET whitelisted = ?, updated_at = ? WHERE user_id = ?;`,
			whitelisted, s.now(), userID)
		if err != nil {
			return fmt.Errorf("failed to set whitelist for user %d: %w", userID, err)
		}
		return nil
	})
}

func (s *sqlxStore) DisplayName(ctx context.Context, userID int64) (string, error) {
	acc, err := s.GetAccount(ctx, userID)
	if err != nil {
		return "", err
	}
	if acc == nil {
		return "", nil
	}
	return acc.DisplayName, nil
}

func (s *sqlxStore) ListEntries(ctx context.Context, userID int64, limit int) ([]LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var entries []LedgerEntry
	err := s.db.SelectContext(ctx, &entries, `
        SELECT id, user_id, delta, balance_after, reason, reference, created_at
        FROM ledger_entries
        WHERE user_id = ?
        ORDER BY id DESC
        LIMIT ?;
    `, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries for user %d: %w", userID, err)
	}
	return entries, nil
}

func (s *sqlxStore) RecordReconciliation(ctx context.Context, r *Reconciliation) error {
	if r == nil {
		return fmt.Errorf("cannot record nil reconciliation")
	}
	r.CreatedAt = s.now()

	res, err := s.db.NamedExecContext(ctx, `
        INSERT INTO reconciliations (user_id, amount, reference, error, created_at)
        VALUES (:user_id, :amount, :reference, :error, :created_at);
    `, r)
	if err != nil {
		return fmt.Errorf("failed to record reconciliation for user %d: %w", r.UserID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		r.ID = id
	}
	return nil
}

func (s *sqlxStore) ListReconciliations(ctx context.Context) ([]Reconciliation, error) {
	var out []Reconciliation
	err := s.db.SelectContext(ctx, &out, `
        SELECT id, user_id, amount, reference, error, created_at, resolved_at
        FROM reconciliations
        WHERE resolved_at IS NULL
        ORDER BY id ASC;
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconciliations: %w", err)
	}
	return out, nil
}

// RunSQLMaintenance executes VACUUM and ANALYZE on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")
	startTime := time.Now()

	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		s.logger.ErrorContext(ctx, "VACUUM failed", "error", err)
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "ANALYZE;"); err != nil {
		s.logger.WarnContext(ctx, "ANALYZE failed", "error", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance completed", "duration", time.Since(startTime))
	return nil
}

// insertAccount creates an empty account row if none exists.
func (s *sqlxStore) insertAccount(ctx context.Context, tx *sqlx.Tx, userID int64, displayName string) (bool, error) {
	now := s.now()
	res, err := tx.ExecContext(ctx, `
        INSERT INTO accounts (user_id, display_name, balance, whitelisted, created_at, updated_at)
        VALUES (?, ?, 0, 0, ?, ?)
        ON CONFLICT (user_id) DO NOTHING;
    `, userID, displayName, now, now)
	if err != nil {
		return false, fmt.Errorf("failed to create account for user %d: %w", userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}

// adjustTx applies a relative delta in a single statement so the new balance
// never depends on a value read earlier, and journals it in the same tx.
func (s *sqlxStore) adjustTx(ctx context.Context, tx *sqlx.Tx, userID, delta int64, reason, reference string) (int64, error) {
	now := s.now()

	var balance int64
	err := tx.QueryRowxContext(ctx, `
        UPDATE accounts
        SET balance = balance + ?, updated_at = ?
        WHERE user_id = ? AND (? > 0 OR balance + ? >= 0)
        RETURNING balance;
    `, delta, now, userID, delta, delta).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrInsufficientBalance
	}
	if err != nil {
		return 0, fmt.Errorf("failed to adjust balance for user %d: %w", userID, err)
	}

	entry := LedgerEntry{
		UserID:       userID,
		Delta:        delta,
		BalanceAfter: balance,
		Reason:       reason,
		Reference:    reference,
		CreatedAt:    now,
	}
	if _, err := tx.NamedExecContext(ctx, `
        INSERT INTO ledger_entries (user_id, delta, balance_after, reason, reference, created_at)
        VALUES (:user_id, :delta, :balance_after, :reason, :reference, :created_at);
    `, entry); err != nil {
		return 0, fmt.Errorf("failed to journal adjustment for user %d: %w", userID, err)
	}
	return balance, nil
}

// withTx runs fn in a transaction, committing on success.
func (s *sqlxStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
