package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ecovend/backend/internal/models"
)

// AccountStore persists account snapshots keyed by identity.
type AccountStore interface {
	Get(ctx context.Context, identity string) (models.Account, error)
	// Create stores a new account and fails with ErrAlreadyExists when the
	// identity is taken.
	Create(ctx context.Context, acct models.Account) (models.Account, error)
	// Put overwrites an existing account. The write succeeds only when
	// acct.Version matches the stored version; otherwise ErrStaleAccount.
	Put(ctx context.Context, acct models.Account) (models.Account, error)
	Identities(ctx context.Context) ([]string, error)
}

// SQLAccountStore is an AccountStore over PostgreSQL or SQLite.
type SQLAccountStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewSQLAccountStore(db *sql.DB, dialect Dialect) *SQLAccountStore {
	return &SQLAccountStore{db: db, dialect: dialect, now: time.Now}
}

func (s *SQLAccountStore) Get(ctx context.Context, identity string) (models.Account, error) {
	var acct models.Account
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(`
		SELECT identity, credential, balance, total_items, total_weight_grams, activity_log, version
		FROM accounts WHERE identity = $1
	`), identity).Scan(
		&acct.Identity, &acct.Credential, &acct.Balance,
		&acct.TotalItemsRecycled, &acct.TotalWeightGrams, &acct.ActivityLog, &acct.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, models.ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("get account: %w", err)
	}
	if acct.ActivityLog == nil {
		acct.ActivityLog = models.ActivityLog{}
	}
	return acct, nil
}

func (s *SQLAccountStore) Create(ctx context.Context, acct models.Account) (models.Account, error) {
	now := s.now().UnixMilli()
	result, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO accounts (identity, credential, balance, total_items, total_weight_grams, activity_log, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $7)
		ON CONFLICT (identity) DO NOTHING
	`), acct.Identity, acct.Credential, acct.Balance, acct.TotalItemsRecycled, acct.TotalWeightGrams, acct.ActivityLog, now)
	if err != nil {
		return acct, fmt.Errorf("create account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return acct, fmt.Errorf("create account: %w", err)
	}
	if rowsAffected == 0 {
		return acct, models.ErrAlreadyExists
	}

	acct.Version = 1
	return acct, nil
}

func (s *SQLAccountStore) Put(ctx context.Context, acct models.Account) (models.Account, error) {
	result, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		UPDATE accounts
		SET credential = $1, balance = $2, total_items = $3, total_weight_grams = $4,
			activity_log = $5, version = version + 1, updated_at = $6
		WHERE identity = $7 AND version = $8
	`), acct.Credential, acct.Balance, acct.TotalItemsRecycled, acct.TotalWeightGrams,
		acct.ActivityLog, s.now().UnixMilli(), acct.Identity, acct.Version)
	if err != nil {
		return acct, fmt.Errorf("put account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return acct, fmt.Errorf("put account: %w", err)
	}
	if rowsAffected == 0 {
		return acct, fmt.Errorf("%w: %s at version %d", models.ErrStaleAccount, acct.Identity, acct.Version)
	}

	acct.Version++
	return acct, nil
}

func (s *SQLAccountStore) Identities(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT identity FROM accounts ORDER BY identity`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var identities []string
	for rows.Next() {
		var identity string
		if err := rows.Scan(&identity); err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	return identities, rows.Err()
}
