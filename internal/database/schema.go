package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

// Dialect is the SQL flavour spoken by a connection.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var placeholderPattern = regexp.MustCompile(`\$(\d+)`)

// Rebind rewrites $n placeholders into the dialect's numbered form.
func (d Dialect) Rebind(query string) string {
	if d == DialectSQLite {
		return placeholderPattern.ReplaceAllString(query, "?$1")
	}
	return query
}

func (d Dialect) jsonType() string {
	if d == DialectPostgres {
		return "JSONB"
	}
	return "TEXT"
}

func schema(d Dialect) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS accounts (
			identity TEXT PRIMARY KEY,
			credential TEXT NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			total_items BIGINT NOT NULL DEFAULT 0 CHECK (total_items >= 0),
			total_weight_grams BIGINT NOT NULL DEFAULT 0 CHECK (total_weight_grams >= 0),
			activity_log %s NOT NULL DEFAULT '[]',
			version INTEGER NOT NULL DEFAULT 1,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`, d.jsonType()),
		`CREATE INDEX IF NOT EXISTS idx_accounts_updated_at ON accounts (updated_at)`,
	}
}

// Migrate creates the tables the account store needs. It is safe to run
// repeatedly.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	for _, stmt := range schema(dialect) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
