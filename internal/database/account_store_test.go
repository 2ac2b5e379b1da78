package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ecovend/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountColumns = []string{"identity", "credential", "balance", "total_items", "total_weight_grams", "activity_log", "version"}

func newMockStore(t *testing.T) (*SQLAccountStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewSQLAccountStore(db, DialectPostgres)
	store.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return store, mock
}

func TestSQLAccountStore_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		store, mock := newMockStore(t)
		log := `[{"id":"a1","kind":"RECYCLE_CREDIT","title":"Welcome Bonus","coinDelta":100,"createdAt":1,"materialCategory":"PAPER"}]`
		mock.ExpectQuery("SELECT identity, credential, balance, total_items, total_weight_grams, activity_log, version FROM accounts WHERE identity = \\$1").
			WithArgs("eco@warrior.com").
			WillReturnRows(sqlmock.NewRows(accountColumns).AddRow("eco@warrior.com", "hash", 100, 0, 0, log, 3))

		acct, err := store.Get(ctx, "eco@warrior.com")
		require.NoError(t, err)
		assert.Equal(t, int64(100), acct.Balance)
		assert.Equal(t, 3, acct.Version)
		require.Len(t, acct.ActivityLog, 1)
		assert.Equal(t, models.RecycleCredit{Category: models.CategoryPaper}, acct.ActivityLog[0].Detail)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT identity").WithArgs("ghost@ecovend.ai").WillReturnError(sql.ErrNoRows)

		_, err := store.Get(ctx, "ghost@ecovend.ai")
		assert.ErrorIs(t, err, models.ErrAccountNotFound)
	})

	t.Run("query failure", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT identity").WillReturnError(errors.New("connection reset"))

		_, err := store.Get(ctx, "eco@warrior.com")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, models.ErrAccountNotFound)
	})
}

func TestSQLAccountStore_Create(t *testing.T) {
	ctx := context.Background()
	acct := models.Account{Identity: "eco@warrior.com", Credential: "hash", Balance: 100, ActivityLog: models.ActivityLog{}}

	t.Run("inserted", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO accounts").
			WithArgs("eco@warrior.com", "hash", int64(100), int64(0), int64(0), "[]", int64(1_700_000_000_000)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		created, err := store.Create(ctx, acct)
		require.NoError(t, err)
		assert.Equal(t, 1, created.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("identity taken", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := store.Create(ctx, acct)
		assert.ErrorIs(t, err, models.ErrAlreadyExists)
	})
}

func TestSQLAccountStore_Put(t *testing.T) {
	ctx := context.Background()
	acct := models.Account{Identity: "eco@warrior.com", Credential: "hash", Balance: 90, ActivityLog: models.ActivityLog{}, Version: 2}

	t.Run("version matches", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("UPDATE accounts SET (.+) version = version \\+ 1, updated_at = \\$6 WHERE identity = \\$7 AND version = \\$8").
			WithArgs("hash", int64(90), int64(0), int64(0), "[]", sqlmock.AnyArg(), "eco@warrior.com", 2).
			WillReturnResult(sqlmock.NewResult(0, 1))

		saved, err := store.Put(ctx, acct)
		require.NoError(t, err)
		assert.Equal(t, 3, saved.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale snapshot", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("UPDATE accounts").WillReturnResult(sqlmock.NewResult(0, 0))

		saved, err := store.Put(ctx, acct)
		assert.ErrorIs(t, err, models.ErrStaleAccount)
		assert.Equal(t, 2, saved.Version)
	})
}

func TestDialect_Rebind(t *testing.T) {
	query := "UPDATE accounts SET balance = $1 WHERE identity = $2 AND version = $10"

	assert.Equal(t, query, DialectPostgres.Rebind(query))
	assert.Equal(t, "UPDATE accounts SET balance = ?1 WHERE identity = ?2 AND version = ?10", DialectSQLite.Rebind(query))
}

func TestSQLAccountStore_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(ctx, db, DialectSQLite))
	require.NoError(t, Migrate(ctx, db, DialectSQLite), "migrations must be repeatable")

	store := NewSQLAccountStore(db, DialectSQLite)
	face := decimal.RequireFromString("5.00")
	acct := models.Account{
		Identity:           "eco@warrior.com",
		Credential:         "hash",
		Balance:            60,
		TotalItemsRecycled: 1,
		TotalWeightGrams:   250,
		ActivityLog: models.ActivityLog{
			{ID: "a3", Title: "Starbucks Voucher", CoinDelta: -50, CreatedAt: 3, Detail: models.VoucherRedemption{
				Provider: "Starbucks", FaceValue: &face, Code: "AB12CD34", ExpiresAt: 3 + 2_592_000_000,
			}},
			{ID: "a2", Title: "Can", CoinDelta: 10, CreatedAt: 2, Detail: models.RecycleCredit{Category: models.CategoryMetal}},
			{ID: "a1", Title: "Welcome Bonus", CoinDelta: 100, CreatedAt: 1, Detail: models.RecycleCredit{Category: models.CategoryPaper}},
		},
	}

	created, err := store.Create(ctx, acct)
	require.NoError(t, err)

	_, err = store.Create(ctx, acct)
	assert.ErrorIs(t, err, models.ErrAlreadyExists)

	loaded, err := store.Get(ctx, acct.Identity)
	require.NoError(t, err)
	assert.Equal(t, created.Version, loaded.Version)
	assert.Equal(t, acct.Balance, loaded.Balance)
	assert.Equal(t, acct.TotalWeightGrams, loaded.TotalWeightGrams)
	assert.Equal(t, acct.ActivityLog[1:], loaded.ActivityLog[1:])
	voucher := loaded.ActivityLog[0].Detail.(models.VoucherRedemption)
	assert.Equal(t, "AB12CD34", voucher.Code)
	assert.True(t, voucher.FaceValue.Equal(face))

	loaded.Balance = 70
	loaded.ActivityLog = append(models.ActivityLog{{ID: "a4", Title: "Can", CoinDelta: 10, CreatedAt: 4, Detail: models.RecycleCredit{Category: models.CategoryMetal}}}, loaded.ActivityLog...)
	saved, err := store.Put(ctx, loaded)
	require.NoError(t, err)
	assert.Equal(t, created.Version+1, saved.Version)

	// the pre-update snapshot is now stale
	_, err = store.Put(ctx, created)
	assert.ErrorIs(t, err, models.ErrStaleAccount)

	reloaded, err := store.Get(ctx, acct.Identity)
	require.NoError(t, err)
	assert.Equal(t, int64(70), reloaded.Balance)
	assert.Len(t, reloaded.ActivityLog, 4)

	identities, err := store.Identities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"eco@warrior.com"}, identities)

	_, err = store.Get(ctx, "ghost@ecovend.ai")
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}
