package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDatabase(t *testing.T) Database {
	t.Helper()
	url := "sqlite:///" + filepath.Join(t.TempDir(), "test.db")
	db, err := NewDatabase(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDatabaseSQLite(t *testing.T) {
	db := newTestDatabase(t)
	assert.True(t, db.IsSQLite())
	assert.False(t, db.IsPostgres())
}

func TestNewDatabaseUnsupportedDriver(t *testing.T) {
	_, err := NewDatabase(context.Background(), "mysql://localhost/db")
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestSessionExecutesQueries(t *testing.T) {
	db := newTestDatabase(t)

	var result int
	err := db.Session(context.Background()).Raw("SELECT 1").Scan(&result).Error
	require.NoError(t, err)
	assert.Equal(t, 1, result)
}

func TestWithTransactionCommits(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.Session(ctx).Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)").Error)

	err := WithTransaction(ctx, db, func(tx *gorm.DB) error {
		return tx.Exec("INSERT INTO items (name) VALUES ('a')").Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Session(ctx).Raw("SELECT COUNT(*) FROM items").Scan(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.Session(ctx).Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)").Error)

	wantErr := errors.New("boom")
	err := WithTransaction(ctx, db, func(tx *gorm.DB) error {
		if err := tx.Exec("INSERT INTO items (name) VALUES ('a')").Error; err != nil {
			return err
		}
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	var count int64
	require.NoError(t, db.Session(ctx).Raw("SELECT COUNT(*) FROM items").Scan(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestWithTransactionResult(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	got, err := WithTransactionResult(ctx, db, func(tx *gorm.DB) (int, error) {
		var n int
		if err := tx.Raw("SELECT 41 + 1").Scan(&n).Error; err != nil {
			return 0, err
		}
		return n, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}
