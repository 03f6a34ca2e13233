package database_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"vinotheque/internal/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func openSQLite() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	return gorm.Open(sqlite.Open(dsn), database.Config(false))
}

func TestConnectWithRetry_EventuallySucceeds(t *testing.T) {
	calls := 0
	open := func() (*gorm.DB, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection refused")
		}
		return openSQLite()
	}

	db, err := database.ConnectWithRetry(context.Background(), open, 5, time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, db)
	assert.Equal(t, 3, calls)
	assert.NoError(t, database.Close(db))
}

func TestConnectWithRetry_GivesUp(t *testing.T) {
	calls := 0
	open := func() (*gorm.DB, error) {
		calls++
		return nil, errors.New("connection refused")
	}

	_, err := database.ConnectWithRetry(context.Background(), open, 4, time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Contains(t, err.Error(), "after 4 attempts")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestConnectWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	open := func() (*gorm.DB, error) {
		calls++
		cancel()
		return nil, errors.New("connection refused")
	}

	_, err := database.ConnectWithRetry(ctx, open, 10, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestConnectWithRetry_ClosesPoolThatFailsPing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var opened *gorm.DB
	open := func() (*gorm.DB, error) {
		db, err := openSQLite()
		opened = db
		return db, err
	}

	_, err := database.ConnectWithRetry(ctx, open, 3, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, opened)

	sqlDB, err := opened.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping(), "pool should be closed after a failed ping")
}

func TestMigrate(t *testing.T) {
	db, err := openSQLite()
	require.NoError(t, err)
	defer database.Close(db)

	require.NoError(t, database.Migrate(db))
	for _, table := range []string{"users", "products", "product_images"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}
