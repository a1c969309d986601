package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fincore/pkg/config"
)

func testConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" || testing.Short() {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	return config.DatabaseConfig{
		URL:             url,
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(context.Background(), config.DatabaseConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewWithInvalidURL(t *testing.T) {
	_, err := New(context.Background(), config.DatabaseConfig{URL: "invalid://url"})
	assert.Error(t, err)
}

func TestCloseNil(t *testing.T) {
	var db *DB
	assert.NotPanics(t, db.Close)
	assert.NotPanics(t, (&DB{}).Close)
}

func TestHealthCheck(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	status, err := db.HealthCheck(ctx)
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Equal(t, int32(4), status.Stats.MaxConns)

	// double close must not panic
	db.Close()
	db.Close()
}

func TestWithTxRollsBack(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	sentinel := assert.AnError
	err = db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT 1`); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	err = db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `SELECT 1`)
		return err
	})
	assert.NoError(t, err)
}
