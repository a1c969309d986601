package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fincore/pkg/config"
)

func TestNewClientDisabled(t *testing.T) {
	client, err := New(context.Background(), config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
}

func TestCacheDisabled(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(Disabled(), "test")

	var result string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	assert.NoError(t, cache.Delete(ctx, "key"))

	n, err := cache.DeletePattern(ctx, "*")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetOrSetDisabledCallsThrough(t *testing.T) {
	cache := NewCache(nil, "test")

	calls := 0
	fn := func() (interface{}, error) {
		calls++
		return map[string]int{"rows": 3}, nil
	}

	var dest map[string]int
	require.NoError(t, cache.GetOrSet(context.Background(), "k", &dest, time.Minute, fn))
	require.NoError(t, cache.GetOrSet(context.Background(), "k", &dest, time.Minute, fn))

	assert.Equal(t, 2, calls)
	assert.Equal(t, 3, dest["rows"])
}

func TestGetOrSetPropagatesError(t *testing.T) {
	cache := NewCache(Disabled(), "test")
	boom := errors.New("boom")

	var dest string
	err := cache.GetOrSet(context.Background(), "k", &dest, time.Minute, func() (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "history:600000:daily:30", HistoryKey("600000", "daily", 30))
	assert.Equal(t, "financial:600000:quarter:8", FinancialKey("600000", "quarter", 8))
	assert.Equal(t, "*:600000:*", SymbolPattern("600000"))
}

func TestCacheIntegration(t *testing.T) {
	if os.Getenv("REDIS_HOST") == "" || testing.Short() {
		t.Skip("REDIS_HOST not set, skipping integration test")
	}
	ctx := context.Background()

	client, err := New(ctx, config.RedisConfig{
		Host:    os.Getenv("REDIS_HOST"),
		Port:    "6379",
		Enabled: true,
	})
	require.NoError(t, err)
	defer client.Close()

	cache := NewCache(client, "fincore-test")
	require.NoError(t, cache.Set(ctx, HistoryKey("000001", "daily", 5), []int{1, 2}, time.Minute))

	var got []int
	found, err := cache.Get(ctx, HistoryKey("000001", "daily", 5), &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []int{1, 2}, got)

	n, err := cache.DeletePattern(ctx, SymbolPattern("000001"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
