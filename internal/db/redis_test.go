package db

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisConfigOptions(t *testing.T) {
	cfg := RedisConfig{
		Host:            "redis.local",
		Port:            6380,
		Password:        "pw",
		DB:              3,
		TLS:             true,
		PoolSize:        5,
		MaxRetries:      3,
		MinRetryBackoff: 50 * time.Millisecond,
		MaxRetryBackoff: 2 * time.Second,
		ConnectTimeout:  10 * time.Second,
		CommandTimeout:  5 * time.Second,
	}

	opts := cfg.Options()
	assert.Equal(t, "redis.local:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 3, opts.MaxRetries)
	assert.Equal(t, 10*time.Second, opts.DialTimeout)
	assert.Equal(t, 5*time.Second, opts.ReadTimeout)
	assert.Equal(t, 5*time.Second, opts.WriteTimeout)
	require.NotNil(t, opts.TLSConfig)
	assert.Equal(t, "redis.local", opts.TLSConfig.ServerName)

	cfg.TLS = false
	assert.Nil(t, cfg.Options().TLSConfig)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := RedisConfig{
		Host:           mr.Host(),
		ConnectTimeout: time.Second,
		CommandTimeout: time.Second,
	}
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	cfg.Port = port

	client, err := NewRedisClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	check := RedisHealthcheck(client)
	assert.NoError(t, check(context.Background()))

	mr.Close()
	err = check(context.Background())
	assert.ErrorIs(t, err, ErrRedisHealthcheck)
}

func TestNewRedisClientUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := RedisConfig{
		Host:           mr.Host(),
		MaxRetries:     -1,
		ConnectTimeout: 200 * time.Millisecond,
		CommandTimeout: 200 * time.Millisecond,
	}
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	cfg.Port = port
	mr.Close()

	_, err = NewRedisClient(context.Background(), cfg)
	assert.Error(t, err)
}
