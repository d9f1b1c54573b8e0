// internal/db/redis.go
package db

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRedisHealthcheck = errors.New("redis healthcheck failed")

type RedisConfig struct {
	Host            string        `env:"REDIS_HOST" envDefault:"localhost"`
	Port            int           `env:"REDIS_PORT" envDefault:"6379"`
	Password        string        `env:"REDIS_PASSWORD"`
	DB              int           `env:"REDIS_DB" envDefault:"0"`
	TLS             bool          `env:"REDIS_TLS" envDefault:"false"`
	PoolSize        int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MaxRetries      int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	MinRetryBackoff time.Duration `env:"REDIS_MIN_RETRY_BACKOFF" envDefault:"50ms"`
	MaxRetryBackoff time.Duration `env:"REDIS_MAX_RETRY_BACKOFF" envDefault:"2s"`
	ConnectTimeout  time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"10s"`
	CommandTimeout  time.Duration `env:"REDIS_COMMAND_TIMEOUT" envDefault:"5s"`
}

func (c RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Options maps the config onto go-redis options. The client dials lazily,
// so building options never touches the network.
func (c RedisConfig) Options() *redis.Options {
	opts := &redis.Options{
		Addr:            c.Addr(),
		Password:        c.Password,
		DB:              c.DB,
		PoolSize:        c.PoolSize,
		MaxRetries:      c.MaxRetries,
		MinRetryBackoff: c.MinRetryBackoff,
		MaxRetryBackoff: c.MaxRetryBackoff,
		DialTimeout:     c.ConnectTimeout,
		ReadTimeout:     c.CommandTimeout,
		WriteTimeout:    c.CommandTimeout,
	}
	if c.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: c.Host,
		}
	}
	return opts
}

// NewRedisClient builds the single shared client and verifies connectivity.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(cfg.Options())

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}

	return client, nil
}

// RedisHealthcheck returns a check for readiness endpoints.
func RedisHealthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrRedisHealthcheck, err)
		}
		return nil
	}
}
