// Package cache keeps the last attack log snapshot in Redis so a restarted
// dashboard has something to show before the first poll completes.
package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned for a missing or expired key.
var ErrNotFound = errors.New("key not found")

// Config holds Redis connection settings.
type Config struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr" validate:"required_if=Enabled true"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db" validate:"gte=0"`
	Key          string        `yaml:"key"`
	TTL          time.Duration `yaml:"ttl"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled"`
}

// DefaultConfig returns the default cache settings. Caching is off.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Key:          "nids:attack-snapshot",
		TTL:          24 * time.Hour,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Client is the key/value subset the cache needs.
type Client interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// GoRedisClient wraps the go-redis client.
type GoRedisClient struct {
	client *redis.Client
}

// NewGoRedisClient connects to Redis and verifies the connection.
func NewGoRedisClient(ctx context.Context, cfg Config) (*GoRedisClient, error) {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &GoRedisClient{client: client}, nil
}

// Set stores a value with TTL.
func (g *GoRedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return g.client.Set(ctx, key, value, ttl).Err()
}

// Get retrieves a value.
func (g *GoRedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := g.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return val, nil
}

// Close closes the Redis connection.
func (g *GoRedisClient) Close() error {
	return g.client.Close()
}
