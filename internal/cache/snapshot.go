package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"nids-console/internal/telemetry"
)

// SnapshotCache stores one telemetry snapshot as JSON under a fixed key.
type SnapshotCache struct {
	client Client
	cfg    Config
}

// NewSnapshotCache creates a cache over client.
func NewSnapshotCache(client Client, cfg Config) *SnapshotCache {
	if cfg.Key == "" {
		cfg.Key = DefaultConfig().Key
	}
	return &SnapshotCache{client: client, cfg: cfg}
}

// Load returns the cached snapshot or ErrNotFound.
func (c *SnapshotCache) Load(ctx context.Context) (*telemetry.Snapshot, error) {
	data, err := c.client.Get(ctx, c.cfg.Key)
	if err != nil {
		return nil, err
	}
	var snap telemetry.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode cached snapshot: %w", err)
	}
	return &snap, nil
}

// Store replaces the cached snapshot.
func (c *SnapshotCache) Store(ctx context.Context, snap telemetry.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.cfg.Key, data, c.cfg.TTL); err != nil {
		return fmt.Errorf("cache snapshot: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (c *SnapshotCache) Close() error {
	return c.client.Close()
}
