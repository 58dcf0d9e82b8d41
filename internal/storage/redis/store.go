// Package redis holds the snapshot store and drift report cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/privacychecker/audit-core/internal/audit"
)

// ErrNoSnapshot means the domain has never been scanned.
var ErrNoSnapshot = errors.New("no snapshot stored")

type Client struct {
	*redis.Client
}

func NewClient(addr, password string, db int) *Client {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		opt = &redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}
	}
	return &Client{redis.NewClient(opt)}
}

func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, expiration).Err()
}

func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := c.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func snapshotKey(domain string) string {
	return fmt.Sprintf("history:%s", domain)
}

func driftKey(domain string) string {
	return fmt.Sprintf("drift:%s", domain)
}

// GetSnapshot loads the stored snapshot for domain. Callers must load
// the prior snapshot before calling PutSnapshot; the store keeps only
// the latest one per domain.
func (c *Client) GetSnapshot(ctx context.Context, domain string) (*audit.Snapshot, error) {
	var snap audit.Snapshot
	err := c.GetJSON(ctx, snapshotKey(domain), &snap)
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, domain)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return &snap, nil
}

// PutSnapshot overwrites the domain's snapshot. No TTL; the snapshot is
// the comparison baseline for whenever the next scan happens.
func (c *Client) PutSnapshot(ctx context.Context, snap audit.Snapshot) error {
	if err := c.SetJSON(ctx, snapshotKey(snap.Domain), snap, 0); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

func (c *Client) CacheDriftReport(ctx context.Context, report *audit.DriftReport, ttl time.Duration) error {
	return c.SetJSON(ctx, driftKey(report.Domain), report, ttl)
}

func (c *Client) GetCachedDriftReport(ctx context.Context, domain string) (*audit.DriftReport, error) {
	var report audit.DriftReport
	err := c.GetJSON(ctx, driftKey(domain), &report)
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: no drift report for %s", ErrNoSnapshot, domain)
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}
