package snapshot

import (
	"context"
	"errors"
	"time"
)

type kvStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartSnapshotKey(sessionID string) string
}

// RedisTier keeps snapshots in Redis with a sliding TTL.
type RedisTier struct {
	kv  kvStore
	ttl time.Duration
}

func NewRedisTier(kv kvStore, ttl time.Duration) (*RedisTier, error) {
	if kv == nil {
		return nil, errors.New("redis client required")
	}
	return &RedisTier{kv: kv, ttl: ttl}, nil
}

func (t *RedisTier) Name() string { return "redis" }

func (t *RedisTier) Save(ctx context.Context, sessionID string, payload []byte, _ Summary) error {
	return t.kv.Set(ctx, t.kv.CartSnapshotKey(sessionID), payload, t.ttl)
}

func (t *RedisTier) Load(ctx context.Context, sessionID string) ([]byte, error) {
	raw, found, err := t.kv.Get(ctx, t.kv.CartSnapshotKey(sessionID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return []byte(raw), nil
}

func (t *RedisTier) Delete(ctx context.Context, sessionID string) error {
	return t.kv.Del(ctx, t.kv.CartSnapshotKey(sessionID))
}
