package citadelcbt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDraftTTL bounds how long an unpublished draft survives in Redis
const DefaultDraftTTL = 24 * time.Hour

// RedisDraftStore shares drafts between server instances
type RedisDraftStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisDraftStore connects to addr and checks the connection
func NewRedisDraftStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisDraftStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &RedisDraftStore{rdb: rdb, ttl: ttl}, nil
}

func draftKey(id string) string {
	return fmt.Sprintf("citadel:draft:%s", id)
}

// Add stores a draft with the configured TTL and assigns it an ID
func (rs *RedisDraftStore) Add(ctx context.Context, draft *Draft) (string, error) {
	newDraftID(draft)
	data, err := json.Marshal(draft)
	if err != nil {
		return "", fmt.Errorf("failed to marshal draft: %w", err)
	}
	if err := rs.rdb.Set(ctx, draftKey(draft.ID), data, rs.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store draft: %w", err)
	}
	return draft.ID, nil
}

// Get loads a draft
func (rs *RedisDraftStore) Get(ctx context.Context, id string) (*Draft, error) {
	raw, err := rs.rdb.Get(ctx, draftKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("draft %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	var draft Draft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	return &draft, nil
}

// Remove deletes a draft
func (rs *RedisDraftStore) Remove(ctx context.Context, id string) error {
	if err := rs.rdb.Del(ctx, draftKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// Close releases the connection pool
func (rs *RedisDraftStore) Close() error {
	return rs.rdb.Close()
}

// OpenDraftStore builds the draft store named by DRAFT_STORE
func OpenDraftStore(ctx context.Context, cfg *Config) (DraftStore, error) {
	switch cfg.DraftStore {
	case DraftsRedis:
		store, err := NewRedisDraftStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 0)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DraftsMemory, "":
		return NewDraftPool(0), nil
	default:
		return nil, fmt.Errorf("unknown draft store %q", cfg.DraftStore)
	}
}
