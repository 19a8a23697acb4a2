package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/attempt-engine/internal/utils"
)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger utils.Logger
}

// NewRedisStore returns a DraftStore backed by a Redis hash per attempt.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger utils.Logger) DraftStore {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &redisStore{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// NewRedisStoreFromURL connects using a redis:// URL from configuration.
func NewRedisStoreFromURL(url string, ttl time.Duration, logger utils.Logger) (DraftStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), ttl, logger), nil
}

func draftKey(assessmentID uint) string {
	return fmt.Sprintf("attempt:%d:drafts", assessmentID)
}

func (r *redisStore) SaveDraft(ctx context.Context, assessmentID uint, questionIndex int, text string) error {
	key := draftKey(assessmentID)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, strconv.Itoa(questionIndex), text)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

func (r *redisStore) LoadDrafts(ctx context.Context, assessmentID uint) (map[int]string, error) {
	fields, err := r.client.HGetAll(ctx, draftKey(assessmentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load drafts: %w", err)
	}

	drafts := make(map[int]string, len(fields))
	for field, text := range fields {
		idx, err := strconv.Atoi(field)
		if err != nil {
			r.logger.Warn("Skipping draft with non-numeric index", "field", field)
			continue
		}
		drafts[idx] = text
	}
	return drafts, nil
}

func (r *redisStore) Clear(ctx context.Context, assessmentID uint) error {
	if err := r.client.Del(ctx, draftKey(assessmentID)).Err(); err != nil {
		return fmt.Errorf("failed to clear drafts: %w", err)
	}
	return nil
}
