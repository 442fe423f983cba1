package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LeHak0/Neuro-Triage/internal/domain/model"
)

const (
	caseKeyPrefix  = "case:"
	caseRecentKey  = "case:recent"
	caseRecentSize = 50
)

// RedisCaseRepo stores case sessions in Redis with a TTL, so a dashboard
// restart does not lose in-flight cases. Recency is tracked in a sorted
// set scored by update time.
type RedisCaseRepo struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCaseRepo creates a Redis-backed case store.
func NewRedisCaseRepo(client redis.UniversalClient, ttl time.Duration) *RedisCaseRepo {
	return &RedisCaseRepo{client: client, ttl: ttl}
}

func (r *RedisCaseRepo) Save(ctx context.Context, sess *model.CaseSession) error {
	if sess == nil || sess.ID == "" {
		return ErrNotFound
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal case session: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, caseKeyPrefix+sess.ID, data, r.ttl)
	pipe.ZAdd(ctx, caseRecentKey, redis.Z{
		Score:  float64(sess.UpdatedAt.UnixMilli()),
		Member: sess.ID,
	})
	pipe.ZRemRangeByRank(ctx, caseRecentKey, 0, -(caseRecentSize + 1))
	pipe.Expire(ctx, caseRecentKey, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save case: %w", err)
	}
	return nil
}

func (r *RedisCaseRepo) GetByID(ctx context.Context, id string) (*model.CaseSession, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	data, err := r.client.Get(ctx, caseKeyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get case: %w", err)
	}

	var sess model.CaseSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal case session: %w", err)
	}
	return &sess, nil
}

func (r *RedisCaseRepo) Recent(ctx context.Context, limit int) ([]*model.CaseSession, error) {
	if limit <= 0 || limit > caseRecentSize {
		limit = caseRecentSize
	}

	ids, err := r.client.ZRevRange(ctx, caseRecentKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis recent cases: %w", err)
	}

	out := make([]*model.CaseSession, 0, len(ids))
	for _, id := range ids {
		sess, getErr := r.GetByID(ctx, id)
		if errors.Is(getErr, ErrNotFound) {
			// Expired session still referenced by the recency set.
			continue
		}
		if getErr != nil {
			return nil, getErr
		}
		out = append(out, sess)
	}
	return out, nil
}

// PruneOlderThan trims stale entries from the recency set. The session
// payloads themselves expire server-side via TTL.
func (r *RedisCaseRepo) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	removed, err := r.client.ZRemRangeByScore(ctx, caseRecentKey,
		"-inf", fmt.Sprintf("%d", cutoff.UnixMilli())).Result()
	if err != nil {
		return 0, fmt.Errorf("redis prune cases: %w", err)
	}
	return int(removed), nil
}

func (r *RedisCaseRepo) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, caseKeyPrefix+id)
	pipe.ZRem(ctx, caseRecentKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete case: %w", err)
	}
	return nil
}
