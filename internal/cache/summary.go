package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RMahshie/sleepsense/pkg/models"
	"github.com/go-redis/redis/v8"
)

// ErrMiss means no summary is cached for the fingerprint
var ErrMiss = errors.New("cache miss")

const keyPrefix = "sleepsense:summary:"

// SummaryCache stores analysis summaries by record fingerprint
type SummaryCache interface {
	Get(ctx context.Context, fingerprint string) (*models.AnalysisSummary, error)
	Set(ctx context.Context, sum *models.AnalysisSummary) error
	Delete(ctx context.Context, fingerprint string) error
}

// NewRedisClient connects to addr. Ping is left to the caller.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

type redisSummaryCache struct {
	c   *redis.Client
	ttl time.Duration
}

// NewRedisSummaryCache keeps entries for ttl; zero means no expiry
func NewRedisSummaryCache(c *redis.Client, ttl time.Duration) SummaryCache {
	return &redisSummaryCache{c: c, ttl: ttl}
}

func key(fingerprint string) string {
	return keyPrefix + fingerprint
}

func (r *redisSummaryCache) Get(ctx context.Context, fingerprint string) (*models.AnalysisSummary, error) {
	val, err := r.c.Get(ctx, key(fingerprint)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("failed to read cached summary: %w", err)
	}

	var sum models.AnalysisSummary
	if err := json.Unmarshal(val, &sum); err != nil {
		return nil, fmt.Errorf("failed to decode cached summary: %w", err)
	}
	return &sum, nil
}

func (r *redisSummaryCache) Set(ctx context.Context, sum *models.AnalysisSummary) error {
	if sum == nil || sum.RecordFingerprint == "" {
		return fmt.Errorf("summary has no record fingerprint")
	}
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := r.c.Set(ctx, key(sum.RecordFingerprint), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache summary: %w", err)
	}
	return nil
}

func (r *redisSummaryCache) Delete(ctx context.Context, fingerprint string) error {
	return r.c.Del(ctx, key(fingerprint)).Err()
}
