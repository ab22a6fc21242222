package content

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hansjm10/idle-simcore/internal/infrastructure/cache"
	"github.com/hansjm10/idle-simcore/pkg/simerrors"
)

// RedisValidationCache is a ValidationCache backed by internal/infrastructure
// cache.RedisCache, for hosts running multiple validator processes that
// should share one fingerprint->Result cache. It implements the same
// interface as LRUValidationCache but never falls back to it; a host wanting
// both tiers composes them itself.
type RedisValidationCache struct {
	redis *cache.RedisCache
	ttl   time.Duration
	keyPrefix string
}

// NewRedisValidationCache wraps an already-connected RedisCache. ttl <= 0
// means entries never expire.
func NewRedisValidationCache(redisCache *cache.RedisCache, ttl time.Duration) *RedisValidationCache {
	return &RedisValidationCache{redis: redisCache, ttl: ttl, keyPrefix: "simcore:content-validation:"}
}

type redisRecord struct {
	Normalized *NormalizedPack `json:"normalized,omitempty"`
	Errors     []redisIssue    `json:"errors,omitempty"`
	Warnings   []redisIssue    `json:"warnings,omitempty"`
}

type redisIssue struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Path       string `json:"path"`
	Severity   string `json:"severity"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Get returns a cached Result for fingerprint, if present and decodable.
func (c *RedisValidationCache) Get(fingerprint string) (Result, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	raw, err := c.redis.Get(ctx, c.keyPrefix+fingerprint)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return Result{}, false
		}
		return Result{}, false
	}

	var record redisRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return Result{}, false
	}

	return Result{
		Normalized: record.Normalized,
		Errors:     toValidationErrors(record.Errors),
		Warnings:   toValidationErrors(record.Warnings),
	}, true
}

// Put stores result under fingerprint.
func (c *RedisValidationCache) Put(fingerprint string, result Result) {
	record := redisRecord{
		Normalized: result.Normalized,
		Errors:     fromValidationErrors(result.Errors),
		Warnings:   fromValidationErrors(result.Warnings),
	}

	encoded, err := json.Marshal(record)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = c.redis.Set(ctx, c.keyPrefix+fingerprint, encoded, c.ttl)
}

func fromValidationErrors(errs simerrors.ValidationErrors) []redisIssue {
	if len(errs) == 0 {
		return nil
	}
	out := make([]redisIssue, len(errs))
	for i, e := range errs {
		out[i] = redisIssue{Code: e.Code, Message: e.Message, Path: e.Path, Severity: string(e.Severity), Suggestion: e.Suggestion}
	}
	return out
}

func toValidationErrors(issues []redisIssue) simerrors.ValidationErrors {
	if len(issues) == 0 {
		return nil
	}
	out := make(simerrors.ValidationErrors, len(issues))
	for i, issue := range issues {
		out[i] = simerrors.ValidationError{
			Code:       issue.Code,
			Message:    issue.Message,
			Path:       issue.Path,
			Severity:   simerrors.Severity(issue.Severity),
			Suggestion: issue.Suggestion,
		}
	}
	return out
}
