// Package middleware holds gin middleware shared by the API routes.
package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/intercity-tours/booking/pkg/response"
)

const (
	// IdempotencyKeyHeader carries the client-chosen retry key.
	IdempotencyKeyHeader = "X-Idempotency-Key"
	// IdempotencyKeyPrefix namespaces the records in Redis.
	IdempotencyKeyPrefix = "idempotency:"
)

// IdempotencyStatus tracks a record through its two phases.
type IdempotencyStatus string

const (
	StatusProcessing IdempotencyStatus = "processing"
	StatusCompleted  IdempotencyStatus = "completed"
)

// IdempotencyRecord is the cached outcome of one keyed request. While
// the request runs only Key, Status, RequestHash and CreatedAt are
// set; the response fields arrive on completion.
type IdempotencyRecord struct {
	Key          string            `json:"key"`
	Status       IdempotencyStatus `json:"status"`
	RequestHash  string            `json:"request_hash"`
	ResponseCode int               `json:"response_code"`
	ResponseBody string            `json:"response_body"`
	CreatedAt    time.Time         `json:"created_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// RedisClient is the slice of go-redis the middleware needs, narrow so
// tests can fake it.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// IdempotencyConfig tunes the middleware.
type IdempotencyConfig struct {
	Redis RedisClient
	// TTL bounds how long a completed response stays replayable.
	TTL time.Duration
	// ProcessingTTL bounds the in-flight claim, so a crashed request
	// cannot wedge its key for longer than this.
	ProcessingTTL time.Duration
	// SkipPaths bypass the key requirement. A trailing * matches by
	// prefix.
	SkipPaths []string
	// RequiredMethods lists the mutating methods that must carry a key.
	RequiredMethods []string
	// IncludeBodyInHash / IncludePathInHash choose what identifies a
	// request when detecting key reuse.
	IncludeBodyInHash bool
	IncludePathInHash bool
}

// DefaultIdempotencyConfig replays completed responses for a day and
// holds in-flight claims for a minute.
func DefaultIdempotencyConfig(redis RedisClient) *IdempotencyConfig {
	return &IdempotencyConfig{
		Redis:             redis,
		TTL:               24 * time.Hour,
		ProcessingTTL:     60 * time.Second,
		RequiredMethods:   []string{"POST", "PUT", "PATCH", "DELETE"},
		IncludeBodyInHash: true,
		IncludePathInHash: true,
	}
}

// IdempotencyMiddleware makes keyed mutating requests safe to retry: a
// replay with the same key and body gets the first response back, a
// different body under the same key is refused, and a still-running
// request conflicts. Redis being down fails open — a double booking is
// caught by the seat locks, an unavailable API is not caught by
// anything.
func IdempotencyMiddleware(config *IdempotencyConfig) gin.HandlerFunc {
	if config.ProcessingTTL == 0 {
		config.ProcessingTTL = 60 * time.Second
	}

	return func(c *gin.Context) {
		if skipPath(c.Request.URL.Path, config.SkipPaths) || !requiresKey(c.Request.Method, config.RequiredMethods) {
			c.Next()
			return
		}

		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				response.Error("MISSING_IDEMPOTENCY_KEY", "X-Idempotency-Key header is required"))
			return
		}

		var body []byte
		if c.Request.Body != nil && config.IncludeBodyInHash {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}
		hash := config.requestHash(c, body)
		redisKey := IdempotencyKeyPrefix + key
		ctx := c.Request.Context()

		existing, err := loadRecord(ctx, config.Redis, redisKey)
		if err != nil && !errors.Is(err, redis.Nil) {
			c.Next()
			return
		}
		if existing != nil {
			replay(c, existing, hash)
			return
		}

		record := &IdempotencyRecord{
			Key:         key,
			Status:      StatusProcessing,
			RequestHash: hash,
			CreatedAt:   time.Now(),
		}
		if !claimKey(ctx, config.Redis, redisKey, record, config.ProcessingTTL) {
			// Lost the claim race: whoever won is either still running
			// or already finished.
			if existing, _ = loadRecord(ctx, config.Redis, redisKey); existing != nil {
				replay(c, existing, hash)
				return
			}
		}

		rw := &captureWriter{ResponseWriter: c.Writer, body: bytes.NewBuffer(nil)}
		c.Writer = rw
		c.Next()

		now := time.Now()
		record.Status = StatusCompleted
		record.ResponseCode = rw.status
		record.ResponseBody = rw.body.String()
		record.CompletedAt = &now
		storeRecord(ctx, config.Redis, redisKey, record, config.TTL)
	}
}

// replay answers from an existing record: cached response on a match,
// 422 on a different request under the same key, 409 while the first
// request is still in flight.
func replay(c *gin.Context, record *IdempotencyRecord, hash string) {
	if record.RequestHash != hash {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity,
			response.Error("IDEMPOTENCY_KEY_REUSED", "Idempotency key already used with different request"))
		return
	}
	if record.Status == StatusProcessing {
		c.AbortWithStatusJSON(http.StatusConflict,
			response.Error("REQUEST_IN_PROGRESS", "A request with this idempotency key is already being processed"))
		return
	}
	c.Data(record.ResponseCode, "application/json", []byte(record.ResponseBody))
	c.Abort()
}

// captureWriter tees the response so it can be cached for replays.
type captureWriter struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func skipPath(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.HasSuffix(pattern, "*") {
			if strings.HasPrefix(path, strings.TrimSuffix(pattern, "*")) {
				return true
			}
			continue
		}
		if path == pattern {
			return true
		}
	}
	return false
}

func requiresKey(method string, required []string) bool {
	for _, m := range required {
		if method == m {
			return true
		}
	}
	return false
}

func (cfg *IdempotencyConfig) requestHash(c *gin.Context, body []byte) string {
	h := sha256.New()
	if cfg.IncludePathInHash {
		h.Write([]byte(c.Request.Method))
		h.Write([]byte(c.Request.URL.Path))
	}
	if cfg.IncludeBodyInHash && len(body) > 0 {
		h.Write(body)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func loadRecord(ctx context.Context, client RedisClient, key string) (*IdempotencyRecord, error) {
	raw, err := client.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	var record IdempotencyRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// claimKey atomically marks the key as in flight. False means another
// request holds it.
func claimKey(ctx context.Context, client RedisClient, key string, record *IdempotencyRecord, ttl time.Duration) bool {
	data, err := json.Marshal(record)
	if err != nil {
		return false
	}
	ok, err := client.SetNX(ctx, key, string(data), ttl).Result()
	return err == nil && ok
}

func storeRecord(ctx context.Context, client RedisClient, key string, record *IdempotencyRecord, ttl time.Duration) {
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	client.Set(ctx, key, string(data), ttl)
}
