package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeRedis is a map-backed RedisClient for middleware tests.
type fakeRedis struct {
	data   map[string]string
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if f.getErr != nil {
		cmd.SetErr(f.getErr)
		return cmd
	}
	if v, ok := f.data[key]; ok {
		cmd.SetVal(v)
	} else {
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprintf("%v", value)
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	if _, ok := f.data[key]; ok {
		cmd.SetVal(false)
		return cmd
	}
	f.data[key] = fmt.Sprintf("%v", value)
	cmd.SetVal(true)
	return cmd
}

func newIdempotentRouter(config *IdempotencyConfig, calls *int) *gin.Engine {
	router := gin.New()
	router.Use(IdempotencyMiddleware(config))
	router.POST("/bookings", func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusCreated, gin.H{"call": *calls})
	})
	router.POST("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/bookings", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})
	return router
}

func postWithKey(router *gin.Engine, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestIdempotencyMiddleware_MissingKey(t *testing.T) {
	calls := 0
	router := newIdempotentRouter(DefaultIdempotencyConfig(newFakeRedis()), &calls)

	rec := postWithKey(router, "/bookings", "", `{"seat":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if calls != 0 {
		t.Errorf("handler called %d times, want 0", calls)
	}
}

func TestIdempotencyMiddleware_ReplayReturnsCachedResponse(t *testing.T) {
	calls := 0
	router := newIdempotentRouter(DefaultIdempotencyConfig(newFakeRedis()), &calls)

	first := postWithKey(router, "/bookings", "key-1", `{"seat":1}`)
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want 201", first.Code)
	}

	second := postWithKey(router, "/bookings", "key-1", `{"seat":1}`)
	if second.Code != http.StatusCreated {
		t.Errorf("replay status = %d, want 201", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Errorf("replay body = %s, want %s", second.Body.String(), first.Body.String())
	}
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}

func TestIdempotencyMiddleware_KeyReuseWithDifferentBody(t *testing.T) {
	calls := 0
	router := newIdempotentRouter(DefaultIdempotencyConfig(newFakeRedis()), &calls)

	postWithKey(router, "/bookings", "key-1", `{"seat":1}`)
	rec := postWithKey(router, "/bookings", "key-1", `{"seat":2}`)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}

func TestIdempotencyMiddleware_InProgressConflict(t *testing.T) {
	fake := newFakeRedis()
	config := DefaultIdempotencyConfig(fake)
	config.IncludeBodyInHash = false
	config.IncludePathInHash = false

	// Hash of an empty input, matching the middleware's hash when
	// nothing is included.
	emptyHash := hex.EncodeToString(sha256.New().Sum(nil))
	record := &IdempotencyRecord{
		Key:         "key-1",
		Status:      StatusProcessing,
		RequestHash: emptyHash,
		CreatedAt:   time.Now(),
	}
	data, _ := json.Marshal(record)
	fake.data[IdempotencyKeyPrefix+"key-1"] = string(data)

	calls := 0
	router := newIdempotentRouter(config, &calls)

	rec := postWithKey(router, "/bookings", "key-1", `{"seat":1}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	if calls != 0 {
		t.Errorf("handler called %d times, want 0", calls)
	}
}

func TestIdempotencyMiddleware_SkipPaths(t *testing.T) {
	calls := 0
	config := DefaultIdempotencyConfig(newFakeRedis())
	config.SkipPaths = []string{"/health"}
	router := newIdempotentRouter(config, &calls)

	rec := postWithKey(router, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestIdempotencyMiddleware_MethodNotRequired(t *testing.T) {
	calls := 0
	router := newIdempotentRouter(DefaultIdempotencyConfig(newFakeRedis()), &calls)

	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestIdempotencyMiddleware_FailsOpenOnRedisError(t *testing.T) {
	fake := newFakeRedis()
	fake.getErr = errors.New("connection refused")

	calls := 0
	router := newIdempotentRouter(DefaultIdempotencyConfig(fake), &calls)

	rec := postWithKey(router, "/bookings", "key-1", `{"seat":1}`)
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}
