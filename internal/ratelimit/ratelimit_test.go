package ratelimit_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/copperline/orderd/internal/ratelimit"
)

var testRedis *redis.Client

func TestMain(m *testing.M) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start redis container: %v\n", err)
		os.Exit(1)
	}

	host, err := container.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get container port: %v\n", err)
		os.Exit(1)
	}

	testRedis = redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", host, port.Port()),
	})

	if err := testRedis.Ping(ctx).Err(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to ping redis: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	_ = testRedis.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestRedisLimiterAllow(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.NewRedisLimiter(testRedis, 5, time.Minute)

	// Unique key per test run to avoid interference.
	key := fmt.Sprintf("test-allow-%d", time.Now().UnixNano())

	for i := 0; i < 5; i++ {
		ok, err := limiter.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be allowed", i+1)
	}

	ok, err := limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "6th request should be denied")
}

func TestRedisLimiterIndependentKeys(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.NewRedisLimiter(testRedis, 2, time.Minute)

	base := time.Now().UnixNano()
	keyA := fmt.Sprintf("test-multi-a-%d", base)
	keyB := fmt.Sprintf("test-multi-b-%d", base)

	for i := 0; i < 2; i++ {
		okA, err := limiter.Allow(ctx, keyA)
		require.NoError(t, err)
		okB, err := limiter.Allow(ctx, keyB)
		require.NoError(t, err)
		assert.True(t, okA)
		assert.True(t, okB)
	}

	okA, err := limiter.Allow(ctx, keyA)
	require.NoError(t, err)
	okB, err := limiter.Allow(ctx, keyB)
	require.NoError(t, err)
	assert.False(t, okA)
	assert.False(t, okB)
}

func TestRedisLimiterWindowReset(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.NewRedisLimiter(testRedis, 2, 500*time.Millisecond)

	key := fmt.Sprintf("test-window-%d", time.Now().UnixNano())

	ok, err := limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	time.Sleep(600 * time.Millisecond)

	ok, err = limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok, "request after window expiry should be allowed")
}

func TestMiddlewareDeniesOverBudget(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(0.001, 2) // effectively no refill within the test
	defer func() { _ = limiter.Close() }()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := ratelimit.Middleware(limiter, "test",
		func(r *http.Request) string { return "client-1" },
		func(r *http.Request) string { return "req-1" },
	)(next)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code, "request %d within budget", i+1)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
	assert.Contains(t, rec.Body.String(), "req-1")
}

func TestMiddlewareEmptyKeySkips(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(0.001, 1)
	defer func() { _ = limiter.Close() }()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := ratelimit.Middleware(limiter, "test",
		func(r *http.Request) string { return "" }, // exempt
		nil,
	)(next)

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestMiddlewareNilLimiterPassesThrough(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := ratelimit.Middleware(nil, "test",
		func(r *http.Request) string { return "anyone" },
		nil,
	)(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestIPKeyFunc(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:54321"
	assert.Equal(t, "10.1.2.3", ratelimit.IPKeyFunc(r))
}
