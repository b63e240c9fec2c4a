package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("allows requests under limit", func(t *testing.T) {
		limiter := NewRateLimiter()

		for i := 0; i < 5; i++ {
			allowed, remaining, _ := limiter.Check(ctx, "resolve:10.0.0.1", 10)
			assert.True(t, allowed)
			assert.Equal(t, 10-i-1, remaining)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		limiter := NewRateLimiter()

		for i := 0; i < 5; i++ {
			limiter.Check(ctx, "resolve:10.0.0.2", 5)
		}

		allowed, remaining, _ := limiter.Check(ctx, "resolve:10.0.0.2", 5)
		assert.False(t, allowed)
		assert.Equal(t, 0, remaining)
	})

	t.Run("tracks keys separately", func(t *testing.T) {
		limiter := NewRateLimiter()

		for i := 0; i < 5; i++ {
			limiter.Check(ctx, "resolve:a", 5)
		}

		allowed, _, _ := limiter.Check(ctx, "resolve:b", 5)
		assert.True(t, allowed)
	})

	t.Run("returns reset time", func(t *testing.T) {
		limiter := NewRateLimiter()

		_, _, resetAt := limiter.Check(ctx, "resolve:c", 10)
		assert.Greater(t, resetAt, int64(0))
	})
}

func TestRedisRateLimiter(t *testing.T) {
	ctx := context.Background()

	newLimiter := func(t *testing.T) (*RedisRateLimiter, *miniredis.Miniredis) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedisRateLimiter(client), mr
	}

	t.Run("allows then blocks", func(t *testing.T) {
		limiter, _ := newLimiter(t)

		for i := 0; i < 3; i++ {
			allowed, remaining, _ := limiter.Check(ctx, "device:dev:10.0.0.1", 3)
			require.True(t, allowed, "request %d should be allowed", i+1)
			assert.Equal(t, 3-i-1, remaining)
		}

		allowed, remaining, resetAt := limiter.Check(ctx, "device:dev:10.0.0.1", 3)
		assert.False(t, allowed)
		assert.Equal(t, 0, remaining)
		assert.Greater(t, resetAt, int64(0))
	})

	t.Run("stores counters under the ratelimit prefix", func(t *testing.T) {
		limiter, mr := newLimiter(t)

		limiter.Check(ctx, "resolve:10.0.0.9", 3)

		assert.True(t, mr.Exists("ratelimit:resolve:10.0.0.9"))
	})

	t.Run("different keys are independent", func(t *testing.T) {
		limiter, _ := newLimiter(t)

		allowed, _, _ := limiter.Check(ctx, "resolve:x", 1)
		assert.True(t, allowed)
		allowed, _, _ = limiter.Check(ctx, "resolve:x", 1)
		assert.False(t, allowed)

		allowed, _, _ = limiter.Check(ctx, "resolve:y", 1)
		assert.True(t, allowed)
	})

	t.Run("fails open when redis is down", func(t *testing.T) {
		limiter, mr := newLimiter(t)
		mr.Close()

		allowed, remaining, _ := limiter.Check(ctx, "resolve:z", 5)
		assert.True(t, allowed)
		assert.Equal(t, 4, remaining)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("sets rate limit headers", func(t *testing.T) {
		handler := NewRateLimitMiddleware(NewRateLimiter(), 100, ByClientIP("resolve")).Handler(ok)

		req := httptest.NewRequest(http.MethodGet, "/connect-id/uid", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "99", rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("returns 429 when rate limited", func(t *testing.T) {
		handler := NewRateLimitMiddleware(NewRateLimiter(), 2, ByClientIP("resolve")).Handler(ok)

		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/connect-id/uid", nil))
			require.Equal(t, http.StatusOK, rec.Code)
		}

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/connect-id/uid", nil))

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), `"code":"RATE_LIMIT_EXCEEDED"`)
	})

	t.Run("buckets by client address", func(t *testing.T) {
		handler := NewRateLimitMiddleware(NewRateLimiter(), 1, ByClientIP("resolve")).Handler(ok)

		first := httptest.NewRequest(http.MethodGet, "/", nil)
		first.RemoteAddr = "10.1.1.1:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, first)
		require.Equal(t, http.StatusOK, rec.Code)

		sameHost := httptest.NewRequest(http.MethodGet, "/", nil)
		sameHost.RemoteAddr = "10.1.1.1:6000"
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, sameHost)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)

		other := httptest.NewRequest(http.MethodGet, "/", nil)
		other.RemoteAddr = "10.2.2.2:5000"
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, other)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("buckets by authenticated user", func(t *testing.T) {
		gate := newTestGate()
		limited := NewRateLimitMiddleware(NewRateLimiter(), 1, ByRoleAndIP("device")).Handler(ok)
		handler := gate.Require("device")(limited)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.SetBasicAuth("device_user", "device_pass")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("falls back to default limit", func(t *testing.T) {
		handler := NewRateLimitMiddleware(NewRateLimiter(), 0, ByClientIP("device")).Handler(ok)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, "60", rec.Header().Get("X-RateLimit-Limit"))
	})
}
