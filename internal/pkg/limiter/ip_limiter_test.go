package limiter_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pongrt/internal/pkg/limiter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	l := limiter.NewIPRateLimiter(0.001, 2)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.RemoteAddr = "10.0.0.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	other := httptest.NewRequest(http.MethodGet, "/ws", nil)
	other.RemoteAddr = "10.0.0.8:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code, "buckets are per IP")
}

func TestCleanupRemovesIdleBuckets(t *testing.T) {
	l := limiter.NewIPRateLimiter(0.01, 1)
	l.GetLimiter("a")
	busy := l.GetLimiter("b")
	require.True(t, busy.Allow())
	require.Equal(t, 2, l.Size())

	removed := l.Cleanup(time.Now())

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, l.Size())
}
