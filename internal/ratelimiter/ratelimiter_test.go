package ratelimiter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/treelinehq/canopy/internal/ratelimiter"
)

func TestAllowWithinBurst(t *testing.T) {
	limiter := ratelimiter.New(10, 5)

	for i := 0; i < 5; i++ {
		require.True(t, limiter.Allow())
	}
	// Bucket exhausted.
	require.False(t, limiter.Allow())
}

func TestUnlimitedWhenRateIsZero(t *testing.T) {
	limiter := ratelimiter.New(0, 0)

	for i := 0; i < 1000; i++ {
		require.True(t, limiter.Allow())
	}
}

func TestWaitRespectsCancellation(t *testing.T) {
	limiter := ratelimiter.New(1, 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, limiter.Wait(ctx))
}

func TestMiddleware(t *testing.T) {
	limiter := ratelimiter.New(1, 1)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
}
