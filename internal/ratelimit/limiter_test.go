package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"petregistry/internal/ratelimit"
)

func TestLimiterDeniesOverLimit(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewLimiter(2, 5*time.Second)

	allowed, _ := limiter.Admit("1.2.3.4", "login")
	require.True(t, allowed)
	allowed, _ = limiter.Admit("1.2.3.4", "login")
	require.True(t, allowed)

	allowed, retryAfter := limiter.Admit("1.2.3.4", "login")
	require.False(t, allowed)
	require.Greater(t, retryAfter, time.Duration(0))
	require.LessOrEqual(t, retryAfter, 5*time.Second)
}

func TestLimiterWindowResets(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	limiter := ratelimit.NewLimiter(1, time.Minute).WithClock(func() time.Time { return clock })

	allowed, _ := limiter.Admit("1.2.3.4", "login")
	require.True(t, allowed)
	allowed, _ = limiter.Admit("1.2.3.4", "login")
	require.False(t, allowed)

	// Just shy of the window boundary: still denied.
	clock = base.Add(59 * time.Second)
	allowed, retryAfter := limiter.Admit("1.2.3.4", "login")
	require.False(t, allowed)
	require.Equal(t, time.Second, retryAfter)

	// The window is anchored at the first request, so a minute later the
	// counter starts over.
	clock = base.Add(time.Minute)
	allowed, _ = limiter.Admit("1.2.3.4", "login")
	require.True(t, allowed)
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewLimiter(1, time.Minute)

	allowed, _ := limiter.Admit("1.2.3.4", "login")
	require.True(t, allowed)
	allowed, _ = limiter.Admit("1.2.3.4", "login")
	require.False(t, allowed)

	// Different caller, same endpoint.
	allowed, _ = limiter.Admit("5.6.7.8", "login")
	require.True(t, allowed)

	// Same caller, different endpoint.
	allowed, _ = limiter.Admit("1.2.3.4", "signup")
	require.True(t, allowed)
}

func TestLimiterConcurrentBurstIsExact(t *testing.T) {
	t.Parallel()

	const limit = 10
	const attempts = 100
	limiter := ratelimit.NewLimiter(limit, time.Minute)

	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			allowed, _ := limiter.Admit("1.2.3.4", "login")
			results <- allowed
		}()
	}

	close(start)
	wg.Wait()
	close(results)

	admitted := 0
	for allowed := range results {
		if allowed {
			admitted++
		}
	}
	require.Equal(t, limit, admitted)
}

func TestMiddlewareReturns429WithRetryAfter(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewLimiter(1, time.Minute)
	handler := limiter.Middleware("login", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "1.2.3.4:5678"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		return recorder
	}

	require.Equal(t, http.StatusOK, send().Code)

	denied := send()
	require.Equal(t, http.StatusTooManyRequests, denied.Code)
	require.NotEmpty(t, denied.Header().Get("Retry-After"))
}

func TestMiddlewareUsesForwardedFor(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewLimiter(1, time.Minute)
	handler := limiter.Middleware("login", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(forwardedFor string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		if forwardedFor != "" {
			req.Header.Set("X-Forwarded-For", forwardedFor)
		}
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		return recorder
	}

	require.Equal(t, http.StatusOK, send("1.2.3.4, 10.0.0.1").Code)
	require.Equal(t, http.StatusTooManyRequests, send("1.2.3.4").Code)

	// A different forwarded client is a separate window even behind the
	// same proxy address.
	require.Equal(t, http.StatusOK, send("5.6.7.8").Code)
}
