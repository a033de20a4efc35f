package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("outer"), mw("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRecovery(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"internal server error","error":"internal"}`, rec.Body.String())
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	t.Run("reuses valid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))
	})

	t.Run("replaces invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, strings.Repeat("x", 129))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Len(t, seen, 36)
		assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))
	})
}

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{Origins: []string{"https://pos.example"}, Headers: []string{"Authorization"}, MaxAge: 600})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) }),
	)

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/sales", nil)
		req.Header.Set("Origin", "https://pos.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://pos.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("disallowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/sales", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestLimiter(t *testing.T) {
	l := NewLimiter(2, time.Minute)
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	ok, left, _ := l.Allow("co1", base)
	require.True(t, ok)
	assert.Equal(t, 1, left)
	ok, left, _ = l.Allow("co1", base.Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, 0, left)
	ok, _, reset := l.Allow("co1", base.Add(2*time.Second))
	assert.False(t, ok)
	assert.Equal(t, base.Add(time.Minute), reset)

	ok, _, _ = l.Allow("co2", base.Add(2*time.Second))
	assert.True(t, ok, "keys are independent")

	// A third into the next window the previous count still weighs 2/3 of 2.
	ok, _, _ = l.Allow("co1", base.Add(80*time.Second))
	assert.True(t, ok)
	ok, _, _ = l.Allow("co1", base.Add(81*time.Second))
	assert.False(t, ok)

	ok, _, _ = l.Allow("co1", base.Add(5*time.Minute))
	assert.True(t, ok, "stale windows reset")

	l.Evict(base.Add(10 * time.Minute))
	assert.Empty(t, l.counts)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func limited(t *testing.T, cfg RateLimitConfig) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return RateLimit(ctx, cfg)(okHandler())
}

func hit(h http.Handler, remote string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/sales", nil)
	req.RemoteAddr = remote
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_Headers(t *testing.T) {
	h := limited(t, RateLimitConfig{Max: 3, Window: time.Minute})

	for i := range 3 {
		rec := hit(h, "192.168.1.1:4444", nil)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	}

	rec := hit(h, "192.168.1.1:4444", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"message":"too many requests","error":"rate_limited"}`, rec.Body.String())
}

func TestRateLimit_DifferentIPs(t *testing.T) {
	h := limited(t, RateLimitConfig{Max: 1, Window: time.Minute})

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1234", nil).Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:1234", nil).Code, "independent limit")
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:5678", nil).Code, "port is ignored")
}

func TestRateLimit_XForwardedFor(t *testing.T) {
	h := limited(t, RateLimitConfig{Max: 1, Window: time.Minute})
	xff := map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}

	assert.Equal(t, http.StatusOK, hit(h, "192.168.1.1:4444", xff).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "192.168.1.2:5555", xff).Code,
		"first forwarded hop is the key")
	assert.Equal(t, http.StatusOK, hit(h, "192.168.1.2:5555", map[string]string{"X-Real-IP": "198.51.100.7"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "192.168.1.3:6666", map[string]string{"X-Real-IP": "198.51.100.7"}).Code)
}

func TestRateLimit_CustomKey(t *testing.T) {
	h := limited(t, RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		Key:    func(r *http.Request) string { return r.Header.Get("X-Company") },
	})

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1", map[string]string{"X-Company": "co1"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.2:1", map[string]string{"X-Company": "co1"}).Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1", map[string]string{"X-Company": "co2"}).Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	h := limited(t, RateLimitConfig{})

	for range 5 {
		rec := hit(h, "10.0.0.1:1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}
