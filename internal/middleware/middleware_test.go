package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridehail/internal/logging"
	"ridehail/internal/realtime"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (m *memoryCache) GetResponse(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.entries[key], nil
}

func (m *memoryCache) SetResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = data
	return nil
}

func (m *memoryCache) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func do(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	cache := newMemoryCache()
	calls := 0

	r := gin.New()
	r.Use(Identity(), IdempotencyMiddleware(cache, logging.Discard()))
	r.POST("/v1/trips", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"call": calls})
	})

	headers := map[string]string{idempotencyHeader: "key-1", UserIDHeader: "passenger-1"}
	first := do(r, http.MethodPost, "/v1/trips", headers)
	second := do(r, http.MethodPost, "/v1/trips", headers)

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
}

func TestIdempotency_KeyScopedToCaller(t *testing.T) {
	cache := newMemoryCache()
	calls := 0

	r := gin.New()
	r.Use(Identity(), IdempotencyMiddleware(cache, logging.Discard()))
	r.POST("/v1/trips", func(c *gin.Context) {
		calls++
		c.Status(http.StatusCreated)
	})

	do(r, http.MethodPost, "/v1/trips", map[string]string{idempotencyHeader: "same", UserIDHeader: "passenger-1"})
	do(r, http.MethodPost, "/v1/trips", map[string]string{idempotencyHeader: "same", UserIDHeader: "passenger-2"})

	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, cache.size())
}

func TestIdempotency_SkipsServerErrorsAndReads(t *testing.T) {
	cache := newMemoryCache()

	r := gin.New()
	r.Use(IdempotencyMiddleware(cache, logging.Discard()))
	r.POST("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/read", func(c *gin.Context) { c.Status(http.StatusOK) })

	do(r, http.MethodPost, "/fail", map[string]string{idempotencyHeader: "k"})
	do(r, http.MethodGet, "/read", map[string]string{idempotencyHeader: "k"})

	assert.Zero(t, cache.size())
}

func TestIdempotency_CacheDownPassesThrough(t *testing.T) {
	cache := newMemoryCache()
	cache.getErr = errors.New("connection refused")
	calls := 0

	r := gin.New()
	r.Use(IdempotencyMiddleware(cache, logging.Discard()))
	r.POST("/v1/trips", func(c *gin.Context) {
		calls++
		c.Status(http.StatusCreated)
	})

	for i := 0; i < 2; i++ {
		w := do(r, http.MethodPost, "/v1/trips", map[string]string{idempotencyHeader: "k"})
		assert.Equal(t, http.StatusCreated, w.Code)
	}
	assert.Equal(t, 2, calls)
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) {
		seen = logging.RequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := do(r, http.MethodGet, "/ping", nil)
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))

	w = do(r, http.MethodGet, "/ping", map[string]string{RequestIDHeader: "req-7"})
	assert.Equal(t, "req-7", seen)
	assert.Equal(t, "req-7", w.Header().Get(RequestIDHeader))
}

func TestIdentity_ParsesHeaders(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		wantUser string
		wantRole realtime.Role
	}{
		{"driver", map[string]string{UserIDHeader: "driver-1", UserRoleHeader: "DRIVER"}, "driver-1", realtime.RoleDriver},
		{"passenger", map[string]string{UserIDHeader: " passenger-1 ", UserRoleHeader: "passenger"}, "passenger-1", realtime.RolePassenger},
		{"unknown role", map[string]string{UserIDHeader: "x", UserRoleHeader: "root"}, "x", ""},
		{"anonymous", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var user string
			var role realtime.Role
			r := gin.New()
			r.Use(Identity())
			r.GET("/me", func(c *gin.Context) {
				user, role = UserID(c), Role(c)
				c.Status(http.StatusOK)
			})

			do(r, http.MethodGet, "/me", tt.headers)
			assert.Equal(t, tt.wantUser, user)
			assert.Equal(t, tt.wantRole, role)
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware())
	r.POST("/v1/trips", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := do(r, http.MethodOptions, "/v1/trips", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsAndLogger_DoNotAlterResponse(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Metrics(), RequestLogger(logging.Discard()))
	r.GET("/v1/trips/:id", func(c *gin.Context) { c.JSON(http.StatusNotFound, gin.H{"error": "trip not found"}) })

	w := do(r, http.MethodGet, "/v1/trips/abc", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"trip not found"}`, w.Body.String())
}
