package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ridehail/internal/logging"
	"ridehail/internal/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
)

// cachedResponse stores the response for idempotent requests.
type cachedResponse struct {
	StatusCode int         `json:"status_code"`
	Body       []byte      `json:"body"`
	Headers    http.Header `json:"headers"`
}

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response of a mutating request
// whose Idempotency-Key was already seen for the same caller and route.
// Server errors are not stored so the client can retry them.
func IdempotencyMiddleware(cache redis.ResponseCacheInterface, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cache == nil || !mutating(c.Request.Method) {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey := idempotencyKey(c, key)
		entry := logging.FromContext(ctx, log).WithField("idempotency_key", key)

		data, err := cache.GetResponse(ctx, cacheKey)
		if err != nil {
			// Redis error - proceed without idempotency.
			entry.WithError(err).Warn("idempotency lookup failed")
			c.Next()
			return
		}

		if data != nil {
			var cached cachedResponse
			if err := json.Unmarshal(data, &cached); err == nil {
				for k, v := range cached.Headers {
					for _, val := range v {
						c.Header(k, val)
					}
				}
				c.Header("Idempotent-Replayed", "true")
				c.Data(cached.StatusCode, "application/json", cached.Body)
				c.Abort()
				return
			}
			entry.Warn("discarding unreadable idempotent response")
		}

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 500 {
			return
		}
		payload, err := json.Marshal(cachedResponse{
			StatusCode: status,
			Body:       w.body.Bytes(),
			Headers:    extractResponseHeaders(c),
		})
		if err != nil {
			return
		}
		if err := cache.SetResponse(ctx, cacheKey, payload, idempotencyTTL); err != nil {
			entry.WithError(err).Warn("idempotency store failed")
		}
	}
}

func mutating(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch || method == http.MethodDelete
}

// idempotencyKey scopes a client key to the caller and route so two users
// cannot collide on the same key.
func idempotencyKey(c *gin.Context, key string) string {
	return UserID(c) + ":" + c.Request.Method + ":" + c.Request.URL.Path + ":" + key
}

// extractResponseHeaders extracts headers to cache.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	if ct := c.Writer.Header().Get("Content-Type"); ct != "" {
		headers.Set("Content-Type", ct)
	}
	return headers
}
