package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayush/lecture-notes/backend/internal/httpx"
)

// Counter counts hits per key within a fixed window.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// KeyFunc names the bucket a request is counted in. An empty key skips
// limiting for that request.
type KeyFunc func(r *http.Request) string

// RateLimit rejects a request with 429 once its key has been seen more than
// limit times in scope within window. Counter failures let the request through.
func RateLimit(counter Counter, scope string, limit int, window time.Duration, key KeyFunc, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}
			n, err := counter.Hit(r.Context(), scope+":"+k, window)
			if err != nil {
				log.WarnContext(r.Context(), "rate limiter unavailable", "scope", scope, "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if n > int64(limit) {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				httpx.WriteJSON(w, http.StatusTooManyRequests, map[string]interface{}{
					"success": false,
					"message": "Too many attempts, try again later",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// EmailKey keys on the "email" field of a JSON body. The body is restored
// for the next handler.
func EmailKey(maxBytes int64) KeyFunc {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(data))
		if err != nil {
			return ""
		}
		var body struct {
			Email string `json:"email"`
		}
		if json.Unmarshal(data, &body) != nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(body.Email))
	}
}
