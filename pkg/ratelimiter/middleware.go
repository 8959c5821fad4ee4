package ratelimiter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrymomot/rollcall/pkg/clientip"
)

// KeyFunc derives the bucket key of a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// ByIP keys requests by client address, preferring the one stored by
// clientip.Middleware.
func ByIP(r *http.Request) string {
	if ip := clientip.FromContext(r.Context()); ip != "" {
		return ip
	}
	return clientip.GetIP(r)
}

// Prefixed namespaces the key produced by fn, so one store can hold
// buckets of several routes.
func Prefixed(prefix string, fn KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		key := fn(r)
		if key == "" {
			return ""
		}
		return prefix + ":" + key
	}
}

// ErrorHandler writes the response when the store fails.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// ExceededHandler writes the response when the bucket is empty.
type ExceededHandler func(w http.ResponseWriter, r *http.Request, res *Result)

type middlewareOptions struct {
	onError    ErrorHandler
	onExceeded ExceededHandler
	now        func() time.Time
}

type MiddlewareOption func(*middlewareOptions)

func WithErrorHandler(fn ErrorHandler) MiddlewareOption {
	return func(o *middlewareOptions) {
		if fn != nil {
			o.onError = fn
		}
	}
}

func WithExceededHandler(fn ExceededHandler) MiddlewareOption {
	return func(o *middlewareOptions) {
		if fn != nil {
			o.onExceeded = fn
		}
	}
}

// Middleware limits requests through b. Rate limit headers are set on
// every limited response.
func Middleware(b *Bucket, keyFn KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	o := middlewareOptions{
		onError:    defaultErrorHandler,
		onExceeded: defaultExceededHandler,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := b.Allow(r.Context(), key)
			if err != nil {
				o.onError(w, r, err)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(0, res.Remaining)))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed() {
				if wait := res.RetryAfter(o.now()); wait > 0 {
					h.Set("Retry-After", strconv.Itoa(int((wait+time.Second-1)/time.Second)))
				}
				o.onExceeded(w, r, res)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func defaultExceededHandler(w http.ResponseWriter, _ *http.Request, _ *Result) {
	writeJSONError(w, http.StatusTooManyRequests, "too_many_requests", "too many requests, try again later")
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, _ error) {
	writeJSONError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": msg},
	})
}
