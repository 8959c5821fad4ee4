package jwt

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// TokenExtractorFunc extracts a raw token from a request.
type TokenExtractorFunc func(r *http.Request) (string, error)

// ErrorHandlerFunc writes the response for a rejected request.
type ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)

type middlewareConfig struct {
	extractor    TokenExtractorFunc
	errorHandler ErrorHandlerFunc
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

// WithExtractor replaces BearerTokenExtractor.
func WithExtractor(fn TokenExtractorFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.extractor = fn
		}
	}
}

// WithErrorHandler replaces the default 401 JSON response.
func WithErrorHandler(fn ErrorHandlerFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.errorHandler = fn
		}
	}
}

// Middleware validates the request token and injects its claims into the
// request context. Requests without a valid token never reach next.
func Middleware(service *Service, opts ...MiddlewareOption) func(next http.Handler) http.Handler {
	cfg := middlewareConfig{
		extractor:    BearerTokenExtractor,
		errorHandler: DefaultErrorHandler,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := cfg.extractor(r)
			if err != nil {
				cfg.errorHandler(w, r, err)
				return
			}

			claims, err := service.Validate(raw)
			if err != nil {
				cfg.errorHandler(w, r, err)
				return
			}

			ctx := SetClaims(SetToken(r.Context(), raw), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DefaultErrorHandler responds 401 with a JSON error body.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	msg := "invalid or missing token"
	if errors.Is(err, ErrExpiredToken) {
		msg = "token expired"
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    "unauthorized",
			"message": msg,
		},
	})
}

// BearerTokenExtractor reads "Authorization: Bearer <token>".
func BearerTokenExtractor(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrInvalidToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}
