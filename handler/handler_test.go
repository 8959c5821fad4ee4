package handler_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/rollcall/handler"
	"github.com/dmitrymomot/rollcall/pkg/binder"
	"github.com/dmitrymomot/rollcall/pkg/validator"
)

type emailRequest struct {
	Email string `json:"email"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) handler.JSONResponse {
	t.Helper()
	var body handler.JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWrap(t *testing.T) {
	t.Parallel()

	t.Run("binds and renders data", func(t *testing.T) {
		t.Parallel()

		h := handler.Wrap(handler.HandlerFunc[emailRequest](
			func(ctx handler.Context, req emailRequest) handler.Response {
				return handler.JSON(map[string]string{"email": req.Email})
			},
		), handler.WithBinders[emailRequest](binder.JSON()))

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"alice@example.com"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"data":{"email":"alice@example.com"}}`, rec.Body.String())
	})

	t.Run("binder failure goes to error handler", func(t *testing.T) {
		t.Parallel()

		called := false
		h := handler.Wrap(handler.HandlerFunc[emailRequest](
			func(ctx handler.Context, req emailRequest) handler.Response {
				called = true
				return handler.Empty()
			},
		), handler.WithBinders[emailRequest](binder.JSON()))

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h(rec, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "bad_request", decode(t, rec).Error.Code)
	})

	t.Run("decorators run outermost first", func(t *testing.T) {
		t.Parallel()

		var order []string
		mark := func(name string) handler.Decorator[emailRequest] {
			return func(next handler.HandlerFunc[emailRequest]) handler.HandlerFunc[emailRequest] {
				return func(ctx handler.Context, req emailRequest) handler.Response {
					order = append(order, name)
					return next(ctx, req)
				}
			}
		}

		h := handler.Wrap(handler.HandlerFunc[emailRequest](
			func(ctx handler.Context, req emailRequest) handler.Response {
				order = append(order, "handler")
				return handler.Empty()
			},
		), handler.WithDecorators(mark("outer"), mark("inner")))

		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, []string{"outer", "inner", "handler"}, order)
	})

	t.Run("nil response", func(t *testing.T) {
		t.Parallel()

		var got error
		h := handler.Wrap(handler.HandlerFunc[emailRequest](
			func(ctx handler.Context, req emailRequest) handler.Response { return nil },
		), handler.WithErrorHandler[emailRequest](func(ctx handler.Context, err error) {
			got = err
		}))

		h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.ErrorIs(t, got, handler.ErrNilResponse)
	})
}

func TestJSONError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		status   int
		code     string
		details  map[string][]string
		metaKey  string
		hideText string
	}{
		{
			name:   "http error",
			err:    handler.HTTPError{Code: http.StatusBadRequest, Key: "invalid_otp", Message: "Invalid OTP"},
			status: http.StatusBadRequest,
			code:   "invalid_otp",
		},
		{
			name:    "http error with meta",
			err:     handler.ErrForbidden.WithMeta("requires_email_verification", true),
			status:  http.StatusForbidden,
			code:    "forbidden",
			metaKey: "requires_email_verification",
		},
		{
			name:    "validation errors",
			err:     fmt.Errorf("login: %w", validator.NewError("username", "is required", "validation.required")),
			status:  http.StatusBadRequest,
			code:    "validation_failed",
			details: map[string][]string{"username": {"is required"}},
		},
		{
			name:   "unsupported media",
			err:    binder.ErrUnsupportedMediaType,
			status: http.StatusUnsupportedMediaType,
			code:   "unsupported_media_type",
		},
		{
			name:     "unknown error is hidden",
			err:      errors.New("dial tcp 10.0.0.5:5432: connection refused"),
			status:   http.StatusInternalServerError,
			code:     "internal_error",
			hideText: "10.0.0.5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			require.NoError(t, handler.JSONError(tt.err).Render(rec, httptest.NewRequest(http.MethodGet, "/", nil)))

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Nil(t, body.Data)
			if tt.details != nil {
				assert.Equal(t, tt.details, body.Error.Details)
			}
			if tt.metaKey != "" {
				assert.Equal(t, true, body.Meta[tt.metaKey])
			}
			if tt.hideText != "" {
				assert.NotContains(t, rec.Body.String(), tt.hideText)
			}
		})
	}
}

func TestJSON_Meta(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	resp := handler.JSON(map[string]string{"message": "sent"},
		handler.WithJSONMeta(map[string]any{"warning": "email_delivery_failed"}),
	)
	require.NoError(t, resp.Render(rec, httptest.NewRequest(http.MethodPost, "/", nil)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"message":"sent"},"meta":{"warning":"email_delivery_failed"}}`, rec.Body.String())
}

func TestNewErrorHandler(t *testing.T) {
	t.Parallel()

	t.Run("logs at warn without a matched route", func(t *testing.T) {
		t.Parallel()

		var buf strings.Builder
		log := slog.New(slog.NewJSONHandler(&buf, nil))
		eh := handler.NewErrorHandler(log)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		eh(handler.NewContext(rec, req), handler.ErrUnauthorized)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthorized", decode(t, rec).Error.Code)
		assert.Contains(t, buf.String(), `"level":"WARN"`)
		assert.Contains(t, buf.String(), `"route":"unmatched"`)
		assert.NotContains(t, buf.String(), "/auth/login")
	})

	t.Run("logs the route pattern instead of the path", func(t *testing.T) {
		t.Parallel()

		var buf strings.Builder
		log := slog.New(slog.NewJSONHandler(&buf, nil))

		r := chi.NewRouter()
		r.Post("/auth/reset-password/{token}", handler.Wrap(handler.HandlerFunc[emailRequest](
			func(ctx handler.Context, req emailRequest) handler.Response {
				return handler.Error(handler.ErrBadRequest)
			},
		), handler.WithErrorHandler[emailRequest](handler.NewErrorHandler(log))))

		const secret = "9f2c4e7a1b3d5f60"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/reset-password/"+secret, nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, buf.String(), `"route":"/auth/reset-password/{token}"`)
		assert.NotContains(t, buf.String(), secret)
	})
}

func TestError(t *testing.T) {
	t.Parallel()

	var got error
	h := handler.Wrap(handler.HandlerFunc[emailRequest](
		func(ctx handler.Context, req emailRequest) handler.Response {
			return handler.Error(handler.ErrConflict)
		},
	), handler.WithErrorHandler[emailRequest](func(ctx handler.Context, err error) {
		got = err
		_ = handler.JSONError(err).Render(ctx.ResponseWriter(), ctx.Request())
	}))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.ErrorIs(t, got, handler.ErrConflict)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decode(t, rec).Error.Code)
}
