package handler

import (
	"errors"
	"net/http"
)

var ErrNilResponse = errors.New("handler returned nil response")

// HTTPError carries a status code and a stable machine-readable key.
// Meta is merged into the envelope's meta object.
type HTTPError struct {
	Code    int
	Key     string
	Message string
	Meta    map[string]any
}

func (e HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Key
}

// Is matches any HTTPError with the same code and key, so errors.Is works
// on copies produced by WithMessage and WithMeta.
func (e HTTPError) Is(target error) bool {
	t, ok := target.(HTTPError)
	return ok && t.Code == e.Code && t.Key == e.Key
}

// WithMessage returns a copy of e with a human-readable message.
func (e HTTPError) WithMessage(msg string) HTTPError {
	e.Message = msg
	return e
}

// WithMeta returns a copy of e with an extra meta entry.
func (e HTTPError) WithMeta(key string, value any) HTTPError {
	meta := make(map[string]any, len(e.Meta)+1)
	for k, v := range e.Meta {
		meta[k] = v
	}
	meta[key] = value
	e.Meta = meta
	return e
}

var (
	ErrBadRequest          = HTTPError{Code: http.StatusBadRequest, Key: "bad_request", Message: "Bad request"}
	ErrUnauthorized        = HTTPError{Code: http.StatusUnauthorized, Key: "unauthorized", Message: "Authentication required"}
	ErrForbidden           = HTTPError{Code: http.StatusForbidden, Key: "forbidden", Message: "Access denied"}
	ErrNotFound            = HTTPError{Code: http.StatusNotFound, Key: "not_found", Message: "Not found"}
	ErrConflict            = HTTPError{Code: http.StatusConflict, Key: "conflict", Message: "Conflict"}
	ErrUnsupportedMedia    = HTTPError{Code: http.StatusUnsupportedMediaType, Key: "unsupported_media_type", Message: "Unsupported media type"}
	ErrTooManyRequests     = HTTPError{Code: http.StatusTooManyRequests, Key: "too_many_requests", Message: "Too many requests"}
	ErrInternalServerError = HTTPError{Code: http.StatusInternalServerError, Key: "internal_error", Message: "An error occurred processing your request"}
)
