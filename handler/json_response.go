package handler

import (
	"encoding/json"
	"errors"
	"maps"
	"net/http"

	"github.com/dmitrymomot/rollcall/pkg/binder"
	"github.com/dmitrymomot/rollcall/pkg/validator"
)

// JSONResponse is the envelope of every JSON body.
type JSONResponse struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string              `json:"code,omitempty"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	body   JSONResponse
}

func (j jsonResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures JSON response
type JSONOption func(*jsonResponse)

// WithJSONStatus sets custom HTTP status code
func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) {
		r.status = status
	}
}

// WithJSONMeta merges entries into the response meta.
func WithJSONMeta(meta map[string]any) JSONOption {
	return func(r *jsonResponse) {
		if len(meta) == 0 {
			return
		}
		if r.body.Meta == nil {
			r.body.Meta = make(map[string]any, len(meta))
		}
		maps.Copy(r.body.Meta, meta)
	}
}

// JSON wraps v in the data field with status 200.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK}
	if v != nil {
		r.body.Data = v
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError renders err into the error field. Status, code and meta come
// from Classify.
func JSONError(err error, opts ...JSONOption) Response {
	info := Classify(err)
	r := &jsonResponse{
		status: info.StatusCode,
		body: JSONResponse{
			Error: &ErrorDetail{
				Code:    info.Key,
				Message: info.Message,
				Details: info.Details,
			},
		},
	}
	WithJSONMeta(info.Meta)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ErrorInfo is the client-facing view of an error.
type ErrorInfo struct {
	StatusCode int
	Key        string
	Message    string
	Details    map[string][]string
	Meta       map[string]any
}

// Classify maps err to its client-facing form. Unknown errors become a
// generic 500 so internals never reach the client.
func Classify(err error) ErrorInfo {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return ErrorInfo{
			StatusCode: http.StatusBadRequest,
			Key:        "validation_failed",
			Message:    "Validation failed",
			Details:    verrs.Fields(),
		}
	}

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return ErrorInfo{
			StatusCode: httpErr.Code,
			Key:        httpErr.Key,
			Message:    httpErr.Error(),
			Meta:       httpErr.Meta,
		}
	}

	switch {
	case errors.Is(err, binder.ErrUnsupportedMediaType):
		return infoFrom(ErrUnsupportedMedia)
	case errors.Is(err, binder.ErrFailedToParseJSON), errors.Is(err, binder.ErrFailedToParsePath):
		return infoFrom(ErrBadRequest.WithMessage("Malformed request body"))
	}
	return infoFrom(ErrInternalServerError)
}

func infoFrom(e HTTPError) ErrorInfo {
	return ErrorInfo{StatusCode: e.Code, Key: e.Key, Message: e.Error(), Meta: e.Meta}
}
