package handler

import "net/http"

type errorResponse struct {
	err error
}

// Render returns the error unwritten so Wrap passes it to the ErrorHandler.
func (e errorResponse) Render(http.ResponseWriter, *http.Request) error {
	return e.err
}

// Error defers err to the ErrorHandler configured on Wrap, which logs it
// and writes the error envelope.
func Error(err error) Response {
	if err == nil {
		err = ErrNilResponse
	}
	return errorResponse{err: err}
}
