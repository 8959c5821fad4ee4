package handler

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/rollcall/pkg/binder"
)

// HandlerFunc handles a request already bound into R.
type HandlerFunc[R any] func(ctx Context, req R) Response

// Response renders itself to an http.ResponseWriter. A render error is
// passed to the ErrorHandler, which is how Error responses reach it.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// Bind fills v from the request.
type Bind func(r *http.Request, v any) error

// ErrorHandler writes the response for a bind, handler or render error.
type ErrorHandler func(ctx Context, err error)

// Decorator wraps a HandlerFunc. The first decorator in a list is the
// outermost wrapper.
type Decorator[R any] func(HandlerFunc[R]) HandlerFunc[R]

type options[R any] struct {
	binders      []Bind
	errorHandler ErrorHandler
	decorators   []Decorator[R]
}

// Option configures Wrap.
type Option[R any] func(*options[R])

// WithBinders appends binders run in order. A binder returning
// binder.ErrBinderNotApplicable is skipped.
func WithBinders[R any](binders ...Bind) Option[R] {
	return func(o *options[R]) {
		o.binders = append(o.binders, binders...)
	}
}

func WithErrorHandler[R any](h ErrorHandler) Option[R] {
	return func(o *options[R]) {
		if h != nil {
			o.errorHandler = h
		}
	}
}

func WithDecorators[R any](decorators ...Decorator[R]) Option[R] {
	return func(o *options[R]) {
		o.decorators = append(o.decorators, decorators...)
	}
}

// renderError writes the envelope without logging.
func renderError(ctx Context, err error) {
	_ = JSONError(err).Render(ctx.ResponseWriter(), ctx.Request())
}

// Wrap adapts h to http.HandlerFunc: bind, call, render.
func Wrap[R any](h HandlerFunc[R], opts ...Option[R]) http.HandlerFunc {
	o := options[R]{errorHandler: renderError}
	for _, opt := range opts {
		opt(&o)
	}

	next := h
	for i := len(o.decorators) - 1; i >= 0; i-- {
		next = o.decorators[i](next)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := NewContext(w, r)

		var req R
		for _, bind := range o.binders {
			err := bind(r, &req)
			if err == nil || errors.Is(err, binder.ErrBinderNotApplicable) {
				continue
			}
			o.errorHandler(ctx, err)
			return
		}

		resp := next(ctx, req)
		if resp == nil {
			o.errorHandler(ctx, ErrNilResponse)
			return
		}
		if err := resp.Render(w, r); err != nil {
			o.errorHandler(ctx, err)
		}
	}
}
