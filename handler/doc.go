// Package handler adapts typed request handlers to net/http.
//
// A HandlerFunc receives a Context and a request value filled by binders,
// and returns a Response. Wrap converts it into an http.HandlerFunc,
// applying decorators and routing failures through an ErrorHandler.
//
//	h := handler.HandlerFunc[loginRequest](
//		func(ctx handler.Context, req loginRequest) handler.Response {
//			return handler.JSON(result)
//		},
//	)
//	r.Post("/auth/login", handler.Wrap(h,
//		handler.WithBinders[loginRequest](binder.JSON()),
//		handler.WithErrorHandler[loginRequest](errHandler),
//	))
//
// Every JSON body, success or failure, uses the JSONResponse envelope.
package handler
