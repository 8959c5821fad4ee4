package account

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/rollcall/handler"
	"github.com/dmitrymomot/rollcall/pkg/binder"
	"github.com/dmitrymomot/rollcall/pkg/logger"
	"github.com/dmitrymomot/rollcall/svc/auth"
	"github.com/dmitrymomot/rollcall/svc/credential"
)

// Module serves the credential endpoints under /auth.
type Module struct {
	svc          *auth.Service
	gate         *auth.Gate
	logger       *slog.Logger
	errorHandler handler.ErrorHandler
	limit        func(http.Handler) http.Handler
}

type Option func(*Module)

// WithLogger sets the logger used by the error handler.
func WithLogger(log *slog.Logger) Option {
	return func(m *Module) {
		if log != nil {
			m.logger = log
		}
	}
}

// WithRateLimit guards the unauthenticated endpoints with mw.
func WithRateLimit(mw func(http.Handler) http.Handler) Option {
	return func(m *Module) {
		m.limit = mw
	}
}

func New(svc *auth.Service, gate *auth.Gate, opts ...Option) *Module {
	m := &Module{svc: svc, gate: gate, logger: logger.Discard()}
	for _, opt := range opts {
		opt(m)
	}
	m.errorHandler = handler.NewErrorHandler(m.logger)
	return m
}

// Respond renders a gate rejection through the module error table. Pass it
// to auth.WithErrorResponder.
func (m *Module) Respond(w http.ResponseWriter, r *http.Request, err error) {
	m.errorHandler(handler.NewContext(w, r), mapError(err))
}

// Handle returns the router with every /auth route.
func (m *Module) Handle() http.Handler {
	r := chi.NewRouter()

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if m.limit != nil {
				r.Use(m.limit)
			}
			r.Post("/login", wrap(m, m.login, jsonBody))
			r.Post("/forgot-password", wrap(m, m.forgotPassword, jsonBody))
			r.Get("/verify-reset-token/{token}", wrap(m, m.verifyResetToken, pathParams))
			r.Post("/reset-password/{token}", wrap(m, m.resetPassword, pathParams, jsonBody))
			r.Post("/send-otp-reset", wrap(m, m.sendOTPReset, jsonBody))
			r.Post("/verify-otp-reset", wrap(m, m.verifyOTPReset, jsonBody))
			r.Get("/verify-email/{token}", wrap(m, m.verifyEmail, pathParams))
		})

		r.Group(func(r chi.Router) {
			r.Use(m.gate.RequireSession())
			r.Get("/me", wrap(m, m.me))
			r.Get("/login-history", wrap(m, m.loginHistory))
			r.Post("/send-email-verification", wrap(m, m.sendEmailVerification, jsonBody))
			r.Post("/link-email", wrap(m, m.linkEmail, jsonBody))

			r.With(m.gate.RequireVerifiedEmail()).Put("/change-password", wrap(m, m.changePassword, jsonBody))
			r.With(m.gate.RequireRole(credential.RoleAdmin)).Post("/accounts", wrap(m, m.createAccount, jsonBody))
		})
	})

	return r
}

var (
	jsonBody   handler.Bind = binder.JSON()
	pathParams handler.Bind = binder.Path(chi.URLParam)
)

func wrap[R any](m *Module, h handler.HandlerFunc[R], binders ...handler.Bind) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithBinders[R](binders...),
		handler.WithErrorHandler[R](m.errorHandler),
	)
}
