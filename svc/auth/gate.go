package auth

import (
	"errors"
	"net/http"
	"slices"

	"github.com/dmitrymomot/rollcall/pkg/jwt"
	"github.com/dmitrymomot/rollcall/svc/credential"
)

// ErrorResponder writes the response for a request rejected by the Gate.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

// Gate builds the middlewares guarding authenticated routes.
type Gate struct {
	sessions *jwt.Service
	repo     credential.Repository
	respond  ErrorResponder
}

type GateOption func(*Gate)

// WithErrorResponder replaces the plain-text fallback responder.
func WithErrorResponder(fn ErrorResponder) GateOption {
	return func(g *Gate) {
		if fn != nil {
			g.respond = fn
		}
	}
}

func NewGate(sessions *jwt.Service, repo credential.Repository, opts ...GateOption) *Gate {
	g := &Gate{sessions: sessions, repo: repo, respond: plainResponder}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RequireSession rejects requests without a valid bearer session with
// ErrUnauthorized.
func (g *Gate) RequireSession() func(http.Handler) http.Handler {
	return jwt.Middleware(g.sessions, jwt.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
		g.respond(w, r, errors.Join(ErrUnauthorized, err))
	}))
}

// RequireRole admits only the listed roles. It must run after RequireSession.
func (g *Gate) RequireRole(roles ...credential.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				g.respond(w, r, ErrUnauthorized)
				return
			}
			if !slices.Contains(roles, id.Role) {
				g.respond(w, r, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireVerifiedEmail rejects staff and students whose email is not
// verified with ErrEmailNotVerified. Admins are exempt. The flag is read
// from the repository, not the token, so verification takes effect without
// a new login.
func (g *Gate) RequireVerifiedEmail() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				g.respond(w, r, ErrUnauthorized)
				return
			}
			if id.Role == credential.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}

			rec, err := g.repo.FindByID(r.Context(), id.UserID)
			switch {
			case errors.Is(err, credential.ErrNotFound):
				g.respond(w, r, ErrUnauthorized)
				return
			case err != nil:
				g.respond(w, r, err)
				return
			}
			if rec.Role != credential.RoleAdmin && !rec.IsEmailVerified {
				g.respond(w, r, ErrEmailNotVerified)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func plainResponder(w http.ResponseWriter, _ *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		http.Error(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrEmailNotVerified):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
