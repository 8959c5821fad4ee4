package auth

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/rollcall/pkg/jwt"
	"github.com/dmitrymomot/rollcall/pkg/logger"
	"github.com/dmitrymomot/rollcall/svc/credential"
)

// Identity is the caller asserted by a validated session token.
type Identity struct {
	UserID string
	Role   credential.Role
}

// IdentityFromContext returns the identity stored by Gate.RequireSession.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	claims, ok := jwt.GetClaims(ctx)
	if !ok || claims.UserID() == "" {
		return Identity{}, false
	}
	return Identity{UserID: claims.UserID(), Role: credential.Role(claims.Role)}, true
}

// WithIdentity stores id in ctx the same way RequireSession does.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	claims := &jwt.Claims{Role: id.Role.String()}
	claims.Subject = id.UserID
	return jwt.SetClaims(ctx, claims)
}

// LoggerExtractor is a logger.ContextExtractor adding the caller's
// "user_id" once a session has been validated.
func LoggerExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		id, ok := IdentityFromContext(ctx)
		return logger.UserID(id.UserID), ok
	}
}
