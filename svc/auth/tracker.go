package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/rollcall/pkg/logger"
	"github.com/dmitrymomot/rollcall/svc/credential"
)

// LoginTracker appends login attempts to the account history. Failures are
// logged and never returned: bookkeeping must not block authentication.
type LoginTracker struct {
	repo   credential.Repository
	limit  int
	logger *slog.Logger
	now    func() time.Time
}

func NewLoginTracker(repo credential.Repository, limit int, log *slog.Logger) *LoginTracker {
	if log == nil {
		log = logger.Discard()
	}
	if limit <= 0 {
		limit = credential.LoginHistoryCap
	}
	return &LoginTracker{repo: repo, limit: limit, logger: log, now: time.Now}
}

// Record stores one attempt. A successful attempt also moves LastLoginAt.
// It returns the timestamp used.
func (t *LoginTracker) Record(ctx context.Context, id, ip, userAgent string, success bool) time.Time {
	at := t.now().UTC()
	attempt := credential.LoginAttempt{At: at, IPAddress: ip, UserAgent: userAgent, Success: success}

	if err := t.repo.AppendLogin(context.WithoutCancel(ctx), id, attempt, t.limit); err != nil {
		t.logger.WarnContext(ctx, "failed to record login attempt",
			logger.UserID(id),
			slog.Bool("success", success),
			logger.Error(err),
			logger.Component("login_tracker"),
		)
	}
	return at
}
