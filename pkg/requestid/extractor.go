package requestid

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/rollcall/pkg/logger"
)

// LoggerExtractor is a logger.ContextExtractor adding "request_id".
func LoggerExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		id := FromContext(ctx)
		return logger.RequestID(id), id != ""
	}
}
