// Package logger builds *slog.Logger instances for rollcall services.
//
// New assembles a text or JSON handler from functional options and wraps it
// with a handler that pulls request-scoped attributes (request id,
// client ip) out of the context on every record. The attr helpers keep key
// names consistent across packages:
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.AppEnv, "rollcall"),
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.ErrorContext(ctx, "password reset failed",
//		logger.Component("auth"),
//		logger.UserID(rec.ID),
//		logger.Error(err),
//	)
package logger
