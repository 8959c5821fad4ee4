// Package httpserver runs an http.Handler with configured timeouts and a
// graceful shutdown when the run context is cancelled.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	err := srv.Run(ctx, router)
//
// HealthCheckHandler serves liveness and readiness probes over a set of
// named dependency checks.
package httpserver
