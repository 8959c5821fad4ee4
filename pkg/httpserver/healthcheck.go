package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/rollcall/pkg/logger"
)

// CheckFunc probes one dependency.
type CheckFunc func(context.Context) error

// HealthCheckHandler answers 200 {"status":"ok"} when every check passes
// and 503 naming the failing checks otherwise. With no checks it is a
// liveness probe. Each check gets timeout.
func HealthCheckHandler(log *slog.Logger, timeout time.Duration, checks map[string]CheckFunc) http.HandlerFunc {
	if log == nil {
		log = logger.Discard()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		result := map[string]string{}

		for name, check := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			err := check(ctx)
			cancel()
			if err != nil {
				status = http.StatusServiceUnavailable
				result[name] = "unavailable"
				log.ErrorContext(r.Context(), "health check failed",
					logger.Component(name), logger.Error(err))
				continue
			}
			result[name] = "ok"
		}

		body := map[string]any{"status": "ok", "checks": result}
		if status != http.StatusOK {
			body["status"] = "unavailable"
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
