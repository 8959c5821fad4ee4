package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"

	"github.com/dmitrymomot/rollcall/handler"
	"github.com/dmitrymomot/rollcall/modules/account"
	"github.com/dmitrymomot/rollcall/pkg/clientip"
	"github.com/dmitrymomot/rollcall/pkg/config"
	"github.com/dmitrymomot/rollcall/pkg/email"
	"github.com/dmitrymomot/rollcall/pkg/httpserver"
	"github.com/dmitrymomot/rollcall/pkg/jwt"
	"github.com/dmitrymomot/rollcall/pkg/logger"
	"github.com/dmitrymomot/rollcall/pkg/ratelimiter"
	"github.com/dmitrymomot/rollcall/pkg/redis"
	"github.com/dmitrymomot/rollcall/pkg/requestid"
	"github.com/dmitrymomot/rollcall/svc/auth"
	"github.com/dmitrymomot/rollcall/svc/credential"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(
		logger.WithEnvironment(cfg.Env, serviceName),
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithContextExtractors(requestid.LoggerExtractor(), auth.LoggerExtractor()),
	)

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorContext(ctx, "server stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	checks := map[string]httpserver.CheckFunc{}

	storage, err := credential.Open(ctx, cfg.StorageDriver, log)
	if err != nil {
		return err
	}
	defer storage.Close()
	if storage.Name == "" {
		log.WarnContext(ctx, "using in-memory credential store; data is lost on restart")
	} else {
		checks[storage.Name] = storage.Check
	}
	repo := storage.Repository

	limiter, closeLimiter, err := openRateLimiter(ctx, cfg, checks)
	if err != nil {
		return err
	}
	defer closeLimiter()

	var mailCfg email.Config
	if err := config.Load(&mailCfg); err != nil {
		return err
	}
	mailer, err := email.New(mailCfg)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}

	var authCfg auth.Config
	if err := config.Load(&authCfg); err != nil {
		return err
	}
	sessions, err := jwt.NewFromString(authCfg.JWTSecret,
		jwt.WithTTL(authCfg.SessionTTL),
		jwt.WithIssuer(authCfg.JWTIssuer),
	)
	if err != nil {
		return fmt.Errorf("session issuer: %w", err)
	}

	svc, err := auth.NewService(authCfg, repo, sessions, mailer, auth.WithLogger(log))
	if err != nil {
		return err
	}

	var mod *account.Module
	gate := auth.NewGate(sessions, repo, auth.WithErrorResponder(func(w http.ResponseWriter, r *http.Request, err error) {
		mod.Respond(w, r, err)
	}))
	mod = account.New(svc, gate,
		account.WithLogger(log),
		account.WithRateLimit(ratelimiter.Middleware(limiter,
			ratelimiter.Prefixed("auth", ratelimiter.ByIP),
			ratelimiter.WithExceededHandler(func(w http.ResponseWriter, r *http.Request, _ *ratelimiter.Result) {
				_ = handler.JSONError(handler.ErrTooManyRequests).Render(w, r)
			}),
		)),
	)

	r := chi.NewRouter()
	r.Use(
		requestid.Middleware,
		clientip.Middleware,
		middleware.Recoverer,
		middleware.Timeout(30*time.Second),
	)
	r.Get("/health", httpserver.HealthCheckHandler(log, 5*time.Second, checks))
	r.Mount("/", mod.Handle())

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSAllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-Request-ID"}),
	)

	var srvCfg httpserver.Config
	if err := config.Load(&srvCfg); err != nil {
		return err
	}
	srv := httpserver.NewFromConfig(srvCfg, httpserver.WithLogger(log))
	return srv.Run(ctx, cors(r))
}

func openRateLimiter(ctx context.Context, cfg appConfig, checks map[string]httpserver.CheckFunc) (*ratelimiter.Bucket, func(), error) {
	var (
		store   ratelimiter.Store
		closeFn = func() {}
	)
	switch cfg.RateLimitStore {
	case "redis":
		var rcfg redis.Config
		if err := config.Load(&rcfg); err != nil {
			return nil, nil, err
		}
		client, err := redis.Connect(ctx, rcfg)
		if err != nil {
			return nil, nil, err
		}
		checks["redis"] = redis.Healthcheck(client)
		store = ratelimiter.NewRedisStore(client, ratelimiter.WithKeyPrefix(serviceName+":rl:"))
		closeFn = func() { _ = client.Close() }
	case "memory", "":
		mem := ratelimiter.NewMemoryStore()
		store = mem
		closeFn = mem.Close
	default:
		return nil, nil, fmt.Errorf("unknown rate limit store %q", cfg.RateLimitStore)
	}

	bucket, err := ratelimiter.NewBucket(store, cfg.RateLimit)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return bucket, closeFn, nil
}
