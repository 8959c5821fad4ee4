package main

import (
	"github.com/dmitrymomot/rollcall/pkg/ratelimiter"
)

const serviceName = "rollcall"

type appConfig struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	StorageDriver  string `env:"STORAGE_DRIVER" envDefault:"memory"`
	RateLimitStore string `env:"RATE_LIMIT_STORE" envDefault:"memory"`

	RateLimit ratelimiter.Config `envPrefix:"RATE_LIMIT_"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}
