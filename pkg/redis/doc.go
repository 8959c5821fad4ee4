// Package redis connects to Redis from environment configuration.
//
// The client backs the shared rate limiter store when RATE_LIMIT_STORE is
// "redis". Healthcheck plugs into httpserver.HealthCheckHandler.
package redis
