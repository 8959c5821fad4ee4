// Package mongo opens MongoDB connections from environment configuration.
//
// Connect retries until the server answers a ping or the attempts run out,
// and returns the configured database handle. Healthcheck plugs into
// httpserver.HealthCheckHandler.
package mongo
