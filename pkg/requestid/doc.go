// Package requestid tags every request with a correlation id.
//
// Middleware reuses a well-formed X-Request-ID header or generates a UUID,
// echoes it in the response and stores it in the context. LoggerExtractor
// plugs the id into pkg/logger so every log line of a request carries it.
package requestid
