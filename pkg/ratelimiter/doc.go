// Package ratelimiter implements a token bucket limiter with pluggable
// storage.
//
// A Bucket holds the Config (capacity, refill rate and interval) and asks a
// Store to atomically refill and consume tokens for a key. MemoryStore keeps
// buckets in process; RedisStore runs the same algorithm as a Lua script so
// several server instances share one budget per key.
//
// Middleware applies a Bucket to HTTP requests, keyed by a KeyFunc such as
// ByIP, and answers 429 with Retry-After once the bucket is empty.
package ratelimiter
