// Package credential owns the persisted credential record of every user and
// the repository contract over it.
//
// A Record carries the password hash, role, email verification state, the
// outstanding single-use grants (password reset link, email verification
// link, OTP code) and a bounded login history. Grants are stored as
// fingerprint + expiry pairs and are always set or cleared together.
//
// Three Repository implementations are provided: MemoryStore for tests and
// local development, MongoStore and PostgresStore for deployments. Every
// store performs token redemption as a single conditional update
// (ConsumeToken), so a token can be redeemed at most once even under
// concurrent requests, and translates driver errors into the sentinel
// errors of this package.
package credential
