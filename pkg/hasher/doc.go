// Package hasher implements one-way password hashing.
//
// Bcrypt is the default algorithm. Argon2id is available for new
// deployments; Multi hashes with one algorithm and verifies hashes produced
// by any of the registered ones, so switching algorithms does not lock out
// existing accounts.
package hasher
