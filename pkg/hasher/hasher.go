package hasher

// Hasher hashes and verifies secrets.
type Hasher interface {
	// Hash returns a self-describing hash with a random salt baked in.
	Hash(plaintext string) (string, error)
	// Verify reports whether plaintext matches hash. Malformed hashes
	// never match.
	Verify(plaintext, hash string) bool
}

// Matcher is a Hasher that can tell whether it produced a given hash.
type Matcher interface {
	Hasher
	Owns(hash string) bool
}
