// Package token generates single-use secrets and their lookup fingerprints.
//
// Raw values (opaque link tokens and 6-digit OTP codes) are handed to the
// user exactly once, usually by email. Only the fingerprint, a SHA-256 hex
// digest, is persisted. Fingerprints are deterministic so a presented token
// can be found by equality.
//
//	raw, _ := token.NewOpaque()
//	rec.PasswordReset = &credential.Grant{
//		Fingerprint: token.Fingerprint(raw),
//		ExpiresAt:   now.Add(time.Hour),
//	}
package token
