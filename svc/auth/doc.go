// Package auth orchestrates the credential lifecycle: password login,
// password reset by link or one-time code, email verification and linking,
// and the HTTP gates that protect authenticated routes.
//
// Every flow follows the same shape. A request forges a random token,
// persists only its fingerprint with an expiry and mails the raw value.
// Redemption fingerprints the presented value and consumes the matching
// grant with a single conditional update in the repository, so a token can
// never be redeemed twice even under concurrent requests.
//
// Mail delivery failures do not undo issuance. The operation succeeds and
// returns a Delivery carrying a warning the HTTP layer passes to the client.
package auth
