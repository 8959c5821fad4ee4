// Package jwt issues and validates the stateless HS256 session tokens
// handed out on login.
//
// Tokens carry the user id in the "sub" claim and the account role in a
// private "role" claim. Validation checks only the signature and the
// registered time claims; whether the account still exists is left to the
// caller.
//
// The package also provides an HTTP middleware that extracts a bearer token,
// validates it and stores the resulting Claims in the request context
// (see SetClaims / GetClaims).
package jwt
