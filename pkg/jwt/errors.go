package jwt

import "errors"

var (
	ErrInvalidToken      = errors.New("jwt: invalid token")
	ErrExpiredToken      = errors.New("jwt: token is expired")
	ErrMissingSigningKey = errors.New("jwt: missing signing key")
	ErrInvalidTTL        = errors.New("jwt: ttl must be positive")
	ErrMissingSubject    = errors.New("jwt: missing subject")
)
