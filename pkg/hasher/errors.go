package hasher

import "errors"

var (
	ErrEmptySecret   = errors.New("hasher: empty secret")
	ErrSecretTooLong = errors.New("hasher: secret exceeds 72 bytes")
	ErrInvalidHash   = errors.New("hasher: invalid hash format")
	ErrInvalidConfig = errors.New("hasher: invalid configuration")
)
