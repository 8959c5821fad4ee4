package credential

import "errors"

var (
	ErrNotFound          = errors.New("credential: record not found")
	ErrDuplicateIdentity = errors.New("credential: username or email already in use")
	ErrTokenNotFound     = errors.New("credential: no matching outstanding token")
	ErrInvalidRecord     = errors.New("credential: invalid record")
	ErrStorage           = errors.New("credential: storage failure")
)
