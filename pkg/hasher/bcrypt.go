package hasher

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches the cost used by accounts created before the
// service was ported, so their hashes verify with the same work factor.
const DefaultBcryptCost = 10

type bcryptHasher struct {
	cost int
}

// BcryptOption configures the bcrypt hasher.
type BcryptOption func(*bcryptHasher)

// WithCost sets the bcrypt work factor. Values outside bcrypt's range are
// rejected by NewBcrypt.
func WithCost(cost int) BcryptOption {
	return func(h *bcryptHasher) {
		h.cost = cost
	}
}

func NewBcrypt(opts ...BcryptOption) (Matcher, error) {
	h := &bcryptHasher{cost: DefaultBcryptCost}
	for _, opt := range opts {
		opt(h)
	}
	if h.cost < bcrypt.MinCost || h.cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%w: bcrypt cost %d out of range [%d, %d]",
			ErrInvalidConfig, h.cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return h, nil
}

func (h *bcryptHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptySecret
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrSecretTooLong
		}
		return "", errors.Join(ErrInvalidHash, err)
	}
	return string(out), nil
}

func (h *bcryptHasher) Verify(plaintext, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

func (h *bcryptHasher) Owns(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}
