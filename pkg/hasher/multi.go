package hasher

// Multi hashes new secrets with primary and verifies stored hashes with
// whichever registered hasher owns the hash format.
type Multi struct {
	primary Matcher
	others  []Matcher
}

var _ Hasher = (*Multi)(nil)

func NewMulti(primary Matcher, others ...Matcher) *Multi {
	return &Multi{primary: primary, others: others}
}

func (m *Multi) Hash(plaintext string) (string, error) {
	return m.primary.Hash(plaintext)
}

func (m *Multi) Verify(plaintext, hash string) bool {
	if m.primary.Owns(hash) {
		return m.primary.Verify(plaintext, hash)
	}
	for _, h := range m.others {
		if h.Owns(hash) {
			return h.Verify(plaintext, hash)
		}
	}
	return false
}

// NeedsRehash reports whether hash was produced by a non-primary algorithm.
func (m *Multi) NeedsRehash(hash string) bool {
	return !m.primary.Owns(hash)
}

// New builds the hasher selected by name ("bcrypt" or "argon2id"). Bcrypt
// hashes always verify regardless of the selection.
func New(name string, bcryptCost int) (*Multi, error) {
	bc, err := NewBcrypt(WithCost(bcryptCost))
	if err != nil {
		return nil, err
	}
	switch name {
	case "", "bcrypt":
		return NewMulti(bc), nil
	case argon2ID:
		a2, err := NewArgon2id(DefaultArgon2Params())
		if err != nil {
			return nil, err
		}
		return NewMulti(a2, bc), nil
	default:
		return nil, ErrInvalidConfig
	}
}
