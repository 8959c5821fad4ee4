package credential

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a Repository backed by a map. All operations hold a single
// mutex, which makes ConsumeToken trivially atomic.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	now     func() time.Time
}

var _ Repository = (*MemoryStore)(nil)

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithMemoryClock overrides the clock used for CreatedAt/UpdatedAt.
func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]*Record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) FindByUsername(_ context.Context, username string) (*Record, error) {
	return s.findOne(func(r *Record) bool { return r.Username == username })
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*Record, error) {
	if email == "" {
		return nil, ErrNotFound
	}
	return s.findOne(func(r *Record) bool { return strings.EqualFold(r.Email, email) })
}

func (s *MemoryStore) FindByTokenFingerprint(_ context.Context, purpose Purpose, fingerprint string) (*Record, error) {
	if fingerprint == "" {
		return nil, ErrNotFound
	}
	return s.findOne(func(r *Record) bool {
		if purpose == PurposeEmailVerified {
			return r.VerifiedFingerprint == fingerprint
		}
		g := r.Grant(purpose)
		return g != nil && g.Fingerprint == fingerprint
	})
}

func (s *MemoryStore) UsernameTakenExcludingID(_ context.Context, username, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usernameTaken(username, id), nil
}

func (s *MemoryStore) EmailTakenExcludingID(_ context.Context, email, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emailTaken(email, id), nil
}

func (s *MemoryStore) Create(_ context.Context, rec *Record) error {
	if err := validateNew(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.usernameTaken(rec.Username, "") || s.emailTaken(rec.Email, "") {
		return ErrDuplicateIdentity
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, exists := s.records[rec.ID]; exists {
		return ErrDuplicateIdentity
	}

	now := s.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *MemoryStore) UpdateFields(_ context.Context, id string, upd Update) error {
	if err := upd.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	return s.applyLocked(rec, upd)
}

func (s *MemoryStore) ConsumeToken(_ context.Context, claim Claim, upd Update) (*Record, error) {
	if err := claim.validate(); err != nil {
		return nil, err
	}
	if err := upd.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if !matchesClaim(rec, claim) {
			continue
		}
		upd.Clear = append(slices.Clone(upd.Clear), claim.Purpose)
		if err := s.applyLocked(rec, upd); err != nil {
			return nil, err
		}
		return rec.Clone(), nil
	}
	return nil, ErrTokenNotFound
}

func (s *MemoryStore) IncrementOTPAttempts(_ context.Context, id, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.OTP == nil || rec.OTP.Fingerprint != fingerprint {
		return ErrTokenNotFound
	}
	rec.OTPAttempts++
	rec.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) AppendLogin(_ context.Context, id string, attempt LoginAttempt, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.LoginHistory = AppendAttempt(rec.LoginHistory, attempt, limit)
	if attempt.Success {
		at := attempt.At
		rec.LastLoginAt = &at
	}
	rec.UpdatedAt = s.now().UTC()
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) findOne(match func(*Record) bool) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if match(rec) {
			return rec.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// applyLocked applies upd to rec after checking email uniqueness. The
// caller must hold the write lock.
func (s *MemoryStore) applyLocked(rec *Record, upd Update) error {
	next := rec.Clone()
	upd.apply(next)
	if next.Email != rec.Email && s.emailTaken(next.Email, rec.ID) {
		return ErrDuplicateIdentity
	}
	next.UpdatedAt = s.now().UTC()
	*rec = *next
	return nil
}

func (s *MemoryStore) usernameTaken(username, excludeID string) bool {
	for id, r := range s.records {
		if id != excludeID && r.Username == username {
			return true
		}
	}
	return false
}

func (s *MemoryStore) emailTaken(email, excludeID string) bool {
	if email == "" {
		return false
	}
	for id, r := range s.records {
		if id != excludeID && strings.EqualFold(r.Email, email) {
			return true
		}
	}
	return false
}

func matchesClaim(rec *Record, c Claim) bool {
	if c.RecordID != "" && rec.ID != c.RecordID {
		return false
	}
	g := rec.Grant(c.Purpose)
	if !g.Active(c.Now) || g.Fingerprint != c.Fingerprint {
		return false
	}
	if c.MaxAttempts > 0 && c.Purpose == PurposeOTP && rec.OTPAttempts >= c.MaxAttempts {
		return false
	}
	if c.Unverified && rec.IsEmailVerified {
		return false
	}
	return true
}
