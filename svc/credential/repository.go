package credential

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Repository is the storage contract for credential records. Reads return
// the full record including the secret hash; callers that respond to
// clients must serialize through the record's JSON tags, which omit it.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Record, error)
	FindByUsername(ctx context.Context, username string) (*Record, error)
	FindByEmail(ctx context.Context, email string) (*Record, error)
	// FindByTokenFingerprint returns the record whose grant for purpose has
	// the given fingerprint. Expiry is not checked.
	FindByTokenFingerprint(ctx context.Context, purpose Purpose, fingerprint string) (*Record, error)

	UsernameTakenExcludingID(ctx context.Context, username, id string) (bool, error)
	EmailTakenExcludingID(ctx context.Context, email, id string) (bool, error)

	// Create stores rec, assigning ID and timestamps when unset.
	Create(ctx context.Context, rec *Record) error
	UpdateFields(ctx context.Context, id string, upd Update) error

	// ConsumeToken atomically matches an unexpired grant described by claim,
	// applies upd and clears the grant. It returns the updated record or
	// ErrTokenNotFound when nothing matched.
	ConsumeToken(ctx context.Context, claim Claim, upd Update) (*Record, error)
	// IncrementOTPAttempts bumps the failed attempt counter of the OTP grant
	// of id, provided the stored fingerprint still equals fingerprint.
	IncrementOTPAttempts(ctx context.Context, id, fingerprint string) error
	// AppendLogin appends attempt, keeps the newest limit entries and, on
	// success, sets LastLoginAt to attempt.At.
	AppendLogin(ctx context.Context, id string, attempt LoginAttempt, limit int) error
}

// Update is a partial update. Nil fields are left untouched.
type Update struct {
	SecretHash      *string
	Email           *string
	PendingEmail    *string // pointer to "" clears the staged address
	IsEmailVerified *bool
	IsActive        *bool
	// PromotePendingEmail copies PendingEmail into Email and clears PendingEmail.
	PromotePendingEmail bool
	VerifiedFingerprint *string
	// Issue overwrites the grant of its purpose. Issuing an OTP resets the
	// attempt counter.
	Issue *Issue
	Clear []Purpose
}

// Issue sets a fresh grant for a purpose.
type Issue struct {
	Purpose Purpose
	Grant   Grant
}

// Claim describes the grant a ConsumeToken call must match.
type Claim struct {
	Purpose     Purpose
	Fingerprint string
	Now         time.Time
	// RecordID scopes the match to one record. Required for OTP claims,
	// whose code space is too small to be globally unique.
	RecordID string
	// MaxAttempts, when positive, requires OTPAttempts < MaxAttempts.
	MaxAttempts int
	// Unverified requires IsEmailVerified to be false.
	Unverified bool
}

func (c Claim) validate() error {
	if !issuable(c.Purpose) {
		return fmt.Errorf("%w: cannot consume purpose %q", ErrInvalidRecord, c.Purpose)
	}
	if c.Fingerprint == "" {
		return fmt.Errorf("%w: empty fingerprint", ErrInvalidRecord)
	}
	if c.Purpose == PurposeOTP && c.RecordID == "" {
		return fmt.Errorf("%w: otp claims must be scoped to a record", ErrInvalidRecord)
	}
	return nil
}

func (u Update) validate() error {
	if u.Issue != nil {
		if !issuable(u.Issue.Purpose) {
			return fmt.Errorf("%w: cannot issue purpose %q", ErrInvalidRecord, u.Issue.Purpose)
		}
		if u.Issue.Grant.Fingerprint == "" || u.Issue.Grant.ExpiresAt.IsZero() {
			return fmt.Errorf("%w: grant needs fingerprint and expiry", ErrInvalidRecord)
		}
	}
	for _, p := range u.Clear {
		if !issuable(p) {
			return fmt.Errorf("%w: cannot clear purpose %q", ErrInvalidRecord, p)
		}
	}
	return nil
}

// apply mutates r in place. Used by the memory store and by tests.
func (u Update) apply(r *Record) {
	if u.SecretHash != nil {
		r.SecretHash = *u.SecretHash
	}
	if u.Email != nil {
		r.Email = *u.Email
	}
	if u.PendingEmail != nil {
		r.PendingEmail = *u.PendingEmail
	}
	if u.PromotePendingEmail {
		r.Email = r.PendingEmail
		r.PendingEmail = ""
	}
	if u.IsEmailVerified != nil {
		r.IsEmailVerified = *u.IsEmailVerified
	}
	if u.IsActive != nil {
		r.IsActive = *u.IsActive
	}
	if u.VerifiedFingerprint != nil {
		r.VerifiedFingerprint = *u.VerifiedFingerprint
	}
	for _, p := range u.Clear {
		r.setGrant(p, nil)
	}
	if u.Issue != nil {
		g := u.Issue.Grant
		r.setGrant(u.Issue.Purpose, &g)
	}
}

func issuable(p Purpose) bool {
	switch p {
	case PurposePasswordReset, PurposeEmailVerification, PurposeOTP:
		return true
	}
	return false
}

func validateNew(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}
	if strings.TrimSpace(rec.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidRecord)
	}
	if rec.SecretHash == "" {
		return fmt.Errorf("%w: secret hash is required", ErrInvalidRecord)
	}
	if !rec.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidRecord, rec.Role)
	}
	return nil
}

// Ptr returns a pointer to v. Shorthand for building Update values.
func Ptr[T any](v T) *T { return &v }
