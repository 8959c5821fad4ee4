package credential

import (
	"slices"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStaff   Role = "sho"
	RoleStudent Role = "student"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleStudent:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// RequiresEmail reports whether accounts of this role must carry an email.
func (r Role) RequiresEmail() bool {
	return r == RoleStaff || r == RoleStudent
}

// Purpose selects which grant an operation targets.
type Purpose string

const (
	PurposePasswordReset     Purpose = "password_reset"
	PurposeEmailVerification Purpose = "email_verification"
	PurposeOTP               Purpose = "otp"
	// PurposeEmailVerified addresses the fingerprint of the verification
	// token that was last redeemed. It is never issued directly.
	PurposeEmailVerified Purpose = "email_verified"
)

// Grant is an outstanding single-use token: its fingerprint and expiry.
type Grant struct {
	Fingerprint string    `json:"-" bson:"fingerprint"`
	ExpiresAt   time.Time `json:"expires_at" bson:"expires_at"`
}

// Active reports whether the grant exists and has not expired at now.
func (g *Grant) Active(now time.Time) bool {
	return g != nil && g.Fingerprint != "" && now.Before(g.ExpiresAt)
}

// LoginHistoryCap is the default number of login attempts kept per record.
const LoginHistoryCap = 50

// LoginAttempt is one entry of the login history.
type LoginAttempt struct {
	At        time.Time `json:"login_time" bson:"login_time"`
	IPAddress string    `json:"ip_address,omitempty" bson:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
	Success   bool      `json:"success" bson:"success"`
}

// Record is the persisted credential entity of one user.
type Record struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email,omitempty"`
	FullName   string `json:"full_name,omitempty"`
	SecretHash string `json:"-"`
	Role       Role   `json:"role"`

	IsActive        bool   `json:"is_active"`
	IsEmailVerified bool   `json:"is_email_verified"`
	PendingEmail    string `json:"pending_email,omitempty"`

	PasswordReset       *Grant `json:"-"`
	EmailVerification   *Grant `json:"-"`
	VerifiedFingerprint string `json:"-"`
	OTP                 *Grant `json:"-"`
	OTPAttempts         int    `json:"-"`

	LoginHistory []LoginAttempt `json:"-"`
	LastLoginAt  *time.Time     `json:"last_login,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers cannot mutate store-owned state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.PasswordReset = cloneGrant(r.PasswordReset)
	c.EmailVerification = cloneGrant(r.EmailVerification)
	c.OTP = cloneGrant(r.OTP)
	c.LoginHistory = slices.Clone(r.LoginHistory)
	if r.LastLoginAt != nil {
		t := *r.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

// Grant returns the grant stored for purpose, or nil.
func (r *Record) Grant(p Purpose) *Grant {
	switch p {
	case PurposePasswordReset:
		return r.PasswordReset
	case PurposeEmailVerification:
		return r.EmailVerification
	case PurposeOTP:
		return r.OTP
	}
	return nil
}

func (r *Record) setGrant(p Purpose, g *Grant) {
	switch p {
	case PurposePasswordReset:
		r.PasswordReset = g
	case PurposeEmailVerification:
		r.EmailVerification = g
	case PurposeOTP:
		r.OTP = g
		r.OTPAttempts = 0
	}
}

func cloneGrant(g *Grant) *Grant {
	if g == nil {
		return nil
	}
	c := *g
	return &c
}

// AppendAttempt appends a to history keeping the newest limit entries.
func AppendAttempt(history []LoginAttempt, a LoginAttempt, limit int) []LoginAttempt {
	history = append(history, a)
	if limit > 0 && len(history) > limit {
		history = slices.Clone(history[len(history)-limit:])
	}
	return history
}
