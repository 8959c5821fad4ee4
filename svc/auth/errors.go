package auth

import "errors"

// Authentication errors
var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrIncorrectPassword  = errors.New("current password is incorrect")
	ErrUserNotFound       = errors.New("no user found with this email")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrEmailNotVerified   = errors.New("email verification required")
)

// Token errors
var (
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrInvalidOTP            = errors.New("invalid OTP")
	ErrTooManyAttempts       = errors.New("too many failed attempts, request a new code")
)

// Identity errors
var (
	ErrEmailInUse           = errors.New("email is already used by another account")
	ErrUsernameTaken        = errors.New("username is already taken")
	ErrEmailAlreadyLinked   = errors.New("a verified email is already linked to this account")
	ErrEmailAlreadyVerified = errors.New("email is already verified")
	// ErrIdentityTaken is a duplicate whose field could not be determined.
	ErrIdentityTaken        = errors.New("username or email is already in use")
)

// ErrDeliveryFailed wraps mail transport failures. It never fails an
// operation; it is reported through Delivery.
var ErrDeliveryFailed = errors.New("email delivery failed")

var ErrInvalidConfig = errors.New("invalid auth configuration")
