package account

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrymomot/rollcall/handler"
	"github.com/dmitrymomot/rollcall/svc/auth"
	"github.com/dmitrymomot/rollcall/svc/credential"
)

var (
	errMissingCredentials = handler.HTTPError{Code: http.StatusBadRequest, Key: "missing_credentials", Message: "Username and password are required"}
	errInvalidCredentials = handler.HTTPError{Code: http.StatusBadRequest, Key: "invalid_credentials", Message: "Invalid credentials"}
	errInvalidPassword    = handler.HTTPError{Code: http.StatusBadRequest, Key: "invalid_password", Message: "Current password is incorrect"}
	errUserNotFound       = handler.HTTPError{Code: http.StatusBadRequest, Key: "user_not_found", Message: "No user found with this email"}
	errInvalidToken       = handler.HTTPError{Code: http.StatusBadRequest, Key: "invalid_or_expired_token", Message: "Invalid or expired token"}
	errInvalidOTP         = handler.HTTPError{Code: http.StatusBadRequest, Key: "invalid_otp", Message: "Invalid OTP"}
	errTooManyAttempts    = handler.HTTPError{Code: http.StatusBadRequest, Key: "too_many_attempts", Message: "Too many failed attempts. Please request a new OTP"}
	errEmailInUse         = handler.HTTPError{Code: http.StatusBadRequest, Key: "email_in_use", Message: "Email is already in use by another account"}
	errUsernameTaken      = handler.HTTPError{Code: http.StatusBadRequest, Key: "username_taken", Message: "Username is already taken"}
	errEmailLinked        = handler.HTTPError{Code: http.StatusBadRequest, Key: "email_already_linked", Message: "A verified email is already linked to this account"}
	errIdentityTaken      = handler.HTTPError{Code: http.StatusBadRequest, Key: "identity_taken", Message: "Username or email is already in use"}
	errEmailVerified      = handler.HTTPError{Code: http.StatusBadRequest, Key: "email_already_verified", Message: "Email is already verified"}
	errEmailNotVerified   = handler.HTTPError{
		Code:    http.StatusForbidden,
		Key:     "email_not_verified",
		Message: "Email verification required. Please verify your email address before proceeding.",
		Meta:    map[string]any{"requires_email_verification": true},
	}
)

// mappings is the single translation table from service errors to
// client-facing errors. Order matters only for wrapped errors.
var mappings = []struct {
	target error
	http   handler.HTTPError
}{
	{auth.ErrMissingCredentials, errMissingCredentials},
	{auth.ErrInvalidCredentials, errInvalidCredentials},
	{auth.ErrIncorrectPassword, errInvalidPassword},
	{auth.ErrUserNotFound, errUserNotFound},
	{auth.ErrInvalidOrExpiredToken, errInvalidToken},
	{auth.ErrInvalidOTP, errInvalidOTP},
	{auth.ErrTooManyAttempts, errTooManyAttempts},
	{auth.ErrEmailInUse, errEmailInUse},
	{auth.ErrUsernameTaken, errUsernameTaken},
	{auth.ErrEmailAlreadyLinked, errEmailLinked},
	{auth.ErrEmailAlreadyVerified, errEmailVerified},
	{auth.ErrIdentityTaken, errIdentityTaken},
	{credential.ErrDuplicateIdentity, errEmailInUse},
	{auth.ErrEmailNotVerified, errEmailNotVerified},
	{auth.ErrUnauthorized, handler.ErrUnauthorized},
	{auth.ErrForbidden, handler.ErrForbidden},
}

// override changes the status of one mapped error on a single route.
type override struct {
	target error
	code   int
}

func status(target error, code int) override {
	return override{target: target, code: code}
}

// mapError wraps err with its HTTPError. Unmapped errors are returned as is
// and end up as validation failures or a generic 500.
func mapError(err error, overrides ...override) error {
	for _, m := range mappings {
		if !errors.Is(err, m.target) {
			continue
		}
		h := m.http
		for _, o := range overrides {
			if errors.Is(err, o.target) {
				h.Code = o.code
			}
		}
		return fmt.Errorf("%w: %w", h, err)
	}
	return err
}
