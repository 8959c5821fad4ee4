package validator_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/rollcall/pkg/validator"
)

func TestApply(t *testing.T) {
	t.Parallel()

	err := validator.Apply(
		validator.Required("username", " "),
		validator.MinLen("password", "abc", 6),
		validator.MinLen("password", "abc", 2),
		validator.Email("email", "not-an-email"),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, validator.ErrValidationFailed)

	ve, ok := validator.Extract(fmt.Errorf("wrapped: %w", err))
	require.True(t, ok)
	assert.Len(t, ve, 3)
	assert.True(t, ve.Has("username"))
	assert.Equal(t, map[string][]string{
		"username": {"field is required"},
		"password": {"must be at least 6 characters long"},
		"email":    {"must be a valid email address"},
	}, ve.Fields())

	assert.NoError(t, validator.Apply(validator.Required("username", "alice")))
}

func TestEmail(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"alice@example.com":         true,
		"a.b+tag@sub.example.co.uk": true,
		"Alice <alice@example.com>": false,
		"alice@localhost":           false,
		"alice@example..com":        false,
		"@example.com":              false,
		"":                          false,
	}
	for addr, want := range tests {
		t.Run(addr, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, want, validator.Email("email", addr).Check())
		})
	}
}

func TestDigits(t *testing.T) {
	t.Parallel()

	assert.True(t, validator.Digits("otp", "012345", 6).Check())
	assert.False(t, validator.Digits("otp", "12345", 6).Check())
	assert.False(t, validator.Digits("otp", "12a456", 6).Check())
	assert.False(t, validator.Digits("otp", "١٢٣٤٥٦", 6).Check())
}

func TestInListAndWhen(t *testing.T) {
	t.Parallel()

	roles := []string{"admin", "sho", "student"}
	assert.True(t, validator.InList("role", "sho", roles).Check())
	assert.False(t, validator.InList("role", "root", roles).Check())

	assert.True(t, validator.When(false, validator.Required("email", "")).Check())
	assert.False(t, validator.When(true, validator.Required("email", "")).Check())
}

func TestNewError(t *testing.T) {
	t.Parallel()

	var err error = validator.NewError("email", "already in use", "validation.email_in_use")
	assert.True(t, errors.Is(err, validator.ErrValidationFailed))
	assert.Equal(t, "validation failed: email: already in use", err.Error())
}
