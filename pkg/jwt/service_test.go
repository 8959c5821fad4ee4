package jwt_test

import (
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/rollcall/pkg/jwt"
)

const secret = "0123456789abcdef0123456789abcdef"

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestService_IssueValidate(t *testing.T) {
	t.Parallel()

	issued := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	svc, err := jwt.NewFromString(secret, jwt.WithClock(fixedClock(issued)), jwt.WithIssuer("rollcall"))
	require.NoError(t, err)

	raw, err := svc.Issue("user-1", "student")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(raw, "."))

	claims, err := svc.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "student", claims.Role)
	assert.Equal(t, "rollcall", claims.Issuer)
	assert.Equal(t, issued.Add(jwt.DefaultTTL), claims.ExpiresAt.Time.UTC())
}

func TestService_Validate_Rejects(t *testing.T) {
	t.Parallel()

	issued := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	svc, err := jwt.NewFromString(secret, jwt.WithClock(fixedClock(issued)), jwt.WithTTL(time.Hour))
	require.NoError(t, err)
	raw, err := svc.Issue("user-1", "admin")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		t.Parallel()
		later, err := jwt.NewFromString(secret, jwt.WithClock(fixedClock(issued.Add(2*time.Hour))))
		require.NoError(t, err)
		_, err = later.Validate(raw)
		assert.ErrorIs(t, err, jwt.ErrExpiredToken)
	})

	t.Run("other key", func(t *testing.T) {
		t.Parallel()
		other, err := jwt.NewFromString("another-secret-another-secret-xx", jwt.WithClock(fixedClock(issued)))
		require.NoError(t, err)
		_, err = other.Validate(raw)
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("tampered", func(t *testing.T) {
		t.Parallel()
		_, err := svc.Validate(raw + "A")
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		_, err := svc.Validate("")
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		t.Parallel()
		unsigned, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, gojwt.MapClaims{
			"sub": "user-1",
			"exp": issued.Add(time.Hour).Unix(),
		}).SignedString(gojwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.Validate(unsigned)
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("missing expiry", func(t *testing.T) {
		t.Parallel()
		forever, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{"sub": "user-1"}).
			SignedString([]byte(secret))
		require.NoError(t, err)
		_, err = svc.Validate(forever)
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	_, err := jwt.New(nil)
	assert.ErrorIs(t, err, jwt.ErrMissingSigningKey)

	_, err = jwt.NewFromString(secret, jwt.WithTTL(0))
	assert.ErrorIs(t, err, jwt.ErrInvalidTTL)

	svc, err := jwt.NewFromString(secret)
	require.NoError(t, err)
	_, err = svc.Issue("", "admin")
	assert.ErrorIs(t, err, jwt.ErrMissingSubject)
}
