package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
)

const (
	// OpaqueBytes is the entropy of link tokens: 256 bits.
	OpaqueBytes = 32
	// OTPDigits is the length of numeric one-time codes.
	OTPDigits = 6
)

var otpSpace = big.NewInt(1_000_000)

// Reader is the entropy source. Tests may swap it; production code must not.
var Reader io.Reader = rand.Reader

// NewOpaque returns a hex-encoded random token of OpaqueBytes bytes.
func NewOpaque() (string, error) {
	buf := make([]byte, OpaqueBytes)
	if _, err := io.ReadFull(Reader, buf); err != nil {
		return "", errors.Join(ErrRandomSource, err)
	}
	return hex.EncodeToString(buf), nil
}

// NewOTP returns a uniformly distributed 6-digit decimal code, zero padded.
func NewOTP() (string, error) {
	n, err := rand.Int(Reader, otpSpace)
	if err != nil {
		return "", errors.Join(ErrRandomSource, err)
	}
	return fmt.Sprintf("%0*d", OTPDigits, n.Int64()), nil
}

// Fingerprint returns the SHA-256 hex digest used to store and look up raw tokens.
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Equal compares two fingerprints in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// IsOTP reports whether s has the shape of an OTP code.
func IsOTP(s string) bool {
	if len(s) != OTPDigits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
