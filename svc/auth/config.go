package auth

import "time"

// Config holds the credential lifecycle settings.
type Config struct {
	JWTSecret  string        `env:"JWT_SECRET,required"`
	JWTIssuer  string        `env:"JWT_ISSUER" envDefault:"rollcall"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	ResetTokenTTL        time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`
	EmailVerificationTTL time.Duration `env:"EMAIL_VERIFICATION_TTL" envDefault:"1h"`
	OTPTTL               time.Duration `env:"OTP_TTL" envDefault:"10m"`
	OTPMaxAttempts       int           `env:"OTP_MAX_ATTEMPTS" envDefault:"3"`

	LoginHistoryCap   int `env:"LOGIN_HISTORY_CAP" envDefault:"50"`
	MinPasswordLength int `env:"MIN_PASSWORD_LENGTH" envDefault:"6"`

	// AppBaseURL prefixes the links mailed to users.
	AppBaseURL     string `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`
	PasswordHasher string `env:"PASSWORD_HASHER" envDefault:"bcrypt"`
	BcryptCost     int    `env:"BCRYPT_COST" envDefault:"10"`
}

// DefaultConfig returns the documented defaults with an empty secret.
func DefaultConfig() Config {
	return Config{
		JWTIssuer:            "rollcall",
		SessionTTL:           24 * time.Hour,
		ResetTokenTTL:        time.Hour,
		EmailVerificationTTL: time.Hour,
		OTPTTL:               10 * time.Minute,
		OTPMaxAttempts:       3,
		LoginHistoryCap:      50,
		MinPasswordLength:    6,
		AppBaseURL:           "http://localhost:3000",
		PasswordHasher:       "bcrypt",
		BcryptCost:           10,
	}
}
