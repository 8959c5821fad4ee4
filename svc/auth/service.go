package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/rollcall/pkg/email"
	"github.com/dmitrymomot/rollcall/pkg/email/templates"
	"github.com/dmitrymomot/rollcall/pkg/hasher"
	"github.com/dmitrymomot/rollcall/pkg/logger"
	"github.com/dmitrymomot/rollcall/pkg/sanitizer"
	"github.com/dmitrymomot/rollcall/pkg/token"
	"github.com/dmitrymomot/rollcall/pkg/validator"
	"github.com/dmitrymomot/rollcall/svc/credential"
)

// WarningEmailDeliveryFailed is reported when a token was issued but its
// email could not be sent.
const WarningEmailDeliveryFailed = "email_delivery_failed"

// SessionIssuer signs session tokens.
type SessionIssuer interface {
	Issue(userID, role string) (string, error)
	TTL() time.Duration
}

// Service runs the credential lifecycle flows against a Repository.
type Service struct {
	cfg      Config
	repo     credential.Repository
	sessions SessionIssuer
	mailer   email.EmailSender
	hasher   hasher.Hasher
	tracker  *LoginTracker
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithHasher replaces the hasher built from Config.
func WithHasher(h hasher.Hasher) Option {
	return func(s *Service) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithClock overrides time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the orchestrator. The hasher is selected by
// Config.PasswordHasher unless WithHasher is given.
func NewService(cfg Config, repo credential.Repository, sessions SessionIssuer, mailer email.EmailSender, opts ...Option) (*Service, error) {
	if repo == nil || sessions == nil || mailer == nil {
		return nil, fmt.Errorf("%w: repository, session issuer and mailer are required", ErrInvalidConfig)
	}
	if cfg.MinPasswordLength <= 0 || cfg.OTPMaxAttempts <= 0 {
		return nil, fmt.Errorf("%w: password length and otp attempts must be positive", ErrInvalidConfig)
	}

	s := &Service{
		cfg:      cfg,
		repo:     repo,
		sessions: sessions,
		mailer:   mailer,
		logger:   logger.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.hasher == nil {
		h, err := hasher.New(cfg.PasswordHasher, cfg.BcryptCost)
		if err != nil {
			return nil, errors.Join(ErrInvalidConfig, err)
		}
		s.hasher = h
	}

	s.tracker = NewLoginTracker(repo, cfg.LoginHistoryCap, s.logger)
	s.tracker.now = s.now
	s.cfg.AppBaseURL = strings.TrimRight(cfg.AppBaseURL, "/")
	return s, nil
}

// LoginInput is a password login attempt.
type LoginInput struct {
	Username  string
	Password  string
	IP        string
	UserAgent string
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *credential.Record
}

// Login authenticates by username and password. Unknown usernames and wrong
// passwords both return ErrInvalidCredentials; only the latter is recorded
// in the login history.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	username := sanitizer.NormalizeUsername(in.Username)
	if username == "" || in.Password == "" {
		return nil, ErrMissingCredentials
	}

	rec, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.hasher.Verify(in.Password, rec.SecretHash) {
		s.tracker.Record(ctx, rec.ID, in.IP, in.UserAgent, false)
		return nil, ErrInvalidCredentials
	}

	at := s.tracker.Record(ctx, rec.ID, in.IP, in.UserAgent, true)
	rec.LastLoginAt = &at

	raw, err := s.sessions.Issue(rec.ID, rec.Role.String())
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	s.rehashIfNeeded(ctx, rec, in.Password)

	return &Session{Token: raw, ExpiresAt: at.Add(s.sessions.TTL()), User: rec}, nil
}

// rehashIfNeeded upgrades hashes produced by a non-primary algorithm.
func (s *Service) rehashIfNeeded(ctx context.Context, rec *credential.Record, password string) {
	r, ok := s.hasher.(interface{ NeedsRehash(string) bool })
	if !ok || !r.NeedsRehash(rec.SecretHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.repo.UpdateFields(ctx, rec.ID, credential.Update{SecretHash: &hash})
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to upgrade password hash",
			logger.UserID(rec.ID),
			logger.Error(err),
			logger.Component("auth"),
		)
	}
}

// Me returns the record of an authenticated user.
func (s *Service) Me(ctx context.Context, id string) (*credential.Record, error) {
	return s.findByID(ctx, id)
}

// LoginHistory returns the recorded attempts, newest first.
func (s *Service) LoginHistory(ctx context.Context, id string) ([]credential.LoginAttempt, error) {
	rec, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	history := slices.Clone(rec.LoginHistory)
	slices.Reverse(history)
	return history, nil
}

// Delivery reports the outcome of sending a token by email. The token is
// issued regardless; Warning is set when the message could not be sent.
type Delivery struct {
	Recipient string
	ExpiresAt time.Time
	Warning   string
}

// RequestPasswordReset issues a reset link for the account owning addr.
// Unknown addresses fail with ErrUserNotFound.
func (s *Service) RequestPasswordReset(ctx context.Context, addr string) (*Delivery, error) {
	rec, err := s.findForReset(ctx, addr)
	if err != nil {
		return nil, err
	}

	raw, err := token.NewOpaque()
	if err != nil {
		return nil, err
	}
	expiresAt := s.now().Add(s.cfg.ResetTokenTTL)

	if err := s.repo.UpdateFields(ctx, rec.ID, credential.Update{
		Issue: &credential.Issue{
			Purpose: credential.PurposePasswordReset,
			Grant:   credential.Grant{Fingerprint: token.Fingerprint(raw), ExpiresAt: expiresAt},
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to store reset token: %w", err)
	}

	body := templates.PasswordResetLink(displayName(rec), s.link("reset-password", raw), s.cfg.ResetTokenTTL)
	d := s.deliver(ctx, rec, rec.Email, "Password reset", "password-reset", body)
	d.ExpiresAt = expiresAt
	return d, nil
}

// CheckResetToken reports whether raw is an outstanding, unexpired reset token.
func (s *Service) CheckResetToken(ctx context.Context, raw string) error {
	_, err := s.findGrant(ctx, credential.PurposePasswordReset, raw)
	return err
}

// ResetPassword redeems a reset token. The token is checked before the new
// password, and consumed atomically with the secret update.
func (s *Service) ResetPassword(ctx context.Context, raw, newPassword string) error {
	if _, err := s.findGrant(ctx, credential.PurposePasswordReset, raw); err != nil {
		return err
	}

	hash, err := s.hashPassword("newPassword", newPassword)
	if err != nil {
		return err
	}

	rec, err := s.repo.ConsumeToken(ctx, credential.Claim{
		Purpose:     credential.PurposePasswordReset,
		Fingerprint: token.Fingerprint(raw),
		Now:         s.now(),
	}, credential.Update{SecretHash: &hash})
	if err != nil {
		if errors.Is(err, credential.ErrTokenNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("failed to reset password: %w", err)
	}

	s.logger.InfoContext(ctx, "password reset",
		logger.UserID(rec.ID),
		logger.Event("password_reset"),
		logger.Component("auth"),
	)
	return nil
}

// RequestOTPReset issues a six digit code for the account owning addr and
// resets its attempt counter.
func (s *Service) RequestOTPReset(ctx context.Context, addr string) (*Delivery, error) {
	rec, err := s.findForReset(ctx, addr)
	if err != nil {
		return nil, err
	}

	code, err := token.NewOTP()
	if err != nil {
		return nil, err
	}
	expiresAt := s.now().Add(s.cfg.OTPTTL)

	if err := s.repo.UpdateFields(ctx, rec.ID, credential.Update{
		Issue: &credential.Issue{
			Purpose: credential.PurposeOTP,
			Grant:   credential.Grant{Fingerprint: token.Fingerprint(code), ExpiresAt: expiresAt},
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to store otp: %w", err)
	}

	body := templates.PasswordResetOTP(displayName(rec), code, s.cfg.OTPTTL)
	d := s.deliver(ctx, rec, rec.Email, "Your password reset code", "password-reset-otp", body)
	d.ExpiresAt = expiresAt
	return d, nil
}

// ResetPasswordWithOTP redeems a one-time code. Once the attempt limit is
// reached the code is no longer compared, so even the right code fails with
// ErrTooManyAttempts until a new one is requested.
func (s *Service) ResetPasswordWithOTP(ctx context.Context, addr, otp, newPassword string) error {
	addr = sanitizer.NormalizeEmail(addr)
	otp = strings.TrimSpace(otp)
	if err := validator.Apply(
		validator.Required("email", addr),
		validator.Required("otp", otp),
		validator.Required("newPassword", newPassword),
	); err != nil {
		return err
	}
	// A code that cannot match is rejected without touching the attempt count.
	if !token.IsOTP(otp) {
		return ErrInvalidOTP
	}

	rec, err := s.repo.FindByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	now := s.now()
	if !rec.OTP.Active(now) {
		return ErrInvalidOrExpiredToken
	}
	if rec.OTPAttempts >= s.cfg.OTPMaxAttempts {
		return ErrTooManyAttempts
	}

	fp := token.Fingerprint(otp)
	if !token.Equal(fp, rec.OTP.Fingerprint) {
		if err := s.repo.IncrementOTPAttempts(ctx, rec.ID, rec.OTP.Fingerprint); err != nil && !errors.Is(err, credential.ErrTokenNotFound) {
			return fmt.Errorf("failed to count otp attempt: %w", err)
		}
		return ErrInvalidOTP
	}

	hash, err := s.hashPassword("newPassword", newPassword)
	if err != nil {
		return err
	}

	if _, err := s.repo.ConsumeToken(ctx, credential.Claim{
		Purpose:     credential.PurposeOTP,
		Fingerprint: fp,
		Now:         now,
		RecordID:    rec.ID,
		MaxAttempts: s.cfg.OTPMaxAttempts,
	}, credential.Update{SecretHash: &hash}); err != nil {
		if errors.Is(err, credential.ErrTokenNotFound) {
			return s.classifyLostOTP(ctx, rec.ID)
		}
		return fmt.Errorf("failed to reset password: %w", err)
	}

	s.logger.InfoContext(ctx, "password reset with otp",
		logger.UserID(rec.ID),
		logger.Event("password_reset_otp"),
		logger.Component("auth"),
	)
	return nil
}

// classifyLostOTP explains why a matching code could not be consumed:
// concurrent failures exhausted the attempts, or the code was redeemed or
// replaced in the meantime.
func (s *Service) classifyLostOTP(ctx context.Context, id string) error {
	rec, err := s.repo.FindByID(ctx, id)
	if err == nil && rec.OTP.Active(s.now()) && rec.OTPAttempts >= s.cfg.OTPMaxAttempts {
		return ErrTooManyAttempts
	}
	return ErrInvalidOrExpiredToken
}

// RequestEmailVerification stages addr as the pending email of an account
// whose email is not verified yet and mails a verification link to it. The
// current password must be re-proved.
func (s *Service) RequestEmailVerification(ctx context.Context, id, currentPassword, addr string) (*Delivery, error) {
	return s.stageEmail(ctx, id, currentPassword, addr, ErrEmailAlreadyVerified)
}

// LinkEmail attaches a new address to an account without a verified email.
// Once an email is verified it cannot be re-linked.
func (s *Service) LinkEmail(ctx context.Context, id, currentPassword, addr string) (*Delivery, error) {
	return s.stageEmail(ctx, id, currentPassword, addr, ErrEmailAlreadyLinked)
}

func (s *Service) stageEmail(ctx context.Context, id, currentPassword, addr string, verifiedErr error) (*Delivery, error) {
	addr = sanitizer.NormalizeEmail(addr)
	if err := validator.Apply(
		validator.Required("email", addr),
		validator.When(addr != "", validator.Email("email", addr)),
		validator.Required("password", currentPassword),
	); err != nil {
		return nil, err
	}

	rec, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(currentPassword, rec.SecretHash) {
		return nil, ErrIncorrectPassword
	}
	if rec.IsEmailVerified {
		return nil, verifiedErr
	}

	taken, err := s.repo.EmailTakenExcludingID(ctx, addr, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if taken {
		return nil, ErrEmailInUse
	}

	raw, err := token.NewOpaque()
	if err != nil {
		return nil, err
	}
	expiresAt := s.now().Add(s.cfg.EmailVerificationTTL)

	if err := s.repo.UpdateFields(ctx, rec.ID, credential.Update{
		PendingEmail: &addr,
		Issue: &credential.Issue{
			Purpose: credential.PurposeEmailVerification,
			Grant:   credential.Grant{Fingerprint: token.Fingerprint(raw), ExpiresAt: expiresAt},
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to store verification token: %w", err)
	}

	body := templates.EmailVerification(displayName(rec), addr, s.link("verify-email", raw), s.cfg.EmailVerificationTTL)
	d := s.deliver(ctx, rec, addr, "Verify your email address", "email-verification", body)
	d.ExpiresAt = expiresAt
	return d, nil
}

// VerifyResult is the outcome of redeeming a verification token.
type VerifyResult struct {
	Email           string
	AlreadyVerified bool
}

// VerifyEmail redeems a verification token. Redeeming a token that already
// verified its account succeeds again with AlreadyVerified set, so repeated
// clicks on the same link are harmless.
func (s *Service) VerifyEmail(ctx context.Context, raw string) (*VerifyResult, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidOrExpiredToken
	}
	fp := token.Fingerprint(raw)

	if res, ok, err := s.alreadyVerified(ctx, fp); err != nil || ok {
		return res, err
	}

	verified := true
	rec, err := s.repo.ConsumeToken(ctx, credential.Claim{
		Purpose:     credential.PurposeEmailVerification,
		Fingerprint: fp,
		Now:         s.now(),
		Unverified:  true,
	}, credential.Update{
		PromotePendingEmail: true,
		IsEmailVerified:     &verified,
		VerifiedFingerprint: &fp,
	})
	switch {
	case errors.Is(err, credential.ErrTokenNotFound):
		// A concurrent redeem of the same link may have won.
		if res, ok, err := s.alreadyVerified(ctx, fp); err != nil || ok {
			return res, err
		}
		return nil, ErrInvalidOrExpiredToken
	case errors.Is(err, credential.ErrDuplicateIdentity):
		return nil, ErrEmailInUse
	case err != nil:
		return nil, fmt.Errorf("failed to verify email: %w", err)
	}

	s.logger.InfoContext(ctx, "email verified",
		logger.UserID(rec.ID),
		logger.Email(sanitizer.MaskEmail(rec.Email)),
		logger.Event("email_verified"),
		logger.Component("auth"),
	)
	return &VerifyResult{Email: rec.Email}, nil
}

func (s *Service) alreadyVerified(ctx context.Context, fp string) (*VerifyResult, bool, error) {
	rec, err := s.repo.FindByTokenFingerprint(ctx, credential.PurposeEmailVerified, fp)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to look up verification: %w", err)
	}
	if !rec.IsEmailVerified {
		return nil, false, nil
	}
	return &VerifyResult{Email: rec.Email, AlreadyVerified: true}, true, nil
}

// ChangePassword replaces the password of an authenticated user after
// re-proving the current one. Outstanding reset links and codes are revoked.
func (s *Service) ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	if err := validator.Apply(
		validator.Required("currentPassword", currentPassword),
		validator.Required("newPassword", newPassword),
	); err != nil {
		return err
	}

	rec, err := s.findByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(currentPassword, rec.SecretHash) {
		return ErrIncorrectPassword
	}

	hash, err := s.hashPassword("newPassword", newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateFields(ctx, rec.ID, credential.Update{
		SecretHash: &hash,
		Clear:      []credential.Purpose{credential.PurposePasswordReset, credential.PurposeOTP},
	}); err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}
	return nil
}

// CreateAccountInput describes a privileged account creation.
type CreateAccountInput struct {
	Username string
	Password string
	Role     credential.Role
	Email    string
	FullName string
}

var allRoles = []credential.Role{credential.RoleAdmin, credential.RoleStaff, credential.RoleStudent}

// CreateAccount creates an active account. Admin accounts start with their
// email verified; other roles verify through RequestEmailVerification.
func (s *Service) CreateAccount(ctx context.Context, in CreateAccountInput) (*credential.Record, error) {
	in.Username = sanitizer.NormalizeUsername(in.Username)
	in.Email = sanitizer.NormalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)

	if err := validator.Apply(
		validator.Required("username", in.Username),
		validator.MaxLen("username", in.Username, 64),
		validator.Required("password", in.Password),
		validator.InList("role", in.Role, allRoles),
		validator.When(in.Role.RequiresEmail(), validator.Required("email", in.Email)),
		validator.When(in.Email != "", validator.Email("email", in.Email)),
	); err != nil {
		return nil, err
	}

	if err := s.identityConflict(ctx, in.Username, in.Email); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword("password", in.Password)
	if err != nil {
		return nil, err
	}

	rec := &credential.Record{
		Username:        in.Username,
		Email:           in.Email,
		FullName:        in.FullName,
		SecretHash:      hash,
		Role:            in.Role,
		IsActive:        true,
		IsEmailVerified: in.Role == credential.RoleAdmin && in.Email != "",
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		if errors.Is(err, credential.ErrDuplicateIdentity) {
			// Lost a race after the check above; find out which field collided.
			if cerr := s.identityConflict(ctx, in.Username, in.Email); cerr != nil {
				return nil, cerr
			}
			return nil, ErrIdentityTaken
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.InfoContext(ctx, "account created",
		logger.UserID(rec.ID),
		logger.Role(rec.Role.String()),
		logger.Event("account_created"),
		logger.Component("auth"),
	)
	return rec, nil
}

// identityConflict reports ErrUsernameTaken or ErrEmailInUse when another
// account already holds username or email.
func (s *Service) identityConflict(ctx context.Context, username, email string) error {
	taken, err := s.repo.UsernameTakenExcludingID(ctx, username, "")
	if err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if taken {
		return ErrUsernameTaken
	}
	if email == "" {
		return nil
	}
	taken, err = s.repo.EmailTakenExcludingID(ctx, email, "")
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if taken {
		return ErrEmailInUse
	}
	return nil
}

func (s *Service) findByID(ctx context.Context, id string) (*credential.Record, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return rec, nil
}

func (s *Service) findForReset(ctx context.Context, addr string) (*credential.Record, error) {
	addr = sanitizer.NormalizeEmail(addr)
	if err := validator.Apply(validator.Required("email", addr)); err != nil {
		return nil, err
	}
	rec, err := s.repo.FindByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return rec, nil
}

// findGrant returns the record holding an unexpired grant for raw.
func (s *Service) findGrant(ctx context.Context, purpose credential.Purpose, raw string) (*credential.Record, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidOrExpiredToken
	}
	rec, err := s.repo.FindByTokenFingerprint(ctx, purpose, token.Fingerprint(raw))
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if !rec.Grant(purpose).Active(s.now()) {
		return nil, ErrInvalidOrExpiredToken
	}
	return rec, nil
}

func (s *Service) hashPassword(field, password string) (string, error) {
	if err := validator.Apply(
		validator.MinLen(field, password, s.cfg.MinPasswordLength),
	); err != nil {
		return "", err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, hasher.ErrSecretTooLong) {
			return "", validator.NewError(field, "is too long", "validation.max_length")
		}
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

// deliver renders and sends one message. Failures are logged and reported
// through the returned Delivery, never as an error.
func (s *Service) deliver(ctx context.Context, rec *credential.Record, to, subject, tag string, body templ.Component) *Delivery {
	d := &Delivery{Recipient: sanitizer.MaskEmail(to)}

	html, err := templates.Render(ctx, body)
	if err == nil {
		err = s.mailer.SendEmail(ctx, email.SendEmailParams{
			SendTo:   to,
			Subject:  subject,
			BodyHTML: html,
			Tag:      tag,
		})
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to send email",
			logger.UserID(rec.ID),
			logger.Email(sanitizer.MaskEmail(to)),
			slog.String("tag", tag),
			logger.Error(errors.Join(ErrDeliveryFailed, err)),
			logger.Component("auth"),
		)
		d.Warning = WarningEmailDeliveryFailed
	}
	return d
}

func (s *Service) link(path, raw string) string {
	return s.cfg.AppBaseURL + "/" + path + "/" + raw
}

func displayName(rec *credential.Record) string {
	if rec.FullName != "" {
		return rec.FullName
	}
	return rec.Username
}
