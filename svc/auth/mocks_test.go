package auth_test

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/rollcall/pkg/email"
	"github.com/dmitrymomot/rollcall/pkg/hasher"
	"github.com/dmitrymomot/rollcall/pkg/jwt"
	"github.com/dmitrymomot/rollcall/svc/auth"
	"github.com/dmitrymomot/rollcall/svc/credential"
)

// MockMailer is a mock implementation of email.EmailSender.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendEmail(ctx context.Context, params email.SendEmailParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

// Last returns the most recent message handed to the mailer.
func (m *MockMailer) Last(t *testing.T) email.SendEmailParams {
	t.Helper()
	require.NotEmpty(t, m.Calls, "no email was sent")
	return m.Calls[len(m.Calls)-1].Arguments.Get(1).(email.SendEmailParams)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	svc      *auth.Service
	repo     *credential.MemoryStore
	mailer   *MockMailer
	clock    *fakeClock
	sessions *jwt.Service
	hasher   hasher.Hasher
}

func newHarness(t *testing.T, opts ...auth.Option) *harness {
	t.Helper()

	clock := &fakeClock{t: t0}
	repo := credential.NewMemoryStore(credential.WithMemoryClock(clock.Now))
	sessions, err := jwt.NewFromString("test-signing-key-0123456789abcdef", jwt.WithClock(clock.Now))
	require.NoError(t, err)
	h, err := hasher.NewBcrypt(hasher.WithCost(4))
	require.NoError(t, err)

	mailer := &MockMailer{}
	cfg := auth.DefaultConfig()
	cfg.AppBaseURL = "https://rollcall.test/"

	opts = append([]auth.Option{auth.WithHasher(h), auth.WithClock(clock.Now)}, opts...)
	svc, err := auth.NewService(cfg, repo, sessions, mailer, opts...)
	require.NoError(t, err)

	return &harness{svc: svc, repo: repo, mailer: mailer, clock: clock, sessions: sessions, hasher: h}
}

func (h *harness) seed(t *testing.T, username, addr, password string, role credential.Role, verified bool) *credential.Record {
	t.Helper()
	hash, err := h.hasher.Hash(password)
	require.NoError(t, err)
	rec := &credential.Record{
		Username:        username,
		Email:           addr,
		FullName:        username + " Example",
		SecretHash:      hash,
		Role:            role,
		IsActive:        true,
		IsEmailVerified: verified,
	}
	require.NoError(t, h.repo.Create(context.Background(), rec))
	return rec
}

var (
	resetLinkRe  = regexp.MustCompile(`https://rollcall\.test/reset-password/([0-9a-f]{64})`)
	verifyLinkRe = regexp.MustCompile(`https://rollcall\.test/verify-email/([0-9a-f]{64})`)
	otpRe        = regexp.MustCompile(`<strong>(\d{6})</strong>`)
)

func extract(t *testing.T, re *regexp.Regexp, body string) string {
	t.Helper()
	m := re.FindStringSubmatch(body)
	require.Len(t, m, 2, "token not found in email body")
	return m[1]
}

// racingRepo inserts intruder right before the first Create, after the
// service has checked that username and email are free. With no intruder
// Create reports a duplicate without saying which field collided.
type racingRepo struct {
	credential.Repository
	intruder *credential.Record
	once     sync.Once
}

func (r *racingRepo) Create(ctx context.Context, rec *credential.Record) error {
	if r.intruder == nil {
		return credential.ErrDuplicateIdentity
	}
	var err error
	r.once.Do(func() { err = r.Repository.Create(ctx, r.intruder) })
	if err != nil {
		return err
	}
	return r.Repository.Create(ctx, rec)
}

func newRacingService(t *testing.T, intruder *credential.Record) *auth.Service {
	t.Helper()
	sessions, err := jwt.NewFromString("test-signing-key-0123456789abcdef")
	require.NoError(t, err)
	h, err := hasher.NewBcrypt(hasher.WithCost(4))
	require.NoError(t, err)
	repo := &racingRepo{Repository: credential.NewMemoryStore(), intruder: intruder}
	svc, err := auth.NewService(auth.DefaultConfig(), repo, sessions, &MockMailer{}, auth.WithHasher(h))
	require.NoError(t, err)
	return svc
}
