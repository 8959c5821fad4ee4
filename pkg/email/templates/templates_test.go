package templates_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/rollcall/pkg/email/templates"
)

func TestPasswordResetLink(t *testing.T) {
	t.Parallel()

	html, err := templates.Render(context.Background(),
		templates.PasswordResetLink("Alice", "https://app.test/reset-password/abc123", time.Hour))
	require.NoError(t, err)

	assert.Contains(t, html, "Hello Alice,")
	assert.Contains(t, html, `href="https://app.test/reset-password/abc123"`)
	assert.Contains(t, html, "valid for 1 hour")
}

func TestPasswordResetOTP(t *testing.T) {
	t.Parallel()

	html, err := templates.Render(context.Background(), templates.PasswordResetOTP("", "042917", 10*time.Minute))
	require.NoError(t, err)

	assert.Contains(t, html, "Hello there,")
	assert.Contains(t, html, "<strong>042917</strong>")
	assert.Contains(t, html, "10 minutes")
}

func TestEmailVerification_EscapesInput(t *testing.T) {
	t.Parallel()

	html, err := templates.Render(context.Background(),
		templates.EmailVerification("<script>", "c@example.com", "https://app.test/verify-email/t", 24*time.Hour))
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, "c@example.com")
	assert.Contains(t, html, "24 hours")
}
