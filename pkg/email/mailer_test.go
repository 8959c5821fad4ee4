package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/rollcall/pkg/email"
)

func validParams() email.SendEmailParams {
	return email.SendEmailParams{
		SendTo:   "alice@example.com",
		Subject:  "Reset your password",
		BodyHTML: "<p>hi</p>",
		Tag:      "password-reset",
	}
}

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*email.SendEmailParams)
		valid  bool
	}{
		{"valid", func(*email.SendEmailParams) {}, true},
		{"no tag is fine", func(p *email.SendEmailParams) { p.Tag = "" }, true},
		{"missing recipient", func(p *email.SendEmailParams) { p.SendTo = " " }, false},
		{"malformed recipient", func(p *email.SendEmailParams) { p.SendTo = "alice@" }, false},
		{"missing subject", func(p *email.SendEmailParams) { p.Subject = "" }, false},
		{"missing body", func(p *email.SendEmailParams) { p.BodyHTML = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := validParams()
			tt.modify(&p)
			err := p.Validate()
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, email.ErrInvalidParams)
		})
	}
}

func TestDevSender_SendEmail(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "mail")
	sender := email.NewDevSender(dir)
	require.NoError(t, sender.SendEmail(context.Background(), validParams()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var htmlFile, jsonFile string
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".html":
			htmlFile = e.Name()
		case ".json":
			jsonFile = e.Name()
		}
	}
	assert.True(t, strings.HasSuffix(htmlFile, "_password-reset.html"))

	body, err := os.ReadFile(filepath.Join(dir, htmlFile))
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", string(body))

	raw, err := os.ReadFile(filepath.Join(dir, jsonFile))
	require.NoError(t, err)
	var meta map[string]string
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, "alice@example.com", meta["send_to"])
	assert.Equal(t, "password-reset", meta["tag"])
}

func TestDevSender_Rejects(t *testing.T) {
	t.Parallel()

	sender := email.NewDevSender(t.TempDir())

	p := validParams()
	p.SendTo = ""
	assert.ErrorIs(t, sender.SendEmail(context.Background(), p), email.ErrInvalidParams)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sender.SendEmail(ctx, validParams()), email.ErrFailedToSendEmail)
}

func TestNewPostmarkClient_Config(t *testing.T) {
	t.Parallel()

	good := email.Config{
		PostmarkServerToken:  "server",
		PostmarkAccountToken: "account",
		SenderEmail:          "no-reply@example.com",
		SupportEmail:         "support@example.com",
	}
	client, err := email.NewPostmarkClient(good)
	require.NoError(t, err)
	assert.NotNil(t, client)

	tests := map[string]func(*email.Config){
		"no server token":  func(c *email.Config) { c.PostmarkServerToken = "" },
		"no account token": func(c *email.Config) { c.PostmarkAccountToken = "" },
		"bad sender":       func(c *email.Config) { c.SenderEmail = "nope" },
		"bad support":      func(c *email.Config) { c.SupportEmail = "" },
	}
	for name, modify := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := good
			modify(&cfg)
			_, err := email.NewPostmarkClient(cfg)
			assert.ErrorIs(t, err, email.ErrInvalidConfig)
		})
	}
}

func TestNew_SelectsSender(t *testing.T) {
	t.Parallel()

	dev, err := email.New(email.Config{DevDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &email.DevSender{}, dev)

	pm, err := email.New(email.Config{
		PostmarkServerToken:  "server",
		PostmarkAccountToken: "account",
		SenderEmail:          "no-reply@example.com",
		SupportEmail:         "support@example.com",
	})
	require.NoError(t, err)
	assert.IsType(t, &email.PostmarkClient{}, pm)

	_, err = email.New(email.Config{PostmarkServerToken: "s", PostmarkAccountToken: "a"})
	assert.ErrorIs(t, err, email.ErrInvalidConfig)
}
