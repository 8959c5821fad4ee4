package email

// Config holds mail provider settings. Postmark tokens may stay empty in
// development, where the DevSender is used.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"no-reply@rollcall.local"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@rollcall.local"`
	// DevDir is where the DevSender drops messages.
	DevDir string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/mail"`
}

// UsePostmark reports whether both Postmark tokens are configured.
func (c Config) UsePostmark() bool {
	return c.PostmarkServerToken != "" && c.PostmarkAccountToken != ""
}
