package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

// PostmarkClient delivers mail through the Postmark API.
type PostmarkClient struct {
	client *postmark.Client
	from   string
	reply  string
}

// NewPostmarkClient validates cfg and builds a client.
func NewPostmarkClient(cfg Config) (*PostmarkClient, error) {
	switch {
	case cfg.PostmarkServerToken == "":
		return nil, fmt.Errorf("%w: postmark server token is required", ErrInvalidConfig)
	case cfg.PostmarkAccountToken == "":
		return nil, fmt.Errorf("%w: postmark account token is required", ErrInvalidConfig)
	case !IsValidAddress(cfg.SenderEmail):
		return nil, fmt.Errorf("%w: sender email %q is not valid", ErrInvalidConfig, cfg.SenderEmail)
	case !IsValidAddress(cfg.SupportEmail):
		return nil, fmt.Errorf("%w: support email %q is not valid", ErrInvalidConfig, cfg.SupportEmail)
	}

	return &PostmarkClient{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		from:   cfg.SenderEmail,
		reply:  cfg.SupportEmail,
	}, nil
}

// SendEmail sends params as a transactional message. Link tracking is off
// because bodies carry single-use links.
func (c *PostmarkClient) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	resp, err := c.client.SendEmail(ctx, postmark.Email{
		From:       c.from,
		ReplyTo:    c.reply,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TrackOpens: false,
		TrackLinks: "None",
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrFailedToSendEmail,
			fmt.Errorf("postmark error %d: %s", resp.ErrorCode, resp.Message))
	}
	return nil
}

// New picks Postmark when both tokens are configured and the DevSender
// otherwise.
func New(cfg Config) (EmailSender, error) {
	if cfg.UsePostmark() {
		client, err := NewPostmarkClient(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return NewDevSender(cfg.DevDir), nil
}
