package email

import (
	"context"
	"errors"

	"github.com/dmitrymomot/subsync/pkg/validator"
)

// Sender delivers a single transactional email.
type Sender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams is one outbound message.
type SendEmailParams struct {
	SendTo   string `json:"send_to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"`
	// Metadata is attached to the message by providers that support it.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks the recipient address and that subject and body are present.
func (p SendEmailParams) Validate() error {
	if err := validator.Apply(
		validator.ValidEmail("send_to", p.SendTo),
		validator.RequiredString("subject", p.Subject),
		validator.RequiredString("body_html", p.BodyHTML),
	); err != nil {
		return errors.Join(ErrInvalidMessage, err)
	}
	return nil
}

// New picks the Postmark sender when tokens are set and DevSender otherwise.
func New(cfg Config) (Sender, error) {
	if cfg.UsePostmark() {
		c, err := NewPostmarkClient(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return NewDevSender(cfg.DevDir), nil
}
