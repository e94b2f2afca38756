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

	"github.com/dmitrymomot/subsync/pkg/email"
)

func validParams() email.SendEmailParams {
	return email.SendEmailParams{
		SendTo:   "user@example.com",
		Subject:  "Trial ending",
		BodyHTML: "<p>hi</p>",
		Tag:      "trial_ending",
	}
}

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(p *email.SendEmailParams)
		ok     bool
	}{
		{"valid", func(*email.SendEmailParams) {}, true},
		{"empty recipient", func(p *email.SendEmailParams) { p.SendTo = "" }, false},
		{"bad recipient", func(p *email.SendEmailParams) { p.SendTo = "not-an-email" }, false},
		{"display name not allowed", func(p *email.SendEmailParams) { p.SendTo = "Bob <bob@example.com>" }, false},
		{"blank subject", func(p *email.SendEmailParams) { p.Subject = "  " }, false},
		{"empty body", func(p *email.SendEmailParams) { p.BodyHTML = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := validParams()
			tt.modify(&p)
			err := p.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, email.ErrInvalidMessage)
			}
		})
	}
}

func TestDevSender_SendEmail(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested")
	sender := email.NewDevSender(dir)
	p := validParams()
	p.Metadata = map[string]string{"user_id": "42"}
	require.NoError(t, sender.SendEmail(context.Background(), p))

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
	assert.True(t, strings.HasSuffix(htmlFile, "_trial_ending.html"))

	body, err := os.ReadFile(filepath.Join(dir, htmlFile))
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", string(body))

	raw, err := os.ReadFile(filepath.Join(dir, jsonFile))
	require.NoError(t, err)
	var env struct {
		SendTo   string            `json:"send_to"`
		Subject  string            `json:"subject"`
		Metadata map[string]string `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "user@example.com", env.SendTo)
	assert.Equal(t, "Trial ending", env.Subject)
	assert.Equal(t, "42", env.Metadata["user_id"])
}

func TestDevSender_RejectsInvalid(t *testing.T) {
	t.Parallel()

	p := validParams()
	p.SendTo = ""
	err := email.NewDevSender(t.TempDir()).SendEmail(context.Background(), p)
	assert.ErrorIs(t, err, email.ErrInvalidMessage)
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("dev without tokens", func(t *testing.T) {
		t.Parallel()
		s, err := email.New(email.Config{DevDir: t.TempDir()})
		require.NoError(t, err)
		assert.IsType(t, &email.DevSender{}, s)
	})

	t.Run("postmark with tokens", func(t *testing.T) {
		t.Parallel()
		s, err := email.New(email.Config{
			PostmarkServerToken:  "server",
			PostmarkAccountToken: "account",
			SenderEmail:          "billing@example.com",
			SupportEmail:         "support@example.com",
		})
		require.NoError(t, err)
		assert.NotNil(t, s)
	})
}

func TestNewPostmarkClient_InvalidConfig(t *testing.T) {
	t.Parallel()

	base := email.Config{
		PostmarkServerToken:  "server",
		PostmarkAccountToken: "account",
		SenderEmail:          "billing@example.com",
		SupportEmail:         "support@example.com",
	}

	tests := []struct {
		name   string
		modify func(c *email.Config)
		msg    string
	}{
		{"no server token", func(c *email.Config) { c.PostmarkServerToken = "" }, "PostmarkServerToken"},
		{"no account token", func(c *email.Config) { c.PostmarkAccountToken = "" }, "PostmarkAccountToken"},
		{"bad sender", func(c *email.Config) { c.SenderEmail = "nope" }, "SenderEmail"},
		{"bad support", func(c *email.Config) { c.SupportEmail = "" }, "SupportEmail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.modify(&cfg)
			client, err := email.NewPostmarkClient(cfg)
			assert.Nil(t, client)
			assert.ErrorIs(t, err, email.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestPostmarkClient_ValidatesBeforeSending(t *testing.T) {
	t.Parallel()

	client, err := email.NewPostmarkClient(email.Config{
		PostmarkServerToken:  "server",
		PostmarkAccountToken: "account",
		SenderEmail:          "billing@example.com",
		SupportEmail:         "support@example.com",
	})
	require.NoError(t, err)

	p := validParams()
	p.Subject = ""
	assert.ErrorIs(t, client.SendEmail(context.Background(), p), email.ErrInvalidMessage)
}
