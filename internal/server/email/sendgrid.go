package email

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendgridSender delivers mail through the SendGrid API.
type SendgridSender struct {
	apiKey   string
	fromName string
	fromAddr string
}

func NewSendgridSender(apiKey, fromName, fromAddr string) *SendgridSender {
	return &SendgridSender{apiKey: apiKey, fromName: fromName, fromAddr: fromAddr}
}

func (s *SendgridSender) SendResetPasswordEmail(ctx context.Context, to string, token string) error {
	from := mail.NewEmail(s.fromName, s.fromAddr)
	rcpt := mail.NewEmail("", to)
	body := fmt.Sprintf(
		"Dear user,\nTo reset your password, use this token: %s\nIf you did not request a password reset, ignore this email.",
		token)
	msg := mail.NewSingleEmail(from, "Reset password", rcpt, body, "")

	client := sendgrid.NewSendClient(s.apiKey)
	resp, err := client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send failed: status %d", resp.StatusCode)
	}
	return nil
}
