package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
)

var ErrEmailNotConfigured = errors.New("email sender not configured")

type ResendEmailSender struct {
	client  *resend.Client
	From    string
	AppName string
}

// NewResendEmailSender returns a sender that reports ErrEmailNotConfigured
// when apiKey or from is empty.
func NewResendEmailSender(apiKey string, from string, appName string) *ResendEmailSender {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(from) == "" {
		return &ResendEmailSender{}
	}
	if strings.TrimSpace(appName) == "" {
		appName = "sitecms"
	}
	return &ResendEmailSender{
		client:  resend.NewClient(apiKey),
		From:    from,
		AppName: appName,
	}
}

func (s *ResendEmailSender) SendVerificationCode(ctx context.Context, email string, code string) error {
	if s.client == nil {
		return ErrEmailNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("%s password change code", s.AppName)
	html := fmt.Sprintf("<p>Your verification code is:</p><p><strong>%s</strong></p><p>If you did not request a password change, ignore this email.</p>", code)
	text := fmt.Sprintf("Your verification code is %s. If you did not request a password change, ignore this email.", code)

	_, err := s.client.Emails.Send(&resend.SendEmailRequest{
		From:    s.From,
		To:      []string{email},
		Subject: subject,
		Html:    html,
		Text:    text,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}
