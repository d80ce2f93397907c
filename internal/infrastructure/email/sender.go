package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender delivers transactional mail over SMTP.
type Sender struct {
	client   *mail.Client
	from     string
	frontend string
	logger   *zap.Logger
}

func NewSender(cfg SMTPConfig, frontend string, logger *zap.Logger) (*Sender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &Sender{client: client, from: cfg.From, frontend: frontend, logger: logger}, nil
}

var layout = template.Must(template.New("mail").Parse(`<html>
<body style="font-family: Arial, sans-serif; background-color: #0d1b2a; color: #ffffff;">
	<div style="max-width: 600px; margin: 50px auto; background-color: #1b263b; padding: 30px; border-radius: 12px; text-align: center;">
		<h3>{{.Title}}</h3>
		<p>{{.Text}}</p>
		<a href="{{.Link}}" style="display: inline-block; margin: 30px 0; padding: 15px 30px; border: 2px solid #ff4d4d; color: #ff4d4d; text-decoration: none; font-weight: bold; border-radius: 6px;">{{.Button}}</a>
		<p style="font-size: 12px; color: #888888;">{{.Footer}}</p>
	</div>
</body>
</html>`))

type letter struct {
	Title, Text, Link, Button, Footer string
}

func (s *Sender) SendResetEmail(ctx context.Context, to, token string) error {
	return s.send(ctx, to, "Password reset", letter{
		Title:  "Password reset",
		Text:   "You asked to reset your password. Use the button below to set a new one.",
		Link:   s.link("/reset-password", token),
		Button: "Reset password",
		Footer: "If you did not request a reset, ignore this email.",
	})
}

func (s *Sender) SendEmailChangeConfirmation(ctx context.Context, to, token string) error {
	return s.send(ctx, to, "Confirm your new email", letter{
		Title:  "Confirm your new email",
		Text:   "Confirm that this address should be used for your account.",
		Link:   s.link("/api/v1/user/email/confirm", token),
		Button: "Confirm email",
		Footer: "If you did not request this change, ignore this email.",
	})
}

func (s *Sender) link(path, token string) string {
	return s.frontend + path + "?token=" + url.QueryEscape(token)
}

func (s *Sender) send(ctx context.Context, to, subject string, l letter) error {
	var body bytes.Buffer
	if err := layout.Execute(&body, l); err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body.String())

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		s.logger.Error("failed to send email", zap.String("subject", subject), zap.Error(err))
		return err
	}
	s.logger.Info("email sent", zap.String("subject", subject))
	return nil
}
