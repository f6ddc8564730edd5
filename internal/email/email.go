// Package email sends transactional notifications.
package email

import (
	"context"
	"fmt"
	"html"
	"log/slog"
)

// Message is a rendered email ready to send.
type Message struct {
	To       string
	Subject  string
	HTML     string
	Template string // metrics label
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// logSender is used when no provider key is configured.
type logSender struct {
	logger *slog.Logger
}

// NewLogSender returns a Sender that only logs messages.
func NewLogSender(logger *slog.Logger) Sender {
	return &logSender{logger: logger}
}

func (s *logSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email not sent, provider disabled",
		"to", msg.To, "subject", msg.Subject, "template", msg.Template)
	return nil
}

// Templates renders the application's notification emails.
type Templates struct {
	AppName   string
	PublicURL string
}

func (t Templates) PasswordReset(to, name, token string) Message {
	link := fmt.Sprintf("%s/reset-password?token=%s", t.PublicURL, token)
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>We received a request to reset your %s password. The link below is valid for one hour.</p>
<p><a href="%s">Reset your password</a></p>
<p>If you did not ask for this, you can ignore this email.</p>`,
		html.EscapeString(name), html.EscapeString(t.AppName), html.EscapeString(link))
	return Message{
		To:       to,
		Subject:  t.AppName + " password reset",
		HTML:     body,
		Template: "password_reset",
	}
}

func (t Templates) AccessRequestReceived(to, therapistName, parentName, childName string) Message {
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>%s has asked for access to %s's progress on %s.</p>
<p><a href="%s/access-requests">Review the request</a></p>`,
		html.EscapeString(therapistName), html.EscapeString(parentName), html.EscapeString(childName),
		html.EscapeString(t.AppName), html.EscapeString(t.PublicURL))
	return Message{
		To:       to,
		Subject:  "New access request for " + childName,
		HTML:     body,
		Template: "access_request_received",
	}
}

func (t Templates) AccessRequestAnswered(to, parentName, childName string, approved bool) Message {
	outcome := "declined"
	if approved {
		outcome = "approved"
	}
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>Your request to follow %s's progress was %s.</p>
<p><a href="%s">Open %s</a></p>`,
		html.EscapeString(parentName), html.EscapeString(childName), outcome,
		html.EscapeString(t.PublicURL), html.EscapeString(t.AppName))
	return Message{
		To:       to,
		Subject:  fmt.Sprintf("Access request %s", outcome),
		HTML:     body,
		Template: "access_request_" + outcome,
	}
}
