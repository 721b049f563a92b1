// Package notify mails contact form submissions to the site owner.
package notify

import (
	"errors"
	"fmt"
	"html"
	"log"
	"net/smtp"
	"strings"

	"github.com/resendlabs/resend-go"

	"github.com/Zachkp/folio/internal/config"
	"github.com/Zachkp/folio/internal/content"
)

// ErrNotConfigured is returned when neither Resend nor SMTP credentials are
// set.
var ErrNotConfigured = errors.New("mail delivery not configured")

// Notifier delivers contact submissions.
type Notifier interface {
	NotifyContact(sub content.ContactSubmission) error
}

// New picks Resend when an API key is set and SMTP otherwise.
func New(cfg config.Mail) Notifier {
	if cfg.ResendAPIKey != "" {
		return &ResendNotifier{client: resend.NewClient(cfg.ResendAPIKey), from: cfg.From, to: cfg.To}
	}
	return &SMTPNotifier{cfg: cfg, send: smtp.SendMail}
}

func subject(sub content.ContactSubmission) string {
	if sub.Subject != "" {
		return fmt.Sprintf("Portfolio Contact: %s - %s", sub.Name, sub.Subject)
	}
	return fmt.Sprintf("Portfolio Contact: %s", sub.Name)
}

func textBody(sub content.ContactSubmission) string {
	return fmt.Sprintf(`
New contact form submission from your portfolio:

Name: %s
Email: %s
Message:
%s

---
Sent from your portfolio contact form
`, sub.Name, sub.Email, sub.Message)
}

// ResendNotifier sends through the Resend API.
type ResendNotifier struct {
	client *resend.Client
	from   string
	to     string
}

// NotifyContact implements Notifier.
func (n *ResendNotifier) NotifyContact(sub content.ContactSubmission) error {
	body := "<p><strong>Name:</strong> " + html.EscapeString(sub.Name) + "</p>" +
		"<p><strong>Email:</strong> " + html.EscapeString(sub.Email) + "</p>" +
		"<p>" + strings.ReplaceAll(html.EscapeString(sub.Message), "\n", "<br/>") + "</p>"

	_, err := n.client.Emails.Send(&resend.SendEmailRequest{
		From:    n.from,
		To:      []string{n.to},
		Subject: subject(sub),
		Html:    body,
		Text:    textBody(sub),
	})
	if err != nil {
		return fmt.Errorf("send contact email: %w", err)
	}
	log.Printf("Email sent successfully from %s (%s)", sub.Name, sub.Email)
	return nil
}

// SMTPNotifier sends through an SMTP relay with plain auth.
type SMTPNotifier struct {
	cfg  config.Mail
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NotifyContact implements Notifier.
func (n *SMTPNotifier) NotifyContact(sub content.ContactSubmission) error {
	if n.cfg.SMTPUser == "" || n.cfg.SMTPPass == "" {
		return ErrNotConfigured
	}

	msg := []byte("To: " + n.cfg.To + "\r\n" +
		"Subject: " + subject(sub) + "\r\n" +
		"From: " + n.cfg.SMTPUser + "\r\n" +
		"Reply-To: " + sub.Email + "\r\n" +
		"\r\n" +
		textBody(sub) + "\r\n")

	auth := smtp.PlainAuth("", n.cfg.SMTPUser, n.cfg.SMTPPass, n.cfg.SMTPHost)
	if err := n.send(n.cfg.SMTPHost+":"+n.cfg.SMTPPort, auth, n.cfg.SMTPUser, []string{n.cfg.To}, msg); err != nil {
		return fmt.Errorf("send contact email: %w", err)
	}
	log.Printf("Email sent successfully from %s (%s)", sub.Name, sub.Email)
	return nil
}
