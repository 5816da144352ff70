package mailer

import (
	"fmt"
	"io"
	"net/mail"

	"gopkg.in/gomail.v2"

	"scanlog/internal/config"
)

// Mailer sends export files over SMTP. Attachments are written straight from
// memory via gomail's copy func, so no temporary file ever touches disk.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailer(cfg config.EmailConfig) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		from:   cfg.From,
	}
}

// ValidateAddress reports whether to is a well-formed email address.
func ValidateAddress(to string) error {
	if to == "" {
		return fmt.Errorf("email address is required")
	}
	if _, err := mail.ParseAddress(to); err != nil {
		return fmt.Errorf("invalid email address %q: %w", to, err)
	}
	return nil
}

// SendAttachment mails a single CSV attachment with a plain-text body.
func (m *Mailer) SendAttachment(to, subject, body, filename string, attachment []byte) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	msg.Attach(filename,
		gomail.SetHeader(map[string][]string{"Content-Type": {"text/csv"}}),
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(attachment)
			return err
		}),
	)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send export to %s: %w", to, err)
	}
	return nil
}
