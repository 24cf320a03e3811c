package mail

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/smtp"

	"github.com/OshadiJayananda/lms-backend/internal/platform/db"
)

// Kind selects the mail template.
type Kind string

const (
	KindBookApproved    Kind = "book_approval"
	KindBookIssued      Kind = "book_issued"
	KindBookAvailable   Kind = "book_available"
	KindReturnReminder  Kind = "return_reminder"
	KindRenewalApproved Kind = "renewal_approved"
	KindRenewalRejected Kind = "renewal_rejected"
)

// Payload carries the fields the templates interpolate. Unused fields are
// simply ignored by templates that don't reference them.
type Payload struct {
	UserName      string
	BookName      string
	DueDate       string
	IssuedDate    string
	RequestedDate string
	AdminNote     string
}

// Mailer delivers outbound mail. Delivery failures must never fail a state
// transition; callers log and continue.
type Mailer interface {
	Send(ctx context.Context, to string, kind Kind, p Payload) error
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	cfg db.SMTPConfig
}

func NewSMTPMailer(cfg db.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(_ context.Context, to string, kind Kind, p Payload) error {
	subject, body, err := render(kind, p)
	if err != nil {
		return err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var a smtp.Auth
	if m.cfg.Username != "" {
		a = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	return smtp.SendMail(addr, a, m.cfg.From, []string{to}, msg.Bytes())
}

// LogMailer writes mail to the process log instead of the network. Used in
// dev mode and in tests.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to string, kind Kind, p Payload) error {
	subject, _, err := render(kind, p)
	if err != nil {
		return err
	}
	log.Printf("[INFO] mail (%s) to %s: %s", kind, to, subject)
	return nil
}
