package mail

import (
	"fmt"
	"net/smtp"

	"github.com/sirupsen/logrus"
)

// Mailer delivers account mails. Delivery is fire-and-forget from the
// caller's perspective: failures are logged, never propagated, and never
// roll back the state change that triggered them.
type Mailer interface {
	SendActivationMail(to, name, link string)
	SendPasswordResetMail(to, name, link string)
}

// SMTPMailer sends mail over plain SMTP with optional auth.
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
	log  logrus.FieldLogger
}

func NewSMTPMailer(host string, port int, user, pass, from string, log logrus.FieldLogger) *SMTPMailer {
	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, pass, host)
	}
	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
		auth: auth,
		log:  log,
	}
}

func (m *SMTPMailer) SendActivationMail(to, name, link string) {
	subject := "Activate your account"
	body := fmt.Sprintf("Hi %s,\r\n\r\nFollow this link to activate your account:\r\n%s\r\n", name, link)
	go m.send(to, subject, body)
}

func (m *SMTPMailer) SendPasswordResetMail(to, name, link string) {
	subject := "Reset your password"
	body := fmt.Sprintf("Hi %s,\r\n\r\nFollow this link to set a new password:\r\n%s\r\n", name, link)
	go m.send(to, subject, body)
}

func (m *SMTPMailer) send(to, subject, body string) {
	msg := []byte("From: " + m.from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" + body)
	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, msg); err != nil {
		m.log.WithFields(logrus.Fields{
			"to":      to,
			"subject": subject,
		}).WithError(err).Warn("mail delivery failed")
	}
}

// NopMailer discards all mail. Used in tests and local development without
// an SMTP server.
type NopMailer struct{}

func (NopMailer) SendActivationMail(to, name, link string)    {}
func (NopMailer) SendPasswordResetMail(to, name, link string) {}
