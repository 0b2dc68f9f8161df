package notification

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/atelierhq/atelier-api/internal/config"
)

// InvitationMailer delivers invitation emails. Delivery failure is a hard
// failure for the caller: an invitation without a delivered email must not
// survive.
type InvitationMailer interface {
	SendInvitation(recipientEmail, fullName, acceptURL string) error
}

// SMTPInvitationMailer sends invitation emails using an SMTP server.
type SMTPInvitationMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPInvitationMailer(cfg config.EmailConfig) (*SMTPInvitationMailer, error) {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		return nil, fmt.Errorf("smtp_host is required")
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("email from address is required")
	}

	return &SMTPInvitationMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
	}, nil
}

func (m *SMTPInvitationMailer) SendInvitation(recipientEmail, fullName, acceptURL string) error {
	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n",
		m.from, recipientEmail, "You have been invited to Atelier")

	greeting := "Hello,"
	if name := strings.TrimSpace(fullName); name != "" {
		greeting = fmt.Sprintf("Hello %s,", name)
	}

	body := strings.Builder{}
	body.WriteString(greeting + "\n\n")
	body.WriteString("You've been invited to join Atelier.\n")
	body.WriteString("Click the link below to accept the invitation and create your account:\n\n")
	body.WriteString(acceptURL + "\n\n")
	body.WriteString("This invitation is valid for a limited time. If you did not expect this email, you can ignore it.\n\n")
	body.WriteString("Thanks,\nThe Atelier Team\n")

	message := []byte(headers + body.String())

	addr := fmt.Sprintf("%s:%d", m.host, m.port)

	var auth smtp.Auth
	if strings.TrimSpace(m.username) != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	return smtp.SendMail(addr, auth, m.from, []string{recipientEmail}, message)
}
