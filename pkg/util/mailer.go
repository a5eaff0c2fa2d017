package util

import (
	"fmt"
	"net/smtp"

	"github.com/alansalbums/alans-albums-backend/pkg/logger"
)

// MailConfig holds SMTP settings for outgoing mail
type MailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Mailer sends plain text mail over SMTP. Without credentials it only logs.
type Mailer struct {
	cfg  MailConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(cfg MailConfig) *Mailer {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &Mailer{cfg: cfg, send: smtp.SendMail}
}

// Configured reports whether real delivery is possible
func (m *Mailer) Configured() bool {
	return m.cfg.Username != "" && m.cfg.Password != ""
}

// Send delivers a plain text message to one recipient
func (m *Mailer) Send(to, subject, body string) error {
	if to == "" {
		return nil
	}
	if !m.Configured() {
		logger.Info("Mail not configured, skipping delivery", map[string]interface{}{
			"to":      to,
			"subject": subject,
		})
		return nil
	}

	message := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		m.cfg.From, to, subject, body,
	))

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	if err := m.send(m.cfg.Host+":"+m.cfg.Port, auth, m.cfg.From, []string{to}, message); err != nil {
		logger.Error("Failed to send mail", err, map[string]interface{}{
			"to":      to,
			"subject": subject,
		})
		return fmt.Errorf("failed to send mail: %w", err)
	}

	logger.Info("Mail sent", map[string]interface{}{
		"to":      to,
		"subject": subject,
	})
	return nil
}
