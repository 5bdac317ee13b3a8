// Package email provides an SMTP-based notifier for tenant notifications.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/jegasuite/jega/internal/port/notifier"
)

const notifierName = "email"

func init() {
	notifier.Register(notifierName, func(cfg map[string]string) (notifier.Notifier, error) {
		port, _ := strconv.Atoi(cfg["port"])
		if port == 0 {
			port = 587
		}
		return NewNotifier(SMTPConfig{
			Host:     cfg["host"],
			Port:     port,
			From:     cfg["from"],
			Password: cfg["password"],
		})
	})
}

// SMTPConfig holds the configuration for SMTP connections.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Password string
}

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Notifier sends email notifications via SMTP.
type Notifier struct {
	cfg  SMTPConfig
	send sendFunc
}

// NewNotifier creates a new email notifier.
func NewNotifier(cfg SMTPConfig) (*Notifier, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, notifier.ErrNotConfigured
	}
	return &Notifier{cfg: cfg, send: smtp.SendMail}, nil
}

// Name returns the notifier identifier.
func (n *Notifier) Name() string { return notifierName }

// Send delivers a notification as a plain-text email.
func (n *Notifier) Send(_ context.Context, msg notifier.Notification) error {
	if msg.To == "" {
		return fmt.Errorf("email: empty recipient")
	}
	if strings.ContainsAny(msg.To+msg.Subject, "\r\n") {
		return fmt.Errorf("email: header injection in recipient or subject")
	}
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		n.cfg.From, msg.To, msg.Subject, msg.Body)

	var auth smtp.Auth
	if n.cfg.Password != "" {
		auth = smtp.PlainAuth("", n.cfg.From, n.cfg.Password, n.cfg.Host)
	}

	if err := n.send(addr, auth, n.cfg.From, []string{msg.To}, []byte(body)); err != nil {
		return fmt.Errorf("email send %s: %w", msg.Kind, err)
	}
	return nil
}
