// Package mail delivers the account notifications (activation and password
// reset) through SMTP, an HTTP mail provider or the log.
package mail

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/bizdesk/internal/logging"
	"github.com/dmitrijs2005/bizdesk/internal/server/config"
)

// Message is a single HTML mail.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a Message. Delivery failures are returned, never panicked.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// NewSender picks the transport named by cfg.MailTransport.
func NewSender(cfg *config.Config, log logging.Logger) (Sender, error) {
	switch cfg.MailTransport {
	case config.MailTransportSMTP:
		return NewSMTPSender(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}), nil
	case config.MailTransportAPI:
		return NewAPISender(cfg.MailAPIURL, cfg.MailAPIKey, cfg.SMTPFrom, cfg.SMTPFromName), nil
	case config.MailTransportLog, "":
		return NewLogSender(log), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.MailTransport)
	}
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	log logging.Logger
}

func NewLogSender(log logging.Logger) *LogSender {
	return &LogSender{log: log.With("module", "mail")}
}

func (s *LogSender) Send(ctx context.Context, m Message) error {
	s.log.Info(ctx, "mail not delivered (log transport)", "to", m.To, "subject", m.Subject, "body", m.HTML)
	return nil
}
