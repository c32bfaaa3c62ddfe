package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v5"

	"github.com/kariteco/storefront-core/pkg/config"
)

const sendTimeout = 10 * time.Second

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

// Service sends transactional mail through Mailgun. Without credentials the
// service reports itself disabled and refuses to send.
type Service struct {
	client mailgun.Mailgun
	domain string
	sender string
}

func NewService(cfg config.MailConfig) *Service {
	s := &Service{
		domain: cfg.MailgunDomain,
		sender: fmt.Sprintf("%s <%s>", cfg.SenderName, cfg.SenderEmail),
	}
	if cfg.MailgunDomain != "" && cfg.MailgunAPIKey != "" {
		s.client = mailgun.NewMailgun(cfg.MailgunAPIKey)
	}
	return s
}

// Enabled reports whether Mailgun credentials were configured.
func (s *Service) Enabled() bool {
	return s.client != nil
}

// Send delivers one message. The html body is optional.
func (s *Service) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	if !s.Enabled() {
		return fmt.Errorf("mail service is not configured")
	}

	message := mailgun.NewMessage(s.domain, s.sender, subject, textBody, to)
	if htmlBody != "" {
		message.SetHTML(htmlBody)
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if _, err := s.client.Send(ctx, message); err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}
	return nil
}
