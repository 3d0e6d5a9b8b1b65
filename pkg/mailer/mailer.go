package mailer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"gopkg.in/gomail.v2"

	"github.com/medidesk/practice-api/pkg/circuitbreaker"
)

type Message struct {
	To      []string
	Subject string
	Body    string
	HTML    bool
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpMailer struct {
	dialer *gomail.Dialer
	from   string
}

// New returns an SMTP mailer, or a logging no-op mailer when Host is empty.
func New(cfg Config) Mailer {
	if cfg.Host == "" {
		return NopMailer{}
	}
	return &smtpMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To...)
	gm.SetHeader("Subject", msg.Subject)
	contentType := "text/plain"
	if msg.HTML {
		contentType = "text/html"
	}
	gm.SetBody(contentType, msg.Body)

	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

type breakerMailer struct {
	next Mailer
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker routes every send through cb. While cb is open sends fail
// immediately with gobreaker.ErrOpenState.
func WithBreaker(next Mailer, cb *gobreaker.CircuitBreaker) Mailer {
	return &breakerMailer{next: next, cb: cb}
}

func (m *breakerMailer) Send(ctx context.Context, msg Message) error {
	return circuitbreaker.Do(m.cb, func() error {
		return m.next.Send(ctx, msg)
	})
}

// NopMailer logs messages instead of sending them.
type NopMailer struct{}

func (NopMailer) Send(_ context.Context, msg Message) error {
	log.Debug().
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Msg("Email delivery disabled, message dropped")
	return nil
}
