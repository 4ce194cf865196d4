package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/mcclellann/loanTracker/pkg/logger"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Sender delivers a single event.
type Sender interface {
	Send(ctx context.Context, event Event) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, event Event) error

func (f SenderFunc) Send(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// LogSender writes events to the log instead of delivering them.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, event Event) error {
	logger.CtxInfo(ctx, "notification not mailed, smtp disabled",
		zap.String("kind", string(event.Kind)),
		zap.String("loan_id", event.LoanID),
		zap.String("to", event.To),
		zap.String("subject", event.Subject),
	)
	return nil
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender mails events as HTML through an SMTP relay.
type SMTPSender struct {
	from     string
	sendMail func(ctx context.Context, msg *mail.Msg) error
	now      func() time.Time
}

// NewSMTPSender builds a sender for cfg. Authentication is PLAIN when a
// username is set; STARTTLS is used whenever the relay offers it.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if err := mail.NewMsg().From(cfg.From); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", cfg.From, err)
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	return &SMTPSender{
		from: cfg.From,
		sendMail: func(ctx context.Context, msg *mail.Msg) error {
			return client.DialAndSendWithContext(ctx, msg)
		},
		now: time.Now,
	}, nil
}

// Send dials the relay and delivers one message. Cancelling ctx aborts the
// SMTP exchange.
func (s *SMTPSender) Send(ctx context.Context, event Event) error {
	msg, err := s.message(event)
	if err != nil {
		return err
	}
	if err := s.sendMail(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", event.To, err)
	}
	return nil
}

func (s *SMTPSender) message(event Event) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", s.from, err)
	}
	if err := msg.To(event.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", event.To, err)
	}
	msg.Subject(event.Subject)
	msg.SetDateWithValue(s.now())
	msg.SetBodyString(mail.TypeTextHTML, event.Body)
	return msg, nil
}
