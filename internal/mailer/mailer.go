// Package mailer delivers HTML email through the configured SMTP relay.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"shipmentportal/pkg/circuitbreaker"
	"shipmentportal/pkg/config"
	"shipmentportal/pkg/metrics"
	"shipmentportal/pkg/util"
)

const (
	DefaultSendTimeout = 30 * time.Second
	breakerName        = "smtp"
)

var ErrNoRecipients = errors.New("mailer: no recipients")

// Message is one outbound email.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// transport is the part of *mail.Client the mailer uses.
type transport interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer sends messages one at a time behind a circuit breaker. A send that
// fails while the breaker is open returns circuitbreaker.ErrCircuitBreakerOpen
// without touching the relay.
type Mailer struct {
	from    string
	timeout time.Duration
	client  transport
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger

	mu sync.Mutex
}

// New builds a Mailer for cfg. Credentials enable PLAIN auth with mandatory
// STARTTLS; port 465 uses implicit TLS.
func New(cfg config.SMTPConfig, logger *zap.Logger) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("mailer: smtp host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("mailer: from address is required")
	}

	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}

	opts := []mail.Option{mail.WithTimeout(timeout)}
	if cfg.Port == 465 {
		opts = append(opts, mail.WithSSLPort(false))
	} else if cfg.Username != "" {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
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
		return nil, fmt.Errorf("mailer: create client: %w", err)
	}
	return newMailer(cfg.From, timeout, client, logger), nil
}

func newMailer(from string, timeout time.Duration, client transport, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	bcfg := circuitbreaker.DefaultConfig()
	bcfg.Name = breakerName
	// Permanent rejections are about the message, not the relay.
	bcfg.IsFailure = func(err error) bool {
		retryable, _ := util.IsRetryableError(err)
		return retryable
	}
	bcfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		metrics.SetCircuitBreakerState(name, int(to))
		logger.Warn("smtp circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	return &Mailer{
		from:    from,
		timeout: timeout,
		client:  client,
		breaker: circuitbreaker.NewCircuitBreaker(bcfg),
		logger:  logger,
	}
}

// Send delivers msg and returns nil only once the relay accepted it.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	built, err := m.build(msg)
	if err != nil {
		return err
	}

	start := time.Now()
	err = m.breaker.ExecuteContext(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()

		m.mu.Lock()
		defer m.mu.Unlock()
		return m.client.DialAndSendWithContext(ctx, built)
	})
	elapsed := time.Since(start)

	switch {
	case err == nil:
		metrics.RecordMailSend("sent", elapsed)
		m.logger.Info("email sent",
			zap.String("subject", msg.Subject),
			zap.Int("recipients", len(msg.To)),
			zap.Duration("duration", elapsed),
		)
		return nil
	case errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen):
		metrics.RecordMailSend("rejected", elapsed)
		return err
	default:
		_, kind := util.IsRetryableError(err)
		metrics.RecordMailSend("failed", elapsed)
		m.logger.Warn("email send failed",
			zap.String("subject", msg.Subject),
			zap.String("error_type", kind),
			zap.Error(err),
		)
		return fmt.Errorf("send %q: %w", msg.Subject, err)
	}
}

func (m *Mailer) build(msg Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipients
	}
	out := mail.NewMsg()
	if err := out.From(m.from); err != nil {
		return nil, fmt.Errorf("mailer: from: %w", err)
	}
	if err := out.To(msg.To...); err != nil {
		return nil, fmt.Errorf("mailer: recipients: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetDate()
	out.SetMessageID()
	out.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return out, nil
}

// BreakerState exposes the relay breaker for health reporting.
func (m *Mailer) BreakerState() circuitbreaker.State {
	return m.breaker.GetState()
}
