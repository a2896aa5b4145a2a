package mail

import (
	"context"
	"fmt"
	"mime"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"lodge_finder/internal/adapters/observability"
	"lodge_finder/internal/domain"
	"lodge_finder/internal/shared"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer delivers HTML mail over SMTP with PLAIN auth, paced by a limiter
// shared across all relay requests.
type Mailer struct {
	cfg  shared.SMTPConfig
	rl   *rate.Limiter
	send SendFunc
}

func New(cfg shared.SMTPConfig) *Mailer {
	rps := cfg.RatePerS
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Mailer{cfg: cfg, rl: rate.NewLimiter(rate.Limit(rps), burst), send: smtp.SendMail}
}

// WithSender replaces the SMTP transport.
func (m *Mailer) WithSender(f SendFunc) *Mailer {
	m.send = f
	return m
}

func (m *Mailer) Configured() bool {
	return m.cfg.Username != "" && m.cfg.Password != ""
}

func (m *Mailer) Send(ctx context.Context, msg domain.Message) error {
	if !m.Configured() {
		return fmt.Errorf("email credentials not configured")
	}
	if err := m.rl.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	from := m.cfg.From
	if from == "" {
		from = m.cfg.Username
	}
	err := m.send(m.cfg.Host+":"+m.cfg.Port, auth, from, []string{msg.To}, m.compose(from, msg))
	observability.ObserveMail(msg.Kind, err, time.Since(start))
	if err != nil {
		return fmt.Errorf("send %s mail to %s: %w", msg.Kind, msg.To, err)
	}
	return nil
}

func (m *Mailer) compose(from string, msg domain.Message) []byte {
	var b strings.Builder
	header := func(k, v string) { b.WriteString(k + ": " + v + "\r\n") }

	header("From", (&mail.Address{Name: m.cfg.FromName, Address: from}).String())
	header("To", msg.To)
	if msg.ReplyTo != "" {
		header("Reply-To", msg.ReplyTo)
	}
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", time.Now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="UTF-8"`)
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	b.WriteString("\r\n")
	return []byte(b.String())
}
