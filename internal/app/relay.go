package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"lodge_finder/internal/domain"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const broadcastParallelism = 8

type ContactRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,basic_email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Message string `json:"message" validate:"required"`
}

type SubscribeRequest struct {
	Email     string            `json:"email" validate:"required,basic_email"`
	LodgeName string            `json:"lodgeName"`
	LodgeID   domain.FlexNumber `json:"lodgeId"`
}

type BroadcastRequest struct {
	Emails    []string `json:"emails" validate:"required,min=1"`
	Subject   string   `json:"subject" validate:"required"`
	Message   string   `json:"message" validate:"required"`
	LodgeName string   `json:"lodgeName"`
}

// RelayResult is the body every relay endpoint answers with.
type RelayResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Demo    bool   `json:"demo,omitempty"`
}

type Health struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	EmailConfigured bool   `json:"emailConfigured"`
}

type RelayService struct {
	mailer   domain.Mailer
	inbox    string
	siteURL  string
	validate *validator.Validate
	tpl      *templates
}

// NewRelayService sends through m. inbox receives contact forms and
// subscription notices; siteURL is linked from subscriber mail.
func NewRelayService(m domain.Mailer, inbox, siteURL string) *RelayService {
	v := validator.New()
	_ = v.RegisterValidation("basic_email", func(fl validator.FieldLevel) bool {
		return emailRe.MatchString(fl.Field().String())
	})
	return &RelayService{mailer: m, inbox: inbox, siteURL: siteURL, validate: v, tpl: newTemplates()}
}

func (s *RelayService) Health() Health {
	return Health{Status: "ok", Message: "Lodge Finder Email Server is running", EmailConfigured: s.mailer.Configured()}
}

// ValidEmail is the relay's address check, shared with other entry points.
func ValidEmail(s string) bool { return emailRe.MatchString(s) }

func (s *RelayService) Contact(ctx context.Context, req ContactRequest) (RelayResult, error) {
	req.trim()
	if err := s.check(req, "Please provide name, email, and message"); err != nil {
		return RelayResult{Message: err.(*domain.ValidationError).Reason}, err
	}

	subject := or(req.Subject, "General Inquiry")
	body, err := s.tpl.contact(req, subject)
	if err != nil {
		return RelayResult{Message: "Failed to send message. Please try again or contact us directly."}, err
	}
	msg := domain.Message{
		Kind:    "contact",
		To:      s.inbox,
		ReplyTo: req.Email,
		Subject: "Lodge Finder Contact: " + subject,
		HTML:    body,
	}

	if !s.mailer.Configured() {
		logDemo(msg)
		return RelayResult{Success: true, Demo: true, Message: "Message received! (Email service not configured - check server logs)"}, nil
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		log.Error().Err(err).Str("from", req.Email).Msg("contact mail failed")
		return RelayResult{Message: "Failed to send message. Please try again or contact us directly."},
			fmt.Errorf("%w: contact: %v", domain.ErrDelivery, err)
	}
	log.Info().Str("from", req.Email).Msg("contact mail sent")
	return RelayResult{Success: true, Message: "Thank you for your message! We will get back to you soon."}, nil
}

// Subscribe sends the subscriber confirmation and the inbox notice together;
// either failing fails the request.
func (s *RelayService) Subscribe(ctx context.Context, req SubscribeRequest) (RelayResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.LodgeName = strings.TrimSpace(req.LodgeName)
	if strings.TrimSpace(req.Email) == "" {
		err := domain.Invalid("email", "Please provide an email address")
		return RelayResult{Message: "Please provide an email address"}, err
	}
	if err := s.check(req, "Please provide an email address"); err != nil {
		return RelayResult{Message: err.(*domain.ValidationError).Reason}, err
	}

	confirm, err := s.tpl.subscribed(req, s.siteURL)
	if err != nil {
		return RelayResult{Message: "Failed to process subscription. Please try again."}, err
	}
	notice, err := s.tpl.notice(req)
	if err != nil {
		return RelayResult{Message: "Failed to process subscription. Please try again."}, err
	}
	msgs := []domain.Message{
		{Kind: "subscribe", To: req.Email, Subject: "Bookmark Confirmed - " + or(req.LodgeName, "Lodge Finder"), HTML: confirm},
		{Kind: "notify", To: s.inbox, Subject: "New Bookmark Subscription - " + or(req.LodgeName, "Lodge"), HTML: notice},
	}

	if !s.mailer.Configured() {
		for _, m := range msgs {
			logDemo(m)
		}
		return RelayResult{Success: true, Demo: true, Message: "Subscription received! (Email service not configured - check server logs)"}, nil
	}

	var g errgroup.Group
	for _, m := range msgs {
		g.Go(func() error { return s.mailer.Send(ctx, m) })
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Str("email", req.Email).Msg("subscription mail failed")
		return RelayResult{Message: "Failed to process subscription. Please try again."},
			fmt.Errorf("%w: subscribe: %v", domain.ErrDelivery, err)
	}
	log.Info().Str("email", req.Email).Str("lodge", req.LodgeName).Msg("subscription mail sent")
	return RelayResult{Success: true, Message: "Subscription confirmed! Check your email for details."}, nil
}

// Broadcast sends one message per address. Any failure fails the whole
// broadcast; messages already delivered stay delivered.
func (s *RelayService) Broadcast(ctx context.Context, req BroadcastRequest) (RelayResult, error) {
	req.Subject = strings.TrimSpace(req.Subject)
	req.LodgeName = strings.TrimSpace(req.LodgeName)
	if len(req.Emails) == 0 {
		err := domain.Invalid("emails", "Please provide at least one email address")
		return RelayResult{Message: "Please provide at least one email address"}, err
	}
	if err := s.check(req, "Please provide subject and message"); err != nil {
		return RelayResult{Message: err.(*domain.ValidationError).Reason}, err
	}

	body, err := s.tpl.broadcast(req)
	if err != nil {
		return RelayResult{Message: "Failed to send broadcast. Please try again."}, err
	}
	id := uuid.NewString()
	lg := log.With().Str("broadcast_id", id).Int("recipients", len(req.Emails)).Logger()

	if !s.mailer.Configured() {
		lg.Info().Str("subject", req.Subject).Strs("to", req.Emails).Msg("demo mode: broadcast not sent")
		return RelayResult{Success: true, Demo: true, Message: "Broadcast logged! (Email service not configured - check server logs)"}, nil
	}

	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed []string
	)
	g.SetLimit(broadcastParallelism)
	for _, to := range req.Emails {
		g.Go(func() error {
			err := s.mailer.Send(ctx, domain.Message{Kind: "broadcast", To: to, Subject: req.Subject, HTML: body})
			if err != nil {
				mu.Lock()
				failed = append(failed, to)
				mu.Unlock()
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		lg.Error().Err(err).Strs("failed", failed).Msg("broadcast failed")
		return RelayResult{Message: "Failed to send broadcast. Please try again."},
			fmt.Errorf("%w: broadcast %s: %d of %d failed", domain.ErrDelivery, id, len(failed), len(req.Emails))
	}
	lg.Info().Msg("broadcast sent")
	return RelayResult{Success: true, Message: fmt.Sprintf("Broadcast sent successfully to %d subscriber(s)!", len(req.Emails))}, nil
}

// check runs struct validation and folds the result into one message:
// missing fields win over a malformed address.
func (s *RelayService) check(v any, missing string) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return domain.Invalid("request", err.Error())
	}
	for _, fe := range ves {
		if fe.Tag() != "basic_email" {
			return &domain.ValidationError{Field: strings.ToLower(fe.Field()), Reason: missing}
		}
	}
	return &domain.ValidationError{Field: "email", Reason: "Please provide a valid email address"}
}

func (r *ContactRequest) trim() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Subject = strings.TrimSpace(r.Subject)
}

func logDemo(m domain.Message) {
	log.Info().
		Str("kind", m.Kind).
		Str("to", m.To).
		Str("reply_to", m.ReplyTo).
		Str("subject", m.Subject).
		Msg("demo mode: mail not sent")
}

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
