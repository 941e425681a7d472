package newsletter

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/logging"
	"storefront/internal/models"
	"storefront/internal/validation"
)

var (
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrUnknownToken       = errors.New("unknown unsubscribe token")
)

type Store interface {
	FindByEmail(ctx context.Context, email string) (models.NewsletterSubscriber, error)
	Insert(ctx context.Context, sub *models.NewsletterSubscriber) error
	Resubscribe(ctx context.Context, email, token string) error
	Unsubscribe(ctx context.Context, token string, at time.Time) (models.NewsletterSubscriber, error)
}

// WelcomeMailer sends the first newsletter mail with its unsubscribe link.
type WelcomeMailer interface {
	SendNewsletterWelcome(ctx context.Context, to, unsubscribeLink string) error
}

type Service struct {
	store          Store
	mailer         WelcomeMailer
	unsubscribeURL string
	logger         *zap.Logger
	now            func() time.Time
	newToken       func() string
}

// NewService builds the subscription service; unsubscribeURL is the page
// that receives ?token=... from the welcome mail.
func NewService(store Store, mailer WelcomeMailer, unsubscribeURL string, logger *zap.Logger) *Service {
	return &Service{
		store:          store,
		mailer:         mailer,
		unsubscribeURL: unsubscribeURL,
		logger:         logging.OrNop(logger).Named("newsletter"),
		now:            time.Now,
		newToken:       uuid.NewString,
	}
}

// Subscribe is idempotent for active subscribers. New and returning
// subscribers get a fresh token and the welcome mail.
func (s *Service) Subscribe(ctx context.Context, email string) (models.NewsletterSubscriber, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.Validator().Var(email, "required,email"); err != nil {
		return models.NewsletterSubscriber{}, err
	}

	existing, err := s.store.FindByEmail(ctx, email)
	switch {
	case err == nil && existing.Subscribed:
		return existing, nil
	case err == nil:
		existing.Token = s.newToken()
		existing.Subscribed = true
		existing.UnsubscribedAt = nil
		if err := s.store.Resubscribe(ctx, email, existing.Token); err != nil {
			return models.NewsletterSubscriber{}, fmt.Errorf("resubscribe: %w", err)
		}
		s.welcome(ctx, existing)
		return existing, nil
	case !errors.Is(err, ErrSubscriberNotFound):
		return models.NewsletterSubscriber{}, err
	}

	sub := models.NewsletterSubscriber{
		Email:      email,
		Token:      s.newToken(),
		Subscribed: true,
		CreatedAt:  s.now(),
	}
	if err := s.store.Insert(ctx, &sub); err != nil {
		return models.NewsletterSubscriber{}, fmt.Errorf("insert subscriber: %w", err)
	}
	s.logger.Info("subscriber added", zap.String("email", email))
	s.welcome(ctx, sub)
	return sub, nil
}

func (s *Service) Unsubscribe(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrUnknownToken
	}
	sub, err := s.store.Unsubscribe(ctx, token, s.now())
	if errors.Is(err, ErrSubscriberNotFound) {
		return ErrUnknownToken
	}
	if err != nil {
		return err
	}
	s.logger.Info("subscriber left", zap.String("email", sub.Email))
	return nil
}

func (s *Service) UnsubscribeLink(token string) string {
	base := s.unsubscribeURL
	if base == "" {
		base = "/newsletter/unsubscribe"
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}

// welcome failures are logged only; the subscription stands.
func (s *Service) welcome(ctx context.Context, sub models.NewsletterSubscriber) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendNewsletterWelcome(ctx, sub.Email, s.UnsubscribeLink(sub.Token)); err != nil {
		s.logger.Warn("welcome mail failed", zap.String("email", sub.Email), zap.Error(err))
	}
}
