package subscription

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/incosense/incosense/internal/domain"
	"github.com/incosense/incosense/internal/pkg/logger"
	"github.com/incosense/incosense/internal/strictform"
)

// Service implements subscription business logic. It holds no per-request
// state and is safe for concurrent use.
type Service struct {
	repo     Repository
	limits   strictform.Limits
	notifier Notifier
	now      func() time.Time
	newID    func() string
	log      *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sends a confirmation after every successful insert.
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithClock overrides the submission timestamp source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithIDGenerator overrides the subscription ID source.
func WithIDGenerator(f func() string) Option { return func(s *Service) { s.newID = f } }

// WithLogger sets the logger used for best-effort failures.
func WithLogger(l *logger.Logger) Option { return func(s *Service) { s.log = l } }

// NewService creates a subscription service backed by the given repository.
func NewService(repo Repository, limits strictform.Limits, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		limits: limits,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
		log:    logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limits returns the decoder limits the service was built with.
func (s *Service) Limits() strictform.Limits { return s.limits.Resolve() }

// Subscribe decodes body, validates the subscriber and stores it.
//
// The returned error is one of: a *strictform.Rejection, a
// *domain.ValidationError, or a wrapped repository error. Use Classify to
// turn it into an Outcome.
func (s *Service) Subscribe(ctx context.Context, body io.Reader) (*domain.Subscription, error) {
	form, err := strictform.Decode(ctx, body, s.limits)
	if err != nil {
		return nil, err
	}
	sub, err := SubscriberFromForm(form)
	if err != nil {
		return nil, err
	}
	return s.Store(ctx, sub)
}

// Store persists an already validated subscriber.
func (s *Service) Store(ctx context.Context, sub domain.Subscriber) (*domain.Subscription, error) {
	rec := &domain.Subscription{
		ID:           s.newID(),
		Subscriber:   sub,
		SubscribedAt: s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}

	if s.notifier != nil {
		if err := s.notifier.SendConfirmation(ctx, rec); err != nil {
			s.log.Warn("confirmation email failed",
				"subscription_id", rec.ID,
				"email", rec.Subscriber.Email.String(),
				"error", err)
		}
	}
	return rec, nil
}

// SubscriberFromForm extracts and validates the name and email fields.
// Missing fields are structural errors and are checked before either value
// is validated; unknown fields are ignored.
func SubscriberFromForm(form *strictform.Form) (domain.Subscriber, error) {
	name, err := form.Require(domain.FieldName)
	if err != nil {
		return domain.Subscriber{}, err
	}
	email, err := form.Require(domain.FieldEmail)
	if err != nil {
		return domain.Subscriber{}, err
	}
	return domain.NewSubscriber(name, email)
}
