// Package submission runs the lead lifecycle: capture, lookup, listing and the
// pending to paid transition, with the access policy applied to each call.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	slotleads "github.com/phbpx/slotleads"
	"github.com/phbpx/slotleads/access"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Service struct {
	store slotleads.SubmissionStore
	slots slotleads.SlotCounter
	guard *access.Guard
	offer slotleads.Offer
	log   *otelzap.SugaredLogger
	now   func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(
	store slotleads.SubmissionStore,
	slots slotleads.SlotCounter,
	guard *access.Guard,
	offer slotleads.Offer,
	log *otelzap.SugaredLogger,
	opts ...Option,
) *Service {
	s := &Service{
		store: store,
		slots: slots,
		guard: guard,
		offer: offer,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Input is what a lead fills in. All fields are required.
type Input struct {
	Name     string
	Email    string
	WhatsApp string
}

func (in Input) validate() error {
	var missing []string
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(in.WhatsApp) == "" {
		missing = append(missing, "whatsapp")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", slotleads.ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

// Create records a pending submission owned by the caller and takes one
// urgency slot. Both happen or neither does. Anyone may create.
func (s *Service) Create(ctx context.Context, in Input) (slotleads.SubmissionID, error) {
	ctx, span := tracer().Start(ctx, "submission.create")
	defer span.End()

	if err := in.validate(); err != nil {
		return 0, err
	}

	ns := slotleads.NewSubmission{
		Owner:     slotleads.CallerFrom(ctx),
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		WhatsApp:  strings.TrimSpace(in.WhatsApp),
		Plan:      s.offer.Plan,
		Timestamp: s.now().UTC(),
	}

	sub, remaining, err := s.store.Create(ctx, ns, s.slots)
	if err != nil {
		return 0, fmt.Errorf("creating submission: %w", err)
	}
	span.SetAttributes(attribute.Int64("submission.id", int64(sub.ID)))

	s.log.Ctx(ctx).Infow("Create", "id", sub.ID, "remaining_slots", remaining)
	return sub.ID, nil
}

// Get returns the submission and true, or false when id does not exist.
// Existing records are only visible to their owner and admins.
func (s *Service) Get(ctx context.Context, id slotleads.SubmissionID) (slotleads.Submission, bool, error) {
	ctx, span := tracer().Start(ctx, "submission.get", withID(id))
	defer span.End()

	sub, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, slotleads.ErrNotFound) {
			return slotleads.Submission{}, false, nil
		}
		return slotleads.Submission{}, false, fmt.Errorf("loading submission: %w", err)
	}

	if err := s.authorize(ctx, sub); err != nil {
		return slotleads.Submission{}, false, err
	}
	return sub, true, nil
}

// All lists every submission in creation order. Admins only.
func (s *Service) All(ctx context.Context) ([]slotleads.Submission, error) {
	ctx, span := tracer().Start(ctx, "submission.all")
	defer span.End()

	if err := s.guard.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	subs, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	span.SetAttributes(attribute.Int("submission.count", len(subs)))
	return subs, nil
}

// MarkPaid moves a pending submission to paid. Repeating the call on a paid
// submission succeeds and keeps the original payment instants.
func (s *Service) MarkPaid(ctx context.Context, id slotleads.SubmissionID) (slotleads.Submission, error) {
	ctx, span := tracer().Start(ctx, "submission.mark_paid", withID(id))
	defer span.End()

	sub, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, slotleads.ErrNotFound) {
			return slotleads.Submission{}, err
		}
		return slotleads.Submission{}, fmt.Errorf("loading submission: %w", err)
	}

	if err := s.authorize(ctx, sub); err != nil {
		return slotleads.Submission{}, err
	}

	if sub.Paid() {
		return sub, nil
	}

	paid, err := s.store.MarkPaid(ctx, id, slotleads.NewPayment(s.now()))
	if err != nil {
		return slotleads.Submission{}, fmt.Errorf("marking paid: %w", err)
	}
	s.log.Ctx(ctx).Infow("MarkPaid", "id", id, "renewal", paid.RenewalDate)
	return paid, nil
}

// RemainingSlots is public and never negative.
func (s *Service) RemainingSlots(ctx context.Context) (int, error) {
	n, err := s.slots.Remaining(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading slots: %w", err)
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}

func (s *Service) Offer() slotleads.Offer {
	return s.offer
}

func (s *Service) authorize(ctx context.Context, sub slotleads.Submission) error {
	ok, err := s.guard.CanAccess(ctx, sub)
	if err != nil {
		return err
	}
	if !ok {
		return slotleads.ErrUnauthorized
	}
	return nil
}

func tracer() trace.Tracer {
	return otel.Tracer("submission")
}

func withID(id slotleads.SubmissionID) trace.SpanStartOption {
	return trace.WithAttributes(attribute.Int64("submission.id", int64(id)))
}
