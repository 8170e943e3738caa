package slotleads

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("submission not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SubmissionID is the store assigned handle of a submission. IDs start at 1 and
// follow creation order.
type SubmissionID uint64

type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusPaid    PaymentStatus = "paid"
)

type Submission struct {
	ID            SubmissionID  `json:"id"`
	Owner         Identity      `json:"owner"`
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	WhatsApp      string        `json:"whatsapp"`
	Plan          string        `json:"plan"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Timestamp     time.Time     `json:"timestamp"`
	PaymentDate   *time.Time    `json:"payment_date,omitempty"`
	PaymentTime   *time.Time    `json:"payment_time,omitempty"`
	RenewalDate   *time.Time    `json:"renewal_date,omitempty"`
}

// Paid reports whether the submission reached its terminal state.
func (s Submission) Paid() bool {
	return s.PaymentStatus == StatusPaid
}

// NewSubmission carries the fields a store needs to persist a new record.
type NewSubmission struct {
	Owner     Identity
	Name      string
	Email     string
	WhatsApp  string
	Plan      string
	Timestamp time.Time
}

// Payment holds the instants stamped on the pending to paid transition.
type Payment struct {
	PaidAt    time.Time
	RenewalAt time.Time
}

// NewPayment stamps a payment made at t. Renewal is one calendar year later.
func NewPayment(t time.Time) Payment {
	t = t.UTC()
	return Payment{
		PaidAt:    t,
		RenewalAt: t.AddDate(1, 0, 0),
	}
}

type SubmissionStore interface {
	// Create persists s and takes one slot from slots as a single unit: when
	// either step fails nothing is stored. It returns the record with its newly
	// allocated ID and the slots left after the take.
	Create(ctx context.Context, s NewSubmission, slots SlotCounter) (Submission, int, error)
	// GetByID returns ErrNotFound when no record has id.
	GetByID(ctx context.Context, id SubmissionID) (Submission, error)
	// All returns every submission in creation order.
	All(ctx context.Context) ([]Submission, error)
	// MarkPaid applies p to a pending submission and returns the stored record.
	// A submission that is already paid is returned unchanged.
	MarkPaid(ctx context.Context, id SubmissionID, p Payment) (Submission, error)
}

// SlotCounter is the remaining urgency slot inventory.
type SlotCounter interface {
	Remaining(ctx context.Context) (int, error)
	// Take removes one slot, never going below zero, and returns what is left.
	Take(ctx context.Context) (int, error)
}
