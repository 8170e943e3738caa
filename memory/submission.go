// Package memory holds process local implementations of the slotleads stores.
// State is lost on restart.
package memory

import (
	"context"
	"sync"
	"time"

	slotleads "github.com/phbpx/slotleads"
)

type SubmissionStore struct {
	mu     sync.Mutex
	lastID slotleads.SubmissionID
	// records is kept in creation order; records[i].ID == i+1.
	records []slotleads.Submission
}

func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{}
}

// Create takes the slot while holding the store lock, so a failed take leaves
// neither a record nor a consumed ID behind.
func (s *SubmissionStore) Create(ctx context.Context, ns slotleads.NewSubmission, slots slotleads.SlotCounter) (slotleads.Submission, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining, err := slots.Take(ctx)
	if err != nil {
		return slotleads.Submission{}, 0, err
	}

	s.lastID++
	sub := slotleads.Submission{
		ID:            s.lastID,
		Owner:         ns.Owner,
		Name:          ns.Name,
		Email:         ns.Email,
		WhatsApp:      ns.WhatsApp,
		Plan:          ns.Plan,
		PaymentStatus: slotleads.StatusPending,
		Timestamp:     ns.Timestamp,
	}
	s.records = append(s.records, sub)

	return clone(sub), remaining, nil
}

func (s *SubmissionStore) GetByID(ctx context.Context, id slotleads.SubmissionID) (slotleads.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index(id)
	if !ok {
		return slotleads.Submission{}, slotleads.ErrNotFound
	}
	return clone(s.records[i]), nil
}

func (s *SubmissionStore) All(ctx context.Context) ([]slotleads.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]slotleads.Submission, len(s.records))
	for i, sub := range s.records {
		out[i] = clone(sub)
	}
	return out, nil
}

func (s *SubmissionStore) MarkPaid(ctx context.Context, id slotleads.SubmissionID, p slotleads.Payment) (slotleads.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index(id)
	if !ok {
		return slotleads.Submission{}, slotleads.ErrNotFound
	}

	sub := &s.records[i]
	if !sub.Paid() {
		paidAt, renewal := p.PaidAt, p.RenewalAt
		sub.PaymentStatus = slotleads.StatusPaid
		sub.PaymentDate = &paidAt
		sub.PaymentTime = &paidAt
		sub.RenewalDate = &renewal
	}
	return clone(*sub), nil
}

func (s *SubmissionStore) index(id slotleads.SubmissionID) (int, bool) {
	if id == 0 || uint64(id) > uint64(len(s.records)) {
		return 0, false
	}
	return int(id - 1), true
}

// clone detaches the optional timestamps so callers cannot write through them.
func clone(sub slotleads.Submission) slotleads.Submission {
	sub.PaymentDate = copyTime(sub.PaymentDate)
	sub.PaymentTime = copyTime(sub.PaymentTime)
	sub.RenewalDate = copyTime(sub.RenewalDate)
	return sub
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
