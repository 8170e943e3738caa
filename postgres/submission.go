package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	slotleads "github.com/phbpx/slotleads"
)

const submissionColumns = `
		id,
		owner,
		name,
		email,
		whatsapp,
		plan,
		payment_status,
		created_at,
		paid_at,
		renewal_at`

type SubmissionStore struct {
	db *sql.DB
}

func NewSubmissionStore(db *sql.DB) *SubmissionStore {
	return &SubmissionStore{
		db: db,
	}
}

// Create inserts the record and takes the slot in one transaction. A counter
// kept in the same database is decremented through that transaction; any other
// counter is taken before commit and a failed take rolls the insert back.
func (s SubmissionStore) Create(ctx context.Context, ns slotleads.NewSubmission, slots slotleads.SlotCounter) (slotleads.Submission, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return slotleads.Submission{}, 0, err
	}

	query := `
	INSERT INTO submissions (
		owner, name, email, whatsapp, plan, payment_status, created_at
	) VALUES (
		$1, $2, $3, $4, $5, 'pending', $6
	)
	RETURNING id`

	var id int64
	err = tx.QueryRowContext(ctx, query,
		string(ns.Owner),
		ns.Name,
		ns.Email,
		ns.WhatsApp,
		ns.Plan,
		ns.Timestamp,
	).Scan(&id)

	if err != nil {
		tx.Rollback()
		return slotleads.Submission{}, 0, mapErr(err)
	}

	var remaining int
	if c, ok := slots.(*SlotCounter); ok && c.db == s.db {
		remaining, err = takeSlot(ctx, tx)
	} else {
		remaining, err = slots.Take(ctx)
	}
	if err != nil {
		tx.Rollback()
		return slotleads.Submission{}, 0, fmt.Errorf("taking slot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return slotleads.Submission{}, 0, err
	}

	return slotleads.Submission{
		ID:            slotleads.SubmissionID(id),
		Owner:         ns.Owner,
		Name:          ns.Name,
		Email:         ns.Email,
		WhatsApp:      ns.WhatsApp,
		Plan:          ns.Plan,
		PaymentStatus: slotleads.StatusPending,
		Timestamp:     ns.Timestamp,
	}, remaining, nil
}

func (s SubmissionStore) GetByID(ctx context.Context, id slotleads.SubmissionID) (slotleads.Submission, error) {
	return getByID(ctx, s.db, id)
}

func (s SubmissionStore) All(ctx context.Context) ([]slotleads.Submission, error) {
	query := `SELECT` + submissionColumns + `
	FROM submissions
	ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []slotleads.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// MarkPaid only updates rows still pending, so concurrent calls apply the
// payment once and every caller reads back the same instants.
func (s SubmissionStore) MarkPaid(ctx context.Context, id slotleads.SubmissionID, p slotleads.Payment) (slotleads.Submission, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return slotleads.Submission{}, err
	}

	query := `
	UPDATE submissions
	SET payment_status = 'paid', paid_at = $2, renewal_at = $3
	WHERE id = $1 AND payment_status = 'pending'`

	if _, err := tx.ExecContext(ctx, query, int64(id), p.PaidAt, p.RenewalAt); err != nil {
		tx.Rollback()
		return slotleads.Submission{}, mapErr(err)
	}

	sub, err := getByID(ctx, tx, id)
	if err != nil {
		tx.Rollback()
		return slotleads.Submission{}, err
	}

	if err := tx.Commit(); err != nil {
		return slotleads.Submission{}, err
	}
	return sub, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getByID(ctx context.Context, q queryer, id slotleads.SubmissionID) (slotleads.Submission, error) {
	query := `SELECT` + submissionColumns + `
	FROM submissions
	WHERE id = $1`

	sub, err := scanSubmission(q.QueryRowContext(ctx, query, int64(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sub, slotleads.ErrNotFound
		}
		return sub, err
	}
	return sub, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row scanner) (slotleads.Submission, error) {
	var (
		sub       slotleads.Submission
		id        int64
		owner     string
		status    string
		paidAt    sql.NullTime
		renewalAt sql.NullTime
	)

	err := row.Scan(
		&id,
		&owner,
		&sub.Name,
		&sub.Email,
		&sub.WhatsApp,
		&sub.Plan,
		&status,
		&sub.Timestamp,
		&paidAt,
		&renewalAt,
	)
	if err != nil {
		return slotleads.Submission{}, err
	}

	sub.ID = slotleads.SubmissionID(id)
	sub.Owner = slotleads.Identity(owner)
	sub.PaymentStatus = slotleads.PaymentStatus(status)
	sub.Timestamp = sub.Timestamp.UTC()

	if sub.PaymentStatus != slotleads.StatusPending && sub.PaymentStatus != slotleads.StatusPaid {
		return slotleads.Submission{}, fmt.Errorf("submission %d: unknown payment status %q", id, status)
	}
	if paidAt.Valid && renewalAt.Valid {
		date, at, renewal := paidAt.Time.UTC(), paidAt.Time.UTC(), renewalAt.Time.UTC()
		sub.PaymentDate = &date
		sub.PaymentTime = &at
		sub.RenewalDate = &renewal
	}

	return sub, nil
}
