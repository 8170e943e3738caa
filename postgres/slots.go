package postgres

import (
	"context"
	"database/sql"
	"errors"
)

// SlotCounter keeps the urgency slots in the single row of urgency_slots.
type SlotCounter struct {
	db *sql.DB
}

func NewSlotCounter(db *sql.DB) *SlotCounter {
	return &SlotCounter{
		db: db,
	}
}

// Seed creates the counter row with initial slots. An existing row is left
// alone so restarts do not hand slots back.
func (c SlotCounter) Seed(ctx context.Context, initial int) error {
	if initial < 0 {
		initial = 0
	}

	query := `
	INSERT INTO urgency_slots (id, remaining)
	VALUES (1, $1)
	ON CONFLICT (id) DO NOTHING`

	_, err := c.db.ExecContext(ctx, query, initial)
	return err
}

func (c SlotCounter) Remaining(ctx context.Context) (int, error) {
	query := `SELECT remaining FROM urgency_slots WHERE id = 1`

	var n int
	if err := c.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (c SlotCounter) Take(ctx context.Context) (int, error) {
	return takeSlot(ctx, c.db)
}

// takeSlot relies on the row lock of UPDATE to serialize concurrent decrements.
// q is the pool or the transaction of the submission being created.
func takeSlot(ctx context.Context, q queryer) (int, error) {
	query := `
	UPDATE urgency_slots
	SET remaining = GREATEST(remaining - 1, 0)
	WHERE id = 1
	RETURNING remaining`

	var n int
	if err := q.QueryRowContext(ctx, query).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}
