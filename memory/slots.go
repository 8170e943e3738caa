package memory

import (
	"context"

	"go.uber.org/atomic"
)

// SlotCounter keeps the urgency slots in a single atomic integer.
type SlotCounter struct {
	remaining *atomic.Int64
}

// NewSlotCounter starts the counter at initial. Negative values are floored at zero.
func NewSlotCounter(initial int) *SlotCounter {
	if initial < 0 {
		initial = 0
	}
	return &SlotCounter{
		remaining: atomic.NewInt64(int64(initial)),
	}
}

func (c *SlotCounter) Remaining(ctx context.Context) (int, error) {
	return int(c.remaining.Load()), nil
}

func (c *SlotCounter) Take(ctx context.Context) (int, error) {
	for {
		cur := c.remaining.Load()
		if cur <= 0 {
			return 0, nil
		}
		if c.remaining.CompareAndSwap(cur, cur-1) {
			return int(cur - 1), nil
		}
	}
}
