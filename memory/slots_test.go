package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/phbpx/slotleads/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotCounter_FloorsAtZero(t *testing.T) {
	ctx := context.Background()
	slots := memory.NewSlotCounter(2)

	for _, want := range []int{1, 0, 0, 0} {
		got, err := slots.Take(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	n, err := slots.Remaining(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSlotCounter_NegativeInitial(t *testing.T) {
	n, err := memory.NewSlotCounter(-5).Remaining(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSlotCounter_ConcurrentTake(t *testing.T) {
	ctx := context.Background()
	slots := memory.NewSlotCounter(100)

	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := slots.Take(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := slots.Remaining(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40, n)

	for i := 0; i < 80; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slots.Take(ctx)
		}()
	}
	wg.Wait()

	n, err = slots.Remaining(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
