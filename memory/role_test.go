package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	slotleads "github.com/phbpx/slotleads"
	"github.com/phbpx/slotleads/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRoleStore()

	_, ok, err := store.Role(ctx, "asha")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Assign(ctx, "asha", slotleads.RoleAdmin))
	require.NoError(t, store.Assign(ctx, "ravi", slotleads.RoleUser))

	role, ok, err := store.Role(ctx, "asha")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, slotleads.RoleAdmin, role)

	require.NoError(t, store.Assign(ctx, "asha", slotleads.RoleUser))
	role, _, err = store.Role(ctx, "asha")
	require.NoError(t, err)
	assert.Equal(t, slotleads.RoleUser, role)
}

func TestRoleStore_Bootstrap(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRoleStore()

	require.NoError(t, store.Assign(ctx, "ravi", slotleads.RoleUser))

	ok, err := store.Bootstrap(ctx, "asha", slotleads.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Bootstrap(ctx, "ravi", slotleads.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, ok, "an admin already exists")

	role, _, err := store.Role(ctx, "ravi")
	require.NoError(t, err)
	assert.Equal(t, slotleads.RoleUser, role)

	require.NoError(t, store.Assign(ctx, "asha", slotleads.RoleUser))
	ok, err = store.Bootstrap(ctx, "ravi", slotleads.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok, "last admin was demoted")
}

func TestRoleStore_ConcurrentBootstrap(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRoleStore()

	const n = 50
	granted := make([]bool, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := store.Bootstrap(ctx, slotleads.Identity(fmt.Sprintf("id-%d", i)), slotleads.RoleAdmin)
			assert.NoError(t, err)
			granted[i] = ok
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, ok := range granted {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}
