package memory

import (
	"context"
	"sync"

	slotleads "github.com/phbpx/slotleads"
)

type RoleStore struct {
	mu    sync.RWMutex
	roles map[slotleads.Identity]slotleads.Role
}

func NewRoleStore() *RoleStore {
	return &RoleStore{
		roles: make(map[slotleads.Identity]slotleads.Role),
	}
}

func (s *RoleStore) Role(ctx context.Context, id slotleads.Identity) (slotleads.Role, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[id]
	return role, ok, nil
}

func (s *RoleStore) Assign(ctx context.Context, id slotleads.Identity, role slotleads.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roles[id] = role
	return nil
}

func (s *RoleStore) Bootstrap(ctx context.Context, id slotleads.Identity, role slotleads.Role) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.roles {
		if r == slotleads.RoleAdmin {
			return false, nil
		}
	}
	s.roles[id] = role
	return true, nil
}
