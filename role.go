package slotleads

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// ParseRole converts a case insensitive role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleUser, RoleGuest:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) String() string {
	return string(r)
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type RoleStore interface {
	// Role returns the assigned role of id and false when id has none.
	Role(ctx context.Context, id Identity) (Role, bool, error)
	// Assign upserts the role of id.
	Assign(ctx context.Context, id Identity, role Role) error
	// Bootstrap assigns role to id only while no identity holds RoleAdmin and
	// reports whether it did. The check and the write happen as one step, also
	// across processes sharing the store.
	Bootstrap(ctx context.Context, id Identity, role Role) (bool, error)
}
