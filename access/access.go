// Package access maps callers to roles and decides what they may do.
package access

import (
	"context"
	"fmt"

	slotleads "github.com/phbpx/slotleads"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Config controls role resolution.
type Config struct {
	// DefaultRole is returned for identities without an assignment. Only
	// RoleGuest and RoleUser are accepted; anything else falls back to RoleGuest.
	DefaultRole slotleads.Role
	// Bootstrap may assign roles while no admin exists, so the first admin
	// can be created on an empty role table.
	Bootstrap slotleads.Identity
}

type Guard struct {
	roles slotleads.RoleStore
	cfg   Config
}

func NewGuard(roles slotleads.RoleStore, cfg Config) *Guard {
	if cfg.DefaultRole != slotleads.RoleUser {
		cfg.DefaultRole = slotleads.RoleGuest
	}
	return &Guard{
		roles: roles,
		cfg:   cfg,
	}
}

// Role resolves the caller in ctx. Unassigned identities get the default role
// and anonymous callers are always guests.
func (g *Guard) Role(ctx context.Context) (slotleads.Role, error) {
	return g.roleOf(ctx, slotleads.CallerFrom(ctx))
}

func (g *Guard) IsAdmin(ctx context.Context) (bool, error) {
	role, err := g.Role(ctx)
	if err != nil {
		return false, err
	}
	return role == slotleads.RoleAdmin, nil
}

// RequireAdmin returns ErrUnauthorized unless the caller is an admin.
func (g *Guard) RequireAdmin(ctx context.Context) error {
	ok, err := g.IsAdmin(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return slotleads.ErrUnauthorized
	}
	return nil
}

// CanAccess reports whether the caller owns sub or is an admin.
func (g *Guard) CanAccess(ctx context.Context, sub slotleads.Submission) (bool, error) {
	caller := slotleads.CallerFrom(ctx)
	if !caller.IsAnonymous() && caller == sub.Owner {
		return true, nil
	}
	return g.IsAdmin(ctx)
}

// Assign grants role to target. The caller must be an admin, or the bootstrap
// identity while the role table holds no admin.
func (g *Guard) Assign(ctx context.Context, target slotleads.Identity, role slotleads.Role) error {
	ctx, span := otel.Tracer("access").Start(ctx, "access.assign")
	span.SetAttributes(attribute.String("role", role.String()))
	defer span.End()

	if target.IsAnonymous() {
		return fmt.Errorf("%w: target identity is required", slotleads.ErrInvalidInput)
	}
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", slotleads.ErrInvalidInput, role)
	}

	bootstrap, err := g.authorizeAssign(ctx)
	if err != nil {
		return err
	}

	if bootstrap {
		ok, err := g.roles.Bootstrap(ctx, target, role)
		if err != nil {
			return fmt.Errorf("bootstrapping role: %w", err)
		}
		if !ok {
			return slotleads.ErrUnauthorized
		}
		return nil
	}

	if err := g.roles.Assign(ctx, target, role); err != nil {
		return fmt.Errorf("assigning role: %w", err)
	}
	return nil
}

// authorizeAssign lets admins through. The bootstrap identity gets through with
// bootstrap set, leaving the "no admin yet" check to the store.
func (g *Guard) authorizeAssign(ctx context.Context) (bootstrap bool, err error) {
	caller := slotleads.CallerFrom(ctx)
	if caller.IsAnonymous() {
		return false, slotleads.ErrUnauthorized
	}

	role, err := g.roleOf(ctx, caller)
	if err != nil {
		return false, err
	}
	if role == slotleads.RoleAdmin {
		return false, nil
	}

	if g.cfg.Bootstrap.IsAnonymous() || caller != g.cfg.Bootstrap {
		return false, slotleads.ErrUnauthorized
	}
	return true, nil
}

func (g *Guard) roleOf(ctx context.Context, id slotleads.Identity) (slotleads.Role, error) {
	if id.IsAnonymous() {
		return slotleads.RoleGuest, nil
	}
	role, ok, err := g.roles.Role(ctx, id)
	if err != nil {
		return "", fmt.Errorf("resolving role: %w", err)
	}
	if !ok {
		return g.cfg.DefaultRole, nil
	}
	return role, nil
}
