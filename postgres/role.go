package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	slotleads "github.com/phbpx/slotleads"
)

type RoleStore struct {
	db *sql.DB
}

func NewRoleStore(db *sql.DB) *RoleStore {
	return &RoleStore{
		db: db,
	}
}

func (s RoleStore) Role(ctx context.Context, id slotleads.Identity) (slotleads.Role, bool, error) {
	query := `SELECT role FROM roles WHERE identity = $1`

	var role string
	if err := s.db.QueryRowContext(ctx, query, string(id)).Scan(&role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}

	parsed, err := slotleads.ParseRole(role)
	if err != nil {
		return "", false, err
	}
	return parsed, true, nil
}

func (s RoleStore) Assign(ctx context.Context, id slotleads.Identity, role slotleads.Role) error {
	query := `
	INSERT INTO roles (identity, role, updated_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (identity) DO UPDATE
	SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, query, string(id), string(role), time.Now().UTC())
	return mapErr(err)
}

// bootstrapLock keys the transaction level advisory lock that serializes
// bootstrap grants between instances.
const bootstrapLock = 0x51075

// Bootstrap holds an advisory lock while it inserts, so the NOT EXISTS check of
// a second instance runs after the first grant is committed and sees it.
func (s RoleStore) Bootstrap(ctx context.Context, id slotleads.Identity, role slotleads.Role) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLock); err != nil {
		tx.Rollback()
		return false, err
	}

	query := `
	INSERT INTO roles (identity, role, updated_at)
	SELECT $1, $2, $3
	WHERE NOT EXISTS (SELECT 1 FROM roles WHERE role = 'admin')
	ON CONFLICT (identity) DO UPDATE
	SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at`

	res, err := tx.ExecContext(ctx, query, string(id), string(role), time.Now().UTC())
	if err != nil {
		tx.Rollback()
		return false, mapErr(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return n > 0, nil
}
