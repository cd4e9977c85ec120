package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian/internal/hierarchy"
	"github.com/meridian-erp/meridian/internal/shared"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for role definitions.
// Structured fields (permissions, contextual rules, validation rules, the
// derived effective set) are stored as jsonb.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, description, inherit_from, level, priority,
	permissions, contextual_rules, validation_rules, max_assignments,
	is_active, is_system_role, version, effective_permissions`

// ListRoles returns the full role set as a consistent snapshot read.
func (r *Repository) ListRoles(ctx context.Context) ([]hierarchy.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	defer rows.Close()

	var out []hierarchy.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	return out, nil
}

// GetRole fetches a single role by identifier.
func (r *Repository) GetRole(ctx context.Context, id string) (*hierarchy.Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return role, nil
}

// CreateRole inserts a new role at version 1 with an empty effective set.
func (r *Repository) CreateRole(ctx context.Context, role *hierarchy.Role) error {
	role.Version = 1
	role.Effective = nil
	permissions, contextual, validation, effective, err := marshalRoleJSON(role)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO roles (id, name, description, inherit_from, level, priority,
			permissions, contextual_rules, validation_rules, max_assignments,
			is_active, is_system_role, version, effective_permissions, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$15)`,
		role.ID, role.Name, role.Description, nullable(role.InheritFrom), int(role.Level), role.Priority,
		permissions, contextual, validation, role.MaxAssignments,
		role.IsActive, role.IsSystemRole, role.Version, effective, time.Now().UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return shared.ErrDuplicateRole
		}
		return fmt.Errorf("roles: create %s: %w", role.ID, err)
	}
	return nil
}

// UpdateRole persists an edit with an optimistic-concurrency precondition.
// The stored version must equal expectedVersion; on success the role's
// version is bumped and written back into the passed struct.
func (r *Repository) UpdateRole(ctx context.Context, role *hierarchy.Role, expectedVersion int64) error {
	role.Version = expectedVersion + 1
	permissions, contextual, validation, effective, err := marshalRoleJSON(role)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE roles SET name=$2, description=$3, inherit_from=$4, level=$5, priority=$6,
			permissions=$7, contextual_rules=$8, validation_rules=$9, max_assignments=$10,
			is_active=$11, is_system_role=$12, version=$13, effective_permissions=$14, updated_at=$15
		WHERE id = $1 AND version = $16`,
		role.ID, role.Name, role.Description, nullable(role.InheritFrom), int(role.Level), role.Priority,
		permissions, contextual, validation, role.MaxAssignments,
		role.IsActive, role.IsSystemRole, role.Version, effective, time.Now().UTC(),
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("roles: update %s: %w", role.ID, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing role from a concurrent edit.
		if _, getErr := r.GetRole(ctx, role.ID); errors.Is(getErr, shared.ErrNotFound) {
			return shared.ErrNotFound
		}
		return shared.ErrVersionConflict
	}
	return nil
}

// SaveEffective stores a recomputed effective permission set without bumping
// the version; the set is derived state, not an edit.
func (r *Repository) SaveEffective(ctx context.Context, id string, version int64, entries []hierarchy.PermissionEntry) error {
	effective, err := json.Marshal(orEmptyPerms(entries))
	if err != nil {
		return fmt.Errorf("roles: marshal effective for %s: %w", id, err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE roles SET effective_permissions=$2, updated_at=$3 WHERE id = $1 AND version = $4`,
		id, effective, time.Now().UTC(), version,
	)
	if err != nil {
		return fmt.Errorf("roles: save effective %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// The role moved on since the recompute started; the newer version
		// carries its own recompute.
		return shared.ErrVersionConflict
	}
	return nil
}

// DeleteRole removes a role by identifier.
func (r *Repository) DeleteRole(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("roles: delete %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func marshalRoleJSON(role *hierarchy.Role) (permissions, contextual, validation, effective []byte, err error) {
	if permissions, err = json.Marshal(orEmptyPerms(role.Permissions)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("roles: marshal permissions: %w", err)
	}
	if contextual, err = json.Marshal(orEmptyRules(role.ContextualRules)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("roles: marshal contextual rules: %w", err)
	}
	if validation, err = json.Marshal(orEmptyValidation(role.ValidationRules)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("roles: marshal validation rules: %w", err)
	}
	if effective, err = json.Marshal(orEmptyPerms(role.Effective)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("roles: marshal effective: %w", err)
	}
	return permissions, contextual, validation, effective, nil
}

func orEmptyPerms(in []hierarchy.PermissionEntry) []hierarchy.PermissionEntry {
	if in == nil {
		return []hierarchy.PermissionEntry{}
	}
	return in
}

func orEmptyRules(in []hierarchy.ContextualRule) []hierarchy.ContextualRule {
	if in == nil {
		return []hierarchy.ContextualRule{}
	}
	return in
}

func orEmptyValidation(in []hierarchy.RoleValidationRule) []hierarchy.RoleValidationRule {
	if in == nil {
		return []hierarchy.RoleValidationRule{}
	}
	return in
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (*hierarchy.Role, error) {
	var (
		role        hierarchy.Role
		inheritFrom *string
		level       int
		permissions []byte
		contextual  []byte
		validation  []byte
		effective   []byte
	)
	if err := row.Scan(
		&role.ID, &role.Name, &role.Description, &inheritFrom, &level, &role.Priority,
		&permissions, &contextual, &validation, &role.MaxAssignments,
		&role.IsActive, &role.IsSystemRole, &role.Version, &effective,
	); err != nil {
		return nil, err
	}
	if inheritFrom != nil {
		role.InheritFrom = *inheritFrom
	}
	role.Level = hierarchy.Level(level)
	if err := json.Unmarshal(permissions, &role.Permissions); err != nil {
		return nil, fmt.Errorf("roles: decode permissions for %s: %w", role.ID, err)
	}
	if err := json.Unmarshal(contextual, &role.ContextualRules); err != nil {
		return nil, fmt.Errorf("roles: decode contextual rules for %s: %w", role.ID, err)
	}
	if err := json.Unmarshal(validation, &role.ValidationRules); err != nil {
		return nil, fmt.Errorf("roles: decode validation rules for %s: %w", role.ID, err)
	}
	if err := json.Unmarshal(effective, &role.Effective); err != nil {
		return nil, fmt.Errorf("roles: decode effective for %s: %w", role.ID, err)
	}
	return &role, nil
}
