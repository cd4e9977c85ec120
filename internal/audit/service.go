// Package audit records role mutations and authorization decisions for the
// compliance trail.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventKind classifies an audit event.
type EventKind string

// Event kinds recorded by this service.
const (
	KindRoleCreated EventKind = "role.created"
	KindRoleUpdated EventKind = "role.updated"
	KindRoleDeleted EventKind = "role.deleted"
	KindDecision    EventKind = "authorization.decision"
)

// Event is one entry in the audit trail.
type Event struct {
	ID       uuid.UUID      `json:"id"`
	Kind     EventKind      `json:"kind"`
	RoleID   string         `json:"role_id"`
	Resource string         `json:"resource,omitempty"`
	Action   string         `json:"action,omitempty"`
	Allowed  *bool          `json:"allowed,omitempty"`
	Actor    string         `json:"actor,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// Filters narrows a trail listing.
type Filters struct {
	RoleID string
	Kind   EventKind
	Limit  int
}

// Service persists and lists audit events.
type Service struct {
	pool *pgxpool.Pool
}

// NewService builds the audit service.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Record stores one event, assigning ID and timestamp when missing. A nil
// service is a no-op so callers can wire auditing optionally.
func (s *Service) Record(ctx context.Context, event Event) error {
	if s == nil || s.pool == nil {
		return nil
	}
	if event.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("audit: new id: %w", err)
		}
		event.ID = id
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	meta, err := json.Marshal(event.Meta)
	if err != nil {
		return fmt.Errorf("audit: marshal meta: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_events (id, kind, role_id, resource, action, allowed, actor, meta, at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		event.ID, string(event.Kind), event.RoleID, event.Resource, event.Action,
		event.Allowed, event.Actor, meta, event.At,
	)
	if err != nil {
		return fmt.Errorf("audit: record %s: %w", event.Kind, err)
	}
	return nil
}

// List returns events newest first.
func (s *Service) List(ctx context.Context, filters Filters) ([]Event, error) {
	if s == nil || s.pool == nil {
		return nil, nil
	}
	limit := filters.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, role_id, resource, action, allowed, actor, meta, at
		FROM audit_events
		WHERE ($1 = '' OR role_id = $1)
		  AND ($2 = '' OR kind = $2)
		ORDER BY at DESC
		LIMIT $3`,
		filters.RoleID, string(filters.Kind), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			event Event
			kind  string
			meta  []byte
		)
		if err := rows.Scan(&event.ID, &kind, &event.RoleID, &event.Resource,
			&event.Action, &event.Allowed, &event.Actor, &meta, &event.At); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		event.Kind = EventKind(kind)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &event.Meta); err != nil {
				return nil, fmt.Errorf("audit: decode meta: %w", err)
			}
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	return out, nil
}
