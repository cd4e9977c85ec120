package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/meridian-erp/meridian/internal/audit"
	"github.com/meridian-erp/meridian/internal/hierarchy"
	"github.com/meridian-erp/meridian/internal/observability"
	"github.com/meridian-erp/meridian/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]hierarchy.Role, error)
	GetRole(ctx context.Context, id string) (*hierarchy.Role, error)
	CreateRole(ctx context.Context, role *hierarchy.Role) error
	UpdateRole(ctx context.Context, role *hierarchy.Role, expectedVersion int64) error
	SaveEffective(ctx context.Context, id string, version int64, entries []hierarchy.PermissionEntry) error
	DeleteRole(ctx context.Context, id string) error
}

// TaskEnqueuer schedules background recomputation for a mutated subtree.
type TaskEnqueuer interface {
	EnqueueRecompute(ctx context.Context, rootID string) error
}

// AuditPort records audit events; a nil implementation is acceptable.
type AuditPort interface {
	Record(ctx context.Context, event audit.Event) error
}

// Service orchestrates role reads, authorization decisions and validated
// mutations. All read-side computation runs against immutable snapshots;
// writes go through Validate and an optimistic version precondition.
type Service struct {
	repo    RepositoryPort
	cache   *Cache
	auditor AuditPort
	enqueue TaskEnqueuer
	metrics *observability.Metrics
	logger  *slog.Logger
	group   singleflight.Group
}

// ServiceConfig groups the optional collaborators of the Service.
type ServiceConfig struct {
	Cache    *Cache
	Auditor  AuditPort
	Enqueuer TaskEnqueuer
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		cache:   cfg.Cache,
		auditor: cfg.Auditor,
		enqueue: cfg.Enqueuer,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// Snapshot loads the full role set as an immutable snapshot.
func (s *Service) Snapshot(ctx context.Context) (*hierarchy.Snapshot, error) {
	all, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	return hierarchy.NewSnapshot(all), nil
}

// ListRoles returns all role definitions.
func (s *Service) ListRoles(ctx context.Context) ([]hierarchy.Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole returns one role definition.
func (s *Service) GetRole(ctx context.Context, id string) (*hierarchy.Role, error) {
	return s.repo.GetRole(ctx, id)
}

// EffectivePermissions resolves a role's effective set, serving from the
// version-chain cache when possible. Concurrent misses for the same key
// collapse into a single resolution.
func (s *Service) EffectivePermissions(ctx context.Context, roleID string) ([]hierarchy.PermissionEntry, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := snap.Role(roleID); !ok {
		return nil, shared.ErrNotFound
	}
	return s.effectiveFromSnapshot(ctx, snap, roleID), nil
}

func (s *Service) effectiveFromSnapshot(ctx context.Context, snap *hierarchy.Snapshot, roleID string) []hierarchy.PermissionEntry {
	key := s.cache.Key(snap, roleID)
	if entries, ok := s.cache.Get(ctx, key); ok {
		s.metrics.ObserveCacheLookup(true)
		return entries
	}
	s.metrics.ObserveCacheLookup(false)

	resolved, _, _ := s.group.Do(key, func() (interface{}, error) {
		start := time.Now()
		entries := snap.EffectivePermissions(roleID)
		s.metrics.ObserveResolveDuration(time.Since(start))
		s.cache.Set(ctx, key, entries)
		return entries, nil
	})
	entries, _ := resolved.([]hierarchy.PermissionEntry)
	return entries
}

// Validate runs the hierarchy checks for a candidate role against the
// current role set. Violations are data, not errors.
func (s *Service) Validate(ctx context.Context, role *hierarchy.Role) ([]hierarchy.Violation, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Validate(role), nil
}

// Decide answers an authorization check. It is total over its inputs: any
// failure to load the role set logs and denies rather than erroring, since
// authorization checks must not fail open or crash the hot path.
func (s *Service) Decide(ctx context.Context, roleID, resource, action string, dc hierarchy.DecisionContext) bool {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		s.logger.Error("decide: load role set", slog.Any("error", err))
		s.metrics.ObserveDecision(false)
		return false
	}
	role, ok := snap.Role(roleID)
	if !ok {
		s.metrics.ObserveDecision(false)
		return false
	}

	effective := s.effectiveFromSnapshot(ctx, snap, roleID)
	allowed := hierarchy.Decide(role, effective, resource, action, dc)
	s.metrics.ObserveDecision(allowed)
	s.recordDecision(ctx, roleID, resource, action, allowed)
	return allowed
}

// CreateRole validates and persists a new role. A non-empty violation list
// blocks the persist and is returned alongside a nil error.
func (s *Service) CreateRole(ctx context.Context, role *hierarchy.Role) ([]hierarchy.Violation, error) {
	if role == nil || role.ID == "" {
		return nil, fmt.Errorf("roles: role identifier required")
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if _, exists := snap.Role(role.ID); exists {
		return nil, shared.ErrDuplicateRole
	}
	if violations := snap.Validate(role); len(violations) > 0 {
		return violations, nil
	}
	if err := s.repo.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	s.afterMutation(ctx, role.ID, audit.KindRoleCreated)
	return nil, nil
}

// UpdateRole validates and persists an edit under the supplied version
// precondition, then schedules recomputation for the affected subtree.
func (s *Service) UpdateRole(ctx context.Context, role *hierarchy.Role, expectedVersion int64) ([]hierarchy.Violation, error) {
	if role == nil || role.ID == "" {
		return nil, fmt.Errorf("roles: role identifier required")
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if violations := snap.Validate(role); len(violations) > 0 {
		return violations, nil
	}
	if err := s.repo.UpdateRole(ctx, role, expectedVersion); err != nil {
		return nil, err
	}
	s.afterMutation(ctx, role.ID, audit.KindRoleUpdated)
	return nil, nil
}

// DeleteRole removes a role that anchors no subtree.
func (s *Service) DeleteRole(ctx context.Context, id string) error {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	if _, ok := snap.Role(id); !ok {
		return shared.ErrNotFound
	}
	if len(snap.Descendants(id)) > 0 {
		return shared.ErrHasDescendants
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.afterMutation(ctx, id, audit.KindRoleDeleted)
	return nil
}

// RecomputeSubtree resolves and persists the effective sets of a role and
// all of its descendants against a fresh snapshot. Run by the background
// worker after a mutation.
func (s *Service) RecomputeSubtree(ctx context.Context, rootID string) error {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	root, ok := snap.Role(rootID)
	if !ok {
		// The role vanished between the mutation and the job run: nothing
		// left to recompute for it, descendants were reparented or removed.
		return nil
	}

	targets := append([]*hierarchy.Role{root}, snap.Descendants(rootID)...)
	for _, role := range targets {
		entries := snap.EffectivePermissions(role.ID)
		s.cache.Set(ctx, s.cache.Key(snap, role.ID), entries)
		if err := s.repo.SaveEffective(ctx, role.ID, role.Version, entries); err != nil {
			if errors.Is(err, shared.ErrVersionConflict) {
				continue
			}
			return err
		}
	}
	return nil
}

func (s *Service) afterMutation(ctx context.Context, roleID string, kind audit.EventKind) {
	if s.enqueue != nil {
		if err := s.enqueue.EnqueueRecompute(ctx, roleID); err != nil {
			s.logger.Error("enqueue recompute", slog.String("role", roleID), slog.Any("error", err))
		}
	}
	if s.auditor != nil {
		event := audit.Event{Kind: kind, RoleID: roleID, Actor: actorName(ctx)}
		if err := s.auditor.Record(ctx, event); err != nil {
			s.logger.Error("record audit event", slog.Any("error", err))
		}
	}
}

func (s *Service) recordDecision(ctx context.Context, roleID, resource, action string, allowed bool) {
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		Kind:     audit.KindDecision,
		RoleID:   roleID,
		Resource: resource,
		Action:   action,
		Allowed:  &allowed,
		Actor:    actorName(ctx),
	}
	if err := s.auditor.Record(ctx, event); err != nil {
		s.logger.Error("record decision", slog.Any("error", err))
	}
}

func actorName(ctx context.Context) string {
	if p := shared.PrincipalFromContext(ctx); p != nil {
		return p.Name
	}
	return ""
}
