// Package hierarchy implements the role hierarchy engine: permission
// inheritance over a parent-pointer role tree, priority based conflict
// resolution, contextual overlays and structural validation. The package is
// pure computation over an immutable snapshot and performs no I/O.
package hierarchy

import (
	"sort"
	"time"
)

// Level is the ordinal seniority of a role, independent of the inheritance
// tree. Lower values are more senior.
type Level int

// Seniority levels from most senior (system) to least senior (restricted).
const (
	LevelSystem Level = iota
	LevelExecutive
	LevelManagement
	LevelSupervisor
	LevelStaff
	LevelRestricted
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelSystem:
		return "system"
	case LevelExecutive:
		return "executive"
	case LevelManagement:
		return "management"
	case LevelSupervisor:
		return "supervisor"
	case LevelStaff:
		return "staff"
	case LevelRestricted:
		return "restricted"
	default:
		return "unknown"
	}
}

// Valid reports whether the level is one of the defined ordinals.
func (l Level) Valid() bool {
	return l >= LevelSystem && l <= LevelRestricted
}

// PermissionEntry grants a set of actions on a resource. Entries collected
// from an ancestor carry Inherited/InheritedFrom; CanOverride=false forbids
// any descendant from declaring a direct entry for the same resource.
type PermissionEntry struct {
	Resource      string   `json:"resource"`
	Actions       []string `json:"actions"`
	Conditions    []string `json:"conditions,omitempty"`
	Inherited     bool     `json:"inherited"`
	InheritedFrom string   `json:"inherited_from,omitempty"`
	Priority      int      `json:"priority"`
	CanOverride   bool     `json:"can_override"`
}

// Allows reports whether the entry grants action on resource.
func (p PermissionEntry) Allows(resource, action string) bool {
	if p.Resource != resource {
		return false
	}
	for _, a := range p.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// TimeRestriction limits a contextual rule to a clock-time window on a set
// of weekdays, optionally bounded by an absolute date range.
type TimeRestriction struct {
	StartTime string     `json:"start_time,omitempty"` // "09:00"
	EndTime   string     `json:"end_time,omitempty"`   // "17:30"
	Weekdays  []int      `json:"weekdays,omitempty"`   // ISO 8601: 1=Monday .. 7=Sunday
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Timezone  string     `json:"timezone,omitempty"`
}

// ContextualRule overlays grants and denials on top of the statically
// resolved permission set while its restrictions match the request context.
// Condition is an opaque predicate owned by the caller; this engine only
// carries it.
type ContextualRule struct {
	Condition       string            `json:"condition,omitempty"`
	TimeRestriction *TimeRestriction  `json:"time_restriction,omitempty"`
	Locations       []string          `json:"locations,omitempty"`
	Additional      []PermissionEntry `json:"additional_permissions,omitempty"`
	Denied          []PermissionEntry `json:"denied_permissions,omitempty"`
	Priority        int               `json:"priority"`
	IsActive        bool              `json:"is_active"`
}

// ValidationRuleKind classifies assignment preconditions.
type ValidationRuleKind string

// Assignment precondition kinds, evaluated by the assignment workflow.
const (
	RuleDepartmentMatch   ValidationRuleKind = "department_match"
	RuleLocationMatch     ValidationRuleKind = "location_match"
	RuleSeniorityLevel    ValidationRuleKind = "seniority_level"
	RuleSkillRequirement  ValidationRuleKind = "skill_requirement"
	RuleSecurityClearance ValidationRuleKind = "security_clearance"
	RuleCustom            ValidationRuleKind = "custom"
)

// RoleValidationRule is a declarative precondition on role assignment. It is
// stored with the role and evaluated externally; the engine never runs it.
type RoleValidationRule struct {
	Kind         ValidationRuleKind `json:"kind"`
	Condition    string             `json:"condition"`
	ErrorMessage string             `json:"error_message"`
}

// Role is a named authorization unit inheriting from at most one parent.
type Role struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	Description     string               `json:"description,omitempty"`
	InheritFrom     string               `json:"inherit_from,omitempty"`
	Level           Level                `json:"level"`
	Priority        int                  `json:"priority"`
	Permissions     []PermissionEntry    `json:"permissions"`
	ContextualRules []ContextualRule     `json:"contextual_rules,omitempty"`
	ValidationRules []RoleValidationRule `json:"validation_rules,omitempty"`
	MaxAssignments  int                  `json:"max_assignments,omitempty"` // 0 = unlimited
	IsActive        bool                 `json:"is_active"`
	IsSystemRole    bool                 `json:"is_system_role"`
	Version         int64                `json:"version"`

	// Effective is a derived cache maintained by the resolver. It is never
	// an independent source of truth.
	Effective []PermissionEntry `json:"effective_permissions,omitempty"`
}

// Snapshot is an immutable view of the full role set. The child index is
// derived from InheritFrom at construction; a stored child array is never
// trusted.
type Snapshot struct {
	roles    map[string]*Role
	children map[string][]string
}

// NewSnapshot indexes the given roles. Duplicate identifiers keep the first
// occurrence; the role set is expected to be unique upstream.
func NewSnapshot(roles []Role) *Snapshot {
	s := &Snapshot{
		roles:    make(map[string]*Role, len(roles)),
		children: make(map[string][]string),
	}
	for i := range roles {
		r := roles[i]
		if _, ok := s.roles[r.ID]; ok {
			continue
		}
		s.roles[r.ID] = &r
	}
	for id, r := range s.roles {
		if r.InheritFrom == "" {
			continue
		}
		s.children[r.InheritFrom] = append(s.children[r.InheritFrom], id)
	}
	for parent := range s.children {
		sort.Strings(s.children[parent])
	}
	return s
}

// Role returns the role with the given identifier.
func (s *Snapshot) Role(id string) (*Role, bool) {
	r, ok := s.roles[id]
	return r, ok
}

// Len returns the number of roles in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.roles)
}

// IDs returns all role identifiers in lexical order.
func (s *Snapshot) IDs() []string {
	ids := make([]string, 0, len(s.roles))
	for id := range s.roles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
