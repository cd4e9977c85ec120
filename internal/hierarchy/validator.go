package hierarchy

import "fmt"

// ViolationKind identifies a structural or semantic hierarchy violation.
type ViolationKind string

// Violation kinds. MaxAssignmentsExceeded and ValidationRuleFailed are
// defined here so the assignment workflow shares one error shape; this
// engine never emits them because it has no assignment counts or
// environmental context.
const (
	ViolationCircularDependency ViolationKind = "circular_dependency"
	ViolationInvalidHierarchy   ViolationKind = "invalid_hierarchy"
	ViolationCannotOverride     ViolationKind = "cannot_override_permission"
	ViolationMaxAssignments     ViolationKind = "max_assignments_exceeded"
	ViolationRuleFailed         ViolationKind = "validation_rule_failed"
)

// Violation reports a single hierarchy check failure. Violations are data,
// not Go errors: a non-empty list blocks a persist but never aborts the
// process.
type Violation struct {
	Kind     ViolationKind `json:"kind"`
	RoleID   string        `json:"role_id"`
	ParentID string        `json:"parent_id,omitempty"`
	Resource string        `json:"resource,omitempty"`
	Message  string        `json:"message"`
}

// Validate runs every hierarchy check against the candidate role and
// returns all violations found; checks are independent and never
// short-circuit. The candidate may be a new role or an edited copy of a
// stored one; its ancestry is resolved against the snapshot.
func (s *Snapshot) Validate(role *Role) []Violation {
	if role == nil {
		return nil
	}
	var out []Violation

	if s.chainCycles(role.ID, role.InheritFrom) {
		out = append(out, Violation{
			Kind:    ViolationCircularDependency,
			RoleID:  role.ID,
			Message: fmt.Sprintf("role %q participates in a circular inheritance chain", role.ID),
		})
	}

	if role.InheritFrom != "" {
		if parent, ok := s.roles[role.InheritFrom]; !ok {
			out = append(out, Violation{
				Kind:     ViolationInvalidHierarchy,
				RoleID:   role.ID,
				ParentID: role.InheritFrom,
				Message:  fmt.Sprintf("role %q inherits from unknown role %q", role.ID, role.InheritFrom),
			})
		} else if role.Level <= parent.Level {
			out = append(out, Violation{
				Kind:     ViolationInvalidHierarchy,
				RoleID:   role.ID,
				ParentID: parent.ID,
				Message: fmt.Sprintf("role %q (level %s) must be strictly less senior than parent %q (level %s)",
					role.ID, role.Level, parent.ID, parent.Level),
			})
		}
	}

	out = append(out, s.overrideViolations(role)...)
	return out
}

// overrideViolations finds direct declarations that conflict with a
// non-overridable ancestor permission on the same resource.
func (s *Snapshot) overrideViolations(role *Role) []Violation {
	direct := make(map[string]bool, len(role.Permissions))
	for _, perm := range role.Permissions {
		if !perm.Inherited {
			direct[perm.Resource] = true
		}
	}
	if len(direct) == 0 {
		return nil
	}

	visited := map[string]bool{role.ID: true}
	var out []Violation
	for _, ancestor := range s.ancestorChain(role.InheritFrom, visited) {
		for _, perm := range ancestor.Permissions {
			if perm.CanOverride || !direct[perm.Resource] {
				continue
			}
			out = append(out, Violation{
				Kind:     ViolationCannotOverride,
				RoleID:   role.ID,
				ParentID: ancestor.ID,
				Resource: perm.Resource,
				Message: fmt.Sprintf("role %q may not declare a direct permission on %q: ancestor %q protects it",
					role.ID, perm.Resource, ancestor.ID),
			})
		}
	}
	return out
}
