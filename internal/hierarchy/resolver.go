package hierarchy

// EffectivePermissions resolves the full permission set of a role: ancestor
// contributions collected most senior first, the role's own declarations
// last, then one winner per resource by priority.
//
// Ancestor entries with CanOverride=false are not propagated; their
// enforcement is a validation concern (see Validate). A role whose chain
// cycles resolves to an empty set, callers wanting a diagnosis run HasCycle
// or Validate first. The function is total and never panics.
func (s *Snapshot) EffectivePermissions(id string) []PermissionEntry {
	role, ok := s.roles[id]
	if !ok || s.HasCycle(id) {
		return nil
	}

	ancestors := s.Ancestors(id)
	pool := make([]PermissionEntry, 0, len(role.Permissions)+len(ancestors)*2)
	for i := len(ancestors) - 1; i >= 0; i-- {
		ancestor := ancestors[i]
		for _, perm := range ancestor.Permissions {
			if !perm.CanOverride {
				continue
			}
			perm.Inherited = true
			perm.InheritedFrom = ancestor.ID
			pool = append(pool, perm)
		}
	}
	for _, perm := range role.Permissions {
		perm.Inherited = false
		perm.InheritedFrom = ""
		pool = append(pool, perm)
	}

	return resolveConflicts(pool)
}

// resolveConflicts keeps a single entry per resource: highest priority wins,
// ties keep the earliest candidate. Inherited candidates precede direct ones
// in the pool, so an inherited entry wins a tie against a direct entry of
// equal priority. That ordering is load-bearing compatibility behavior, do
// not flip it to prefer direct declarations.
func resolveConflicts(pool []PermissionEntry) []PermissionEntry {
	if len(pool) == 0 {
		return nil
	}
	winner := make(map[string]int, len(pool))
	order := make([]string, 0, len(pool))
	for i, perm := range pool {
		at, seen := winner[perm.Resource]
		if !seen {
			winner[perm.Resource] = i
			order = append(order, perm.Resource)
			continue
		}
		if perm.Priority > pool[at].Priority {
			winner[perm.Resource] = i
		}
	}
	out := make([]PermissionEntry, 0, len(order))
	for _, resource := range order {
		out = append(out, pool[winner[resource]])
	}
	return out
}
