package hierarchy

// Ancestors returns the ancestor chain of the role, nearest parent first.
// A visited set stops traversal the moment an identifier repeats, so the
// walk terminates even on corrupt data; it does not report the cycle, use
// HasCycle for that.
func (s *Snapshot) Ancestors(id string) []*Role {
	role, ok := s.roles[id]
	if !ok {
		return nil
	}
	visited := map[string]bool{id: true}
	return s.ancestorChain(role.InheritFrom, visited)
}

// ancestorChain walks parent pointers starting at parentID. The visited set
// is shared with the caller so a candidate role not present in the snapshot
// can seed its own identifier.
func (s *Snapshot) ancestorChain(parentID string, visited map[string]bool) []*Role {
	var chain []*Role
	for parentID != "" {
		if visited[parentID] {
			break
		}
		visited[parentID] = true
		parent, ok := s.roles[parentID]
		if !ok {
			break
		}
		chain = append(chain, parent)
		parentID = parent.InheritFrom
	}
	return chain
}

// HasCycle reports whether the role's upward chain revisits an identifier
// before reaching a parentless role. Runs in O(depth) and terminates on any
// input.
func (s *Snapshot) HasCycle(id string) bool {
	role, ok := s.roles[id]
	if !ok {
		return false
	}
	return s.chainCycles(id, role.InheritFrom)
}

func (s *Snapshot) chainCycles(startID, parentID string) bool {
	visited := map[string]bool{startID: true}
	for parentID != "" {
		if visited[parentID] {
			return true
		}
		visited[parentID] = true
		parent, ok := s.roles[parentID]
		if !ok {
			return false
		}
		parentID = parent.InheritFrom
	}
	return false
}

// Descendants returns every role reachable through the derived child index,
// breadth first, each exactly once regardless of how many paths reach it.
func (s *Snapshot) Descendants(id string) []*Role {
	if _, ok := s.roles[id]; !ok {
		return nil
	}
	visited := map[string]bool{id: true}
	queue := append([]string(nil), s.children[id]...)
	var out []*Role
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if visited[next] {
			continue
		}
		visited[next] = true
		role, ok := s.roles[next]
		if !ok {
			continue
		}
		out = append(out, role)
		queue = append(queue, s.children[next]...)
	}
	return out
}
