package hierarchy

import "testing"

func testRole(id, parent string, level Level, perms ...PermissionEntry) Role {
	return Role{
		ID:          id,
		Name:        id,
		InheritFrom: parent,
		Level:       level,
		Permissions: perms,
		IsActive:    true,
		Version:     1,
	}
}

func TestAncestorsNearestParentFirst(t *testing.T) {
	snap := NewSnapshot([]Role{
		testRole("system", "", LevelSystem),
		testRole("manager", "system", LevelManagement),
		testRole("clerk", "manager", LevelStaff),
	})

	ancestors := snap.Ancestors("clerk")
	if len(ancestors) != 2 {
		t.Fatalf("expected 2 ancestors got %d", len(ancestors))
	}
	if ancestors[0].ID != "manager" || ancestors[1].ID != "system" {
		t.Fatalf("expected [manager system] got [%s %s]", ancestors[0].ID, ancestors[1].ID)
	}
}

func TestAncestorsUnknownRole(t *testing.T) {
	snap := NewSnapshot([]Role{testRole("a", "", LevelSystem)})
	if got := snap.Ancestors("missing"); got != nil {
		t.Fatalf("expected nil ancestors for unknown role, got %v", got)
	}
}

func TestAncestorsTerminatesOnCycle(t *testing.T) {
	snap := NewSnapshot([]Role{
		testRole("x", "y", LevelManagement),
		testRole("y", "x", LevelSupervisor),
	})

	ancestors := snap.Ancestors("x")
	if len(ancestors) > snap.Len() {
		t.Fatalf("ancestor walk visited %d roles, more than the %d in the set", len(ancestors), snap.Len())
	}
}

func TestHasCycle(t *testing.T) {
	snap := NewSnapshot([]Role{
		testRole("x", "y", LevelManagement),
		testRole("y", "x", LevelSupervisor),
		testRole("root", "", LevelSystem),
		testRole("leaf", "root", LevelStaff),
	})

	if !snap.HasCycle("x") {
		t.Fatal("expected cycle on x")
	}
	if !snap.HasCycle("y") {
		t.Fatal("expected cycle on y")
	}
	if snap.HasCycle("leaf") {
		t.Fatal("leaf has a clean chain")
	}
	if snap.HasCycle("root") {
		t.Fatal("root has no parent")
	}
}

func TestHasCycleSelfParent(t *testing.T) {
	snap := NewSnapshot([]Role{testRole("selfish", "selfish", LevelStaff)})
	if !snap.HasCycle("selfish") {
		t.Fatal("self-referencing role must report a cycle")
	}
}

func TestHasCycleDanglingParent(t *testing.T) {
	snap := NewSnapshot([]Role{testRole("orphan", "gone", LevelStaff)})
	if snap.HasCycle("orphan") {
		t.Fatal("a dangling parent pointer is not a cycle")
	}
}

func TestDescendantsBreadthFirstNoDuplicates(t *testing.T) {
	snap := NewSnapshot([]Role{
		testRole("root", "", LevelSystem),
		testRole("a", "root", LevelManagement),
		testRole("b", "root", LevelManagement),
		testRole("grandchild", "a", LevelStaff),
	})

	descendants := snap.Descendants("root")
	if len(descendants) != 3 {
		t.Fatalf("expected 3 descendants got %d", len(descendants))
	}
	seen := map[string]int{}
	for _, d := range descendants {
		seen[d.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("descendant %s yielded %d times", id, n)
		}
	}
}

func TestDescendantsDerivedFromParentPointers(t *testing.T) {
	// The child index comes from InheritFrom, so a snapshot never reflects a
	// drifted denormalized child array.
	snap := NewSnapshot([]Role{
		testRole("root", "", LevelSystem),
		testRole("mid", "root", LevelManagement),
		testRole("leaf", "mid", LevelStaff),
	})

	mid := snap.Descendants("mid")
	if len(mid) != 1 || mid[0].ID != "leaf" {
		t.Fatalf("expected [leaf] got %v", mid)
	}
	if got := snap.Descendants("leaf"); len(got) != 0 {
		t.Fatalf("leaf has no descendants, got %d", len(got))
	}
}
