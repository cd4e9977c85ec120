package hierarchy

import "testing"

func TestValidateCleanRole(t *testing.T) {
	snap := NewSnapshot([]Role{
		testRole("root", "", LevelSystem, perm("reports", 1, true, "read")),
		testRole("child", "root", LevelManagement),
	})

	child, _ := snap.Role("child")
	if got := snap.Validate(child); len(got) != 0 {
		t.Fatalf("expected no violations, got %+v", got)
	}
}

func TestValidateCircularDependency(t *testing.T) {
	snap := NewSnapshot([]Role{
		testRole("x", "y", LevelManagement),
		testRole("y", "x", LevelStaff),
	})

	x, _ := snap.Role("x")
	got := snap.Validate(x)
	found := false
	for _, v := range got {
		if v.Kind == ViolationCircularDependency && v.RoleID == "x" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected circular dependency violation, got %+v", got)
	}
}

func TestValidateUnknownParent(t *testing.T) {
	snap := NewSnapshot([]Role{
		testRole("root", "", LevelSystem),
	})

	candidate := testRole("orphan", "gone", LevelStaff)
	got := snap.Validate(&candidate)
	if len(got) != 1 {
		t.Fatalf("expected exactly one violation, got %+v", got)
	}
	if got[0].Kind != ViolationInvalidHierarchy || got[0].ParentID != "gone" {
		t.Fatalf("expected invalid hierarchy naming the missing parent, got %+v", got[0])
	}
}

func TestValidateLevelMonotonicity(t *testing.T) {
	snap := NewSnapshot([]Role{
		testRole("A", "", LevelManagement),
		testRole("B", "A", LevelExecutive), // more senior than its parent
	})

	b, _ := snap.Role("B")
	got := snap.Validate(b)
	if len(got) != 1 {
		t.Fatalf("expected exactly one violation, got %+v", got)
	}
	v := got[0]
	if v.Kind != ViolationInvalidHierarchy || v.RoleID != "B" || v.ParentID != "A" {
		t.Fatalf("expected invalid hierarchy B under A, got %+v", v)
	}
}

func TestValidateEqualLevelInvalid(t *testing.T) {
	snap := NewSnapshot([]Role{
		testRole("A", "", LevelManagement),
		testRole("B", "A", LevelManagement),
	})

	b, _ := snap.Role("B")
	got := snap.Validate(b)
	if len(got) != 1 || got[0].Kind != ViolationInvalidHierarchy {
		t.Fatalf("equal level must be invalid, got %+v", got)
	}
}

func TestValidateCannotOverride(t *testing.T) {
	protected := perm("reports", 10, false, "read", "write")
	snap := NewSnapshot([]Role{
		testRole("A", "", LevelSystem, protected),
		testRole("B", "A", LevelManagement, perm("reports", 99, true, "read", "write", "delete")),
	})

	b, _ := snap.Role("B")
	got := snap.Validate(b)
	if len(got) != 1 {
		t.Fatalf("expected exactly one violation, got %+v", got)
	}
	v := got[0]
	if v.Kind != ViolationCannotOverride || v.RoleID != "B" || v.ParentID != "A" || v.Resource != "reports" {
		t.Fatalf("expected cannot-override on reports naming A, got %+v", v)
	}

	// The protected entry must also be absent from B's candidate pool.
	for _, entry := range snap.EffectivePermissions("B") {
		if entry.Inherited && entry.Resource == "reports" {
			t.Fatalf("non-overridable ancestor entry leaked into effective set: %+v", entry)
		}
	}
}

func TestValidateOverrideAcrossGrandparent(t *testing.T) {
	snap := NewSnapshot([]Role{
		testRole("root", "", LevelSystem, perm("audit", 5, false, "read")),
		testRole("mid", "root", LevelManagement),
		testRole("leaf", "mid", LevelStaff, perm("audit", 1, true, "read")),
	})

	leaf, _ := snap.Role("leaf")
	got := snap.Validate(leaf)
	if len(got) != 1 || got[0].ParentID != "root" {
		t.Fatalf("expected violation naming grandparent root, got %+v", got)
	}
}

func TestValidateReturnsAllViolations(t *testing.T) {
	snap := NewSnapshot([]Role{
		testRole("A", "", LevelManagement, perm("reports", 10, false, "read")),
		testRole("B", "A", LevelExecutive, perm("reports", 1, true, "read")),
	})

	b, _ := snap.Role("B")
	got := snap.Validate(b)
	kinds := map[ViolationKind]bool{}
	for _, v := range got {
		kinds[v.Kind] = true
	}
	if !kinds[ViolationInvalidHierarchy] || !kinds[ViolationCannotOverride] {
		t.Fatalf("expected both violations reported together, got %+v", got)
	}
}

func TestValidateCandidateReparentToDescendant(t *testing.T) {
	snap := NewSnapshot([]Role{
		testRole("root", "", LevelSystem),
		testRole("mid", "root", LevelManagement),
		testRole("leaf", "mid", LevelStaff),
	})

	// Editing root to inherit from its own descendant must be caught before
	// the edit persists.
	candidate := testRole("root", "leaf", LevelSystem)
	got := snap.Validate(&candidate)
	found := false
	for _, v := range got {
		if v.Kind == ViolationCircularDependency {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected circular dependency for reparent-to-descendant, got %+v", got)
	}
}
