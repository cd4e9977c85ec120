package hierarchy

import (
	"testing"
	"time"
)

// Monday 2026-03-02 10:30 UTC.
var monMorning = time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

// Saturday 2026-03-07 22:15 UTC.
var satNight = time.Date(2026, 3, 7, 22, 15, 0, 0, time.UTC)

func TestDecideStaticGrant(t *testing.T) {
	snap := NewSnapshot([]Role{
		testRole("clerk", "", LevelStaff, perm("tickets", 1, true, "read")),
	})

	if !snap.Decide("clerk", "tickets", "read", DecisionContext{At: monMorning}) {
		t.Fatal("expected static grant to allow")
	}
	if snap.Decide("clerk", "tickets", "delete", DecisionContext{At: monMorning}) {
		t.Fatal("action not granted must deny")
	}
	if snap.Decide("clerk", "audits", "read", DecisionContext{At: monMorning}) {
		t.Fatal("resource not granted must deny")
	}
}

func TestDecideUnknownAndInactiveRoleDeny(t *testing.T) {
	inactive := testRole("ghost", "", LevelStaff, perm("tickets", 1, true, "read"))
	inactive.IsActive = false
	snap := NewSnapshot([]Role{inactive})

	if snap.Decide("nobody", "tickets", "read", DecisionContext{At: monMorning}) {
		t.Fatal("unknown role must deny")
	}
	if snap.Decide("ghost", "tickets", "read", DecisionContext{At: monMorning}) {
		t.Fatal("inactive role must deny")
	}
}

func TestDecideCyclicRoleDenies(t *testing.T) {
	snap := NewSnapshot([]Role{
		testRole("x", "y", LevelManagement, perm("tickets", 1, true, "read")),
		testRole("y", "x", LevelStaff),
	})

	if snap.Decide("x", "tickets", "read", DecisionContext{At: monMorning}) {
		t.Fatal("cyclic role must deny, not default-allow")
	}
}

func TestDecideContextualGrantInsideWindow(t *testing.T) {
	role := testRole("oncall", "", LevelStaff)
	role.ContextualRules = []ContextualRule{{
		IsActive: true,
		TimeRestriction: &TimeRestriction{
			StartTime: "09:00",
			EndTime:   "17:00",
			Weekdays:  []int{1, 2, 3, 4, 5},
		},
		Additional: []PermissionEntry{perm("incidents", 1, true, "acknowledge")},
		Priority:   1,
	}}
	snap := NewSnapshot([]Role{role})

	if !snap.Decide("oncall", "incidents", "acknowledge", DecisionContext{At: monMorning}) {
		t.Fatal("expected contextual grant during business hours")
	}
	if snap.Decide("oncall", "incidents", "acknowledge", DecisionContext{At: satNight}) {
		t.Fatal("outside the window the grant must not apply")
	}
}

func TestDecideDenialAlwaysWins(t *testing.T) {
	role := testRole("trader", "", LevelStaff, perm("orders", 5, true, "submit"))
	role.ContextualRules = []ContextualRule{
		{
			IsActive:   true,
			Additional: []PermissionEntry{perm("orders", 1, true, "submit")},
			Priority:   10,
		},
		{
			IsActive: true,
			Denied:   []PermissionEntry{perm("orders", 1, true, "submit")},
			Priority: 1,
		},
	}
	snap := NewSnapshot([]Role{role})

	// A matching denial overrides both the static and the contextual grant,
	// regardless of rule priority ordering.
	if snap.Decide("trader", "orders", "submit", DecisionContext{At: monMorning}) {
		t.Fatal("denial must win over every grant")
	}
}

func TestDecideLocationRestriction(t *testing.T) {
	role := testRole("warehouse", "", LevelStaff)
	role.ContextualRules = []ContextualRule{{
		IsActive:   true,
		Locations:  []string{"dc-berlin", "dc-hamburg"},
		Additional: []PermissionEntry{perm("stock", 1, true, "adjust")},
	}}
	snap := NewSnapshot([]Role{role})

	if !snap.Decide("warehouse", "stock", "adjust", DecisionContext{At: monMorning, Location: "dc-berlin"}) {
		t.Fatal("expected grant at listed location")
	}
	if snap.Decide("warehouse", "stock", "adjust", DecisionContext{At: monMorning, Location: "dc-oslo"}) {
		t.Fatal("unlisted location must not activate the rule")
	}
}

func TestDecideInactiveRuleIgnored(t *testing.T) {
	role := testRole("temp", "", LevelStaff)
	role.ContextualRules = []ContextualRule{{
		IsActive:   false,
		Additional: []PermissionEntry{perm("stock", 1, true, "adjust")},
	}}
	snap := NewSnapshot([]Role{role})

	if snap.Decide("temp", "stock", "adjust", DecisionContext{At: monMorning}) {
		t.Fatal("inactive rule must not grant")
	}
}

func TestTimeRestrictionDateRange(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC)
	tr := &TimeRestriction{StartDate: &start, EndDate: &end}

	if !tr.Matches(monMorning) {
		t.Fatal("instant inside the date range must match")
	}
	if tr.Matches(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatal("instant after the range must not match")
	}
}

func TestTimeRestrictionTimezone(t *testing.T) {
	// 22:15 UTC Saturday is 09:15 Sunday in Auckland (UTC+13 in March).
	tr := &TimeRestriction{
		StartTime: "09:00",
		EndTime:   "17:00",
		Weekdays:  []int{7},
		Timezone:  "Pacific/Auckland",
	}
	if !tr.Matches(satNight) {
		t.Fatal("expected match after timezone conversion")
	}

	utc := &TimeRestriction{StartTime: "09:00", EndTime: "17:00", Weekdays: []int{7}, Timezone: "UTC"}
	if utc.Matches(satNight) {
		t.Fatal("same instant in UTC is a Saturday night, must not match")
	}
}

func TestTimeRestrictionUnparseableClockIsInert(t *testing.T) {
	tr := &TimeRestriction{StartTime: "morning", EndTime: "17:00"}
	if tr.Matches(monMorning) {
		t.Fatal("unparseable clock bound must not match")
	}
}

func TestTimeRestrictionNilMatchesAlways(t *testing.T) {
	var tr *TimeRestriction
	if !tr.Matches(satNight) {
		t.Fatal("nil restriction matches always")
	}
}
