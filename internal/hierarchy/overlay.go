package hierarchy

import (
	"sort"
	"time"
)

// DecisionContext carries the request-time facts contextual rules match
// against. Condition strings on rules are opaque to the engine and are not
// evaluated here.
type DecisionContext struct {
	At       time.Time `json:"at"`
	Location string    `json:"location,omitempty"`
}

// Decide answers an authorization check against the snapshot. It is a total
// function: an unknown, inactive or cyclic role denies.
func (s *Snapshot) Decide(id, resource, action string, dc DecisionContext) bool {
	role, ok := s.roles[id]
	if !ok {
		return false
	}
	return Decide(role, s.EffectivePermissions(id), resource, action, dc)
}

// Decide overlays the role's active contextual rules on the supplied
// effective permission set. Grants apply in ascending rule priority, then
// denials in descending priority; a matching denial always wins over any
// grant, static or contextual. Overlays are evaluation-scoped and never
// persisted.
func Decide(role *Role, effective []PermissionEntry, resource, action string, dc DecisionContext) bool {
	if role == nil || !role.IsActive {
		return false
	}

	allowed := false
	for _, perm := range effective {
		if perm.Allows(resource, action) {
			allowed = true
			break
		}
	}

	active := activeRules(role.ContextualRules, dc)
	if len(active) == 0 {
		return allowed
	}

	sort.SliceStable(active, func(i, j int) bool { return active[i].Priority < active[j].Priority })
	for _, rule := range active {
		for _, perm := range rule.Additional {
			if perm.Allows(resource, action) {
				allowed = true
			}
		}
	}

	sort.SliceStable(active, func(i, j int) bool { return active[i].Priority > active[j].Priority })
	for _, rule := range active {
		for _, perm := range rule.Denied {
			if perm.Allows(resource, action) {
				allowed = false
			}
		}
	}
	return allowed
}

func activeRules(rules []ContextualRule, dc DecisionContext) []ContextualRule {
	var active []ContextualRule
	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		if !rule.TimeRestriction.Matches(dc.At) {
			continue
		}
		if !matchesLocation(rule.Locations, dc.Location) {
			continue
		}
		active = append(active, rule)
	}
	return active
}

func matchesLocation(locations []string, location string) bool {
	if len(locations) == 0 {
		return true
	}
	for _, l := range locations {
		if l == location {
			return true
		}
	}
	return false
}

// Matches reports whether the instant falls inside the restriction. A nil
// restriction matches always. An unparseable clock bound makes the rule
// inert rather than guessing.
func (t *TimeRestriction) Matches(at time.Time) bool {
	if t == nil {
		return true
	}
	if t.Timezone != "" {
		if loc, err := time.LoadLocation(t.Timezone); err == nil {
			at = at.In(loc)
		}
	}

	if t.StartDate != nil && at.Before(*t.StartDate) {
		return false
	}
	if t.EndDate != nil && at.After(*t.EndDate) {
		return false
	}

	if len(t.Weekdays) > 0 {
		// ISO 8601 numbering: Monday=1 .. Sunday=7.
		weekday := int(at.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		found := false
		for _, wd := range t.Weekdays {
			if wd == weekday {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if t.StartTime != "" || t.EndTime != "" {
		minutes := at.Hour()*60 + at.Minute()
		start, okStart := parseClock(t.StartTime)
		end, okEnd := parseClock(t.EndTime)
		if !okStart || !okEnd {
			return false
		}
		if minutes < start || minutes > end {
			return false
		}
	}
	return true
}

// parseClock parses "15:04" into minutes since midnight.
func parseClock(value string) (int, bool) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, false
	}
	return parsed.Hour()*60 + parsed.Minute(), true
}
