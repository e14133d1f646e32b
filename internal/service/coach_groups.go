package service

import (
	"strings"

	appErr "github.com/xxxsen/coachrag/internal/pkg/errors"
)

const AllDietGroup = "all-diet"

// DefaultCoachGroups maps group names usable wherever a coach id is accepted.
var DefaultCoachGroups = map[string][]string{
	AllDietGroup: {
		"keto",
		"mediterranean",
		"vegan",
		"vegetarian",
		"paleo",
		"low-carb",
		"intermittent-fasting",
		"dash",
	},
}

type CoachGroups map[string][]string

// NewCoachGroups merges overrides on top of the defaults.
func NewCoachGroups(overrides map[string][]string) CoachGroups {
	groups := make(CoachGroups, len(DefaultCoachGroups)+len(overrides))
	for name, ids := range DefaultCoachGroups {
		groups[name] = ids
	}
	for name, ids := range overrides {
		groups[strings.ToLower(strings.TrimSpace(name))] = ids
	}
	return groups
}

// Expand replaces group names with their members and removes duplicates,
// keeping first-seen order.
func (g CoachGroups) Expand(values []string) ([]string, error) {
	var raw []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if members, ok := g[strings.ToLower(part)]; ok {
				raw = append(raw, members...)
				continue
			}
			raw = append(raw, part)
		}
	}
	out := normalizeCoachIDs(raw)
	if len(out) == 0 {
		return nil, appErr.ErrInvalidInput
	}
	return out, nil
}
