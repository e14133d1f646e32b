package model

import (
	"fmt"
	"strings"
)

type AccessTier string

const (
	AccessTierFree    AccessTier = "free"
	AccessTierPremium AccessTier = "premium"
	AccessTierPro     AccessTier = "pro"
)

var tierRank = map[AccessTier]int{
	AccessTierFree:    0,
	AccessTierPremium: 1,
	AccessTierPro:     2,
}

func ParseAccessTier(s string) (AccessTier, error) {
	tier := AccessTier(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tierRank[tier]; !ok {
		return "", fmt.Errorf("unknown access tier %q", s)
	}
	return tier, nil
}

func (t AccessTier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// TiersUpTo lists the tiers visible to a user entitled to t, lowest first.
func TiersUpTo(t AccessTier) []AccessTier {
	limit, ok := tierRank[t]
	if !ok {
		return nil
	}
	tiers := make([]AccessTier, 0, limit+1)
	for _, tier := range []AccessTier{AccessTierFree, AccessTierPremium, AccessTierPro} {
		if tierRank[tier] <= limit {
			tiers = append(tiers, tier)
		}
	}
	return tiers
}

type CoachAccessGrant struct {
	DocumentID string     `json:"document_id"`
	CoachID    string     `json:"coach_id"`
	AccessTier AccessTier `json:"access_tier"`
	Ctime      int64      `json:"ctime"`
	Mtime      int64      `json:"mtime"`
}
