package domain

import (
	"sort"

	"github.com/smallbiznis/territorial/internal/config"
)

// TieBreaker orders two matches that share the top effective priority. It
// reports whether a should win over b.
type TieBreaker func(a, b Match) bool

func LowestID(a, b Match) bool {
	return a.TerritoryID < b.TerritoryID
}

func Oldest(a, b Match) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.TerritoryID < b.TerritoryID
}

func Newest(a, b Match) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.TerritoryID > b.TerritoryID
}

func ByCode(a, b Match) bool {
	if a.Code != b.Code {
		return a.Code < b.Code
	}
	return a.TerritoryID < b.TerritoryID
}

// TieBreakerFor maps a configured policy name; unknown names fall back to
// LowestID.
func TieBreakerFor(policy string) TieBreaker {
	switch policy {
	case config.TieBreakOldest:
		return Oldest
	case config.TieBreakNewest:
		return Newest
	case config.TieBreakCode:
		return ByCode
	default:
		return LowestID
	}
}

// Rank sorts matches best first: higher effective priority, then the tie
// breaker.
func Rank(matches []Match, tieBreak TieBreaker) {
	if tieBreak == nil {
		tieBreak = LowestID
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].EffectivePriority != matches[j].EffectivePriority {
			return matches[i].EffectivePriority > matches[j].EffectivePriority
		}
		return tieBreak(matches[i], matches[j])
	})
}
