package domain

import (
	"cmp"
	"slices"
	"strings"
)

// DefaultMinScore drops anything the fuzzy floor alone would not lift.
const DefaultMinScore = 0.3

// Tier is a named score bucket.
type Tier int

const (
	TierReject Tier = iota
	TierPartial
	TierGood
	TierVeryClose
	TierExact
)

// DisplayOrder is the fixed order tiers are shown in.
var DisplayOrder = []Tier{TierExact, TierVeryClose, TierGood, TierPartial}

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "Exact"
	case TierVeryClose:
		return "Very close"
	case TierGood:
		return "Good"
	case TierPartial:
		return "Partial"
	default:
		return "Reject"
	}
}

// Emoji decorates tier headings in replies and pages.
func (t Tier) Emoji() string {
	switch t {
	case TierExact:
		return "🎯"
	case TierVeryClose:
		return "✅"
	case TierGood:
		return "👍"
	case TierPartial:
		return "🔎"
	default:
		return ""
	}
}

// TierFor buckets score. Anything below minScore is rejected.
func TierFor(score, minScore float64) Tier {
	switch {
	case score < minScore || score <= 0:
		return TierReject
	case score >= ScoreExact:
		return TierExact
	case score >= ScoreAllTokens:
		return TierVeryClose
	case score >= ScoreMostTokens:
		return TierGood
	default:
		return TierPartial
	}
}

// ScoredItem is one (query, item) pair kept after filtering.
type ScoredItem struct {
	Item  CatalogItem
	Score float64
	Tier  Tier
}

// TierGroup holds the items of one tier, already ordered.
type TierGroup struct {
	Tier  Tier
	Items []ScoredItem
}

// Ranked is the outcome of a search, grouped by tier in display order.
// Empty tiers are omitted.
type Ranked struct {
	Groups []TierGroup
}

// Total returns the number of ranked items across tiers.
func (r Ranked) Total() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Items)
	}
	return n
}

// Empty reports whether nothing matched.
func (r Ranked) Empty() bool {
	return r.Total() == 0
}

// Flat returns every item in display order.
func (r Ranked) Flat() []ScoredItem {
	out := make([]ScoredItem, 0, r.Total())
	for _, g := range r.Groups {
		out = append(out, g.Items...)
	}
	return out
}

// Limit keeps the first n items in display order. n <= 0 keeps everything.
func (r Ranked) Limit(n int) Ranked {
	if n <= 0 || r.Total() <= n {
		return r
	}
	out := Ranked{}
	for _, g := range r.Groups {
		if n == 0 {
			break
		}
		items := g.Items
		if len(items) > n {
			items = items[:n]
		}
		n -= len(items)
		out.Groups = append(out.Groups, TierGroup{Tier: g.Tier, Items: items})
	}
	return out
}

// Filter keeps the items for which keep returns true, preserving order.
func (r Ranked) Filter(keep func(ScoredItem) bool) Ranked {
	out := Ranked{}
	for _, g := range r.Groups {
		var items []ScoredItem
		for _, it := range g.Items {
			if keep(it) {
				items = append(items, it)
			}
		}
		if len(items) > 0 {
			out.Groups = append(out.Groups, TierGroup{Tier: g.Tier, Items: items})
		}
	}
	return out
}

// Rank scores every item against query, drops those below minScore and
// groups the rest by tier. Within a tier: score descending, then category,
// then label.
func Rank(query SearchQuery, items []CatalogItem, minScore float64) Ranked {
	if query.IsEmpty() || len(items) == 0 {
		return Ranked{}
	}

	byTier := make(map[Tier][]ScoredItem, len(DisplayOrder))
	for _, item := range items {
		score := Score(query, item)
		tier := TierFor(score, minScore)
		if tier == TierReject {
			continue
		}
		byTier[tier] = append(byTier[tier], ScoredItem{Item: item, Score: score, Tier: tier})
	}

	var out Ranked
	for _, tier := range DisplayOrder {
		group := byTier[tier]
		if len(group) == 0 {
			continue
		}
		slices.SortStableFunc(group, compareScored)
		out.Groups = append(out.Groups, TierGroup{Tier: tier, Items: group})
	}
	return out
}

func compareScored(a, b ScoredItem) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := compareText(a.Item.Category, b.Item.Category); c != 0 {
		return c
	}
	return compareText(a.Item.Label, b.Item.Label)
}

// compareText orders case-insensitively, falling back to byte order so the
// result is total.
func compareText(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
