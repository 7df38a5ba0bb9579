package domain

import (
	"testing"
)

func sampleCatalog() []CatalogItem {
	return []CatalogItem{
		{Category: "Biology", Label: "MTG Biology Objective NCERT", Key: "mtg_bio"},
		{Category: "Biology", Label: "Trueman Elementary Biology", Key: "trueman"},
		{Category: "Physics", Label: "HC Verma Solutions", Key: "hcv"},
		{Category: "Chemistry", Label: "MTG Chemistry Fingertips", Key: "mtg_chem"},
		{Category: "Botany", Label: "MTG Bio Botany Notes", Key: "mtg_bot"},
	}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		score    float64
		minScore float64
		want     Tier
	}{
		{score: 1.0, minScore: DefaultMinScore, want: TierExact},
		{score: 0.9, minScore: DefaultMinScore, want: TierVeryClose},
		{score: 0.8, minScore: DefaultMinScore, want: TierGood},
		{score: 0.6, minScore: DefaultMinScore, want: TierPartial},
		{score: 0.3, minScore: DefaultMinScore, want: TierPartial},
		{score: 0.3, minScore: 0.4, want: TierReject},
		{score: 0.0, minScore: 0.0, want: TierReject},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			if got := TierFor(tt.score, tt.minScore); got != tt.want {
				t.Errorf("TierFor(%v, %v) = %v, want %v", tt.score, tt.minScore, got, tt.want)
			}
		})
	}
}

func TestRankGroupsInDisplayOrder(t *testing.T) {
	ranked := Rank(ParseQuery("mtg bio"), sampleCatalog(), DefaultMinScore)

	if ranked.Empty() {
		t.Fatal("Rank() returned no results")
	}

	prev := TierExact + 1
	for _, g := range ranked.Groups {
		if g.Tier >= prev {
			t.Errorf("tier %v shown after %v", g.Tier, prev)
		}
		prev = g.Tier
		if len(g.Items) == 0 {
			t.Errorf("empty group %v should be omitted", g.Tier)
		}
	}

	// "mtg bio" is a literal substring of the botany item, so it leads.
	first := ranked.Groups[0]
	if first.Tier != TierExact || first.Items[0].Item.Key != "mtg_bot" {
		t.Errorf("first = %v %q, want Exact mtg_bot", first.Tier, first.Items[0].Item.Key)
	}

	var mtgBio *ScoredItem
	for _, it := range ranked.Flat() {
		if it.Item.Key == "mtg_bio" {
			mtgBio = &it
			break
		}
	}
	if mtgBio == nil || mtgBio.Tier != TierVeryClose || mtgBio.Score != ScoreAllTokens {
		t.Errorf("mtg_bio = %+v, want VeryClose 0.9", mtgBio)
	}
}

func TestRankTieBreak(t *testing.T) {
	items := []CatalogItem{
		{Category: "zoology", Label: "Notes B", Key: "z_b"},
		{Category: "Botany", Label: "notes b", Key: "b_b_lower"},
		{Category: "Botany", Label: "Notes A", Key: "b_a"},
		{Category: "botany", Label: "Notes B", Key: "b_b_upper"},
	}

	ranked := Rank(ParseQuery("notes"), items, DefaultMinScore)
	got := make([]string, 0, len(items))
	for _, it := range ranked.Flat() {
		got = append(got, it.Item.Key)
	}

	// case-insensitive first, byte order breaks the remaining tie
	want := []string{"b_a", "b_b_lower", "b_b_upper", "z_b"}
	if !slicesEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}

	// shuffled input gives the same output
	reversed := []CatalogItem{items[3], items[2], items[1], items[0]}
	got = got[:0]
	for _, it := range Rank(ParseQuery("notes"), reversed, DefaultMinScore).Flat() {
		got = append(got, it.Item.Key)
	}
	if !slicesEqual(got, want) {
		t.Errorf("order after shuffle = %v, want %v", got, want)
	}
}

func TestRankScoreDescendingWithinTier(t *testing.T) {
	items := []CatalogItem{
		{Category: "A", Label: "physics notes", Key: "some"},
		{Category: "B", Label: "physics organic notes chemistry", Key: "most"},
	}
	// "most" hits 4/5 tokens (Good), "some" hits 2/5 and falls to fuzzy.
	ranked := Rank(ParseQuery("physics organic notes chemistry zoology"), items, DefaultMinScore)
	flat := ranked.Flat()
	if len(flat) != 2 {
		t.Fatalf("got %d items, want 2", len(flat))
	}
	if flat[0].Item.Key != "most" {
		t.Errorf("first = %q, want most", flat[0].Item.Key)
	}
}

func TestRankEmpty(t *testing.T) {
	tests := []struct {
		name  string
		query string
		items []CatalogItem
	}{
		{name: "empty catalog", query: "mtg", items: nil},
		{name: "empty query", query: "  ", items: sampleCatalog()},
		{name: "no matches", query: "xqz", items: []CatalogItem{{Category: "abc", Label: "def"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked := Rank(ParseQuery(tt.query), tt.items, DefaultMinScore)
			if !ranked.Empty() || len(ranked.Groups) != 0 {
				t.Errorf("Rank() = %+v, want empty", ranked)
			}
		})
	}
}

func TestRankedLimitAndFilter(t *testing.T) {
	ranked := Rank(ParseQuery("mtg"), sampleCatalog(), DefaultMinScore)
	total := ranked.Total()
	if total < 3 {
		t.Fatalf("expected at least 3 matches, got %d", total)
	}

	limited := ranked.Limit(2)
	if limited.Total() != 2 {
		t.Errorf("Limit(2).Total() = %d", limited.Total())
	}
	if ranked.Limit(0).Total() != total {
		t.Error("Limit(0) should keep everything")
	}

	onlyBio := ranked.Filter(func(s ScoredItem) bool { return s.Item.Category == "Biology" })
	for _, it := range onlyBio.Flat() {
		if it.Item.Category != "Biology" {
			t.Errorf("Filter kept %q", it.Item.Category)
		}
	}
}
