package material

import (
	"context"
	"strings"
	"testing"

	"github.com/MrSnakeDoc/studybot/internal/logger"
)

func intPtr(i int) *int { return &i }

func TestMapperMap(t *testing.T) {
	file := File{
		Bot: "@Material_eduhubkmrbot",
		Categories: []Category{
			{
				Title: "Biology",
				Price: 49,
				Items: []Item{
					{Label: "MTG Biology Objective NCERT", Key: "mtg_bio"},
					{Label: "Trueman", Key: "trueman", Price: intPtr(0)},
					{Label: "", Key: "nolabel"},
					{Label: "No key"},
				},
			},
		},
	}

	snap, issues, err := NewMapper("").Map(file)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}

	if len(snap.Items) != 2 {
		t.Fatalf("Map() returned %d items, want 2", len(snap.Items))
	}
	if len(issues) != 2 {
		t.Errorf("Map() reported %d issues, want 2", len(issues))
	}

	mtg := snap.Items[0]
	if mtg.DeepLink != "https://t.me/Material_eduhubkmrbot?start=mtg_bio" {
		t.Errorf("DeepLink = %q", mtg.DeepLink)
	}
	if mtg.Price != 49 || !mtg.Gated() {
		t.Errorf("category price not inherited: %+v", mtg)
	}
	if snap.Items[1].Price != 0 {
		t.Errorf("item override ignored: %+v", snap.Items[1])
	}
	if snap.Resources.Footer != DefaultFooter {
		t.Errorf("Footer = %q, want default", snap.Resources.Footer)
	}
}

func TestMapperBotOverride(t *testing.T) {
	file := File{
		Bot:        "FileBot",
		Categories: []Category{{Title: "Physics", Items: []Item{{Label: "HC Verma", Key: "hcv"}}}},
	}

	snap, _, err := NewMapper("@EnvBot").Map(file)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if !strings.Contains(snap.Items[0].DeepLink, "t.me/EnvBot?") {
		t.Errorf("DeepLink = %q, want the env bot", snap.Items[0].DeepLink)
	}
}

func TestMapperErrors(t *testing.T) {
	tests := []struct {
		name string
		file File
	}{
		{
			name: "no bot",
			file: File{Categories: []Category{{Title: "X", Items: []Item{{Label: "a", Key: "a"}}}}},
		},
		{
			name: "empty catalog",
			file: File{Bot: "bot"},
		},
		{
			name: "duplicate key",
			file: File{Bot: "bot", Categories: []Category{
				{Title: "A", Items: []Item{{Label: "one", Key: "k"}}},
				{Title: "B", Items: []Item{{Label: "two", Key: "k"}}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := NewMapper("").Map(tt.file); err == nil {
				t.Error("Map() should return an error")
			}
		})
	}
}

func TestSourceLoad(t *testing.T) {
	src := NewSource(writeFile(t, "catalog.yaml", sampleYAML), "", logger.New("error", false))

	snap, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Items) != 2 {
		t.Errorf("Load() = %d items, want 2", len(snap.Items))
	}
	if snap.Resources.Guide.Title != "YouTube Guide" {
		t.Errorf("Guide = %+v", snap.Resources.Guide)
	}
}
