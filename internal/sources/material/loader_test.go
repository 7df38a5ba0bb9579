package material

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `---
bot: Material_eduhubkmrbot
categories:
  - title: Biology
    price: 49
    items:
      - label: MTG Biology Objective NCERT
        key: mtg_bio
      - label: Trueman Elementary Biology
        key: trueman
        price: 0
resources:
  guide:
    title: YouTube Guide
    url: https://youtu.be/S912R5lMShI
  links:
    - title: "@EduhubKMR_bot"
      url: https://t.me/EduhubKMR_bot
      note: QuizBot
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return path
}

func TestLoaderLoad(t *testing.T) {
	loader := NewLoader(writeFile(t, "catalog.yaml", sampleYAML))
	file, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if file.Bot != "Material_eduhubkmrbot" {
		t.Errorf("Bot = %q", file.Bot)
	}
	if len(file.Categories) != 1 || len(file.Categories[0].Items) != 2 {
		t.Fatalf("Categories = %+v", file.Categories)
	}
	if file.Categories[0].Items[1].Price == nil || *file.Categories[0].Items[1].Price != 0 {
		t.Error("explicit zero price should be kept as an override")
	}
	if file.Resources.Guide.URL == "" || len(file.Resources.Links) != 1 {
		t.Errorf("Resources = %+v", file.Resources)
	}
}

func TestLoaderLoadLegacyJSON(t *testing.T) {
	legacy := `[{"title":"Physics","items":[{"label":"HC Verma","key":"hcv"}]}]`
	loader := NewLoader(writeFile(t, "material.json", legacy))

	file, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(file.Categories) != 1 || file.Categories[0].Items[0].Key != "hcv" {
		t.Errorf("Categories = %+v", file.Categories)
	}
}

func TestLoaderLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty file", content: ""},
		{name: "scalar root", content: "just a string"},
		{name: "broken yaml", content: "categories: [unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := NewLoader(writeFile(t, "catalog.yaml", tt.content))
			if _, err := loader.Load(); err == nil {
				t.Error("Load() should return an error")
			}
		})
	}
}

func TestLoaderLoadFileNotFound(t *testing.T) {
	loader := NewLoader("/nonexistent/path/catalog.yaml")
	_, err := loader.Load()
	if err == nil {
		t.Error("Load() with non-existent file should return error")
	}
}
