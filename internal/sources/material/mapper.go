package material

import (
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/studybot/internal/domain"
	"github.com/MrSnakeDoc/studybot/internal/index"
)

// DefaultFooter closes every result page when the file sets none.
const DefaultFooter = "Generated by Study Bot"

// Mapper converts catalog file entries to domain.CatalogItem values
type Mapper struct {
	bot string // overrides File.Bot when set
}

// NewMapper creates a new mapper instance. bot may be empty, in which case
// the file must name the bot.
func NewMapper(bot string) *Mapper {
	return &Mapper{bot: strings.TrimPrefix(bot, "@")}
}

// Issue is a non fatal problem found while mapping.
type Issue struct {
	Category string
	Index    int
	Reason   string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s[%d]: %s", i.Category, i.Index, i.Reason)
}

// Map converts a parsed file into a catalog snapshot. Items without key or
// label are skipped and reported; duplicate keys are an error because deep
// links would collide.
func (m *Mapper) Map(file File) (index.Snapshot, []Issue, error) {
	bot := m.bot
	if bot == "" {
		bot = strings.TrimPrefix(file.Bot, "@")
	}
	if bot == "" {
		return index.Snapshot{}, nil, fmt.Errorf("no bot username: set it in the catalog or the environment")
	}

	var (
		items  []domain.CatalogItem
		issues []Issue
		seen   = make(map[string]string)
	)

	for _, cat := range file.Categories {
		title := strings.TrimSpace(cat.Title)
		for i, it := range cat.Items {
			key := strings.TrimSpace(it.Key)
			label := strings.TrimSpace(it.Label)

			switch {
			case key == "":
				issues = append(issues, Issue{Category: title, Index: i, Reason: "missing key"})
				continue
			case label == "":
				issues = append(issues, Issue{Category: title, Index: i, Reason: "missing label"})
				continue
			}

			if prev, dup := seen[key]; dup {
				return index.Snapshot{}, issues, fmt.Errorf("duplicate key %q in %q and %q", key, prev, title)
			}
			seen[key] = title

			price := cat.Price
			if it.Price != nil {
				price = *it.Price
			}
			if price < 0 {
				issues = append(issues, Issue{Category: title, Index: i, Reason: "negative price, treated as free"})
				price = 0
			}

			items = append(items, domain.CatalogItem{
				Key:      key,
				DeepLink: domain.DeepLink(bot, key),
				Category: title,
				Label:    label,
				Price:    price,
			})
		}
	}

	if len(items) == 0 {
		return index.Snapshot{}, issues, fmt.Errorf("no valid items found in catalog")
	}

	return index.Snapshot{Items: items, Resources: mapResources(file.Resources)}, issues, nil
}

func mapResources(r Resources) domain.Resources {
	out := domain.Resources{
		Guide:  domain.Link(r.Guide),
		Footer: r.Footer,
	}
	if out.Footer == "" {
		out.Footer = DefaultFooter
	}
	for _, l := range r.Links {
		if l.URL == "" {
			continue
		}
		out.Links = append(out.Links, domain.Link(l))
	}
	return out
}
