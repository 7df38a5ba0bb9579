package search

import (
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/studybot/internal/domain"
	"github.com/MrSnakeDoc/studybot/internal/telegraph"
)

// PageExtras carries what the page shows besides the ranked items.
type PageExtras struct {
	Resources domain.Resources
	Locked    map[string]bool // item key -> link points at a checkout
}

// BuildPage renders the result page: header, one section per tier, then the
// static resources and the footer.
func BuildPage(query domain.SearchQuery, ranked domain.Ranked, links map[string]string, extras PageExtras) []telegraph.Node {
	nodes := []telegraph.Node{
		telegraph.El("h3", telegraph.Text(fmt.Sprintf("Results for: %q", strings.TrimSpace(query.Raw)))),
		telegraph.El("p", telegraph.Text(fmt.Sprintf("Found %d study materials:", ranked.Total()))),
	}

	for _, g := range ranked.Groups {
		nodes = append(nodes, telegraph.El("h4", telegraph.Text(g.Tier.Emoji()+" "+g.Tier.String())))

		list := make([]telegraph.Node, 0, len(g.Items))
		for _, it := range g.Items {
			list = append(list, entry(it.Item, links[it.Item.Key], extras.Locked[it.Item.Key]))
		}
		nodes = append(nodes, telegraph.El("ul", list...))
	}

	nodes = append(nodes, telegraph.El("hr"))
	nodes = append(nodes, resources(extras.Resources)...)
	return nodes
}

func entry(item domain.CatalogItem, url string, locked bool) telegraph.Node {
	label := item.Label
	if locked {
		label = "🔒 " + label
	}

	children := []telegraph.Node{telegraph.Text("• ")}
	if url != "" {
		children = append(children, telegraph.Link(url, telegraph.Text(label)))
	} else {
		children = append(children, telegraph.Text(label))
	}

	suffix := fmt.Sprintf(" (%s)", item.Category)
	if locked {
		suffix += fmt.Sprintf(" ₹%d", item.Price)
	}
	children = append(children, telegraph.Text(suffix))
	return telegraph.El("li", children...)
}

func resources(res domain.Resources) []telegraph.Node {
	var nodes []telegraph.Node

	if res.Guide.URL != "" || len(res.Links) > 0 {
		nodes = append(nodes, telegraph.El("h4", telegraph.Text("ℹ️ Resources & Instructions")))
	}
	if res.Guide.URL != "" {
		title := res.Guide.Title
		if title == "" {
			title = "Guide"
		}
		nodes = append(nodes, telegraph.El("p",
			telegraph.Text("📺 How to open link: "),
			telegraph.Link(res.Guide.URL, telegraph.Text(title)),
		))
	}
	if len(res.Links) > 0 {
		nodes = append(nodes, telegraph.El("p", telegraph.Text("📚 Join more recommended bots:")))
		items := make([]telegraph.Node, 0, len(res.Links))
		for _, l := range res.Links {
			li := []telegraph.Node{telegraph.Link(l.URL, telegraph.Text(l.Title))}
			if l.Note != "" {
				li = append(li, telegraph.Text(" - "+l.Note))
			}
			items = append(items, telegraph.El("li", li...))
		}
		nodes = append(nodes, telegraph.El("ul", items...))
	}

	if res.Footer != "" {
		nodes = append(nodes, telegraph.El("p", telegraph.El("i", telegraph.Text(res.Footer))))
	}
	return nodes
}

// PageTitle is the Telegraph title of a result page.
func PageTitle(query domain.SearchQuery) string {
	q := strings.TrimSpace(query.Raw)
	r := []rune(q)
	if len(r) > 50 {
		q = string(r[:50]) + "..."
	}
	return "Study Material: " + q
}
