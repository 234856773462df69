package classify

import (
	"fmt"
	"sort"
	"strings"

	"regwatch/app/catalog"
	"regwatch/app/feed"
)

// BuildPrompt renders the batch classification request: the taxonomy, the
// configured keyword hints, and the numbered entries with bodies truncated to
// the service limit. The service must answer with a JSON array of category
// names, one per entry, in order.
func BuildPrompt(batch []feed.Entry, hints catalog.Keywords, truncateLimit int) string {
	var b strings.Builder

	names := make([]string, 0, len(Categories()))
	for _, category := range Categories() {
		names = append(names, string(category))
	}

	fmt.Fprintf(&b, "Categorize each of the following news entries into one of these categories:\n%s\n\n", strings.Join(names, ", "))
	b.WriteString("If an entry is not related to any category, respond with 'Irrelevant'.\n")

	if len(hints) > 0 {
		b.WriteString("\nKeyword hints per category:\n")
		categories := make([]string, 0, len(hints))
		for category := range hints {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		for _, category := range categories {
			fmt.Fprintf(&b, "- %s: %s\n", category, strings.Join(hints[category], ", "))
		}
	}

	for i, entry := range batch {
		fmt.Fprintf(&b, "\nEntry %d:\nTitle: %s\nContent: %s\n", i+1, entry.Title, truncate(entry.Body, truncateLimit))
	}

	b.WriteString("\nRespond with a JSON array where each element is the category name or 'Irrelevant' for each entry in order.\n")
	b.WriteString(`Example response: ["License", "Irrelevant", "AML/CFT"]`)

	return b.String()
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
