package feed

import (
	"bytes"
	"cmp"
	"fmt"

	"github.com/mmcdole/gofeed"
)

// parseFeedDocument maps a syndication document (RSS/Atom/JSON feed) to
// entries. The GUID is the stable per-source key, falling back to the link
// for feeds that omit it.
func parseFeedDocument(sourceID string, data []byte) ([]Entry, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}

		entry := Entry{
			SourceID: sourceID,
			EntryID:  cmp.Or(item.GUID, item.Link),
			Title:    item.Title,
			Body:     cmp.Or(item.Content, item.Description),
			Link:     item.Link,
		}
		if entry.EntryID == "" {
			continue
		}

		if item.PublishedParsed != nil {
			entry.PublishedAt = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			entry.PublishedAt = item.UpdatedParsed.UTC()
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
