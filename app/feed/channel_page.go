package feed

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"regwatch/app/catalog"
)

const channelTitleLimit = 100

// fetchURL rewrites channel addresses to the public preview page
// (t.me/s/<name>), which lists recent messages without bot membership.
// Feed addresses pass through unchanged.
func fetchURL(source catalog.Source) string {
	if source.Kind != catalog.SourceKindChannel {
		return source.Address
	}
	if strings.Contains(source.Address, "t.me/s/") {
		return source.Address
	}
	return strings.Replace(source.Address, "t.me/", "t.me/s/", 1)
}

// parseChannelPage extracts messages from a Telegram channel preview page.
// The message permalink is the stable entry key, the message text doubles as
// body and (truncated) title.
func parseChannelPage(sourceID string, data []byte) ([]Entry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse channel page: %w", err)
	}

	var entries []Entry
	doc.Find("div.tgme_widget_message").Each(func(_ int, message *goquery.Selection) {
		link, ok := message.Find("a.tgme_widget_message_date").Attr("href")
		if !ok || link == "" {
			return
		}

		text := strings.TrimSpace(message.Find("div.tgme_widget_message_text").Text())
		if text == "" {
			return
		}

		entry := Entry{
			SourceID: sourceID,
			EntryID:  link,
			Title:    truncateRunes(text, channelTitleLimit),
			Body:     text,
			Link:     link,
		}

		if datetime, ok := message.Find("time").Attr("datetime"); ok {
			if published, err := time.Parse(time.RFC3339, datetime); err == nil {
				entry.PublishedAt = published.UTC()
			}
		}

		entries = append(entries, entry)
	})

	if len(entries) == 0 {
		return nil, fmt.Errorf("no messages found in channel page")
	}

	return entries, nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
