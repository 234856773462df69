package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"regwatch/app/catalog"
)

var _ Fetcher = (*SourceFetcher)(nil)

// SourceFetcher retrieves the entries a source currently exposes. Feed
// sources are parsed as syndication documents, channel sources are scraped
// from the public Telegram preview page.
type SourceFetcher struct {
	httpClient       *http.Client
	contentExtractor *ContentExtractor
	userAgent        string
	timeout          time.Duration
	extractContent   bool
}

func NewSourceFetcher(httpClient *http.Client, contentExtractor *ContentExtractor, userAgent string, timeout time.Duration, extractContent bool) *SourceFetcher {
	return &SourceFetcher{
		httpClient:       httpClient,
		contentExtractor: contentExtractor,
		userAgent:        userAgent,
		timeout:          timeout,
		extractContent:   extractContent,
	}
}

func (f *SourceFetcher) Fetch(ctx context.Context, source catalog.Source) ([]Entry, error) {
	data, err := f.get(ctx, fetchURL(source))
	if err != nil {
		return nil, &FetchError{SourceID: source.ID, Err: err}
	}

	var entries []Entry
	switch source.Kind {
	case catalog.SourceKindChannel:
		entries, err = parseChannelPage(source.ID, data)
	default:
		entries, err = parseFeedDocument(source.ID, data)
	}
	if err != nil {
		return nil, &FetchError{SourceID: source.ID, Err: err}
	}

	entries = Normalize(entries, time.Now().UTC())

	if f.extractContent {
		f.fillEmptyBodies(ctx, entries)
	}

	return entries, nil
}

// fillEmptyBodies retrieves the linked page for entries whose feed body is
// empty, so the classifier sees real content. Extraction failures leave the
// body empty rather than failing the fetch.
func (f *SourceFetcher) fillEmptyBodies(ctx context.Context, entries []Entry) {
	if f.contentExtractor == nil {
		return
	}

	for i := range entries {
		if entries[i].Body != "" || entries[i].Link == "" {
			continue
		}

		data, err := f.get(ctx, entries[i].Link)
		if err != nil {
			slog.Debug("Failed to fetch page for content extraction", "link", entries[i].Link, "error", err)
			continue
		}

		content, err := f.contentExtractor.Run(data)
		if err != nil {
			slog.Debug("Content extraction failed", "link", entries[i].Link, "error", err)
			continue
		}

		entries[i].Body = content
	}
}

func (f *SourceFetcher) get(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
