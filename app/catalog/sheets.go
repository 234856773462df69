package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var _ Client = (*SheetClient)(nil)

// SheetClient reads the source list and keyword rules from a Google
// spreadsheet: one range with source addresses, one with category/keyword
// rows.
type SheetClient struct {
	svc           *sheets.Service
	spreadsheetID string
	sourcesRange  string
	keywordsRange string
}

func NewSheetClient(ctx context.Context, apiKey, spreadsheetID, sourcesRange, keywordsRange string) (*SheetClient, error) {
	svc, err := sheets.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &SheetClient{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sourcesRange:  sourcesRange,
		keywordsRange: keywordsRange,
	}, nil
}

func (c *SheetClient) Load(ctx context.Context) (*Snapshot, error) {
	sources, err := c.loadSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}

	keywords, err := c.loadKeywords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load keywords: %w", err)
	}

	slog.Debug("Catalog loaded from spreadsheet", "sources", len(sources), "keyword_rules", len(keywords))

	return &Snapshot{
		Sources:  sources,
		Keywords: keywords,
		LoadedAt: time.Now().UTC(),
	}, nil
}

func (c *SheetClient) loadSources(ctx context.Context) ([]Source, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.sourcesRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read range %s: %w", c.sourcesRange, err)
	}

	var sources []Source
	for _, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		address, ok := row[0].(string)
		if !ok {
			continue
		}
		address = strings.TrimSpace(address)
		if !strings.Contains(strings.ToLower(address), "http") {
			continue
		}
		sources = append(sources, NewSource(address))
	}

	return sources, nil
}

func (c *SheetClient) loadKeywords(ctx context.Context) (Keywords, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.keywordsRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read range %s: %w", c.keywordsRange, err)
	}

	keywords := make(Keywords)
	// First row is the header
	for i, row := range resp.Values {
		if i == 0 || len(row) < 2 {
			continue
		}
		category, ok := row[0].(string)
		if !ok || strings.TrimSpace(category) == "" {
			continue
		}
		list, ok := row[1].(string)
		if !ok {
			continue
		}
		keywords[strings.TrimSpace(category)] = splitKeywords(list)
	}

	return keywords, nil
}

func splitKeywords(list string) []string {
	parts := strings.Split(list, ",")
	keywords := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			keywords = append(keywords, trimmed)
		}
	}
	return keywords
}
