package feed

import (
	"context"
	"fmt"
	"sort"
	"time"

	"regwatch/app/catalog"
)

// Entry is a single article or channel message observed from a source.
// Immutable once created.
type Entry struct {
	SourceID    string
	EntryID     string
	Title       string
	Body        string
	Link        string
	PublishedAt time.Time
}

// FetchError marks a per-source failure. It is isolated by the cycle runner:
// one failing source never aborts the cycle for the others.
type FetchError struct {
	SourceID string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.SourceID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Fetcher interface {
	Fetch(ctx context.Context, source catalog.Source) ([]Entry, error)
}

// Normalize orders entries by publication time regardless of the source's
// native ordering. Entries without a reliable timestamp are treated as just
// observed. Ties break on entry ID to keep the output deterministic.
func Normalize(entries []Entry, observedAt time.Time) []Entry {
	for i := range entries {
		if entries[i].PublishedAt.IsZero() {
			entries[i].PublishedAt = observedAt
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].PublishedAt.Equal(entries[j].PublishedAt) {
			return entries[i].EntryID < entries[j].EntryID
		}
		return entries[i].PublishedAt.Before(entries[j].PublishedAt)
	})

	return entries
}
