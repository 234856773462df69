package pipeline

import (
	"sort"

	"regwatch/app/feed"
)

// MakeBatches merges novel entries across sources into classification
// batches: sorted by publication time (entry ID breaks ties), then chunked to
// at most maxSize entries. Bounding the batch size bounds the cost of each
// classification call and the blast radius of a failed one.
func MakeBatches(entries []feed.Entry, maxSize int) [][]feed.Entry {
	if len(entries) == 0 {
		return nil
	}
	if maxSize < 1 {
		maxSize = 1
	}

	sorted := make([]feed.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PublishedAt.Equal(sorted[j].PublishedAt) {
			return sorted[i].EntryID < sorted[j].EntryID
		}
		return sorted[i].PublishedAt.Before(sorted[j].PublishedAt)
	})

	batches := make([][]feed.Entry, 0, (len(sorted)+maxSize-1)/maxSize)
	for start := 0; start < len(sorted); start += maxSize {
		end := start + maxSize
		if end > len(sorted) {
			end = len(sorted)
		}
		batches = append(batches, sorted[start:end])
	}

	return batches
}
