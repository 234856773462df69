package pipeline

import (
	"fmt"
	"time"

	"regwatch/app/database"
	"regwatch/app/feed"
)

// Tracker decides novelty against the persisted per-source seen set.
// FilterNovel never writes; Commit is the only mutation and is invoked by the
// cycle runner after an entry finished dispatch (or was classified
// irrelevant), so a crash mid-cycle re-fetches instead of losing entries.
type Tracker struct {
	seen    database.SeenRepository
	horizon time.Duration
}

func NewTracker(seen database.SeenRepository, horizon time.Duration) *Tracker {
	return &Tracker{seen: seen, horizon: horizon}
}

func (t *Tracker) FilterNovel(sourceID string, entries []feed.Entry) ([]feed.Entry, error) {
	novel := make([]feed.Entry, 0, len(entries))
	for _, entry := range entries {
		seen, err := t.seen.IsSeen(sourceID, entry.EntryID)
		if err != nil {
			return nil, fmt.Errorf("failed to check novelty: %w", err)
		}
		if !seen {
			novel = append(novel, entry)
		}
	}

	return novel, nil
}

func (t *Tracker) Commit(sourceID string, entryIDs []string) error {
	return t.seen.MarkSeen(sourceID, entryIDs, time.Now().UTC())
}

func (t *Tracker) EvictExpired() (int64, error) {
	return t.seen.Evict(time.Now().UTC().Add(-t.horizon))
}
