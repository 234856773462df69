package pipeline

import (
	"errors"
	"testing"
	"time"

	"regwatch/app/feed"
)

type fakeSeenRepo struct {
	entries map[string]time.Time
	isErr   error
	markErr error
}

func newFakeSeenRepo() *fakeSeenRepo {
	return &fakeSeenRepo{entries: make(map[string]time.Time)}
}

func (f *fakeSeenRepo) key(sourceID, entryID string) string {
	return sourceID + "\x00" + entryID
}

func (f *fakeSeenRepo) IsSeen(sourceID, entryID string) (bool, error) {
	if f.isErr != nil {
		return false, f.isErr
	}
	_, ok := f.entries[f.key(sourceID, entryID)]
	return ok, nil
}

func (f *fakeSeenRepo) MarkSeen(sourceID string, entryIDs []string, seenAt time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	for _, entryID := range entryIDs {
		f.entries[f.key(sourceID, entryID)] = seenAt
	}
	return nil
}

func (f *fakeSeenRepo) Evict(olderThan time.Time) (int64, error) {
	var evicted int64
	for key, seenAt := range f.entries {
		if seenAt.Before(olderThan) {
			delete(f.entries, key)
			evicted++
		}
	}
	return evicted, nil
}

func (f *fakeSeenRepo) Count() (int, error) {
	return len(f.entries), nil
}

func TestTrackerFilterNovel(t *testing.T) {
	repo := newFakeSeenRepo()
	tracker := NewTracker(repo, 30*24*time.Hour)

	entries := []feed.Entry{
		{SourceID: "rss-1", EntryID: "a"},
		{SourceID: "rss-1", EntryID: "b"},
	}

	novel, err := tracker.FilterNovel("rss-1", entries)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(novel) != 2 {
		t.Fatalf("expected 2 novel entries, got %d", len(novel))
	}

	// Filtering must not mark anything seen
	if count, _ := repo.Count(); count != 0 {
		t.Errorf("expected filtering to leave seen set empty, got %d entries", count)
	}

	if err := tracker.Commit("rss-1", []string{"a"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	novel, err = tracker.FilterNovel("rss-1", entries)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(novel) != 1 || novel[0].EntryID != "b" {
		t.Fatalf("expected only entry b to be novel, got %+v", novel)
	}
}

func TestTrackerFilterNovelPerSource(t *testing.T) {
	repo := newFakeSeenRepo()
	tracker := NewTracker(repo, 30*24*time.Hour)

	if err := tracker.Commit("rss-1", []string{"a"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// The same entry ID under a different source is still novel
	novel, err := tracker.FilterNovel("rss-2", []feed.Entry{{SourceID: "rss-2", EntryID: "a"}})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(novel) != 1 {
		t.Errorf("expected entry to be novel under a different source, got %d entries", len(novel))
	}
}

func TestTrackerFilterNovelError(t *testing.T) {
	repo := newFakeSeenRepo()
	repo.isErr = errors.New("database locked")
	tracker := NewTracker(repo, 30*24*time.Hour)

	_, err := tracker.FilterNovel("rss-1", []feed.Entry{{SourceID: "rss-1", EntryID: "a"}})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestTrackerCommitIdempotent(t *testing.T) {
	repo := newFakeSeenRepo()
	tracker := NewTracker(repo, 30*24*time.Hour)

	if err := tracker.Commit("rss-1", []string{"a", "b"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := tracker.Commit("rss-1", []string{"a", "b"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if count, _ := repo.Count(); count != 2 {
		t.Errorf("expected 2 seen entries after repeated commit, got %d", count)
	}
}

func TestTrackerEvictExpired(t *testing.T) {
	repo := newFakeSeenRepo()
	tracker := NewTracker(repo, 24*time.Hour)

	repo.entries[repo.key("rss-1", "old")] = time.Now().UTC().Add(-48 * time.Hour)
	repo.entries[repo.key("rss-1", "fresh")] = time.Now().UTC()

	evicted, err := tracker.EvictExpired()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if evicted != 1 {
		t.Errorf("expected 1 evicted entry, got %d", evicted)
	}

	seen, _ := repo.IsSeen("rss-1", "fresh")
	if !seen {
		t.Error("expected fresh entry to survive eviction")
	}
}
