package database

import (
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestSeenRepo_MarkAndCheck(t *testing.T) {
	repo := NewSeenRepo(newTestDB(t))

	seen, err := repo.IsSeen("rss-1", "entry-a")
	if err != nil {
		t.Fatalf("IsSeen failed: %v", err)
	}
	if seen {
		t.Error("entry should not be seen before marking")
	}

	now := time.Now().UTC()
	if err := repo.MarkSeen("rss-1", []string{"entry-a", "entry-b"}, now); err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}

	seen, err = repo.IsSeen("rss-1", "entry-a")
	if err != nil {
		t.Fatalf("IsSeen failed: %v", err)
	}
	if !seen {
		t.Error("entry-a should be seen after marking")
	}

	// Same entry ID under a different source is independent
	seen, err = repo.IsSeen("rss-2", "entry-a")
	if err != nil {
		t.Fatalf("IsSeen failed: %v", err)
	}
	if seen {
		t.Error("entry-a should not be seen for a different source")
	}
}

func TestSeenRepo_MarkSeenIdempotent(t *testing.T) {
	repo := NewSeenRepo(newTestDB(t))

	now := time.Now().UTC()
	if err := repo.MarkSeen("rss-1", []string{"entry-a"}, now); err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}
	if err := repo.MarkSeen("rss-1", []string{"entry-a"}, now.Add(time.Hour)); err != nil {
		t.Fatalf("repeated MarkSeen failed: %v", err)
	}

	count, err := repo.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 seen entry after repeated marking, got %d", count)
	}
}

func TestSeenRepo_EvictByAge(t *testing.T) {
	repo := NewSeenRepo(newTestDB(t))

	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC()

	if err := repo.MarkSeen("rss-1", []string{"old-entry"}, old); err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}
	if err := repo.MarkSeen("rss-1", []string{"recent-entry"}, recent); err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}

	evicted, err := repo.Evict(time.Now().UTC().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("Evict failed: %v", err)
	}
	if evicted != 1 {
		t.Errorf("Expected 1 evicted entry, got %d", evicted)
	}

	seen, err := repo.IsSeen("rss-1", "recent-entry")
	if err != nil {
		t.Fatalf("IsSeen failed: %v", err)
	}
	if !seen {
		t.Error("recent entry must survive age-based eviction")
	}
}

func TestRecipientRepo_RegisterIdempotent(t *testing.T) {
	repo := NewRecipientRepo(newTestDB(t))

	created, err := repo.Register(100, "Compliance Group", true)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !created {
		t.Error("first registration should create the recipient")
	}

	created, err = repo.Register(100, "Compliance Group", true)
	if err != nil {
		t.Fatalf("repeated Register failed: %v", err)
	}
	if created {
		t.Error("re-registering an existing chat should be a no-op")
	}

	count, err := repo.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 recipient, got %d", count)
	}
}

func TestRecipientRepo_AuthorizationGating(t *testing.T) {
	repo := NewRecipientRepo(newTestDB(t))

	if _, err := repo.Register(100, "Approved", true); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := repo.Register(200, "Pending", false); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	authorized, err := repo.ListAuthorized()
	if err != nil {
		t.Fatalf("ListAuthorized failed: %v", err)
	}
	if len(authorized) != 1 || authorized[0] != 100 {
		t.Errorf("Expected only chat 100 authorized, got %v", authorized)
	}

	updated, err := repo.Authorize(200)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if !updated {
		t.Error("Authorize should update a pending recipient")
	}

	updated, err = repo.Authorize(200)
	if err != nil {
		t.Fatalf("repeated Authorize failed: %v", err)
	}
	if updated {
		t.Error("Authorize on an already-authorized recipient should be a no-op")
	}

	authorized, err = repo.ListAuthorized()
	if err != nil {
		t.Fatalf("ListAuthorized failed: %v", err)
	}
	if len(authorized) != 2 {
		t.Errorf("Expected 2 authorized recipients, got %d", len(authorized))
	}
}

func TestCycleRepo_RecordAndTotals(t *testing.T) {
	repo := NewCycleRepo(newTestDB(t))

	last, err := repo.LastCycle()
	if err != nil {
		t.Fatalf("LastCycle failed: %v", err)
	}
	if last != nil {
		t.Error("LastCycle should return nil before any cycle ran")
	}

	started := time.Now().UTC().Add(-time.Minute)
	cycleID, err := repo.AddCycle(CycleRecord{
		StartedAt:    started,
		FinishedAt:   time.Now().UTC(),
		SourcesTotal: 3,
		EntriesFound: 10,
		EntriesNovel: 4,
		Classified:   4,
		Relevant:     2,
		Sent:         4,
		Failed:       1,
	})
	if err != nil {
		t.Fatalf("AddCycle failed: %v", err)
	}
	if cycleID == 0 {
		t.Error("AddCycle should return a non-zero id")
	}

	err = repo.AddDeliveryFailure(DeliveryFailure{
		CycleID:   cycleID,
		EntryID:   "entry-a",
		ChatID:    100,
		Attempts:  3,
		LastError: "blocked by user",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("AddDeliveryFailure failed: %v", err)
	}

	totals, err := repo.GetTotals()
	if err != nil {
		t.Fatalf("GetTotals failed: %v", err)
	}
	if totals.Cycles != 1 || totals.EntriesNovel != 4 || totals.Sent != 4 || totals.Failed != 1 {
		t.Errorf("Unexpected totals: %+v", totals)
	}

	recent, err := repo.RecentCycles(10)
	if err != nil {
		t.Fatalf("RecentCycles failed: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("Expected 1 recent cycle, got %d", len(recent))
	}
	if recent[0].EntriesFound != 10 {
		t.Errorf("Expected 10 entries found, got %d", recent[0].EntriesFound)
	}
}
