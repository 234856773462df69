package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ SeenRepository = (*SeenRepo)(nil)

// SeenRepo handles database operations for the per-source seen set
type SeenRepo struct {
	db *DB
}

func NewSeenRepo(db *DB) *SeenRepo {
	return &SeenRepo{db: db}
}

func (r *SeenRepo) IsSeen(sourceID, entryID string) (bool, error) {
	var one int
	err := r.db.QueryRow(`
		SELECT 1 FROM seen_entries WHERE source_id = ? AND entry_id = ? LIMIT 1
	`, sourceID, entryID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check seen entry: %w", err)
	}

	return true, nil
}

// MarkSeen commits a set of entry IDs for one source in a single transaction,
// keeping the per-source commit atomic.
func (r *SeenRepo) MarkSeen(sourceID string, entryIDs []string, seenAt time.Time) error {
	if len(entryIDs) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO seen_entries (source_id, entry_id, seen_at)
		VALUES (?, ?, ?)
		ON CONFLICT (source_id, entry_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, entryID := range entryIDs {
		if _, err := stmt.Exec(sourceID, entryID, seenAt.UTC()); err != nil {
			return fmt.Errorf("failed to mark entry seen: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seen entries: %w", err)
	}

	return nil
}

// Evict removes entries older than the retention horizon. Eviction is by age,
// never by count, so an entry is never un-marked while its source could still
// be serving it.
func (r *SeenRepo) Evict(olderThan time.Time) (int64, error) {
	result, err := r.db.Exec(`
		DELETE FROM seen_entries WHERE seen_at < ?
	`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to evict seen entries: %w", err)
	}

	evicted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count evicted entries: %w", err)
	}

	return evicted, nil
}

func (r *SeenRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM seen_entries`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count seen entries: %w", err)
	}

	return count, nil
}
