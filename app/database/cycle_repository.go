package database

import (
	"database/sql"
	"fmt"
)

var _ CycleRepository = (*CycleRepo)(nil)

// CycleRepo persists the operational audit log of cycle outcomes
type CycleRepo struct {
	db *DB
}

func NewCycleRepo(db *DB) *CycleRepo {
	return &CycleRepo{db: db}
}

func (r *CycleRepo) AddCycle(rec CycleRecord) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO cycles (
			started_at, finished_at, sources_total, sources_failed,
			entries_found, entries_novel, classified, relevant, sent, failed, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.StartedAt.UTC(), rec.FinishedAt.UTC(), rec.SourcesTotal, rec.SourcesFailed,
		rec.EntriesFound, rec.EntriesNovel, rec.Classified, rec.Relevant,
		rec.Sent, rec.Failed, rec.Error)
	if err != nil {
		return 0, fmt.Errorf("failed to record cycle: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get cycle id: %w", err)
	}

	return id, nil
}

func (r *CycleRepo) AddDeliveryFailure(failure DeliveryFailure) error {
	_, err := r.db.Exec(`
		INSERT INTO delivery_failures (cycle_id, entry_id, chat_id, attempts, last_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, failure.CycleID, failure.EntryID, failure.ChatID, failure.Attempts,
		failure.LastError, failure.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record delivery failure: %w", err)
	}

	return nil
}

func (r *CycleRepo) RecentCycles(limit int) ([]CycleRecord, error) {
	rows, err := r.db.Query(`
		SELECT id, started_at, finished_at, sources_total, sources_failed,
		       entries_found, entries_novel, classified, relevant, sent, failed, error
		FROM cycles
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	defer rows.Close()

	var cycles []CycleRecord
	for rows.Next() {
		rec, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, rec)
	}

	return cycles, rows.Err()
}

func (r *CycleRepo) GetTotals() (Totals, error) {
	var totals Totals
	err := r.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(entries_found), 0), COALESCE(SUM(entries_novel), 0),
		       COALESCE(SUM(sent), 0), COALESCE(SUM(failed), 0)
		FROM cycles
	`).Scan(&totals.Cycles, &totals.EntriesFound, &totals.EntriesNovel, &totals.Sent, &totals.Failed)
	if err != nil {
		return Totals{}, fmt.Errorf("failed to get cycle totals: %w", err)
	}

	return totals, nil
}

func (r *CycleRepo) LastCycle() (*CycleRecord, error) {
	row := r.db.QueryRow(`
		SELECT id, started_at, finished_at, sources_total, sources_failed,
		       entries_found, entries_novel, classified, relevant, sent, failed, error
		FROM cycles
		ORDER BY started_at DESC
		LIMIT 1
	`)

	rec, err := scanCycle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCycle(row rowScanner) (CycleRecord, error) {
	var rec CycleRecord
	err := row.Scan(&rec.ID, &rec.StartedAt, &rec.FinishedAt, &rec.SourcesTotal,
		&rec.SourcesFailed, &rec.EntriesFound, &rec.EntriesNovel, &rec.Classified,
		&rec.Relevant, &rec.Sent, &rec.Failed, &rec.Error)
	if err == sql.ErrNoRows {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("failed to scan cycle: %w", err)
	}

	return rec, nil
}
