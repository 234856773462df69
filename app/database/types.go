package database

import (
	"time"
)

type Recipient struct {
	ChatID       int64
	Title        string
	RegisteredAt time.Time
	Authorized   bool
}

type CycleRecord struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    time.Time
	SourcesTotal  int
	SourcesFailed int
	EntriesFound  int
	EntriesNovel  int
	Classified    int
	Relevant      int
	Sent          int
	Failed        int
	Error         string
}

type DeliveryFailure struct {
	ID        int64
	CycleID   int64
	EntryID   string
	ChatID    int64
	Attempts  int
	LastError string
	CreatedAt time.Time
}

// Totals aggregates cycle outcomes for the ops surface.
type Totals struct {
	Cycles       int
	EntriesFound int
	EntriesNovel int
	Sent         int
	Failed       int
}
