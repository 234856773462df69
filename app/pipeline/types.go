package pipeline

import (
	"fmt"
	"time"

	"regwatch/app/classify"
	"regwatch/app/feed"
)

// Stage names the cycle state machine positions:
// Idle → Fetching → Filtering → Classifying → Dispatching → Committing → Idle.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageFetching    Stage = "fetching"
	StageFiltering   Stage = "filtering"
	StageClassifying Stage = "classifying"
	StageDispatching Stage = "dispatching"
	StageCommitting  Stage = "committing"
)

type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// DeliveryRecord is the per-cycle outcome for one (entry, recipient) pair.
type DeliveryRecord struct {
	SourceID  string
	EntryID   string
	ChatID    int64
	Status    DeliveryStatus
	Attempts  int
	LastError string
}

// entryKey identifies an entry the way the seen set does: entry IDs are only
// unique within their source.
type entryKey struct {
	sourceID string
	entryID  string
}

// Notification pairs a relevant entry with its category for delivery.
type Notification struct {
	Entry    feed.Entry
	Category classify.Category
}

// CycleError marks an unexpected failure outside the per-source/per-batch/
// per-recipient isolations. It aborts only the current cycle; commits already
// applied in that cycle stand.
type CycleError struct {
	Stage Stage
	Err   error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle failed during %s: %v", e.Stage, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}

type CycleStats struct {
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
}
