package database

import (
	"time"
)

// SeenRepository is the persisted per-source seen set. Entries are written
// only by the novelty tracker's commit step, never inline during fetching.
type SeenRepository interface {
	IsSeen(sourceID, entryID string) (bool, error)
	MarkSeen(sourceID string, entryIDs []string, seenAt time.Time) error
	Evict(olderThan time.Time) (int64, error)
	Count() (int, error)
}

type RecipientRepository interface {
	// Register is idempotent: re-registering an existing chat is a no-op.
	// Returns true when the recipient was newly created.
	Register(chatID int64, title string, authorized bool) (bool, error)
	Authorize(chatID int64) (bool, error)
	ListAuthorized() ([]int64, error)
	ListAll() ([]Recipient, error)
	Count() (int, error)
}

type CycleRepository interface {
	AddCycle(rec CycleRecord) (int64, error)
	AddDeliveryFailure(failure DeliveryFailure) error
	RecentCycles(limit int) ([]CycleRecord, error)
	GetTotals() (Totals, error)
	LastCycle() (*CycleRecord, error)
}
