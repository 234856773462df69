package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"regwatch/app/catalog"
	"regwatch/app/classify"
	"regwatch/app/database"
	"regwatch/app/feed"
)

// Deps wires the pipeline components into the cycle runner.
type Deps struct {
	Catalog    *catalog.Cache
	Fetcher    feed.Fetcher
	Tracker    *Tracker
	Classifier classify.Classifier
	Recipients database.RecipientRepository
	Dispatcher *Dispatcher
	Cycles     database.CycleRepository

	BatchSize         int
	ClassifierRetries int
	ClassifierBackoff time.Duration
	FetchWorkers      int
	FetchDelay        time.Duration
}

// Runner executes one full monitoring cycle: catalog refresh, fetch, novelty
// filter, batch classification, dispatch, and seen-set commit. Per-source,
// per-batch, and per-recipient failures are isolated; only unexpected
// failures abort the cycle, and commits applied before the abort stand.
type Runner struct {
	deps  Deps
	stage atomic.Value
}

func NewRunner(deps Deps) *Runner {
	r := &Runner{deps: deps}
	r.stage.Store(StageIdle)
	return r
}

// Stage reports the stage the in-flight cycle is in, or StageIdle.
func (r *Runner) Stage() Stage {
	return r.stage.Load().(Stage)
}

func (r *Runner) setStage(stage Stage) {
	r.stage.Store(stage)
	slog.Debug("Cycle stage", "stage", stage)
}

func (r *Runner) Run(ctx context.Context) (*CycleStats, error) {
	stats := &CycleStats{StartedAt: time.Now().UTC()}
	defer r.setStage(StageIdle)

	r.setStage(StageFetching)

	// A catalog read failure degrades to the last good snapshot
	if err := r.deps.Catalog.Refresh(ctx); err != nil {
		slog.Warn("Catalog refresh failed, using last good snapshot", "error", err)
	}
	snapshot := r.deps.Catalog.Current()
	if snapshot == nil {
		return r.finish(stats, nil, &CycleError{Stage: StageFetching, Err: fmt.Errorf("no catalog snapshot available")})
	}

	// Registry snapshot is taken at cycle start: recipients registered
	// mid-cycle are picked up by the next cycle
	recipients, err := r.deps.Recipients.ListAuthorized()
	if err != nil {
		return r.finish(stats, nil, &CycleError{Stage: StageFetching, Err: fmt.Errorf("failed to list recipients: %w", err)})
	}

	stats.SourcesTotal = len(snapshot.Sources)
	fetched, fetchFailed := r.fetchAll(ctx, snapshot.Sources)
	stats.SourcesFailed = fetchFailed

	r.setStage(StageFiltering)
	var novel []feed.Entry
	for _, source := range snapshot.Sources {
		entries, ok := fetched[source.ID]
		if !ok {
			continue
		}
		stats.EntriesFound += len(entries)

		sourceNovel, err := r.deps.Tracker.FilterNovel(source.ID, entries)
		if err != nil {
			slog.Error("Novelty filtering failed, skipping source this cycle", "source", source.ID, "error", err)
			stats.SourcesFailed++
			continue
		}
		stats.EntriesNovel += len(sourceNovel)
		novel = append(novel, sourceNovel...)
	}

	// Shutdown is honored at batch boundaries only: the batch in flight runs
	// on a context that survives cancellation, so its entries finish
	// classification and dispatch and reach the commit step. Batches not yet
	// started stay uncommitted and are re-fetched next run.
	batchCtx := context.WithoutCancel(ctx)

	var failures []DeliveryRecord
	for _, batch := range MakeBatches(novel, r.deps.BatchSize) {
		if ctx.Err() != nil {
			break
		}

		r.setStage(StageClassifying)
		classifications, err := r.classifyWithRetry(batchCtx, batch, snapshot.Keywords)
		if err != nil {
			slog.Error("Batch classification failed after retries, deferring entries to next cycle",
				"batch_size", len(batch), "error", err)
			continue
		}
		stats.Classified += len(classifications)

		var notifications []Notification
		for i, classification := range classifications {
			if classification.Relevant() {
				notifications = append(notifications, Notification{
					Entry:    batch[i],
					Category: classification.Category,
				})
			}
		}
		stats.Relevant += len(notifications)

		r.setStage(StageDispatching)
		records := r.deps.Dispatcher.Dispatch(batchCtx, notifications, recipients)

		delivered := make(map[entryKey]bool, len(notifications))
		for _, record := range records {
			if record.Status == DeliverySent {
				stats.Sent++
				delivered[entryKey{record.SourceID, record.EntryID}] = true
			} else {
				stats.Failed++
				failures = append(failures, record)
			}
		}

		r.setStage(StageCommitting)
		r.commitBatch(batch, classifications, delivered, len(recipients))
	}

	r.setStage(StageCommitting)
	if evicted, err := r.deps.Tracker.EvictExpired(); err != nil {
		slog.Error("Seen-set eviction failed", "error", err)
	} else if evicted > 0 {
		slog.Info("Evicted expired seen entries", "count", evicted)
	}

	return r.finish(stats, failures, nil)
}

// commitBatch marks batch entries seen, atomically per source. An entry
// commits when it was classified irrelevant (processed, nothing to deliver),
// when at least one recipient received it, or when there were no recipients
// at all. An entry every recipient rejected stays uncommitted and is retried
// next cycle.
func (r *Runner) commitBatch(batch []feed.Entry, classifications []classify.Classification, delivered map[entryKey]bool, recipientCount int) {
	bySource := make(map[string][]string)
	for i, classification := range classifications {
		entry := batch[i]

		dispatched := !classification.Relevant() || recipientCount == 0 || delivered[entryKey{entry.SourceID, entry.EntryID}]
		if !dispatched {
			slog.Warn("Entry failed delivery to every recipient, deferring to next cycle",
				"source", entry.SourceID, "entry_id", entry.EntryID)
			continue
		}

		bySource[entry.SourceID] = append(bySource[entry.SourceID], entry.EntryID)
	}

	for sourceID, entryIDs := range bySource {
		if err := r.deps.Tracker.Commit(sourceID, entryIDs); err != nil {
			slog.Error("Seen-set commit failed, entries will be reprocessed next cycle",
				"source", sourceID, "count", len(entryIDs), "error", err)
		}
	}
}

// fetchAll retrieves all sources through a bounded worker pool, isolating
// per-source failures. A politeness delay spaces requests within a worker.
func (r *Runner) fetchAll(ctx context.Context, sources []catalog.Source) (map[string][]feed.Entry, int) {
	workers := r.deps.FetchWorkers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan catalog.Source)
	var mu sync.Mutex
	fetched := make(map[string][]feed.Entry, len(sources))
	failed := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for source := range jobs {
				if ctx.Err() != nil {
					// Skipped sources count as failed so the audit row adds up
					mu.Lock()
					failed++
					mu.Unlock()
					continue
				}

				entries, err := r.deps.Fetcher.Fetch(ctx, source)

				mu.Lock()
				if err != nil {
					slog.Error("Source fetch failed, skipping this cycle", "source", source.ID, "kind", source.Kind, "error", err)
					failed++
				} else {
					fetched[source.ID] = entries
				}
				mu.Unlock()

				if r.deps.FetchDelay > 0 {
					select {
					case <-ctx.Done():
					case <-time.After(r.deps.FetchDelay):
					}
				}
			}
		}()
	}

	for _, source := range sources {
		jobs <- source
	}
	close(jobs)
	wg.Wait()

	return fetched, failed
}

func (r *Runner) classifyWithRetry(ctx context.Context, batch []feed.Entry, hints catalog.Keywords) ([]classify.Classification, error) {
	retries := r.deps.ClassifierRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		classifications, err := r.deps.Classifier.Classify(ctx, batch, hints)
		if err == nil {
			return classifications, nil
		}
		lastErr = err

		slog.Warn("Classification attempt failed",
			"attempt", attempt, "max_attempts", retries, "batch_size", len(batch), "error", err)

		if attempt < retries && !sleepBackoff(ctx, r.deps.ClassifierBackoff, attempt) {
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// finish records the cycle outcome in the audit log and returns the stats.
func (r *Runner) finish(stats *CycleStats, failures []DeliveryRecord, cycleErr error) (*CycleStats, error) {
	stats.FinishedAt = time.Now().UTC()

	rec := database.CycleRecord{
		StartedAt:     stats.StartedAt,
		FinishedAt:    stats.FinishedAt,
		SourcesTotal:  stats.SourcesTotal,
		SourcesFailed: stats.SourcesFailed,
		EntriesFound:  stats.EntriesFound,
		EntriesNovel:  stats.EntriesNovel,
		Classified:    stats.Classified,
		Relevant:      stats.Relevant,
		Sent:          stats.Sent,
		Failed:        stats.Failed,
	}
	if cycleErr != nil {
		rec.Error = cycleErr.Error()
	}

	cycleID, err := r.deps.Cycles.AddCycle(rec)
	if err != nil {
		slog.Error("Failed to record cycle outcome", "error", err)
		return stats, cycleErr
	}

	for _, failure := range failures {
		err := r.deps.Cycles.AddDeliveryFailure(database.DeliveryFailure{
			CycleID:   cycleID,
			EntryID:   failure.EntryID,
			ChatID:    failure.ChatID,
			Attempts:  failure.Attempts,
			LastError: failure.LastError,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			slog.Error("Failed to record delivery failure", "entry_id", failure.EntryID, "error", err)
		}
	}

	return stats, cycleErr
}
