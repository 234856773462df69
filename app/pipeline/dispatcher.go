package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"regwatch/app/feed"
)

// Sender is the notification transport boundary.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Dispatcher delivers notifications to every recipient independently. One
// recipient's failure never blocks the others, and a failed pair is retried a
// bounded number of times with backoff before it is recorded as a permanent
// failure for the cycle.
type Dispatcher struct {
	sender      Sender
	maxAttempts int
	backoff     time.Duration
}

func NewDispatcher(sender Sender, maxAttempts int, backoff time.Duration) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Dispatcher{
		sender:      sender,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, notifications []Notification, recipients []int64) []DeliveryRecord {
	var records []DeliveryRecord

	for _, notification := range notifications {
		text := FormatMessage(notification)

		for _, chatID := range recipients {
			record := d.deliver(ctx, notification.Entry, chatID, text)
			if record.Status == DeliveryFailed {
				slog.Error("Delivery failed permanently for this cycle",
					"entry_id", record.EntryID,
					"chat_id", record.ChatID,
					"attempts", record.Attempts,
					"error", record.LastError)
			}
			records = append(records, record)
		}
	}

	return records
}

func (d *Dispatcher) deliver(ctx context.Context, entry feed.Entry, chatID int64, text string) DeliveryRecord {
	record := DeliveryRecord{SourceID: entry.SourceID, EntryID: entry.EntryID, ChatID: chatID}

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		record.Attempts = attempt

		err := d.sender.Send(ctx, chatID, text)
		if err == nil {
			record.Status = DeliverySent
			return record
		}

		record.LastError = err.Error()
		slog.Warn("Delivery attempt failed",
			"entry_id", entry.EntryID,
			"chat_id", chatID,
			"attempt", attempt,
			"max_attempts", d.maxAttempts,
			"error", err)

		if attempt < d.maxAttempts && !sleepBackoff(ctx, d.backoff, attempt) {
			break
		}
	}

	record.Status = DeliveryFailed
	return record
}

// sleepBackoff waits base<<(attempt-1), capped at 30s. Returns false when the
// context was cancelled while waiting.
func sleepBackoff(ctx context.Context, base time.Duration, attempt int) bool {
	if base <= 0 {
		return true
	}

	delay := base << uint(attempt-1)
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}

	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

// FormatMessage renders the notification text delivered to recipients.
func FormatMessage(notification Notification) string {
	published := notification.Entry.PublishedAt.In(time.Local).Format("2006-01-02 15:04:05")

	return fmt.Sprintf("🔔 New Update\n\n📂 Category: %s\n📰 Title: %s\n🔗 Link: %s\n🕒 Published: %s",
		notification.Category,
		notification.Entry.Title,
		notification.Entry.Link,
		published)
}
