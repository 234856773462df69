package database

import (
	"fmt"
	"time"
)

var _ RecipientRepository = (*RecipientRepo)(nil)

// RecipientRepo handles database operations for delivery recipients
type RecipientRepo struct {
	db *DB
}

func NewRecipientRepo(db *DB) *RecipientRepo {
	return &RecipientRepo{db: db}
}

func (r *RecipientRepo) Register(chatID int64, title string, authorized bool) (bool, error) {
	result, err := r.db.Exec(`
		INSERT INTO recipients (chat_id, title, registered_at, authorized)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (chat_id) DO NOTHING
	`, chatID, title, time.Now().UTC(), boolToInt(authorized))
	if err != nil {
		return false, fmt.Errorf("failed to register recipient: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check registration result: %w", err)
	}

	return inserted > 0, nil
}

func (r *RecipientRepo) Authorize(chatID int64) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE recipients SET authorized = 1 WHERE chat_id = ? AND authorized = 0
	`, chatID)
	if err != nil {
		return false, fmt.Errorf("failed to authorize recipient: %w", err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check authorization result: %w", err)
	}

	return updated > 0, nil
}

func (r *RecipientRepo) ListAuthorized() ([]int64, error) {
	rows, err := r.db.Query(`
		SELECT chat_id FROM recipients WHERE authorized = 1 ORDER BY registered_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list authorized recipients: %w", err)
	}
	defer rows.Close()

	var chatIDs []int64
	for rows.Next() {
		var chatID int64
		if err := rows.Scan(&chatID); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		chatIDs = append(chatIDs, chatID)
	}

	return chatIDs, rows.Err()
}

func (r *RecipientRepo) ListAll() ([]Recipient, error) {
	rows, err := r.db.Query(`
		SELECT chat_id, title, registered_at, authorized
		FROM recipients
		ORDER BY registered_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	var recipients []Recipient
	for rows.Next() {
		var recipient Recipient
		var authorized int
		if err := rows.Scan(&recipient.ChatID, &recipient.Title, &recipient.RegisteredAt, &authorized); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		recipient.Authorized = authorized == 1
		recipients = append(recipients, recipient)
	}

	return recipients, rows.Err()
}

func (r *RecipientRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM recipients`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recipients: %w", err)
	}

	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
