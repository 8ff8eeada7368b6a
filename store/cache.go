package store

import (
	"encoding/json"
	"fmt"
	"time"

	"socialchat/models"
)

// PendingEvent is a journaled optimistic mutation awaiting server
// confirmation.
type PendingEvent struct {
	CorrelationID string
	ChatID        string
	Kind          string
	Message       models.Message
	CreatedAt     time.Time
}

// ReplaceChats swaps the cached chat list for a fresh server snapshot.
func (s *Store) ReplaceChats(chats []models.Chat) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin chat replace: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec("DELETE FROM chats;"); err != nil {
		return fmt.Errorf("clear cached chats: %w", err)
	}

	for i := range chats {
		payload, err := json.Marshal(&chats[i])
		if err != nil {
			return fmt.Errorf("marshal chat %s: %w", chats[i].ID, err)
		}
		_, err = tx.Exec(
			"INSERT INTO chats (chat_id, payload, updated_at) VALUES (?, ?, ?);",
			chats[i].ID, string(payload), chats[i].PreviewTimestamp().UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert chat %s: %w", chats[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chat replace: %w", err)
	}
	return nil
}

// Chats returns the cached chat list, most recently active first.
func (s *Store) Chats() ([]models.Chat, error) {
	rows, err := s.db.Query("SELECT payload FROM chats ORDER BY updated_at DESC, chat_id;")
	if err != nil {
		return nil, fmt.Errorf("query cached chats: %w", err)
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan cached chat: %w", err)
		}
		var chat models.Chat
		if err := json.Unmarshal([]byte(payload), &chat); err != nil {
			return nil, fmt.Errorf("unmarshal cached chat: %w", err)
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cached chats: %w", err)
	}
	return chats, nil
}

// ReplaceMessages swaps the cached history of one chat for a fresh snapshot.
func (s *Store) ReplaceMessages(chatID string, messages []models.Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin message replace: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec("DELETE FROM messages WHERE chat_id = ?;", chatID); err != nil {
		return fmt.Errorf("clear cached messages for chat %s: %w", chatID, err)
	}

	for i := range messages {
		payload, err := json.Marshal(&messages[i])
		if err != nil {
			return fmt.Errorf("marshal message %s: %w", messages[i].ID, err)
		}
		_, err = tx.Exec(
			"INSERT INTO messages (message_id, chat_id, payload, created_at) VALUES (?, ?, ?, ?);",
			messages[i].ID, chatID, string(payload), messages[i].CreatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert message %s: %w", messages[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message replace: %w", err)
	}
	return nil
}

// Messages returns the cached history of one chat in chronological order.
func (s *Store) Messages(chatID string) ([]models.Message, error) {
	rows, err := s.db.Query(
		"SELECT payload FROM messages WHERE chat_id = ? ORDER BY created_at, message_id;",
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query cached messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan cached message: %w", err)
		}
		var msg models.Message
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal cached message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cached messages: %w", err)
	}
	return messages, nil
}

// SavePendingEvent journals an optimistic mutation under its correlation id.
func (s *Store) SavePendingEvent(correlationID, chatID, kind string, msg models.Message) error {
	payload, err := json.Marshal(&msg)
	if err != nil {
		return fmt.Errorf("marshal pending event %s: %w", correlationID, err)
	}

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO pending_events (correlation_id, chat_id, kind, payload, created_at) VALUES (?, ?, ?, ?, ?);",
		correlationID, chatID, kind, string(payload), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert pending event %s: %w", correlationID, err)
	}
	return nil
}

// DeletePendingEvent removes a confirmed mutation from the journal.
func (s *Store) DeletePendingEvent(correlationID string) error {
	if _, err := s.db.Exec("DELETE FROM pending_events WHERE correlation_id = ?;", correlationID); err != nil {
		return fmt.Errorf("delete pending event %s: %w", correlationID, err)
	}
	return nil
}

// PendingEvents returns the journaled mutations for a chat, oldest first.
func (s *Store) PendingEvents(chatID string) ([]PendingEvent, error) {
	rows, err := s.db.Query(
		"SELECT correlation_id, chat_id, kind, payload, created_at FROM pending_events WHERE chat_id = ? ORDER BY created_at, correlation_id;",
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending events: %w", err)
	}
	defer rows.Close()

	var events []PendingEvent
	for rows.Next() {
		var (
			event     PendingEvent
			payload   string
			createdAt int64
		)
		if err := rows.Scan(&event.CorrelationID, &event.ChatID, &event.Kind, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan pending event: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &event.Message); err != nil {
			return nil, fmt.Errorf("unmarshal pending event: %w", err)
		}
		event.CreatedAt = time.UnixMilli(createdAt)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending events: %w", err)
	}
	return events, nil
}

// ClearUserData wipes every cached table. Used on full sign-out.
func (s *Store) ClearUserData() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin cache clear: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, table := range []string{"chats", "messages", "pending_events"} {
		if _, err := tx.Exec("DELETE FROM " + table + ";"); err != nil {
			return fmt.Errorf("clear table %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache clear: %w", err)
	}
	return nil
}
