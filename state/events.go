// Package state holds the client-side view state: the chat list cache, the
// active conversation and the optimistic-mutation journal that keeps both
// honest until the server confirms.
package state

import "socialchat/models"

// Pending event kinds.
const (
	EventSend    = "send"
	EventForward = "forward"
)

// PendingEvent is an optimistic mutation awaiting confirmation from a server
// snapshot. Its correlation id ties the in-memory copy to the journal row.
type PendingEvent struct {
	CorrelationID string
	ChatID        string
	Kind          string
	Message       models.Message
}

// Journal persists pending events across restarts. *store.Store implements
// it.
type Journal interface {
	SavePendingEvent(correlationID, chatID, kind string, msg models.Message) error
	DeletePendingEvent(correlationID string) error
}

// nopJournal is used when no persistent journal is wired, mainly in tests.
type nopJournal struct{}

func (nopJournal) SavePendingEvent(string, string, string, models.Message) error { return nil }
func (nopJournal) DeletePendingEvent(string) error                              { return nil }
