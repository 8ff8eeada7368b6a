package state

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"socialchat/models"
)

// Phase is the lifecycle of the active conversation view.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
)

var (
	// ErrEmptyMessage rejects sends whose text trims to nothing.
	ErrEmptyMessage = errors.New("message text is empty")
	// ErrNoActiveChat reports an operation with no conversation open.
	ErrNoActiveChat = errors.New("no active chat")
	// ErrNotEditable rejects edits of foreign, deleted or forwarded messages.
	ErrNotEditable = errors.New("message cannot be edited")
	// ErrNotForwardable rejects forwarding a deleted message.
	ErrNotForwardable = errors.New("message cannot be forwarded")
	// ErrMessageNotFound reports a message id absent from the open history.
	ErrMessageNotFound = errors.New("message not found")
)

// MessageAPI is the server surface a conversation needs. *api.Service
// implements it.
type MessageAPI interface {
	FetchMessages(ctx context.Context, chatID string) ([]models.Message, error)
	SendMessage(ctx context.Context, chatID, text string, forwarded bool) (*models.Message, error)
	EditMessage(ctx context.Context, messageID, text string) (*models.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
}

// Conversation is the state machine behind the open chat view: its message
// history, the edit and forward modes, and the optimistic mutations layered
// on top of the last server snapshot.
type Conversation struct {
	mu sync.RWMutex

	api     MessageAPI
	chats   *ChatList
	journal Journal
	selfID  func() string

	phase    Phase
	chat     models.Chat
	messages []models.Message
	pending  []PendingEvent

	editingID    string
	forwardingID string
}

// NewConversation wires a Conversation to its server API, the shared chat
// list and the pending-event journal. selfID resolves the logged-in user at
// call time so a logout is picked up immediately. A nil journal keeps events
// in memory only.
func NewConversation(msgAPI MessageAPI, chats *ChatList, journal Journal, selfID func() string) *Conversation {
	if journal == nil {
		journal = nopJournal{}
	}
	return &Conversation{api: msgAPI, chats: chats, journal: journal, selfID: selfID}
}

// Phase returns the current lifecycle phase.
func (c *Conversation) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// ActiveChat returns the open chat, if any.
func (c *Conversation) ActiveChat() (models.Chat, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.phase == PhaseIdle {
		return models.Chat{}, false
	}
	return c.chat, true
}

// Messages returns a snapshot of the visible history in chronological
// order, pending sends included.
func (c *Conversation) Messages() []models.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Message(nil), c.messages...)
}

// Open switches the conversation to chat and loads its history. Any edit or
// forward mode from the previous chat is abandoned.
func (c *Conversation) Open(ctx context.Context, chat models.Chat) error {
	c.mu.Lock()
	c.phase = PhaseLoading
	c.chat = chat
	c.messages = nil
	c.pending = nil
	c.editingID = ""
	c.forwardingID = ""
	c.mu.Unlock()

	history, err := c.api.FetchMessages(ctx, chat.ID)
	if err != nil {
		c.mu.Lock()
		c.phase = PhaseIdle
		c.mu.Unlock()
		return fmt.Errorf("open chat %s: %w", chat.ID, err)
	}

	c.mu.Lock()
	if c.chat.ID == chat.ID {
		c.messages = history
		c.phase = PhaseReady
	}
	c.mu.Unlock()
	return nil
}

// Close drops the active conversation back to idle.
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = PhaseIdle
	c.chat = models.Chat{}
	c.messages = nil
	c.pending = nil
	c.editingID = ""
	c.forwardingID = ""
}

// Send posts text to the active chat and appends it optimistically. The
// message also becomes the chat's new preview and is journaled until a
// server snapshot confirms it.
func (c *Conversation) Send(ctx context.Context, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmptyMessage
	}

	c.mu.RLock()
	if c.phase != PhaseReady {
		c.mu.RUnlock()
		return models.Message{}, ErrNoActiveChat
	}
	chatID := c.chat.ID
	c.mu.RUnlock()

	reply, err := c.api.SendMessage(ctx, chatID, text, false)
	if err != nil {
		return models.Message{}, fmt.Errorf("send message: %w", err)
	}

	msg := c.optimisticMessage(reply, chatID, text, false)
	event := PendingEvent{
		CorrelationID: uuid.NewString(),
		ChatID:        chatID,
		Kind:          EventSend,
		Message:       msg,
	}

	c.mu.Lock()
	if c.chat.ID == chatID {
		c.messages = append(c.messages, msg)
		c.pending = append(c.pending, event)
	}
	c.mu.Unlock()

	if err := c.journal.SavePendingEvent(event.CorrelationID, chatID, event.Kind, msg); err != nil {
		log.Printf("journal pending send: %v", err)
	}
	c.chats.UpdatePreview(chatID, &msg)
	return msg, nil
}

// optimisticMessage builds the local copy of a just-sent message, preferring
// server-assigned fields when the reply carries them.
func (c *Conversation) optimisticMessage(reply *models.Message, chatID, text string, forwarded bool) models.Message {
	msg := models.Message{
		ID:          uuid.NewString(),
		ChatID:      chatID,
		Sender:      models.SenderRef(c.selfID()),
		Text:        text,
		CreatedAt:   time.Now(),
		IsForwarded: forwarded,
	}
	if reply != nil && reply.ID != "" {
		msg.ID = reply.ID
		if !reply.CreatedAt.IsZero() {
			msg.CreatedAt = reply.CreatedAt
		}
	}
	return msg
}

// StartEdit enters edit mode for one of the user's own messages. Deleted
// and forwarded messages are not editable.
func (c *Conversation) StartEdit(messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseReady {
		return ErrNoActiveChat
	}
	msg := c.findLocked(messageID)
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.SenderID() != c.selfID() || msg.IsDeleted || msg.IsForwarded {
		return ErrNotEditable
	}

	c.editingID = messageID
	c.forwardingID = ""
	return nil
}

// EditingMessage returns the message under edit, if edit mode is active.
func (c *Conversation) EditingMessage() (models.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.editingID == "" {
		return models.Message{}, false
	}
	if msg := c.findLocked(c.editingID); msg != nil {
		return *msg, true
	}
	return models.Message{}, false
}

// CancelEdit leaves edit mode without touching the message.
func (c *Conversation) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editingID = ""
}

// ConfirmEdit persists new text for the message under edit. The local copy
// keeps its original creation time and gains an update time, so it renders
// as edited without re-sorting the history.
func (c *Conversation) ConfirmEdit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	c.mu.RLock()
	messageID := c.editingID
	chatID := c.chat.ID
	c.mu.RUnlock()
	if messageID == "" {
		return ErrNotEditable
	}

	if _, err := c.api.EditMessage(ctx, messageID, text); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}

	now := time.Now()
	var wasLast bool
	var edited models.Message

	c.mu.Lock()
	if msg := c.findLocked(messageID); msg != nil {
		msg.Text = text
		msg.UpdatedAt = now
		edited = *msg
		wasLast = c.lastVisibleLocked() != nil && c.lastVisibleLocked().ID == messageID
	}
	c.editingID = ""
	c.mu.Unlock()

	if wasLast {
		c.chats.UpdatePreview(chatID, &edited)
	}
	return nil
}

// Delete soft-deletes a message: the bubble stays in the history with a
// placeholder. Deleting the chat's latest message clears the chat preview.
func (c *Conversation) Delete(ctx context.Context, messageID string) error {
	c.mu.RLock()
	if c.phase != PhaseReady {
		c.mu.RUnlock()
		return ErrNoActiveChat
	}
	chatID := c.chat.ID
	known := c.findLocked(messageID) != nil
	c.mu.RUnlock()
	if !known {
		return ErrMessageNotFound
	}

	if err := c.api.DeleteMessage(ctx, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	var wasLast bool
	c.mu.Lock()
	if last := c.lastVisibleLocked(); last != nil && last.ID == messageID {
		wasLast = true
	}
	if msg := c.findLocked(messageID); msg != nil {
		msg.IsDeleted = true
	}
	if c.editingID == messageID {
		c.editingID = ""
	}
	if c.forwardingID == messageID {
		c.forwardingID = ""
	}
	c.mu.Unlock()

	if wasLast {
		c.chats.UpdatePreview(chatID, nil)
	}
	return nil
}

// StartForward enters forward mode for a message. Deleted messages cannot
// be forwarded.
func (c *Conversation) StartForward(messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseReady {
		return ErrNoActiveChat
	}
	msg := c.findLocked(messageID)
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.IsDeleted {
		return ErrNotForwardable
	}

	c.forwardingID = messageID
	c.editingID = ""
	return nil
}

// ForwardingMessage returns the message queued for forwarding, if any.
func (c *Conversation) ForwardingMessage() (models.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.forwardingID == "" {
		return models.Message{}, false
	}
	if msg := c.findLocked(c.forwardingID); msg != nil {
		return *msg, true
	}
	return models.Message{}, false
}

// CancelForward leaves forward mode.
func (c *Conversation) CancelForward() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forwardingID = ""
}

// ForwardTargets lists the chats a message can be forwarded to: every chat
// except the one it already lives in.
func (c *Conversation) ForwardTargets() []models.Chat {
	c.mu.RLock()
	activeID := c.chat.ID
	c.mu.RUnlock()

	var targets []models.Chat
	for _, chat := range c.chats.Chats() {
		if chat.ID != activeID {
			targets = append(targets, chat)
		}
	}
	return targets
}

// ConfirmForward sends the queued message into the target chat, marked as
// forwarded, and patches the target's preview. The active history is not
// touched.
func (c *Conversation) ConfirmForward(ctx context.Context, targetChatID string) error {
	c.mu.RLock()
	forwardingID := c.forwardingID
	var text string
	if msg := c.findLocked(forwardingID); msg != nil {
		text = msg.Text
	}
	activeID := c.chat.ID
	c.mu.RUnlock()

	if forwardingID == "" {
		return ErrNotForwardable
	}
	if targetChatID == activeID {
		return fmt.Errorf("forward target is the active chat")
	}

	reply, err := c.api.SendMessage(ctx, targetChatID, text, true)
	if err != nil {
		return fmt.Errorf("forward message: %w", err)
	}

	msg := c.optimisticMessage(reply, targetChatID, text, true)
	event := PendingEvent{
		CorrelationID: uuid.NewString(),
		ChatID:        targetChatID,
		Kind:          EventForward,
		Message:       msg,
	}

	c.mu.Lock()
	c.forwardingID = ""
	c.pending = append(c.pending, event)
	c.mu.Unlock()

	if err := c.journal.SavePendingEvent(event.CorrelationID, targetChatID, event.Kind, msg); err != nil {
		log.Printf("journal pending forward: %v", err)
	}
	c.chats.UpdatePreview(targetChatID, &msg)
	return nil
}

// Reconcile merges a fresh server snapshot of the active chat with the
// pending journal. Pending events the snapshot already contains are
// confirmed and dropped; the rest are re-applied on top.
func (c *Conversation) Reconcile(snapshot []models.Message) {
	c.mu.Lock()

	chatID := c.chat.ID
	confirmed := make([]string, 0, len(c.pending))
	var remaining []PendingEvent

	for _, event := range c.pending {
		if event.ChatID != chatID {
			remaining = append(remaining, event)
			continue
		}
		if snapshotContains(snapshot, event.Message) {
			confirmed = append(confirmed, event.CorrelationID)
			continue
		}
		remaining = append(remaining, event)
	}

	merged := append([]models.Message(nil), snapshot...)
	for _, event := range remaining {
		if event.ChatID == chatID && event.Kind == EventSend {
			merged = append(merged, event.Message)
		}
	}

	c.messages = merged
	c.pending = remaining
	c.mu.Unlock()

	for _, id := range confirmed {
		if err := c.journal.DeletePendingEvent(id); err != nil {
			log.Printf("drop confirmed pending event: %v", err)
		}
	}
}

// RecoverPending replays journaled events from a previous run against the
// freshly loaded history. Events the server already confirmed are dropped
// from the journal; unconfirmed sends reappear in the thread.
func (c *Conversation) RecoverPending(events []PendingEvent) {
	c.mu.Lock()
	if c.phase != PhaseReady {
		c.mu.Unlock()
		return
	}
	chatID := c.chat.ID
	snapshot := append([]models.Message(nil), c.messages...)
	for _, event := range events {
		if event.ChatID == chatID {
			c.pending = append(c.pending, event)
		}
	}
	c.mu.Unlock()

	c.Reconcile(snapshot)
}

// snapshotContains reports whether the server snapshot accounts for an
// optimistic message, either by id or by the same sender and text.
func snapshotContains(snapshot []models.Message, msg models.Message) bool {
	for i := range snapshot {
		if snapshot[i].ID == msg.ID {
			return true
		}
		if snapshot[i].SenderID() == msg.SenderID() && snapshot[i].Text == msg.Text {
			return true
		}
	}
	return false
}

func (c *Conversation) findLocked(messageID string) *models.Message {
	for i := range c.messages {
		if c.messages[i].ID == messageID {
			return &c.messages[i]
		}
	}
	return nil
}

// lastVisibleLocked returns the newest non-deleted message, the one the chat
// list shows as the preview.
func (c *Conversation) lastVisibleLocked() *models.Message {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if !c.messages[i].IsDeleted {
			return &c.messages[i]
		}
	}
	return nil
}
