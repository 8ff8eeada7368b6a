package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"socialchat/models"
)

type fakeMessageAPI struct {
	history map[string][]models.Message

	sendCalls   []sentCall
	sendReply   *models.Message
	sendErr     error
	editCalls   []editCall
	editErr     error
	deleteCalls []string
	deleteErr   error
	fetchCalls  int
}

type sentCall struct {
	chatID    string
	text      string
	forwarded bool
}

type editCall struct {
	messageID string
	text      string
}

func (f *fakeMessageAPI) FetchMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	f.fetchCalls++
	return append([]models.Message(nil), f.history[chatID]...), nil
}

func (f *fakeMessageAPI) SendMessage(ctx context.Context, chatID, text string, forwarded bool) (*models.Message, error) {
	f.sendCalls = append(f.sendCalls, sentCall{chatID: chatID, text: text, forwarded: forwarded})
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if f.sendReply != nil {
		return f.sendReply, nil
	}
	return &models.Message{}, nil
}

func (f *fakeMessageAPI) EditMessage(ctx context.Context, messageID, text string) (*models.Message, error) {
	f.editCalls = append(f.editCalls, editCall{messageID: messageID, text: text})
	if f.editErr != nil {
		return nil, f.editErr
	}
	return &models.Message{ID: messageID, Text: text}, nil
}

func (f *fakeMessageAPI) DeleteMessage(ctx context.Context, messageID string) error {
	f.deleteCalls = append(f.deleteCalls, messageID)
	return f.deleteErr
}

type recordingJournal struct {
	saved   []string
	deleted []string
}

func (j *recordingJournal) SavePendingEvent(correlationID, chatID, kind string, msg models.Message) error {
	j.saved = append(j.saved, correlationID)
	return nil
}

func (j *recordingJournal) DeletePendingEvent(correlationID string) error {
	j.deleted = append(j.deleted, correlationID)
	return nil
}

func baseHistory() []models.Message {
	t0 := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	return []models.Message{
		{ID: "m1", ChatID: "c1", Sender: "u2", Text: "hi from bob", CreatedAt: t0},
		{ID: "m2", ChatID: "c1", Sender: "u1", Text: "my own message", CreatedAt: t0.Add(time.Minute)},
		{ID: "m3", ChatID: "c1", Sender: "u1", Text: "forwarded thing", CreatedAt: t0.Add(2 * time.Minute), IsForwarded: true},
	}
}

func newTestConversation(t *testing.T, msgAPI *fakeMessageAPI) (*Conversation, *ChatList) {
	t.Helper()

	created := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	fetcher := &fakeChatFetcher{chats: []models.Chat{
		{ID: "c1", Name: "Active", CreatedAt: created, LastMessageTime: created},
		{ID: "c2", Name: "Other", CreatedAt: created, LastMessageTime: created},
	}}
	list := NewChatList(fetcher)
	if err := list.Load(context.Background()); err != nil {
		t.Fatalf("load chat list: %v", err)
	}

	conv := NewConversation(msgAPI, list, nil, func() string { return "u1" })
	chat, _ := list.Chat("c1")
	if err := conv.Open(context.Background(), chat); err != nil {
		t.Fatalf("open conversation: %v", err)
	}
	if conv.Phase() != PhaseReady {
		t.Fatalf("expected ready phase after open, got %v", conv.Phase())
	}
	return conv, list
}

func TestSendRejectsBlankText(t *testing.T) {
	msgAPI := &fakeMessageAPI{history: map[string][]models.Message{"c1": baseHistory()}}
	conv, _ := newTestConversation(t, msgAPI)

	if _, err := conv.Send(context.Background(), "   \n\t "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if len(msgAPI.sendCalls) != 0 {
		t.Fatalf("expected no network call for blank text")
	}
}

func TestSendAppendsOptimisticallyAndPatchesPreview(t *testing.T) {
	msgAPI := &fakeMessageAPI{
		history:   map[string][]models.Message{"c1": baseHistory()},
		sendReply: &models.Message{ID: "server-id"},
	}
	conv, list := newTestConversation(t, msgAPI)

	sent, err := conv.Send(context.Background(), "  hello there  ")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if sent.Text != "hello there" {
		t.Fatalf("expected trimmed text, got %q", sent.Text)
	}
	if sent.ID != "server-id" {
		t.Fatalf("expected server-assigned id, got %q", sent.ID)
	}
	if sent.SenderID() != "u1" {
		t.Fatalf("expected self as sender, got %q", sent.SenderID())
	}
	if sent.Edited() {
		t.Fatalf("fresh message must not render as edited")
	}

	msgs := conv.Messages()
	if msgs[len(msgs)-1].ID != "server-id" {
		t.Fatalf("expected message appended to history")
	}

	chat, _ := list.Chat("c1")
	if chat.LastMessage == nil || chat.LastMessage.Text != "hello there" {
		t.Fatalf("expected chat preview to show the new message, got %+v", chat.LastMessage)
	}
}

func TestSendFallsBackToLocalIDWithoutServerReply(t *testing.T) {
	msgAPI := &fakeMessageAPI{history: map[string][]models.Message{"c1": baseHistory()}}
	conv, _ := newTestConversation(t, msgAPI)

	sent, err := conv.Send(context.Background(), "local id please")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if sent.ID == "" {
		t.Fatalf("expected generated local id")
	}
}

func TestSendJournalsPendingEvent(t *testing.T) {
	msgAPI := &fakeMessageAPI{history: map[string][]models.Message{"c1": baseHistory()}}
	journal := &recordingJournal{}

	fetcher := &fakeChatFetcher{chats: []models.Chat{{ID: "c1", Name: "Active"}}}
	list := NewChatList(fetcher)
	if err := list.Load(context.Background()); err != nil {
		t.Fatalf("load chat list: %v", err)
	}
	conv := NewConversation(msgAPI, list, journal, func() string { return "u1" })
	chat, _ := list.Chat("c1")
	if err := conv.Open(context.Background(), chat); err != nil {
		t.Fatalf("open conversation: %v", err)
	}

	if _, err := conv.Send(context.Background(), "journal me"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(journal.saved) != 1 {
		t.Fatalf("expected one journaled event, got %d", len(journal.saved))
	}
}

func TestStartEditEnforcesOwnership(t *testing.T) {
	msgAPI := &fakeMessageAPI{history: map[string][]models.Message{"c1": baseHistory()}}
	conv, _ := newTestConversation(t, msgAPI)

	if err := conv.StartEdit("m1"); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected foreign message to be uneditable, got %v", err)
	}
	if err := conv.StartEdit("m3"); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected forwarded message to be uneditable, got %v", err)
	}
	if err := conv.StartEdit("m2"); err != nil {
		t.Fatalf("expected own plain message to be editable, got %v", err)
	}

	editing, ok := conv.EditingMessage()
	if !ok || editing.ID != "m2" {
		t.Fatalf("expected m2 under edit, got %+v ok=%v", editing, ok)
	}
}

func TestStartEditRejectsDeletedMessage(t *testing.T) {
	history := baseHistory()
	history[1].IsDeleted = true
	msgAPI := &fakeMessageAPI{history: map[string][]models.Message{"c1": history}}
	conv, _ := newTestConversation(t, msgAPI)

	if err := conv.StartEdit("m2"); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected deleted message to be uneditable, got %v", err)
	}
}

func TestConfirmEditKeepsPositionAndMarksEdited(t *testing.T) {
	msgAPI := &fakeMessageAPI{history: map[string][]models.Message{"c1": baseHistory()}}
	conv, _ := newTestConversation(t, msgAPI)

	if err := conv.StartEdit("m2"); err != nil {
		t.Fatalf("StartEdit failed: %v", err)
	}
	if err := conv.ConfirmEdit(context.Background(), "rewritten"); err != nil {
		t.Fatalf("ConfirmEdit failed: %v", err)
	}

	msgs := conv.Messages()
	if msgs[1].ID != "m2" {
		t.Fatalf("expected edited message to keep its position")
	}
	if msgs[1].Text != "rewritten" {
		t.Fatalf("expected new text, got %q", msgs[1].Text)
	}
	if !msgs[1].Edited() {
		t.Fatalf("expected message to render as edited")
	}
	if !msgs[1].CreatedAt.Equal(baseHistory()[1].CreatedAt) {
		t.Fatalf("expected creation time to be untouched")
	}
	if _, ok := conv.EditingMessage(); ok {
		t.Fatalf("expected edit mode to end after confirm")
	}
	if len(msgAPI.editCalls) != 1 || msgAPI.editCalls[0].messageID != "m2" {
		t.Fatalf("expected one edit call for m2, got %+v", msgAPI.editCalls)
	}
}

func TestConfirmEditOfLastMessageUpdatesPreview(t *testing.T) {
	msgAPI := &fakeMessageAPI{history: map[string][]models.Message{"c1": {
		{ID: "m1", ChatID: "c1", Sender: "u1", Text: "only one", CreatedAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)},
	}}}
	conv, list := newTestConversation(t, msgAPI)

	if err := conv.StartEdit("m1"); err != nil {
		t.Fatalf("StartEdit failed: %v", err)
	}
	if err := conv.ConfirmEdit(context.Background(), "final words"); err != nil {
		t.Fatalf("ConfirmEdit failed: %v", err)
	}

	chat, _ := list.Chat("c1")
	if chat.LastMessage == nil || chat.LastMessage.Text != "final words" {
		t.Fatalf("expected preview to follow edited last message, got %+v", chat.LastMessage)
	}
}

func TestDeleteFlipsFlagAndKeepsBubble(t *testing.T) {
	msgAPI := &fakeMessageAPI{history: map[string][]models.Message{"c1": baseHistory()}}
	conv, _ := newTestConversation(t, msgAPI)

	if err := conv.Delete(context.Background(), "m1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	msgs := conv.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected history length unchanged, got %d", len(msgs))
	}
	if !msgs[0].IsDeleted {
		t.Fatalf("expected deletion flag on m1")
	}
	if msgs[0].DisplayText() != models.DeletedPlaceholder {
		t.Fatalf("expected placeholder text, got %q", msgs[0].DisplayText())
	}
	if len(msgAPI.deleteCalls) != 1 || msgAPI.deleteCalls[0] != "m1" {
		t.Fatalf("expected one delete call for m1, got %+v", msgAPI.deleteCalls)
	}
}

func TestDeleteLastMessageClearsPreview(t *testing.T) {
	msgAPI := &fakeMessageAPI{history: map[string][]models.Message{"c1": baseHistory()}}
	conv, list := newTestConversation(t, msgAPI)

	if err := conv.Delete(context.Background(), "m3"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	chat, _ := list.Chat("c1")
	if chat.LastMessage != nil {
		t.Fatalf("expected cleared preview after deleting last message")
	}
	if !chat.LastMessageTime.Equal(chat.CreatedAt) {
		t.Fatalf("expected preview time to fall back to creation time")
	}
}

func TestDeleteNonLastMessageKeepsPreview(t *testing.T) {
	msgAPI := &fakeMessageAPI{history: map[string][]models.Message{"c1": baseHistory()}}
	conv, list := newTestConversation(t, msgAPI)

	latest := models.Message{ID: "m3", Text: "forwarded thing", CreatedAt: time.Date(2026, 4, 1, 9, 2, 0, 0, time.UTC)}
	list.UpdatePreview("c1", &latest)

	if err := conv.Delete(context.Background(), "m1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	chat, _ := list.Chat("c1")
	if chat.LastMessage == nil || chat.LastMessage.ID != "m3" {
		t.Fatalf("expected preview untouched when deleting older message, got %+v", chat.LastMessage)
	}
}

func TestStartForwardRejectsDeletedMessage(t *testing.T) {
	history := baseHistory()
	history[0].IsDeleted = true
	msgAPI := &fakeMessageAPI{history: map[string][]models.Message{"c1": history}}
	conv, _ := newTestConversation(t, msgAPI)

	if err := conv.StartForward("m1"); !errors.Is(err, ErrNotForwardable) {
		t.Fatalf("expected deleted message to be unforwardable, got %v", err)
	}
}

func TestForwardTargetsExcludeActiveChat(t *testing.T) {
	msgAPI := &fakeMessageAPI{history: map[string][]models.Message{"c1": baseHistory()}}
	conv, _ := newTestConversation(t, msgAPI)

	targets := conv.ForwardTargets()
	if len(targets) != 1 || targets[0].ID != "c2" {
		t.Fatalf("expected only c2 as forward target, got %+v", targets)
	}
}

func TestConfirmForwardPatchesTargetPreviewOnly(t *testing.T) {
	msgAPI := &fakeMessageAPI{
		history:   map[string][]models.Message{"c1": baseHistory()},
		sendReply: &models.Message{ID: "fwd-id"},
	}
	conv, list := newTestConversation(t, msgAPI)

	if err := conv.StartForward("m1"); err != nil {
		t.Fatalf("StartForward failed: %v", err)
	}
	if err := conv.ConfirmForward(context.Background(), "c2"); err != nil {
		t.Fatalf("ConfirmForward failed: %v", err)
	}

	if len(msgAPI.sendCalls) != 1 {
		t.Fatalf("expected one send call, got %d", len(msgAPI.sendCalls))
	}
	call := msgAPI.sendCalls[0]
	if call.chatID != "c2" || call.text != "hi from bob" || !call.forwarded {
		t.Fatalf("unexpected forward call: %+v", call)
	}

	if msgs := conv.Messages(); len(msgs) != 3 {
		t.Fatalf("expected active history untouched, got %d messages", len(msgs))
	}

	target, _ := list.Chat("c2")
	if target.LastMessage == nil || !target.LastMessage.IsForwarded {
		t.Fatalf("expected forwarded preview on target chat, got %+v", target.LastMessage)
	}
	if _, ok := conv.ForwardingMessage(); ok {
		t.Fatalf("expected forward mode to end after confirm")
	}
}

func TestConfirmForwardRejectsActiveChatAsTarget(t *testing.T) {
	msgAPI := &fakeMessageAPI{history: map[string][]models.Message{"c1": baseHistory()}}
	conv, _ := newTestConversation(t, msgAPI)

	if err := conv.StartForward("m1"); err != nil {
		t.Fatalf("StartForward failed: %v", err)
	}
	if err := conv.ConfirmForward(context.Background(), "c1"); err == nil {
		t.Fatalf("expected active chat to be rejected as forward target")
	}
}

func TestReconcileDropsConfirmedPendingEvents(t *testing.T) {
	msgAPI := &fakeMessageAPI{history: map[string][]models.Message{"c1": baseHistory()}}
	journal := &recordingJournal{}

	fetcher := &fakeChatFetcher{chats: []models.Chat{{ID: "c1", Name: "Active"}}}
	list := NewChatList(fetcher)
	if err := list.Load(context.Background()); err != nil {
		t.Fatalf("load chat list: %v", err)
	}
	conv := NewConversation(msgAPI, list, journal, func() string { return "u1" })
	chat, _ := list.Chat("c1")
	if err := conv.Open(context.Background(), chat); err != nil {
		t.Fatalf("open conversation: %v", err)
	}

	confirmedMsg, err := conv.Send(context.Background(), "will be confirmed")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if _, err := conv.Send(context.Background(), "still pending"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	snapshot := append(baseHistory(), models.Message{
		ID: "server-m4", ChatID: "c1", Sender: "u1", Text: confirmedMsg.Text,
		CreatedAt: time.Date(2026, 4, 1, 9, 5, 0, 0, time.UTC),
	})
	conv.Reconcile(snapshot)

	if len(journal.deleted) != 1 {
		t.Fatalf("expected one confirmed event dropped from journal, got %d", len(journal.deleted))
	}

	msgs := conv.Messages()
	if len(msgs) != 5 {
		t.Fatalf("expected 4 snapshot messages plus 1 pending, got %d", len(msgs))
	}
	if msgs[len(msgs)-1].Text != "still pending" {
		t.Fatalf("expected unconfirmed send re-applied on top, got %q", msgs[len(msgs)-1].Text)
	}
}

func TestRecoverPendingResurfacesUnconfirmedSends(t *testing.T) {
	msgAPI := &fakeMessageAPI{history: map[string][]models.Message{"c1": baseHistory()}}
	journal := &recordingJournal{}

	fetcher := &fakeChatFetcher{chats: []models.Chat{{ID: "c1", Name: "Active"}}}
	list := NewChatList(fetcher)
	if err := list.Load(context.Background()); err != nil {
		t.Fatalf("load chat list: %v", err)
	}
	conv := NewConversation(msgAPI, list, journal, func() string { return "u1" })
	chat, _ := list.Chat("c1")
	if err := conv.Open(context.Background(), chat); err != nil {
		t.Fatalf("open conversation: %v", err)
	}

	// Journal rows left behind by an earlier run: m2 was confirmed by the
	// server (same sender and text in the history), the other never arrived.
	conv.RecoverPending([]PendingEvent{
		{CorrelationID: "corr-1", ChatID: "c1", Kind: EventSend,
			Message: models.Message{ID: "local-1", ChatID: "c1", Sender: "u1", Text: "my own message"}},
		{CorrelationID: "corr-2", ChatID: "c1", Kind: EventSend,
			Message: models.Message{ID: "local-2", ChatID: "c1", Sender: "u1", Text: "never arrived"}},
		{CorrelationID: "corr-3", ChatID: "c9", Kind: EventSend,
			Message: models.Message{ID: "local-3", ChatID: "c9", Sender: "u1", Text: "other chat"}},
	})

	if len(journal.deleted) != 1 || journal.deleted[0] != "corr-1" {
		t.Fatalf("expected only the confirmed event dropped, got %v", journal.deleted)
	}

	msgs := conv.Messages()
	if len(msgs) != 4 {
		t.Fatalf("expected history plus one recovered send, got %d", len(msgs))
	}
	if msgs[len(msgs)-1].Text != "never arrived" {
		t.Fatalf("expected unconfirmed send on top, got %q", msgs[len(msgs)-1].Text)
	}
	for _, msg := range msgs {
		if msg.ChatID == "c9" {
			t.Fatalf("event from another chat leaked into the thread")
		}
	}
}

func TestOpenAbandonsEditAndForwardModes(t *testing.T) {
	msgAPI := &fakeMessageAPI{history: map[string][]models.Message{
		"c1": baseHistory(),
		"c2": {},
	}}
	conv, list := newTestConversation(t, msgAPI)

	if err := conv.StartEdit("m2"); err != nil {
		t.Fatalf("StartEdit failed: %v", err)
	}

	other, _ := list.Chat("c2")
	if err := conv.Open(context.Background(), other); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, ok := conv.EditingMessage(); ok {
		t.Fatalf("expected edit mode abandoned after switching chats")
	}
	if _, ok := conv.ForwardingMessage(); ok {
		t.Fatalf("expected forward mode abandoned after switching chats")
	}
}
