package state

import (
	"context"
	"testing"
	"time"

	"socialchat/models"
)

type fakeChatFetcher struct {
	chats []models.Chat
	calls int
	err   error
}

func (f *fakeChatFetcher) FetchChats(ctx context.Context) ([]models.Chat, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Chat(nil), f.chats...), nil
}

func testChats() []models.Chat {
	created := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	lastA := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	lastB := time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC)

	return []models.Chat{
		{
			ID: "a", Name: "Team Alpha", IsGroup: true, CreatedAt: created,
			LastMessage:     &models.Message{ID: "ma", Text: "alpha last", CreatedAt: lastA},
			LastMessageTime: lastA,
		},
		{
			ID: "b", Name: "Team Beta", IsGroup: true, CreatedAt: created,
			LastMessage:     &models.Message{ID: "mb", Text: "beta last", CreatedAt: lastB},
			LastMessageTime: lastB,
		},
	}
}

func TestLoadFetchesOnceAndCaches(t *testing.T) {
	fetcher := &fakeChatFetcher{chats: testChats()}
	list := NewChatList(fetcher)

	if err := list.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := list.Load(context.Background()); err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected exactly one fetch, got %d", fetcher.calls)
	}
	if got := list.Chats(); len(got) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(got))
	}
}

func TestChatsSortedByMostRecentActivity(t *testing.T) {
	fetcher := &fakeChatFetcher{chats: testChats()}
	list := NewChatList(fetcher)
	if err := list.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got := list.Chats()
	if got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("expected b before a by activity, got %q then %q", got[0].ID, got[1].ID)
	}
}

func TestUpdatePreviewTouchesOnlyTargetChat(t *testing.T) {
	fetcher := &fakeChatFetcher{chats: testChats()}
	list := NewChatList(fetcher)
	if err := list.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	before, _ := list.Chat("b")

	newTime := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	msg := models.Message{ID: "m-new", Text: "fresh", CreatedAt: newTime}
	list.UpdatePreview("a", &msg)

	updated, ok := list.Chat("a")
	if !ok {
		t.Fatalf("chat a missing")
	}
	if updated.LastMessage == nil || updated.LastMessage.ID != "m-new" {
		t.Fatalf("expected new preview message, got %+v", updated.LastMessage)
	}
	if !updated.LastMessageTime.Equal(newTime) {
		t.Fatalf("expected preview time %v, got %v", newTime, updated.LastMessageTime)
	}

	after, _ := list.Chat("b")
	if after.LastMessage.ID != before.LastMessage.ID || !after.LastMessageTime.Equal(before.LastMessageTime) {
		t.Fatalf("expected untouched chat to keep its preview")
	}
}

func TestUpdatePreviewNilRevertsToCreationTime(t *testing.T) {
	fetcher := &fakeChatFetcher{chats: testChats()}
	list := NewChatList(fetcher)
	if err := list.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	list.UpdatePreview("a", nil)

	got, _ := list.Chat("a")
	if got.LastMessage != nil {
		t.Fatalf("expected cleared preview, got %+v", got.LastMessage)
	}
	if !got.LastMessageTime.Equal(got.CreatedAt) {
		t.Fatalf("expected preview time to fall back to creation time")
	}
}

func TestRemoveDropsChat(t *testing.T) {
	fetcher := &fakeChatFetcher{chats: testChats()}
	list := NewChatList(fetcher)
	if err := list.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	list.Remove("a")

	if _, ok := list.Chat("a"); ok {
		t.Fatalf("expected chat a to be removed")
	}
	if got := list.Chats(); len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("expected only chat b to remain, got %+v", got)
	}
}

func TestReplaceKeepsClientPreviewFields(t *testing.T) {
	fetcher := &fakeChatFetcher{chats: testChats()}
	list := NewChatList(fetcher)
	if err := list.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	serverCopy := models.Chat{ID: "a", Name: "Team Alpha Renamed", IsGroup: true, Description: "new"}
	list.Replace(serverCopy)

	got, _ := list.Chat("a")
	if got.Name != "Team Alpha Renamed" || got.Description != "new" {
		t.Fatalf("expected server fields to be applied, got %+v", got)
	}
	if got.LastMessage == nil || got.LastMessage.ID != "ma" {
		t.Fatalf("expected preview to survive replace, got %+v", got.LastMessage)
	}
}

func TestOnChangeFiresOnMutations(t *testing.T) {
	fetcher := &fakeChatFetcher{chats: testChats()}
	list := NewChatList(fetcher)

	var fired int
	list.SetOnChange(func() { fired++ })

	if err := list.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	list.UpdatePreview("a", nil)
	list.Remove("b")

	if fired != 3 {
		t.Fatalf("expected 3 change notifications, got %d", fired)
	}
}

func TestSnapshotMutationDoesNotAffectCache(t *testing.T) {
	fetcher := &fakeChatFetcher{chats: testChats()}
	list := NewChatList(fetcher)
	if err := list.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	snapshot := list.Chats()
	snapshot[0].Name = "mangled"

	got, _ := list.Chat(snapshot[0].ID)
	if got.Name == "mangled" {
		t.Fatalf("expected cache to be isolated from snapshot mutation")
	}
}
