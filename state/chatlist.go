package state

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"socialchat/models"
)

// ChatFetcher loads the chat list from the server. *api.Service implements
// it.
type ChatFetcher interface {
	FetchChats(ctx context.Context) ([]models.Chat, error)
}

// ChatList caches the user's chats for the lifetime of the login. The list
// is fetched once and then patched in place by preview updates; a full
// refetch only happens through Refresh.
type ChatList struct {
	mu      sync.RWMutex
	fetcher ChatFetcher

	chats  []models.Chat
	loaded bool

	onChange func()
}

// NewChatList builds an empty ChatList backed by fetcher.
func NewChatList(fetcher ChatFetcher) *ChatList {
	return &ChatList{fetcher: fetcher}
}

// SetOnChange registers a callback fired after every mutation. Used to
// invalidate dependent caches.
func (l *ChatList) SetOnChange(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

// Prime seeds the list from a local cache snapshot without marking it
// loaded, so the next Load still reaches the server.
func (l *ChatList) Prime(chats []models.Chat) {
	l.mu.Lock()
	l.chats = append([]models.Chat(nil), chats...)
	l.mu.Unlock()
	l.notify()
}

// Load fetches the chat list if it has not been fetched yet. Repeated calls
// after a successful load are no-ops.
func (l *ChatList) Load(ctx context.Context) error {
	l.mu.RLock()
	loaded := l.loaded
	l.mu.RUnlock()
	if loaded {
		return nil
	}
	return l.Refresh(ctx)
}

// Refresh replaces the cached list with a fresh server snapshot.
func (l *ChatList) Refresh(ctx context.Context) error {
	chats, err := l.fetcher.FetchChats(ctx)
	if err != nil {
		return fmt.Errorf("refresh chat list: %w", err)
	}

	l.mu.Lock()
	l.chats = chats
	l.loaded = true
	l.mu.Unlock()
	l.notify()
	return nil
}

// Chats returns a snapshot of the cached list sorted by most recent
// activity. Mutating the snapshot does not affect the cache.
func (l *ChatList) Chats() []models.Chat {
	l.mu.RLock()
	snapshot := append([]models.Chat(nil), l.chats...)
	l.mu.RUnlock()

	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].PreviewTimestamp().After(snapshot[j].PreviewTimestamp())
	})
	return snapshot
}

// Chat returns a copy of the cached chat with the given id.
func (l *ChatList) Chat(id string) (models.Chat, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := range l.chats {
		if l.chats[i].ID == id {
			return l.chats[i], true
		}
	}
	return models.Chat{}, false
}

// UpdatePreview patches the preview of one chat in place. A non-nil message
// becomes the new preview; nil marks the previous preview as gone, dropping
// the chat back to its creation timestamp. All other chats are untouched.
func (l *ChatList) UpdatePreview(chatID string, msg *models.Message) {
	l.mu.Lock()
	for i := range l.chats {
		if l.chats[i].ID != chatID {
			continue
		}
		if msg == nil {
			l.chats[i].LastMessage = nil
			l.chats[i].LastMessageTime = l.chats[i].CreatedAt
		} else {
			copied := *msg
			l.chats[i].LastMessage = &copied
			l.chats[i].LastMessageTime = copied.PreviewTime()
		}
		break
	}
	l.mu.Unlock()
	l.notify()
}

// Remove drops a chat from the cache, after a leave or delete.
func (l *ChatList) Remove(chatID string) {
	l.mu.Lock()
	for i := range l.chats {
		if l.chats[i].ID == chatID {
			l.chats = append(l.chats[:i], l.chats[i+1:]...)
			break
		}
	}
	l.mu.Unlock()
	l.notify()
}

// Replace swaps a single cached chat for its updated server copy, keeping
// the client-side preview fields.
func (l *ChatList) Replace(updated models.Chat) {
	l.mu.Lock()
	for i := range l.chats {
		if l.chats[i].ID != updated.ID {
			continue
		}
		updated.LastMessage = l.chats[i].LastMessage
		updated.LastMessageTime = l.chats[i].LastMessageTime
		l.chats[i] = updated
		break
	}
	l.mu.Unlock()
	l.notify()
}

// Clear empties the cache. Used on logout.
func (l *ChatList) Clear() {
	l.mu.Lock()
	l.chats = nil
	l.loaded = false
	l.mu.Unlock()
	l.notify()
}

func (l *ChatList) notify() {
	l.mu.RLock()
	fn := l.onChange
	l.mu.RUnlock()
	if fn != nil {
		fn()
	}
}
