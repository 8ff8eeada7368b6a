// Package search implements client-side federated search across chat names
// and message history, with bounded caches so repeated queries stay cheap.
package search

import (
	"context"
	"log"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"socialchat/models"
)

// MaxResults caps the merged result list per query.
const MaxResults = 20

// UnknownSenderName stands in when a sender profile cannot be resolved.
const UnknownSenderName = "Unknown User"

// Result kinds.
const (
	KindChat    = "chat"
	KindMessage = "message"
)

// Result is one search hit, either a chat whose name matches or a message
// whose text matches.
type Result struct {
	Kind       string
	Chat       models.Chat
	Message    models.Message
	ChatName   string
	SenderName string
	SenderPic  string
	MatchIndex int
	Timestamp  int64
}

// ChatSource supplies the chats to search across. *state.ChatList
// implements it.
type ChatSource interface {
	Chats() []models.Chat
}

// Backend is the server surface the searcher needs.
type Backend interface {
	FetchMessages(ctx context.Context, chatID string) ([]models.Message, error)
	FetchUser(ctx context.Context, userID string) (*models.User, error)
}

// Options bound the searcher's caches.
type Options struct {
	ResultCacheSize  int
	MessageCacheSize int
	SenderCacheSize  int
}

func (o Options) withDefaults() Options {
	if o.ResultCacheSize <= 0 {
		o.ResultCacheSize = 10
	}
	if o.MessageCacheSize <= 0 {
		o.MessageCacheSize = 64
	}
	if o.SenderCacheSize <= 0 {
		o.SenderCacheSize = 256
	}
	return o
}

// Searcher runs federated queries over the chat list and per-chat message
// history. Three LRU caches keep repeat queries off the network: one for
// whole result sets keyed by normalized query, one for per-chat message
// history, one for sender profiles.
type Searcher struct {
	chats   ChatSource
	backend Backend

	results  *lru.Cache[string, []Result]
	messages *lru.Cache[string, []models.Message]
	senders  *lru.Cache[string, models.User]
}

// New builds a Searcher over the given chat source and backend.
func New(chats ChatSource, backend Backend, opts Options) (*Searcher, error) {
	opts = opts.withDefaults()

	results, err := lru.New[string, []Result](opts.ResultCacheSize)
	if err != nil {
		return nil, err
	}
	messages, err := lru.New[string, []models.Message](opts.MessageCacheSize)
	if err != nil {
		return nil, err
	}
	senders, err := lru.New[string, models.User](opts.SenderCacheSize)
	if err != nil {
		return nil, err
	}

	return &Searcher{
		chats:    chats,
		backend:  backend,
		results:  results,
		messages: messages,
		senders:  senders,
	}, nil
}

// Search runs a federated query. Chat-name matches never touch the network;
// message matches fetch each chat's history at most once per cache
// lifetime. Results are ranked by how early the match sits in the text,
// ties broken by recency, and capped at MaxResults.
func (s *Searcher) Search(ctx context.Context, query string) ([]Result, error) {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return nil, nil
	}

	if cached, ok := s.results.Get(normalized); ok {
		return append([]Result(nil), cached...), nil
	}

	chats := s.chats.Chats()
	var merged []Result

	for _, chat := range chats {
		if idx := strings.Index(strings.ToLower(chat.Name), normalized); idx >= 0 {
			merged = append(merged, Result{
				Kind:       KindChat,
				Chat:       chat,
				ChatName:   chat.Name,
				MatchIndex: idx,
				Timestamp:  chat.PreviewTimestamp().UnixMilli(),
			})
		}
	}

	for _, chat := range chats {
		history, err := s.chatMessages(ctx, chat.ID)
		if err != nil {
			// One unreachable history must not sink the whole query.
			log.Printf("search history for chat %s: %v", chat.ID, err)
			continue
		}
		for _, msg := range history {
			if msg.IsDeleted {
				continue
			}
			idx := strings.Index(strings.ToLower(msg.Text), normalized)
			if idx < 0 {
				continue
			}

			name, pic := s.senderInfo(ctx, msg.SenderID())
			merged = append(merged, Result{
				Kind:       KindMessage,
				Chat:       chat,
				Message:    msg,
				ChatName:   chat.Name,
				SenderName: name,
				SenderPic:  pic,
				MatchIndex: idx,
				Timestamp:  msg.PreviewTime().UnixMilli(),
			})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].MatchIndex != merged[j].MatchIndex {
			return merged[i].MatchIndex < merged[j].MatchIndex
		}
		return merged[i].Timestamp > merged[j].Timestamp
	})
	if len(merged) > MaxResults {
		merged = merged[:MaxResults]
	}

	s.results.Add(normalized, merged)
	return append([]Result(nil), merged...), nil
}

func (s *Searcher) chatMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	if cached, ok := s.messages.Get(chatID); ok {
		return cached, nil
	}

	history, err := s.backend.FetchMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	s.messages.Add(chatID, history)
	return history, nil
}

// senderInfo resolves a sender profile through the cache. A failed lookup
// degrades to a placeholder name instead of failing the whole search.
func (s *Searcher) senderInfo(ctx context.Context, senderID string) (string, string) {
	if senderID == "" {
		return UnknownSenderName, ""
	}
	if cached, ok := s.senders.Get(senderID); ok {
		return cached.DisplayName(), cached.ProfilePic
	}

	user, err := s.backend.FetchUser(ctx, senderID)
	if err != nil || user == nil {
		log.Printf("resolve sender %s: %v", senderID, err)
		return UnknownSenderName, ""
	}

	s.senders.Add(senderID, *user)
	return user.DisplayName(), user.ProfilePic
}

// InvalidateChats drops the message and result caches. Called whenever the
// chat list or any history changes.
func (s *Searcher) InvalidateChats() {
	s.messages.Purge()
	s.results.Purge()
}

// InvalidateUser drops all three caches. Called on login and logout.
func (s *Searcher) InvalidateUser() {
	s.messages.Purge()
	s.results.Purge()
	s.senders.Purge()
}
