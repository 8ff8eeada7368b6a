// Package session holds the authenticated user and token for the running
// client and persists them encrypted between launches.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sync"

	"socialchat/crypto"
	"socialchat/models"
)

type persistedSession struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

// Session is the single source of truth for "who is logged in". All reads
// and writes go through it; there is no package-level state.
type Session struct {
	mu    sync.RWMutex
	user  *models.User
	token string

	path string
	key  []byte
}

// New creates a Session persisting to path, sealed with key.
func New(path string, key []byte) *Session {
	return &Session{path: path, key: key}
}

// Current returns the active user and token. The third return is false when
// nobody is logged in.
func (s *Session) Current() (models.User, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil || s.token == "" {
		return models.User{}, "", false
	}
	return *s.user, s.token, true
}

// UserID returns the active user id, or "" when logged out.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return ""
	}
	return s.user.ID
}

// Save replaces the in-memory session and rewrites the session file. Passing
// a nil user clears both memory and the file.
func (s *Session) Save(user *models.User, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user == nil {
		s.user = nil
		s.token = ""
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove session file: %w", err)
		}
		return nil
	}

	copied := *user
	s.user = &copied
	s.token = token

	raw, err := json.Marshal(persistedSession{User: copied, Token: token})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	sealed, err := crypto.Seal(s.key, raw)
	if err != nil {
		return fmt.Errorf("seal session: %w", err)
	}
	if err := os.WriteFile(s.path, sealed, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// LogOut clears the in-memory session only. The session file is left in
// place so a restart can hydrate again; callers wanting a full sign-out use
// Save(nil, "").
func (s *Session) LogOut() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	s.token = ""
}

// Hydrate loads the persisted session from disk. A missing or unreadable
// file leaves the session logged out without error.
func (s *Session) Hydrate() error {
	sealed, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read session file: %w", err)
	}

	raw, err := crypto.Open(s.key, sealed)
	if err != nil {
		log.Printf("session file unreadable, starting logged out: %v", err)
		return nil
	}

	var persisted persistedSession
	if err := json.Unmarshal(raw, &persisted); err != nil {
		log.Printf("session file corrupt, starting logged out: %v", err)
		return nil
	}
	if persisted.User.ID == "" || persisted.Token == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &persisted.User
	s.token = persisted.Token
	return nil
}
