package models

import (
	"encoding/json"
	"time"
)

// Chat is the server representation of one conversation plus the
// client-maintained preview fields used by the chat list.
type Chat struct {
	ID          string
	Name        string
	IsGroup     bool
	Photo       string
	Description string
	Members     []string
	ManagerIDs  []string
	IsMuted     bool
	IsBlocked   bool
	CreatedAt   time.Time

	// LastMessage and LastMessageTime are denormalized preview state kept
	// only on the client. A nil LastMessage with LastMessageTime equal to
	// CreatedAt means "no message to preview".
	LastMessage     *Message
	LastMessageTime time.Time
}

// chatWire tolerates the two field spellings the backend has shipped for
// group flag, photo and manager list.
type chatWire struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	IsGroup     bool      `json:"is_group"`
	IsGroupAlt  bool      `json:"isGroup"`
	Photo       string    `json:"photo"`
	GroupPhoto  string    `json:"groupPhoto"`
	Description string    `json:"description"`
	Members     []string  `json:"members"`
	ManagerIDs  []string  `json:"managerIds"`
	Manager     []string  `json:"manager"`
	IsMuted     bool      `json:"isMuted"`
	IsBlocked   bool      `json:"isBlocked"`
	CreatedAt   time.Time `json:"createdAt"`
	LastMessage *Message  `json:"lastMessage,omitempty"`
}

func (c *Chat) UnmarshalJSON(raw []byte) error {
	var wire chatWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}

	c.ID = wire.ID
	c.Name = wire.Name
	c.IsGroup = wire.IsGroup || wire.IsGroupAlt
	c.Photo = wire.Photo
	if c.Photo == "" {
		c.Photo = wire.GroupPhoto
	}
	c.Description = wire.Description
	c.Members = wire.Members
	c.ManagerIDs = wire.ManagerIDs
	if len(c.ManagerIDs) == 0 {
		c.ManagerIDs = wire.Manager
	}
	c.IsMuted = wire.IsMuted
	c.IsBlocked = wire.IsBlocked
	c.CreatedAt = wire.CreatedAt
	c.LastMessage = wire.LastMessage
	if wire.LastMessage != nil {
		c.LastMessageTime = wire.LastMessage.PreviewTime()
	} else {
		c.LastMessageTime = wire.CreatedAt
	}
	return nil
}

func (c Chat) MarshalJSON() ([]byte, error) {
	return json.Marshal(chatWire{
		ID:          c.ID,
		Name:        c.Name,
		IsGroup:     c.IsGroup,
		Photo:       c.Photo,
		Description: c.Description,
		Members:     c.Members,
		ManagerIDs:  c.ManagerIDs,
		IsMuted:     c.IsMuted,
		IsBlocked:   c.IsBlocked,
		CreatedAt:   c.CreatedAt,
		LastMessage: c.LastMessage,
	})
}

// HasManager reports whether the given user administers this chat.
func (c Chat) HasManager(userID string) bool {
	for _, id := range c.ManagerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// HasMember reports whether the given user belongs to this chat.
func (c Chat) HasMember(userID string) bool {
	for _, id := range c.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// PreviewTimestamp is the time shown next to the chat in the list: the last
// message time when known, otherwise the chat creation time.
func (c Chat) PreviewTimestamp() time.Time {
	if !c.LastMessageTime.IsZero() {
		return c.LastMessageTime
	}
	return c.CreatedAt
}
