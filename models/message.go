package models

import (
	"encoding/json"
	"time"
)

// DeletedPlaceholder replaces the text of soft-deleted messages everywhere
// they are displayed.
const DeletedPlaceholder = "Message was deleted"

// SenderRef is a message sender reference. The server sometimes returns a
// bare user id and sometimes an expanded user object; both decode to the id.
type SenderRef string

func (s *SenderRef) UnmarshalJSON(raw []byte) error {
	trimmed := string(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var obj struct {
			ID string `json:"_id"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return err
		}
		*s = SenderRef(obj.ID)
		return nil
	}

	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return err
	}
	*s = SenderRef(id)
	return nil
}

func (s SenderRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// Message is the server representation of one chat message.
type Message struct {
	ID          string    `json:"_id"`
	ChatID      string    `json:"chat"`
	Sender      SenderRef `json:"sender"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
	IsDeleted   bool      `json:"isDeleted"`
	IsForwarded bool      `json:"is_forwarded"`
}

// SenderID returns the sender as a plain user id.
func (m Message) SenderID() string {
	return string(m.Sender)
}

// Edited reports whether the message was changed after creation.
func (m Message) Edited() bool {
	return !m.UpdatedAt.IsZero() && m.UpdatedAt.After(m.CreatedAt)
}

// DisplayText returns the text to render, substituting the deletion
// placeholder for soft-deleted messages.
func (m Message) DisplayText() string {
	if m.IsDeleted {
		return DeletedPlaceholder
	}
	return m.Text
}

// PreviewTime is the timestamp a chat list preview should show for this
// message: the updated time when edited, otherwise the created time.
func (m Message) PreviewTime() time.Time {
	if m.Edited() {
		return m.UpdatedAt
	}
	return m.CreatedAt
}
