package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"socialchat/models"
)

// TokenSource supplies the current authenticated user and bearer token.
type TokenSource interface {
	Current() (models.User, string, bool)
}

// Service exposes the typed server endpoints. Every call reads the active
// session from its token source, so a logout immediately affects in-flight
// call sites.
type Service struct {
	client *Client
	tokens TokenSource
}

// NewService wires a Service to a transport client and a token source.
func NewService(client *Client, tokens TokenSource) *Service {
	return &Service{client: client, tokens: tokens}
}

func (s *Service) auth() (string, string, error) {
	user, token, ok := s.tokens.Current()
	if !ok {
		return "", "", ErrUnauthorized
	}
	return user.ID, token, nil
}

// FetchChats returns every chat the current user belongs to.
func (s *Service) FetchChats(ctx context.Context) ([]models.Chat, error) {
	uid, token, err := s.auth()
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Get(ctx, "/chats/"+uid, token, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch chats: %w", err)
	}

	var chats []models.Chat
	if err := resp.Decode(&chats); err != nil {
		return nil, fmt.Errorf("fetch chats: %w", err)
	}
	return chats, nil
}

// FetchChat returns a single chat by id.
func (s *Service) FetchChat(ctx context.Context, chatID string) (*models.Chat, error) {
	_, token, err := s.auth()
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Get(ctx, "/chats/get-single-chat/"+chatID, token, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch chat %s: %w", chatID, err)
	}

	var chat models.Chat
	if err := resp.Decode(&chat); err != nil {
		return nil, fmt.Errorf("fetch chat %s: %w", chatID, err)
	}
	return &chat, nil
}

// ChatUpdate holds the mutable chat settings. Nil fields are left unchanged.
type ChatUpdate struct {
	Description *string
	IsMuted     *bool
}

// UpdateChat persists description or mute changes for a chat.
func (s *Service) UpdateChat(ctx context.Context, chatID string, update ChatUpdate) (*models.Chat, error) {
	uid, token, err := s.auth()
	if err != nil {
		return nil, err
	}

	body := map[string]any{}
	if update.Description != nil {
		body["description"] = *update.Description
	}
	if update.IsMuted != nil {
		body["isMuted"] = *update.IsMuted
	}

	resp, err := s.client.Put(ctx, "/chats/"+chatID+"/update/"+uid, token, nil, nil, body)
	if err != nil {
		return nil, fmt.Errorf("update chat %s: %w", chatID, err)
	}

	var chat models.Chat
	if err := resp.Decode(&chat); err != nil {
		return nil, fmt.Errorf("update chat %s: %w", chatID, err)
	}
	return &chat, nil
}

// LeaveChat removes the current user from a group chat.
func (s *Service) LeaveChat(ctx context.Context, chatID string) error {
	uid, token, err := s.auth()
	if err != nil {
		return err
	}
	if _, err := s.client.Delete(ctx, "/chats/"+chatID+"/leave/"+uid, token, nil, nil); err != nil {
		return fmt.Errorf("leave chat %s: %w", chatID, err)
	}
	return nil
}

// DeleteChat removes a chat entirely. Managers only, enforced server-side.
func (s *Service) DeleteChat(ctx context.Context, chatID string) error {
	uid, token, err := s.auth()
	if err != nil {
		return err
	}
	if _, err := s.client.Delete(ctx, "/chats/"+chatID+"/delete/"+uid, token, nil, nil); err != nil {
		return fmt.Errorf("delete chat %s: %w", chatID, err)
	}
	return nil
}

// AddMember adds a user to a group chat.
func (s *Service) AddMember(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	uid, token, err := s.auth()
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Post(ctx, "/chats/"+chatID+"/add-member/"+userID+"/"+uid, token, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("add member %s to chat %s: %w", userID, chatID, err)
	}

	var chat models.Chat
	if err := resp.Decode(&chat); err != nil {
		return nil, fmt.Errorf("add member %s to chat %s: %w", userID, chatID, err)
	}
	return &chat, nil
}

// RemoveMember removes a user from a group chat.
func (s *Service) RemoveMember(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	uid, token, err := s.auth()
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Delete(ctx, "/chats/"+chatID+"/remove-member/"+userID+"/"+uid, token, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("remove member %s from chat %s: %w", userID, chatID, err)
	}

	var chat models.Chat
	if err := resp.Decode(&chat); err != nil {
		return nil, fmt.Errorf("remove member %s from chat %s: %w", userID, chatID, err)
	}
	return &chat, nil
}

// AddManager promotes a member to chat manager.
func (s *Service) AddManager(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	uid, token, err := s.auth()
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Post(ctx, "/chats/"+chatID+"/add-manager/"+userID+"/"+uid, token, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("add manager %s to chat %s: %w", userID, chatID, err)
	}

	var chat models.Chat
	if err := resp.Decode(&chat); err != nil {
		return nil, fmt.Errorf("add manager %s to chat %s: %w", userID, chatID, err)
	}
	return &chat, nil
}

// RemoveManager demotes a chat manager back to plain member.
func (s *Service) RemoveManager(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	uid, token, err := s.auth()
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Delete(ctx, "/chats/"+chatID+"/remove-manager/"+userID+"/"+uid, token, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("remove manager %s from chat %s: %w", userID, chatID, err)
	}

	var chat models.Chat
	if err := resp.Decode(&chat); err != nil {
		return nil, fmt.Errorf("remove manager %s from chat %s: %w", userID, chatID, err)
	}
	return &chat, nil
}

// FetchMessages returns the full message history of a chat.
func (s *Service) FetchMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	uid, token, err := s.auth()
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Get(ctx, "/messages/"+chatID+"/chat/"+uid, token, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch messages for chat %s: %w", chatID, err)
	}

	var messages []models.Message
	if err := resp.Decode(&messages); err != nil {
		return nil, fmt.Errorf("fetch messages for chat %s: %w", chatID, err)
	}
	return messages, nil
}

// SendMessage posts a new message to a chat and returns the stored message.
func (s *Service) SendMessage(ctx context.Context, chatID, text string, forwarded bool) (*models.Message, error) {
	uid, token, err := s.auth()
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"text":         text,
		"chat":         chatID,
		"sender":       uid,
		"is_forwarded": forwarded,
	}

	resp, err := s.client.Post(ctx, "/messages/"+chatID+"/send/"+uid, token, nil, nil, body)
	if err != nil {
		return nil, fmt.Errorf("send message to chat %s: %w", chatID, err)
	}

	var msg models.Message
	if err := resp.Decode(&msg); err != nil {
		return nil, fmt.Errorf("send message to chat %s: %w", chatID, err)
	}
	return &msg, nil
}

// EditMessage replaces the text of an existing message.
func (s *Service) EditMessage(ctx context.Context, messageID, text string) (*models.Message, error) {
	uid, token, err := s.auth()
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Put(ctx, "/messages/"+messageID+"/edit/"+uid, token, nil, nil, map[string]any{"text": text})
	if err != nil {
		return nil, fmt.Errorf("edit message %s: %w", messageID, err)
	}

	var msg models.Message
	if err := resp.Decode(&msg); err != nil {
		return nil, fmt.Errorf("edit message %s: %w", messageID, err)
	}
	return &msg, nil
}

// DeleteMessage soft-deletes a message. The record survives server-side with
// its deletion flag set.
func (s *Service) DeleteMessage(ctx context.Context, messageID string) error {
	uid, token, err := s.auth()
	if err != nil {
		return err
	}
	if _, err := s.client.Delete(ctx, "/messages/"+messageID+"/delete/"+uid, token, nil, nil); err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	return nil
}

// FetchUser returns the profile of a user by id.
func (s *Service) FetchUser(ctx context.Context, userID string) (*models.User, error) {
	_, token, err := s.auth()
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Get(ctx, "/users/"+userID, token, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", userID, err)
	}

	var user models.User
	if err := resp.Decode(&user); err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", userID, err)
	}
	return &user, nil
}

// SearchUsers queries the directory by username or email fragment.
func (s *Service) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	_, token, err := s.auth()
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Get(ctx, "/users/search", token, nil, Params{"q": query})
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	var users []models.User
	if err := resp.Decode(&users); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

// BlockUser sets or clears the block flag toward another user.
func (s *Service) BlockUser(ctx context.Context, otherID string, blocked bool) error {
	uid, token, err := s.auth()
	if err != nil {
		return err
	}

	body := map[string]any{"blocked": blocked}
	if _, err := s.client.Put(ctx, "/users/"+otherID+"/block/"+uid, token, nil, nil, body); err != nil {
		return fmt.Errorf("block user %s: %w", otherID, err)
	}
	return nil
}

// FetchChatMedia lists media attached to a chat.
func (s *Service) FetchChatMedia(ctx context.Context, chatID string) ([]models.MediaItem, error) {
	uid, token, err := s.auth()
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Get(ctx, "/media/"+uid+"/related/"+chatID+"/Chat", token, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch media for chat %s: %w", chatID, err)
	}

	var items []models.MediaItem
	if err := resp.Decode(&items); err != nil {
		return nil, fmt.Errorf("fetch media for chat %s: %w", chatID, err)
	}
	return items, nil
}

// StreamURL returns the direct playback URL for a media file, scoped to the
// logged-in user. Returns "" when nobody is logged in.
func (s *Service) StreamURL(filename string) string {
	uid, _, err := s.auth()
	if err != nil {
		return ""
	}
	return s.client.BaseURL() + "/media/" + uid + "/stream/" + url.PathEscape(filename)
}

// DownloadMedia fetches the raw bytes of a media item.
func (s *Service) DownloadMedia(ctx context.Context, mediaID string) ([]byte, error) {
	uid, token, err := s.auth()
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Get(ctx, "/media/"+uid+"/download/"+mediaID, token, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("download media %s: %w", mediaID, err)
	}
	return resp.Body, nil
}

// UploadProfilePicture sends a new avatar image as a multipart form.
func (s *Service) UploadProfilePicture(ctx context.Context, filename string, content io.Reader) (*models.User, error) {
	uid, token, err := s.auth()
	if err != nil {
		return nil, err
	}

	upload := &Upload{Field: "file", Filename: filename, Content: content}
	resp, err := s.client.Post(ctx, "/media/"+uid+"/profile-picture", token, nil, nil, upload)
	if err != nil {
		return nil, fmt.Errorf("upload profile picture: %w", err)
	}
	if resp.Status != http.StatusCreated && resp.Status != http.StatusOK {
		return nil, fmt.Errorf("upload profile picture: unexpected status %d", resp.Status)
	}

	var user models.User
	if err := resp.Decode(&user); err != nil {
		return nil, fmt.Errorf("upload profile picture: %w", err)
	}
	return &user, nil
}
