package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"socialchat/api"
	"socialchat/models"
)

// ErrPasswordMismatch reports a sign-up whose password fields differ.
var ErrPasswordMismatch = errors.New("passwords do not match")

// Authenticator drives the login, sign-up and profile-update flows and
// stores their results into a Session.
type Authenticator struct {
	client  *api.Client
	session *Session
}

// NewAuthenticator wires an Authenticator to its transport and session.
func NewAuthenticator(client *api.Client, session *Session) *Authenticator {
	return &Authenticator{client: client, session: session}
}

// Login exchanges credentials for a token, resolves the user profile and
// persists both. The identifier is treated as an email when it contains "@",
// as a username otherwise.
func (a *Authenticator) Login(ctx context.Context, identifier, password string) (*models.User, error) {
	body := map[string]any{"password": password}
	if strings.Contains(identifier, "@") {
		body["email"] = identifier
	} else {
		body["username"] = identifier
	}

	resp, err := a.client.Post(ctx, "/tokens", "", nil, nil, body)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	var tokenReply struct {
		Token string `json:"token"`
	}
	if err := resp.Decode(&tokenReply); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if tokenReply.Token == "" {
		return nil, errors.New("login: server reply missing token")
	}

	userID, err := userIDFromToken(tokenReply.Token)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	userResp, err := a.client.Get(ctx, "/users/"+userID, tokenReply.Token, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("login: fetch profile: %w", err)
	}
	var user models.User
	if err := userResp.Decode(&user); err != nil {
		return nil, fmt.Errorf("login: fetch profile: %w", err)
	}

	if err := a.session.Save(&user, tokenReply.Token); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &user, nil
}

// SignUpRequest carries the fields of a new account. ProfilePic is an
// optional base64 data URL sent only when set.
type SignUpRequest struct {
	Username       string
	Email          string
	Password       string
	VerifyPassword string
	ProfilePic     string
}

// SignUp registers a new account. It does not log the user in; the caller
// routes back to the login flow on success.
func (a *Authenticator) SignUp(ctx context.Context, req SignUpRequest) error {
	if req.Password != req.VerifyPassword {
		return ErrPasswordMismatch
	}

	body := map[string]any{
		"username": req.Username,
		"email":    req.Email,
		"password": req.Password,
	}
	if req.ProfilePic != "" {
		body["profile_pic"] = req.ProfilePic
	}
	resp, err := a.client.Post(ctx, "/users", "", nil, nil, body)
	if err != nil {
		return fmt.Errorf("sign up: %w", err)
	}
	if resp.Status != http.StatusCreated {
		return fmt.Errorf("sign up: unexpected status %d", resp.Status)
	}
	return nil
}

// ProfileUpdate carries the editable profile fields. Empty strings leave the
// stored value unchanged; a blank password is never sent.
type ProfileUpdate struct {
	Username string
	Email    string
	Status   string
	Password string
}

// UpdateProfile persists profile changes and refreshes the stored session
// user with the merged result.
func (a *Authenticator) UpdateProfile(ctx context.Context, update ProfileUpdate) (*models.User, error) {
	current, token, ok := a.session.Current()
	if !ok {
		return nil, api.ErrUnauthorized
	}

	body := map[string]any{}
	if update.Username != "" {
		body["username"] = update.Username
	}
	if update.Email != "" {
		body["email"] = update.Email
	}
	if update.Status != "" {
		body["status"] = update.Status
	}
	if update.Password != "" {
		body["password"] = update.Password
	}

	resp, err := a.client.Put(ctx, "/users/"+current.ID+"/update", token, nil, nil, body)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	updated := current
	if err := resp.Decode(&updated); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if updated.ID == "" {
		updated.ID = current.ID
	}

	if err := a.session.Save(&updated, token); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &updated, nil
}

// userIDFromToken extracts the user_id claim without verifying the
// signature. Verification is the server's job; the client only needs the id
// to fetch the profile.
func userIDFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	id, _ := claims["user_id"].(string)
	if id == "" {
		return "", errors.New("token missing user_id claim")
	}
	return id, nil
}
