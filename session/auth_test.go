package session

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"socialchat/api"
	"socialchat/models"
)

func signTestToken(t *testing.T, userID string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": userID})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	return signed
}

func TestLoginResolvesUserFromTokenClaim(t *testing.T) {
	var tokenBody map[string]any
	var profileRequests int
	token := ""

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/tokens":
			json.NewDecoder(r.Body).Decode(&tokenBody)
			json.NewEncoder(w).Encode(map[string]string{"token": token})
		case r.Method == http.MethodGet && r.URL.Path == "/users/u1":
			profileRequests++
			if r.Header.Get("Authorization") != "Bearer "+token {
				t.Errorf("profile fetch missing bearer token")
			}
			json.NewEncoder(w).Encode(map[string]string{
				"_id": "u1", "username": "alice", "email": "alice@example.com",
			})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()
	token = signTestToken(t, "u1")

	key := make([]byte, 32)
	rand.Read(key)
	sess := New(filepath.Join(t.TempDir(), "session.bin"), key)
	auth := NewAuthenticator(api.NewClient(server.URL, 5*time.Second), sess)

	user, err := auth.Login(context.Background(), "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if user.ID != "u1" || user.Username != "alice" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if tokenBody["email"] != "alice@example.com" {
		t.Fatalf("expected email credential, got %+v", tokenBody)
	}
	if _, present := tokenBody["username"]; present {
		t.Fatalf("expected username to be omitted for email identifier")
	}
	if profileRequests != 1 {
		t.Fatalf("expected exactly one profile fetch, got %d", profileRequests)
	}

	got, gotToken, ok := sess.Current()
	if !ok || got.ID != "u1" || gotToken != token {
		t.Fatalf("expected session to hold logged-in user, got %+v ok=%v", got, ok)
	}
}

func TestLoginUsesUsernameForNonEmailIdentifier(t *testing.T) {
	var tokenBody map[string]any
	token := ""

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/tokens" {
			json.NewDecoder(r.Body).Decode(&tokenBody)
			json.NewEncoder(w).Encode(map[string]string{"token": token})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"_id": "u1", "username": "alice"})
	}))
	defer server.Close()
	token = signTestToken(t, "u1")

	key := make([]byte, 32)
	rand.Read(key)
	sess := New(filepath.Join(t.TempDir(), "session.bin"), key)
	auth := NewAuthenticator(api.NewClient(server.URL, 5*time.Second), sess)

	if _, err := auth.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if tokenBody["username"] != "alice" {
		t.Fatalf("expected username credential, got %+v", tokenBody)
	}
	if _, present := tokenBody["email"]; present {
		t.Fatalf("expected email to be omitted for username identifier")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid credentials"}`))
	}))
	defer server.Close()

	key := make([]byte, 32)
	rand.Read(key)
	sess := New(filepath.Join(t.TempDir(), "session.bin"), key)
	auth := NewAuthenticator(api.NewClient(server.URL, 5*time.Second), sess)

	_, err := auth.Login(context.Background(), "alice", "wrong")
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, _, ok := sess.Current(); ok {
		t.Fatalf("expected session to stay logged out after failed login")
	}
}

func TestSignUpRejectsMismatchedPasswordsLocally(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request should reach the server on local validation failure")
	}))
	defer server.Close()

	key := make([]byte, 32)
	rand.Read(key)
	sess := New(filepath.Join(t.TempDir(), "session.bin"), key)
	auth := NewAuthenticator(api.NewClient(server.URL, time.Second), sess)

	err := auth.SignUp(context.Background(), SignUpRequest{
		Username: "bob", Email: "bob@example.com", Password: "one", VerifyPassword: "two",
	})
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
}

func TestSignUpSucceedsOn201(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	key := make([]byte, 32)
	rand.Read(key)
	sess := New(filepath.Join(t.TempDir(), "session.bin"), key)
	auth := NewAuthenticator(api.NewClient(server.URL, time.Second), sess)

	if err := auth.SignUp(context.Background(), SignUpRequest{
		Username: "bob", Email: "bob@example.com", Password: "pw", VerifyPassword: "pw",
	}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if gotBody["username"] != "bob" || gotBody["email"] != "bob@example.com" {
		t.Fatalf("unexpected sign-up body: %+v", gotBody)
	}
	if _, present := gotBody["profile_pic"]; present {
		t.Fatalf("blank profile picture should be omitted: %+v", gotBody)
	}
	if _, _, ok := sess.Current(); ok {
		t.Fatalf("expected sign-up to leave session logged out")
	}
}

func TestSignUpSendsProfilePicture(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	key := make([]byte, 32)
	rand.Read(key)
	sess := New(filepath.Join(t.TempDir(), "session.bin"), key)
	auth := NewAuthenticator(api.NewClient(server.URL, time.Second), sess)

	pic := "data:image/png;base64,aGVsbG8="
	if err := auth.SignUp(context.Background(), SignUpRequest{
		Username: "bob", Email: "bob@example.com", Password: "pw", VerifyPassword: "pw",
		ProfilePic: pic,
	}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if gotBody["profile_pic"] != pic {
		t.Fatalf("profile picture not forwarded: %+v", gotBody)
	}
}

func TestUpdateProfileMergesAndPersists(t *testing.T) {
	var gotBody map[string]any
	token := signTestToken(t, "u1")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/u1/update" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{
			"_id": "u1", "username": "alice2", "email": "alice@example.com", "status": "away",
		})
	}))
	defer server.Close()

	key := make([]byte, 32)
	rand.Read(key)
	sess := New(filepath.Join(t.TempDir(), "session.bin"), key)
	alice := models.User{ID: "u1", Username: "alice", Email: "alice@example.com"}
	if err := sess.Save(&alice, token); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	auth := NewAuthenticator(api.NewClient(server.URL, time.Second), sess)
	updated, err := auth.UpdateProfile(context.Background(), ProfileUpdate{Username: "alice2", Status: "away"})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}

	if _, present := gotBody["password"]; present {
		t.Fatalf("expected blank password to be omitted, got %+v", gotBody)
	}
	if _, present := gotBody["email"]; present {
		t.Fatalf("expected empty email to be omitted, got %+v", gotBody)
	}
	if updated.Username != "alice2" || updated.Status != "away" {
		t.Fatalf("unexpected updated user: %+v", updated)
	}

	got, _, ok := sess.Current()
	if !ok || got.Username != "alice2" {
		t.Fatalf("expected session user to be refreshed, got %+v", got)
	}
}
