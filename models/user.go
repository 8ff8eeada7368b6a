package models

import "strings"

// User is the server representation of an account.
type User struct {
	ID         string `json:"_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Status     string `json:"status"`
	ProfilePic string `json:"profile_pic"`
}

// DisplayName returns the best available human-readable identity.
func (u User) DisplayName() string {
	if strings.TrimSpace(u.Username) != "" {
		return u.Username
	}
	if strings.TrimSpace(u.Email) != "" {
		return u.Email
	}
	return u.ID
}
