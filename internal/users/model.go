package users

import "time"

// User is an account that owns documents.
type User struct {
	ID           string
	Name         string
	Email        string
	Image        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the account can sign in with credentials.
func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Profile is the identity returned by an OAuth provider.
type Profile struct {
	Provider string
	Email    string
	Name     string
	Image    string
}

// PublicUser is the JSON shape returned to clients.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}

func toPublic(u User) PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Image: u.Image}
}
