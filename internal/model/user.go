package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Auth providers. Local accounts carry a password hash; external accounts may
// not have one at all.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// Roles assignable to a user.
const (
	RoleStudent     = "student"
	RoleContributor = "contributor"
	RoleAdmin       = "admin"
)

// Account statuses. Only active accounts may log in or hold a session.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusBanned    = "banned"
)

// User represents a user account. Session state is embedded in the same
// document as the profile; there is no separate session collection.
type User struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Name         string        `bson:"name"`
	Email        string        `bson:"email"`
	PasswordHash string        `bson:"password_hash,omitempty"`
	Provider     string        `bson:"provider"`
	ProviderID   string        `bson:"provider_id,omitempty"`
	AvatarURL    string        `bson:"avatar_url,omitempty"`
	Bio          string        `bson:"bio,omitempty"`
	Role         string        `bson:"role"`
	Status       string        `bson:"status"`

	EmailVerified         bool      `bson:"email_verified"`
	VerifyTokenHash       string    `bson:"verify_token_hash,omitempty"`
	VerifyTokenExpiresAt  time.Time `bson:"verify_token_expires_at,omitempty"`
	ResetTokenHash        string    `bson:"reset_token_hash,omitempty"`
	ResetTokenExpiresAt   time.Time `bson:"reset_token_expires_at,omitempty"`

	RefreshSessions RefreshSessionList `bson:"refresh_sessions"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// PublicProfile is the client-facing view of a user. It never carries the
// password hash or any token material.
type PublicProfile struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	Bio           string    `json:"bio,omitempty"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PublicProfile returns the client-facing view of the user.
func (u *User) PublicProfile() PublicProfile {
	return PublicProfile{
		ID:            u.ID.Hex(),
		Name:          u.Name,
		Email:         u.Email,
		AvatarURL:     u.AvatarURL,
		Bio:           u.Bio,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}
