package models

import (
	"time"

	"gorm.io/datatypes"
)

// User is a learner account. TotalPoints only moves through atomic increments.
type User struct {
	ID           string     `gorm:"primaryKey;size:64" json:"id"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	DisplayName  string     `gorm:"not null" json:"display_name"`
	TotalPoints  int        `gorm:"not null;default:0" json:"total_points"`
	IsAdmin      bool       `gorm:"not null" json:"is_admin"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// Role is the authoritative admin flag, keyed by user id.
// users.is_admin mirrors it for listing.
type Role struct {
	UserID    string    `gorm:"primaryKey;size:64" json:"user_id"`
	IsAdmin   bool      `gorm:"not null;index" json:"is_admin"`
	UpdatedBy string    `gorm:"size:64" json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AdminAudit records every role change.
type AdminAudit struct {
	ID        string         `gorm:"primaryKey;size:64" json:"id"`
	ActorID   string         `gorm:"size:64;not null;index" json:"actor_id"`
	TargetID  string         `gorm:"size:64;not null;index" json:"target_id"`
	Action    string         `gorm:"size:16;not null" json:"action"`
	Details   datatypes.JSON `json:"details"`
	CreatedAt time.Time      `json:"created_at"`
}

const (
	ActionPromote = "promote"
	ActionDemote  = "demote"
)

// RegisterRequest is the request body for creating an account
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email,max=255"`
	Password    string `json:"password" binding:"required,min=8,max=128"`
	DisplayName string `json:"display_name" binding:"required,min=1,max=64"`
}

// LoginRequest is the request body for email/password login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UserResponse is the public view of a user
type UserResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name"`
	TotalPoints int    `json:"total_points"`
	IsAdmin     bool   `json:"is_admin"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// AuthState is one element of the auth-state stream.
type AuthState struct {
	UserID        string    `json:"user_id"`
	DisplayName   string    `json:"display_name,omitempty"`
	Authenticated bool      `json:"authenticated"`
	At            time.Time `json:"at"`
}

// Public is the listing shape used by leaderboards and the admin panel.
type Public struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	TotalPoints int    `json:"total_points"`
	IsAdmin     bool   `json:"is_admin"`
}

func (u *User) Response() UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		TotalPoints: u.TotalPoints,
		IsAdmin:     u.IsAdmin,
	}
}
