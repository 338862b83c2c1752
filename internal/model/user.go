package model

import "time"

// User represents a user in the database.
type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Token maps an opaque bearer string to its user. Tokens never expire.
type Token struct {
	Token     string    `db:"token"`
	UserID    string    `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}

// SignupRequest represents a POST /api/auth/signup body.
type SignupRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	InviteCode string `json:"inviteCode"`
}

// LoginRequest represents a POST /api/auth/login body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest represents a POST /api/auth/change-password body.
type ChangePasswordRequest struct {
	Email           string `json:"email"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ResetPasswordRequest represents a POST /api/auth/reset-password body.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
	InviteCode  string `json:"inviteCode"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
	Token   string `json:"token"`
}

// StatusResponse is the body of endpoints that only report success.
type StatusResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is the envelope of every failed API call.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	// Offline is set only on responses synthesized by the offline worker.
	Offline bool `json:"offline,omitempty"`
}
