// Copyright (c) 2026 NoteHub. All rights reserved.

/*
Package auth implements the user identity and credential management layer.

It defines the core domain entities (User, PasswordResetToken, Invitation) and
the logic for authentication, second-factor verification, and the single-use
token lifecycle.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no external
dependencies and encapsulate all business rules related to user identity.
*/
package auth

import "time"

// # Domain Entities

// User represents a registered member of the NoteHub platform.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email,omitempty"`
	PasswordHash string     `json:"-"` // Explicitly omitted from JSON for security.
	TOTPSecret   string     `json:"-"` // Second-factor seed. Omitted for security.
	Theme        string     `json:"theme,omitempty"`
	Bio          string     `json:"bio,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// SecondFactorEnrolled reports whether the account has a TOTP secret on file.
func (user *User) SecondFactorEnrolled() bool {
	return user.TOTPSecret != ""
}

// Snapshot is the cached display view of an account, served from the session
// cache for interactive clients.
//
// # Security
//
// The snapshot is display-only. Authorization decisions never read it; the
// resolver and verifier always consult persistent storage directly.
type Snapshot struct {
	UserID               string `json:"user_id"`
	Username             string `json:"username"`
	Email                string `json:"email,omitempty"`
	Theme                string `json:"theme,omitempty"`
	Bio                  string `json:"bio,omitempty"`
	SecondFactorEnrolled bool   `json:"second_factor_enrolled"`
}

// NewSnapshot projects a User into its cacheable display view.
func NewSnapshot(user *User) *Snapshot {
	return &Snapshot{
		UserID:               user.ID,
		Username:             user.Username,
		Email:                user.Email,
		Theme:                user.Theme,
		Bio:                  user.Bio,
		SecondFactorEnrolled: user.SecondFactorEnrolled(),
	}
}

// PasswordResetToken is a persisted single-use credential for password recovery.
//
// Issuing a new reset for a user marks every outstanding unused reset for that
// user as used, so at most one live reset exists per account.
type PasswordResetToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"-"` // Opaque secret. Never serialized with the entity.
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"created_at"`
}

// Live reports whether the token can still be consumed at the given instant.
func (reset *PasswordResetToken) Live(now time.Time) bool {
	return !reset.Used && now.Before(reset.ExpiresAt)
}

// Invitation is a persisted single-use credential for invited registration.
type Invitation struct {
	ID        string    `json:"id"`
	Token     string    `json:"-"`
	Email     string    `json:"email,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedBy string    `json:"created_by"`
	UsedBy    string    `json:"used_by,omitempty"`
	Used      bool      `json:"used"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Live reports whether the invitation can still be consumed at the given instant.
func (invitation *Invitation) Live(now time.Time) bool {
	return !invitation.Used && now.Before(invitation.ExpiresAt)
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldToken           = "token"
	FieldTOTPCode        = "totp_code"
	FieldInvitationToken = "invitation_token"
	FieldRefreshToken    = "refresh_token"
	FieldAccessToken     = "access_token"
	FieldTokenType       = "token_type"
	FieldExpiresIn       = "expires_in"
	FieldUser            = "user"
	FieldMessage         = "message"
	FieldCode            = "code"
)
