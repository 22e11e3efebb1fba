// Copyright (c) 2026 NoteHub. All rights reserved.

package auth

import "time"

// # Authentication Constraints

const (
	// AccessTokenTTL is the duration a JWT access token remains valid.
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the duration a refresh token remains valid.
	// Long-lived (30 days) to provide a good user experience.
	RefreshTokenTTL = 30 * 24 * time.Hour

	// ResetTokenTTL is the duration a password reset token remains valid.
	// Short-lived (1 hour) for security.
	ResetTokenTTL = 1 * time.Hour

	// ResetTokenLength is the byte length of the random password reset token.
	ResetTokenLength = 32

	// InvitationTTL is the duration an invitation token remains valid.
	// Long-lived (7 days) as invitees might not register immediately.
	InvitationTTL = 7 * 24 * time.Hour

	// InvitationTokenLength is the byte length of the random invitation token.
	InvitationTokenLength = 32

	// PendingSecondFactorTTL bounds the window between the password stage and
	// the second-factor stage of an interactive login.
	PendingSecondFactorTTL = 5 * time.Minute

	// InteractiveSessionTTL is the lifetime of an interactive browser session.
	InteractiveSessionTTL = 24 * time.Hour
)
