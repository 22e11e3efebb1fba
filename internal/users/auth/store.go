// Copyright (c) 2026 NoteHub. All rights reserved.

package auth

import (
	"context"
)

// # User Data Access

// UserRepository defines the data access contract for user accounts.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByIdentifier returns the account whose username OR email matches
		the given identifier.

		Parameters:
		  - context: context.Context
		  - identifier: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByIdentifier(context context.Context, identifier string) (*User, error)

	/*
		Create persists a brand-new user account, optionally consuming an
		invitation in the same transaction. If invitationToken is non-empty and
		cannot be consumed (missing, expired, or already used), the account is
		not created.

		Parameters:
		  - context: context.Context
		  - user: *User
		  - invitationToken: string (empty for open registration)

		Returns:
		  - error: DUPLICATE_IDENTITY on unique violations, token lifecycle
		    errors, or persistence failures
	*/
	Create(context context.Context, user *User, invitationToken string) error

	/*
		UpdateProfile persists changes to mutable profile fields (email, theme, bio).

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: Persistence failures
	*/
	UpdateProfile(context context.Context, user *User) error

	/*
		UpdatePassword replaces only the user's password hash.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - newHash: string

		Returns:
		  - error: Persistence failures
	*/
	UpdatePassword(context context.Context, userID, newHash string) error

	/*
		UpdateTOTPSecret replaces the user's second-factor seed. An empty
		secret disables the second factor.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - secret: string

		Returns:
		  - error: Persistence failures
	*/
	UpdateTOTPSecret(context context.Context, userID, secret string) error

	/*
		UpdateLastLogin stamps the account's last successful authentication.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	UpdateLastLogin(context context.Context, userID string) error

	/*
		Count returns the total number of registered accounts.

		Parameters:
		  - context: context.Context

		Returns:
		  - int64: Account count
		  - error: Database retrieval failures
	*/
	Count(context context.Context) (int64, error)
}

// # Single-Use Token Ledger

// LedgerRepository defines the data access contract for the single-use token
// ledger (password resets and invitations).
//
// # Invariants
//
// Mutations that must be atomic (supersede-on-issue, consume-and-set-password)
// run inside a single database transaction in the implementation.
type LedgerRepository interface {

	/*
		CreateReset persists a new reset token and, in the same transaction,
		marks every outstanding unused reset for the same user as used.

		Parameters:
		  - context: context.Context
		  - reset: *PasswordResetToken

		Returns:
		  - error: Persistence failures
	*/
	CreateReset(context context.Context, reset *PasswordResetToken) error

	/*
		FindReset returns the reset row for the given opaque token, used or not.
		Validity is the caller's judgment; this is a read-only redemption check.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - *PasswordResetToken: Hydrated entity
		  - error: TOKEN_NOT_FOUND or database retrieval failures
	*/
	FindReset(context context.Context, token string) (*PasswordResetToken, error)

	/*
		ConsumeResetAndSetPassword atomically marks the reset as used and
		replaces the owning user's password hash. The mark uses a guarded
		UPDATE (used = FALSE predicate); losing a race surfaces as
		TOKEN_ALREADY_USED and leaves the password untouched.

		Parameters:
		  - context: context.Context
		  - token: string
		  - newHash: string

		Returns:
		  - string: UserID of the account whose password changed
		  - error: Token lifecycle errors or persistence failures
	*/
	ConsumeResetAndSetPassword(context context.Context, token, newHash string) (string, error)

	/*
		CreateInvitation persists a new invitation token.

		Parameters:
		  - context: context.Context
		  - invitation: *Invitation

		Returns:
		  - error: Persistence failures
	*/
	CreateInvitation(context context.Context, invitation *Invitation) error

	/*
		FindInvitation returns the invitation row for the given opaque token,
		used or not.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - *Invitation: Hydrated entity
		  - error: TOKEN_NOT_FOUND or database retrieval failures
	*/
	FindInvitation(context context.Context, token string) (*Invitation, error)
}
