// Copyright (c) 2026 NoteHub. All rights reserved.

/*
Core identity and access management for NoteHub.

The service orchestrates registration, the staged login flow, bearer token
issuance, and the single-use token lifecycle (password resets, invitations).

Architecture:

  - Service: Orchestrates business logic (Register, Login, Second Factor).
  - Repository: Abstracted interfaces for Postgres (Users, Ledger).
  - Security: Bcrypt hashing, HS256 JWTs, TOTP second factor.

The service ensures that identity data remains consistent and secure
throughout the platform's lifecycle.
*/
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/notehub/notehub/internal/platform/apperr"
	"github.com/notehub/notehub/internal/platform/sec"
	"github.com/notehub/notehub/pkg/uuid"
)

// # Contracts & Types

// TokenProvider defines the contract for minting and verifying bearer tokens.
type TokenProvider interface {
	// Issue creates a signed JWT of the given type for the user.
	Issue(userID string, tokenType sec.TokenType, timeToLive time.Duration) (string, error)

	// VerifyAccess validates a token and enforces the access type.
	VerifyAccess(tokenString string) (*sec.TokenClaims, error)

	// Refresh exchanges a valid refresh token for a new access token.
	Refresh(refreshToken string, accessTTL time.Duration) (string, error)
}

// Service implements user authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, registration,
// or login logic must be reviewed carefully.
type Service struct {
	userRepository   UserRepository
	ledgerRepository LedgerRepository
	tokenProvider    TokenProvider
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(
	userRepo UserRepository,
	ledgerRepo LedgerRepository,
	tokenProv TokenProvider,
) *Service {
	return &Service{
		userRepository:   userRepo,
		ledgerRepository: ledgerRepo,
		tokenProvider:    tokenProv,
	}
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	InvitationToken string
}

/*
Register validates, hashes, and persists a brand new user account.

Description: Enforces the password policy, hashes the credential, and inserts
the account. The database unique constraint is the final arbiter for duplicate
identities under concurrent registration, never a prior lookup. An invitation
token, when supplied, is checked read-only first (fast feedback) and then
consumed inside the same transaction as the insert.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *User: Created entity
  - error: DUPLICATE_IDENTITY, token lifecycle errors, or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*User, error) {

	// The policy runs before any hashing so a rejected password never costs a
	// bcrypt round.
	if err := sec.EnforcePolicy(input.Password); err != nil {
		return nil, err
	}

	// Redeem (read-only) check: friendly failure before the transaction. The
	// guarded consume inside Create remains authoritative under races.
	if input.InvitationToken != "" {
		if err := service.ValidateInvitation(context, input.InvitationToken); err != nil {
			return nil, err
		}
	}

	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	// Construct the new User entity. Time-sortable ID to prevent PG index fragmentation.
	user := &User{
		ID:           uuid.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hashedPassword,
	}

	// Persist the user, consuming the invitation in the same transaction.
	if err := service.userRepository.Create(context, user, input.InvitationToken); err != nil {
		return nil, err
	}

	return user, nil
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Identifier string // Username or Email
	Password   string
	TOTPCode   string
}

// TokenPair represents a successfully issued set of bearer tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // Access token lifetime in seconds.
	User         *User
}

/*
Login drives the full credential + second-factor state machine in one call.

Description: Verifies identity with a constant-time password comparison, then
challenges the second factor if the account is enrolled. An enrolled account
submitting no code receives SECOND_FACTOR_REQUIRED, a distinct signal from
INVALID_CREDENTIALS that only ever fires after the password stage has passed.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *TokenPair: Transport-ready bearer tokens
  - error: INVALID_CREDENTIALS, SECOND_FACTOR_REQUIRED, INVALID_SECOND_FACTOR,
    or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*TokenPair, error) {
	user, err := service.authenticate(context, input.Identifier, input.Password)
	if err != nil {
		return nil, err
	}

	// Second-factor stage. Only reachable once the password stage has passed.
	if user.SecondFactorEnrolled() {
		if input.TOTPCode == "" {
			return nil, apperr.SecondFactorRequired()
		}
		if !sec.VerifyTOTP(user.TOTPSecret, input.TOTPCode) {
			return nil, apperr.InvalidSecondFactor()
		}
	}

	return service.issueTokens(context, user)
}

/*
BeginInteractiveLogin runs the password stage of an interactive (cookie) login.

Description: Phase one of the two-phase interactive flow. When the account is
enrolled in a second factor, the caller must park the attempt behind a pending
marker and challenge the client; no session exists yet and last_login_at is
not stamped.

Parameters:
  - context: context.Context
  - identifier: string
  - password: string

Returns:
  - *User: The authenticated principal
  - bool: true when a second-factor challenge is still required
  - error: INVALID_CREDENTIALS or storage failures
*/
func (service *Service) BeginInteractiveLogin(context context.Context, identifier, password string) (*User, bool, error) {
	user, err := service.authenticate(context, identifier, password)
	if err != nil {
		return nil, false, err
	}

	if user.SecondFactorEnrolled() {
		return user, true, nil
	}

	if err := service.stampLogin(context, user); err != nil {
		return nil, false, err
	}

	return user, false, nil
}

/*
CompleteSecondFactor runs the second phase of an interactive login.

Description: Verifies the TOTP code for a principal parked behind a pending
marker and stamps the successful login.

Parameters:
  - context: context.Context
  - userID: string
  - code: string

Returns:
  - *User: The fully authenticated principal
  - error: INVALID_SECOND_FACTOR or storage failures
*/
func (service *Service) CompleteSecondFactor(context context.Context, userID, code string) (*User, error) {
	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return nil, apperr.InvalidCredentials()
	}

	if !user.SecondFactorEnrolled() || !sec.VerifyTOTP(user.TOTPSecret, code) {
		return nil, apperr.InvalidSecondFactor()
	}

	if err := service.stampLogin(context, user); err != nil {
		return nil, err
	}

	return user, nil
}

// authenticate resolves the identifier and verifies the password.
//
// A missing account and a wrong password collapse into the uniform
// INVALID_CREDENTIALS so responses cannot be used for username enumeration.
func (service *Service) authenticate(context context.Context, identifier, password string) (*User, error) {
	user, err := service.userRepository.FindByIdentifier(context, identifier)
	if err != nil {
		// Only a missing account is a credential failure; storage errors keep
		// their own classification and status.
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, apperr.InvalidCredentials()
		}
		return nil, err
	}

	if !sec.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperr.InvalidCredentials()
	}

	return user, nil
}

// stampLogin records the successful authentication timestamp. Token or session
// issuance never proceeds without it.
func (service *Service) stampLogin(context context.Context, user *User) error {
	if err := service.userRepository.UpdateLastLogin(context, user.ID); err != nil {
		return fmt.Errorf("auth_service_stamp_login_failed: %w", err)
	}

	now := time.Now()
	user.LastLoginAt = &now
	return nil
}

// issueTokens stamps the login and mints the access/refresh pair.
func (service *Service) issueTokens(context context.Context, user *User) (*TokenPair, error) {
	if err := service.stampLogin(context, user); err != nil {
		return nil, err
	}

	accessToken, err := service.tokenProvider.Issue(user.ID, sec.TokenTypeAccess, AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_access_token_failed: %w", err)
	}

	refreshToken, err := service.tokenProvider.Issue(user.ID, sec.TokenTypeRefresh, RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_token_failed: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(AccessTokenTTL / time.Second),
		User:         user,
	}, nil
}

// # Token Exchange

/*
Refresh exchanges a valid refresh token for a new access token.

Description: The refresh token itself is returned unchanged; there is no
rotation and no server-side revocation list for bearer tokens.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - string: Fresh access token
  - error: TOKEN_EXPIRED or unauthorized failures
*/
func (service *Service) Refresh(context context.Context, refreshToken string) (string, error) {
	accessToken, err := service.tokenProvider.Refresh(refreshToken, AccessTokenTTL)
	if err != nil {
		return "", mapTokenError(err)
	}
	return accessToken, nil
}

/*
ValidateAccess verifies a bearer access token and resolves its principal.

Parameters:
  - context: context.Context
  - tokenString: string

Returns:
  - *User: The token's principal, freshly loaded from storage
  - error: TOKEN_EXPIRED or unauthorized failures
*/
func (service *Service) ValidateAccess(context context.Context, tokenString string) (*User, error) {
	claims, err := service.tokenProvider.VerifyAccess(tokenString)
	if err != nil {
		return nil, mapTokenError(err)
	}

	user, err := service.userRepository.FindByID(context, claims.UserID)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired token")
	}

	return user, nil
}

/*
Profile resolves a user ID into the full account entity.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *User: Hydrated account entity
  - error: Not found or storage failures
*/
func (service *Service) Profile(context context.Context, userID string) (*User, error) {
	return service.userRepository.FindByID(context, userID)
}

// mapTokenError translates codec sentinels into the client-facing taxonomy.
func mapTokenError(err error) error {
	switch {
	case err == nil:
		return nil
	case err == sec.ErrTokenExpired:
		return apperr.TokenExpired()
	case err == sec.ErrNotRefreshToken:
		return apperr.Unauthorized("Refresh token required")
	case err == sec.ErrNotAccessToken:
		return apperr.Unauthorized("Access token required")
	default:
		return apperr.Unauthorized("Invalid or expired token")
	}
}

// # Password Recovery

/*
RequestPasswordReset initiates the forgot-password flow.

Description: Issues a fresh single-use reset token, superseding any
outstanding one for the account in the same transaction. Accounts enrolled in
a second factor must pass a TOTP check before a token is issued, so a stolen
password alone cannot rotate the credential.

Parameters:
  - context: context.Context
  - username: string
  - totpCode: string (required only for enrolled accounts)

Returns:
  - string: The opaque reset token ("" when the account does not exist)
  - error: Second-factor or storage failures
*/
func (service *Service) RequestPasswordReset(context context.Context, username, totpCode string) (string, error) {
	// NOTE: A missing account yields an empty token and no error to prevent
	// user enumeration; the handler responds with a generic message either way.
	// Storage failures are not masked by that behavior.
	user, err := service.userRepository.FindByIdentifier(context, username)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return "", nil
		}
		return "", err
	}

	if user.SecondFactorEnrolled() {
		if totpCode == "" {
			return "", apperr.SecondFactorRequired()
		}
		if !sec.VerifyTOTP(user.TOTPSecret, totpCode) {
			return "", apperr.InvalidSecondFactor()
		}
	}

	token, err := sec.GenerateSecureToken(ResetTokenLength)
	if err != nil {
		return "", fmt.Errorf("auth_service_generate_reset_token_failed: %w", err)
	}

	reset := &PasswordResetToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(ResetTokenTTL),
	}

	if err := service.ledgerRepository.CreateReset(context, reset); err != nil {
		return "", err
	}

	return token, nil
}

/*
ResetPassword completes the forgot-password flow.

Description: Enforces the password policy, then consumes the token and rotates
the password hash in one transaction. A policy failure leaves the token
unconsumed and the stored hash untouched.

Parameters:
  - context: context.Context
  - token: string
  - newPassword: string

Returns:
  - error: Policy, token lifecycle, or storage failures
*/
func (service *Service) ResetPassword(context context.Context, token, newPassword string) error {
	if err := sec.EnforcePolicy(newPassword); err != nil {
		return err
	}

	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_reset_password_hash_failed: %w", err)
	}

	if _, err := service.ledgerRepository.ConsumeResetAndSetPassword(context, token, hashedPassword); err != nil {
		return err
	}

	return nil
}

/*
ValidateReset performs a read-only redemption check on a reset token.

Description: Redeeming is not consuming. This reports the precise lifecycle
state (missing, expired, already used) without mutating the ledger.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - error: nil when the token is live, otherwise the lifecycle error
*/
func (service *Service) ValidateReset(context context.Context, token string) error {
	reset, err := service.ledgerRepository.FindReset(context, token)
	if err != nil {
		return err
	}

	if reset.Used {
		return apperr.TokenAlreadyUsed()
	}
	if !time.Now().Before(reset.ExpiresAt) {
		return apperr.TokenExpired()
	}
	return nil
}

// # Invitations

/*
CreateInvitation issues a single-use invitation token.

Parameters:
  - context: context.Context
  - createdBy: string (inviting account's ID)
  - email: string (optional, informational)
  - message: string (optional, informational)

Returns:
  - *Invitation: The persisted invitation, Token populated
  - error: Generation or storage failures
*/
func (service *Service) CreateInvitation(context context.Context, createdBy, email, message string) (*Invitation, error) {
	token, err := sec.GenerateSecureToken(InvitationTokenLength)
	if err != nil {
		return nil, fmt.Errorf("auth_service_generate_invitation_failed: %w", err)
	}

	invitation := &Invitation{
		ID:        uuid.New(),
		Token:     token,
		Email:     email,
		Message:   message,
		CreatedBy: createdBy,
		ExpiresAt: time.Now().Add(InvitationTTL),
	}

	if err := service.ledgerRepository.CreateInvitation(context, invitation); err != nil {
		return nil, err
	}

	return invitation, nil
}

/*
ValidateInvitation performs a read-only redemption check on an invitation token.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - error: nil when the token is live, otherwise the lifecycle error
*/
func (service *Service) ValidateInvitation(context context.Context, token string) error {
	invitation, err := service.ledgerRepository.FindInvitation(context, token)
	if err != nil {
		return err
	}

	if invitation.Used {
		return apperr.TokenAlreadyUsed()
	}
	if !time.Now().Before(invitation.ExpiresAt) {
		return apperr.TokenExpired()
	}
	return nil
}
