// Copyright (c) 2026 NoteHub. All rights reserved.

package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notehub/notehub/internal/platform/apperr"
	"github.com/notehub/notehub/internal/platform/sec"
	"github.com/notehub/notehub/internal/users/auth"
)

const strongPassword = "Str0ng!Pass#2025"

// # In-Memory Fakes

// memoryStore implements both auth.UserRepository and auth.LedgerRepository
// with the same guarded-mutation semantics as the PostgreSQL implementation.
type memoryStore struct {
	mu          sync.Mutex
	users       map[string]*auth.User
	resets      map[string]*auth.PasswordResetToken
	invitations map[string]*auth.Invitation

	failLastLogin bool
	findErr       error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:       make(map[string]*auth.User),
		resets:      make(map[string]*auth.PasswordResetToken),
		invitations: make(map[string]*auth.Invitation),
	}
}

func (store *memoryStore) FindByID(_ context.Context, id string) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if user, ok := store.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, apperr.NotFound("User")
}

func (store *memoryStore) FindByIdentifier(_ context.Context, identifier string) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.findErr != nil {
		return nil, store.findErr
	}

	for _, user := range store.users {
		if user.Username == identifier || (user.Email != "" && user.Email == identifier) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (store *memoryStore) Create(_ context.Context, user *auth.User, invitationToken string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	// The unique constraint is the final arbiter, exactly as in Postgres.
	for _, existing := range store.users {
		if existing.Username == user.Username || (user.Email != "" && existing.Email == user.Email) {
			return apperr.DuplicateIdentity("Username or email is already registered")
		}
	}

	// Consume the invitation inside the same critical section, so losing the
	// race leaves no account behind.
	if invitationToken != "" {
		invitation, ok := store.invitations[invitationToken]
		if !ok {
			return apperr.TokenNotFound()
		}
		if invitation.Used {
			return apperr.TokenAlreadyUsed()
		}
		if !time.Now().Before(invitation.ExpiresAt) {
			return apperr.TokenExpired()
		}
		invitation.Used = true
		invitation.UsedBy = user.ID
	}

	clone := *user
	store.users[user.ID] = &clone
	return nil
}

func (store *memoryStore) UpdateProfile(_ context.Context, user *auth.User) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	stored, ok := store.users[user.ID]
	if !ok {
		return apperr.NotFound("User")
	}
	stored.Email = user.Email
	stored.Theme = user.Theme
	stored.Bio = user.Bio
	return nil
}

func (store *memoryStore) UpdatePassword(_ context.Context, userID, newHash string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if stored, ok := store.users[userID]; ok {
		stored.PasswordHash = newHash
		return nil
	}
	return apperr.NotFound("User")
}

func (store *memoryStore) UpdateTOTPSecret(_ context.Context, userID, secret string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if stored, ok := store.users[userID]; ok {
		stored.TOTPSecret = secret
		return nil
	}
	return apperr.NotFound("User")
}

func (store *memoryStore) UpdateLastLogin(_ context.Context, userID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.failLastLogin {
		return apperr.StorageUnavailable(context.DeadlineExceeded)
	}

	if stored, ok := store.users[userID]; ok {
		now := time.Now()
		stored.LastLoginAt = &now
		return nil
	}
	return apperr.NotFound("User")
}

func (store *memoryStore) Count(_ context.Context) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	return int64(len(store.users)), nil
}

func (store *memoryStore) CreateReset(_ context.Context, reset *auth.PasswordResetToken) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	// Supersede every outstanding unused reset for the same user.
	for _, existing := range store.resets {
		if existing.UserID == reset.UserID && !existing.Used {
			existing.Used = true
		}
	}

	clone := *reset
	store.resets[reset.Token] = &clone
	return nil
}

func (store *memoryStore) FindReset(_ context.Context, token string) (*auth.PasswordResetToken, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if reset, ok := store.resets[token]; ok {
		clone := *reset
		return &clone, nil
	}
	return nil, apperr.TokenNotFound()
}

func (store *memoryStore) ConsumeResetAndSetPassword(_ context.Context, token, newHash string) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	reset, ok := store.resets[token]
	if !ok {
		return "", apperr.TokenNotFound()
	}
	if reset.Used {
		return "", apperr.TokenAlreadyUsed()
	}
	if !time.Now().Before(reset.ExpiresAt) {
		return "", apperr.TokenExpired()
	}

	reset.Used = true
	if stored, ok := store.users[reset.UserID]; ok {
		stored.PasswordHash = newHash
	}
	return reset.UserID, nil
}

func (store *memoryStore) CreateInvitation(_ context.Context, invitation *auth.Invitation) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	clone := *invitation
	store.invitations[invitation.Token] = &clone
	return nil
}

func (store *memoryStore) FindInvitation(_ context.Context, token string) (*auth.Invitation, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if invitation, ok := store.invitations[token]; ok {
		clone := *invitation
		return &clone, nil
	}
	return nil, apperr.TokenNotFound()
}

// # Test Harness

func newService(t *testing.T) (*auth.Service, *memoryStore) {
	t.Helper()

	store := newMemoryStore()
	codec, err := sec.NewTokenCodec("service-test-secret", "notehub.test")
	require.NoError(t, err)

	return auth.NewService(store, store, codec), store
}

func registerUser(t *testing.T, service *auth.Service, username string) *auth.User {
	t.Helper()

	user, err := service.Register(context.Background(), auth.RegisterInput{
		Username: username,
		Password: strongPassword,
	})
	require.NoError(t, err)
	return user
}

func enrollSecondFactor(t *testing.T, store *memoryStore, userID string) string {
	t.Helper()

	secret, err := sec.GenerateTOTPSecret()
	require.NoError(t, err)
	require.NoError(t, store.UpdateTOTPSecret(context.Background(), userID, secret))
	return secret
}

// # Registration

/*
TestService_Register covers the happy path and the policy gate.
*/
func TestService_Register(t *testing.T) {
	service, _ := newService(t)

	user := registerUser(t, service, "alice")
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, strongPassword, user.PasswordHash)

	// Weak passwords are rejected before any persistence.
	_, err := service.Register(context.Background(), auth.RegisterInput{
		Username: "bob",
		Password: "short",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.As(err).Code)
}

/*
TestService_Register_DuplicateIdentity verifies the duplicate translation and
that under concurrent registration exactly one attempt wins.
*/
func TestService_Register_DuplicateIdentity(t *testing.T) {
	service, _ := newService(t)
	registerUser(t, service, "alice")

	_, err := service.Register(context.Background(), auth.RegisterInput{
		Username: "alice",
		Password: strongPassword,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeDuplicateIdentity, apperr.As(err).Code)

	// Concurrent race on a fresh username: exactly one winner.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = service.Register(context.Background(), auth.RegisterInput{
				Username: "carol",
				Password: strongPassword,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.Equal(t, apperr.CodeDuplicateIdentity, apperr.As(err).Code)
		}
	}
	assert.Equal(t, 1, succeeded)
}

/*
TestService_Register_WithInvitation verifies single-use invitation semantics:
the first registration consumes the token, the second fails without creating
an account.
*/
func TestService_Register_WithInvitation(t *testing.T) {
	service, store := newService(t)
	inviter := registerUser(t, service, "alice")

	invitation, err := service.CreateInvitation(context.Background(), inviter.ID, "friend@notehub.app", "join me")
	require.NoError(t, err)
	require.NotEmpty(t, invitation.Token)

	first, err := service.Register(context.Background(), auth.RegisterInput{
		Username:        "bob",
		Password:        strongPassword,
		InvitationToken: invitation.Token,
	})
	require.NoError(t, err)

	stored, err := store.FindInvitation(context.Background(), invitation.Token)
	require.NoError(t, err)
	assert.True(t, stored.Used)
	assert.Equal(t, first.ID, stored.UsedBy)

	_, err = service.Register(context.Background(), auth.RegisterInput{
		Username:        "carol",
		Password:        strongPassword,
		InvitationToken: invitation.Token,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTokenAlreadyUsed, apperr.As(err).Code)

	_, err = store.FindByIdentifier(context.Background(), "carol")
	assert.Error(t, err)
}

/*
TestService_Register_UnknownInvitation verifies a bogus token is rejected
up front.
*/
func TestService_Register_UnknownInvitation(t *testing.T) {
	service, _ := newService(t)

	_, err := service.Register(context.Background(), auth.RegisterInput{
		Username:        "bob",
		Password:        strongPassword,
		InvitationToken: "bogus",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTokenNotFound, apperr.As(err).Code)
}

// # Login State Machine

/*
TestService_Login_NoSecondFactor covers the single-stage path: valid
credentials on an unenrolled account yield a bearer pair and stamp the login.
*/
func TestService_Login_NoSecondFactor(t *testing.T) {
	service, store := newService(t)
	registerUser(t, service, "alice")

	pair, err := service.Login(context.Background(), auth.LoginInput{
		Identifier: "alice",
		Password:   strongPassword,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64((24*time.Hour)/time.Second), pair.ExpiresIn)
	assert.NotNil(t, pair.User.LastLoginAt)

	stored, err := store.FindByIdentifier(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)
}

/*
TestService_Login_InvalidCredentials verifies unknown users and wrong
passwords collapse into the same low-information error.
*/
func TestService_Login_InvalidCredentials(t *testing.T) {
	service, _ := newService(t)
	registerUser(t, service, "alice")

	tests := []struct {
		name       string
		identifier string
		password   string
	}{
		{"unknown_user", "nobody", strongPassword},
		{"wrong_password", "alice", "Wr0ng!Pass#2025"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Login(context.Background(), auth.LoginInput{
				Identifier: tt.identifier,
				Password:   tt.password,
			})
			require.Error(t, err)
			assert.Equal(t, apperr.CodeInvalidCredentials, apperr.As(err).Code)
		})
	}
}

/*
TestService_Login_StorageFailureKeepsItsCode verifies an infrastructure
failure during the account lookup surfaces with its own classification instead
of masquerading as a credential rejection.
*/
func TestService_Login_StorageFailureKeepsItsCode(t *testing.T) {
	service, store := newService(t)
	registerUser(t, service, "alice")

	tests := []struct {
		name     string
		failure  error
		wantCode string
	}{
		{"internal", apperr.Internal(errors.New("connection refused")), "INTERNAL_ERROR"},
		{"storage_unavailable", apperr.StorageUnavailable(context.DeadlineExceeded), apperr.CodeStorageUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.findErr = tt.failure
			defer func() { store.findErr = nil }()

			_, err := service.Login(context.Background(), auth.LoginInput{
				Identifier: "alice",
				Password:   strongPassword,
			})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperr.As(err).Code)
		})
	}
}

/*
TestService_Login_SecondFactor drives the full two-stage machine: enrolled
account without a code gets the distinct challenge signal, a wrong code is
rejected, and a valid code completes in one round trip.
*/
func TestService_Login_SecondFactor(t *testing.T) {
	service, store := newService(t)
	user := registerUser(t, service, "alice")
	secret := enrollSecondFactor(t, store, user.ID)

	// Stage: enrolled, no code. The challenge signal only fires after the
	// password stage has passed.
	_, err := service.Login(context.Background(), auth.LoginInput{
		Identifier: "alice",
		Password:   strongPassword,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeSecondFactorRequired, apperr.As(err).Code)

	// A wrong password must NOT reveal enrollment.
	_, err = service.Login(context.Background(), auth.LoginInput{
		Identifier: "alice",
		Password:   "Wr0ng!Pass#2025",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidCredentials, apperr.As(err).Code)

	// Stage: wrong code.
	_, err = service.Login(context.Background(), auth.LoginInput{
		Identifier: "alice",
		Password:   strongPassword,
		TOTPCode:   "000000",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidSecondFactor, apperr.As(err).Code)

	// Stage: valid code completes the machine.
	code, err := sec.GenerateTOTPCode(secret, time.Now())
	require.NoError(t, err)

	pair, err := service.Login(context.Background(), auth.LoginInput{
		Identifier: "alice",
		Password:   strongPassword,
		TOTPCode:   code,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
}

/*
TestService_Login_StampFailureBlocksIssuance verifies that tokens are never
issued when the last-login stamp cannot be persisted.
*/
func TestService_Login_StampFailureBlocksIssuance(t *testing.T) {
	service, store := newService(t)
	registerUser(t, service, "alice")
	store.failLastLogin = true

	_, err := service.Login(context.Background(), auth.LoginInput{
		Identifier: "alice",
		Password:   strongPassword,
	})
	assert.Error(t, err)
}

/*
TestService_InteractiveLogin covers both phases of the cookie flow.
*/
func TestService_InteractiveLogin(t *testing.T) {
	service, store := newService(t)
	user := registerUser(t, service, "alice")

	// Unenrolled: phase one completes immediately.
	resolved, pending, err := service.BeginInteractiveLogin(context.Background(), "alice", strongPassword)
	require.NoError(t, err)
	assert.False(t, pending)
	assert.Equal(t, user.ID, resolved.ID)
	assert.NotNil(t, resolved.LastLoginAt)

	// Enrolled: phase one parks the attempt without stamping the login.
	bob := registerUser(t, service, "bob")
	secret := enrollSecondFactor(t, store, bob.ID)

	resolved, pending, err = service.BeginInteractiveLogin(context.Background(), "bob", strongPassword)
	require.NoError(t, err)
	assert.True(t, pending)

	storedBob, err := store.FindByID(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Nil(t, storedBob.LastLoginAt)

	// Phase two rejects a wrong code.
	_, err = service.CompleteSecondFactor(context.Background(), resolved.ID, "000000")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidSecondFactor, apperr.As(err).Code)

	// Phase two completes with a valid code and stamps the login.
	code, err := sec.GenerateTOTPCode(secret, time.Now())
	require.NoError(t, err)

	completed, err := service.CompleteSecondFactor(context.Background(), resolved.ID, code)
	require.NoError(t, err)
	assert.NotNil(t, completed.LastLoginAt)
}

// # Token Exchange

/*
TestService_RefreshAndValidate covers the exchange contract end to end.
*/
func TestService_RefreshAndValidate(t *testing.T) {
	service, _ := newService(t)
	user := registerUser(t, service, "alice")

	pair, err := service.Login(context.Background(), auth.LoginInput{
		Identifier: "alice",
		Password:   strongPassword,
	})
	require.NoError(t, err)

	// Refresh mints a new access token for the same principal.
	accessToken, err := service.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	resolved, err := service.ValidateAccess(context.Background(), accessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)

	// An access token is not accepted where a refresh token is required.
	_, err = service.Refresh(context.Background(), pair.AccessToken)
	require.Error(t, err)

	// Garbage never validates.
	_, err = service.ValidateAccess(context.Background(), "not-a-token")
	assert.Error(t, err)
}

// # Password Recovery

/*
TestService_PasswordReset_EndToEnd drives the full recovery flow: request,
consume, login with the new password, and reuse rejection.
*/
func TestService_PasswordReset_EndToEnd(t *testing.T) {
	service, _ := newService(t)
	registerUser(t, service, "alice")

	token, err := service.RequestPasswordReset(context.Background(), "alice", "")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	const rotated = "N3w!Secret#2026x"
	require.NoError(t, service.ResetPassword(context.Background(), token, rotated))

	// Old password is dead, new one works.
	_, err = service.Login(context.Background(), auth.LoginInput{Identifier: "alice", Password: strongPassword})
	require.Error(t, err)

	_, err = service.Login(context.Background(), auth.LoginInput{Identifier: "alice", Password: rotated})
	require.NoError(t, err)

	// Re-submitting the consumed token is a distinct conflict.
	err = service.ResetPassword(context.Background(), token, "An0ther!Pass#27")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTokenAlreadyUsed, apperr.As(err).Code)
}

/*
TestService_PasswordReset_Supersede verifies issuing a second reset retires
the first, leaving at most one live token per account.
*/
func TestService_PasswordReset_Supersede(t *testing.T) {
	service, _ := newService(t)
	registerUser(t, service, "alice")

	first, err := service.RequestPasswordReset(context.Background(), "alice", "")
	require.NoError(t, err)
	second, err := service.RequestPasswordReset(context.Background(), "alice", "")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// The superseded token is dead.
	err = service.ResetPassword(context.Background(), first, "N3w!Secret#2026x")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTokenAlreadyUsed, apperr.As(err).Code)

	// The fresh one still works.
	assert.NoError(t, service.ResetPassword(context.Background(), second, "N3w!Secret#2026x"))
}

/*
TestService_PasswordReset_RedeemIsNotConsume verifies the read-only check
leaves the token live.
*/
func TestService_PasswordReset_RedeemIsNotConsume(t *testing.T) {
	service, _ := newService(t)
	registerUser(t, service, "alice")

	token, err := service.RequestPasswordReset(context.Background(), "alice", "")
	require.NoError(t, err)

	// Redeeming any number of times consumes nothing.
	require.NoError(t, service.ValidateReset(context.Background(), token))
	require.NoError(t, service.ValidateReset(context.Background(), token))

	assert.NoError(t, service.ResetPassword(context.Background(), token, "N3w!Secret#2026x"))
}

/*
TestService_PasswordReset_PolicyLeavesTokenLive verifies a policy rejection
does not burn the token or touch the stored hash.
*/
func TestService_PasswordReset_PolicyLeavesTokenLive(t *testing.T) {
	service, _ := newService(t)
	registerUser(t, service, "alice")

	token, err := service.RequestPasswordReset(context.Background(), "alice", "")
	require.NoError(t, err)

	err = service.ResetPassword(context.Background(), token, "weak")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.As(err).Code)

	// The token survived the rejected attempt and the old password still works.
	require.NoError(t, service.ValidateReset(context.Background(), token))
	_, err = service.Login(context.Background(), auth.LoginInput{Identifier: "alice", Password: strongPassword})
	assert.NoError(t, err)
}

/*
TestService_PasswordReset_SecondFactorGate verifies enrolled accounts must
pass a TOTP check before a reset token is issued.
*/
func TestService_PasswordReset_SecondFactorGate(t *testing.T) {
	service, store := newService(t)
	user := registerUser(t, service, "alice")
	secret := enrollSecondFactor(t, store, user.ID)

	_, err := service.RequestPasswordReset(context.Background(), "alice", "")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeSecondFactorRequired, apperr.As(err).Code)

	_, err = service.RequestPasswordReset(context.Background(), "alice", "000000")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidSecondFactor, apperr.As(err).Code)

	code, err := sec.GenerateTOTPCode(secret, time.Now())
	require.NoError(t, err)

	token, err := service.RequestPasswordReset(context.Background(), "alice", code)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

/*
TestService_PasswordReset_Expired verifies both the consume path and the
read-only check classify an expired token precisely.
*/
func TestService_PasswordReset_Expired(t *testing.T) {
	service, store := newService(t)
	user := registerUser(t, service, "alice")

	stale := &auth.PasswordResetToken{
		ID:        "reset-1",
		UserID:    user.ID,
		Token:     "stale-token",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, store.CreateReset(context.Background(), stale))

	err := service.ResetPassword(context.Background(), "stale-token", "N3w!Secret#2026x")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTokenExpired, apperr.As(err).Code)

	err = service.ValidateReset(context.Background(), "stale-token")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTokenExpired, apperr.As(err).Code)
}

/*
TestService_PasswordReset_UnknownAccount verifies the anti-enumeration
behavior: no error, no token.
*/
func TestService_PasswordReset_UnknownAccount(t *testing.T) {
	service, _ := newService(t)

	token, err := service.RequestPasswordReset(context.Background(), "nobody", "")
	require.NoError(t, err)
	assert.Empty(t, token)
}

/*
TestService_PasswordReset_StorageFailureSurfaces verifies the empty-token path
applies only to missing accounts; a failing lookup is reported as its own
error.
*/
func TestService_PasswordReset_StorageFailureSurfaces(t *testing.T) {
	service, store := newService(t)
	registerUser(t, service, "alice")
	store.findErr = apperr.Internal(errors.New("pool exhausted"))

	_, err := service.RequestPasswordReset(context.Background(), "alice", "")
	require.Error(t, err)
	assert.Equal(t, "INTERNAL_ERROR", apperr.As(err).Code)
}
