// Copyright (c) 2026 NoteHub. All rights reserved.

package account_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notehub/notehub/internal/platform/apperr"
	"github.com/notehub/notehub/internal/platform/sec"
	"github.com/notehub/notehub/internal/users/account"
	"github.com/notehub/notehub/internal/users/auth"
)

const strongPassword = "Str0ng!Pass#2025"

// fakeUserRepo implements the subset of auth.UserRepository the account
// service exercises.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*auth.User
}

func newFakeUserRepo(users ...*auth.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*auth.User)}
	for _, user := range users {
		clone := *user
		repo.users[user.ID] = &clone
	}
	return repo
}

func (repo *fakeUserRepo) FindByID(_ context.Context, id string) (*auth.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if user, ok := repo.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, apperr.NotFound("User")
}

func (repo *fakeUserRepo) FindByIdentifier(_ context.Context, identifier string) (*auth.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, user := range repo.users {
		if user.Username == identifier {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repo *fakeUserRepo) Create(_ context.Context, user *auth.User, _ string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	clone := *user
	repo.users[user.ID] = &clone
	return nil
}

func (repo *fakeUserRepo) UpdateProfile(_ context.Context, user *auth.User) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	stored, ok := repo.users[user.ID]
	if !ok {
		return apperr.NotFound("User")
	}
	stored.Email = user.Email
	stored.Theme = user.Theme
	stored.Bio = user.Bio
	return nil
}

func (repo *fakeUserRepo) UpdatePassword(_ context.Context, userID, newHash string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if stored, ok := repo.users[userID]; ok {
		stored.PasswordHash = newHash
		return nil
	}
	return apperr.NotFound("User")
}

func (repo *fakeUserRepo) UpdateTOTPSecret(_ context.Context, userID, secret string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if stored, ok := repo.users[userID]; ok {
		stored.TOTPSecret = secret
		return nil
	}
	return apperr.NotFound("User")
}

func (repo *fakeUserRepo) UpdateLastLogin(_ context.Context, userID string) error { return nil }

func (repo *fakeUserRepo) Count(_ context.Context) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	return int64(len(repo.users)), nil
}

// recordingInvalidator counts cache invalidations per user.
type recordingInvalidator struct {
	mu    sync.Mutex
	calls []string
}

func (inv *recordingInvalidator) Invalidate(_ context.Context, userID string) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.calls = append(inv.calls, userID)
	return nil
}

func (inv *recordingInvalidator) count() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return len(inv.calls)
}

func newService(t *testing.T) (*account.Service, *fakeUserRepo, *recordingInvalidator) {
	t.Helper()

	hash, err := sec.HashPassword(strongPassword)
	require.NoError(t, err)

	repo := newFakeUserRepo(&auth.User{
		ID:           "user-1",
		Username:     "alice",
		Email:        "alice@notehub.app",
		PasswordHash: hash,
		Theme:        "light",
	})
	invalidator := &recordingInvalidator{}

	return account.NewService(repo, invalidator), repo, invalidator
}

/*
TestService_Update verifies partial updates touch only the provided fields and
invalidate the snapshot cache.
*/
func TestService_Update(t *testing.T) {
	service, repo, invalidator := newService(t)

	theme := "dark"
	updated, err := service.Update(context.Background(), "user-1", account.UpdateInput{Theme: &theme})
	require.NoError(t, err)

	assert.Equal(t, "dark", updated.Theme)
	assert.Equal(t, "alice@notehub.app", updated.Email) // untouched

	stored, err := repo.FindByID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "dark", stored.Theme)

	assert.Equal(t, 1, invalidator.count())
}

/*
TestService_ChangePassword covers the verify-then-rotate contract.
*/
func TestService_ChangePassword(t *testing.T) {
	service, repo, invalidator := newService(t)
	ctx := context.Background()

	// Wrong current password.
	err := service.ChangePassword(ctx, "user-1", "Wr0ng!Pass#2025", "N3w!Secret#2026x")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidCredentials, apperr.As(err).Code)

	// Weak replacement leaves the hash untouched.
	err = service.ChangePassword(ctx, "user-1", strongPassword, "weak")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.As(err).Code)

	before, err := repo.FindByID(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, sec.CheckPasswordHash(strongPassword, before.PasswordHash))
	assert.Equal(t, 0, invalidator.count())

	// Valid rotation.
	require.NoError(t, service.ChangePassword(ctx, "user-1", strongPassword, "N3w!Secret#2026x"))

	after, err := repo.FindByID(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, sec.CheckPasswordHash("N3w!Secret#2026x", after.PasswordHash))
	assert.Equal(t, 1, invalidator.count())
}

/*
TestService_SecondFactorLifecycle drives setup, enable (with proof of
possession), and disable.
*/
func TestService_SecondFactorLifecycle(t *testing.T) {
	service, repo, invalidator := newService(t)
	ctx := context.Background()

	enrollment, err := service.SetupSecondFactor(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.Secret)
	assert.Contains(t, enrollment.ProvisioningURI, "otpauth://totp/")

	// Setup persists nothing.
	stored, err := repo.FindByID(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, stored.SecondFactorEnrolled())

	// Enable requires a verifying code.
	err = service.EnableSecondFactor(ctx, "user-1", enrollment.Secret, "000000")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidSecondFactor, apperr.As(err).Code)

	code, err := sec.GenerateTOTPCode(enrollment.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, service.EnableSecondFactor(ctx, "user-1", enrollment.Secret, code))

	stored, err = repo.FindByID(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, stored.SecondFactorEnrolled())
	assert.Equal(t, 1, invalidator.count())

	// Disable requires a final code check.
	err = service.DisableSecondFactor(ctx, "user-1", "000000")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidSecondFactor, apperr.As(err).Code)

	code, err = sec.GenerateTOTPCode(enrollment.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, service.DisableSecondFactor(ctx, "user-1", code))

	stored, err = repo.FindByID(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, stored.SecondFactorEnrolled())
	assert.Equal(t, 2, invalidator.count())
}

/*
TestService_DisableSecondFactor_NotEnrolled verifies the validation guard.
*/
func TestService_DisableSecondFactor_NotEnrolled(t *testing.T) {
	service, _, _ := newService(t)

	err := service.DisableSecondFactor(context.Background(), "user-1", "123456")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.As(err).Code)
}
