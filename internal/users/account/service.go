// Copyright (c) 2026 NoteHub. All rights reserved.

/*
Package account implements self-service management of the authenticated
user's own profile: display fields, password changes, and second-factor
enrollment.

# Architecture

The package reuses the auth domain's repository contracts and entities; it
adds no storage of its own. Every mutation of a field that appears in the
cached display snapshot invalidates the session cache in-request, so a stale
snapshot can never outlive the mutation response.
*/
package account

import (
	"context"
	"fmt"

	"github.com/notehub/notehub/internal/platform/apperr"
	"github.com/notehub/notehub/internal/platform/constants"
	"github.com/notehub/notehub/internal/platform/sec"
	"github.com/notehub/notehub/internal/users/auth"
)

// # Contracts & Types

// CacheInvalidator drops a user's cached display snapshot. Implemented by the
// redis session manager.
type CacheInvalidator interface {
	Invalidate(context context.Context, userID string) error
}

// Service implements account self-management use cases.
type Service struct {
	userRepository auth.UserRepository
	cache          CacheInvalidator
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(userRepo auth.UserRepository, cache CacheInvalidator) *Service {
	return &Service{
		userRepository: userRepo,
		cache:          cache,
	}
}

// invalidate drops the cached snapshot after a mutation of a cached field.
// Invalidation failures are surfaced: a mutation that cannot invalidate must
// not report success against a poisoned cache.
func (service *Service) invalidate(context context.Context, userID string) error {
	if err := service.cache.Invalidate(context, userID); err != nil {
		return fmt.Errorf("account_service_cache_invalidate_failed: %w", err)
	}
	return nil
}

// # Profile

/*
Get resolves the authenticated user's full profile.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *auth.User: Hydrated account entity
  - error: Not found or storage failures
*/
func (service *Service) Get(context context.Context, userID string) (*auth.User, error) {
	return service.userRepository.FindByID(context, userID)
}

// UpdateInput carries partial profile changes. Nil fields are left untouched.
type UpdateInput struct {
	Email *string
	Theme *string
	Bio   *string
}

/*
Update applies partial changes to the profile's mutable fields.

Description: Email, theme, and bio all appear in the cached display snapshot,
so any change invalidates the cache before returning.

Parameters:
  - context: context.Context
  - userID: string
  - input: UpdateInput

Returns:
  - *auth.User: The updated entity
  - error: DUPLICATE_IDENTITY on email conflicts, or storage failures
*/
func (service *Service) Update(context context.Context, userID string, input UpdateInput) (*auth.User, error) {
	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	if input.Email != nil {
		user.Email = *input.Email
	}
	if input.Theme != nil {
		user.Theme = *input.Theme
	}
	if input.Bio != nil {
		user.Bio = *input.Bio
	}

	if err := service.userRepository.UpdateProfile(context, user); err != nil {
		return nil, err
	}

	if err := service.invalidate(context, userID); err != nil {
		return nil, err
	}

	return user, nil
}

// # Password

/*
ChangePassword rotates the authenticated user's password.

Description: The current password is verified first; the replacement must
satisfy the password policy. A policy failure leaves the stored hash
untouched.

Parameters:
  - context: context.Context
  - userID: string
  - currentPassword: string
  - newPassword: string

Returns:
  - error: INVALID_CREDENTIALS, policy violations, or storage failures
*/
func (service *Service) ChangePassword(context context.Context, userID, currentPassword, newPassword string) error {
	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return err
	}

	if !sec.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return apperr.InvalidCredentials()
	}

	if err := sec.EnforcePolicy(newPassword); err != nil {
		return err
	}

	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("account_service_hash_failed: %w", err)
	}

	if err := service.userRepository.UpdatePassword(context, userID, hashedPassword); err != nil {
		return err
	}

	return service.invalidate(context, userID)
}

// # Second Factor

// Enrollment holds the material a client needs to provision an authenticator.
type Enrollment struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

/*
SetupSecondFactor generates fresh enrollment material.

Description: Nothing is persisted at this stage. The client provisions its
authenticator from the URI and proves possession via [EnableSecondFactor]
before the secret is stored.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *Enrollment: Secret and otpauth provisioning URI
  - error: Generation failures
*/
func (service *Service) SetupSecondFactor(context context.Context, userID string) (*Enrollment, error) {
	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	secret, err := sec.GenerateTOTPSecret()
	if err != nil {
		return nil, fmt.Errorf("account_service_totp_secret_failed: %w", err)
	}

	uri, err := sec.TOTPProvisioningURI(secret, user.Username, constants.AuthIssuer)
	if err != nil {
		return nil, fmt.Errorf("account_service_totp_uri_failed: %w", err)
	}

	return &Enrollment{Secret: secret, ProvisioningURI: uri}, nil
}

/*
EnableSecondFactor persists the second-factor secret after proof of possession.

Description: The submitted code must verify against the submitted secret; only
then is the secret stored. Enrollment changes the cached snapshot's enrolled
flag, so the cache is invalidated.

Parameters:
  - context: context.Context
  - userID: string
  - secret: string
  - code: string

Returns:
  - error: INVALID_SECOND_FACTOR or storage failures
*/
func (service *Service) EnableSecondFactor(context context.Context, userID, secret, code string) error {
	if secret == "" || !sec.VerifyTOTP(secret, code) {
		return apperr.InvalidSecondFactor()
	}

	if err := service.userRepository.UpdateTOTPSecret(context, userID, secret); err != nil {
		return err
	}

	return service.invalidate(context, userID)
}

/*
DisableSecondFactor removes the second factor after a final code check.

Parameters:
  - context: context.Context
  - userID: string
  - code: string

Returns:
  - error: INVALID_SECOND_FACTOR, validation, or storage failures
*/
func (service *Service) DisableSecondFactor(context context.Context, userID, code string) error {
	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return err
	}

	if !user.SecondFactorEnrolled() {
		return apperr.ValidationError("Second factor is not enabled")
	}

	if !sec.VerifyTOTP(user.TOTPSecret, code) {
		return apperr.InvalidSecondFactor()
	}

	if err := service.userRepository.UpdateTOTPSecret(context, userID, ""); err != nil {
		return err
	}

	return service.invalidate(context, userID)
}
