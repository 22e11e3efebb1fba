// Copyright (c) 2026 NoteHub. All rights reserved.

/*
Package session implements the redis-backed interactive session layer.

It manages three kinds of volatile state, all keyed under distinct prefixes:

  - Full sessions: opaque session ID → user ID, created after every login
    stage has passed.
  - Pending markers: opaque marker → user ID, parking a password-verified
    login until its second factor arrives. Short TTL, never grants access.
  - Display snapshots: user ID → cached profile view, invalidated on every
    mutation of a cached field and re-fetched from the credential store on
    the next read.

# Security

The cache is display-only. Authorization decisions never read it; the access
resolver and the credential verifier always consult persistent storage.
*/
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/notehub/notehub/internal/platform/apperr"
	"github.com/notehub/notehub/internal/platform/constants"
	"github.com/notehub/notehub/internal/platform/sec"
	"github.com/notehub/notehub/internal/users/auth"
)

// sessionIDLength is the byte length of the random session/marker identifiers.
const sessionIDLength = 32

// PrincipalLoader resolves an account from the credential store. Satisfied by
// [auth.UserRepository]; used to repopulate the snapshot cache after an
// invalidation.
type PrincipalLoader interface {
	FindByID(context context.Context, id string) (*auth.User, error)
}

// Manager implements [auth.SessionStore] on top of a redis client.
type Manager struct {
	client *redis.Client
	users  PrincipalLoader
}

// NewManager creates a redis-backed session manager.
func NewManager(client *redis.Client, users PrincipalLoader) *Manager {
	return &Manager{client: client, users: users}
}

// # Full Sessions

/*
Start creates a full session for an authenticated user.

Description: Generates an opaque session ID, stores the ID→user mapping, and
caches the user's display snapshot under the same TTL.

Parameters:
  - context: context.Context
  - user: *auth.User

Returns:
  - string: Opaque session ID for the cookie
  - error: Generation or storage failures
*/
func (manager *Manager) Start(context context.Context, user *auth.User) (string, error) {
	sessionID, err := sec.GenerateSecureToken(sessionIDLength)
	if err != nil {
		return "", fmt.Errorf("session_manager_generate_failed: %w", err)
	}

	key := constants.RedisPrefixSession + sessionID
	if err := manager.client.Set(context, key, user.ID, auth.InteractiveSessionTTL).Err(); err != nil {
		return "", apperr.StorageUnavailable(err)
	}

	// Cache the display snapshot. A failure here is non-fatal: Current
	// re-fetches from the credential store on a miss.
	_ = manager.Cache(context, auth.NewSnapshot(user))

	return sessionID, nil
}

/*
Current returns the display snapshot behind an active session.

Description: A cache hit is served directly. An invalidated snapshot is
re-fetched from the credential store and re-cached, so a session always
survives mutations of its cached fields.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - *auth.Snapshot: Display view, cached or freshly loaded
  - error: apperr.Unauthorized when the session or its principal is gone
*/
func (manager *Manager) Current(context context.Context, sessionID string) (*auth.Snapshot, error) {
	key := constants.RedisPrefixSession + sessionID

	userID, err := manager.client.Get(context, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.Unauthorized("No active session")
		}
		return nil, apperr.StorageUnavailable(err)
	}

	cacheKey := constants.RedisPrefixUserCache + userID
	payload, err := manager.client.Get(context, cacheKey).Result()
	if err == nil {
		snapshot := &auth.Snapshot{}
		if err := json.Unmarshal([]byte(payload), snapshot); err != nil {
			return nil, fmt.Errorf("session_manager_snapshot_decode_failed: %w", err)
		}
		return snapshot, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, apperr.StorageUnavailable(err)
	}

	// Read-through: the snapshot was invalidated but the session is still
	// live. Re-fetch the principal and repopulate the cache.
	user, err := manager.users.FindByID(context, userID)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			// The account behind the session no longer exists.
			return nil, apperr.Unauthorized("No active session")
		}
		return nil, err
	}

	snapshot := auth.NewSnapshot(user)
	_ = manager.Cache(context, snapshot)

	return snapshot, nil
}

/*
End destroys a full session.

Description: Idempotent; ending an unknown session is not an error. The
display snapshot is invalidated alongside when the session still resolves.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - error: Storage failures
*/
func (manager *Manager) End(context context.Context, sessionID string) error {
	key := constants.RedisPrefixSession + sessionID

	userID, err := manager.client.Get(context, key).Result()
	if err == nil && userID != "" {
		_ = manager.Invalidate(context, userID)
	}

	if err := manager.client.Del(context, key).Err(); err != nil {
		return apperr.StorageUnavailable(err)
	}

	return nil
}

// # Pending Second-Factor Markers

/*
MarkPending parks a password-verified login behind a short-lived marker.

Description: The marker is distinct from a session in keyspace and TTL. It
grants no access; it only remembers which account passed the password stage.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - string: Opaque marker for the challenge cookie
  - error: Generation or storage failures
*/
func (manager *Manager) MarkPending(context context.Context, userID string) (string, error) {
	marker, err := sec.GenerateSecureToken(sessionIDLength)
	if err != nil {
		return "", fmt.Errorf("session_manager_marker_failed: %w", err)
	}

	key := constants.RedisPrefixPending2FA + marker
	if err := manager.client.Set(context, key, userID, auth.PendingSecondFactorTTL).Err(); err != nil {
		return "", apperr.StorageUnavailable(err)
	}

	return marker, nil
}

/*
ResolvePending returns the userID behind a pending marker.

Parameters:
  - context: context.Context
  - marker: string

Returns:
  - string: UserID that passed the password stage
  - error: apperr.Unauthorized when the marker is gone or expired
*/
func (manager *Manager) ResolvePending(context context.Context, marker string) (string, error) {
	key := constants.RedisPrefixPending2FA + marker

	userID, err := manager.client.Get(context, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperr.Unauthorized("No pending login")
		}
		return "", apperr.StorageUnavailable(err)
	}

	return userID, nil
}

/*
ClearPending removes a pending marker.

Parameters:
  - context: context.Context
  - marker: string

Returns:
  - error: Storage failures
*/
func (manager *Manager) ClearPending(context context.Context, marker string) error {
	key := constants.RedisPrefixPending2FA + marker

	if err := manager.client.Del(context, key).Err(); err != nil {
		return apperr.StorageUnavailable(err)
	}

	return nil
}

// # Display Snapshot Cache

/*
Cache stores a user's display snapshot.

Parameters:
  - context: context.Context
  - snapshot: *auth.Snapshot

Returns:
  - error: Encoding or storage failures
*/
func (manager *Manager) Cache(context context.Context, snapshot *auth.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("session_manager_snapshot_encode_failed: %w", err)
	}

	key := constants.RedisPrefixUserCache + snapshot.UserID
	if err := manager.client.Set(context, key, payload, auth.InteractiveSessionTTL).Err(); err != nil {
		return apperr.StorageUnavailable(err)
	}

	return nil
}

/*
Invalidate drops the cached display snapshot for a user.

Description: Called in-request by every operation that mutates a cached field
(profile update, password change, second-factor enrollment changes), so a
stale snapshot can never outlive the mutation response. The next read through
[Manager.Current] repopulates the cache from the credential store.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Storage failures
*/
func (manager *Manager) Invalidate(context context.Context, userID string) error {
	key := constants.RedisPrefixUserCache + userID

	if err := manager.client.Del(context, key).Err(); err != nil {
		return apperr.StorageUnavailable(err)
	}

	return nil
}
