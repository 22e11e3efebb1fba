// Copyright (c) 2026 NoteHub. All rights reserved.

package session_test

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notehub/notehub/internal/platform/apperr"
	"github.com/notehub/notehub/internal/users/auth"
	"github.com/notehub/notehub/internal/users/session"
)

// principalDirectory is an in-memory credential store backing the cache
// read-through.
type principalDirectory struct {
	mu    sync.Mutex
	users map[string]*auth.User
}

func newPrincipalDirectory() *principalDirectory {
	return &principalDirectory{users: make(map[string]*auth.User)}
}

func (directory *principalDirectory) put(user *auth.User) {
	directory.mu.Lock()
	defer directory.mu.Unlock()

	clone := *user
	directory.users[user.ID] = &clone
}

func (directory *principalDirectory) remove(id string) {
	directory.mu.Lock()
	defer directory.mu.Unlock()

	delete(directory.users, id)
}

func (directory *principalDirectory) FindByID(_ context.Context, id string) (*auth.User, error) {
	directory.mu.Lock()
	defer directory.mu.Unlock()

	if user, ok := directory.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, apperr.NotFound("User")
}

func newManager(t *testing.T) (*session.Manager, *miniredis.Miniredis, *principalDirectory) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	directory := newPrincipalDirectory()
	return session.NewManager(client, directory), server, directory
}

func testUser() *auth.User {
	return &auth.User{
		ID:       "user-1",
		Username: "alice",
		Email:    "alice@notehub.app",
		Theme:    "dark",
	}
}

/*
TestManager_StartAndCurrent covers the full session round trip: start a
session, resolve it, and read back the cached display snapshot.
*/
func TestManager_StartAndCurrent(t *testing.T) {
	manager, _, _ := newManager(t)
	ctx := context.Background()

	sessionID, err := manager.Start(ctx, testUser())
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	snapshot, err := manager.Current(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", snapshot.UserID)
	assert.Equal(t, "alice", snapshot.Username)
	assert.Equal(t, "dark", snapshot.Theme)
	assert.False(t, snapshot.SecondFactorEnrolled)
}

/*
TestManager_Current_UnknownSession verifies an unknown session ID resolves to
an unauthorized error, not a storage error.
*/
func TestManager_Current_UnknownSession(t *testing.T) {
	manager, _, _ := newManager(t)

	_, err := manager.Current(context.Background(), "no-such-session")
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
}

/*
TestManager_Invalidate verifies that dropping the snapshot leaves the session
valid: the next read re-fetches the principal from the credential store,
serves the fresh view, and repopulates the cache.
*/
func TestManager_Invalidate(t *testing.T) {
	manager, _, directory := newManager(t)
	ctx := context.Background()

	user := testUser()
	directory.put(user)

	sessionID, err := manager.Start(ctx, user)
	require.NoError(t, err)

	// Mutate the stored principal, then invalidate the cached view.
	updated := testUser()
	updated.Theme = "light"
	directory.put(updated)
	require.NoError(t, manager.Invalidate(ctx, user.ID))

	// The same session now serves the re-fetched view.
	snapshot, err := manager.Current(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "light", snapshot.Theme)

	// The re-fetched view was cached again: a second read is served even
	// after the credential store stops answering for this account.
	directory.remove(user.ID)
	snapshot, err = manager.Current(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "light", snapshot.Theme)
}

/*
TestManager_Current_DeletedPrincipal verifies a session whose account is gone
resolves to an unauthorized error once its snapshot has been invalidated.
*/
func TestManager_Current_DeletedPrincipal(t *testing.T) {
	manager, _, _ := newManager(t)
	ctx := context.Background()

	sessionID, err := manager.Start(ctx, testUser())
	require.NoError(t, err)

	// The directory never held user-1, so the read-through finds nothing.
	require.NoError(t, manager.Invalidate(ctx, "user-1"))

	_, err = manager.Current(ctx, sessionID)
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
}

/*
TestManager_End verifies logout destroys the session idempotently.
*/
func TestManager_End(t *testing.T) {
	manager, _, _ := newManager(t)
	ctx := context.Background()

	sessionID, err := manager.Start(ctx, testUser())
	require.NoError(t, err)

	require.NoError(t, manager.End(ctx, sessionID))

	_, err = manager.Current(ctx, sessionID)
	assert.Error(t, err)

	// Ending twice is not an error.
	assert.NoError(t, manager.End(ctx, sessionID))
}

/*
TestManager_PendingMarkers covers the pending second-factor lifecycle: a
marker resolves to its user, never acts as a session, and is gone once cleared
or expired.
*/
func TestManager_PendingMarkers(t *testing.T) {
	manager, server, _ := newManager(t)
	ctx := context.Background()

	marker, err := manager.MarkPending(ctx, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, marker)

	userID, err := manager.ResolvePending(ctx, marker)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	// A pending marker is not a session.
	_, err = manager.Current(ctx, marker)
	assert.Error(t, err)

	// Cleared markers no longer resolve.
	require.NoError(t, manager.ClearPending(ctx, marker))
	_, err = manager.ResolvePending(ctx, marker)
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)

	// Expired markers no longer resolve.
	second, err := manager.MarkPending(ctx, "user-2")
	require.NoError(t, err)

	server.FastForward(auth.PendingSecondFactorTTL * 2)

	_, err = manager.ResolvePending(ctx, second)
	assert.Error(t, err)
}
