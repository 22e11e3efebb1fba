// Copyright (c) 2026 NoteHub. All rights reserved.

package notes_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notehub/notehub/internal/notes"
	"github.com/notehub/notehub/internal/platform/apperr"
	"github.com/notehub/notehub/internal/users/auth"
)

// memoryRepo is an in-memory notes.Repository mirroring the Postgres
// semantics: guarded deletes, unique (note, grantee) grants, cascade on note
// removal.
type memoryRepo struct {
	mu     sync.Mutex
	notes  map[string]*notes.Note
	grants map[string]map[string]*notes.Grant // noteID -> granteeID -> grant
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		notes:  make(map[string]*notes.Note),
		grants: make(map[string]map[string]*notes.Grant),
	}
}

func (repo *memoryRepo) FindByID(_ context.Context, id string) (*notes.Note, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if note, ok := repo.notes[id]; ok {
		clone := *note
		return &clone, nil
	}
	return nil, apperr.NotFound("Note")
}

func (repo *memoryRepo) Create(_ context.Context, note *notes.Note) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	clone := *note
	repo.notes[note.ID] = &clone
	return nil
}

func (repo *memoryRepo) UpdateContent(_ context.Context, note *notes.Note) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	stored, ok := repo.notes[note.ID]
	if !ok {
		return apperr.NotFound("Note")
	}
	stored.Title = note.Title
	stored.Content = note.Content
	return nil
}

func (repo *memoryRepo) UpdateFlags(_ context.Context, note *notes.Note) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	stored, ok := repo.notes[note.ID]
	if !ok {
		return apperr.NotFound("Note")
	}
	stored.Pinned = note.Pinned
	stored.Favorite = note.Favorite
	stored.Archived = note.Archived
	return nil
}

func (repo *memoryRepo) Delete(_ context.Context, id string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	delete(repo.notes, id)
	delete(repo.grants, id)
	return nil
}

func (repo *memoryRepo) FindGrant(_ context.Context, noteID, granteeID string) (*notes.Grant, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if grant, ok := repo.grants[noteID][granteeID]; ok {
		clone := *grant
		return &clone, nil
	}
	return nil, apperr.NotFound("Share")
}

func (repo *memoryRepo) UpsertGrant(_ context.Context, grant *notes.Grant) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.grants[grant.NoteID] == nil {
		repo.grants[grant.NoteID] = make(map[string]*notes.Grant)
	}
	clone := *grant
	repo.grants[grant.NoteID][grant.GranteeID] = &clone
	return nil
}

func (repo *memoryRepo) DeleteGrant(_ context.Context, noteID, granteeID string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if _, ok := repo.grants[noteID][granteeID]; !ok {
		return apperr.NotFound("Share")
	}
	delete(repo.grants[noteID], granteeID)
	return nil
}

// directoryRepo is the minimal user lookup the share endpoints need.
type directoryRepo struct {
	users map[string]*auth.User // username -> user
}

func newDirectoryRepo(users ...*auth.User) *directoryRepo {
	repo := &directoryRepo{users: make(map[string]*auth.User)}
	for _, user := range users {
		repo.users[user.Username] = user
	}
	return repo
}

func (repo *directoryRepo) FindByID(_ context.Context, id string) (*auth.User, error) {
	for _, user := range repo.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repo *directoryRepo) FindByIdentifier(_ context.Context, identifier string) (*auth.User, error) {
	if user, ok := repo.users[identifier]; ok {
		return user, nil
	}
	return nil, apperr.NotFound("User")
}

func (repo *directoryRepo) Create(_ context.Context, user *auth.User, _ string) error {
	repo.users[user.Username] = user
	return nil
}

func (repo *directoryRepo) UpdateProfile(_ context.Context, _ *auth.User) error   { return nil }
func (repo *directoryRepo) UpdatePassword(_ context.Context, _, _ string) error   { return nil }
func (repo *directoryRepo) UpdateTOTPSecret(_ context.Context, _, _ string) error { return nil }
func (repo *directoryRepo) UpdateLastLogin(_ context.Context, _ string) error     { return nil }
func (repo *directoryRepo) Count(_ context.Context) (int64, error) {
	return int64(len(repo.users)), nil
}

func newService(_ *testing.T) (*notes.Service, *memoryRepo) {
	repo := newMemoryRepo()
	directory := newDirectoryRepo(
		&auth.User{ID: "owner-1", Username: "alice"},
		&auth.User{ID: "reader-1", Username: "bob"},
		&auth.User{ID: "editor-1", Username: "carol"},
	)
	return notes.NewService(repo, directory, notes.NewResolver(repo)), repo
}

func createNote(t *testing.T, service *notes.Service, ownerID string) *notes.Note {
	t.Helper()
	note, err := service.Create(context.Background(), ownerID, notes.CreateInput{
		Title:   "Meeting notes",
		Content: "Agenda",
	})
	require.NoError(t, err)
	return note
}

/*
TestService_CreateAndGet covers creation and owner readback.
*/
func TestService_CreateAndGet(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	note := createNote(t, service, "owner-1")
	assert.NotEmpty(t, note.ID)
	assert.Equal(t, "owner-1", note.OwnerID)
	assert.False(t, note.Pinned)

	fetched, err := service.Get(ctx, note.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "Meeting notes", fetched.Title)
}

/*
TestService_Get_HidesExistence verifies a principal with no relationship to a
note gets the same NOT_FOUND a missing note produces.
*/
func TestService_Get_HidesExistence(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	note := createNote(t, service, "owner-1")

	_, missingErr := service.Get(ctx, "no-such-note", "reader-1")
	_, strangerErr := service.Get(ctx, note.ID, "reader-1")

	require.Error(t, missingErr)
	require.Error(t, strangerErr)
	assert.Equal(t, apperr.As(missingErr).Code, apperr.As(strangerErr).Code)
	assert.Equal(t, apperr.As(missingErr).Message, apperr.As(strangerErr).Message)
}

/*
TestService_SharingTiers walks read-only and edit grants through get, update,
and the owner-only operations.
*/
func TestService_SharingTiers(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	note := createNote(t, service, "owner-1")

	_, err := service.Share(ctx, note.ID, "owner-1", "bob", false)
	require.NoError(t, err)
	grant, err := service.Share(ctx, note.ID, "owner-1", "carol", true)
	require.NoError(t, err)
	assert.True(t, grant.CanEdit)

	// Read-only grantee can read but not edit.
	_, err = service.Get(ctx, note.ID, "reader-1")
	require.NoError(t, err)
	title := "Edited"
	_, err = service.Update(ctx, note.ID, "reader-1", notes.UpdateInput{Title: &title})
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperr.As(err).Code)

	// Edit grantee can change content.
	updated, err := service.Update(ctx, note.ID, "editor-1", notes.UpdateInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Edited", updated.Title)

	// Neither grantee may perform owner-only operations.
	err = service.Delete(ctx, note.ID, "editor-1")
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperr.As(err).Code)

	_, err = service.SetFlags(ctx, note.ID, "editor-1", notes.FlagsInput{Pinned: true})
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperr.As(err).Code)

	_, err = service.Share(ctx, note.ID, "editor-1", "bob", true)
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperr.As(err).Code)
}

/*
TestService_Share_Reshare verifies re-sharing updates the edit bit instead of
duplicating the grant.
*/
func TestService_Share_Reshare(t *testing.T) {
	service, repo := newService(t)
	ctx := context.Background()

	note := createNote(t, service, "owner-1")

	_, err := service.Share(ctx, note.ID, "owner-1", "bob", false)
	require.NoError(t, err)

	grant, err := service.Share(ctx, note.ID, "owner-1", "bob", true)
	require.NoError(t, err)
	assert.True(t, grant.CanEdit)

	assert.Len(t, repo.grants[note.ID], 1)
}

/*
TestService_Share_SelfIsRejected verifies the grantee-is-never-the-owner rule.
*/
func TestService_Share_SelfIsRejected(t *testing.T) {
	service, _ := newService(t)

	note := createNote(t, service, "owner-1")

	_, err := service.Share(context.Background(), note.ID, "owner-1", "alice", true)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.As(err).Code)
}

/*
TestService_Unshare verifies revocation removes access immediately and a
second revocation reports the missing grant.
*/
func TestService_Unshare(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	note := createNote(t, service, "owner-1")

	_, err := service.Share(ctx, note.ID, "owner-1", "bob", false)
	require.NoError(t, err)

	require.NoError(t, service.Unshare(ctx, note.ID, "owner-1", "bob"))

	_, err = service.Get(ctx, note.ID, "reader-1")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)

	err = service.Unshare(ctx, note.ID, "owner-1", "bob")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)
}

/*
TestService_OwnerFlagsAndDelete covers the owner-only happy paths.
*/
func TestService_OwnerFlagsAndDelete(t *testing.T) {
	service, repo := newService(t)
	ctx := context.Background()

	note := createNote(t, service, "owner-1")
	_, err := service.Share(ctx, note.ID, "owner-1", "bob", true)
	require.NoError(t, err)

	flagged, err := service.SetFlags(ctx, note.ID, "owner-1", notes.FlagsInput{Pinned: true, Archived: true})
	require.NoError(t, err)
	assert.True(t, flagged.Pinned)
	assert.False(t, flagged.Favorite)
	assert.True(t, flagged.Archived)

	require.NoError(t, service.Delete(ctx, note.ID, "owner-1"))

	_, err = service.Get(ctx, note.ID, "owner-1")
	require.Error(t, err)

	// Grants go with the note.
	assert.Empty(t, repo.grants[note.ID])
}
