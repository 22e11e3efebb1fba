// Copyright (c) 2026 NoteHub. All rights reserved.

package notes

import (
	"context"

	"github.com/notehub/notehub/internal/platform/apperr"
	"github.com/notehub/notehub/internal/users/auth"
	"github.com/notehub/notehub/pkg/uuid"
)

// Service implements the note use cases on top of the access resolver.
//
// # Security
//
// A principal with no relationship to a note receives NOT_FOUND, never
// FORBIDDEN, so probing cannot reveal which note IDs exist. FORBIDDEN is
// reserved for principals who already have read access and attempt an
// operation above their grant.
type Service struct {
	noteRepository Repository
	userRepository auth.UserRepository
	resolver       *Resolver
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(noteRepo Repository, userRepo auth.UserRepository, resolver *Resolver) *Service {
	return &Service{
		noteRepository: noteRepo,
		userRepository: userRepo,
		resolver:       resolver,
	}
}

// # Note Lifecycle

// CreateInput carries the fields of a new note.
type CreateInput struct {
	Title   string
	Content string
}

/*
Create persists a new note owned by the caller.

Parameters:
  - context: context.Context
  - ownerID: string
  - input: CreateInput

Returns:
  - *Note: The created entity
  - error: Storage failures
*/
func (service *Service) Create(context context.Context, ownerID string, input CreateInput) (*Note, error) {
	note := &Note{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Title:   input.Title,
		Content: input.Content,
	}

	if err := service.noteRepository.Create(context, note); err != nil {
		return nil, err
	}

	return note, nil
}

/*
Get returns a note the principal may read.

Parameters:
  - context: context.Context
  - noteID: string
  - principalID: string

Returns:
  - *Note: The note entity
  - error: NOT_FOUND for missing notes and for principals with no access
*/
func (service *Service) Get(context context.Context, noteID, principalID string) (*Note, error) {
	note, access, err := service.resolver.Resolve(context, noteID, principalID)
	if err != nil {
		return nil, err
	}
	if !access.HasAccess {
		return nil, apperr.NotFound("Note")
	}

	return note, nil
}

// UpdateInput carries partial content changes. Nil fields are left untouched.
type UpdateInput struct {
	Title   *string
	Content *string
}

/*
Update changes a note's title or content.

Description: Requires edit access. An owner always has it; a grantee needs a
grant with the edit bit set. A read-only grantee receives FORBIDDEN since
they already know the note exists.

Parameters:
  - context: context.Context
  - noteID: string
  - principalID: string
  - input: UpdateInput

Returns:
  - *Note: The updated entity
  - error: NOT_FOUND, FORBIDDEN, or storage failures
*/
func (service *Service) Update(context context.Context, noteID, principalID string, input UpdateInput) (*Note, error) {
	note, access, err := service.resolver.Resolve(context, noteID, principalID)
	if err != nil {
		return nil, err
	}
	if !access.HasAccess {
		return nil, apperr.NotFound("Note")
	}
	if !access.CanEdit {
		return nil, apperr.Forbidden("You do not have edit access to this note")
	}

	if input.Title != nil {
		note.Title = *input.Title
	}
	if input.Content != nil {
		note.Content = *input.Content
	}

	if err := service.noteRepository.UpdateContent(context, note); err != nil {
		return nil, err
	}

	return note, nil
}

/*
Delete removes a note. Owner only.

Parameters:
  - context: context.Context
  - noteID: string
  - principalID: string

Returns:
  - error: NOT_FOUND, FORBIDDEN, or storage failures
*/
func (service *Service) Delete(context context.Context, noteID, principalID string) error {
	_, access, err := service.resolver.Resolve(context, noteID, principalID)
	if err != nil {
		return err
	}
	if !access.HasAccess {
		return apperr.NotFound("Note")
	}
	if !access.IsOwner {
		return apperr.Forbidden("Only the owner can delete a note")
	}

	return service.noteRepository.Delete(context, noteID)
}

// FlagsInput carries the full set of display flags. Flags are replaced as a
// unit rather than patched.
type FlagsInput struct {
	Pinned   bool
	Favorite bool
	Archived bool
}

/*
SetFlags replaces a note's display flags. Owner only; the flags shape the
owner's own views and grantees never see them applied on their behalf.

Parameters:
  - context: context.Context
  - noteID: string
  - principalID: string
  - input: FlagsInput

Returns:
  - *Note: The updated entity
  - error: NOT_FOUND, FORBIDDEN, or storage failures
*/
func (service *Service) SetFlags(context context.Context, noteID, principalID string, input FlagsInput) (*Note, error) {
	note, access, err := service.resolver.Resolve(context, noteID, principalID)
	if err != nil {
		return nil, err
	}
	if !access.HasAccess {
		return nil, apperr.NotFound("Note")
	}
	if !access.IsOwner {
		return nil, apperr.Forbidden("Only the owner can change note flags")
	}

	note.Pinned = input.Pinned
	note.Favorite = input.Favorite
	note.Archived = input.Archived

	if err := service.noteRepository.UpdateFlags(context, note); err != nil {
		return nil, err
	}

	return note, nil
}

// # Sharing

/*
Share grants another user access to a note. Owner only.

Description: The grantee is addressed by username. Sharing with the owner is
rejected, and re-sharing with an existing grantee updates the edit bit of the
existing grant instead of creating a duplicate.

Parameters:
  - context: context.Context
  - noteID: string
  - ownerID: string
  - username: string
  - canEdit: bool

Returns:
  - *Grant: The created or updated grant
  - error: NOT_FOUND, FORBIDDEN, validation, or storage failures
*/
func (service *Service) Share(context context.Context, noteID, ownerID, username string, canEdit bool) (*Grant, error) {
	note, access, err := service.resolver.Resolve(context, noteID, ownerID)
	if err != nil {
		return nil, err
	}
	if !access.HasAccess {
		return nil, apperr.NotFound("Note")
	}
	if !access.IsOwner {
		return nil, apperr.Forbidden("Only the owner can share a note")
	}

	grantee, err := service.userRepository.FindByIdentifier(context, username)
	if err != nil {
		return nil, err
	}

	if grantee.ID == note.OwnerID {
		return nil, apperr.ValidationError("A note cannot be shared with its owner")
	}

	grant := &Grant{
		NoteID:    noteID,
		GranteeID: grantee.ID,
		CanEdit:   canEdit,
	}

	if err := service.noteRepository.UpsertGrant(context, grant); err != nil {
		return nil, err
	}

	return grant, nil
}

/*
Unshare revokes a user's access to a note. Owner only.

Parameters:
  - context: context.Context
  - noteID: string
  - ownerID: string
  - username: string

Returns:
  - error: NOT_FOUND when the note, user, or grant is missing; FORBIDDEN;
    or storage failures
*/
func (service *Service) Unshare(context context.Context, noteID, ownerID, username string) error {
	_, access, err := service.resolver.Resolve(context, noteID, ownerID)
	if err != nil {
		return err
	}
	if !access.HasAccess {
		return apperr.NotFound("Note")
	}
	if !access.IsOwner {
		return apperr.Forbidden("Only the owner can manage shares")
	}

	grantee, err := service.userRepository.FindByIdentifier(context, username)
	if err != nil {
		return err
	}

	return service.noteRepository.DeleteGrant(context, noteID, grantee.ID)
}
