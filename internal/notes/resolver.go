// Copyright (c) 2026 NoteHub. All rights reserved.

package notes

import (
	"context"
	"errors"

	"github.com/notehub/notehub/internal/platform/apperr"
)

// # Access Resolution

// Access describes one principal's relationship to one note at a point in
// time. The zero value is the "note does not exist" answer.
type Access struct {
	// Exists reports whether the note exists at all.
	Exists bool
	// HasAccess reports whether the principal may read the note.
	HasAccess bool
	// CanEdit reports whether the principal may change title and content.
	CanEdit bool
	// IsOwner reports whether the principal owns the note. Owner-only
	// operations (delete, flags, share management) check this field.
	IsOwner bool
}

// Resolver answers access questions from Postgres. It never consults the
// session cache.
type Resolver struct {
	noteRepository Repository
}

// NewResolver constructs a new [Resolver] over the notes repository.
func NewResolver(noteRepo Repository) *Resolver {
	return &Resolver{noteRepository: noteRepo}
}

/*
Resolve computes the principal's access to a note.

Description: Resolution order is fixed. A missing note yields the zero
[Access]. An owner gets full access regardless of any grant rows, so a grant
can never narrow the owner's rights. A grantee gets read access plus the
grant's edit bit. Everyone else gets nothing, indistinguishable from a
missing note at the API surface.

Parameters:
  - context: context.Context
  - noteID: string
  - principalID: string

Returns:
  - *Note: The note when it exists, for callers that need the entity anyway
  - Access: The resolved relationship
  - error: Storage failures only; absence is encoded in Access, not an error
*/
func (resolver *Resolver) Resolve(context context.Context, noteID, principalID string) (*Note, Access, error) {
	note, err := resolver.noteRepository.FindByID(context, noteID)
	if err != nil {
		if isNotFound(err) {
			return nil, Access{}, nil
		}
		return nil, Access{}, err
	}

	if note.OwnerID == principalID {
		return note, Access{Exists: true, HasAccess: true, CanEdit: true, IsOwner: true}, nil
	}

	grant, err := resolver.noteRepository.FindGrant(context, noteID, principalID)
	if err != nil {
		if isNotFound(err) {
			return note, Access{Exists: true}, nil
		}
		return nil, Access{}, err
	}

	return note, Access{Exists: true, HasAccess: true, CanEdit: grant.CanEdit}, nil
}

// isNotFound reports whether err is a 404-class AppError, as opposed to a
// storage failure that must propagate.
func isNotFound(err error) bool {
	var appError *apperr.AppError
	return errors.As(err, &appError) && appError.Code == apperr.CodeNotFound
}
