// Copyright (c) 2026 NoteHub. All rights reserved.

package notes

import "context"

// # Repository Contract

// Repository defines persistence for notes and their sharing grants.
// Implemented by [PostgresRepository]; tests substitute an in-memory fake.
type Repository interface {
	/*
		FindByID retrieves a note by its unique ID.

		Parameters:
		  - context: context.Context
		  - id: string (UUIDv7)

		Returns:
		  - *Note: Hydrated note entity
		  - error: apperr.NotFound or execution errors
	*/
	FindByID(context context.Context, id string) (*Note, error)

	/*
		Create persists a new note.

		Parameters:
		  - context: context.Context
		  - note: *Note

		Returns:
		  - error: Execution errors
	*/
	Create(context context.Context, note *Note) error

	/*
		UpdateContent persists title and content changes and bumps updatedat.

		Parameters:
		  - context: context.Context
		  - note: *Note

		Returns:
		  - error: Execution errors
	*/
	UpdateContent(context context.Context, note *Note) error

	/*
		UpdateFlags persists the display flags (pinned, favorite, archived).

		Parameters:
		  - context: context.Context
		  - note: *Note

		Returns:
		  - error: Execution errors
	*/
	UpdateFlags(context context.Context, note *Note) error

	/*
		Delete removes a note. Grants are removed with it.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - error: Execution errors
	*/
	Delete(context context.Context, id string) error

	/*
		FindGrant retrieves the grant for a (note, grantee) pair.

		Parameters:
		  - context: context.Context
		  - noteID: string
		  - granteeID: string

		Returns:
		  - *Grant: Hydrated grant entity
		  - error: apperr.NotFound when no grant exists, or execution errors
	*/
	FindGrant(context context.Context, noteID, granteeID string) (*Grant, error)

	/*
		UpsertGrant creates a grant or updates the permission of an existing one.
		The (note, grantee) pair stays unique either way.

		Parameters:
		  - context: context.Context
		  - grant: *Grant

		Returns:
		  - error: Execution errors
	*/
	UpsertGrant(context context.Context, grant *Grant) error

	/*
		DeleteGrant removes the grant for a (note, grantee) pair.

		Parameters:
		  - context: context.Context
		  - noteID: string
		  - granteeID: string

		Returns:
		  - error: apperr.NotFound when no grant exists, or execution errors
	*/
	DeleteGrant(context context.Context, noteID, granteeID string) error
}
