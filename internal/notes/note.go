// Copyright (c) 2026 NoteHub. All rights reserved.

/*
Package notes implements the note resource: ownership, content, display flags,
and per-user sharing grants.

# Access Model

Every operation resolves the caller's relationship to the note first, through
[Resolver]. Ownership always wins; a grant can give a non-owner read or edit
access but can never widen (or narrow) what the owner can do. Owner-only
operations are delete, the display flags, and share management.

Access decisions always read Postgres directly. The session cache holds
display data only and is never consulted here.
*/
package notes

import "time"

// # Entities

// Note is a single note owned by exactly one account.
type Note struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Pinned    bool      `json:"pinned"`
	Favorite  bool      `json:"favorite"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Grant gives one account access to one note. At most one grant exists per
// (note, grantee) pair, and the grantee is never the owner.
type Grant struct {
	NoteID    string    `json:"note_id"`
	GranteeID string    `json:"grantee_id"`
	CanEdit   bool      `json:"can_edit"`
	CreatedAt time.Time `json:"created_at"`
}

// # Field Names

// JSON field names shared between validation and handlers.
const (
	FieldTitle    = "title"
	FieldContent  = "content"
	FieldUsername = "username"
	FieldMessage  = "message"
)
