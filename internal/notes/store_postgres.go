// Copyright (c) 2026 NoteHub. All rights reserved.

// PostgreSQL implementation of the notes repository.
package notes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notehub/notehub/internal/platform/apperr"
	"github.com/notehub/notehub/internal/platform/dberr"
	"github.com/notehub/notehub/internal/platform/postgres"
)

// PostgresRepository implements the Repository interface using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL implementation of Repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const noteColumns = "id, ownerid, title, content, pinned, favorite, archived, createdat, updatedat"

// scanNote hydrates a Note from a pgx row.
func scanNote(row pgx.Row) (*Note, error) {
	note := &Note{}
	err := row.Scan(
		&note.ID,
		&note.OwnerID,
		&note.Title,
		&note.Content,
		&note.Pinned,
		&note.Favorite,
		&note.Archived,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (repository *PostgresRepository) FindByID(context context.Context, id string) (*Note, error) {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	const query = `
		SELECT ` + noteColumns + `
		FROM notes.note
		WHERE id = $1`

	note, err := scanNote(repository.pool.QueryRow(context, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Note")
		}
		return nil, dberr.Wrap(fmt.Errorf("postgres_note_repo_find_by_id_failed: %w", err), "")
	}

	return note, nil
}

func (repository *PostgresRepository) Create(context context.Context, note *Note) error {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	now := time.Now()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.UpdatedAt = note.CreatedAt

	const query = `
		INSERT INTO notes.note (
			id, ownerid, title, content, pinned, favorite, archived, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := repository.pool.Exec(context, query,
		note.ID,
		note.OwnerID,
		note.Title,
		note.Content,
		note.Pinned,
		note.Favorite,
		note.Archived,
		note.CreatedAt,
		note.UpdatedAt,
	)
	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_note_repo_create_failed: %w", err), "")
	}

	return nil
}

func (repository *PostgresRepository) UpdateContent(context context.Context, note *Note) error {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	const query = `
		UPDATE notes.note
		SET title = $2, content = $3, updatedat = NOW()
		WHERE id = $1
		RETURNING updatedat`

	err := repository.pool.QueryRow(context, query, note.ID, note.Title, note.Content).Scan(&note.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("Note")
		}
		return dberr.Wrap(fmt.Errorf("postgres_note_repo_update_content_failed: %w", err), "")
	}

	return nil
}

func (repository *PostgresRepository) UpdateFlags(context context.Context, note *Note) error {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	const query = `
		UPDATE notes.note
		SET pinned = $2, favorite = $3, archived = $4
		WHERE id = $1`

	_, err := repository.pool.Exec(context, query,
		note.ID,
		note.Pinned,
		note.Favorite,
		note.Archived,
	)
	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_note_repo_update_flags_failed: %w", err), "")
	}

	return nil
}

func (repository *PostgresRepository) Delete(context context.Context, id string) error {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	// Grants reference the note with ON DELETE CASCADE; a single statement
	// removes the note and its grants together.
	const query = "DELETE FROM notes.note WHERE id = $1"

	_, err := repository.pool.Exec(context, query, id)
	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_note_repo_delete_failed: %w", err), "")
	}

	return nil
}

// # Grants

func (repository *PostgresRepository) FindGrant(context context.Context, noteID, granteeID string) (*Grant, error) {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	const query = `
		SELECT noteid, granteeid, canedit, createdat
		FROM notes.grant
		WHERE noteid = $1 AND granteeid = $2`

	grant := &Grant{}
	err := repository.pool.QueryRow(context, query, noteID, granteeID).Scan(
		&grant.NoteID,
		&grant.GranteeID,
		&grant.CanEdit,
		&grant.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Share")
		}
		return nil, dberr.Wrap(fmt.Errorf("postgres_note_repo_find_grant_failed: %w", err), "")
	}

	return grant, nil
}

func (repository *PostgresRepository) UpsertGrant(context context.Context, grant *Grant) error {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now()
	}

	// The unique (noteid, granteeid) constraint makes re-sharing an update of
	// the permission rather than a duplicate row.
	const query = `
		INSERT INTO notes.grant (noteid, granteeid, canedit, createdat)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (noteid, granteeid) DO UPDATE SET canedit = EXCLUDED.canedit`

	_, err := repository.pool.Exec(context, query,
		grant.NoteID,
		grant.GranteeID,
		grant.CanEdit,
		grant.CreatedAt,
	)
	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_note_repo_upsert_grant_failed: %w", err), "")
	}

	return nil
}

func (repository *PostgresRepository) DeleteGrant(context context.Context, noteID, granteeID string) error {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	const query = "DELETE FROM notes.grant WHERE noteid = $1 AND granteeid = $2"

	tag, err := repository.pool.Exec(context, query, noteID, granteeID)
	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_note_repo_delete_grant_failed: %w", err), "")
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Share")
	}

	return nil
}
