// Copyright (c) 2026 NoteHub. All rights reserved.

// PostgreSQL implementations of the auth repositories.
//
// # Architecture
//
// Repositories in this file are strictly separated from domain logic. They
// implement domain-defined interfaces (e.g., [UserRepository]) using the
// [pgxpool.Pool] connection manager.
//
// # Error Mapping
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] types to avoid leaking storage implementation details.
//
// # Deadlines
//
// Every method bounds its work with the platform storage deadline, so a
// stalled query surfaces as a retryable STORAGE_UNAVAILABLE instead of a hang.
package auth

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

// # User Repository

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = "id, username, email, passwordhash, totpsecret, theme, bio, createdat, lastloginat"

// scanUser hydrates a User from a pgx row.
func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.TOTPSecret,
		&user.Theme,
		&user.Bio,
		&user.CreatedAt,
		&user.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

/*
FindByID retrieves a user record by their unique ID.

Description: Primary key resolution for user accounts.

Parameters:
  - context: context.Context
  - id: string (UUIDv7)

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	const query = `
		SELECT ` + userColumns + `
		FROM users.account
		WHERE id = $1`

	user, err := scanUser(repository.pool.QueryRow(context, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, dberr.Wrap(fmt.Errorf("postgres_user_repo_find_by_id_failed: %w", err), "")
	}

	return user, nil
}

/*
FindByIdentifier retrieves a user record by username or email.

Description: Single lookup serving the login flow, where the client submits
one identifier field that may hold either value.

Parameters:
  - context: context.Context
  - identifier: string

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresUserRepository) FindByIdentifier(context context.Context, identifier string) (*User, error) {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	const query = `
		SELECT ` + userColumns + `
		FROM users.account
		WHERE username = $1 OR (email = $1 AND email <> '')`

	user, err := scanUser(repository.pool.QueryRow(context, query, identifier))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, dberr.Wrap(fmt.Errorf("postgres_user_repo_find_by_identifier_failed: %w", err), "")
	}

	return user, nil
}

/*
Create persists a new user record into the users.account table.

Description: Runs in a single transaction. When an invitation token is
supplied, the token is consumed (guarded UPDATE) in the same transaction, so
a registration that loses the invitation race creates no account. Unique
violations on username or email surface as DUPLICATE_IDENTITY; the
constraint, not a prior lookup, is the final arbiter under races.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist)
  - invitationToken: string (empty for open registration)

Returns:
  - error: Duplicate identity, token lifecycle errors, or connectivity errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User, invitationToken string) error {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_user_repo_create_begin_failed: %w", err), "")
	}
	defer func() { _ = transaction.Rollback(context) }()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	const insertQuery = `
		INSERT INTO users.account (
			id, username, email, passwordhash, totpsecret, theme, bio, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = transaction.Exec(context, insertQuery,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.TOTPSecret,
		user.Theme,
		user.Bio,
		user.CreatedAt,
	)
	if err != nil {
		return dberr.Wrap(err, "Username or email is already registered")
	}

	// Consume the invitation inside the same transaction. A failure here rolls
	// back the account insert as well.
	if invitationToken != "" {
		if err := consumeInvitation(context, transaction, invitationToken, user.ID); err != nil {
			return err
		}
	}

	if err := transaction.Commit(context); err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_user_repo_create_commit_failed: %w", err), "Username or email is already registered")
	}

	return nil
}

/*
UpdateProfile persists changes to a user's mutable profile fields.

Description: Synchronizes email, theme, and bio with the database.

Parameters:
  - context: context.Context
  - user: *User

Returns:
  - error: Duplicate email or update failures
*/
func (repository *PostgresUserRepository) UpdateProfile(context context.Context, user *User) error {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	const query = `
		UPDATE users.account
		SET email = $2, theme = $3, bio = $4
		WHERE id = $1`

	_, err := repository.pool.Exec(context, query,
		user.ID,
		user.Email,
		user.Theme,
		user.Bio,
	)
	if err != nil {
		return dberr.Wrap(err, "Email is already registered")
	}

	return nil
}

/*
UpdatePassword updates only the password hash for a specific user.

Parameters:
  - context: context.Context
  - userID: string
  - newHash: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresUserRepository) UpdatePassword(context context.Context, userID, newHash string) error {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	const query = "UPDATE users.account SET passwordhash = $2 WHERE id = $1"

	_, err := repository.pool.Exec(context, query, userID, newHash)
	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_user_repo_update_password_failed: %w", err), "")
	}

	return nil
}

/*
UpdateTOTPSecret replaces the user's second-factor seed.

Description: An empty secret disables the second factor entirely.

Parameters:
  - context: context.Context
  - userID: string
  - secret: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresUserRepository) UpdateTOTPSecret(context context.Context, userID, secret string) error {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	const query = "UPDATE users.account SET totpsecret = $2 WHERE id = $1"

	_, err := repository.pool.Exec(context, query, userID, secret)
	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_user_repo_update_totp_failed: %w", err), "")
	}

	return nil
}

/*
UpdateLastLogin stamps the account's last successful authentication.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresUserRepository) UpdateLastLogin(context context.Context, userID string) error {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	const query = "UPDATE users.account SET lastloginat = NOW() WHERE id = $1"

	_, err := repository.pool.Exec(context, query, userID)
	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_user_repo_update_last_login_failed: %w", err), "")
	}

	return nil
}

/*
Count returns the total number of registered accounts.

Description: Used by the first-run bootstrap to decide whether to create the
initial administrator account.

Parameters:
  - context: context.Context

Returns:
  - int64: Account count
  - error: Execution errors
*/
func (repository *PostgresUserRepository) Count(context context.Context) (int64, error) {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	const query = "SELECT COUNT(*) FROM users.account"

	var total int64
	if err := repository.pool.QueryRow(context, query).Scan(&total); err != nil {
		return 0, dberr.Wrap(fmt.Errorf("postgres_user_repo_count_failed: %w", err), "")
	}

	return total, nil
}

// # Ledger Repository

// PostgresLedgerRepository implements the LedgerRepository interface using pgx.
type PostgresLedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new PostgreSQL implementation of LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{pool: pool}
}

/*
CreateReset persists a new reset token, superseding outstanding ones.

Description: The supersede UPDATE and the INSERT run in one transaction, so
at most one live reset exists per account at any instant, even under
concurrent issuance.

Parameters:
  - context: context.Context
  - reset: *PasswordResetToken

Returns:
  - error: Storage failures
*/
func (repository *PostgresLedgerRepository) CreateReset(context context.Context, reset *PasswordResetToken) error {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_ledger_repo_create_reset_begin_failed: %w", err), "")
	}
	defer func() { _ = transaction.Rollback(context) }()

	// Supersede: every outstanding unused reset for this user is retired first.
	const supersedeQuery = `
		UPDATE users.password_reset
		SET used = TRUE
		WHERE userid = $1 AND used = FALSE`

	if _, err := transaction.Exec(context, supersedeQuery, reset.UserID); err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_ledger_repo_supersede_failed: %w", err), "")
	}

	if reset.CreatedAt.IsZero() {
		reset.CreatedAt = time.Now()
	}

	const insertQuery = `
		INSERT INTO users.password_reset (
			id, userid, token, expiresat, used, createdat
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = transaction.Exec(context, insertQuery,
		reset.ID,
		reset.UserID,
		reset.Token,
		reset.ExpiresAt,
		reset.Used,
		reset.CreatedAt,
	)
	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_ledger_repo_create_reset_failed: %w", err), "")
	}

	if err := transaction.Commit(context); err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_ledger_repo_create_reset_commit_failed: %w", err), "")
	}

	return nil
}

/*
FindReset retrieves a reset row by its opaque token value, used or not.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - *PasswordResetToken: Hydrated entity
  - error: TOKEN_NOT_FOUND or execution errors
*/
func (repository *PostgresLedgerRepository) FindReset(context context.Context, token string) (*PasswordResetToken, error) {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	const query = `
		SELECT id, userid, token, expiresat, used, createdat
		FROM users.password_reset
		WHERE token = $1`

	reset := &PasswordResetToken{}
	err := repository.pool.QueryRow(context, query, token).Scan(
		&reset.ID,
		&reset.UserID,
		&reset.Token,
		&reset.ExpiresAt,
		&reset.Used,
		&reset.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.TokenNotFound()
		}
		return nil, dberr.Wrap(fmt.Errorf("postgres_ledger_repo_find_reset_failed: %w", err), "")
	}

	return reset, nil
}

/*
ConsumeResetAndSetPassword atomically consumes the reset and rotates the password.

Description: The consume is a guarded UPDATE (used = FALSE predicate). Under
two concurrent submissions of the same token, exactly one UPDATE matches; the
loser is classified post-hoc into the precise lifecycle error. The password
UPDATE shares the transaction, so a consumed token without a changed password
can never be observed.

Parameters:
  - context: context.Context
  - token: string
  - newHash: string

Returns:
  - string: UserID whose password changed
  - error: TOKEN_NOT_FOUND / TOKEN_EXPIRED / TOKEN_ALREADY_USED or storage failures
*/
func (repository *PostgresLedgerRepository) ConsumeResetAndSetPassword(context context.Context, token, newHash string) (string, error) {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return "", dberr.Wrap(fmt.Errorf("postgres_ledger_repo_consume_begin_failed: %w", err), "")
	}
	defer func() { _ = transaction.Rollback(context) }()

	const consumeQuery = `
		UPDATE users.password_reset
		SET used = TRUE
		WHERE token = $1 AND used = FALSE AND expiresat > NOW()
		RETURNING userid`

	var userID string
	err = transaction.QueryRow(context, consumeQuery, token).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The guarded UPDATE matched nothing: classify why.
			return "", classifyDeadReset(context, transaction, token)
		}
		return "", dberr.Wrap(fmt.Errorf("postgres_ledger_repo_consume_failed: %w", err), "")
	}

	const passwordQuery = "UPDATE users.account SET passwordhash = $2 WHERE id = $1"
	if _, err := transaction.Exec(context, passwordQuery, userID, newHash); err != nil {
		return "", dberr.Wrap(fmt.Errorf("postgres_ledger_repo_consume_password_failed: %w", err), "")
	}

	if err := transaction.Commit(context); err != nil {
		return "", dberr.Wrap(fmt.Errorf("postgres_ledger_repo_consume_commit_failed: %w", err), "")
	}

	return userID, nil
}

/*
CreateInvitation persists a new invitation record.

Parameters:
  - context: context.Context
  - invitation: *Invitation

Returns:
  - error: Storage failures
*/
func (repository *PostgresLedgerRepository) CreateInvitation(context context.Context, invitation *Invitation) error {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	const query = `
		INSERT INTO users.invitation (
			id, token, email, message, createdby, usedby, used, expiresat, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	if invitation.CreatedAt.IsZero() {
		invitation.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		invitation.ID,
		invitation.Token,
		invitation.Email,
		invitation.Message,
		invitation.CreatedBy,
		invitation.UsedBy,
		invitation.Used,
		invitation.ExpiresAt,
		invitation.CreatedAt,
	)
	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_ledger_repo_create_invitation_failed: %w", err), "")
	}

	return nil
}

/*
FindInvitation retrieves an invitation row by its opaque token value, used or not.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - *Invitation: Hydrated entity
  - error: TOKEN_NOT_FOUND or execution errors
*/
func (repository *PostgresLedgerRepository) FindInvitation(context context.Context, token string) (*Invitation, error) {
	context, cancel := postgres.WithQueryTimeout(context)
	defer cancel()

	const query = `
		SELECT id, token, email, message, createdby, usedby, used, expiresat, createdat
		FROM users.invitation
		WHERE token = $1`

	invitation := &Invitation{}
	err := repository.pool.QueryRow(context, query, token).Scan(
		&invitation.ID,
		&invitation.Token,
		&invitation.Email,
		&invitation.Message,
		&invitation.CreatedBy,
		&invitation.UsedBy,
		&invitation.Used,
		&invitation.ExpiresAt,
		&invitation.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.TokenNotFound()
		}
		return nil, dberr.Wrap(fmt.Errorf("postgres_ledger_repo_find_invitation_failed: %w", err), "")
	}

	return invitation, nil
}

// # Transactional Helpers

// consumeInvitation marks an invitation as used by the given account inside an
// existing transaction. A zero-row guarded UPDATE is classified into the
// precise token lifecycle error.
func consumeInvitation(context context.Context, transaction pgx.Tx, token, usedBy string) error {
	const consumeQuery = `
		UPDATE users.invitation
		SET used = TRUE, usedby = $2
		WHERE token = $1 AND used = FALSE AND expiresat > NOW()`

	tag, err := transaction.Exec(context, consumeQuery, token, usedBy)
	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_ledger_repo_consume_invitation_failed: %w", err), "")
	}

	if tag.RowsAffected() == 0 {
		return classifyDeadInvitation(context, transaction, token)
	}

	return nil
}

// classifyDeadReset turns a failed guarded consume into the precise token
// error. The guarded UPDATE already ruled the row dead, so only the used flag
// is needed: an unused dead row can only mean expiry.
func classifyDeadReset(context context.Context, transaction pgx.Tx, token string) error {
	const query = "SELECT used FROM users.password_reset WHERE token = $1"

	var used bool
	err := transaction.QueryRow(context, query, token).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.TokenNotFound()
		}
		return dberr.Wrap(fmt.Errorf("postgres_ledger_repo_classify_reset_failed: %w", err), "")
	}

	if used {
		return apperr.TokenAlreadyUsed()
	}
	return apperr.TokenExpired()
}

// classifyDeadInvitation turns a failed guarded consume into the precise token
// error, by the same reasoning as classifyDeadReset.
func classifyDeadInvitation(context context.Context, transaction pgx.Tx, token string) error {
	const query = "SELECT used FROM users.invitation WHERE token = $1"

	var used bool
	err := transaction.QueryRow(context, query, token).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.TokenNotFound()
		}
		return dberr.Wrap(fmt.Errorf("postgres_ledger_repo_classify_invitation_failed: %w", err), "")
	}

	if used {
		return apperr.TokenAlreadyUsed()
	}
	return apperr.TokenExpired()
}
