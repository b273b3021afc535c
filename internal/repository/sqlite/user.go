package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/repo-rater/internal/apperror"
	"github.com/sakif/repo-rater/internal/model"
	"github.com/sakif/repo-rater/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, external_id, name, handle, image, blocked, block_reason, created_at, updated_at`

// GetByExternalID looks a user up by GitHub account id.
func (db *DB) GetByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_id = ?`,
		externalID,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", externalID)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", externalID, err)
	}
	return u, nil
}

// Upsert inserts a new user or refreshes the profile fields of an existing one.
//
// ON CONFLICT(external_id) turns the insert into an update of name, handle,
// image and updated_at only. id, created_at and the block state of an
// existing row are never touched; RETURNING hands them back so the caller
// sees the stored record.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	now := db.now()

	var (
		blocked   bool
		createdAt int64
		updatedAt int64
	)
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO users (id, external_id, name, handle, image, blocked, block_reason, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, '', ?, ?)
		 ON CONFLICT(external_id) DO UPDATE SET
			name = excluded.name,
			handle = excluded.handle,
			image = excluded.image,
			updated_at = excluded.updated_at
		 RETURNING id, blocked, block_reason, created_at, updated_at`,
		xid.New().String(),
		user.ExternalID,
		user.Name,
		user.Handle,
		user.Image,
		toNanos(now),
		toNanos(now),
	).Scan(&user.ID, &blocked, &user.BlockReason, &createdAt, &updatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: upserting user (externalID=%s): %w", user.ExternalID, err)
	}

	user.Blocked = blocked
	user.CreatedAt = fromNanos(createdAt)
	user.UpdatedAt = fromNanos(updatedAt)
	return nil
}

// Block marks the user as blocked from posting with the given reason.
func (db *DB) Block(ctx context.Context, externalID, reason string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET blocked = 1, block_reason = ?, updated_at = ? WHERE external_id = ?`,
		reason,
		toNanos(db.now()),
		externalID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: blocking user %s: %w", externalID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", externalID)
	}
	return nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u         model.User
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&u.ID,
		&u.ExternalID,
		&u.Name,
		&u.Handle,
		&u.Image,
		&u.Blocked,
		&u.BlockReason,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = fromNanos(createdAt)
	u.UpdatedAt = fromNanos(updatedAt)
	return &u, nil
}
