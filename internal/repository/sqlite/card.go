package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/repo-rater/internal/apperror"
	"github.com/sakif/repo-rater/internal/model"
	"github.com/sakif/repo-rater/internal/repository"
)

var _ repository.CardRepository = (*DB)(nil)

const cardColumns = `id, url, user_id, comment, rating, anonymous, posted_at`

// Create inserts a new card.
//
// xid ids start with a timestamp, so ids of cards posted in the same
// nanosecond still sort in insertion order (List uses id as tie-breaker).
func (db *DB) Create(ctx context.Context, card *model.Card) error {
	card.ID = xid.New().String()
	if card.PostedAt.IsZero() {
		card.PostedAt = db.now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO cards (`+cardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		card.ID,
		card.URL,
		card.UserID,
		card.Comment,
		card.Rating,
		card.Anonymous,
		toNanos(card.PostedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating card: %w", err)
	}
	return nil
}

// FindByURL returns the first card with exactly this URL.
func (db *DB) FindByURL(ctx context.Context, url string) (*model.Card, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE url = ? ORDER BY posted_at LIMIT 1`,
		url,
	)

	c, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("card", url)
		}
		return nil, fmt.Errorf("sqlite: finding card by url: %w", err)
	}
	return c, nil
}

// FindPostedSince returns the newest card userID posted strictly after since.
func (db *DB) FindPostedSince(ctx context.Context, userID string, since time.Time) (*model.Card, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards
		 WHERE user_id = ? AND posted_at > ?
		 ORDER BY posted_at DESC LIMIT 1`,
		userID,
		toNanos(since),
	)

	c, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("recent card for user", userID)
		}
		return nil, fmt.Errorf("sqlite: finding recent card for user %s: %w", userID, err)
	}
	return c, nil
}

// List returns cards newest first, each with its author resolved through a
// LEFT JOIN (cards without a user come back with User == nil).
//
// SQLite treats LIMIT -1 as "no limit".
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Card, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT c.id, c.url, c.user_id, c.comment, c.rating, c.anonymous, c.posted_at,
		        u.id, u.external_id, u.name, u.handle, u.image, u.blocked, u.block_reason,
		        u.created_at, u.updated_at
		 FROM cards c
		 LEFT JOIN users u ON u.id = c.user_id
		 ORDER BY c.posted_at DESC, c.id DESC
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing cards: %w", err)
	}
	defer rows.Close()

	cards := make([]model.Card, 0)
	for rows.Next() {
		var (
			c        model.Card
			userID   sql.NullString
			postedAt int64

			uID, uExternalID, uName, uHandle, uImage, uReason sql.NullString
			uBlocked                                          sql.NullBool
			uCreated, uUpdated                                sql.NullInt64
		)
		if err := rows.Scan(
			&c.ID, &c.URL, &userID, &c.Comment, &c.Rating, &c.Anonymous, &postedAt,
			&uID, &uExternalID, &uName, &uHandle, &uImage, &uBlocked, &uReason,
			&uCreated, &uUpdated,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning card row: %w", err)
		}

		c.PostedAt = fromNanos(postedAt)
		if userID.Valid {
			id := userID.String
			c.UserID = &id
		}
		if uID.Valid {
			c.User = &model.User{
				ID:          uID.String,
				ExternalID:  uExternalID.String,
				Name:        uName.String,
				Handle:      uHandle.String,
				Image:       uImage.String,
				Blocked:     uBlocked.Bool,
				BlockReason: uReason.String,
				CreatedAt:   fromNanos(uCreated.Int64),
				UpdatedAt:   fromNanos(uUpdated.Int64),
			}
		}
		cards = append(cards, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating cards: %w", err)
	}
	return cards, nil
}

func scanCard(row *sql.Row) (*model.Card, error) {
	var (
		c        model.Card
		userID   sql.NullString
		postedAt int64
	)
	if err := row.Scan(&c.ID, &c.URL, &userID, &c.Comment, &c.Rating, &c.Anonymous, &postedAt); err != nil {
		return nil, err
	}
	if userID.Valid {
		id := userID.String
		c.UserID = &id
	}
	c.PostedAt = fromNanos(postedAt)
	return &c, nil
}
