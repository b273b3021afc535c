package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sakif/repo-rater/internal/model"
	"github.com/sakif/repo-rater/internal/repository"
)

var _ repository.BlacklistRepository = (*DB)(nil)

// blacklistID is the key of the singleton configuration row.
const blacklistID = "blacklistConfig"

// GetBlacklist reads the moderation list. A missing row is an empty list.
func (db *DB) GetBlacklist(ctx context.Context) (*model.Blacklist, error) {
	var raw string
	err := db.conn.QueryRowContext(ctx,
		`SELECT words FROM blacklist_config WHERE id = ?`, blacklistID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.Blacklist{Words: []model.BlacklistEntry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading blacklist: %w", err)
	}

	bl := &model.Blacklist{}
	if err := json.Unmarshal([]byte(raw), &bl.Words); err != nil {
		return nil, fmt.Errorf("sqlite: decoding blacklist: %w", err)
	}
	return bl, nil
}

// CreateBlacklistIfNotExists stores bl only when no configuration exists yet.
// It reports whether a row was written.
func (db *DB) CreateBlacklistIfNotExists(ctx context.Context, bl *model.Blacklist) (bool, error) {
	words := bl.Words
	if words == nil {
		words = []model.BlacklistEntry{}
	}
	raw, err := json.Marshal(words)
	if err != nil {
		return false, fmt.Errorf("sqlite: encoding blacklist: %w", err)
	}

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO blacklist_config (id, words) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		blacklistID, string(raw),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: creating blacklist: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n == 1, nil
}
