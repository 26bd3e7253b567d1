package user

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo persists users.
//
// Assumed table:
//   users (chat_id BIGINT PRIMARY KEY, display_name TEXT, username TEXT, created_at TIMESTAMPTZ)
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Find(ctx context.Context, chatID int64) (User, bool, error) {
	const q = `
SELECT chat_id, display_name, username, created_at
FROM users
WHERE chat_id = $1
`
	var u User
	err := r.db.QueryRowContext(ctx, q, chatID).Scan(
		&u.ChatID,
		&u.DisplayName,
		&u.Username,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, false, nil
		}
		return User{}, false, err
	}
	return u, true, nil
}

func (r *PostgresRepo) Upsert(ctx context.Context, u User) (User, error) {
	const q = `
INSERT INTO users (chat_id, display_name, username, created_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (chat_id)
DO UPDATE SET display_name = EXCLUDED.display_name,
              username = EXCLUDED.username
RETURNING chat_id, display_name, username, created_at
`
	var out User
	err := r.db.QueryRowContext(ctx, q, u.ChatID, u.DisplayName, u.Username, u.CreatedAt).Scan(
		&out.ChatID,
		&out.DisplayName,
		&out.Username,
		&out.CreatedAt,
	)
	return out, err
}
