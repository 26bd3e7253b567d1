package transaction

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository is the persistence contract for transaction records.
//
// Settle is a compare-and-set: it moves a record from pending to the given
// terminal status and reports whether this call performed the transition.
// A record already in a terminal state is never rewritten.
type Repository interface {
	Create(ctx context.Context, t Transaction) (Transaction, error)
	FindByReference(ctx context.Context, reference string) (Transaction, bool, error)
	Settle(ctx context.Context, reference string, status Status, details string, now time.Time) (bool, error)
	ListByChat(ctx context.Context, chatID int64, limit int) ([]Transaction, error)
}

var ErrInvalidRecord = errors.New("transaction: invalid record")

// PostgresRepo persists transaction records.
//
// Assumed table:
//   transactions (id UUID PRIMARY KEY, chat_id BIGINT, type TEXT, amount_kobo BIGINT,
//                 reference TEXT UNIQUE, details JSONB, status TEXT,
//                 created_at TIMESTAMPTZ, updated_at TIMESTAMPTZ)
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Create(ctx context.Context, t Transaction) (Transaction, error) {
	if t.Reference == "" || t.ChatID == 0 {
		return Transaction{}, ErrInvalidRecord
	}
	const q = `
INSERT INTO transactions (id, chat_id, type, amount_kobo, reference, details, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
RETURNING id, chat_id, type, amount_kobo, reference, details, status, created_at, updated_at
`
	var out Transaction
	err := r.db.QueryRowContext(ctx, q,
		t.ID, t.ChatID, t.Type, t.AmountKobo, t.Reference, t.Details, t.Status, t.CreatedAt,
	).Scan(
		&out.ID, &out.ChatID, &out.Type, &out.AmountKobo, &out.Reference, &out.Details, &out.Status, &out.CreatedAt, &out.UpdatedAt,
	)
	return out, err
}

func (r *PostgresRepo) FindByReference(ctx context.Context, reference string) (Transaction, bool, error) {
	const q = `
SELECT id, chat_id, type, amount_kobo, reference, details, status, created_at, updated_at
FROM transactions
WHERE reference = $1
`
	var t Transaction
	err := r.db.QueryRowContext(ctx, q, reference).Scan(
		&t.ID, &t.ChatID, &t.Type, &t.AmountKobo, &t.Reference, &t.Details, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transaction{}, false, nil
		}
		return Transaction{}, false, err
	}
	return t, true, nil
}

func (r *PostgresRepo) Settle(ctx context.Context, reference string, status Status, details string, now time.Time) (bool, error) {
	if status != StatusSuccess && status != StatusFailed {
		return false, ErrInvalidRecord
	}
	// CAS on the pending state: losers of a push/poll race update zero rows.
	const q = `
UPDATE transactions
SET status = $2,
    details = CASE WHEN $3 <> '' THEN $3 ELSE details END,
    updated_at = $4
WHERE reference = $1 AND status = 'pending'
`
	res, err := r.db.ExecContext(ctx, q, reference, status, details, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepo) ListByChat(ctx context.Context, chatID int64, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, chat_id, type, amount_kobo, reference, details, status, created_at, updated_at
FROM transactions
WHERE chat_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID, &t.ChatID, &t.Type, &t.AmountKobo, &t.Reference, &t.Details, &t.Status, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
