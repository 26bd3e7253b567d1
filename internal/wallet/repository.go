package wallet

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"vtu-platform/pkg/utils"
)

// PostgresRepo persists wallets and the ledger.
//
// Assumed tables:
//   wallets (chat_id BIGINT PRIMARY KEY, balance_kobo BIGINT NOT NULL DEFAULT 0,
//            created_at TIMESTAMPTZ, updated_at TIMESTAMPTZ)
//   wallet_ledger (id UUID PRIMARY KEY, chat_id BIGINT, type TEXT, amount_kobo BIGINT,
//                  reference TEXT, idempotency_key TEXT, created_at TIMESTAMPTZ,
//                  UNIQUE (chat_id, idempotency_key))
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Ensure(ctx context.Context, chatID int64, now time.Time) (Wallet, error) {
	const q = `
INSERT INTO wallets (chat_id, balance_kobo, created_at, updated_at)
VALUES ($1, 0, $2, $2)
ON CONFLICT (chat_id) DO UPDATE SET chat_id = EXCLUDED.chat_id
RETURNING chat_id, balance_kobo, created_at, updated_at
`
	var w Wallet
	err := r.db.QueryRowContext(ctx, q, chatID, now).Scan(
		&w.ChatID,
		&w.BalanceKobo,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	return w, err
}

func (r *PostgresRepo) Get(ctx context.Context, chatID int64) (Wallet, error) {
	const q = `
SELECT chat_id, balance_kobo, created_at, updated_at
FROM wallets
WHERE chat_id = $1
`
	var w Wallet
	if err := r.db.QueryRowContext(ctx, q, chatID).Scan(
		&w.ChatID,
		&w.BalanceKobo,
		&w.CreatedAt,
		&w.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	return w, nil
}

// Apply posts a ledger entry and moves the balance in one transaction.
// The wallet row is locked first to serialize concurrent money operations
// per wallet; the idempotency lookup then makes retries return the original
// entry without re-applying it.
func (r *PostgresRepo) Apply(ctx context.Context, e Entry) (Entry, Wallet, error) {
	var outEntry Entry
	var outWallet Wallet

	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		w, err := lockWallet(ctx, tx, e.ChatID)
		if err != nil {
			return err
		}

		if existing, ok, err := findEntryByIdempotency(ctx, tx, e.ChatID, e.IdempotencyKey); err != nil {
			return err
		} else if ok {
			outEntry = existing
			outWallet = w
			return nil
		}

		if w.BalanceKobo+e.AmountKobo < 0 {
			return ErrInsufficientFunds
		}

		if err := insertEntry(ctx, tx, e); err != nil {
			return err
		}

		out, err := updateBalance(ctx, tx, e.ChatID, e.AmountKobo, e.CreatedAt)
		if err != nil {
			return err
		}
		outEntry = e
		outWallet = out
		return nil
	})

	return outEntry, outWallet, err
}

func lockWallet(ctx context.Context, tx *sql.Tx, chatID int64) (Wallet, error) {
	const q = `
SELECT chat_id, balance_kobo, created_at, updated_at
FROM wallets
WHERE chat_id = $1
FOR UPDATE
`
	var w Wallet
	if err := tx.QueryRowContext(ctx, q, chatID).Scan(
		&w.ChatID,
		&w.BalanceKobo,
		&w.CreatedAt,
		&w.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	return w, nil
}

func findEntryByIdempotency(ctx context.Context, tx *sql.Tx, chatID int64, key string) (Entry, bool, error) {
	const q = `
SELECT id, chat_id, type, amount_kobo, reference, idempotency_key, created_at
FROM wallet_ledger
WHERE chat_id = $1 AND idempotency_key = $2
LIMIT 1
`
	var e Entry
	err := tx.QueryRowContext(ctx, q, chatID, key).Scan(
		&e.ID,
		&e.ChatID,
		&e.Type,
		&e.AmountKobo,
		&e.Reference,
		&e.IdempotencyKey,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return e, true, nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, e Entry) error {
	const q = `
INSERT INTO wallet_ledger (id, chat_id, type, amount_kobo, reference, idempotency_key, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := tx.ExecContext(ctx, q,
		e.ID,
		e.ChatID,
		e.Type,
		e.AmountKobo,
		e.Reference,
		e.IdempotencyKey,
		e.CreatedAt,
	)
	return err
}

func updateBalance(ctx context.Context, tx *sql.Tx, chatID, deltaKobo int64, now time.Time) (Wallet, error) {
	const q = `
UPDATE wallets
SET balance_kobo = balance_kobo + $2,
    updated_at = $3
WHERE chat_id = $1
RETURNING chat_id, balance_kobo, created_at, updated_at
`
	var w Wallet
	if err := tx.QueryRowContext(ctx, q, chatID, deltaKobo, now).Scan(
		&w.ChatID,
		&w.BalanceKobo,
		&w.CreatedAt,
		&w.UpdatedAt,
	); err != nil {
		return Wallet{}, err
	}
	return w, nil
}
