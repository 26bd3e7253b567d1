package wallet

import "time"

// Wallet is a per-user stored balance.
// Invariant: BalanceKobo >= 0 at all times. Balance changes happen only through
// the ledger apply path; no code assigns the balance directly.
type Wallet struct {
	ChatID      int64     `json:"chat_id" db:"chat_id"`
	BalanceKobo int64     `json:"balance_kobo" db:"balance_kobo"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// NairaString formats the balance for user-facing messages.
func (w Wallet) NairaString() string {
	return FormatKobo(w.BalanceKobo)
}

// Entry is an immutable append-only ledger row.
// Credits are positive, debits are negative.
//
// Money invariant: any balance change MUST have a corresponding ledger entry,
// and the (chat_id, idempotency_key) pair is unique so retried postings are
// returned, never re-applied.
type Entry struct {
	ID     string    `json:"id" db:"id"`
	ChatID int64     `json:"chat_id" db:"chat_id"`
	Type   EntryType `json:"type" db:"type"`

	// AmountKobo is the signed amount in kobo (minor units).
	AmountKobo int64 `json:"amount_kobo" db:"amount_kobo"`

	// Reference links the entry to the transaction record it settles.
	Reference string `json:"reference,omitempty" db:"reference"`

	// IdempotencyKey is required for safe retries of money-posting operations.
	IdempotencyKey string `json:"idempotency_key" db:"idempotency_key"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EntryType string

const (
	EntryTypeCredit EntryType = "credit" // top-up, manual adjustment
	EntryTypeDebit  EntryType = "debit"  // purchase charge
)
