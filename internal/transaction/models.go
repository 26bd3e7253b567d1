package transaction

import "time"

// Type categorizes a transaction record.
type Type string

const (
	TypeCredit      Type = "credit" // wallet funding
	TypeAirtime     Type = "airtime"
	TypeData        Type = "data"
	TypeElectricity Type = "electricity"
	TypeTV          Type = "tv"
)

// Status is the record lifecycle state.
// Funding records are created pending and move to exactly one terminal state
// exactly once; purchase records are created directly in their terminal state
// because the debit and provider call are synchronous in that flow.
// Records are immutable after reaching a terminal state.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Transaction is a reference-keyed money movement record.
type Transaction struct {
	ID     string `json:"id" db:"id"`
	ChatID int64  `json:"chat_id" db:"chat_id"`
	Type   Type   `json:"type" db:"type"`

	AmountKobo int64 `json:"amount_kobo" db:"amount_kobo"`

	// Reference is globally unique and identifies the transaction end-to-end
	// across the payment gateway and billing provider.
	Reference string `json:"reference" db:"reference"`

	// Details is an opaque provider request/response echo, stored as JSON.
	Details string `json:"details,omitempty" db:"details"`

	Status    Status    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
