package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for wallets and their ledger.
//
// Apply must be atomic per wallet: idempotency lookup, balance check and the
// ledger insert + balance write happen under per-wallet mutual exclusion
// (row lock in Postgres, mutex in memory). No caller may observe a torn balance.
type Repository interface {
	Ensure(ctx context.Context, chatID int64, now time.Time) (Wallet, error)
	Get(ctx context.Context, chatID int64) (Wallet, error)
	Apply(ctx context.Context, e Entry) (Entry, Wallet, error)
}

var (
	ErrNotFound          = errors.New("wallet: not found")
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")
	ErrInvalidArgument   = errors.New("wallet: invalid argument")
)

// Service provides wallet operations.
//
// Money invariants:
// - No balance updates without a ledger entry
// - Ledger is append-only (immutable)
// - Balance never goes negative; a debit that would violate this is rejected
//   before any external effect occurs
type Service struct {
	repo Repository
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Ensure creates the wallet for chatID if absent. Every user owns exactly one
// wallet, created lazily before any balance-affecting operation.
func (s *Service) Ensure(ctx context.Context, chatID int64) (Wallet, error) {
	if chatID == 0 {
		return Wallet{}, ErrInvalidArgument
	}
	return s.repo.Ensure(ctx, chatID, s.clock().UTC())
}

func (s *Service) Balance(ctx context.Context, chatID int64) (Wallet, error) {
	if chatID == 0 {
		return Wallet{}, ErrInvalidArgument
	}
	return s.repo.Get(ctx, chatID)
}

// Credit posts amountKobo to the wallet. Retried calls with the same
// idempotency key return the original entry without crediting again.
func (s *Service) Credit(ctx context.Context, chatID, amountKobo int64, reference, idempotencyKey string) (Entry, Wallet, error) {
	if err := validateMoneyOp(chatID, amountKobo, idempotencyKey); err != nil {
		return Entry{}, Wallet{}, err
	}

	e := Entry{
		ID:             uuid.NewString(),
		ChatID:         chatID,
		Type:           EntryTypeCredit,
		AmountKobo:     amountKobo,
		Reference:      reference,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      s.clock().UTC(),
	}
	return s.repo.Apply(ctx, e)
}

// Debit withdraws amountKobo from the wallet. Fails with ErrInsufficientFunds
// and writes nothing when the balance would go negative.
func (s *Service) Debit(ctx context.Context, chatID, amountKobo int64, reference, idempotencyKey string) (Entry, Wallet, error) {
	if err := validateMoneyOp(chatID, amountKobo, idempotencyKey); err != nil {
		return Entry{}, Wallet{}, err
	}

	e := Entry{
		ID:             uuid.NewString(),
		ChatID:         chatID,
		Type:           EntryTypeDebit,
		AmountKobo:     -amountKobo,
		Reference:      reference,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      s.clock().UTC(),
	}
	return s.repo.Apply(ctx, e)
}

func validateMoneyOp(chatID, amountKobo int64, idempotencyKey string) error {
	if chatID == 0 {
		return ErrInvalidArgument
	}
	if amountKobo <= 0 {
		return ErrInvalidArgument
	}
	if idempotencyKey == "" {
		return ErrInvalidArgument
	}
	return nil
}
