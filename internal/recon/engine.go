package recon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vtu-platform/internal/payment"
	"vtu-platform/internal/transaction"
	"vtu-platform/internal/wallet"

	"github.com/google/uuid"
)

// Notifier delivers terminal-outcome messages to the user.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Engine confirms external payments and applies their effect exactly once.
//
// Two producers feed it: the gateway webhook (push) and the polling fallback.
// Both race on the same reference. Exactly-once crediting rests on two guards:
// the transaction-status compare-and-set (Settle only moves pending records)
// and the wallet ledger idempotency key, which equals the payment reference.
// A signal that loses either race is a no-op, never a second credit.
type Engine struct {
	txs     transaction.Repository
	wallets *wallet.Service
	gateway payment.Gateway
	notify  Notifier
	log     *slog.Logger

	// Poll fallback shape: fixed attempt count at a fixed interval.
	PollAttempts int
	PollInterval time.Duration

	clock func() time.Time
}

func NewEngine(txs transaction.Repository, wallets *wallet.Service, gateway payment.Gateway, notify Notifier, log *slog.Logger) *Engine {
	return &Engine{
		txs:          txs,
		wallets:      wallets,
		gateway:      gateway,
		notify:       notify,
		log:          log,
		PollAttempts: 6,
		PollInterval: 10 * time.Second,
		clock:        time.Now,
	}
}

// HandleChargeSuccess is the push path. The webhook payload's own success flag
// is never trusted: the charge is re-verified with the gateway before any
// money moves.
func (e *Engine) HandleChargeSuccess(ctx context.Context, reference string) error {
	_, chatID, err := transaction.ParseReference(reference)
	if err != nil {
		return err
	}

	rec, found, err := e.txs.FindByReference(ctx, reference)
	if err != nil {
		return err
	}
	if found && rec.Status == transaction.StatusSuccess {
		// Duplicate or late signal; effects were already applied.
		return nil
	}

	vr, err := e.gateway.Verify(ctx, reference)
	if err != nil {
		return err
	}
	if vr.Status != payment.ChargeSuccess {
		e.log.Warn("push signal did not verify", "reference", reference, "status", vr.Status)
		return nil
	}

	amount := vr.AmountKobo
	if found {
		amount = rec.AmountKobo
	}
	return e.settle(ctx, reference, chatID, amount, vr.Raw, found)
}

// Poll is the fallback path for channels where pushes are unreliable. It
// re-queries the gateway until success, explicit failure, or attempt
// exhaustion; reconciliation errors keep the loop alive. The task cancels
// itself when the push path settles the reference first.
func (e *Engine) Poll(ctx context.Context, reference string, chatID int64) {
	for attempt := 1; attempt <= e.PollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.PollInterval):
		}

		rec, found, err := e.txs.FindByReference(ctx, reference)
		if err != nil {
			e.log.Error("poll record lookup failed", "reference", reference, "err", err)
			continue
		}
		if found && rec.Status != transaction.StatusPending {
			// Push path won the race (or the charge already failed); stop quietly.
			return
		}

		vr, err := e.gateway.Verify(ctx, reference)
		if err != nil {
			e.log.Error("poll verify failed", "reference", reference, "attempt", attempt, "err", err)
			continue
		}

		switch vr.Status {
		case payment.ChargeSuccess:
			amount := vr.AmountKobo
			if found {
				amount = rec.AmountKobo
			}
			if err := e.settle(ctx, reference, chatID, amount, vr.Raw, found); err != nil {
				e.log.Error("poll settle failed", "reference", reference, "err", err)
			}
			return
		case payment.ChargeFailed, payment.ChargeAbandoned:
			if _, err := e.txs.Settle(ctx, reference, transaction.StatusFailed, vr.Raw, e.clock().UTC()); err != nil {
				e.log.Error("poll fail-settle failed", "reference", reference, "err", err)
			}
			e.send(ctx, chatID, "Your payment was not successful. No money left your account? It will be reversed by your bank.")
			return
		default:
			// Still pending; keep polling.
		}
	}

	// Attempt exhaustion: notify without crediting. The record stays pending
	// so a late webhook can still settle it.
	e.send(ctx, chatID, "Payment verification timed out. If you were charged, your wallet will be credited once the payment is confirmed.")
}

// settle credits the wallet and moves the record to success, at most once.
func (e *Engine) settle(ctx context.Context, reference string, chatID, amountKobo int64, raw string, recordExists bool) error {
	if amountKobo <= 0 {
		return fmt.Errorf("recon: non-positive amount for %s", reference)
	}

	if _, err := e.wallets.Ensure(ctx, chatID); err != nil {
		return err
	}
	// Idempotency key = reference: a racing duplicate returns the original
	// ledger entry instead of crediting again.
	if _, _, err := e.wallets.Credit(ctx, chatID, amountKobo, reference, reference); err != nil {
		return err
	}

	now := e.clock().UTC()
	if recordExists {
		applied, err := e.txs.Settle(ctx, reference, transaction.StatusSuccess, raw, now)
		if err != nil {
			return err
		}
		if !applied {
			// Lost the record race after winning the credit no-op; nothing to announce.
			return nil
		}
	} else {
		// Defensive path: the push arrived before the initiating flow's write
		// completed. Record the success so the ledger and record store agree.
		// The reference prefix says what kind of record the flow would have
		// written; funding references fall back to a plain credit.
		txType := transaction.TypeCredit
		if prefix, _, err := transaction.ParseReference(reference); err == nil {
			if t, ok := transaction.TypeForPrefix(prefix); ok {
				txType = t
			}
		}
		_, err := e.txs.Create(ctx, transaction.Transaction{
			ID:         uuid.NewString(),
			ChatID:     chatID,
			Type:       txType,
			AmountKobo: amountKobo,
			Reference:  reference,
			Details:    raw,
			Status:     transaction.StatusSuccess,
			CreatedAt:  now,
		})
		if err != nil {
			return err
		}
	}

	w, err := e.wallets.Balance(ctx, chatID)
	if err != nil {
		return err
	}
	e.send(ctx, chatID, fmt.Sprintf("Wallet funded with %s. New balance: %s.", wallet.FormatKobo(amountKobo), w.NairaString()))
	return nil
}

func (e *Engine) send(ctx context.Context, chatID int64, text string) {
	if err := e.notify.Notify(ctx, chatID, text); err != nil {
		e.log.Error("notify failed", "chat_id", chatID, "err", err)
	}
}
