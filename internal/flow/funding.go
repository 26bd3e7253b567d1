package flow

import (
	"context"
	"fmt"

	"vtu-platform/internal/chat"
	"vtu-platform/internal/payment"
	"vtu-platform/internal/transaction"

	"github.com/google/uuid"
)

// startFunding initializes a gateway charge and records it pending. The wallet
// is credited later by the reconciliation engine, never here.
func (m *Machine) startFunding(ctx context.Context, chatID, amountKobo int64) ([]chat.Message, error) {
	if err := m.sessions.Delete(ctx, chatID); err != nil {
		return nil, err
	}
	if _, err := m.wallets.Ensure(ctx, chatID); err != nil {
		return nil, err
	}

	ref := transaction.NewReference(transaction.PrefixFund, chatID, m.clock())
	if _, err := m.txs.Create(ctx, transaction.Transaction{
		ID:         uuid.NewString(),
		ChatID:     chatID,
		Type:       transaction.TypeCredit,
		AmountKobo: amountKobo,
		Reference:  ref,
		Status:     transaction.StatusPending,
		CreatedAt:  m.clock().UTC(),
	}); err != nil {
		return nil, err
	}

	init, err := m.gateway.Initialize(ctx, payment.InitRequest{
		Reference:   ref,
		AmountKobo:  amountKobo,
		Email:       fundingEmail(chatID),
		CallbackURL: m.callbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("flow: payment init for %s: %w", ref, err)
	}

	// Webhooks don't reach test channels, so the poll fallback carries
	// verification there. The poll outlives this handler on purpose.
	if m.testMode && m.recon != nil {
		go m.recon.Poll(context.WithoutCancel(ctx), ref, chatID)
	}

	return m.reply(chatID, fmt.Sprintf(
		"Complete your payment here:\n%s\n\nYour wallet is credited automatically once the payment is confirmed.",
		init.AuthorizationURL)), nil
}

// fundingEmail derives the synthetic address the gateway requires for chat
// users, who have no email on record.
func fundingEmail(chatID int64) string {
	return fmt.Sprintf("chat%d@vtu-platform.local", chatID)
}

// testFund credits the wallet directly, bypassing the gateway. Test mode only.
func (m *Machine) testFund(ctx context.Context, chatID int64, arg string) ([]chat.Message, error) {
	amount := int64(100_000) // ₦1000 default
	if arg != "" {
		v, err := parseAmountKobo(arg)
		if err != nil {
			return m.reply(chatID, "Enter a valid amount, e.g. /testfund 500."), nil
		}
		amount = v
	}

	if _, err := m.wallets.Ensure(ctx, chatID); err != nil {
		return nil, err
	}

	ref := transaction.NewReference(transaction.PrefixFund, chatID, m.clock())
	if _, _, err := m.wallets.Credit(ctx, chatID, amount, ref, ref); err != nil {
		return nil, err
	}
	if _, err := m.txs.Create(ctx, transaction.Transaction{
		ID:         uuid.NewString(),
		ChatID:     chatID,
		Type:       transaction.TypeCredit,
		AmountKobo: amount,
		Reference:  ref,
		Details:    `{"source":"testfund"}`,
		Status:     transaction.StatusSuccess,
		CreatedAt:  m.clock().UTC(),
	}); err != nil {
		return nil, err
	}

	w, err := m.wallets.Balance(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return m.reply(chatID, "Test credit applied. Your wallet balance is "+w.NairaString()+"."), nil
}
