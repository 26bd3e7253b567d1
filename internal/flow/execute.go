package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vtu-platform/internal/billing"
	"vtu-platform/internal/chat"
	"vtu-platform/internal/session"
	"vtu-platform/internal/transaction"
	"vtu-platform/internal/wallet"

	"github.com/google/uuid"
)

// MeterType accepted by the electricity flow. Postpaid meters are not offered.
const meterTypePrepaid = "prepaid"

func meterVerifyRequest(serviceID, meter string) billing.MeterVerifyRequest {
	return billing.MeterVerifyRequest{ServiceID: serviceID, MeterNo: meter, MeterType: meterTypePrepaid}
}

// execute commits a confirmed purchase: balance check, debit, provider call,
// settled record, in that order.
//
// The session is deleted before anything else. That is the replay guard: a
// duplicate "yes" finds no session and cannot fire a second execute. The debit
// happens before the provider call, so a provider failure leaves a failed
// record against an already-reduced balance; funds are recovered by a manual
// operator credit, not an automatic refund.
func (m *Machine) execute(ctx context.Context, s session.Session) ([]chat.Message, error) {
	if err := m.sessions.Delete(ctx, s.ChatID); err != nil {
		return nil, err
	}

	cost := s.AmountKobo
	w, err := m.wallets.Ensure(ctx, s.ChatID)
	if err != nil {
		return nil, err
	}
	if w.BalanceKobo < cost {
		return m.reply(s.ChatID, fmt.Sprintf(
			"Insufficient balance: this costs %s but your wallet holds %s. Send /fund to top up.",
			wallet.FormatKobo(cost), w.NairaString())), nil
	}

	prefix, txType, label := flowKind(s.Stage)
	ref := transaction.NewReference(prefix, s.ChatID, m.clock())

	if _, _, err := m.wallets.Debit(ctx, s.ChatID, cost, ref, ref); err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			// Lost a race with another debit between the check and the lock.
			return m.reply(s.ChatID, "Insufficient balance. Send /fund to top up."), nil
		}
		return nil, err
	}

	res, callErr := m.purchase(ctx, s, ref)

	status := transaction.StatusFailed
	details := res.Raw
	if callErr != nil {
		m.log.Error("provider call failed", "reference", ref, "err", callErr)
		details = fmt.Sprintf(`{"error":%q}`, callErr.Error())
	} else if res.Delivered {
		status = transaction.StatusSuccess
	}

	if _, err := m.txs.Create(ctx, transaction.Transaction{
		ID:         uuid.NewString(),
		ChatID:     s.ChatID,
		Type:       txType,
		AmountKobo: cost,
		Reference:  ref,
		Details:    details,
		Status:     status,
		CreatedAt:  m.clock().UTC(),
	}); err != nil {
		// The debit already happened; losing the record is worse than a
		// duplicate message, so surface it loudly.
		m.log.Error("record write failed after debit", "reference", ref, "err", err)
	}

	nw, err := m.wallets.Balance(ctx, s.ChatID)
	if err != nil {
		return nil, err
	}

	if status == transaction.StatusSuccess {
		return m.reply(s.ChatID, fmt.Sprintf("%s successful! New balance: %s.\nRef: %s", label, nw.NairaString(), ref)), nil
	}
	return m.reply(s.ChatID, fmt.Sprintf(
		"%s failed and has been recorded for review. Quote ref %s when contacting support.", label, ref)), nil
}

// flowKind maps a confirm stage to its reference prefix, record type and
// user-facing label.
func flowKind(confirmStage session.Stage) (prefix string, txType transaction.Type, label string) {
	switch confirmStage {
	case session.StageAirtimeConfirm:
		return transaction.PrefixAirtime, transaction.TypeAirtime, "Airtime purchase"
	case session.StageDataConfirm:
		return transaction.PrefixData, transaction.TypeData, "Data purchase"
	case session.StageElectricityConfirm:
		return transaction.PrefixElectricity, transaction.TypeElectricity, "Electricity payment"
	case session.StageTVConfirm:
		return transaction.PrefixTV, transaction.TypeTV, "TV subscription"
	default:
		return transaction.PrefixAirtime, transaction.TypeAirtime, "Purchase"
	}
}

func (m *Machine) purchase(ctx context.Context, s session.Session, ref string) (billing.PurchaseResult, error) {
	switch s.Stage {
	case session.StageAirtimeConfirm:
		return m.billing.PurchaseAirtime(ctx, billing.AirtimeRequest{
			Reference:  ref,
			ServiceID:  s.ServiceID,
			Phone:      s.Recipient,
			AmountKobo: s.AmountKobo,
		})
	case session.StageDataConfirm:
		return m.billing.PurchaseData(ctx, billing.DataRequest{
			Reference:     ref,
			ServiceID:     s.ServiceID,
			Phone:         s.Recipient,
			VariationCode: s.VariationCode,
		})
	case session.StageElectricityConfirm:
		return m.billing.PurchaseElectricity(ctx, billing.ElectricityRequest{
			Reference:  ref,
			ServiceID:  s.ServiceID,
			MeterNo:    s.Recipient,
			MeterType:  meterTypePrepaid,
			AmountKobo: s.AmountKobo,
			Phone:      s.Recipient,
		})
	case session.StageTVConfirm:
		return m.billing.PurchaseTV(ctx, billing.TVRequest{
			Reference:     ref,
			ServiceID:     s.ServiceID,
			SmartcardNo:   s.Recipient,
			VariationCode: s.VariationCode,
			Phone:         s.Recipient,
		})
	default:
		return billing.PurchaseResult{}, fmt.Errorf("flow: no purchase for stage %s", strings.ToLower(s.Stage.String()))
	}
}
