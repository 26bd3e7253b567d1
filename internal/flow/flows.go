package flow

import (
	"context"
	"fmt"
	"strings"

	"vtu-platform/internal/chat"
	"vtu-platform/internal/session"
	"vtu-platform/internal/wallet"
)

// handleText advances free-text collection stages. Every (stage, input) pair
// not covered here re-prompts without advancing.
func (m *Machine) handleText(ctx context.Context, s session.Session, text string) ([]chat.Message, error) {
	switch s.Stage {
	case session.StageNone:
		return m.menu(s.ChatID, "Hi! Pick an option below, or send /start any time."), nil

	// Airtime
	case session.StageAirtimePhone:
		phone, ok := validPhone(text)
		if !ok {
			return m.reply(s.ChatID, "That doesn't look like a phone number. Enter 10 to 14 digits."), nil
		}
		s.Recipient = phone
		return m.advance(ctx, s, session.StageAirtimeAmount, "How much airtime? (minimum ₦50)")

	case session.StageAirtimeAmount:
		amount, err := parseAmountKobo(text)
		if err != nil || amount < minAirtimeKobo {
			return m.reply(s.ChatID, "Enter an amount of at least ₦50."), nil
		}
		s.AmountKobo = amount
		return m.advance(ctx, s, session.StageAirtimeConfirm, m.confirmText(s, session.StageAirtimeConfirm))

	case session.StageAirtimeConfirm:
		return m.handleConfirm(ctx, s, text)

	// Data
	case session.StageDataPhone:
		phone, ok := validPhone(text)
		if !ok {
			return m.reply(s.ChatID, "That doesn't look like a phone number. Enter 10 to 14 digits."), nil
		}
		s.Recipient = phone
		return m.offerVariations(ctx, s, session.StageDataPlan, "data bundles")

	case session.StageDataPlan:
		return m.selectVariation(ctx, s, text, session.StageDataConfirm)

	case session.StageDataConfirm:
		return m.handleConfirm(ctx, s, text)

	// Electricity
	case session.StageElectricityMeter:
		meter := digitsOnly(text)
		if len(meter) < 10 {
			return m.reply(s.ChatID, "That doesn't look like a meter number. Enter at least 10 digits."), nil
		}
		return m.verifyMeter(ctx, s, meter)

	case session.StageElectricityAmount:
		amount, err := parseAmountKobo(text)
		if err != nil || amount < minElectricityKobo {
			return m.reply(s.ChatID, "Enter an amount of at least ₦100."), nil
		}
		s.AmountKobo = amount
		return m.advance(ctx, s, session.StageElectricityConfirm, m.confirmText(s, session.StageElectricityConfirm))

	case session.StageElectricityConfirm:
		return m.handleConfirm(ctx, s, text)

	// TV
	case session.StageTVCard:
		card := digitsOnly(text)
		if len(card) < 10 {
			return m.reply(s.ChatID, "That doesn't look like a smartcard number. Enter at least 10 digits."), nil
		}
		s.Recipient = card
		return m.offerVariations(ctx, s, session.StageTVPlan, "packages")

	case session.StageTVPlan:
		return m.selectVariation(ctx, s, text, session.StageTVConfirm)

	case session.StageTVConfirm:
		return m.handleConfirm(ctx, s, text)

	// Funding
	case session.StageFundAmount:
		amount, err := parseAmountKobo(text)
		if err != nil || amount < minFundKobo {
			return m.reply(s.ChatID, "Enter an amount of at least ₦100."), nil
		}
		return m.startFunding(ctx, s.ChatID, amount)

	default:
		return m.reply(s.ChatID, "Please use the buttons above, or send /cancel to start over."), nil
	}
}

// offerVariations looks up the provider's plan list and moves to the
// plan-selection stage. An empty catalogue aborts the flow.
func (m *Machine) offerVariations(ctx context.Context, s session.Session, next session.Stage, what string) ([]chat.Message, error) {
	vars, err := m.billing.Variations(ctx, s.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("flow: variations for %s: %w", s.ServiceID, err)
	}
	if len(vars) == 0 {
		if err := m.sessions.Delete(ctx, s.ChatID); err != nil {
			return nil, err
		}
		return m.reply(s.ChatID, "No "+what+" are available for that provider right now. Send /start to try again."), nil
	}

	s.Variations = s.Variations[:0]
	var b strings.Builder
	fmt.Fprintf(&b, "Available %s — reply with the code of the one you want:\n", what)
	for _, v := range vars {
		s.Variations = append(s.Variations, session.PlanOption{Code: v.Code, Name: v.Name, PriceKobo: v.PriceKobo})
		fmt.Fprintf(&b, "\n%s — %s (%s)", v.Code, v.Name, wallet.FormatKobo(v.PriceKobo))
	}
	return m.advance(ctx, s, next, b.String())
}

// selectVariation matches the reply against the cached plan list. The match is
// on the exact code, case-insensitive; anything else re-prompts.
func (m *Machine) selectVariation(ctx context.Context, s session.Session, text string, next session.Stage) ([]chat.Message, error) {
	code := strings.TrimSpace(text)
	for _, v := range s.Variations {
		if strings.EqualFold(v.Code, code) {
			s.VariationCode = v.Code
			s.VariationName = v.Name
			s.AmountKobo = v.PriceKobo
			return m.advance(ctx, s, next, m.confirmText(s, next))
		}
	}
	return m.reply(s.ChatID, "That code doesn't match any plan above. Reply with one of the listed codes."), nil
}

// verifyMeter resolves the meter to a customer before any money is discussed.
// A failed verification aborts the whole flow.
func (m *Machine) verifyMeter(ctx context.Context, s session.Session, meter string) ([]chat.Message, error) {
	res, err := m.billing.VerifyMeter(ctx, meterVerifyRequest(s.ServiceID, meter))
	if err != nil {
		return nil, fmt.Errorf("flow: meter verify: %w", err)
	}
	if !res.OK() {
		if err := m.sessions.Delete(ctx, s.ChatID); err != nil {
			return nil, err
		}
		return m.reply(s.ChatID, "We couldn't verify that meter number with "+s.ServiceID+". Check the number and send /start to try again."), nil
	}

	s.Recipient = meter
	s.CustomerName = res.CustomerName
	return m.advance(ctx, s, session.StageElectricityAmount,
		fmt.Sprintf("Meter verified: %s. How much would you like to pay? (minimum ₦100)", res.CustomerName))
}

// handleConfirm accepts only the literal "yes" and "cancel" tokens.
func (m *Machine) handleConfirm(ctx context.Context, s session.Session, text string) ([]chat.Message, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes":
		return m.execute(ctx, s)
	case "cancel":
		if err := m.sessions.Delete(ctx, s.ChatID); err != nil {
			return nil, err
		}
		return m.reply(s.ChatID, "Cancelled. Send /start to begin again."), nil
	default:
		return m.reply(s.ChatID, `Reply "yes" to confirm or "cancel" to abort.`), nil
	}
}

// confirmText renders the order summary shown at a confirm stage.
func (m *Machine) confirmText(s session.Session, confirmStage session.Stage) string {
	var summary string
	switch confirmStage {
	case session.StageAirtimeConfirm:
		summary = fmt.Sprintf("%s %s airtime for %s", wallet.FormatKobo(s.AmountKobo), strings.ToUpper(s.ServiceID), s.Recipient)
	case session.StageDataConfirm:
		summary = fmt.Sprintf("%s (%s) for %s", s.VariationName, wallet.FormatKobo(s.AmountKobo), s.Recipient)
	case session.StageElectricityConfirm:
		summary = fmt.Sprintf("%s electricity payment for meter %s (%s)", wallet.FormatKobo(s.AmountKobo), s.Recipient, s.CustomerName)
	case session.StageTVConfirm:
		summary = fmt.Sprintf("%s (%s) for smartcard %s", s.VariationName, wallet.FormatKobo(s.AmountKobo), s.Recipient)
	}
	return "You are about to purchase " + summary + `. Reply "yes" to confirm or "cancel" to abort.`
}
