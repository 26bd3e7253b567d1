package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"vtu-platform/internal/billing"
	"vtu-platform/internal/chat"
	"vtu-platform/internal/payment"
	"vtu-platform/internal/session"
	"vtu-platform/internal/transaction"
	"vtu-platform/internal/user"
	"vtu-platform/internal/wallet"
)

// Reconciler is the fallback verification driver for funding references.
// Satisfied by the reconciliation engine.
type Reconciler interface {
	Poll(ctx context.Context, reference string, chatID int64)
}

// Deps bundles the machine's collaborators.
type Deps struct {
	Sessions session.Store
	Locks    session.Locker
	Users    *user.Service
	Wallets  *wallet.Service
	Txs      transaction.Repository
	Billing  billing.Provider
	Gateway  payment.Gateway
	Recon    Reconciler

	// TestMode gates the simulated funding commands and enables the polling
	// fallback after payment initialization.
	TestMode    bool
	CallbackURL string
}

// Machine is the per-chat conversational flow controller. Each chat has
// independent state; a per-chat lock serializes event handling so that two
// events arriving close together cannot interleave mid-flow and fire two
// execute steps from one confirmation.
type Machine struct {
	sessions session.Store
	locks    session.Locker
	users    *user.Service
	wallets  *wallet.Service
	txs      transaction.Repository
	billing  billing.Provider
	gateway  payment.Gateway
	recon    Reconciler
	log      *slog.Logger

	testMode    bool
	callbackURL string
	clock       func() time.Time
}

func NewMachine(d Deps, log *slog.Logger) *Machine {
	return &Machine{
		sessions:    d.Sessions,
		locks:       d.Locks,
		users:       d.Users,
		wallets:     d.Wallets,
		txs:         d.Txs,
		billing:     d.Billing,
		gateway:     d.Gateway,
		recon:       d.Recon,
		log:         log,
		testMode:    d.TestMode,
		callbackURL: d.CallbackURL,
		clock:       time.Now,
	}
}

// Flow minimums, in kobo.
const (
	minAirtimeKobo     = 5_000  // ₦50
	minElectricityKobo = 10_000 // ₦100
	minFundKobo        = 10_000 // ₦100
)

var errInvalidAmount = errors.New("flow: invalid amount")

var airtimeNetworks = []chat.Button{
	{Label: "MTN", Data: "mtn"},
	{Label: "Glo", Data: "glo"},
	{Label: "Airtel", Data: "airtel"},
	{Label: "9mobile", Data: "etisalat"},
}

var electricityProviders = []chat.Button{
	{Label: "Ikeja Electric", Data: "ikeja-electric"},
	{Label: "Eko Electric", Data: "eko-electric"},
	{Label: "Kano Electric", Data: "kano-electric"},
}

var tvProviders = []chat.Button{
	{Label: "DStv", Data: "dstv"},
	{Label: "GOtv", Data: "gotv"},
	{Label: "Startimes", Data: "startimes"},
}

func buttonSet(buttons []chat.Button) map[string]bool {
	set := make(map[string]bool, len(buttons))
	for _, b := range buttons {
		set[b.Data] = true
	}
	return set
}

var (
	validNetworks      = buttonSet(airtimeNetworks)
	validElecProviders = buttonSet(electricityProviders)
	validTVProviders   = buttonSet(tvProviders)
)

// Handle processes one inbound event for its chat and returns the replies.
// All events for a chat are serialized behind the chat lock.
func (m *Machine) Handle(ctx context.Context, ev chat.Event) ([]chat.Message, error) {
	if ev.ChatID == 0 {
		return nil, fmt.Errorf("flow: event without chat id")
	}

	release, err := m.locks.Acquire(ctx, ev.ChatID)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := m.users.Ensure(ctx, ev.ChatID, ev.DisplayName, ev.Username); err != nil {
		return nil, err
	}

	msgs, err := m.route(ctx, ev)
	if err != nil {
		// The caller converts this into a generic user-visible failure; the
		// session is reset here so the user restarts from a clean slate.
		_ = m.sessions.Delete(ctx, ev.ChatID)
		return nil, err
	}
	return msgs, nil
}

func (m *Machine) route(ctx context.Context, ev chat.Event) ([]chat.Message, error) {
	if ev.IsCommand() {
		return m.handleCommand(ctx, ev)
	}

	s, ok, err := m.sessions.Get(ctx, ev.ChatID)
	if err != nil {
		return nil, err
	}
	if !ok {
		s = session.Session{ChatID: ev.ChatID}
	}

	if ev.IsCallback() {
		return m.handleCallback(ctx, s, ev)
	}
	return m.handleText(ctx, s, ev.Text)
}

func (m *Machine) handleCommand(ctx context.Context, ev chat.Event) ([]chat.Message, error) {
	switch ev.Command {
	case "start":
		if ev.CommandArg == "wallet_funded" {
			w, err := m.wallets.Ensure(ctx, ev.ChatID)
			if err != nil {
				return nil, err
			}
			return m.reply(ev.ChatID, "Payment received! Your wallet balance is "+w.NairaString()+"."), nil
		}
		if err := m.sessions.Delete(ctx, ev.ChatID); err != nil {
			return nil, err
		}
		return m.menu(ev.ChatID, "Welcome! What would you like to do?"), nil

	case "cancel":
		if err := m.sessions.Delete(ctx, ev.ChatID); err != nil {
			return nil, err
		}
		return m.reply(ev.ChatID, "Cancelled. Send /start to begin again."), nil

	case "balance":
		w, err := m.wallets.Ensure(ctx, ev.ChatID)
		if err != nil {
			return nil, err
		}
		return m.reply(ev.ChatID, "Your wallet balance is "+w.NairaString()+"."), nil

	case "fund":
		if ev.CommandArg == "" {
			s := session.Session{ChatID: ev.ChatID, Stage: session.StageFundAmount}
			s.Touch(m.clock())
			if err := m.sessions.Put(ctx, s); err != nil {
				return nil, err
			}
			return m.reply(ev.ChatID, "How much would you like to add? (minimum ₦100)"), nil
		}
		amount, err := parseAmountKobo(ev.CommandArg)
		if err != nil || amount < minFundKobo {
			return m.reply(ev.ChatID, "Enter a valid amount of at least ₦100, e.g. /fund 500."), nil
		}
		return m.startFunding(ctx, ev.ChatID, amount)

	case "testfund":
		if !m.testMode {
			return m.reply(ev.ChatID, "Unknown command. Send /start to see the menu."), nil
		}
		return m.testFund(ctx, ev.ChatID, ev.CommandArg)

	default:
		return m.reply(ev.ChatID, "Unknown command. Send /start to see the menu."), nil
	}
}

func (m *Machine) handleCallback(ctx context.Context, s session.Session, ev chat.Event) ([]chat.Message, error) {
	if ev.Callback == "cancel" {
		if err := m.sessions.Delete(ctx, ev.ChatID); err != nil {
			return nil, err
		}
		return m.reply(ev.ChatID, "Cancelled. Send /start to begin again."), nil
	}

	switch s.Stage {
	case session.StageNone:
		return m.handleMenuSelection(ctx, ev)

	case session.StageAirtimeNetwork:
		if !validNetworks[ev.Callback] {
			return m.prompt(ev.ChatID, "That network isn't available. Pick one below.", airtimeNetworks), nil
		}
		s.ServiceID = ev.Callback
		return m.advance(ctx, s, session.StageAirtimePhone, "Enter the phone number to recharge.")

	case session.StageDataNetwork:
		if !validNetworks[ev.Callback] {
			return m.prompt(ev.ChatID, "That network isn't available. Pick one below.", airtimeNetworks), nil
		}
		s.ServiceID = ev.Callback + "-data"
		return m.advance(ctx, s, session.StageDataPhone, "Enter the phone number for the data bundle.")

	case session.StageElectricityProvider:
		if !validElecProviders[ev.Callback] {
			return m.prompt(ev.ChatID, "That provider isn't available. Pick one below.", electricityProviders), nil
		}
		s.ServiceID = ev.Callback
		return m.advance(ctx, s, session.StageElectricityMeter, "Enter your prepaid meter number.")

	case session.StageTVProvider:
		if !validTVProviders[ev.Callback] {
			return m.prompt(ev.ChatID, "That provider isn't available. Pick one below.", tvProviders), nil
		}
		s.ServiceID = ev.Callback
		return m.advance(ctx, s, session.StageTVCard, "Enter your smartcard number.")

	default:
		return m.reply(ev.ChatID, "Please finish the current step, or send /cancel to start over."), nil
	}
}

func (m *Machine) handleMenuSelection(ctx context.Context, ev chat.Event) ([]chat.Message, error) {
	switch ev.Callback {
	case "buy_airtime":
		s := session.Session{ChatID: ev.ChatID}
		return m.advanceWithButtons(ctx, s, session.StageAirtimeNetwork, "Which network?", airtimeNetworks)
	case "buy_data":
		s := session.Session{ChatID: ev.ChatID}
		return m.advanceWithButtons(ctx, s, session.StageDataNetwork, "Which network?", airtimeNetworks)
	case "buy_electricity":
		s := session.Session{ChatID: ev.ChatID}
		return m.advanceWithButtons(ctx, s, session.StageElectricityProvider, "Which electricity provider?", electricityProviders)
	case "buy_tv":
		s := session.Session{ChatID: ev.ChatID}
		return m.advanceWithButtons(ctx, s, session.StageTVProvider, "Which TV provider?", tvProviders)
	case "fund_wallet":
		s := session.Session{ChatID: ev.ChatID}
		return m.advance(ctx, s, session.StageFundAmount, "How much would you like to add? (minimum ₦100)")
	case "balance":
		w, err := m.wallets.Ensure(ctx, ev.ChatID)
		if err != nil {
			return nil, err
		}
		return m.reply(ev.ChatID, "Your wallet balance is "+w.NairaString()+"."), nil
	default:
		return m.menu(ev.ChatID, "Pick an option below."), nil
	}
}

// advance moves the session to the next stage and sends the next prompt.
func (m *Machine) advance(ctx context.Context, s session.Session, next session.Stage, promptText string) ([]chat.Message, error) {
	return m.advanceWithButtons(ctx, s, next, promptText, nil)
}

func (m *Machine) advanceWithButtons(ctx context.Context, s session.Session, next session.Stage, promptText string, buttons []chat.Button) ([]chat.Message, error) {
	s.Stage = next
	s.Touch(m.clock())
	if err := m.sessions.Put(ctx, s); err != nil {
		return nil, err
	}
	return m.prompt(s.ChatID, promptText, buttons), nil
}

func (m *Machine) menu(chatID int64, text string) []chat.Message {
	return []chat.Message{{
		ChatID: chatID,
		Text:   text,
		Buttons: [][]chat.Button{
			{{Label: "Buy Airtime", Data: "buy_airtime"}, {Label: "Buy Data", Data: "buy_data"}},
			{{Label: "Pay Electricity", Data: "buy_electricity"}, {Label: "TV Subscription", Data: "buy_tv"}},
			{{Label: "Fund Wallet", Data: "fund_wallet"}, {Label: "Balance", Data: "balance"}},
		},
	}}
}

func (m *Machine) reply(chatID int64, text string) []chat.Message {
	return []chat.Message{{ChatID: chatID, Text: text}}
}

func (m *Machine) prompt(chatID int64, text string, buttons []chat.Button) []chat.Message {
	msg := chat.Message{ChatID: chatID, Text: text}
	if len(buttons) > 0 {
		msg.Buttons = chat.Row(buttons...)
	}
	return []chat.Message{msg}
}

// parseAmountKobo converts user-entered naira ("500", "1,500.50", "₦200")
// into kobo.
func parseAmountKobo(text string) (int64, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "₦")
	text = strings.ReplaceAll(text, ",", "")
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, errInvalidAmount
	}
	return int64(math.Round(v * 100)), nil
}

// digitsOnly strips everything but digits, so "0801 234-5678" validates.
func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func validPhone(s string) (string, bool) {
	d := digitsOnly(s)
	return d, len(d) >= 10 && len(d) <= 14
}
