package flow

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"vtu-platform/internal/billing"
	"vtu-platform/internal/chat"
	"vtu-platform/internal/payment"
	"vtu-platform/internal/session"
	"vtu-platform/internal/transaction"
	"vtu-platform/internal/user"
	"vtu-platform/internal/wallet"
)

// countingProvider wraps the sandbox so tests can assert how many purchase
// calls were made and force meter verification to fail.
type countingProvider struct {
	billing.SandboxProvider
	mu        sync.Mutex
	purchases int
	meterOK   bool
}

func (p *countingProvider) bump() {
	p.mu.Lock()
	p.purchases++
	p.mu.Unlock()
}

func (p *countingProvider) purchaseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.purchases
}

func (p *countingProvider) PurchaseAirtime(ctx context.Context, req billing.AirtimeRequest) (billing.PurchaseResult, error) {
	p.bump()
	return p.SandboxProvider.PurchaseAirtime(ctx, req)
}

func (p *countingProvider) PurchaseData(ctx context.Context, req billing.DataRequest) (billing.PurchaseResult, error) {
	p.bump()
	return p.SandboxProvider.PurchaseData(ctx, req)
}

func (p *countingProvider) PurchaseElectricity(ctx context.Context, req billing.ElectricityRequest) (billing.PurchaseResult, error) {
	p.bump()
	return p.SandboxProvider.PurchaseElectricity(ctx, req)
}

func (p *countingProvider) PurchaseTV(ctx context.Context, req billing.TVRequest) (billing.PurchaseResult, error) {
	p.bump()
	return p.SandboxProvider.PurchaseTV(ctx, req)
}

func (p *countingProvider) VerifyMeter(ctx context.Context, req billing.MeterVerifyRequest) (billing.MeterVerifyResult, error) {
	if !p.meterOK {
		return billing.MeterVerifyResult{Code: "016", Raw: `{"code":"016"}`}, nil
	}
	return p.SandboxProvider.VerifyMeter(ctx, req)
}

type stubGateway struct {
	mu    sync.Mutex
	inits int
}

func (g *stubGateway) Name() string { return "stub" }

func (g *stubGateway) Initialize(ctx context.Context, req payment.InitRequest) (payment.InitResult, error) {
	g.mu.Lock()
	g.inits++
	g.mu.Unlock()
	return payment.InitResult{
		Reference:        req.Reference,
		AuthorizationURL: "https://checkout.example/" + req.Reference,
	}, nil
}

func (g *stubGateway) Verify(ctx context.Context, reference string) (payment.VerifyResult, error) {
	return payment.VerifyResult{Reference: reference, Status: payment.ChargePending}, nil
}

func (g *stubGateway) initCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inits
}

type fixture struct {
	machine  *Machine
	sessions *session.MemoryStore
	ledger   *wallet.MemoryRepo
	wallets  *wallet.Service
	txs      *transaction.MemoryRepo
	provider *countingProvider
	gateway  *stubGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledger := wallet.NewMemoryRepo()
	wallets := wallet.NewService(ledger)
	txs := transaction.NewMemoryRepo()
	sessions := session.NewMemoryStore()
	provider := &countingProvider{meterOK: true}
	gateway := &stubGateway{}

	machine := NewMachine(Deps{
		Sessions:    sessions,
		Locks:       session.NewMemoryLocker(),
		Users:       user.NewService(user.NewMemoryRepo()),
		Wallets:     wallets,
		Txs:         txs,
		Billing:     provider,
		Gateway:     gateway,
		CallbackURL: "https://bot.example/callback",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	return &fixture{
		machine:  machine,
		sessions: sessions,
		ledger:   ledger,
		wallets:  wallets,
		txs:      txs,
		provider: provider,
		gateway:  gateway,
	}
}

func (f *fixture) seed(t *testing.T, chatID, amountKobo int64) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.wallets.Ensure(ctx, chatID); err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	if _, _, err := f.wallets.Credit(ctx, chatID, amountKobo, "SEED", "seed"); err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
}

func (f *fixture) send(t *testing.T, ev chat.Event) []chat.Message {
	t.Helper()
	msgs, err := f.machine.Handle(context.Background(), ev)
	if err != nil {
		t.Fatalf("handle %+v: %v", ev, err)
	}
	return msgs
}

func cmd(chatID int64, command, arg string) chat.Event {
	return chat.Event{ChatID: chatID, Command: command, CommandArg: arg}
}

func txt(chatID int64, text string) chat.Event {
	return chat.Event{ChatID: chatID, Text: text}
}

func cb(chatID int64, data string) chat.Event {
	return chat.Event{ChatID: chatID, Callback: data, CallbackID: "cb"}
}

func lastText(t *testing.T, msgs []chat.Message) string {
	t.Helper()
	if len(msgs) == 0 {
		t.Fatalf("expected a reply")
	}
	return msgs[len(msgs)-1].Text
}

func TestStartShowsMenu(t *testing.T) {
	f := newFixture(t)
	msgs := f.send(t, cmd(1, "start", ""))
	if len(msgs) != 1 || len(msgs[0].Buttons) == 0 {
		t.Fatalf("expected one menu message with buttons, got %+v", msgs)
	}
}

func TestAirtimePurchaseHappyPath(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1, 50_000) // ₦500
	ctx := context.Background()

	f.send(t, cb(1, "buy_airtime"))
	f.send(t, cb(1, "mtn"))
	f.send(t, txt(1, "0801 234 5678"))
	f.send(t, txt(1, "200"))
	msgs := f.send(t, txt(1, "yes"))

	if got := lastText(t, msgs); !strings.Contains(got, "successful") {
		t.Fatalf("expected success reply, got %q", got)
	}

	w, err := f.wallets.Balance(ctx, 1)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if w.BalanceKobo != 30_000 {
		t.Fatalf("balance = %d, want 30000 after a ₦200 debit", w.BalanceKobo)
	}

	recs, err := f.txs.ListByChat(ctx, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 || recs[0].Type != transaction.TypeAirtime || recs[0].Status != transaction.StatusSuccess {
		t.Fatalf("unexpected records: %+v", recs)
	}
	if recs[0].AmountKobo != 20_000 {
		t.Fatalf("record amount = %d, want 20000", recs[0].AmountKobo)
	}

	if _, ok, _ := f.sessions.Get(ctx, 1); ok {
		t.Fatalf("session must be cleared after execute")
	}
}

func TestConfirmReplayExecutesOnce(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1, 50_000)

	f.send(t, cb(1, "buy_airtime"))
	f.send(t, cb(1, "mtn"))
	f.send(t, txt(1, "08012345678"))
	f.send(t, txt(1, "200"))
	f.send(t, txt(1, "yes"))
	f.send(t, txt(1, "yes")) // duplicate confirmation after the session is gone

	if got := f.provider.purchaseCount(); got != 1 {
		t.Fatalf("provider calls = %d, want 1", got)
	}

	w, _ := f.wallets.Balance(context.Background(), 1)
	if w.BalanceKobo != 30_000 {
		t.Fatalf("balance = %d, want 30000 (single debit)", w.BalanceKobo)
	}
}

func TestInsufficientBalanceSkipsProvider(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1, 10_000) // ₦100, not enough for ₦200 airtime

	f.send(t, cb(1, "buy_airtime"))
	f.send(t, cb(1, "mtn"))
	f.send(t, txt(1, "08012345678"))
	f.send(t, txt(1, "200"))
	msgs := f.send(t, txt(1, "yes"))

	if got := lastText(t, msgs); !strings.Contains(got, "Insufficient balance") {
		t.Fatalf("expected insufficient-balance reply, got %q", got)
	}
	if got := f.provider.purchaseCount(); got != 0 {
		t.Fatalf("provider calls = %d, want 0", got)
	}
	w, _ := f.wallets.Balance(context.Background(), 1)
	if w.BalanceKobo != 10_000 {
		t.Fatalf("balance = %d, want untouched 10000", w.BalanceKobo)
	}
}

func TestElectricityVerifyFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1, 100_000)
	f.provider.meterOK = false
	ctx := context.Background()

	f.send(t, cb(1, "buy_electricity"))
	f.send(t, cb(1, "ikeja-electric"))
	msgs := f.send(t, txt(1, "1234567890"))

	if got := lastText(t, msgs); !strings.Contains(got, "couldn't verify") {
		t.Fatalf("expected verification failure reply, got %q", got)
	}
	if _, ok, _ := f.sessions.Get(ctx, 1); ok {
		t.Fatalf("session must be cleared after failed verification")
	}
	w, _ := f.wallets.Balance(ctx, 1)
	if w.BalanceKobo != 100_000 {
		t.Fatalf("balance = %d, want untouched 100000", w.BalanceKobo)
	}
}

func TestDataPlanSelectionMatchesCodeCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1, 100_000)
	ctx := context.Background()

	f.send(t, cb(1, "buy_data"))
	f.send(t, cb(1, "mtn"))
	plans := f.send(t, txt(1, "08012345678"))
	if got := lastText(t, plans); !strings.Contains(got, "mtn-data-1gb") {
		t.Fatalf("expected plan list, got %q", got)
	}

	// A mismatching code re-prompts without advancing.
	msgs := f.send(t, txt(1, "no-such-plan"))
	if got := lastText(t, msgs); !strings.Contains(got, "doesn't match") {
		t.Fatalf("expected re-prompt, got %q", got)
	}
	s, ok, _ := f.sessions.Get(ctx, 1)
	if !ok || s.Stage != session.StageDataPlan {
		t.Fatalf("stage = %v, want data_plan", s.Stage)
	}

	f.send(t, txt(1, "MTN-DATA-1GB"))
	s, _, _ = f.sessions.Get(ctx, 1)
	if s.Stage != session.StageDataConfirm || s.AmountKobo != 30_000 {
		t.Fatalf("unexpected session after plan pick: %+v", s)
	}
}

func TestInvalidPhoneReprompts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.send(t, cb(1, "buy_airtime"))
	f.send(t, cb(1, "mtn"))
	f.send(t, txt(1, "12345"))

	s, ok, _ := f.sessions.Get(ctx, 1)
	if !ok || s.Stage != session.StageAirtimePhone {
		t.Fatalf("stage = %v, want airtime_phone (no advance)", s.Stage)
	}
}

func TestSessionIsolationAcrossChats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.send(t, cb(1, "buy_airtime"))
	f.send(t, cb(1, "mtn"))
	f.send(t, cb(2, "buy_tv"))
	f.send(t, cmd(2, "cancel", ""))

	s, ok, _ := f.sessions.Get(ctx, 1)
	if !ok || s.Stage != session.StageAirtimePhone || s.ServiceID != "mtn" {
		t.Fatalf("chat 1 session corrupted by chat 2 activity: %+v", s)
	}
}

func TestCancelClearsSessionFromAnyStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.send(t, cb(1, "buy_airtime"))
	f.send(t, cb(1, "mtn"))
	f.send(t, txt(1, "08012345678"))
	f.send(t, cmd(1, "cancel", ""))

	if _, ok, _ := f.sessions.Get(ctx, 1); ok {
		t.Fatalf("session must be gone after /cancel")
	}
}

func TestFundInitializesPendingTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msgs := f.send(t, cmd(1, "fund", "500"))
	if got := lastText(t, msgs); !strings.Contains(got, "https://checkout.example/") {
		t.Fatalf("expected checkout link, got %q", got)
	}
	if f.gateway.initCount() != 1 {
		t.Fatalf("gateway inits = %d, want 1", f.gateway.initCount())
	}

	recs, err := f.txs.ListByChat(ctx, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 || recs[0].Type != transaction.TypeCredit || recs[0].Status != transaction.StatusPending {
		t.Fatalf("unexpected records: %+v", recs)
	}
	if recs[0].AmountKobo != 50_000 {
		t.Fatalf("record amount = %d, want 50000", recs[0].AmountKobo)
	}

	// No credit until reconciliation confirms the charge.
	w, _ := f.wallets.Balance(ctx, 1)
	if w.BalanceKobo != 0 {
		t.Fatalf("balance = %d, want 0 before reconciliation", w.BalanceKobo)
	}
}

func TestFundRejectsBelowMinimum(t *testing.T) {
	f := newFixture(t)

	msgs := f.send(t, cmd(1, "fund", "50"))
	if got := lastText(t, msgs); !strings.Contains(got, "at least ₦100") {
		t.Fatalf("expected minimum-amount reply, got %q", got)
	}
	if f.gateway.initCount() != 0 {
		t.Fatalf("gateway inits = %d, want 0", f.gateway.initCount())
	}
}

func TestTestfundDisabledOutsideTestMode(t *testing.T) {
	f := newFixture(t)

	msgs := f.send(t, cmd(1, "testfund", "500"))
	if got := lastText(t, msgs); !strings.Contains(got, "Unknown command") {
		t.Fatalf("expected unknown-command reply, got %q", got)
	}
	w, _ := f.wallets.Balance(context.Background(), 1)
	if w.BalanceKobo != 0 {
		t.Fatalf("balance = %d, want 0", w.BalanceKobo)
	}
}
