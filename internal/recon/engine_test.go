package recon

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"vtu-platform/internal/payment"
	"vtu-platform/internal/transaction"
	"vtu-platform/internal/wallet"
)

type fakeGateway struct {
	mu     sync.Mutex
	status payment.ChargeStatus
	amount int64
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) Initialize(ctx context.Context, req payment.InitRequest) (payment.InitResult, error) {
	return payment.InitResult{Reference: req.Reference}, nil
}

func (g *fakeGateway) Verify(ctx context.Context, reference string) (payment.VerifyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return payment.VerifyResult{Reference: reference, Status: g.status, AmountKobo: g.amount, Raw: `{"source":"fake"}`}, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *fakeNotifier) Notify(ctx context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, text)
	return nil
}

func (n *fakeNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.sent))
	copy(out, n.sent)
	return out
}

type fixture struct {
	engine   *Engine
	txs      *transaction.MemoryRepo
	ledger   *wallet.MemoryRepo
	wallets  *wallet.Service
	gateway  *fakeGateway
	notifier *fakeNotifier
}

func newFixture(t *testing.T, status payment.ChargeStatus, amountKobo int64) fixture {
	t.Helper()
	txs := transaction.NewMemoryRepo()
	ledger := wallet.NewMemoryRepo()
	wallets := wallet.NewService(ledger)
	gw := &fakeGateway{status: status, amount: amountKobo}
	nt := &fakeNotifier{}

	eng := NewEngine(txs, wallets, gw, nt, slog.New(slog.NewTextHandler(testWriter{t}, nil)))
	eng.PollAttempts = 3
	eng.PollInterval = time.Millisecond
	return fixture{engine: eng, txs: txs, ledger: ledger, wallets: wallets, gateway: gw, notifier: nt}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func pendingFundTx(t *testing.T, txs *transaction.MemoryRepo, chatID, amountKobo int64) string {
	t.Helper()
	ref := transaction.NewReference(transaction.PrefixFund, chatID, time.Now())
	_, err := txs.Create(context.Background(), transaction.Transaction{
		ID:         "tx-" + ref,
		ChatID:     chatID,
		Type:       transaction.TypeCredit,
		AmountKobo: amountKobo,
		Reference:  ref,
		Status:     transaction.StatusPending,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create pending record: %v", err)
	}
	return ref
}

func TestHandleChargeSuccess_CreditsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.ChargeSuccess, 50000)
	ref := pendingFundTx(t, f.txs, 42, 50000)

	for i := 0; i < 3; i++ {
		if err := f.engine.HandleChargeSuccess(ctx, ref); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	w, err := f.wallets.Balance(ctx, 42)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if w.BalanceKobo != 50000 {
		t.Fatalf("balance = %d, want 50000", w.BalanceKobo)
	}
	if got := len(f.ledger.Entries()); got != 1 {
		t.Fatalf("ledger entries = %d, want 1", got)
	}

	rec, _, _ := f.txs.FindByReference(ctx, ref)
	if rec.Status != transaction.StatusSuccess {
		t.Fatalf("record status = %q, want success", rec.Status)
	}
	if got := len(f.notifier.messages()); got != 1 {
		t.Fatalf("notifications = %d, want 1", got)
	}
}

func TestHandleChargeSuccess_UnverifiedIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.ChargePending, 50000)
	ref := pendingFundTx(t, f.txs, 42, 50000)

	if err := f.engine.HandleChargeSuccess(ctx, ref); err != nil {
		t.Fatalf("push: %v", err)
	}

	if got := len(f.ledger.Entries()); got != 0 {
		t.Fatalf("ledger entries = %d, want 0", got)
	}
	rec, _, _ := f.txs.FindByReference(ctx, ref)
	if rec.Status != transaction.StatusPending {
		t.Fatalf("record status = %q, want pending", rec.Status)
	}
}

func TestHandleChargeSuccess_MalformedReferenceRejected(t *testing.T) {
	f := newFixture(t, payment.ChargeSuccess, 50000)
	if err := f.engine.HandleChargeSuccess(context.Background(), "nonsense"); err == nil {
		t.Fatalf("expected error for malformed reference")
	}
}

func TestHandleChargeSuccess_CreatesRecordWhenMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.ChargeSuccess, 20000)
	ref := transaction.NewReference(transaction.PrefixFund, 7, time.Now())

	if err := f.engine.HandleChargeSuccess(ctx, ref); err != nil {
		t.Fatalf("push: %v", err)
	}

	rec, found, _ := f.txs.FindByReference(ctx, ref)
	if !found || rec.Status != transaction.StatusSuccess {
		t.Fatalf("expected success record, got found=%v status=%q", found, rec.Status)
	}
	if rec.Type != transaction.TypeCredit {
		t.Fatalf("FUND reference must record a credit, got %q", rec.Type)
	}
	w, err := f.wallets.Balance(ctx, 7)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if w.BalanceKobo != 20000 {
		t.Fatalf("balance = %d, want 20000", w.BalanceKobo)
	}
}

func TestHandleChargeSuccess_MissingRecordKeepsReferenceType(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.ChargeSuccess, 20000)
	ref := transaction.NewReference(transaction.PrefixAirtime, 9, time.Now())

	if err := f.engine.HandleChargeSuccess(ctx, ref); err != nil {
		t.Fatalf("push: %v", err)
	}

	rec, found, _ := f.txs.FindByReference(ctx, ref)
	if !found {
		t.Fatalf("expected a record for %s", ref)
	}
	if rec.Type != transaction.TypeAirtime {
		t.Fatalf("record type = %q, want %q", rec.Type, transaction.TypeAirtime)
	}
}

func TestPushPollRace_SingleCredit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.ChargeSuccess, 50000)
	ref := pendingFundTx(t, f.txs, 42, 50000)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = f.engine.HandleChargeSuccess(ctx, ref)
		}()
		go func() {
			defer wg.Done()
			f.engine.Poll(ctx, ref, 42)
		}()
	}
	wg.Wait()

	w, err := f.wallets.Balance(ctx, 42)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if w.BalanceKobo != 50000 {
		t.Fatalf("balance = %d, want exactly one credit of 50000", w.BalanceKobo)
	}
	if got := len(f.ledger.Entries()); got != 1 {
		t.Fatalf("ledger entries = %d, want 1", got)
	}
}

func TestPoll_ExhaustionNotifiesWithoutCredit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.ChargePending, 50000)
	ref := pendingFundTx(t, f.txs, 42, 50000)

	f.engine.Poll(ctx, ref, 42)

	if got := len(f.ledger.Entries()); got != 0 {
		t.Fatalf("ledger entries = %d, want 0", got)
	}
	rec, _, _ := f.txs.FindByReference(ctx, ref)
	if rec.Status != transaction.StatusPending {
		t.Fatalf("record status = %q, want pending (late webhook may still settle)", rec.Status)
	}
	msgs := f.notifier.messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "timed out") {
		t.Fatalf("expected a single timeout notice, got %q", msgs)
	}
}

func TestPoll_ExplicitFailureSettlesFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.ChargeFailed, 50000)
	ref := pendingFundTx(t, f.txs, 42, 50000)

	f.engine.Poll(ctx, ref, 42)

	if got := len(f.ledger.Entries()); got != 0 {
		t.Fatalf("ledger entries = %d, want 0", got)
	}
	rec, _, _ := f.txs.FindByReference(ctx, ref)
	if rec.Status != transaction.StatusFailed {
		t.Fatalf("record status = %q, want failed", rec.Status)
	}
	msgs := f.notifier.messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "not successful") {
		t.Fatalf("expected a failure notice, got %q", msgs)
	}
}

func TestPoll_StopsWhenPushWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.ChargeSuccess, 50000)
	ref := pendingFundTx(t, f.txs, 42, 50000)

	if err := f.engine.HandleChargeSuccess(ctx, ref); err != nil {
		t.Fatalf("push: %v", err)
	}
	before := len(f.notifier.messages())

	f.engine.Poll(ctx, ref, 42)

	if got := len(f.notifier.messages()); got != before {
		t.Fatalf("poll after push must be silent, sent %d extra", got-before)
	}
	if got := len(f.ledger.Entries()); got != 1 {
		t.Fatalf("ledger entries = %d, want 1", got)
	}
}
