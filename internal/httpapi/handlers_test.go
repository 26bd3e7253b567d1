package httpapi

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vtu-platform/internal/payment"
	"vtu-platform/internal/transaction"
	"vtu-platform/internal/wallet"

	"github.com/gin-gonic/gin"
)

type spyRecon struct {
	refs []string
}

func (s *spyRecon) HandleChargeSuccess(ctx context.Context, reference string) error {
	s.refs = append(s.refs, reference)
	return nil
}

func webhookRouter(recon *spyRecon) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := Handlers{
		Recon:          recon,
		Log:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		PaystackSecret: "whsec",
	}
	r := gin.New()
	r.POST("/webhooks/paystack", h.PaystackWebhook)
	return r
}

func postWebhook(r *gin.Engine, body, signature string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader([]byte(body)))
	if signature != "" {
		req.Header.Set(payment.SignatureHeader, signature)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestPaystackWebhook_InvalidSignatureRejectedWithoutProcessing(t *testing.T) {
	recon := &spyRecon{}
	r := webhookRouter(recon)

	body := `{"event":"charge.success","data":{"reference":"FUND_42_1700000000000"}}`
	w := postWebhook(r, body, "deadbeef")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if len(recon.refs) != 0 {
		t.Fatalf("reconciliation must not run on signature mismatch, got %v", recon.refs)
	}
}

func TestPaystackWebhook_MissingSignatureRejected(t *testing.T) {
	recon := &spyRecon{}
	r := webhookRouter(recon)

	w := postWebhook(r, `{"event":"charge.success"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestPaystackWebhook_ChargeSuccessProcessed(t *testing.T) {
	recon := &spyRecon{}
	r := webhookRouter(recon)

	body := `{"event":"charge.success","data":{"reference":"FUND_42_1700000000000","status":"success","amount":50000}}`
	w := postWebhook(r, body, payment.Sign([]byte(body), "whsec"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(recon.refs) != 1 || recon.refs[0] != "FUND_42_1700000000000" {
		t.Fatalf("unexpected reconciliation calls: %v", recon.refs)
	}
}

func TestPaystackWebhook_OtherEventsAcknowledgedAndIgnored(t *testing.T) {
	recon := &spyRecon{}
	r := webhookRouter(recon)

	body := `{"event":"transfer.success","data":{"reference":"FUND_42_1700000000000"}}`
	w := postWebhook(r, body, payment.Sign([]byte(body), "whsec"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(recon.refs) != 0 {
		t.Fatalf("non-charge events must be ignored, got %v", recon.refs)
	}
}

func TestManualCredit_AppliesOnceUnderRetriedKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	wallets := wallet.NewService(wallet.NewMemoryRepo())
	h := Handlers{
		Wallets: wallets,
		Txs:     transaction.NewMemoryRepo(),
		Log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	r := gin.New()
	r.POST("/v1/wallets/:chat_id/credit", h.ManualCredit)

	body := `{"amount_kobo":20000,"reason":"undelivered airtime AIRTIME_42_1700000000000","idempotency_key":"adj-1"}`
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/wallets/42/credit", strings.NewReader(body))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("attempt %d: status = %d, want 200", i, w.Code)
		}
	}

	bal, err := wallets.Balance(context.Background(), 42)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.BalanceKobo != 20000 {
		t.Fatalf("balance = %d, want 20000 (credited once)", bal.BalanceKobo)
	}
}

func TestManualCredit_RejectsBadInput(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := Handlers{
		Wallets: wallet.NewService(wallet.NewMemoryRepo()),
		Log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	r := gin.New()
	r.POST("/v1/wallets/:chat_id/credit", h.ManualCredit)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/wallets/42/credit", strings.NewReader(`{"amount_kobo":-5}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
