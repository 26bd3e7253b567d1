package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"vtu-platform/internal/auth"
	"vtu-platform/internal/payment"
	"vtu-platform/internal/transaction"
	"vtu-platform/internal/wallet"

	"github.com/gin-gonic/gin"
)

// Reconciler is the recon engine's push entry point.
type Reconciler interface {
	HandleChargeSuccess(ctx context.Context, reference string) error
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth    *auth.Manager
	Wallets *wallet.Service
	Txs     transaction.Repository
	Recon   Reconciler
	Log     *slog.Logger

	// PaystackSecret signs webhook bodies.
	PaystackSecret string
}

// --- Auth ---

type loginRequest struct {
	OperatorID string `json:"operator_id"`
	Role       string `json:"role"`
}

// Login issues an operator JWT.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.OperatorID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "operator_id, role required"})
		return
	}
	tok, err := h.Auth.Issue(time.Now(), req.OperatorID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": tok})
}

// --- Wallet ---

func chatIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "chat_id must be a numeric chat id"})
		return 0, false
	}
	return id, true
}

func (h Handlers) GetWalletBalance(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	w, err := h.Wallets.Balance(c.Request.Context(), chatID)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "balance lookup failed"})
		return
	}
	c.JSON(http.StatusOK, w)
}

type manualCreditRequest struct {
	AmountKobo     int64  `json:"amount_kobo"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key"`
}

// ManualCredit posts an operator wallet adjustment. This is the recovery path
// for debited-but-undelivered purchases, which are not auto-refunded.
// RBAC: finance or admin.
func (h Handlers) ManualCredit(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	operatorID, _ := auth.OperatorID(c.Request.Context())

	var req manualCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.AmountKobo <= 0 || req.IdempotencyKey == "" || req.Reason == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "amount_kobo, reason, idempotency_key required"})
		return
	}

	if _, err := h.Wallets.Ensure(c.Request.Context(), chatID); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "wallet lookup failed"})
		return
	}
	entry, w, err := h.Wallets.Credit(c.Request.Context(), chatID, req.AmountKobo, "MANUAL-"+req.IdempotencyKey, req.IdempotencyKey)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "credit failed"})
		return
	}

	h.Log.Info("manual credit applied",
		"chat_id", chatID, "amount_kobo", req.AmountKobo, "operator_id", operatorID, "reason", req.Reason)
	c.JSON(http.StatusOK, gin.H{"entry": entry, "wallet": w})
}

// ListTransactions returns a chat's recent transaction records.
// RBAC: support, finance or admin.
func (h Handlers) ListTransactions(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	recs, err := h.Txs.ListByChat(c.Request.Context(), chatID, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "transaction lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": recs})
}

// --- Webhook ---

// PaystackWebhook is the reconciliation push path. The signature is checked
// over the raw body before any lookup; a mismatch is rejected with no
// processing. Only charge.success events are processed; everything else is
// acknowledged and ignored.
func (h Handlers) PaystackWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if !payment.ValidSignature(body, c.GetHeader(payment.SignatureHeader), h.PaystackSecret) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	ev, err := payment.ParseWebhook(body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if ev.Event != payment.EventChargeSuccess {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := h.Recon.HandleChargeSuccess(c.Request.Context(), ev.Data.Reference); err != nil {
		// Webhook deliveries are retried by the gateway; reconciliation is
		// idempotent, so a retry after a transient failure is safe.
		h.Log.Error("webhook reconciliation failed", "reference", ev.Data.Reference, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Healthz reports process liveness.
func (h Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
