package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const paystackBaseURL = "https://api.paystack.co"

// PaystackGateway talks to the Paystack REST API.
//
// Retry policy: bounded exponential backoff, applied ONLY to HTTP 429
// (rate limit) responses, up to maxAttempts. Any other failure surfaces
// immediately; reconciliation owns retries beyond that.
type PaystackGateway struct {
	baseURL   string
	secretKey string

	httpClient *http.Client

	maxAttempts  int
	retryBackoff time.Duration
}

func NewPaystackGateway(secretKey string) *PaystackGateway {
	return &PaystackGateway{
		baseURL:      paystackBaseURL,
		secretKey:    secretKey,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		maxAttempts:  3,
		retryBackoff: time.Second,
	}
}

func (g *PaystackGateway) Name() string { return "paystack" }

func (g *PaystackGateway) Initialize(ctx context.Context, req InitRequest) (InitResult, error) {
	if req.Reference == "" || req.AmountKobo <= 0 || req.Email == "" {
		return InitResult{}, ErrInvalidRequest
	}

	body := map[string]any{
		"reference": req.Reference,
		"amount":    req.AmountKobo, // Paystack expects kobo
		"email":     req.Email,
	}
	if req.CallbackURL != "" {
		body["callback_url"] = req.CallbackURL
	}

	raw, err := g.do(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return InitResult{}, err
	}

	var resp struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return InitResult{}, fmt.Errorf("payment: paystack initialize decode: %w", err)
	}
	if !resp.Status {
		return InitResult{}, fmt.Errorf("payment: paystack initialize rejected: %s", resp.Message)
	}
	return InitResult{
		Reference:        resp.Data.Reference,
		AuthorizationURL: resp.Data.AuthorizationURL,
		AccessCode:       resp.Data.AccessCode,
	}, nil
}

func (g *PaystackGateway) Verify(ctx context.Context, reference string) (VerifyResult, error) {
	if reference == "" {
		return VerifyResult{}, ErrInvalidRequest
	}

	raw, err := g.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return VerifyResult{}, err
	}

	var resp struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Status    string `json:"status"`
			Reference string `json:"reference"`
			Amount    int64  `json:"amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return VerifyResult{}, fmt.Errorf("payment: paystack verify decode: %w", err)
	}
	if !resp.Status {
		return VerifyResult{}, fmt.Errorf("payment: paystack verify rejected: %s", resp.Message)
	}

	return VerifyResult{
		Reference:  resp.Data.Reference,
		Status:     chargeStatus(resp.Data.Status),
		AmountKobo: resp.Data.Amount,
		Raw:        string(raw),
	}, nil
}

func chargeStatus(s string) ChargeStatus {
	switch strings.ToLower(s) {
	case "success":
		return ChargeSuccess
	case "failed":
		return ChargeFailed
	case "abandoned":
		return ChargeAbandoned
	default:
		return ChargePending
	}
}

// do issues the request, retrying with exponential backoff only on HTTP 429.
func (g *PaystackGateway) do(ctx context.Context, method, path string, body map[string]any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	backoff := g.retryBackoff
	var lastErr error

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+g.secretKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		res, err := g.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		raw, readErr := io.ReadAll(res.Body)
		res.Body.Close()
		if readErr != nil {
			return nil, readErr
		}

		if res.StatusCode == http.StatusTooManyRequests {
			lastErr = ErrRateLimited
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}
		if res.StatusCode < 200 || res.StatusCode > 299 {
			return nil, fmt.Errorf("payment: paystack %s %s returned HTTP %d", method, path, res.StatusCode)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("payment: paystack %s %s: %w after %d attempts", method, path, lastErr, g.maxAttempts)
}
