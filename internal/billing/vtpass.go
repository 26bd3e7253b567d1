package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// VTPassProvider talks to the VTPass REST API.
//
// Auth headers: api-key + secret-key for POSTs, api-key + public-key for GETs.
// All amounts cross the wire in naira; kobo conversion happens here and only here.
type VTPassProvider struct {
	baseURL   string
	apiKey    string
	publicKey string
	secretKey string

	httpClient *http.Client
}

func NewVTPassProvider(baseURL, apiKey, publicKey, secretKey string) *VTPassProvider {
	return &VTPassProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		publicKey:  publicKey,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *VTPassProvider) Name() string { return "vtpass" }

// payResponse is the subset of the VTPass /pay response the verdict needs.
type payResponse struct {
	Code                string `json:"code"`
	ResponseDescription string `json:"response_description"`
	Content             struct {
		Transactions struct {
			Status string `json:"status"`
		} `json:"transactions"`
	} `json:"content"`
}

func (p *VTPassProvider) PurchaseAirtime(ctx context.Context, req AirtimeRequest) (PurchaseResult, error) {
	body := map[string]any{
		"request_id": req.Reference,
		"serviceID":  req.ServiceID,
		"phone":      req.Phone,
		"amount":     naira(req.AmountKobo),
	}
	return p.pay(ctx, body)
}

func (p *VTPassProvider) PurchaseData(ctx context.Context, req DataRequest) (PurchaseResult, error) {
	body := map[string]any{
		"request_id":     req.Reference,
		"serviceID":      req.ServiceID,
		"billersCode":    req.Phone,
		"variation_code": req.VariationCode,
		"phone":          req.Phone,
	}
	return p.pay(ctx, body)
}

func (p *VTPassProvider) PurchaseElectricity(ctx context.Context, req ElectricityRequest) (PurchaseResult, error) {
	body := map[string]any{
		"request_id":     req.Reference,
		"serviceID":      req.ServiceID,
		"billersCode":    req.MeterNo,
		"variation_code": req.MeterType,
		"amount":         naira(req.AmountKobo),
		"phone":          req.Phone,
	}
	return p.pay(ctx, body)
}

func (p *VTPassProvider) PurchaseTV(ctx context.Context, req TVRequest) (PurchaseResult, error) {
	body := map[string]any{
		"request_id":        req.Reference,
		"serviceID":         req.ServiceID,
		"billersCode":       req.SmartcardNo,
		"variation_code":    req.VariationCode,
		"phone":             req.Phone,
		"subscription_type": "change",
	}
	return p.pay(ctx, body)
}

func (p *VTPassProvider) pay(ctx context.Context, body map[string]any) (PurchaseResult, error) {
	raw, status, err := p.post(ctx, "/pay", body)
	if err != nil {
		return PurchaseResult{}, err
	}
	if status != http.StatusOK {
		return PurchaseResult{}, fmt.Errorf("billing: vtpass pay returned HTTP %d", status)
	}

	var resp payResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return PurchaseResult{}, fmt.Errorf("billing: vtpass pay decode: %w", err)
	}

	return PurchaseResult{
		Delivered:      verdict(resp.Code, resp.Content.Transactions.Status),
		Code:           resp.Code,
		DeliveryStatus: resp.Content.Transactions.Status,
		Description:    resp.ResponseDescription,
		Raw:            string(raw),
	}, nil
}

func (p *VTPassProvider) VerifyMeter(ctx context.Context, req MeterVerifyRequest) (MeterVerifyResult, error) {
	body := map[string]any{
		"serviceID":   req.ServiceID,
		"billersCode": req.MeterNo,
		"type":        req.MeterType,
	}
	raw, status, err := p.post(ctx, "/merchant-verify", body)
	if err != nil {
		return MeterVerifyResult{}, err
	}
	if status != http.StatusOK {
		return MeterVerifyResult{}, fmt.Errorf("billing: vtpass merchant-verify returned HTTP %d", status)
	}

	var resp struct {
		Code    string `json:"code"`
		Content struct {
			CustomerName string `json:"Customer_Name"`
			Address      string `json:"Address"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return MeterVerifyResult{}, fmt.Errorf("billing: vtpass merchant-verify decode: %w", err)
	}
	return MeterVerifyResult{
		Code:         resp.Code,
		CustomerName: resp.Content.CustomerName,
		Address:      resp.Content.Address,
		Raw:          string(raw),
	}, nil
}

func (p *VTPassProvider) Variations(ctx context.Context, serviceID string) ([]Variation, error) {
	u := fmt.Sprintf("%s/service-variations?serviceID=%s", p.baseURL, url.QueryEscape(serviceID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("api-key", p.apiKey)
	httpReq.Header.Set("public-key", p.publicKey)

	res, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("billing: vtpass service-variations returned HTTP %d", res.StatusCode)
	}

	var resp struct {
		Content struct {
			Variations []struct {
				Code   string `json:"variation_code"`
				Name   string `json:"name"`
				Amount string `json:"variation_amount"`
			} `json:"varations"` // sic: the provider misspells this key
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("billing: vtpass service-variations decode: %w", err)
	}

	out := make([]Variation, 0, len(resp.Content.Variations))
	for _, v := range resp.Content.Variations {
		price, err := parseNairaToKobo(v.Amount)
		if err != nil {
			continue
		}
		out = append(out, Variation{Code: v.Code, Name: v.Name, PriceKobo: price})
	}
	return out, nil
}

func (p *VTPassProvider) post(ctx context.Context, path string, body map[string]any) ([]byte, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", p.apiKey)
	httpReq.Header.Set("secret-key", p.secretKey)

	res, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, 0, err
	}
	return raw, res.StatusCode, nil
}

// naira renders a kobo amount for the wire. Whole-naira amounts stay bare
// ("200"); anything with a kobo remainder keeps its two decimals ("200.50")
// so the customer is charged exactly what the wallet was debited.
func naira(kobo int64) string {
	if kobo%100 == 0 {
		return strconv.FormatInt(kobo/100, 10)
	}
	return fmt.Sprintf("%d.%02d", kobo/100, kobo%100)
}

func parseNairaToKobo(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	whole, frac, _ := strings.Cut(s, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, err
	}
	kobo := n * 100
	if frac != "" {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, err
		}
		kobo += f
	}
	return kobo, nil
}
