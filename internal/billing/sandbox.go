package billing

import (
	"context"
	"fmt"
)

// SandboxProvider simulates the billing provider for test mode.
// Every purchase is delivered, meter verification resolves a fixed customer,
// and variations return a small static catalogue.
type SandboxProvider struct{}

func NewSandboxProvider() *SandboxProvider { return &SandboxProvider{} }

func (SandboxProvider) Name() string { return "sandbox" }

func delivered(ref string) PurchaseResult {
	return PurchaseResult{
		Delivered:      true,
		Code:           CodeAccepted,
		DeliveryStatus: DeliveryStatusDelivered,
		Description:    "TRANSACTION SUCCESSFUL",
		Raw:            fmt.Sprintf(`{"code":"000","request_id":%q,"content":{"transactions":{"status":"delivered"}}}`, ref),
	}
}

func (SandboxProvider) PurchaseAirtime(ctx context.Context, req AirtimeRequest) (PurchaseResult, error) {
	return delivered(req.Reference), nil
}

func (SandboxProvider) PurchaseData(ctx context.Context, req DataRequest) (PurchaseResult, error) {
	return delivered(req.Reference), nil
}

func (SandboxProvider) PurchaseElectricity(ctx context.Context, req ElectricityRequest) (PurchaseResult, error) {
	return delivered(req.Reference), nil
}

func (SandboxProvider) PurchaseTV(ctx context.Context, req TVRequest) (PurchaseResult, error) {
	return delivered(req.Reference), nil
}

func (SandboxProvider) VerifyMeter(ctx context.Context, req MeterVerifyRequest) (MeterVerifyResult, error) {
	return MeterVerifyResult{
		Code:         CodeAccepted,
		CustomerName: "TEST CUSTOMER",
		Address:      "1 Sandbox Close, Lagos",
		Raw:          `{"code":"000","content":{"Customer_Name":"TEST CUSTOMER"}}`,
	}, nil
}

func (SandboxProvider) Variations(ctx context.Context, serviceID string) ([]Variation, error) {
	return []Variation{
		{Code: serviceID + "-500mb", Name: "500MB - 30 days", PriceKobo: 15000},
		{Code: serviceID + "-1gb", Name: "1GB - 30 days", PriceKobo: 30000},
		{Code: serviceID + "-2gb", Name: "2GB - 30 days", PriceKobo: 50000},
	}, nil
}
