package billing

import "context"

// Provider defines the billing-provider-agnostic interface used by the flows.
//
// Rules:
// - No provider HTTP calls outside billing adapters.
// - Keep request/response types provider-agnostic; raw provider payloads are
//   echoed back for the transaction record's details field.
type Provider interface {
	Name() string

	PurchaseAirtime(ctx context.Context, req AirtimeRequest) (PurchaseResult, error)
	PurchaseData(ctx context.Context, req DataRequest) (PurchaseResult, error)
	PurchaseElectricity(ctx context.Context, req ElectricityRequest) (PurchaseResult, error)
	PurchaseTV(ctx context.Context, req TVRequest) (PurchaseResult, error)

	// VerifyMeter resolves a meter number to the customer on record.
	VerifyMeter(ctx context.Context, req MeterVerifyRequest) (MeterVerifyResult, error)

	// Variations lists the purchasable plans for a service (data bundles, TV packages).
	Variations(ctx context.Context, serviceID string) ([]Variation, error)
}

type AirtimeRequest struct {
	Reference  string `json:"request_id"`
	ServiceID  string `json:"serviceID"` // mtn, glo, airtel, etisalat
	Phone      string `json:"phone"`
	AmountKobo int64  `json:"-"`
}

type DataRequest struct {
	Reference     string `json:"request_id"`
	ServiceID     string `json:"serviceID"` // mtn-data, glo-data, ...
	Phone         string `json:"phone"`
	VariationCode string `json:"variation_code"`
}

type ElectricityRequest struct {
	Reference  string `json:"request_id"`
	ServiceID  string `json:"serviceID"` // ikeja-electric, eko-electric, ...
	MeterNo    string `json:"billersCode"`
	MeterType  string `json:"variation_code"` // prepaid | postpaid
	AmountKobo int64  `json:"-"`
	Phone      string `json:"phone"`
}

type TVRequest struct {
	Reference     string `json:"request_id"`
	ServiceID     string `json:"serviceID"` // dstv, gotv, startimes
	SmartcardNo   string `json:"billersCode"`
	VariationCode string `json:"variation_code"`
	Phone         string `json:"phone"`
}

// PurchaseResult is the normalized verdict used by the flows and the record store.
type PurchaseResult struct {
	// Delivered is true only when the provider's top-level code indicates
	// acceptance AND the nested delivery status indicates completion.
	// A recognized-but-pending delivery is reported as not delivered.
	Delivered bool

	Code           string // provider top-level code, "000" means accepted
	DeliveryStatus string // nested transaction status, e.g. "delivered"
	Description    string

	// Raw is the provider response body, echoed into the transaction details.
	Raw string
}

type MeterVerifyRequest struct {
	ServiceID string `json:"serviceID"`
	MeterNo   string `json:"billersCode"`
	MeterType string `json:"type"`
}

type MeterVerifyResult struct {
	Code         string
	CustomerName string
	Address      string
	Raw          string
}

// OK reports whether the verification resolved a customer.
func (r MeterVerifyResult) OK() bool {
	return r.Code == CodeAccepted && r.CustomerName != ""
}

// Variation is a provider-defined purchasable plan.
type Variation struct {
	Code      string `json:"variation_code"`
	Name      string `json:"name"`
	PriceKobo int64  `json:"-"`
}

const (
	// CodeAccepted is the provider's top-level success code.
	CodeAccepted = "000"

	// DeliveryStatusDelivered is the nested completion status.
	DeliveryStatusDelivered = "delivered"
)

// verdict normalizes a (code, delivery status) pair into the single
// success/failure verdict the flows act on.
func verdict(code, deliveryStatus string) bool {
	return code == CodeAccepted && deliveryStatus == DeliveryStatusDelivered
}
