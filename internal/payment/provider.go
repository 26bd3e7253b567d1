package payment

import (
	"context"
	"errors"
)

// Gateway is the payment-gateway-agnostic interface used by the funding flow
// and the reconciliation engine.
//
// Verify is the authority on payment state: reconciliation never trusts a
// webhook payload's success flag without an independent Verify call.
type Gateway interface {
	Name() string
	Initialize(ctx context.Context, req InitRequest) (InitResult, error)
	Verify(ctx context.Context, reference string) (VerifyResult, error)
}

type InitRequest struct {
	Reference  string
	AmountKobo int64

	// Email is required by the gateway; for chat users a synthetic address
	// derived from the chat id is used.
	Email       string
	CallbackURL string
}

type InitResult struct {
	Reference string

	// AuthorizationURL is where the user completes the charge.
	AuthorizationURL string
	AccessCode       string
}

// ChargeStatus is the gateway's view of a charge.
type ChargeStatus string

const (
	ChargeSuccess   ChargeStatus = "success"
	ChargeFailed    ChargeStatus = "failed"
	ChargePending   ChargeStatus = "pending"
	ChargeAbandoned ChargeStatus = "abandoned"
)

type VerifyResult struct {
	Reference  string
	Status     ChargeStatus
	AmountKobo int64

	// Raw is the gateway response body, echoed into the transaction details.
	Raw string
}

var (
	ErrInvalidRequest = errors.New("payment: invalid request")
	ErrRateLimited    = errors.New("payment: rate limited")
)
