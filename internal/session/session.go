package session

import "time"

// Session holds the transient per-chat flow state. It is never persisted to
// the record store and is exclusively owned by the flow machine for that chat.
type Session struct {
	ChatID int64 `json:"chat_id"`
	Stage  Stage `json:"stage"`

	// Accumulated flow fields. Only the ones the current flow needs are set.
	ServiceID     string `json:"service_id,omitempty"` // selected network/provider
	Recipient     string `json:"recipient,omitempty"`  // phone, meter or smartcard number
	CustomerName  string `json:"customer_name,omitempty"`
	AmountKobo    int64  `json:"amount_kobo,omitempty"`
	VariationCode string `json:"variation_code,omitempty"`
	VariationName string `json:"variation_name,omitempty"`

	// Variations caches the plan list offered at the plan-selection stage so
	// the user's reply can be matched without a second provider call.
	Variations []PlanOption `json:"variations,omitempty"`

	LastActive time.Time `json:"last_active"`
}

// PlanOption is a cached provider plan shown to the user.
type PlanOption struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	PriceKobo int64  `json:"price_kobo"`
}

// Touch refreshes the idle timer.
func (s *Session) Touch(now time.Time) { s.LastActive = now }
