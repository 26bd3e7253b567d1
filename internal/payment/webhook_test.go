package payment

import "testing"

func TestValidSignature(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"FUND_1_1","status":"success","amount":50000}}`)
	secret := "sk_test_secret"

	sig := Sign(body, secret)
	if !ValidSignature(body, sig, secret) {
		t.Fatalf("expected valid signature")
	}
	if ValidSignature(body, sig, "other_secret") {
		t.Fatalf("signature must not validate under a different key")
	}
	if ValidSignature([]byte(`tampered`), sig, secret) {
		t.Fatalf("signature must not validate for a different body")
	}
	if ValidSignature(body, "", secret) {
		t.Fatalf("empty signature must not validate")
	}
}

func TestParseWebhook(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"FUND_42_1700000000000","status":"success","amount":50000}}`)
	ev, err := ParseWebhook(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Event != EventChargeSuccess {
		t.Fatalf("unexpected event %q", ev.Event)
	}
	if ev.Data.Reference != "FUND_42_1700000000000" {
		t.Fatalf("unexpected reference %q", ev.Data.Reference)
	}
	if ev.Data.AmountKobo != 50000 {
		t.Fatalf("unexpected amount %d", ev.Data.AmountKobo)
	}
}

func TestParseWebhook_RejectsGarbage(t *testing.T) {
	if _, err := ParseWebhook([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
