package transaction

import (
	"context"
	"testing"
	"time"
)

func TestReferenceRoundTrip(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	ref := NewReference(PrefixAirtime, 987654321, at)
	if ref != "AIRTIME_987654321_1700000000123" {
		t.Fatalf("unexpected reference: %q", ref)
	}

	prefix, chatID, err := ParseReference(ref)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if prefix != PrefixAirtime {
		t.Fatalf("expected AIRTIME prefix, got %q", prefix)
	}
	if chatID != 987654321 {
		t.Fatalf("expected chat id back, got %d", chatID)
	}
}

func TestParseReference_RejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"FUND",
		"FUND_123",
		"FUND_123_456_789",
		"BOGUS_123_456",
		"FUND_abc_456",
		"FUND_0_456",
		"FUND_123_xyz",
	}
	for _, ref := range bad {
		if _, _, err := ParseReference(ref); err == nil {
			t.Fatalf("expected error for %q", ref)
		}
	}
}

func TestTypeForPrefix(t *testing.T) {
	cases := map[string]Type{
		PrefixFund:        TypeCredit,
		PrefixAirtime:     TypeAirtime,
		PrefixData:        TypeData,
		PrefixElectricity: TypeElectricity,
		PrefixTV:          TypeTV,
	}
	for prefix, want := range cases {
		got, ok := TypeForPrefix(prefix)
		if !ok || got != want {
			t.Fatalf("prefix %q: got %q ok=%v", prefix, got, ok)
		}
	}
	if _, ok := TypeForPrefix("NOPE"); ok {
		t.Fatalf("unknown prefix must not map")
	}
}

func TestSettle_TerminalStateIsWrittenOnce(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Now()

	_, err := repo.Create(context.Background(), Transaction{
		ID:         "t1",
		ChatID:     55,
		Type:       TypeCredit,
		AmountKobo: 50000,
		Reference:  "FUND_55_1",
		Status:     StatusPending,
		CreatedAt:  now,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	applied, err := repo.Settle(context.Background(), "FUND_55_1", StatusSuccess, `{"ok":true}`, now)
	if err != nil || !applied {
		t.Fatalf("first settle should apply, applied=%v err=%v", applied, err)
	}

	applied, err = repo.Settle(context.Background(), "FUND_55_1", StatusFailed, "", now)
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if applied {
		t.Fatalf("settled record must not transition again")
	}

	got, ok, err := repo.FindByReference(context.Background(), "FUND_55_1")
	if err != nil || !ok {
		t.Fatalf("find: ok=%v err=%v", ok, err)
	}
	if got.Status != StatusSuccess {
		t.Fatalf("terminal state rewritten: %q", got.Status)
	}
}
