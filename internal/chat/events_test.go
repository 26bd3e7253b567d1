package chat

import (
	"encoding/json"
	"testing"
)

func TestSplitCommand(t *testing.T) {
	cases := []struct {
		in, cmd, arg string
	}{
		{"/start", "start", ""},
		{"/start wallet_funded", "start", "wallet_funded"},
		{"/fund 500", "fund", "500"},
		{"/FUND 500", "fund", "500"},
		{"/cancel@vendbot", "cancel", ""},
		{"hello", "", ""},
		{"  /balance  ", "balance", ""},
	}
	for _, c := range cases {
		cmd, arg := splitCommand(c.in)
		if cmd != c.cmd || arg != c.arg {
			t.Fatalf("splitCommand(%q) = (%q,%q), want (%q,%q)", c.in, cmd, arg, c.cmd, c.arg)
		}
	}
}

func TestNormalizeUpdate_CommandMessage(t *testing.T) {
	raw := []byte(`{"update_id":1,"message":{"chat":{"id":42},"from":{"first_name":"Ada","last_name":"Obi","username":"ada"},"text":"/fund 500"}}`)
	var u telegramUpdate
	if err := json.Unmarshal(raw, &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	ev, ok := normalizeUpdate(u)
	if !ok {
		t.Fatalf("expected event")
	}
	if ev.ChatID != 42 || ev.Command != "fund" || ev.CommandArg != "500" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.DisplayName != "Ada Obi" || ev.Username != "ada" {
		t.Fatalf("unexpected identity: %+v", ev)
	}
}

func TestNormalizeUpdate_Callback(t *testing.T) {
	raw := []byte(`{"update_id":2,"callback_query":{"id":"cb1","from":{"first_name":"Ada"},"message":{"chat":{"id":42}},"data":"buy_airtime"}}`)
	var u telegramUpdate
	if err := json.Unmarshal(raw, &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	ev, ok := normalizeUpdate(u)
	if !ok {
		t.Fatalf("expected event")
	}
	if !ev.IsCallback() || ev.Callback != "buy_airtime" || ev.ChatID != 42 || ev.CallbackID != "cb1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestNormalizeUpdate_EmptyUpdateIsDropped(t *testing.T) {
	if _, ok := normalizeUpdate(telegramUpdate{}); ok {
		t.Fatalf("empty update must be dropped")
	}
}
