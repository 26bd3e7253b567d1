package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TelegramClient is a minimal Bot API adapter: long-poll updates in, messages
// out. No business logic here; flows never see Telegram wire shapes.
type TelegramClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTelegramClient(botToken string) *TelegramClient {
	return &TelegramClient{
		baseURL:    "https://api.telegram.org/bot" + botToken,
		httpClient: &http.Client{Timeout: 65 * time.Second},
	}
}

// telegramUpdate is the subset of the Bot API update we consume.
type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From struct {
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
			Username  string `json:"username"`
		} `json:"from"`
		Text string `json:"text"`
	} `json:"message"`
	CallbackQuery *struct {
		ID   string `json:"id"`
		From struct {
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
			Username  string `json:"username"`
		} `json:"from"`
		Message struct {
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
		Data string `json:"data"`
	} `json:"callback_query"`
}

// Updates long-polls getUpdates and returns normalized events plus the next
// offset to ack with.
func (c *TelegramClient) Updates(ctx context.Context, offset int64, timeout time.Duration) ([]Event, int64, error) {
	body := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message", "callback_query"},
	}
	raw, err := c.call(ctx, "getUpdates", body)
	if err != nil {
		return nil, offset, err
	}

	var resp struct {
		OK     bool             `json:"ok"`
		Result []telegramUpdate `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, offset, fmt.Errorf("chat: getUpdates decode: %w", err)
	}
	if !resp.OK {
		return nil, offset, fmt.Errorf("chat: getUpdates not ok")
	}

	next := offset
	events := make([]Event, 0, len(resp.Result))
	for _, u := range resp.Result {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
		if ev, ok := normalizeUpdate(u); ok {
			events = append(events, ev)
		}
	}
	return events, next, nil
}

func normalizeUpdate(u telegramUpdate) (Event, bool) {
	switch {
	case u.Message != nil && u.Message.Text != "":
		ev := Event{
			ChatID:      u.Message.Chat.ID,
			DisplayName: displayName(u.Message.From.FirstName, u.Message.From.LastName),
			Username:    u.Message.From.Username,
		}
		if cmd, arg := splitCommand(u.Message.Text); cmd != "" {
			ev.Command, ev.CommandArg = cmd, arg
		} else {
			ev.Text = u.Message.Text
		}
		return ev, true
	case u.CallbackQuery != nil && u.CallbackQuery.Data != "":
		return Event{
			ChatID:      u.CallbackQuery.Message.Chat.ID,
			DisplayName: displayName(u.CallbackQuery.From.FirstName, u.CallbackQuery.From.LastName),
			Username:    u.CallbackQuery.From.Username,
			Callback:    u.CallbackQuery.Data,
			CallbackID:  u.CallbackQuery.ID,
		}, true
	default:
		return Event{}, false
	}
}

func displayName(first, last string) string {
	if last == "" {
		return first
	}
	return first + " " + last
}

// Send delivers one message, rendering buttons as an inline keyboard.
func (c *TelegramClient) Send(ctx context.Context, m Message) error {
	body := map[string]any{
		"chat_id": m.ChatID,
		"text":    m.Text,
	}
	if len(m.Buttons) > 0 {
		rows := make([][]map[string]string, 0, len(m.Buttons))
		for _, row := range m.Buttons {
			r := make([]map[string]string, 0, len(row))
			for _, b := range row {
				r = append(r, map[string]string{"text": b.Label, "callback_data": b.Data})
			}
			rows = append(rows, r)
		}
		body["reply_markup"] = map[string]any{"inline_keyboard": rows}
	}
	_, err := c.call(ctx, "sendMessage", body)
	return err
}

// AckCallback stops the client-side spinner on a pressed button.
func (c *TelegramClient) AckCallback(ctx context.Context, callbackID string) error {
	if callbackID == "" {
		return nil
	}
	_, err := c.call(ctx, "answerCallbackQuery", map[string]any{"callback_query_id": callbackID})
	return err
}

func (c *TelegramClient) call(ctx context.Context, method string, body map[string]any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat: telegram %s returned HTTP %d", method, res.StatusCode)
	}
	return raw, nil
}
