package chat

import "strings"

// Event is a normalized inbound chat event: a free-text message, a command,
// or a discrete menu/callback selection. Exactly one of Text/Command/Callback
// semantics applies.
type Event struct {
	ChatID      int64
	DisplayName string
	Username    string

	// Text is the raw message text for non-command messages.
	Text string

	// Command and CommandArg are set for messages starting with "/".
	Command    string
	CommandArg string

	// Callback is the data payload of a pressed inline button.
	Callback string

	// CallbackID acknowledges the button press at the transport.
	CallbackID string
}

// IsCommand reports whether the event is a slash command.
func (e Event) IsCommand() bool { return e.Command != "" }

// IsCallback reports whether the event is a menu selection.
func (e Event) IsCallback() bool { return e.Callback != "" }

// Message is an outbound chat message, optionally with an inline keyboard.
type Message struct {
	ChatID  int64
	Text    string
	Buttons [][]Button
}

// Button is one inline keyboard button; Data comes back as Event.Callback.
type Button struct {
	Label string
	Data  string
}

// Row is a convenience constructor for a one-row keyboard.
func Row(buttons ...Button) [][]Button { return [][]Button{buttons} }

// splitCommand separates "/fund 500" into ("fund", "500").
// The @botname suffix Telegram appends in groups is stripped.
func splitCommand(text string) (cmd, arg string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if at := strings.Index(head, "@"); at >= 0 {
		head = head[:at]
	}
	return strings.ToLower(head), strings.TrimSpace(rest)
}
