package user

import "time"

// User is a chat-platform identity. ChatID is the Telegram numeric id and is
// stable and immutable; everything else is display metadata.
type User struct {
	ChatID      int64     `json:"chat_id" db:"chat_id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Username    string    `json:"username,omitempty" db:"username"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
