package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the only supported JWT claims shape for the operator API.
// Operator tokens are issued out-of-band (ops tooling); the bot's chat users
// never hold tokens.
type Claims struct {
	jwt.RegisteredClaims

	OperatorID string `json:"operator_id"`
	Role       string `json:"role"`
}
