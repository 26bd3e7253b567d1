package rbac

// Role names. Keep these stable; they are part of the operator API contract.
const (
	// RoleSupport can look up balances and transaction history.
	RoleSupport = "support"

	// RoleFinance can additionally post manual wallet adjustments (the
	// recovery path for debited-but-undelivered purchases).
	RoleFinance = "finance"

	// RoleAdmin bypasses all role checks.
	RoleAdmin = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
