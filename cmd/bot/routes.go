package main

import (
	"vtu-platform/internal/auth"
	"vtu-platform/internal/httpapi"
	"vtu-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authManager *auth.Manager) {
	// public
	r.GET("/healthz", h.Healthz)

	// Gateway webhook (public; authenticated by body signature, not JWT).
	r.POST("/webhooks/paystack", h.PaystackWebhook)

	// operator API
	v1 := r.Group("/v1")
	v1.POST("/auth/login", h.Login)

	protected := v1.Group("")
	protected.Use(auth.RequireAccessToken(authManager))
	{
		wallets := protected.Group("/wallets")
		{
			wallets.GET("/:chat_id/balance",
				rbac.RequireAnyRole(rbac.RoleSupport, rbac.RoleFinance), h.GetWalletBalance)

			// Manual adjustments are the recovery path for
			// debited-but-undelivered purchases.
			wallets.POST("/:chat_id/credit",
				rbac.RequireAnyRole(rbac.RoleFinance), h.ManualCredit)
		}

		protected.GET("/chats/:chat_id/transactions",
			rbac.RequireAnyRole(rbac.RoleSupport, rbac.RoleFinance), h.ListTransactions)
	}
}
