package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/craigrbailey/BillPilot-sub000/internal/middleware"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, testLimiter *middleware.RateLimiter, authHandler *AuthHandler, obligationHandler *ObligationHandler, templateHandler *TemplateHandler, paymentHandler *PaymentHandler, categoryHandler *CategoryHandler, settingsHandler *NotificationSettingsHandler) {
	// API version 1
	api := e.Group("/api/v1")

	// Auth callback runs before the owner row exists
	callback := api.Group("/auth")
	callback.Use(authMiddleware.AuthenticateToken())
	callback.POST("/callback", authHandler.Callback)

	// Everything else requires a known owner
	protected := api.Group("")
	protected.Use(authMiddleware.Authenticate())

	protected.GET("/auth/me", authHandler.Me)
	protected.POST("/auth/logout", authHandler.Logout)

	// Bill routes
	bills := protected.Group("/bills")
	bills.GET("", obligationHandler.ListBills)
	bills.POST("", obligationHandler.CreateBill)
	bills.GET("/:id", obligationHandler.GetBill)
	bills.PUT("/:id", obligationHandler.UpdateBill)
	bills.DELETE("/:id", obligationHandler.DeleteBill)
	bills.POST("/:id/pay", obligationHandler.PayBill)
	bills.PUT("/:id/unpay", obligationHandler.UnpayBill)
	bills.GET("/:id/payments", obligationHandler.ListBillPayments)

	// Payee routes
	payees := protected.Group("/payees")
	payees.GET("", templateHandler.ListPayees)
	payees.POST("", templateHandler.CreatePayee)
	payees.DELETE("/:id", templateHandler.DeletePayee)

	// Income routes; /income/sources is static and wins over /income/:id
	income := protected.Group("/income")
	income.GET("", obligationHandler.ListIncome)
	income.POST("", obligationHandler.CreateIncome)
	income.GET("/sources", templateHandler.ListIncomeSources)
	income.POST("/sources", templateHandler.CreateIncomeSource)
	income.DELETE("/sources/:id", templateHandler.DeleteIncomeSource)
	income.GET("/:id", obligationHandler.GetIncome)
	income.PUT("/:id", obligationHandler.UpdateIncome)
	income.DELETE("/:id", obligationHandler.DeleteIncome)
	income.POST("/:id/receive", obligationHandler.ReceiveIncome)
	income.PUT("/:id/unreceive", obligationHandler.UnreceiveIncome)

	protected.GET("/check-recurring", templateHandler.CheckRecurring)
	protected.GET("/payments", paymentHandler.ListPayments)
	protected.GET("/categories", categoryHandler.ListCategories)

	// Notification settings routes
	settings := protected.Group("/settings/notifications")
	settings.GET("", settingsHandler.GetSettings)
	settings.PUT("/provider/:type", settingsHandler.UpdateProvider)
	settings.PUT("/type/:type", settingsHandler.UpdateType)
	settings.POST("/test/:type", settingsHandler.TestProvider, middleware.RateLimitMiddleware(testLimiter))
}
