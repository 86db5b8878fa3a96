package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/veloraid/velora/velora-backend/internal/middleware"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, applicationHandler *ApplicationHandler, scheduleHandler *ScheduleHandler, settlementHandler *SettlementHandler, documentHandler *DocumentHandler) {
	// API version 1
	api := e.Group("/api/v1")

	// Application routes (protected)
	applications := api.Group("/applications")
	applications.Use(authMiddleware.Authenticate())
	applications.POST("", applicationHandler.CreateApplication)
	applications.GET("", applicationHandler.GetApplications)
	applications.GET("/:id", applicationHandler.GetApplication)

	// Review decisions are admin-only
	applications.POST("/:id/review", applicationHandler.ReviewApplication, middleware.RequireAdmin())
	applications.POST("/:id/approve", applicationHandler.ApproveApplication, middleware.RequireAdmin())
	applications.POST("/:id/reject", applicationHandler.RejectApplication, middleware.RequireAdmin())

	// Schedule routes
	applications.GET("/:id/schedule", scheduleHandler.GetSchedule)
	applications.GET("/:id/schedule/export", scheduleHandler.ExportSchedule)
	applications.POST("/:id/schedule/normalize", scheduleHandler.NormalizeSchedule, middleware.RequireAdmin())
	applications.POST("/:id/installments/:seq/pay", scheduleHandler.PayInstallment)

	// Settlement routes
	applications.GET("/:id/settlement/quote", settlementHandler.QuoteSettlement)
	applications.POST("/:id/settle", settlementHandler.Settle)

	// Proof document routes
	applications.POST("/:id/documents", documentHandler.UploadDocument)
	applications.GET("/:id/documents/url", documentHandler.GetDocumentURL)
	applications.DELETE("/:id/documents", documentHandler.DeleteDocument)
}
