package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/veloraid/velora/velora-backend/internal/domain"
	"github.com/veloraid/velora/velora-backend/internal/service"
)

// SettlementHandler handles early settlement HTTP requests
type SettlementHandler struct {
	applicationService *service.ApplicationService
	applications       *ApplicationHandler
}

// NewSettlementHandler creates a new SettlementHandler
func NewSettlementHandler(applicationService *service.ApplicationService, applications *ApplicationHandler) *SettlementHandler {
	return &SettlementHandler{
		applicationService: applicationService,
		applications:       applications,
	}
}

// SettlementQuoteResponse represents a settlement quote in API responses
type SettlementQuoteResponse struct {
	OriginalRemaining string `json:"originalRemaining"`
	Discount          string `json:"discount"`
	FinalAmount       string `json:"finalAmount"`
	QuotedAt          string `json:"quotedAt"`
}

// SettleRequest represents the settle request body
type SettleRequest struct {
	AsOf          *string `json:"asOf,omitempty"` // YYYY-MM-DD, defaults to today
	PaymentMethod string  `json:"paymentMethod"`
}

// SettleResponse represents the settle result
type SettleResponse struct {
	Application ApplicationResponse     `json:"application"`
	Quote       SettlementQuoteResponse `json:"quote"`
}

// QuoteSettlement handles GET /api/v1/applications/:id/settlement/quote
func (h *SettlementHandler) QuoteSettlement(c echo.Context) error {
	app, err := h.applications.loadOwned(c)
	if err != nil || app == nil {
		return err
	}

	asOf := time.Now()
	if param := c.QueryParam("asOf"); param != "" {
		parsed, err := time.Parse("2006-01-02", param)
		if err != nil {
			return NewValidationError(c, "Invalid asOf date", []ValidationError{
				{Field: "asOf", Message: "Must be in YYYY-MM-DD format"},
			})
		}
		asOf = parsed
	}

	quote, err := h.applicationService.QuoteSettlement(app.ID, asOf)
	if err != nil {
		if errors.Is(err, domain.ErrScheduleEmpty) {
			return NewConflictError(c, "Application has no schedule to settle")
		}
		log.Error().Err(err).Str("application_id", app.ID.String()).Msg("Failed to quote settlement")
		return NewInternalError(c, "Failed to quote settlement")
	}

	return c.JSON(http.StatusOK, toSettlementQuoteResponse(quote))
}

// Settle handles POST /api/v1/applications/:id/settle
func (h *SettlementHandler) Settle(c echo.Context) error {
	app, err := h.applications.loadOwned(c)
	if err != nil || app == nil {
		return err
	}

	var req SettleRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	asOf := time.Now()
	if req.AsOf != nil && *req.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", *req.AsOf)
		if err != nil {
			return NewValidationError(c, "Invalid asOf date", []ValidationError{
				{Field: "asOf", Message: "Must be in YYYY-MM-DD format"},
			})
		}
		asOf = parsed
	}

	updated, quote, err := h.applicationService.Settle(app.ID, asOf, domain.PaymentMethod(req.PaymentMethod))
	if err != nil {
		if errors.Is(err, domain.ErrApplicationNotApproved) {
			return NewConflictError(c, "Only approved applications can be settled")
		}
		if errors.Is(err, domain.ErrScheduleEmpty) {
			return NewConflictError(c, "Application has no schedule to settle")
		}
		if errors.Is(err, domain.ErrPaymentMethodInvalid) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "paymentMethod", Message: "Must be 'bank_account', 'cheque', or 'cash'"},
			})
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			return NewConflictError(c, "Application was modified concurrently, retry")
		}
		log.Error().Err(err).Str("application_id", app.ID.String()).Msg("Failed to settle application")
		return NewInternalError(c, "Failed to settle application")
	}

	log.Info().
		Str("application_id", app.ID.String()).
		Str("final_amount", quote.FinalAmount.String()).
		Msg("Application settled")

	return c.JSON(http.StatusOK, SettleResponse{
		Application: toApplicationResponse(updated),
		Quote:       toSettlementQuoteResponse(quote),
	})
}

func toSettlementQuoteResponse(quote *domain.SettlementQuote) SettlementQuoteResponse {
	return SettlementQuoteResponse{
		OriginalRemaining: quote.OriginalRemaining.StringFixed(2),
		Discount:          quote.Discount.StringFixed(2),
		FinalAmount:       quote.FinalAmount.StringFixed(2),
		QuotedAt:          quote.QuotedAt.Format(time.RFC3339),
	}
}
