package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/veloraid/velora/velora-backend/internal/domain"
	"github.com/veloraid/velora/velora-backend/internal/service"
)

// ScheduleHandler handles installment schedule HTTP requests
type ScheduleHandler struct {
	applicationService *service.ApplicationService
	applications       *ApplicationHandler
}

// NewScheduleHandler creates a new ScheduleHandler
func NewScheduleHandler(applicationService *service.ApplicationService, applications *ApplicationHandler) *ScheduleHandler {
	return &ScheduleHandler{
		applicationService: applicationService,
		applications:       applications,
	}
}

// InstallmentResponse represents a single installment in API responses
type InstallmentResponse struct {
	Seq           int     `json:"seq"`
	DueDate       string  `json:"dueDate"`
	Amount        string  `json:"amount"`
	Status        string  `json:"status"`
	PaidDate      *string `json:"paidDate,omitempty"`
	PaymentMethod *string `json:"paymentMethod,omitempty"`
	ProofDocument *string `json:"proofDocument,omitempty"`
}

// OwnershipResponse represents the ownership split at an installment
type OwnershipResponse struct {
	CustomerShare  string `json:"customerShare"`
	FinancierShare string `json:"financierShare"`
	CustomerPct    string `json:"customerPct"`
}

// ScheduleRowResponse is one installment with its derived ownership split
type ScheduleRowResponse struct {
	Installment InstallmentResponse `json:"installment"`
	Ownership   OwnershipResponse   `json:"ownership"`
}

// ScheduleResponse represents the full schedule in API responses
type ScheduleResponse struct {
	ApplicationID string                `json:"applicationId"`
	Interval      string                `json:"interval,omitempty"`
	Total         string                `json:"total"`
	Remaining     string                `json:"remaining"`
	Rows          []ScheduleRowResponse `json:"rows"`
}

// PayInstallmentRequest represents the mark-paid request body
type PayInstallmentRequest struct {
	PaidDate      *string `json:"paidDate,omitempty"` // YYYY-MM-DD, defaults to today
	PaymentMethod string  `json:"paymentMethod"`
	ProofDocument *string `json:"proofDocument,omitempty"`
}

// GetSchedule handles GET /api/v1/applications/:id/schedule
func (h *ScheduleHandler) GetSchedule(c echo.Context) error {
	app, err := h.applications.loadOwned(c)
	if err != nil || app == nil {
		return err
	}

	rows, err := h.applicationService.GetSchedule(app.ID)
	if err != nil {
		log.Error().Err(err).Str("application_id", app.ID.String()).Msg("Failed to get schedule")
		return NewInternalError(c, "Failed to get schedule")
	}

	return c.JSON(http.StatusOK, ScheduleResponse{
		ApplicationID: app.ID.String(),
		Interval:      string(app.Interval),
		Total:         app.Schedule.TotalAmount().StringFixed(2),
		Remaining:     app.Schedule.RemainingAmount().StringFixed(2),
		Rows:          toScheduleRowResponses(rows),
	})
}

// PayInstallment handles POST /api/v1/applications/:id/installments/:seq/pay
func (h *ScheduleHandler) PayInstallment(c echo.Context) error {
	app, err := h.applications.loadOwned(c)
	if err != nil || app == nil {
		return err
	}

	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil {
		return NewValidationError(c, "Invalid installment sequence", nil)
	}

	var req PayInstallmentRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	var paidDate *time.Time
	if req.PaidDate != nil && *req.PaidDate != "" {
		parsed, err := time.Parse("2006-01-02", *req.PaidDate)
		if err != nil {
			return NewValidationError(c, "Invalid paid date", []ValidationError{
				{Field: "paidDate", Message: "Must be in YYYY-MM-DD format"},
			})
		}
		paidDate = &parsed
	}

	updated, err := h.applicationService.MarkInstallmentPaid(app.ID, seq, paidDate, domain.PaymentMethod(req.PaymentMethod), req.ProofDocument)
	if err != nil {
		if errors.Is(err, domain.ErrInstallmentNotFound) {
			return NewNotFoundError(c, "Installment not found")
		}
		if errors.Is(err, domain.ErrInstallmentAlreadyPaid) {
			return NewConflictError(c, "Installment is already paid")
		}
		if errors.Is(err, domain.ErrPaymentMethodInvalid) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "paymentMethod", Message: "Must be 'bank_account', 'cheque', or 'cash'"},
			})
		}
		if errors.Is(err, domain.ErrScheduleEmpty) {
			return NewConflictError(c, "Application has no schedule")
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			return NewConflictError(c, "Schedule was modified concurrently, retry")
		}
		log.Error().Err(err).Str("application_id", app.ID.String()).Int("seq", seq).Msg("Failed to pay installment")
		return NewInternalError(c, "Failed to pay installment")
	}

	log.Info().Str("application_id", app.ID.String()).Int("seq", seq).Msg("Installment paid")

	in, err := updated.Schedule.BySeq(seq)
	if err != nil {
		return NewInternalError(c, "Failed to pay installment")
	}
	return c.JSON(http.StatusOK, toInstallmentResponse(*in))
}

// NormalizeSchedule handles POST /api/v1/applications/:id/schedule/normalize
func (h *ScheduleHandler) NormalizeSchedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid application ID", nil)
	}

	app, err := h.applicationService.Normalize(id)
	if err != nil {
		if errors.Is(err, domain.ErrApplicationNotFound) {
			return NewNotFoundError(c, "Application not found")
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			return NewConflictError(c, "Schedule was modified concurrently, retry")
		}
		log.Error().Err(err).Str("application_id", id.String()).Msg("Failed to normalize schedule")
		return NewInternalError(c, "Failed to normalize schedule")
	}

	return c.JSON(http.StatusOK, toApplicationResponse(app))
}

// ExportSchedule handles GET /api/v1/applications/:id/schedule/export
func (h *ScheduleHandler) ExportSchedule(c echo.Context) error {
	app, err := h.applications.loadOwned(c)
	if err != nil || app == nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", app.Number+"-schedule.csv"))
	c.Response().WriteHeader(http.StatusOK)

	if err := h.applicationService.ExportScheduleCSV(app.ID, c.Response()); err != nil {
		log.Error().Err(err).Str("application_id", app.ID.String()).Msg("Failed to export schedule")
		return err
	}
	return nil
}

func toInstallmentResponse(in domain.Installment) InstallmentResponse {
	resp := InstallmentResponse{
		Seq:           in.Seq,
		DueDate:       in.DueDate.Format("2006-01-02"),
		Amount:        in.Amount.StringFixed(2),
		Status:        string(in.Status),
		ProofDocument: in.ProofDocument,
	}
	if in.PaidDate != nil {
		d := in.PaidDate.Format("2006-01-02")
		resp.PaidDate = &d
	}
	if in.PaymentMethod != nil {
		m := string(*in.PaymentMethod)
		resp.PaymentMethod = &m
	}
	return resp
}

func toScheduleRowResponses(rows []service.ScheduleRow) []ScheduleRowResponse {
	out := make([]ScheduleRowResponse, len(rows))
	for i, row := range rows {
		out[i] = ScheduleRowResponse{
			Installment: toInstallmentResponse(row.Installment),
			Ownership: OwnershipResponse{
				CustomerShare:  row.Ownership.CustomerShare.StringFixed(2),
				FinancierShare: row.Ownership.FinancierShare.StringFixed(2),
				CustomerPct:    row.Ownership.Percent().StringFixed(2),
			},
		}
	}
	return out
}
