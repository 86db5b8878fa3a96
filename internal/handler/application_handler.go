package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/veloraid/velora/velora-backend/internal/domain"
	"github.com/veloraid/velora/velora-backend/internal/middleware"
	"github.com/veloraid/velora/velora-backend/internal/service"
)

// ApplicationHandler handles lease application HTTP requests
type ApplicationHandler struct {
	applicationService *service.ApplicationService
}

// NewApplicationHandler creates a new ApplicationHandler
func NewApplicationHandler(applicationService *service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{applicationService: applicationService}
}

// CreateApplicationRequest represents the create application request body
type CreateApplicationRequest struct {
	ApplicantName  string `json:"applicantName"`
	ApplicantEmail string `json:"applicantEmail"`
	VehicleMake    string `json:"vehicleMake"`
	VehicleModel   string `json:"vehicleModel"`
	VehicleYear    int    `json:"vehicleYear"`
	VehiclePrice   string `json:"vehiclePrice"`
	DownPayment    string `json:"downPayment"`
	Tenure         string `json:"tenure"` // e.g. "12 Months" or "2 Years"
	RentalRate     string `json:"rentalRate,omitempty"`
	Method         string `json:"method,omitempty"` // amortized_fixed (default) or declining
}

// RejectApplicationRequest represents the reject request body
type RejectApplicationRequest struct {
	Reason string `json:"reason"`
}

// VehicleResponse represents a vehicle in API responses
type VehicleResponse struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year"`
}

// ApplicationResponse represents an application in API responses
type ApplicationResponse struct {
	ID             string          `json:"id"`
	Number         string          `json:"number"`
	ApplicantName  string          `json:"applicantName"`
	ApplicantEmail string          `json:"applicantEmail"`
	Vehicle        VehicleResponse `json:"vehicle"`
	VehiclePrice   string          `json:"vehiclePrice"`
	DownPayment    string          `json:"downPayment"`
	LoanAmount     string          `json:"loanAmount"`
	TenureMonths   int             `json:"tenureMonths"`
	Tenure         string          `json:"tenure"`
	RentalRate     string          `json:"rentalRate"`
	Method         string          `json:"method"`
	Interval       string          `json:"interval,omitempty"`
	Status         string          `json:"status"`
	RejectReason   *string         `json:"rejectReason,omitempty"`
	Installments   int             `json:"installments"`
	Version        int32           `json:"version"`
	CreatedAt      string          `json:"createdAt"`
	UpdatedAt      string          `json:"updatedAt"`
}

// CreateApplication handles POST /api/v1/applications
func (h *ApplicationHandler) CreateApplication(c echo.Context) error {
	authID := middleware.GetAuth0ID(c)
	if authID == "" {
		return NewUnauthorizedError(c, "Authentication required")
	}

	var req CreateApplicationRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	price, err := decimal.NewFromString(req.VehiclePrice)
	if err != nil {
		return NewValidationError(c, "Invalid vehicle price", []ValidationError{
			{Field: "vehiclePrice", Message: "Must be a valid decimal number"},
		})
	}

	down := decimal.Zero
	if req.DownPayment != "" {
		down, err = decimal.NewFromString(req.DownPayment)
		if err != nil {
			return NewValidationError(c, "Invalid down payment", []ValidationError{
				{Field: "downPayment", Message: "Must be a valid decimal number"},
			})
		}
	}

	rate := decimal.Zero
	if req.RentalRate != "" {
		rate, err = decimal.NewFromString(req.RentalRate)
		if err != nil {
			return NewValidationError(c, "Invalid rental rate", []ValidationError{
				{Field: "rentalRate", Message: "Must be a valid decimal number"},
			})
		}
	}

	method := domain.MethodAmortizedFixed
	switch req.Method {
	case "", string(domain.MethodAmortizedFixed):
	case string(domain.MethodDeclining):
		method = domain.MethodDeclining
	default:
		return NewValidationError(c, "Invalid calculation method", []ValidationError{
			{Field: "method", Message: "Must be 'amortized_fixed' or 'declining'"},
		})
	}

	input := service.CreateApplicationInput{
		ApplicantName:   req.ApplicantName,
		ApplicantEmail:  req.ApplicantEmail,
		ApplicantAuthID: authID,
		Vehicle: domain.Vehicle{
			Make:  req.VehicleMake,
			Model: req.VehicleModel,
			Year:  req.VehicleYear,
		},
		Terms: domain.LoanTerms{
			VehiclePrice:      price,
			DownPayment:       down,
			AnnualRentalRate:  rate,
			CalculationMethod: method,
		},
		TenureLabel: req.Tenure,
	}

	app, err := h.applicationService.Create(input)
	if err != nil {
		if errors.Is(err, domain.ErrApplicantNameEmpty) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "applicantName", Message: "Applicant name is required"},
			})
		}
		if errors.Is(err, domain.ErrApplicantNameTooLong) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "applicantName", Message: "Applicant name must be 255 characters or less"},
			})
		}
		if errors.Is(err, domain.ErrVehicleNameEmpty) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "vehicleMake", Message: "Vehicle make and model are required"},
			})
		}
		if errors.Is(err, domain.ErrVehiclePriceInvalid) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "vehiclePrice", Message: "Price must be positive"},
			})
		}
		if errors.Is(err, domain.ErrDownPaymentNegative) || errors.Is(err, domain.ErrDownPaymentTooLarge) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "downPayment", Message: "Down payment must be between zero and the vehicle price"},
			})
		}
		if errors.Is(err, domain.ErrTenureMonthsInvalid) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "tenure", Message: "Tenure must be at least 1 month"},
			})
		}
		log.Error().Err(err).Str("auth_id", authID).Msg("Failed to create application")
		return NewInternalError(c, "Failed to create application")
	}

	log.Info().Str("application_id", app.ID.String()).Str("number", app.Number).Msg("Application created")

	return c.JSON(http.StatusCreated, toApplicationResponse(app))
}

// GetApplications handles GET /api/v1/applications.
// Admins see every application, optionally filtered by status; everyone else
// sees only their own.
func (h *ApplicationHandler) GetApplications(c echo.Context) error {
	authID := middleware.GetAuth0ID(c)
	if authID == "" {
		return NewUnauthorizedError(c, "Authentication required")
	}

	if !middleware.IsAdmin(c) {
		apps, err := h.applicationService.ListForApplicant(authID)
		if err != nil {
			log.Error().Err(err).Str("auth_id", authID).Msg("Failed to list applications")
			return NewInternalError(c, "Failed to list applications")
		}
		return c.JSON(http.StatusOK, toApplicationResponses(apps))
	}

	var status *domain.ApplicationStatus
	if param := c.QueryParam("status"); param != "" {
		switch s := domain.ApplicationStatus(param); s {
		case domain.ApplicationPending, domain.ApplicationUnderReview, domain.ApplicationApproved,
			domain.ApplicationRejected, domain.ApplicationSettled:
			status = &s
		default:
			return NewValidationError(c, "Invalid status parameter", []ValidationError{
				{Field: "status", Message: "Unknown application status"},
			})
		}
	}

	apps, err := h.applicationService.List(status)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list applications")
		return NewInternalError(c, "Failed to list applications")
	}
	return c.JSON(http.StatusOK, toApplicationResponses(apps))
}

// GetApplication handles GET /api/v1/applications/:id
func (h *ApplicationHandler) GetApplication(c echo.Context) error {
	app, err := h.loadOwned(c)
	if err != nil {
		return err
	}
	if app == nil {
		return nil // response already written
	}
	return c.JSON(http.StatusOK, toApplicationResponse(app))
}

// ReviewApplication handles POST /api/v1/applications/:id/review
func (h *ApplicationHandler) ReviewApplication(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid application ID", nil)
	}

	app, err := h.applicationService.Review(id)
	if err != nil {
		if errors.Is(err, domain.ErrApplicationNotFound) {
			return NewNotFoundError(c, "Application not found")
		}
		if errors.Is(err, domain.ErrApplicationNotPending) {
			return NewConflictError(c, "Application is not awaiting review")
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			return NewConflictError(c, "Application was modified concurrently")
		}
		log.Error().Err(err).Str("application_id", id.String()).Msg("Failed to review application")
		return NewInternalError(c, "Failed to review application")
	}

	return c.JSON(http.StatusOK, toApplicationResponse(app))
}

// ApproveApplication handles POST /api/v1/applications/:id/approve
func (h *ApplicationHandler) ApproveApplication(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid application ID", nil)
	}

	app, err := h.applicationService.Approve(id)
	if err != nil {
		if errors.Is(err, domain.ErrApplicationNotFound) {
			return NewNotFoundError(c, "Application not found")
		}
		if errors.Is(err, domain.ErrApplicationNotReviewable) {
			return NewConflictError(c, "Application cannot be approved in its current status")
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			return NewConflictError(c, "Application was modified concurrently")
		}
		log.Error().Err(err).Str("application_id", id.String()).Msg("Failed to approve application")
		return NewInternalError(c, "Failed to approve application")
	}

	log.Info().Str("application_id", id.String()).Msg("Application approved")
	return c.JSON(http.StatusOK, toApplicationResponse(app))
}

// RejectApplication handles POST /api/v1/applications/:id/reject
func (h *ApplicationHandler) RejectApplication(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid application ID", nil)
	}

	var req RejectApplicationRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	if req.Reason == "" {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "reason", Message: "Rejection reason is required"},
		})
	}

	app, err := h.applicationService.Reject(id, req.Reason)
	if err != nil {
		if errors.Is(err, domain.ErrApplicationNotFound) {
			return NewNotFoundError(c, "Application not found")
		}
		if errors.Is(err, domain.ErrApplicationNotReviewable) {
			return NewConflictError(c, "Application cannot be rejected in its current status")
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			return NewConflictError(c, "Application was modified concurrently")
		}
		log.Error().Err(err).Str("application_id", id.String()).Msg("Failed to reject application")
		return NewInternalError(c, "Failed to reject application")
	}

	return c.JSON(http.StatusOK, toApplicationResponse(app))
}

// loadOwned fetches the application at :id and enforces that the caller is
// an admin or the applicant. On failure the problem response has already
// been written and (nil, nil) is returned.
func (h *ApplicationHandler) loadOwned(c echo.Context) (*domain.Application, error) {
	authID := middleware.GetAuth0ID(c)
	if authID == "" {
		return nil, NewUnauthorizedError(c, "Authentication required")
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, NewValidationError(c, "Invalid application ID", nil)
	}

	app, err := h.applicationService.Get(id)
	if err != nil {
		if errors.Is(err, domain.ErrApplicationNotFound) {
			return nil, NewNotFoundError(c, "Application not found")
		}
		log.Error().Err(err).Str("application_id", id.String()).Msg("Failed to get application")
		return nil, NewInternalError(c, "Failed to get application")
	}

	if !middleware.IsAdmin(c) && app.ApplicantAuthID != authID {
		return nil, NewForbiddenError(c, "Not your application")
	}
	return app, nil
}

// Helper function to convert domain.Application to ApplicationResponse
func toApplicationResponse(app *domain.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:             app.ID.String(),
		Number:         app.Number,
		ApplicantName:  app.ApplicantName,
		ApplicantEmail: app.ApplicantEmail,
		Vehicle: VehicleResponse{
			Make:  app.Vehicle.Make,
			Model: app.Vehicle.Model,
			Year:  app.Vehicle.Year,
		},
		VehiclePrice: app.Terms.VehiclePrice.StringFixed(2),
		DownPayment:  app.Terms.DownPayment.StringFixed(2),
		LoanAmount:   app.Terms.LoanAmount().StringFixed(2),
		TenureMonths: app.Terms.TenureMonths,
		Tenure:       app.TenureLabel,
		RentalRate:   app.Terms.AnnualRentalRate.String(),
		Method:       string(app.Terms.CalculationMethod),
		Interval:     string(app.Interval),
		Status:       string(app.Status),
		RejectReason: app.RejectReason,
		Installments: len(app.Schedule),
		Version:      app.Version,
		CreatedAt:    app.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    app.UpdatedAt.Format(time.RFC3339),
	}
}

func toApplicationResponses(apps []*domain.Application) []ApplicationResponse {
	out := make([]ApplicationResponse, len(apps))
	for i, app := range apps {
		out[i] = toApplicationResponse(app)
	}
	return out
}
