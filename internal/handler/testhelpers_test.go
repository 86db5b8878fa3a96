package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/veloraid/velora/velora-backend/internal/domain"
	"github.com/veloraid/velora/velora-backend/internal/middleware"
	"github.com/veloraid/velora/velora-backend/internal/service"
	"github.com/veloraid/velora/velora-backend/internal/testutil"
)

// setupAuthContext injects validated Auth0 claims into the echo context,
// simulating a request that passed the auth middleware
func setupAuthContext(c echo.Context, auth0ID string, roles ...string) {
	claims := &validator.ValidatedClaims{
		CustomClaims: &middleware.CustomClaims{Roles: roles},
		RegisteredClaims: validator.RegisteredClaims{
			Subject: auth0ID,
		},
	}
	ctx := context.WithValue(c.Request().Context(), middleware.ClaimsKey, claims)
	ctx = context.WithValue(ctx, middleware.Auth0IDKey, auth0ID)
	c.SetRequest(c.Request().WithContext(ctx))
}

type testEnv struct {
	echo         *echo.Echo
	repo         *testutil.MockApplicationRepository
	applications *ApplicationHandler
	schedules    *ScheduleHandler
	settlements  *SettlementHandler
	service      *service.ApplicationService
}

func newTestEnv() *testEnv {
	repo := testutil.NewMockApplicationRepository()
	policy := domain.SettlementPolicy{Rules: []domain.PolicyRule{
		{MinRemainingMonths: 12, Fraction: decimal.NewFromFloat(0.30)},
		{MinRemainingMonths: 6, Fraction: decimal.NewFromFloat(0.20)},
		{MinRemainingMonths: 1, Fraction: decimal.NewFromFloat(0.10)},
	}}
	svc := service.NewApplicationService(
		repo,
		service.NewScheduleService(),
		service.NewOwnershipService(),
		service.NewAggregationService(),
		service.NewSettlementService(),
		policy,
	)
	applications := NewApplicationHandler(svc)
	return &testEnv{
		echo:         echo.New(),
		repo:         repo,
		applications: applications,
		schedules:    NewScheduleHandler(svc, applications),
		settlements:  NewSettlementHandler(svc, applications),
		service:      svc,
	}
}

// newRequest builds an echo context for a JSON request
func (env *testEnv) newRequest(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return env.echo.NewContext(req, rec), rec
}

// createApplication creates a pending application through the service
func (env *testEnv) createApplication(t *testing.T, authID string) *domain.Application {
	t.Helper()
	app, err := env.service.Create(service.CreateApplicationInput{
		ApplicantName:   "Ayesha Khan",
		ApplicantEmail:  "ayesha@example.com",
		ApplicantAuthID: authID,
		Vehicle:         domain.Vehicle{Make: "Toyota", Model: "Corolla", Year: 2024},
		Terms: domain.LoanTerms{
			VehiclePrice:      decimal.NewFromInt(100000),
			DownPayment:       decimal.NewFromInt(20000),
			AnnualRentalRate:  decimal.NewFromFloat(0.12),
			CalculationMethod: domain.MethodAmortizedFixed,
		},
		TenureLabel: "12 Months",
	})
	if err != nil {
		t.Fatalf("create application: %v", err)
	}
	return app
}

// approvedApplication creates and approves an application
func (env *testEnv) approvedApplication(t *testing.T, authID string) *domain.Application {
	t.Helper()
	app := env.createApplication(t, authID)
	approved, err := env.service.Approve(app.ID)
	if err != nil {
		t.Fatalf("approve application: %v", err)
	}
	return approved
}
