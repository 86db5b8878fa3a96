package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/veloraid/velora/velora-backend/internal/domain"
	"github.com/veloraid/velora/velora-backend/internal/websocket"
)

// ApplicationService orchestrates the application lifecycle: intake, review,
// approval (schedule generation), payment confirmation, schedule
// normalization, and settlement.
type ApplicationService struct {
	appRepo        domain.ApplicationRepository
	schedules      *ScheduleService
	ownership      *OwnershipService
	aggregation    *AggregationService
	settlements    *SettlementService
	policy         domain.SettlementPolicy
	eventPublisher websocket.EventPublisher
	now            func() time.Time
}

// NewApplicationService creates a new ApplicationService
func NewApplicationService(appRepo domain.ApplicationRepository, schedules *ScheduleService, ownership *OwnershipService, aggregation *AggregationService, settlements *SettlementService, policy domain.SettlementPolicy) *ApplicationService {
	return &ApplicationService{
		appRepo:     appRepo,
		schedules:   schedules,
		ownership:   ownership,
		aggregation: aggregation,
		settlements: settlements,
		policy:      policy,
		now:         time.Now,
	}
}

// SetEventPublisher sets the publisher for real-time updates
func (s *ApplicationService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// SetClock overrides the service clock, for tests
func (s *ApplicationService) SetClock(now func() time.Time) {
	s.now = now
}

// publishEvent publishes a WebSocket event if a publisher is configured
func (s *ApplicationService) publishEvent(applicationID uuid.UUID, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(applicationID, event)
	}
}

// CreateApplicationInput contains input for a new lease application
type CreateApplicationInput struct {
	ApplicantName   string
	ApplicantEmail  string
	ApplicantAuthID string
	Vehicle         domain.Vehicle
	Terms           domain.LoanTerms
	TenureLabel     string
}

// Create registers a new application in pending status. The tenure label is
// the human-entered string; an unparseable label falls back to the default
// tenure rather than failing intake.
func (s *ApplicationService) Create(input CreateApplicationInput) (*domain.Application, error) {
	months, err := domain.ParseTenureToMonths(input.TenureLabel)
	if err != nil {
		log.Warn().
			Str("tenure", input.TenureLabel).
			Str("fallback", domain.DefaultTenure).
			Msg("Unparseable tenure on intake, using default")
		months = domain.ParseTenureOrDefault(input.TenureLabel, domain.DefaultTenure)
	}

	terms := input.Terms
	terms.TenureMonths = months

	app := &domain.Application{
		ID:              uuid.New(),
		Number:          newApplicationNumber(s.now()),
		ApplicantName:   strings.TrimSpace(input.ApplicantName),
		ApplicantEmail:  strings.TrimSpace(input.ApplicantEmail),
		ApplicantAuthID: input.ApplicantAuthID,
		Vehicle:         input.Vehicle,
		Terms:           terms,
		TenureLabel:     domain.FormatMonthsToTenure(months),
		Status:          domain.ApplicationPending,
	}

	if err := app.Validate(); err != nil {
		return nil, err
	}

	return s.appRepo.Create(app)
}

// Get retrieves an application by ID
func (s *ApplicationService) Get(id uuid.UUID) (*domain.Application, error) {
	return s.appRepo.GetByID(id)
}

// List retrieves applications, optionally filtered by status
func (s *ApplicationService) List(status *domain.ApplicationStatus) ([]*domain.Application, error) {
	return s.appRepo.List(status)
}

// ListForApplicant retrieves the applications belonging to an authenticated
// applicant
func (s *ApplicationService) ListForApplicant(authID string) ([]*domain.Application, error) {
	return s.appRepo.GetByApplicantAuthID(authID)
}

// Review moves a pending application into under_review
func (s *ApplicationService) Review(id uuid.UUID) (*domain.Application, error) {
	app, err := s.appRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if app.Status != domain.ApplicationPending {
		return nil, domain.ErrApplicationNotPending
	}

	updated, err := s.appRepo.UpdateStatus(id, app.Version, domain.ApplicationUnderReview, nil)
	if err != nil {
		return nil, err
	}
	s.publishEvent(id, websocket.ApplicationUpdated(updated))
	return updated, nil
}

// Reject declines an application with a reason
func (s *ApplicationService) Reject(id uuid.UUID, reason string) (*domain.Application, error) {
	app, err := s.appRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if app.Status != domain.ApplicationPending && app.Status != domain.ApplicationUnderReview {
		return nil, domain.ErrApplicationNotReviewable
	}

	updated, err := s.appRepo.UpdateStatus(id, app.Version, domain.ApplicationRejected, &reason)
	if err != nil {
		return nil, err
	}
	s.publishEvent(id, websocket.ApplicationUpdated(updated))
	return updated, nil
}

// Approve approves an application and generates its installment schedule.
// Approval never regenerates: an application that already carries a
// non-empty schedule keeps it and only transitions status.
func (s *ApplicationService) Approve(id uuid.UUID) (*domain.Application, error) {
	app, err := s.appRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if app.Status != domain.ApplicationPending && app.Status != domain.ApplicationUnderReview {
		if app.Status == domain.ApplicationApproved {
			return app, nil
		}
		return nil, domain.ErrApplicationNotReviewable
	}

	if app.HasSchedule() {
		return s.appRepo.UpdateStatus(id, app.Version, domain.ApplicationApproved, nil)
	}

	today := s.now()
	schedule := s.schedules.Generate(app.Terms, DefaultStartDate(today), today)

	updated, err := s.appRepo.UpdateSchedule(id, app.Version, schedule, domain.IntervalMonthly, domain.ApplicationApproved)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("application_id", id.String()).
		Int("installments", len(schedule)).
		Msg("Application approved, schedule generated")
	s.publishEvent(id, websocket.ApplicationUpdated(updated))
	return updated, nil
}

// ScheduleRow is one installment with its derived ownership split
type ScheduleRow struct {
	Installment domain.Installment    `json:"installment"`
	Ownership   domain.OwnershipSplit `json:"ownership"`
}

// GetSchedule returns the application's schedule with a derived ownership
// split per row. The split is computed fresh on every call; nothing here is
// persisted.
func (s *ApplicationService) GetSchedule(id uuid.UUID) ([]ScheduleRow, error) {
	app, err := s.appRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	rows := make([]ScheduleRow, len(app.Schedule))
	for i, in := range app.Schedule {
		rows[i] = ScheduleRow{
			Installment: in,
			Ownership:   s.ownership.At(app.Terms, i),
		}
	}
	return rows, nil
}

// MarkInstallmentPaid confirms payment of a single installment. The whole
// schedule is read, modified, and written back under the application's
// version; a concurrent writer loses with ErrVersionConflict and can safely
// retry.
func (s *ApplicationService) MarkInstallmentPaid(id uuid.UUID, seq int, paidDate *time.Time, method domain.PaymentMethod, proof *string) (*domain.Application, error) {
	app, err := s.appRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !app.HasSchedule() {
		return nil, domain.ErrScheduleEmpty
	}

	schedule := app.Schedule.Clone()
	installment, err := schedule.BySeq(seq)
	if err != nil {
		return nil, err
	}

	when := s.now()
	if paidDate != nil {
		when = *paidDate
	}
	if err := installment.MarkPaid(when, method, proof); err != nil {
		return nil, err
	}

	updated, err := s.appRepo.UpdateSchedule(id, app.Version, schedule, app.Interval, app.Status)
	if err != nil {
		return nil, err
	}

	s.publishEvent(id, websocket.InstallmentPaid(installment))
	return updated, nil
}

// Normalize reclassifies a daily-granularity schedule to monthly and
// replaces the stored schedule wholesale. The application's explicit
// interval field takes precedence over the heuristic; a schedule already in
// monthly mode is left untouched. Safe to call repeatedly.
func (s *ApplicationService) Normalize(id uuid.UUID) (*domain.Application, error) {
	app, err := s.appRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !app.HasSchedule() {
		return app, nil
	}

	if app.Interval == domain.IntervalMonthly {
		return app, nil
	}
	if app.Interval != domain.IntervalDaily && !s.aggregation.LooksDaily(app.Schedule, app.Terms.TenureMonths) {
		return app, nil
	}

	monthly := s.aggregation.AggregateDailyToMonthly(app.Schedule)

	updated, err := s.appRepo.UpdateSchedule(id, app.Version, monthly, domain.IntervalMonthly, app.Status)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("application_id", id.String()).
		Int("daily_entries", len(app.Schedule)).
		Int("monthly_entries", len(monthly)).
		Msg("Schedule aggregated to monthly")
	s.publishEvent(id, websocket.ScheduleReplaced(updated.Schedule))
	return updated, nil
}

// QuoteSettlement computes an early-payoff quote over the unpaid remainder
func (s *ApplicationService) QuoteSettlement(id uuid.UUID, asOf time.Time) (*domain.SettlementQuote, error) {
	app, err := s.appRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !app.HasSchedule() {
		return nil, domain.ErrScheduleEmpty
	}

	quote := s.settlements.Quote(app.Schedule, s.policy, asOf)
	return &quote, nil
}

// Settle pays off every remaining installment at once and closes the
// application. The quote is recomputed at settlement time so the discount
// matches what the customer was shown for the same date.
func (s *ApplicationService) Settle(id uuid.UUID, asOf time.Time, method domain.PaymentMethod) (*domain.Application, *domain.SettlementQuote, error) {
	app, err := s.appRepo.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	if app.Status != domain.ApplicationApproved {
		return nil, nil, domain.ErrApplicationNotApproved
	}
	if !app.HasSchedule() {
		return nil, nil, domain.ErrScheduleEmpty
	}

	quote := s.settlements.Quote(app.Schedule, s.policy, asOf)

	schedule := app.Schedule.Clone()
	for i := range schedule {
		if schedule[i].IsPaid() {
			continue
		}
		if err := schedule[i].MarkPaid(asOf, method, nil); err != nil {
			return nil, nil, err
		}
	}

	updated, err := s.appRepo.UpdateSchedule(id, app.Version, schedule, app.Interval, domain.ApplicationSettled)
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("application_id", id.String()).
		Str("final_amount", quote.FinalAmount.String()).
		Msg("Application settled early")
	s.publishEvent(id, websocket.SettlementCreated(quote))
	return updated, &quote, nil
}

// ExportScheduleCSV streams the schedule, with derived ownership columns, as
// CSV. Money is written in plain decimal form; dates in ISO-8601.
func (s *ApplicationService) ExportScheduleCSV(id uuid.UUID, w io.Writer) error {
	app, err := s.appRepo.GetByID(id)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{"seq", "due_date", "amount", "status", "paid_date", "customer_share", "financier_share", "ownership_pct"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, in := range app.Schedule {
		split := s.ownership.At(app.Terms, i)
		paidDate := ""
		if in.PaidDate != nil {
			paidDate = in.PaidDate.Format("2006-01-02")
		}
		record := []string{
			fmt.Sprintf("%d", in.Seq),
			in.DueDate.Format("2006-01-02"),
			in.Amount.StringFixed(2),
			string(in.Status),
			paidDate,
			split.CustomerShare.StringFixed(2),
			split.FinancierShare.StringFixed(2),
			split.Percent().StringFixed(2),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// newApplicationNumber builds a human-referenceable application number,
// e.g. "VL-2026-4F21A0C3"
func newApplicationNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("VL-%d-%s", now.Year(), suffix)
}
