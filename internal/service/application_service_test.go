package service

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/veloraid/velora/velora-backend/internal/domain"
	"github.com/veloraid/velora/velora-backend/internal/testutil"
	"github.com/veloraid/velora/velora-backend/internal/websocket"
)

func newTestApplicationService(repo *testutil.MockApplicationRepository) *ApplicationService {
	policy := domain.SettlementPolicy{Rules: []domain.PolicyRule{
		{MinRemainingMonths: 12, Fraction: decimal.NewFromFloat(0.30)},
		{MinRemainingMonths: 6, Fraction: decimal.NewFromFloat(0.20)},
		{MinRemainingMonths: 1, Fraction: decimal.NewFromFloat(0.10)},
	}}
	return NewApplicationService(
		repo,
		NewScheduleService(),
		NewOwnershipService(),
		NewAggregationService(),
		NewSettlementService(),
		policy,
	)
}

func standardTerms() domain.LoanTerms {
	return domain.LoanTerms{
		VehiclePrice:      decimal.NewFromInt(100000),
		DownPayment:       decimal.NewFromInt(20000),
		TenureMonths:      12,
		AnnualRentalRate:  decimal.NewFromFloat(0.12),
		CalculationMethod: domain.MethodAmortizedFixed,
	}
}

func standardInput() CreateApplicationInput {
	return CreateApplicationInput{
		ApplicantName:   "Ayesha Khan",
		ApplicantEmail:  "ayesha@example.com",
		ApplicantAuthID: "auth0|applicant1",
		Vehicle:         domain.Vehicle{Make: "Toyota", Model: "Corolla", Year: 2024},
		Terms:           standardTerms(),
		TenureLabel:     "12 Months",
	}
}

// recordingPublisher captures published events for assertions
type recordingPublisher struct {
	events []websocket.Event
}

func (r *recordingPublisher) Publish(applicationID uuid.UUID, event websocket.Event) {
	r.events = append(r.events, event)
}

func TestApplicationServiceCreate(t *testing.T) {
	repo := testutil.NewMockApplicationRepository()
	svc := newTestApplicationService(repo)

	app, err := svc.Create(standardInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if app.Status != domain.ApplicationPending {
		t.Errorf("status = %v, want pending", app.Status)
	}
	if app.Terms.TenureMonths != 12 {
		t.Errorf("tenure months = %d, want 12", app.Terms.TenureMonths)
	}
	if app.TenureLabel != "1 Years" {
		t.Errorf("tenure label = %q, want %q", app.TenureLabel, "1 Years")
	}
	if !strings.HasPrefix(app.Number, "VL-") {
		t.Errorf("application number = %q, want VL- prefix", app.Number)
	}
	if app.Version != 1 {
		t.Errorf("version = %d, want 1", app.Version)
	}
}

func TestApplicationServiceCreateTenureFallback(t *testing.T) {
	repo := testutil.NewMockApplicationRepository()
	svc := newTestApplicationService(repo)

	input := standardInput()
	input.TenureLabel = "whenever"

	app, err := svc.Create(input)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if app.Terms.TenureMonths != 12 {
		t.Errorf("tenure months = %d, want default 12", app.Terms.TenureMonths)
	}
}

func TestApplicationServiceCreateInvalid(t *testing.T) {
	repo := testutil.NewMockApplicationRepository()
	svc := newTestApplicationService(repo)

	input := standardInput()
	input.ApplicantName = "   "

	if _, err := svc.Create(input); !errors.Is(err, domain.ErrApplicantNameEmpty) {
		t.Errorf("Create() error = %v, want ErrApplicantNameEmpty", err)
	}
}

func TestApplicationServiceReviewFlow(t *testing.T) {
	repo := testutil.NewMockApplicationRepository()
	svc := newTestApplicationService(repo)

	app, err := svc.Create(standardInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	reviewed, err := svc.Review(app.ID)
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if reviewed.Status != domain.ApplicationUnderReview {
		t.Errorf("status = %v, want under_review", reviewed.Status)
	}

	// A second review must fail: no longer pending
	if _, err := svc.Review(app.ID); !errors.Is(err, domain.ErrApplicationNotPending) {
		t.Errorf("second Review() error = %v, want ErrApplicationNotPending", err)
	}
}

func TestApplicationServiceReject(t *testing.T) {
	repo := testutil.NewMockApplicationRepository()
	svc := newTestApplicationService(repo)

	app, _ := svc.Create(standardInput())

	rejected, err := svc.Reject(app.ID, "insufficient income")
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if rejected.Status != domain.ApplicationRejected {
		t.Errorf("status = %v, want rejected", rejected.Status)
	}
	if rejected.RejectReason == nil || *rejected.RejectReason != "insufficient income" {
		t.Errorf("reject reason = %v, want insufficient income", rejected.RejectReason)
	}

	if _, err := svc.Reject(app.ID, "again"); !errors.Is(err, domain.ErrApplicationNotReviewable) {
		t.Errorf("Reject() on rejected application error = %v, want ErrApplicationNotReviewable", err)
	}
}

func TestApplicationServiceApproveGeneratesSchedule(t *testing.T) {
	repo := testutil.NewMockApplicationRepository()
	svc := newTestApplicationService(repo)
	svc.SetClock(func() time.Time { return time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC) })

	app, _ := svc.Create(standardInput())

	approved, err := svc.Approve(app.ID)
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if approved.Status != domain.ApplicationApproved {
		t.Errorf("status = %v, want approved", approved.Status)
	}
	if len(approved.Schedule) != 12 {
		t.Fatalf("schedule length = %d, want 12", len(approved.Schedule))
	}
	if approved.Interval != domain.IntervalMonthly {
		t.Errorf("interval = %v, want Monthly", approved.Interval)
	}
	// First due date is the first of the month after the clock
	wantDue := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	if !approved.Schedule[0].DueDate.Equal(wantDue) {
		t.Errorf("first due date = %v, want %v", approved.Schedule[0].DueDate, wantDue)
	}
}

func TestApplicationServiceApproveIdempotent(t *testing.T) {
	repo := testutil.NewMockApplicationRepository()
	svc := newTestApplicationService(repo)

	app, _ := svc.Create(standardInput())
	first, err := svc.Approve(app.ID)
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	second, err := svc.Approve(app.ID)
	if err != nil {
		t.Fatalf("second Approve() error = %v", err)
	}
	if second.Status != domain.ApplicationApproved {
		t.Errorf("status = %v, want approved", second.Status)
	}
	if len(second.Schedule) != len(first.Schedule) {
		t.Errorf("schedule regenerated: %d entries, want %d", len(second.Schedule), len(first.Schedule))
	}
	for i := range first.Schedule {
		if !first.Schedule[i].DueDate.Equal(second.Schedule[i].DueDate) || !first.Schedule[i].Amount.Equal(second.Schedule[i].Amount) {
			t.Errorf("installment %d changed on re-approval", i)
		}
	}
}

func TestApplicationServiceApprovePreservesExistingSchedule(t *testing.T) {
	repo := testutil.NewMockApplicationRepository()
	svc := newTestApplicationService(repo)

	// An under_review application that already carries a schedule keeps it
	existing := domain.Schedule{
		{Seq: 1, DueDate: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(500), Status: domain.StatusUpcoming},
	}
	app := &domain.Application{
		ID:            uuid.New(),
		ApplicantName: "Bilal Ahmed",
		Vehicle:       domain.Vehicle{Make: "Honda", Model: "City"},
		Terms:         standardTerms(),
		Status:        domain.ApplicationUnderReview,
		Schedule:      existing,
		Version:       3,
	}
	repo.AddApplication(app)

	approved, err := svc.Approve(app.ID)
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if len(approved.Schedule) != 1 {
		t.Errorf("schedule length = %d, want existing 1", len(approved.Schedule))
	}
	if approved.Status != domain.ApplicationApproved {
		t.Errorf("status = %v, want approved", approved.Status)
	}
}

func TestApplicationServiceGetSchedule(t *testing.T) {
	repo := testutil.NewMockApplicationRepository()
	svc := newTestApplicationService(repo)

	app, _ := svc.Create(standardInput())
	if _, err := svc.Approve(app.ID); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	rows, err := svc.GetSchedule(app.ID)
	if err != nil {
		t.Fatalf("GetSchedule() error = %v", err)
	}
	if len(rows) != 12 {
		t.Fatalf("rows = %d, want 12", len(rows))
	}

	price := decimal.NewFromInt(100000)
	for i, row := range rows {
		sum := row.Ownership.CustomerShare.Add(row.Ownership.FinancierShare)
		if !sum.Equal(price) {
			t.Errorf("row %d: shares sum to %s, want %s", i, sum, price)
		}
	}
	// Final row: full ownership
	last := rows[len(rows)-1].Ownership
	if !last.CustomerShare.Equal(price) || !last.FinancierShare.IsZero() {
		t.Errorf("final split = %s / %s, want %s / 0", last.CustomerShare, last.FinancierShare, price)
	}
}

func TestApplicationServiceMarkInstallmentPaid(t *testing.T) {
	repo := testutil.NewMockApplicationRepository()
	svc := newTestApplicationService(repo)
	pub := &recordingPublisher{}
	svc.SetEventPublisher(pub)

	app, _ := svc.Create(standardInput())
	approved, _ := svc.Approve(app.ID)

	paidAt := time.Date(2026, time.February, 3, 0, 0, 0, 0, time.UTC)
	proof := "proofs/receipt.jpg"
	updated, err := svc.MarkInstallmentPaid(app.ID, 1, &paidAt, domain.PaymentBankAccount, &proof)
	if err != nil {
		t.Fatalf("MarkInstallmentPaid() error = %v", err)
	}

	in, err := updated.Schedule.BySeq(1)
	if err != nil {
		t.Fatalf("BySeq(1) error = %v", err)
	}
	if in.Status != domain.StatusPaid {
		t.Errorf("status = %v, want paid", in.Status)
	}
	if in.PaidDate == nil || !in.PaidDate.Equal(paidAt) {
		t.Errorf("paid date = %v, want %v", in.PaidDate, paidAt)
	}
	if updated.Version != approved.Version+1 {
		t.Errorf("version = %d, want %d", updated.Version, approved.Version+1)
	}

	// Exactly-once: a second confirmation fails
	if _, err := svc.MarkInstallmentPaid(app.ID, 1, &paidAt, domain.PaymentCash, nil); !errors.Is(err, domain.ErrInstallmentAlreadyPaid) {
		t.Errorf("second MarkInstallmentPaid() error = %v, want ErrInstallmentAlreadyPaid", err)
	}

	var sawPaid bool
	for _, ev := range pub.events {
		if ev.Entity == websocket.EntityTypeInstallment {
			sawPaid = true
		}
	}
	if !sawPaid {
		t.Error("no installment event published")
	}
}

func TestApplicationServiceMarkPaidVersionConflict(t *testing.T) {
	repo := testutil.NewMockApplicationRepository()
	svc := newTestApplicationService(repo)

	app, _ := svc.Create(standardInput())
	svc.Approve(app.ID)

	repo.UpdateErr = domain.ErrVersionConflict
	if _, err := svc.MarkInstallmentPaid(app.ID, 2, nil, domain.PaymentCash, nil); !errors.Is(err, domain.ErrVersionConflict) {
		t.Errorf("MarkInstallmentPaid() error = %v, want ErrVersionConflict", err)
	}
}

func TestApplicationServiceNormalizeDaily(t *testing.T) {
	repo := testutil.NewMockApplicationRepository()
	svc := newTestApplicationService(repo)

	// Fabricate a daily schedule spanning February and March
	var schedule domain.Schedule
	start := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 56; i++ {
		schedule = append(schedule, domain.Installment{
			Seq:     i + 1,
			DueDate: start.AddDate(0, 0, i),
			Amount:  decimal.NewFromFloat(100.50),
			Status:  domain.StatusUpcoming,
		})
	}
	app := &domain.Application{
		ID:            uuid.New(),
		ApplicantName: "Daily Payer",
		Vehicle:       domain.Vehicle{Make: "Suzuki", Model: "Alto"},
		Terms:         standardTerms(),
		Status:        domain.ApplicationApproved,
		Interval:      domain.IntervalDaily,
		Schedule:      schedule,
		Version:       1,
	}
	repo.AddApplication(app)

	updated, err := svc.Normalize(app.ID)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if updated.Interval != domain.IntervalMonthly {
		t.Errorf("interval = %v, want Monthly", updated.Interval)
	}
	if len(updated.Schedule) != 2 {
		t.Fatalf("schedule length = %d, want 2 monthly rows", len(updated.Schedule))
	}
	wantTotal := decimal.NewFromFloat(100.50).Mul(decimal.NewFromInt(56))
	if !updated.Schedule.TotalAmount().Equal(wantTotal) {
		t.Errorf("total after aggregation = %s, want %s", updated.Schedule.TotalAmount(), wantTotal)
	}

	// Second call is a no-op
	again, err := svc.Normalize(app.ID)
	if err != nil {
		t.Fatalf("second Normalize() error = %v", err)
	}
	if again.Version != updated.Version {
		t.Errorf("version changed on no-op normalize: %d -> %d", updated.Version, again.Version)
	}
}

func TestApplicationServiceNormalizeIntervalFieldWins(t *testing.T) {
	repo := testutil.NewMockApplicationRepository()
	svc := newTestApplicationService(repo)

	// Day-gap entries, but the record says Monthly. The explicit field wins
	// and the schedule is left alone.
	var schedule domain.Schedule
	start := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		schedule = append(schedule, domain.Installment{
			Seq:     i + 1,
			DueDate: start.AddDate(0, 0, i),
			Amount:  decimal.NewFromInt(10),
			Status:  domain.StatusUpcoming,
		})
	}
	app := &domain.Application{
		ID:            uuid.New(),
		ApplicantName: "Labelled Monthly",
		Vehicle:       domain.Vehicle{Make: "Kia", Model: "Picanto"},
		Terms:         standardTerms(),
		Status:        domain.ApplicationApproved,
		Interval:      domain.IntervalMonthly,
		Schedule:      schedule,
		Version:       1,
	}
	repo.AddApplication(app)

	updated, err := svc.Normalize(app.ID)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(updated.Schedule) != 30 {
		t.Errorf("schedule length = %d, want untouched 30", len(updated.Schedule))
	}
}

func TestApplicationServiceQuoteSettlement(t *testing.T) {
	repo := testutil.NewMockApplicationRepository()
	svc := newTestApplicationService(repo)

	app, _ := svc.Create(standardInput())
	approved, _ := svc.Approve(app.ID)

	asOf := time.Now()
	quote, err := svc.QuoteSettlement(app.ID, asOf)
	if err != nil {
		t.Fatalf("QuoteSettlement() error = %v", err)
	}
	// All 12 installments remain, so the 30% tier applies
	wantDiscount := approved.Schedule.RemainingAmount().Mul(decimal.NewFromFloat(0.30)).Round(2)
	if !quote.Discount.Equal(wantDiscount) {
		t.Errorf("discount = %s, want %s", quote.Discount, wantDiscount)
	}
	if !quote.FinalAmount.Equal(quote.OriginalRemaining.Sub(quote.Discount)) {
		t.Errorf("final = %s, want remaining minus discount", quote.FinalAmount)
	}
}

func TestApplicationServiceSettle(t *testing.T) {
	repo := testutil.NewMockApplicationRepository()
	svc := newTestApplicationService(repo)
	pub := &recordingPublisher{}
	svc.SetEventPublisher(pub)

	app, _ := svc.Create(standardInput())
	svc.Approve(app.ID)

	asOf := time.Date(2026, time.May, 10, 0, 0, 0, 0, time.UTC)
	settled, quote, err := svc.Settle(app.ID, asOf, domain.PaymentBankAccount)
	if err != nil {
		t.Fatalf("Settle() error = %v", err)
	}
	if settled.Status != domain.ApplicationSettled {
		t.Errorf("status = %v, want settled", settled.Status)
	}
	if settled.Schedule.RemainingCount() != 0 {
		t.Errorf("remaining installments = %d, want 0", settled.Schedule.RemainingCount())
	}
	for _, in := range settled.Schedule {
		if in.PaidDate == nil {
			t.Fatalf("installment %d has no paid date after settlement", in.Seq)
		}
	}
	if quote.FinalAmount.GreaterThan(quote.OriginalRemaining) {
		t.Errorf("final %s exceeds remaining %s", quote.FinalAmount, quote.OriginalRemaining)
	}

	// Settling a settled application fails
	if _, _, err := svc.Settle(app.ID, asOf, domain.PaymentCash); !errors.Is(err, domain.ErrApplicationNotApproved) {
		t.Errorf("second Settle() error = %v, want ErrApplicationNotApproved", err)
	}

	var sawSettlement bool
	for _, ev := range pub.events {
		if ev.Entity == websocket.EntityTypeSettlement {
			sawSettlement = true
		}
	}
	if !sawSettlement {
		t.Error("no settlement event published")
	}
}

func TestApplicationServiceSettleRequiresApproval(t *testing.T) {
	repo := testutil.NewMockApplicationRepository()
	svc := newTestApplicationService(repo)

	app, _ := svc.Create(standardInput())

	if _, _, err := svc.Settle(app.ID, time.Now(), domain.PaymentCash); !errors.Is(err, domain.ErrApplicationNotApproved) {
		t.Errorf("Settle() on pending application error = %v, want ErrApplicationNotApproved", err)
	}
}

func TestApplicationServiceExportScheduleCSV(t *testing.T) {
	repo := testutil.NewMockApplicationRepository()
	svc := newTestApplicationService(repo)

	app, _ := svc.Create(standardInput())
	svc.Approve(app.ID)

	var buf bytes.Buffer
	if err := svc.ExportScheduleCSV(app.ID, &buf); err != nil {
		t.Fatalf("ExportScheduleCSV() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 13 {
		t.Fatalf("csv lines = %d, want header + 12 rows", len(lines))
	}
	if !strings.HasPrefix(lines[0], "seq,due_date,amount,status") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "7466.67") {
		t.Errorf("first row = %q, want amount 7466.67", lines[1])
	}
	// Last row has full customer ownership
	if !strings.Contains(lines[12], "100000.00") || !strings.Contains(lines[12], "100.00") {
		t.Errorf("last row = %q, want full ownership", lines[12])
	}
}

func TestApplicationServiceListForApplicant(t *testing.T) {
	repo := testutil.NewMockApplicationRepository()
	svc := newTestApplicationService(repo)

	svc.Create(standardInput())
	other := standardInput()
	other.ApplicantAuthID = "auth0|someoneelse"
	svc.Create(other)

	mine, err := svc.ListForApplicant("auth0|applicant1")
	if err != nil {
		t.Fatalf("ListForApplicant() error = %v", err)
	}
	if len(mine) != 1 {
		t.Errorf("applications = %d, want 1", len(mine))
	}
}
