package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/veloraid/velora/velora-backend/internal/domain"
)

// ApplicationRepository implements domain.ApplicationRepository using
// PostgreSQL. Schedules live in their own table but are only ever written
// wholesale, inside a transaction guarded by the application's version
// column.
type ApplicationRepository struct {
	pool *pgxpool.Pool
}

// NewApplicationRepository creates a new ApplicationRepository
func NewApplicationRepository(pool *pgxpool.Pool) *ApplicationRepository {
	return &ApplicationRepository{pool: pool}
}

const applicationColumns = `
	id, number, applicant_name, applicant_email, applicant_auth_id,
	vehicle_make, vehicle_model, vehicle_year,
	vehicle_price, down_payment, tenure_months, annual_rental_rate, calculation_method,
	tenure_label, schedule_interval, status, reject_reason, version, created_at, updated_at`

// Create inserts a new application; the schedule is expected to be empty at
// intake
func (r *ApplicationRepository) Create(app *domain.Application) (*domain.Application, error) {
	ctx := context.Background()

	price, err := decimalToPgNumeric(app.Terms.VehiclePrice)
	if err != nil {
		return nil, err
	}
	down, err := decimalToPgNumeric(app.Terms.DownPayment)
	if err != nil {
		return nil, err
	}
	rate, err := decimalToPgNumeric(app.Terms.AnnualRentalRate)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO applications (
			id, number, applicant_name, applicant_email, applicant_auth_id,
			vehicle_make, vehicle_model, vehicle_year,
			vehicle_price, down_payment, tenure_months, annual_rental_rate, calculation_method,
			tenure_label, schedule_interval, status, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1)
		RETURNING `+applicationColumns,
		app.ID, app.Number, app.ApplicantName, app.ApplicantEmail, app.ApplicantAuthID,
		app.Vehicle.Make, app.Vehicle.Model, app.Vehicle.Year,
		price, down, app.Terms.TenureMonths, rate, string(app.Terms.CalculationMethod),
		app.TenureLabel, string(app.Interval), string(app.Status),
	)

	created, err := scanApplication(row)
	if err != nil {
		return nil, err
	}
	created.Schedule = domain.Schedule{}
	return created, nil
}

// GetByID retrieves an application with its full schedule
func (r *ApplicationRepository) GetByID(id uuid.UUID) (*domain.Application, error) {
	ctx := context.Background()

	row := r.pool.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrApplicationNotFound
		}
		return nil, err
	}

	schedule, err := r.loadSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	app.Schedule = schedule
	return app, nil
}

// GetByApplicantAuthID retrieves all applications belonging to an applicant,
// newest first, schedules included
func (r *ApplicationRepository) GetByApplicantAuthID(authID string) ([]*domain.Application, error) {
	ctx := context.Background()

	rows, err := r.pool.Query(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE applicant_auth_id = $1 ORDER BY created_at DESC`,
		authID)
	if err != nil {
		return nil, err
	}
	apps, err := scanApplications(rows)
	if err != nil {
		return nil, err
	}

	for _, app := range apps {
		schedule, err := r.loadSchedule(ctx, app.ID)
		if err != nil {
			return nil, err
		}
		app.Schedule = schedule
	}
	return apps, nil
}

// List retrieves applications, optionally filtered by status. Schedules are
// not loaded here; list views only need the header fields.
func (r *ApplicationRepository) List(status *domain.ApplicationStatus) ([]*domain.Application, error) {
	ctx := context.Background()

	var (
		rows pgx.Rows
		err  error
	)
	if status != nil {
		rows, err = r.pool.Query(ctx,
			`SELECT `+applicationColumns+` FROM applications WHERE status = $1 ORDER BY created_at DESC`,
			string(*status))
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT `+applicationColumns+` FROM applications ORDER BY created_at DESC`)
	}
	if err != nil {
		return nil, err
	}
	return scanApplications(rows)
}

// UpdateStatus transitions the application status under the version check
func (r *ApplicationRepository) UpdateStatus(id uuid.UUID, version int32, status domain.ApplicationStatus, rejectReason *string) (*domain.Application, error) {
	ctx := context.Background()

	reason := pgtype.Text{}
	if rejectReason != nil {
		reason.String = *rejectReason
		reason.Valid = true
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE applications
		SET status = $3, reject_reason = $4, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING `+applicationColumns,
		id, version, string(status), reason)

	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.versionFailure(ctx, id)
		}
		return nil, err
	}

	schedule, err := r.loadSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	app.Schedule = schedule
	return app, nil
}

// UpdateSchedule replaces the stored schedule wholesale, together with the
// interval and status, in one transaction. The version predicate on the
// applications row serializes concurrent writers.
func (r *ApplicationRepository) UpdateSchedule(id uuid.UUID, version int32, schedule domain.Schedule, interval domain.ScheduleInterval, status domain.ApplicationStatus) (*domain.Application, error) {
	ctx := context.Background()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE applications
		SET schedule_interval = $3, status = $4, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING `+applicationColumns,
		id, version, string(interval), string(status))

	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.versionFailure(ctx, id)
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM installments WHERE application_id = $1`, id); err != nil {
		return nil, err
	}
	if err := insertSchedule(ctx, tx, id, schedule); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	app.Schedule = schedule.Clone()
	return app, nil
}

// versionFailure distinguishes a missing row from a stale version
func (r *ApplicationRepository) versionFailure(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM applications WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrApplicationNotFound
	}
	return domain.ErrVersionConflict
}

func insertSchedule(ctx context.Context, tx pgx.Tx, appID uuid.UUID, schedule domain.Schedule) error {
	if len(schedule) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, in := range schedule {
		amount, err := decimalToPgNumeric(in.Amount)
		if err != nil {
			return err
		}

		paidDate := pgtype.Date{}
		if in.PaidDate != nil {
			paidDate.Time = *in.PaidDate
			paidDate.Valid = true
		}
		method := pgtype.Text{}
		if in.PaymentMethod != nil {
			method.String = string(*in.PaymentMethod)
			method.Valid = true
		}
		proof := pgtype.Text{}
		if in.ProofDocument != nil {
			proof.String = *in.ProofDocument
			proof.Valid = true
		}

		batch.Queue(`
			INSERT INTO installments (application_id, seq, due_date, amount, status, paid_date, payment_method, proof_document)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			appID, in.Seq, in.DueDate, amount, string(in.Status), paidDate, method, proof)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()
	for range schedule {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return br.Close()
}

func (r *ApplicationRepository) loadSchedule(ctx context.Context, appID uuid.UUID) (domain.Schedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT seq, due_date, amount, status, paid_date, payment_method, proof_document
		FROM installments
		WHERE application_id = $1
		ORDER BY seq`,
		appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedule := domain.Schedule{}
	for rows.Next() {
		var (
			in       domain.Installment
			dueDate  pgtype.Date
			amount   pgtype.Numeric
			status   string
			paidDate pgtype.Date
			method   pgtype.Text
			proof    pgtype.Text
		)
		if err := rows.Scan(&in.Seq, &dueDate, &amount, &status, &paidDate, &method, &proof); err != nil {
			return nil, err
		}
		in.DueDate = dueDate.Time
		in.Amount = pgNumericToDecimal(amount)
		in.Status = domain.InstallmentStatus(status)
		if paidDate.Valid {
			t := paidDate.Time
			in.PaidDate = &t
		}
		if method.Valid {
			m := domain.PaymentMethod(method.String)
			in.PaymentMethod = &m
		}
		if proof.Valid {
			p := proof.String
			in.ProofDocument = &p
		}
		schedule = append(schedule, in)
	}
	return schedule, rows.Err()
}

// pgx.Row and pgx.Rows share the Scan method
type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*domain.Application, error) {
	var (
		app          domain.Application
		price        pgtype.Numeric
		down         pgtype.Numeric
		rate         pgtype.Numeric
		method       string
		interval     pgtype.Text
		status       string
		rejectReason pgtype.Text
		createdAt    pgtype.Timestamptz
		updatedAt    pgtype.Timestamptz
	)

	err := row.Scan(
		&app.ID, &app.Number, &app.ApplicantName, &app.ApplicantEmail, &app.ApplicantAuthID,
		&app.Vehicle.Make, &app.Vehicle.Model, &app.Vehicle.Year,
		&price, &down, &app.Terms.TenureMonths, &rate, &method,
		&app.TenureLabel, &interval, &status, &rejectReason, &app.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	app.Terms.VehiclePrice = pgNumericToDecimal(price)
	app.Terms.DownPayment = pgNumericToDecimal(down)
	app.Terms.AnnualRentalRate = pgNumericToDecimal(rate)
	app.Terms.CalculationMethod = domain.CalculationMethod(method)
	if interval.Valid {
		app.Interval = domain.ScheduleInterval(interval.String)
	}
	app.Status = domain.ApplicationStatus(status)
	if rejectReason.Valid {
		app.RejectReason = &rejectReason.String
	}
	app.CreatedAt = createdAt.Time
	app.UpdatedAt = updatedAt.Time
	return &app, nil
}

func scanApplications(rows pgx.Rows) ([]*domain.Application, error) {
	defer rows.Close()

	var apps []*domain.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func decimalToPgNumeric(d decimal.Decimal) (pgtype.Numeric, error) {
	var num pgtype.Numeric
	if err := num.Scan(d.String()); err != nil {
		return pgtype.Numeric{}, err
	}
	return num, nil
}

func pgNumericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	if n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
