package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrApplicationNotFound      = errors.New("application not found")
	ErrApplicantNameEmpty       = errors.New("applicant name is required")
	ErrApplicantNameTooLong     = errors.New("applicant name must be 255 characters or less")
	ErrVehicleNameEmpty         = errors.New("vehicle make and model are required")
	ErrVehicleNameTooLong       = errors.New("vehicle make/model must be 200 characters or less")
	ErrApplicationNotPending    = errors.New("application is not awaiting review")
	ErrApplicationNotReviewable = errors.New("application cannot be approved or rejected in its current status")
	ErrApplicationNotApproved   = errors.New("application has no approved schedule")
	ErrScheduleEmpty            = errors.New("application has no schedule")
)

// ApplicationStatus is the review state of a lease application
type ApplicationStatus string

const (
	ApplicationPending     ApplicationStatus = "pending"
	ApplicationUnderReview ApplicationStatus = "under_review"
	ApplicationApproved    ApplicationStatus = "approved"
	ApplicationRejected    ApplicationStatus = "rejected"
	ApplicationSettled     ApplicationStatus = "settled"
)

// ScheduleInterval is the granularity of an application's stored schedule.
// Historical records may carry an empty interval; the aggregation service
// falls back to a heuristic for those.
type ScheduleInterval string

const (
	IntervalDaily   ScheduleInterval = "Daily"
	IntervalMonthly ScheduleInterval = "Monthly"
)

// Vehicle describes the financed vehicle on an application
type Vehicle struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year"`
}

// Application is a lease-to-own application: the applicant, the vehicle, the
// financing terms, and (after approval) the installment schedule derived from
// them. The schedule is owned exclusively by its application and is mutated
// only by whole-schedule replacement under the version check.
type Application struct {
	ID              uuid.UUID         `json:"id"`
	Number          string            `json:"number"`
	ApplicantName   string            `json:"applicantName"`
	ApplicantEmail  string            `json:"applicantEmail"`
	ApplicantAuthID string            `json:"-"`
	Vehicle         Vehicle           `json:"vehicle"`
	Terms           LoanTerms         `json:"terms"`
	TenureLabel     string            `json:"tenureLabel"`
	Interval        ScheduleInterval  `json:"interval,omitempty"`
	Status          ApplicationStatus `json:"status"`
	RejectReason    *string           `json:"rejectReason,omitempty"`
	Schedule        Schedule          `json:"schedule,omitempty"`
	Version         int32             `json:"version"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func (a *Application) Validate() error {
	if strings.TrimSpace(a.ApplicantName) == "" {
		return ErrApplicantNameEmpty
	}
	if len(a.ApplicantName) > MaxApplicantNameLength {
		return ErrApplicantNameTooLong
	}
	vehicleName := strings.TrimSpace(a.Vehicle.Make + " " + a.Vehicle.Model)
	if vehicleName == "" {
		return ErrVehicleNameEmpty
	}
	if len(vehicleName) > MaxVehicleNameLength {
		return ErrVehicleNameTooLong
	}
	return a.Terms.Validate()
}

// HasSchedule reports whether a non-empty schedule has been generated.
// Approval is idempotent over this: an existing schedule is never
// regenerated implicitly.
func (a *Application) HasSchedule() bool {
	return len(a.Schedule) > 0
}

// ApplicationRepository is the record store for applications and their
// schedules. UpdateSchedule and UpdateStatus replace state wholesale and must
// fail with ErrVersionConflict when the caller's version is stale; that check
// is the single-writer discipline serializing concurrent schedule writes.
type ApplicationRepository interface {
	Create(app *Application) (*Application, error)
	GetByID(id uuid.UUID) (*Application, error)
	GetByApplicantAuthID(authID string) ([]*Application, error)
	List(status *ApplicationStatus) ([]*Application, error)
	UpdateStatus(id uuid.UUID, version int32, status ApplicationStatus, rejectReason *string) (*Application, error)
	UpdateSchedule(id uuid.UUID, version int32, schedule Schedule, interval ScheduleInterval, status ApplicationStatus) (*Application, error)
}
