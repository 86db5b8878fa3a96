package testutil

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/veloraid/velora/velora-backend/internal/domain"
)

// MockApplicationRepository is an in-memory implementation of
// domain.ApplicationRepository. It enforces the same optimistic version check
// as the Postgres repository, so conflict paths can be tested without a
// database.
type MockApplicationRepository struct {
	mu   sync.Mutex
	Apps map[uuid.UUID]*domain.Application

	CreateErr error
	GetErr    error
	UpdateErr error
}

// NewMockApplicationRepository creates a new MockApplicationRepository
func NewMockApplicationRepository() *MockApplicationRepository {
	return &MockApplicationRepository{
		Apps: make(map[uuid.UUID]*domain.Application),
	}
}

// AddApplication seeds an application directly, bypassing Create
func (m *MockApplicationRepository) AddApplication(app *domain.Application) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *app
	cp.Schedule = app.Schedule.Clone()
	m.Apps[app.ID] = &cp
}

// Create stores a new application
func (m *MockApplicationRepository) Create(app *domain.Application) (*domain.Application, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	app.Version = 1
	app.CreatedAt = time.Now()
	app.UpdatedAt = app.CreatedAt

	cp := *app
	cp.Schedule = app.Schedule.Clone()
	m.Apps[app.ID] = &cp
	return m.copyOf(app.ID), nil
}

// GetByID retrieves an application by ID
func (m *MockApplicationRepository) GetByID(id uuid.UUID) (*domain.Application, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Apps[id]; !ok {
		return nil, domain.ErrApplicationNotFound
	}
	return m.copyOf(id), nil
}

// GetByApplicantAuthID retrieves all applications belonging to an applicant
func (m *MockApplicationRepository) GetByApplicantAuthID(authID string) ([]*domain.Application, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.Application
	for id, app := range m.Apps {
		if app.ApplicantAuthID == authID {
			out = append(out, m.copyOf(id))
		}
	}
	return out, nil
}

// List retrieves applications, optionally filtered by status
func (m *MockApplicationRepository) List(status *domain.ApplicationStatus) ([]*domain.Application, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.Application
	for id, app := range m.Apps {
		if status == nil || app.Status == *status {
			out = append(out, m.copyOf(id))
		}
	}
	return out, nil
}

// UpdateStatus updates the application status under the version check
func (m *MockApplicationRepository) UpdateStatus(id uuid.UUID, version int32, status domain.ApplicationStatus, rejectReason *string) (*domain.Application, error) {
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	app, ok := m.Apps[id]
	if !ok {
		return nil, domain.ErrApplicationNotFound
	}
	if app.Version != version {
		return nil, domain.ErrVersionConflict
	}

	app.Status = status
	app.RejectReason = rejectReason
	app.Version++
	app.UpdatedAt = time.Now()
	return m.copyOf(id), nil
}

// UpdateSchedule replaces the schedule wholesale under the version check
func (m *MockApplicationRepository) UpdateSchedule(id uuid.UUID, version int32, schedule domain.Schedule, interval domain.ScheduleInterval, status domain.ApplicationStatus) (*domain.Application, error) {
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	app, ok := m.Apps[id]
	if !ok {
		return nil, domain.ErrApplicationNotFound
	}
	if app.Version != version {
		return nil, domain.ErrVersionConflict
	}

	app.Schedule = schedule.Clone()
	app.Interval = interval
	app.Status = status
	app.Version++
	app.UpdatedAt = time.Now()
	return m.copyOf(id), nil
}

// copyOf returns a detached copy. Callers must hold the lock.
func (m *MockApplicationRepository) copyOf(id uuid.UUID) *domain.Application {
	app := m.Apps[id]
	cp := *app
	cp.Schedule = app.Schedule.Clone()
	return &cp
}

// MockDocumentRepository is an in-memory implementation of
// storage.DocumentRepository
type MockDocumentRepository struct {
	mu      sync.Mutex
	Objects map[string][]byte

	UploadErr error
}

// NewMockDocumentRepository creates a new MockDocumentRepository
func NewMockDocumentRepository() *MockDocumentRepository {
	return &MockDocumentRepository{Objects: make(map[string][]byte)}
}

// Upload stores the object in memory
func (m *MockDocumentRepository) Upload(ctx context.Context, objectPath string, data io.Reader, contentType string, size int64) (string, error) {
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[objectPath] = buf
	return objectPath, nil
}

// Delete removes the object
func (m *MockDocumentRepository) Delete(ctx context.Context, objectPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Objects, objectPath)
	return nil
}

// GeneratePresignedURL returns a deterministic URL for a stored object
func (m *MockDocumentRepository) GeneratePresignedURL(ctx context.Context, objectPath string, expiry time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Objects[objectPath]; !ok {
		return "", domain.ErrDocumentNotFound
	}
	return fmt.Sprintf("https://storage.test/%s?expires=%d", objectPath, int64(expiry.Seconds())), nil
}
