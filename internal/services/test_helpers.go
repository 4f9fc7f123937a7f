package services

import (
	"context"
	"sync"

	"github.com/nkuznetsov/vaultgate/internal/models"
	"github.com/nkuznetsov/vaultgate/internal/repositories"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	FindByIDFunc                func(ctx context.Context, id int64) (*models.User, error)
	FindByUsernameFunc          func(ctx context.Context, username string) (*models.User, error)
	FindByUsernameOrEmailFunc   func(ctx context.Context, username, email string) (*models.User, error)
	CreateFunc                  func(ctx context.Context, user *models.User) (*models.User, error)
	IncrementFailedAttemptsFunc func(ctx context.Context, userID int64) error
	RecordSuccessfulLoginFunc   func(ctx context.Context, userID int64) error
}

func (m *MockUserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.FindByUsernameFunc != nil {
		return m.FindByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	if m.FindByUsernameOrEmailFunc != nil {
		return m.FindByUsernameOrEmailFunc(ctx, username, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) IncrementFailedAttempts(ctx context.Context, userID int64) error {
	if m.IncrementFailedAttemptsFunc != nil {
		return m.IncrementFailedAttemptsFunc(ctx, userID)
	}
	return nil
}

func (m *MockUserRepository) RecordSuccessfulLogin(ctx context.Context, userID int64) error {
	if m.RecordSuccessfulLoginFunc != nil {
		return m.RecordSuccessfulLoginFunc(ctx, userID)
	}
	return nil
}

// MockAuditRepository implements AuditRepository for testing
type MockAuditRepository struct {
	mu          sync.Mutex
	Created     []*models.AuditLog
	CreateFunc  func(ctx context.Context, log *models.AuditLog) error
	ListFunc    func(ctx context.Context, filter repositories.AuditLogFilter) ([]*models.AuditLog, error)
	GetByUserFn func(ctx context.Context, userID int64, limit, offset int) ([]*models.AuditLog, error)
	CountFn     func(ctx context.Context, userID int64) (int64, error)
}

func (m *MockAuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	m.Created = append(m.Created, log)
	m.mu.Unlock()
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, log)
	}
	return nil
}

func (m *MockAuditRepository) CreatedLogs() []*models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.AuditLog, len(m.Created))
	copy(out, m.Created)
	return out
}

func (m *MockAuditRepository) List(ctx context.Context, filter repositories.AuditLogFilter) ([]*models.AuditLog, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return []*models.AuditLog{}, nil
}

func (m *MockAuditRepository) GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*models.AuditLog, error) {
	if m.GetByUserFn != nil {
		return m.GetByUserFn(ctx, userID, limit, offset)
	}
	return []*models.AuditLog{}, nil
}

func (m *MockAuditRepository) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	if m.CountFn != nil {
		return m.CountFn(ctx, userID)
	}
	return 0, nil
}

// RecordingAudit implements AuditRecorder and captures every event
type RecordingAudit struct {
	mu     sync.Mutex
	Events []AuditEvent
}

func (r *RecordingAudit) Record(ctx context.Context, event AuditEvent) {
	r.mu.Lock()
	r.Events = append(r.Events, event)
	r.mu.Unlock()
}

func (r *RecordingAudit) Recorded() []AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AuditEvent, len(r.Events))
	copy(out, r.Events)
	return out
}

// StaticTokenIssuer implements TokenIssuer for testing
type StaticTokenIssuer struct {
	Token string
	Err   error
}

func (s *StaticTokenIssuer) Issue(user *models.User) (string, error) {
	return s.Token, s.Err
}

// NewTestUser builds a user whose password hash matches password.
// Minimum bcrypt cost keeps the test suite fast.
func NewTestUser(id int64, username, email, password string) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return &models.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
		RoleID:       models.DefaultRoleID,
		RoleName:     models.DefaultRoleName,
	}
}
