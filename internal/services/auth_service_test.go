package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/nkuznetsov/vaultgate/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthService(repo *MockUserRepository, audit *RecordingAudit, issuer *StaticTokenIssuer) *AuthService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthService(repo, issuer, audit, logger, 4)
}

func testClient() ClientInfo {
	return ClientInfo{IPAddress: "203.0.113.7", UserAgent: "test-agent"}
}

func TestLogin_Success(t *testing.T) {
	user := NewTestUser(42, "alice", "alice@example.com", "correct-horse")
	var recordedLogin int64
	repo := &MockUserRepository{
		FindByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			assert.Equal(t, "alice", username)
			return user, nil
		},
		RecordSuccessfulLoginFunc: func(ctx context.Context, userID int64) error {
			recordedLogin = userID
			return nil
		},
	}
	audit := &RecordingAudit{}
	service := newTestAuthService(repo, audit, &StaticTokenIssuer{Token: "signed-token"})

	resp, err := service.Login(context.Background(), LoginInput{Username: "alice", Password: "correct-horse"}, testClient())

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "signed-token", resp.Token)
	assert.Equal(t, int64(42), resp.User.ID)
	assert.Equal(t, "alice", resp.User.Username)
	assert.Equal(t, int64(42), recordedLogin)

	events := audit.Recorded()
	require.Len(t, events, 1)
	assert.Equal(t, models.AuditActionLogin, events[0].ActionType)
	assert.Equal(t, models.AuditStatusSuccess, events[0].Status)
	require.NotNil(t, events[0].UserID)
	assert.Equal(t, int64(42), *events[0].UserID)
	assert.Equal(t, "203.0.113.7", events[0].IPAddress)
}

func TestLogin_MissingCredentials(t *testing.T) {
	tests := []struct {
		name  string
		input LoginInput
	}{
		{"missing password", LoginInput{Username: "alice"}},
		{"missing username", LoginInput{Password: "secret"}},
		{"missing both", LoginInput{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockUserRepository{
				FindByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
					t.Fatal("store must not be consulted for incomplete input")
					return nil, nil
				},
			}
			audit := &RecordingAudit{}
			service := newTestAuthService(repo, audit, &StaticTokenIssuer{Token: "t"})

			resp, err := service.Login(context.Background(), tt.input, testClient())

			assert.Nil(t, resp)
			assert.ErrorIs(t, err, models.ErrMissingFields)

			events := audit.Recorded()
			require.Len(t, events, 1)
			assert.Equal(t, models.AuditStatusFailure, events[0].Status)
			assert.Equal(t, models.AuditReasonMissingCredentials, events[0].Details["reason"])
			assert.Nil(t, events[0].UserID)
		})
	}
}

func TestLogin_UserNotFound(t *testing.T) {
	repo := &MockUserRepository{
		FindByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return nil, models.ErrNotFound
		},
	}
	audit := &RecordingAudit{}
	service := newTestAuthService(repo, audit, &StaticTokenIssuer{Token: "t"})

	resp, err := service.Login(context.Background(), LoginInput{Username: "ghost", Password: "whatever"}, testClient())

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	events := audit.Recorded()
	require.Len(t, events, 1)
	assert.Equal(t, models.AuditReasonUserNotFound, events[0].Details["reason"])
	assert.Nil(t, events[0].UserID)
}

func TestLogin_InvalidPassword(t *testing.T) {
	user := NewTestUser(42, "alice", "alice@example.com", "correct-horse")
	incremented := 0
	repo := &MockUserRepository{
		FindByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
		IncrementFailedAttemptsFunc: func(ctx context.Context, userID int64) error {
			assert.Equal(t, int64(42), userID)
			incremented++
			return nil
		},
		RecordSuccessfulLoginFunc: func(ctx context.Context, userID int64) error {
			t.Fatal("successful login must not be recorded for a wrong password")
			return nil
		},
	}
	audit := &RecordingAudit{}
	service := newTestAuthService(repo, audit, &StaticTokenIssuer{Token: "t"})

	resp, err := service.Login(context.Background(), LoginInput{Username: "alice", Password: "wrong"}, testClient())

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.Equal(t, 1, incremented)

	events := audit.Recorded()
	require.Len(t, events, 1)
	assert.Equal(t, models.AuditReasonInvalidPassword, events[0].Details["reason"])
	require.NotNil(t, events[0].UserID)
	assert.Equal(t, int64(42), *events[0].UserID)
}

// The caller must not be able to tell an unknown user from a wrong password.
func TestLogin_FailureSentinelsIndistinguishable(t *testing.T) {
	user := NewTestUser(42, "alice", "alice@example.com", "correct-horse")
	notFoundRepo := &MockUserRepository{
		FindByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return nil, models.ErrNotFound
		},
	}
	wrongPasswordRepo := &MockUserRepository{
		FindByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}

	svc1 := newTestAuthService(notFoundRepo, &RecordingAudit{}, &StaticTokenIssuer{Token: "t"})
	svc2 := newTestAuthService(wrongPasswordRepo, &RecordingAudit{}, &StaticTokenIssuer{Token: "t"})

	_, err1 := svc1.Login(context.Background(), LoginInput{Username: "ghost", Password: "x"}, testClient())
	_, err2 := svc2.Login(context.Background(), LoginInput{Username: "alice", Password: "wrong"}, testClient())

	assert.Equal(t, err1, err2)
}

func TestLogin_IncrementFailureDoesNotChangeOutcome(t *testing.T) {
	user := NewTestUser(42, "alice", "alice@example.com", "correct-horse")
	repo := &MockUserRepository{
		FindByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
		IncrementFailedAttemptsFunc: func(ctx context.Context, userID int64) error {
			return errors.New("connection reset")
		},
	}
	audit := &RecordingAudit{}
	service := newTestAuthService(repo, audit, &StaticTokenIssuer{Token: "t"})

	_, err := service.Login(context.Background(), LoginInput{Username: "alice", Password: "wrong"}, testClient())

	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	events := audit.Recorded()
	require.Len(t, events, 1)
	assert.Equal(t, models.AuditReasonInvalidPassword, events[0].Details["reason"])
}

func TestLogin_StoreFailure(t *testing.T) {
	repo := &MockUserRepository{
		FindByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	audit := &RecordingAudit{}
	service := newTestAuthService(repo, audit, &StaticTokenIssuer{Token: "t"})

	resp, err := service.Login(context.Background(), LoginInput{Username: "alice", Password: "secret"}, testClient())

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, models.ErrInternalServer)

	events := audit.Recorded()
	require.Len(t, events, 1)
	assert.Equal(t, models.AuditReasonServerError, events[0].Details["reason"])
}

func TestLogin_TokenIssueFailure(t *testing.T) {
	user := NewTestUser(42, "alice", "alice@example.com", "correct-horse")
	repo := &MockUserRepository{
		FindByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}
	audit := &RecordingAudit{}
	service := newTestAuthService(repo, audit, &StaticTokenIssuer{Err: errors.New("signing failed")})

	resp, err := service.Login(context.Background(), LoginInput{Username: "alice", Password: "correct-horse"}, testClient())

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, models.ErrInternalServer)

	events := audit.Recorded()
	require.Len(t, events, 1)
	assert.Equal(t, models.AuditStatusFailure, events[0].Status)
	assert.Equal(t, models.AuditReasonServerError, events[0].Details["reason"])
}

func TestRegister_Success(t *testing.T) {
	repo := &MockUserRepository{
		FindByUsernameOrEmailFunc: func(ctx context.Context, username, email string) (*models.User, error) {
			return nil, models.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			assert.Equal(t, "bob", user.Username)
			assert.Equal(t, "bob@example.com", user.Email)
			assert.NotEmpty(t, user.PasswordHash)
			assert.NotEqual(t, "s3cret-pass", user.PasswordHash)
			assert.Equal(t, models.DefaultRoleID, user.RoleID)
			require.NotNil(t, user.FullName)
			assert.Equal(t, "Bob Builder", *user.FullName)
			assert.Nil(t, user.PhoneNumber)

			out := *user
			out.ID = 7
			out.RoleName = models.DefaultRoleName
			return &out, nil
		},
	}
	audit := &RecordingAudit{}
	service := newTestAuthService(repo, audit, &StaticTokenIssuer{Token: "signed-token"})

	resp, err := service.Register(context.Background(), RegisterInput{
		Username: "bob",
		Email:    "bob@example.com",
		FullName: "Bob Builder",
		Password: "s3cret-pass",
	}, testClient())

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "signed-token", resp.Token)
	assert.Equal(t, int64(7), resp.User.ID)
	assert.Equal(t, models.DefaultRoleName, resp.User.RoleName)

	events := audit.Recorded()
	require.Len(t, events, 1)
	assert.Equal(t, models.AuditActionRegister, events[0].ActionType)
	assert.Equal(t, models.AuditStatusSuccess, events[0].Status)
	require.NotNil(t, events[0].UserID)
	assert.Equal(t, int64(7), *events[0].UserID)
}

func TestRegister_MissingFields(t *testing.T) {
	audit := &RecordingAudit{}
	service := newTestAuthService(&MockUserRepository{}, audit, &StaticTokenIssuer{Token: "t"})

	resp, err := service.Register(context.Background(), RegisterInput{Username: "bob"}, testClient())

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, models.ErrMissingFields)

	events := audit.Recorded()
	require.Len(t, events, 1)
	assert.Equal(t, models.AuditReasonMissingFields, events[0].Details["reason"])
}

func TestRegister_UsernameConflict(t *testing.T) {
	existing := NewTestUser(3, "bob", "other@example.com", "pw")
	repo := &MockUserRepository{
		FindByUsernameOrEmailFunc: func(ctx context.Context, username, email string) (*models.User, error) {
			return existing, nil
		},
	}
	audit := &RecordingAudit{}
	service := newTestAuthService(repo, audit, &StaticTokenIssuer{Token: "t"})

	resp, err := service.Register(context.Background(), RegisterInput{
		Username: "bob", Email: "bob@example.com", Password: "pw",
	}, testClient())

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, models.ErrUsernameExists)

	events := audit.Recorded()
	require.Len(t, events, 1)
	assert.Equal(t, models.AuditReasonUsernameExists, events[0].Details["reason"])
}

func TestRegister_EmailConflict(t *testing.T) {
	existing := NewTestUser(3, "someone-else", "bob@example.com", "pw")
	repo := &MockUserRepository{
		FindByUsernameOrEmailFunc: func(ctx context.Context, username, email string) (*models.User, error) {
			return existing, nil
		},
	}
	audit := &RecordingAudit{}
	service := newTestAuthService(repo, audit, &StaticTokenIssuer{Token: "t"})

	resp, err := service.Register(context.Background(), RegisterInput{
		Username: "bob", Email: "bob@example.com", Password: "pw",
	}, testClient())

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, models.ErrEmailExists)

	events := audit.Recorded()
	require.Len(t, events, 1)
	assert.Equal(t, models.AuditReasonEmailExists, events[0].Details["reason"])
}

// When both identity fields are taken the username conflict wins.
func TestRegister_UsernameConflictTakesPrecedence(t *testing.T) {
	existing := NewTestUser(3, "bob", "bob@example.com", "pw")
	repo := &MockUserRepository{
		FindByUsernameOrEmailFunc: func(ctx context.Context, username, email string) (*models.User, error) {
			return existing, nil
		},
	}
	audit := &RecordingAudit{}
	service := newTestAuthService(repo, audit, &StaticTokenIssuer{Token: "t"})

	_, err := service.Register(context.Background(), RegisterInput{
		Username: "bob", Email: "bob@example.com", Password: "pw",
	}, testClient())

	assert.ErrorIs(t, err, models.ErrUsernameExists)
	events := audit.Recorded()
	require.Len(t, events, 1)
	assert.Equal(t, models.AuditReasonUsernameExists, events[0].Details["reason"])
}

// A registration that races past the application-level check still maps
// the constraint violation to the right conflict sentinel.
func TestRegister_ConstraintRace(t *testing.T) {
	tests := []struct {
		name       string
		createErr  error
		wantErr    error
		wantReason string
	}{
		{"username constraint", models.ErrUsernameExists, models.ErrUsernameExists, models.AuditReasonUsernameExists},
		{"email constraint", models.ErrEmailExists, models.ErrEmailExists, models.AuditReasonEmailExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockUserRepository{
				FindByUsernameOrEmailFunc: func(ctx context.Context, username, email string) (*models.User, error) {
					return nil, models.ErrNotFound
				},
				CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
					return nil, tt.createErr
				},
			}
			audit := &RecordingAudit{}
			service := newTestAuthService(repo, audit, &StaticTokenIssuer{Token: "t"})

			_, err := service.Register(context.Background(), RegisterInput{
				Username: "bob", Email: "bob@example.com", Password: "pw",
			}, testClient())

			assert.ErrorIs(t, err, tt.wantErr)
			events := audit.Recorded()
			require.Len(t, events, 1)
			assert.Equal(t, tt.wantReason, events[0].Details["reason"])
		})
	}
}

func TestRegister_StoreFailure(t *testing.T) {
	repo := &MockUserRepository{
		FindByUsernameOrEmailFunc: func(ctx context.Context, username, email string) (*models.User, error) {
			return nil, models.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	audit := &RecordingAudit{}
	service := newTestAuthService(repo, audit, &StaticTokenIssuer{Token: "t"})

	resp, err := service.Register(context.Background(), RegisterInput{
		Username: "bob", Email: "bob@example.com", Password: "pw",
	}, testClient())

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, models.ErrInternalServer)

	events := audit.Recorded()
	require.Len(t, events, 1)
	assert.Equal(t, models.AuditReasonServerError, events[0].Details["reason"])
}

func TestRegister_TrimsIdentityFields(t *testing.T) {
	var created *models.User
	repo := &MockUserRepository{
		FindByUsernameOrEmailFunc: func(ctx context.Context, username, email string) (*models.User, error) {
			assert.Equal(t, "bob", username)
			assert.Equal(t, "bob@example.com", email)
			return nil, models.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			created = user
			out := *user
			out.ID = 9
			return &out, nil
		},
	}
	service := newTestAuthService(repo, &RecordingAudit{}, &StaticTokenIssuer{Token: "t"})

	_, err := service.Register(context.Background(), RegisterInput{
		Username: "  bob  ", Email: " bob@example.com ", Password: "pw",
	}, testClient())

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "bob", created.Username)
	assert.Equal(t, "bob@example.com", created.Email)
}

// Registration warn logs carry the email only in masked form.
func TestRegister_LogsMaskEmail(t *testing.T) {
	existing := NewTestUser(3, "someone-else", "bob@example.com", "pw")
	repo := &MockUserRepository{
		FindByUsernameOrEmailFunc: func(ctx context.Context, username, email string) (*models.User, error) {
			return existing, nil
		},
	}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	service := NewAuthService(repo, &StaticTokenIssuer{Token: "t"}, &RecordingAudit{}, logger, 4)

	_, err := service.Register(context.Background(), RegisterInput{
		Username: "bob", Email: "bob@example.com", Password: "pw",
	}, testClient())
	require.ErrorIs(t, err, models.ErrEmailExists)

	logged := buf.String()
	assert.NotContains(t, logged, "bob@example.com")
	assert.Contains(t, logged, "b**@*******.com")
}

// Audit details must never carry credential material.
func TestAuditDetailsNeverContainPassword(t *testing.T) {
	user := NewTestUser(42, "alice", "alice@example.com", "correct-horse")
	repo := &MockUserRepository{
		FindByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}
	audit := &RecordingAudit{}
	service := newTestAuthService(repo, audit, &StaticTokenIssuer{Token: "t"})

	_, _ = service.Login(context.Background(), LoginInput{Username: "alice", Password: "wrong"}, testClient())
	_, _ = service.Login(context.Background(), LoginInput{Username: "alice", Password: "correct-horse"}, testClient())

	for _, event := range audit.Recorded() {
		for key, value := range event.Details {
			assert.NotEqual(t, "password", key)
			if s, ok := value.(string); ok {
				assert.NotContains(t, s, "correct-horse")
				assert.NotContains(t, s, "wrong")
			}
		}
	}
}
