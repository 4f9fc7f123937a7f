package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nkuznetsov/vaultgate/internal/models"
	pkgauth "github.com/nkuznetsov/vaultgate/pkg/auth"
	pkglogger "github.com/nkuznetsov/vaultgate/pkg/logger"
)

// Shared validator instance for state machine input checks
var validate = validator.New()

// UserRepository defines the credential store interface
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	IncrementFailedAttempts(ctx context.Context, userID int64) error
	RecordSuccessfulLogin(ctx context.Context, userID int64) error
}

// AuditRecorder records one event per terminal state, best-effort
type AuditRecorder interface {
	Record(ctx context.Context, event AuditEvent)
}

// TokenIssuer mints identity tokens for verified users
type TokenIssuer interface {
	Issue(user *models.User) (string, error)
}

// AuthService orchestrates login and registration. Every terminal outcome,
// success or failure, produces exactly one audit record before the caller
// gets its result; unexpected faults collapse to ErrInternalServer after
// being logged and audited with reason server_error.
type AuthService struct {
	repo       UserRepository
	tokens     TokenIssuer
	audit      AuditRecorder
	logger     *slog.Logger
	bcryptCost int
}

// NewAuthService creates a new AuthService
func NewAuthService(repo UserRepository, tokens TokenIssuer, audit AuditRecorder, logger *slog.Logger, bcryptCost int) *AuthService {
	return &AuthService{
		repo:       repo,
		tokens:     tokens,
		audit:      audit,
		logger:     logger,
		bcryptCost: bcryptCost,
	}
}

// ClientInfo identifies the request origin for auditing and logs
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// LoginInput is the login request body
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterInput is the registration request body
type RegisterInput struct {
	Username    string `json:"username" validate:"required"`
	Email       string `json:"email" validate:"required"`
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password" validate:"required"`
}

// UserPayload echoes non-secret user attributes in the auth response
type UserPayload struct {
	ID          int64   `json:"id"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	FullName    *string `json:"fullName"`
	PhoneNumber *string `json:"phoneNumber"`
	RoleID      int     `json:"roleId"`
	RoleName    string  `json:"roleName"`
}

// AuthResponse is returned on successful login or registration
type AuthResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    *UserPayload `json:"user"`
}

// Login authenticates a user against stored credentials and issues a token.
// Unknown-user and wrong-password failures are indistinguishable to the
// caller; only the audit detail differentiates them.
func (s *AuthService) Login(ctx context.Context, in LoginInput, client ClientInfo) (*AuthResponse, error) {
	if err := validate.Struct(in); err != nil {
		s.logger.Warn("login attempt with missing credentials",
			slog.String("username", in.Username),
			slog.String("ip", client.IPAddress))
		s.audit.Record(ctx, AuditEvent{
			ActionType: models.AuditActionLogin,
			Status:     models.AuditStatusFailure,
			IPAddress:  client.IPAddress,
			UserAgent:  client.UserAgent,
			Details: models.AuditDetails{
				"reason":   models.AuditReasonMissingCredentials,
				"username": in.Username,
			},
		})
		return nil, models.ErrMissingFields
	}

	user, err := s.repo.FindByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("login failed: user not found",
				slog.String("username", in.Username),
				slog.String("ip", client.IPAddress))
			s.audit.Record(ctx, AuditEvent{
				ActionType: models.AuditActionLogin,
				Status:     models.AuditStatusFailure,
				IPAddress:  client.IPAddress,
				UserAgent:  client.UserAgent,
				Details: models.AuditDetails{
					"reason":   models.AuditReasonUserNotFound,
					"username": in.Username,
				},
			})
			return nil, models.ErrInvalidCredentials
		}
		return nil, s.serverError(ctx, models.AuditActionLogin, client, models.AuditDetails{"username": in.Username}, err)
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, in.Password); err != nil {
		if incErr := s.repo.IncrementFailedAttempts(ctx, user.ID); incErr != nil {
			s.logger.Error("failed to increment failed login attempts",
				slog.Int64("user_id", user.ID),
				slog.Any("error", incErr))
		}
		s.logger.Warn("login failed: invalid password",
			slog.Int64("user_id", user.ID),
			slog.String("username", in.Username),
			slog.String("ip", client.IPAddress))
		s.audit.Record(ctx, AuditEvent{
			UserID:     &user.ID,
			ActionType: models.AuditActionLogin,
			Status:     models.AuditStatusFailure,
			IPAddress:  client.IPAddress,
			UserAgent:  client.UserAgent,
			Details: models.AuditDetails{
				"reason":   models.AuditReasonInvalidPassword,
				"username": in.Username,
			},
		})
		return nil, models.ErrInvalidCredentials
	}

	if err := s.repo.RecordSuccessfulLogin(ctx, user.ID); err != nil {
		return nil, s.serverError(ctx, models.AuditActionLogin, client, models.AuditDetails{"username": in.Username}, err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, s.serverError(ctx, models.AuditActionLogin, client, models.AuditDetails{"username": in.Username}, err)
	}

	s.logger.Info("login successful",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
		slog.String("ip", client.IPAddress))
	s.audit.Record(ctx, AuditEvent{
		UserID:     &user.ID,
		ActionType: models.AuditActionLogin,
		Status:     models.AuditStatusSuccess,
		IPAddress:  client.IPAddress,
		UserAgent:  client.UserAgent,
		Details:    models.AuditDetails{"username": user.Username},
	})

	return &AuthResponse{
		Success: true,
		Token:   token,
		User:    userToPayload(user),
	}, nil
}

// Register creates a new credential record and issues a token.
// A username collision takes precedence over an email collision when both
// identity fields are taken.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, client ClientInfo) (*AuthResponse, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if err := validate.Struct(in); err != nil {
		s.logger.Warn("registration attempt with missing fields",
			slog.String("username", in.Username),
			slog.String("email", pkglogger.MaskEmail(in.Email)),
			slog.String("ip", client.IPAddress))
		s.audit.Record(ctx, AuditEvent{
			ActionType: models.AuditActionRegister,
			Status:     models.AuditStatusFailure,
			IPAddress:  client.IPAddress,
			UserAgent:  client.UserAgent,
			Details: models.AuditDetails{
				"reason":   models.AuditReasonMissingFields,
				"username": in.Username,
				"email":    in.Email,
			},
		})
		return nil, models.ErrMissingFields
	}

	// Application-level uniqueness check. The unique constraints remain the
	// authoritative guard against concurrent registrations.
	existing, err := s.repo.FindByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, s.serverError(ctx, models.AuditActionRegister, client,
			models.AuditDetails{"username": in.Username, "email": in.Email}, err)
	}
	if err == nil {
		if existing.Username == in.Username {
			return nil, s.registerConflict(ctx, client, models.AuditReasonUsernameExists,
				models.AuditDetails{"username": in.Username}, models.ErrUsernameExists)
		}
		return nil, s.registerConflict(ctx, client, models.AuditReasonEmailExists,
			models.AuditDetails{"email": in.Email}, models.ErrEmailExists)
	}

	passwordHash, err := pkgauth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, s.serverError(ctx, models.AuditActionRegister, client,
			models.AuditDetails{"username": in.Username, "email": in.Email}, err)
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: passwordHash,
		FullName:     optionalString(in.FullName),
		PhoneNumber:  optionalString(in.PhoneNumber),
		IsActive:     true,
		RoleID:       models.DefaultRoleID,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		// The constraint caught a registration that raced past the check
		switch {
		case errors.Is(err, models.ErrUsernameExists):
			return nil, s.registerConflict(ctx, client, models.AuditReasonUsernameExists,
				models.AuditDetails{"username": in.Username}, models.ErrUsernameExists)
		case errors.Is(err, models.ErrEmailExists):
			return nil, s.registerConflict(ctx, client, models.AuditReasonEmailExists,
				models.AuditDetails{"email": in.Email}, models.ErrEmailExists)
		}
		return nil, s.serverError(ctx, models.AuditActionRegister, client,
			models.AuditDetails{"username": in.Username, "email": in.Email}, err)
	}

	token, err := s.tokens.Issue(created)
	if err != nil {
		return nil, s.serverError(ctx, models.AuditActionRegister, client,
			models.AuditDetails{"username": in.Username, "email": in.Email}, err)
	}

	s.logger.Info("registration successful",
		slog.Int64("user_id", created.ID),
		slog.String("username", created.Username),
		slog.String("ip", client.IPAddress))
	s.audit.Record(ctx, AuditEvent{
		UserID:     &created.ID,
		ActionType: models.AuditActionRegister,
		Status:     models.AuditStatusSuccess,
		IPAddress:  client.IPAddress,
		UserAgent:  client.UserAgent,
		Details:    models.AuditDetails{"username": created.Username, "email": created.Email},
	})

	return &AuthResponse{
		Success: true,
		Token:   token,
		User:    userToPayload(created),
	}, nil
}

// registerConflict audits a uniqueness conflict and returns its sentinel
func (s *AuthService) registerConflict(ctx context.Context, client ClientInfo, reason string, details models.AuditDetails, sentinel error) error {
	attrs := []any{slog.String("ip", client.IPAddress)}
	if email, ok := details["email"].(string); ok {
		attrs = append(attrs, slog.String("email", pkglogger.MaskEmail(email)))
	}
	s.logger.Warn("registration failed: "+reason, attrs...)
	details["reason"] = reason
	s.audit.Record(ctx, AuditEvent{
		ActionType: models.AuditActionRegister,
		Status:     models.AuditStatusFailure,
		IPAddress:  client.IPAddress,
		UserAgent:  client.UserAgent,
		Details:    details,
	})
	return sentinel
}

// serverError logs an unexpected fault, audits it with reason server_error,
// and collapses it to the internal sentinel so nothing leaks to the client.
func (s *AuthService) serverError(ctx context.Context, action string, client ClientInfo, details models.AuditDetails, err error) error {
	s.logger.Error("internal error during "+strings.ToLower(action),
		slog.String("ip", client.IPAddress),
		slog.Any("error", err))
	details["reason"] = models.AuditReasonServerError
	details["error"] = err.Error()
	s.audit.Record(ctx, AuditEvent{
		ActionType: action,
		Status:     models.AuditStatusFailure,
		IPAddress:  client.IPAddress,
		UserAgent:  client.UserAgent,
		Details:    details,
	})
	return models.ErrInternalServer
}

// userToPayload strips secrets from a user record for the response
func userToPayload(user *models.User) *UserPayload {
	return &UserPayload{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		FullName:    user.FullName,
		PhoneNumber: user.PhoneNumber,
		RoleID:      user.RoleID,
		RoleName:    user.RoleName,
	}
}
