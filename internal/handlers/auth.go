package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nkuznetsov/vaultgate/internal/models"
	"github.com/nkuznetsov/vaultgate/internal/services"
	pkghttp "github.com/nkuznetsov/vaultgate/pkg/http"
)

// User-facing messages. Unknown-user and wrong-password share one constant
// so the responses stay byte-identical and account existence is not leaked.
const (
	msgInvalidCredentials   = "Invalid username or password"
	msgMissingCredentials   = "Username and password are required"
	msgMissingRegisterField = "Username, email and password are required"
	msgUsernameTaken        = "This username is already taken"
	msgEmailTaken           = "This email is already registered"
	msgLoginServerError     = "Server error during login"
	msgRegisterServerError  = "Server error during registration"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, in services.LoginInput, client services.ClientInfo) (*services.AuthResponse, error)
	Register(ctx context.Context, in services.RegisterInput, client services.ClientInfo) (*services.AuthResponse, error)
}

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

func (h *AuthHandler) clientInfo(r *http.Request) services.ClientInfo {
	return services.ClientInfo{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in services.LoginInput

	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	resp, err := h.service.Login(r.Context(), in, h.clientInfo(r))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrMissingFields):
			pkghttp.WriteBadRequest(w, msgMissingCredentials)
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, msgInvalidCredentials)
		default:
			pkghttp.WriteInternalError(w, msgLoginServerError)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterInput

	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	resp, err := h.service.Register(r.Context(), in, h.clientInfo(r))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrMissingFields):
			pkghttp.WriteBadRequest(w, msgMissingRegisterField)
		case errors.Is(err, models.ErrUsernameExists):
			pkghttp.WriteBadRequest(w, msgUsernameTaken)
		case errors.Is(err, models.ErrEmailExists):
			pkghttp.WriteBadRequest(w, msgEmailTaken)
		default:
			pkghttp.WriteInternalError(w, msgRegisterServerError)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, resp)
}
