package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nkuznetsov/vaultgate/internal/models"
	"github.com/nkuznetsov/vaultgate/internal/repositories"
	"github.com/nkuznetsov/vaultgate/internal/services"
	"github.com/stretchr/testify/require"
)

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc    func(ctx context.Context, in services.LoginInput, client services.ClientInfo) (*services.AuthResponse, error)
	RegisterFunc func(ctx context.Context, in services.RegisterInput, client services.ClientInfo) (*services.AuthResponse, error)
}

func (m *MockAuthService) Login(ctx context.Context, in services.LoginInput, client services.ClientInfo) (*services.AuthResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, in, client)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) Register(ctx context.Context, in services.RegisterInput, client services.ClientInfo) (*services.AuthResponse, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, in, client)
	}
	return nil, models.ErrInternalServer
}

// MockAuditQueryService implements AuditQueryService for testing
type MockAuditQueryService struct {
	ListLogsFunc     func(ctx context.Context, filter repositories.AuditLogFilter) ([]*models.AuditLog, error)
	GetUserTrailFunc func(ctx context.Context, userID int64, limit, offset int) ([]*models.AuditLog, int64, error)
}

func (m *MockAuditQueryService) ListLogs(ctx context.Context, filter repositories.AuditLogFilter) ([]*models.AuditLog, error) {
	if m.ListLogsFunc != nil {
		return m.ListLogsFunc(ctx, filter)
	}
	return []*models.AuditLog{}, nil
}

func (m *MockAuditQueryService) GetUserTrail(ctx context.Context, userID int64, limit, offset int) ([]*models.AuditLog, int64, error) {
	if m.GetUserTrailFunc != nil {
		return m.GetUserTrailFunc(ctx, userID, limit, offset)
	}
	return []*models.AuditLog{}, 0, nil
}

// newJSONRequest builds a request with a JSON body and test client headers
func newJSONRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	req.RemoteAddr = "203.0.113.7:51234"
	return req
}

// decodeJSONResponse decodes a recorded response body into out
func decodeJSONResponse(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}
