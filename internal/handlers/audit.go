package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/nkuznetsov/vaultgate/internal/models"
	"github.com/nkuznetsov/vaultgate/internal/repositories"
	pkghttp "github.com/nkuznetsov/vaultgate/pkg/http"
)

// AuditQueryService defines the read side of the audit trail
type AuditQueryService interface {
	ListLogs(ctx context.Context, filter repositories.AuditLogFilter) ([]*models.AuditLog, error)
	GetUserTrail(ctx context.Context, userID int64, limit, offset int) ([]*models.AuditLog, int64, error)
}

// AuditHandler serves the queryable audit trail (admin only, guarded by
// the auth middleware and role check at the router).
type AuditHandler struct {
	service AuditQueryService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service AuditQueryService) *AuditHandler {
	return &AuditHandler{service: service}
}

// AuditLogResponse represents an audit record in HTTP responses
type AuditLogResponse struct {
	ID           string              `json:"id"`
	UserID       *int64              `json:"userId,omitempty"`
	ActionType   string              `json:"actionType"`
	ActionStatus string              `json:"actionStatus"`
	IPAddress    *string             `json:"ipAddress,omitempty"`
	UserAgent    *string             `json:"userAgent,omitempty"`
	Details      models.AuditDetails `json:"details,omitempty"`
	CreatedAt    string              `json:"createdAt"`
}

// AuditListResponse wraps a page of audit records
type AuditListResponse struct {
	Success bool                `json:"success"`
	Logs    []*AuditLogResponse `json:"logs"`
	Total   *int64              `json:"total,omitempty"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
}

// ListLogs handles GET /audit/logs
func (h *AuditHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r)

	filter := repositories.AuditLogFilter{
		ActionType:   r.URL.Query().Get("action"),
		ActionStatus: r.URL.Query().Get("status"),
		Limit:        limit,
		Offset:       offset,
	}

	logs, err := h.service.ListLogs(r.Context(), filter)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to query audit logs")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, AuditListResponse{
		Success: true,
		Logs:    toAuditResponses(logs),
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}

// GetUserTrail handles GET /audit/users/{id}/logs
func (h *AuditHandler) GetUserTrail(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid user id")
		return
	}

	limit, offset := paginationParams(r)

	logs, total, err := h.service.GetUserTrail(r.Context(), userID, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to query audit logs")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, AuditListResponse{
		Success: true,
		Logs:    toAuditResponses(logs),
		Total:   &total,
		Limit:   limit,
		Offset:  offset,
	})
}

func paginationParams(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}

func toAuditResponses(logs []*models.AuditLog) []*AuditLogResponse {
	out := make([]*AuditLogResponse, 0, len(logs))
	for _, log := range logs {
		out = append(out, &AuditLogResponse{
			ID:           log.ID.String(),
			UserID:       log.UserID,
			ActionType:   log.ActionType,
			ActionStatus: log.ActionStatus,
			IPAddress:    log.IPAddress,
			UserAgent:    log.UserAgent,
			Details:      log.Details,
			CreatedAt:    log.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return out
}
