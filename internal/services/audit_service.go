package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nkuznetsov/vaultgate/internal/models"
	"github.com/nkuznetsov/vaultgate/internal/repositories"
)

// AuditRepository defines the audit trail data access interface
type AuditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, filter repositories.AuditLogFilter) ([]*models.AuditLog, error)
	GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*models.AuditLog, error)
	CountByUserID(ctx context.Context, userID int64) (int64, error)
}

// AuditEvent describes one security-relevant action terminal
type AuditEvent struct {
	UserID     *int64 // nil for pre-authentication failures
	ActionType string
	Status     string
	IPAddress  string
	UserAgent  string
	Details    models.AuditDetails
}

// AuditService records security events with a dual-write pattern: an
// immediate slog line plus a durable row written by a background worker.
// The durable write is best-effort — it must never fail, block, or delay
// the request it describes.
type AuditService struct {
	repo         AuditRepository
	logger       *slog.Logger
	queue        chan *models.AuditLog
	wg           sync.WaitGroup
	writeTimeout time.Duration
}

// NewAuditService creates an AuditService and starts its persistence worker
func NewAuditService(repo AuditRepository, logger *slog.Logger) *AuditService {
	s := &AuditService{
		repo:         repo,
		logger:       logger,
		queue:        make(chan *models.AuditLog, 256),
		writeTimeout: 5 * time.Second,
	}

	s.wg.Add(1)
	go s.worker()

	return s
}

// Record emits one audit record for a terminal state of the authentication
// state machine. It never blocks and never returns an error: a full queue
// or failed insert is reported on the observability channel and swallowed.
func (s *AuditService) Record(ctx context.Context, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("action_type", event.ActionType),
		slog.String("action_status", event.Status),
	}
	if event.UserID != nil {
		attrs = append(attrs, slog.Int64("user_id", *event.UserID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if reason, ok := event.Details["reason"]; ok {
		attrs = append(attrs, slog.Any("reason", reason))
	}

	level := slog.LevelInfo
	if event.Status == models.AuditStatusFailure {
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(ctx, level, "audit", attrs...)

	log := &models.AuditLog{
		ID:           uuid.New(),
		UserID:       event.UserID,
		ActionType:   event.ActionType,
		ActionStatus: event.Status,
		IPAddress:    optionalString(event.IPAddress),
		UserAgent:    optionalString(event.UserAgent),
		Details:      event.Details,
	}

	select {
	case s.queue <- log:
	default:
		s.logger.Error("audit queue full, dropping record",
			slog.String("action_type", event.ActionType),
			slog.String("action_status", event.Status),
		)
	}
}

// worker drains the queue into the durable store. Insert failures are
// logged and swallowed so the primary request path is never affected.
func (s *AuditService) worker() {
	defer s.wg.Done()

	for log := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		if err := s.repo.Create(ctx, log); err != nil {
			s.logger.Error("failed to persist audit log",
				slog.String("action_type", log.ActionType),
				slog.Any("error", err),
			)
		}
		cancel()
	}
}

// Stop drains pending records and stops the worker. Call only after the
// HTTP server has shut down; Record must not run concurrently with Stop.
func (s *AuditService) Stop() {
	close(s.queue)
	s.wg.Wait()
}

// ListLogs retrieves audit records matching the filter
func (s *AuditService) ListLogs(ctx context.Context, filter repositories.AuditLogFilter) ([]*models.AuditLog, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	logs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	return logs, nil
}

// GetUserTrail retrieves the audit trail for a specific user
func (s *AuditService) GetUserTrail(ctx context.Context, userID int64, limit, offset int) ([]*models.AuditLog, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	logs, err := s.repo.GetByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get user audit trail: %w", err)
	}

	count, err := s.repo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	return logs, count, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
