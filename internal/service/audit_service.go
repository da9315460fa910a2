package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/gradeflow-api/internal/models"
	appErrors "github.com/noah-isme/gradeflow-api/pkg/errors"
)

type auditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error)
}

type requestMetaKey struct{}

// RequestMeta carries client details attached to audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// WithRequestMeta stores client details on the context for later audit entries.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func requestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// AuditService records and lists audit trail entries.
type AuditService struct {
	repo   auditRepository
	logger *zap.Logger
}

// NewAuditService constructs an AuditService.
func NewAuditService(repo auditRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// Record writes an audit entry. Failures are logged and never surface to the caller.
func (s *AuditService) Record(ctx context.Context, actor models.ActorContext, action, resource, resourceID string, values interface{}) {
	if s == nil || s.repo == nil {
		return
	}
	meta := requestMetaFrom(ctx)
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if values != nil {
		payload, err := json.Marshal(values)
		if err != nil {
			s.logger.Warn("failed to encode audit values", zap.String("action", action), zap.Error(err))
		} else {
			entry.NewValues = payload
		}
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.String("resource_id", resourceID), zap.Error(err))
	}
}

// List returns audit entries for administrators.
func (s *AuditService) List(ctx context.Context, actor models.ActorContext, filter models.AuditLogFilter) ([]models.AuditLog, *models.Pagination, error) {
	if !actor.IsAdmin() {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can read audit logs")
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	return logs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}
