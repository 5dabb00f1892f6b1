package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/finplay/settlement/internal/models"
	"github.com/finplay/settlement/internal/repositories"
	"github.com/finplay/settlement/pkg/logger"
)

// writeAudit appends an audit row inside the caller's transaction so the
// record commits or rolls back together with the action it describes.
func writeAudit(ctx context.Context, tx repositories.Store, actorID, actorName, action, resourceType, resourceID string, details models.JSONMap) error {
	return tx.Audit().Append(ctx, &models.AuditLog{
		ID:           uuid.NewString(),
		ActorID:      actorID,
		ActorName:    actorName,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
	})
}

// AuditService exposes read access to the audit trail.
type AuditService struct {
	store repositories.Store
}

func NewAuditService(store repositories.Store) *AuditService {
	return &AuditService{store: store}
}

func (s *AuditService) List(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	logs, err := s.store.Audit().List(ctx, limit)
	if err != nil {
		logger.Error("failed to list audit logs", "error", err)
		return nil, err
	}
	return logs, nil
}

func (s *AuditService) ListByResource(ctx context.Context, resourceType, resourceID string) ([]models.AuditLog, error) {
	return s.store.Audit().ListByResource(ctx, resourceType, resourceID)
}
