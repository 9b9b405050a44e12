package service

import (
	"context"

	"bazap-service/internal/models"
)

// AuditStore is the persistence surface the audit trail needs
type AuditStore interface {
	ListAuditEntries(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

// AuditService serves the audit trail written by the audit worker
type AuditService struct {
	store AuditStore
}

// NewAuditService creates a new audit service
func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store}
}

// ListRecent returns the newest audit entries
func (s *AuditService) ListRecent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	entries, err := s.store.ListAuditEntries(ctx, clampLimit(limit))
	if err != nil {
		return nil, Internalf(err, "failed to list audit entries")
	}
	return entries, nil
}
