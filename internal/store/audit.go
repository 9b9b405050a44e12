package store

import (
	"context"

	"bazap-service/internal/models"
)

// IsEventProcessed checks if a broker event has already been consumed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks a broker event as consumed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}

// CreateAuditEntry appends one row to the audit log
func (s *Store) CreateAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_id, event_type, entity_kind, entity_id, actor_id, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.EventID, entry.EventType, entry.EntityKind, entry.EntityID,
		entry.ActorID, entry.Detail, entry.OccurredAt)
	return err
}

// ListAuditEntries returns the newest audit rows
func (s *Store) ListAuditEntries(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	entries := []models.AuditEntry{}
	err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM audit_log ORDER BY occurred_at DESC, id DESC LIMIT $1", limit)
	return entries, err
}
