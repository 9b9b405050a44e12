package store

import (
	"context"
	"database/sql"

	"bazap-service/internal/models"
)

// CreateEvent inserts a new event in its initial status
func (s *Store) CreateEvent(ctx context.Context, evt *models.Event) error {
	query := `
		INSERT INTO events (number, type, source_unit, receiver, status, created_by_user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, evt, query,
		evt.Number, evt.Type, evt.SourceUnit, evt.Receiver, evt.Status, evt.CreatedByUserID)
}

// GetEventByID retrieves an event by ID
func (s *Store) GetEventByID(ctx context.Context, id int64) (*models.Event, error) {
	var evt models.Event
	err := s.db.GetContext(ctx, &evt, "SELECT * FROM events WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &evt, nil
}

// ListEvents retrieves events, optionally filtered by exact status
func (s *Store) ListEvents(ctx context.Context, status string) ([]models.Event, error) {
	events := []models.Event{}
	if status == "" {
		err := s.db.SelectContext(ctx, &events, "SELECT * FROM events ORDER BY created_at DESC")
		return events, err
	}
	err := s.db.SelectContext(ctx, &events,
		"SELECT * FROM events WHERE status = $1 ORDER BY created_at DESC", status)
	return events, err
}

// UpdateEventStatus updates an event's status
func (s *Store) UpdateEventStatus(ctx context.Context, eventID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE events SET status = $1 WHERE id = $2", status, eventID)
	return err
}

// CreateEventItem appends a new line to an event
func (s *Store) CreateEventItem(ctx context.Context, item *models.EventItem) error {
	query := `
		INSERT INTO event_items (event_id, item_id, item_makat, item_name, quantity, inspection_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, added_at`

	return s.db.GetContext(ctx, item, query,
		item.EventID, item.ItemID, item.ItemMakat, item.ItemName,
		item.Quantity, item.InspectionStatus)
}

// GetEventItemByID retrieves one event line by ID
func (s *Store) GetEventItemByID(ctx context.Context, id int64) (*models.EventItem, error) {
	var item models.EventItem
	err := s.db.GetContext(ctx, &item, "SELECT * FROM event_items WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetEventItems retrieves all lines for an event in add order
func (s *Store) GetEventItems(ctx context.Context, eventID int64) ([]models.EventItem, error) {
	items := []models.EventItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM event_items WHERE event_id = $1 ORDER BY added_at, id", eventID)
	return items, err
}

// FindEventItemMatch locates an existing line on the event matching the
// resolved makat or the supplied catalog item, for merge-by-identity adds.
func (s *Store) FindEventItemMatch(ctx context.Context, eventID int64, makat string, itemID sql.NullInt64) (*models.EventItem, error) {
	var item models.EventItem
	err := s.db.GetContext(ctx, &item, `
		SELECT * FROM event_items
		WHERE event_id = $1
		  AND (($2 <> '' AND item_makat = $2) OR ($3::bigint IS NOT NULL AND item_id = $3))
		ORDER BY id
		LIMIT 1`, eventID, makat, itemID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateEventItem refreshes a line's snapshot and quantity
func (s *Store) UpdateEventItem(ctx context.Context, item *models.EventItem) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE event_items
		SET item_id = $1, item_makat = $2, item_name = $3, quantity = $4, inspection_status = $5
		WHERE id = $6`,
		item.ItemID, item.ItemMakat, item.ItemName, item.Quantity,
		item.InspectionStatus, item.ID)
	return err
}

// DeleteEventItem removes one line; its inspection actions cascade
func (s *Store) DeleteEventItem(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM event_items WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateInspectionAction appends an inspection decision record
func (s *Store) CreateInspectionAction(ctx context.Context, action *models.InspectionAction) error {
	query := `
		INSERT INTO inspection_actions (event_item_id, decision, disable_reason, notes, inspected_by_user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, inspected_at`

	return s.db.GetContext(ctx, action, query,
		action.EventItemID, action.Decision, action.DisableReason,
		action.Notes, action.InspectedByUserID)
}

// GetLatestInspectionAction returns the most recent action for a line
func (s *Store) GetLatestInspectionAction(ctx context.Context, eventItemID int64) (*models.InspectionAction, error) {
	var action models.InspectionAction
	err := s.db.GetContext(ctx, &action, `
		SELECT * FROM inspection_actions
		WHERE event_item_id = $1
		ORDER BY inspected_at DESC, id DESC
		LIMIT 1`, eventItemID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &action, nil
}
