package store

import (
	"context"
	"database/sql"
	"errors"

	"bazap-service/internal/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// GetItemByID retrieves a catalog item by ID
func (s *Store) GetItemByID(ctx context.Context, id int64) (*models.Item, error) {
	var item models.Item
	err := s.db.GetContext(ctx, &item, "SELECT * FROM items WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetItemByCode retrieves a catalog item by its makat
func (s *Store) GetItemByCode(ctx context.Context, code string) (*models.Item, error) {
	var item models.Item
	err := s.db.GetContext(ctx, &item, "SELECT * FROM items WHERE code = $1", code)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetItems retrieves catalog items ordered by name
func (s *Store) GetItems(ctx context.Context, includeInactive bool) ([]models.Item, error) {
	query := "SELECT * FROM items ORDER BY name"
	if !includeInactive {
		query = "SELECT * FROM items WHERE is_active ORDER BY name"
	}
	items := []models.Item{}
	err := s.db.SelectContext(ctx, &items, query)
	return items, err
}

// CreateItem inserts a new catalog item
func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	query := `
		INSERT INTO items (name, code, description, quantity_in_stock, is_active, group_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, item, query,
		item.Name, item.Code, item.Description, item.QuantityInStock, item.IsActive, item.GroupID)
}

// UpdateItem persists item fields
func (s *Store) UpdateItem(ctx context.Context, item *models.Item) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE items
		SET name = $1, code = $2, description = $3, quantity_in_stock = $4,
		    is_active = $5, group_id = $6, updated_at = NOW()
		WHERE id = $7`,
		item.Name, item.Code, item.Description, item.QuantityInStock,
		item.IsActive, item.GroupID, item.ID)
	return err
}

// DeleteItem removes a catalog item
func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM items WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ItemNameExists checks name uniqueness, excluding one item
func (s *Store) ItemNameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM items WHERE name = $1 AND id <> $2)", name, excludeID)
	return exists, err
}

// ItemCodeExists checks makat uniqueness, excluding one item
func (s *Store) ItemCodeExists(ctx context.Context, code string, excludeID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM items WHERE code = $1 AND id <> $2)", code, excludeID)
	return exists, err
}

// ItemHasReceiptLines reports whether any receipt line references the item
func (s *Store) ItemHasReceiptLines(ctx context.Context, itemID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM receipt_items WHERE item_id = $1)", itemID)
	return exists, err
}

// SearchItems finds active items whose code or name contains the term
func (s *Store) SearchItems(ctx context.Context, term string, limit int) ([]models.Item, error) {
	items := []models.Item{}
	err := s.db.SelectContext(ctx, &items, `
		SELECT * FROM items
		WHERE is_active AND (code ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%')
		ORDER BY id
		LIMIT $2`, term, limit)
	return items, err
}

// GetRecentItems returns the most recently added active items
func (s *Store) GetRecentItems(ctx context.Context, limit int) ([]models.Item, error) {
	items := []models.Item{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM items WHERE is_active ORDER BY id DESC LIMIT $1", limit)
	return items, err
}

// GetFrequentItems returns active items ranked by how often they appear on receipts
func (s *Store) GetFrequentItems(ctx context.Context, limit int) ([]models.Item, error) {
	items := []models.Item{}
	err := s.db.SelectContext(ctx, &items, `
		SELECT i.* FROM items i
		LEFT JOIN receipt_items ri ON ri.item_id = i.id
		WHERE i.is_active
		GROUP BY i.id
		ORDER BY COUNT(ri.id) DESC, i.id
		LIMIT $1`, limit)
	return items, err
}
