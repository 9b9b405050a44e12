package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bazap-service/internal/models"
	"bazap-service/internal/store"
	"bazap-service/internal/util"

	"go.uber.org/zap"
)

// ItemStore is the persistence surface the catalog needs
type ItemStore interface {
	GetItemByID(ctx context.Context, id int64) (*models.Item, error)
	GetItems(ctx context.Context, includeInactive bool) ([]models.Item, error)
	CreateItem(ctx context.Context, item *models.Item) error
	UpdateItem(ctx context.Context, item *models.Item) error
	DeleteItem(ctx context.Context, id int64) error
	ItemNameExists(ctx context.Context, name string, excludeID int64) (bool, error)
	ItemCodeExists(ctx context.Context, code string, excludeID int64) (bool, error)
	ItemHasReceiptLines(ctx context.Context, itemID int64) (bool, error)
	SearchItems(ctx context.Context, term string, limit int) ([]models.Item, error)
	GetRecentItems(ctx context.Context, limit int) ([]models.Item, error)
	GetFrequentItems(ctx context.Context, limit int) ([]models.Item, error)
}

// ItemService handles catalog CRUD and search
type ItemService struct {
	store  ItemStore
	logger *zap.Logger
}

// NewItemService creates a new item service
func NewItemService(store ItemStore) *ItemService {
	return &ItemService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// CreateItemRequest adds a catalog item
type CreateItemRequest struct {
	Name            string `json:"name" binding:"required"`
	Code            string `json:"code,omitempty"`
	Description     string `json:"description,omitempty"`
	QuantityInStock int    `json:"quantity_in_stock"`
}

// UpdateItemRequest edits a catalog item. Name is always reapplied;
// omitted optional fields leave existing values unchanged.
type UpdateItemRequest struct {
	Name            string  `json:"name" binding:"required"`
	Code            *string `json:"code,omitempty"`
	Description     *string `json:"description,omitempty"`
	QuantityInStock *int    `json:"quantity_in_stock,omitempty"`
	IsActive        *bool   `json:"is_active,omitempty"`
}

// ItemDTO is a catalog item as served to clients
type ItemDTO struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Code            string    `json:"code,omitempty"`
	Description     string    `json:"description,omitempty"`
	QuantityInStock int       `json:"quantity_in_stock"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 200
)

// ListItems returns catalog items, active only unless asked otherwise
func (s *ItemService) ListItems(ctx context.Context, includeInactive bool) ([]ItemDTO, error) {
	items, err := s.store.GetItems(ctx, includeInactive)
	if err != nil {
		return nil, Internalf(err, "failed to list items")
	}
	return itemDTOs(items), nil
}

// GetItem returns one catalog item
func (s *ItemService) GetItem(ctx context.Context, id int64) (*ItemDTO, error) {
	item, err := s.store.GetItemByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFoundf("פריט %d לא נמצא", id)
	}
	if err != nil {
		return nil, Internalf(err, "failed to load item")
	}
	dto := itemDTO(item)
	return &dto, nil
}

// CreateItem adds a catalog item, enforcing name and code uniqueness
func (s *ItemService) CreateItem(ctx context.Context, req *CreateItemRequest) (*ItemDTO, error) {
	ctx, span := util.StartSpan(ctx, "ItemService.CreateItem")
	defer span.End()

	if taken, err := s.store.ItemNameExists(ctx, req.Name, 0); err != nil {
		return nil, Internalf(err, "failed to check item name")
	} else if taken {
		return nil, Invalidf("פריט בשם זה כבר קיים")
	}

	if req.Code != "" {
		if taken, err := s.store.ItemCodeExists(ctx, req.Code, 0); err != nil {
			return nil, Internalf(err, "failed to check item code")
		} else if taken {
			return nil, Invalidf("פריט עם קוד זה כבר קיים")
		}
	}

	if req.QuantityInStock < 0 {
		return nil, Invalidf("כמות במלאי לא יכולה להיות שלילית")
	}

	item := &models.Item{
		Name:            req.Name,
		QuantityInStock: req.QuantityInStock,
		IsActive:        true,
	}
	if req.Code != "" {
		item.Code = sql.NullString{String: req.Code, Valid: true}
	}
	if req.Description != "" {
		item.Description = sql.NullString{String: req.Description, Valid: true}
	}

	if err := s.store.CreateItem(ctx, item); err != nil {
		return nil, Internalf(err, "failed to create item")
	}

	s.logger.Info("Item created",
		zap.Int64("item_id", item.ID),
		zap.String("name", item.Name))

	dto := itemDTO(item)
	return &dto, nil
}

// UpdateItem applies a partial edit to a catalog item
func (s *ItemService) UpdateItem(ctx context.Context, id int64, req *UpdateItemRequest) (*ItemDTO, error) {
	ctx, span := util.StartSpan(ctx, "ItemService.UpdateItem")
	defer span.End()

	item, err := s.store.GetItemByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFoundf("פריט %d לא נמצא", id)
	}
	if err != nil {
		return nil, Internalf(err, "failed to load item")
	}

	if req.Name != item.Name {
		if taken, err := s.store.ItemNameExists(ctx, req.Name, id); err != nil {
			return nil, Internalf(err, "failed to check item name")
		} else if taken {
			return nil, Invalidf("פריט בשם זה כבר קיים")
		}
	}
	item.Name = req.Name

	if req.Code != nil && *req.Code != "" && *req.Code != item.Code.String {
		if taken, err := s.store.ItemCodeExists(ctx, *req.Code, id); err != nil {
			return nil, Internalf(err, "failed to check item code")
		} else if taken {
			return nil, Invalidf("פריט עם קוד זה כבר קיים")
		}
		item.Code = sql.NullString{String: *req.Code, Valid: true}
	}
	if req.Description != nil {
		item.Description = sql.NullString{String: *req.Description, Valid: *req.Description != ""}
	}
	if req.QuantityInStock != nil {
		if *req.QuantityInStock < 0 {
			return nil, Invalidf("כמות במלאי לא יכולה להיות שלילית")
		}
		item.QuantityInStock = *req.QuantityInStock
	}
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}

	if err := s.store.UpdateItem(ctx, item); err != nil {
		return nil, Internalf(err, "failed to update item")
	}

	updated, err := s.store.GetItemByID(ctx, id)
	if err != nil {
		return nil, Internalf(err, "failed to reload item")
	}
	dto := itemDTO(updated)
	return &dto, nil
}

// DeleteItem removes a catalog item unless a receipt line references it
func (s *ItemService) DeleteItem(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "ItemService.DeleteItem")
	defer span.End()

	if _, err := s.store.GetItemByID(ctx, id); errors.Is(err, store.ErrNotFound) {
		return NotFoundf("פריט %d לא נמצא", id)
	} else if err != nil {
		return Internalf(err, "failed to load item")
	}

	referenced, err := s.store.ItemHasReceiptLines(ctx, id)
	if err != nil {
		return Internalf(err, "failed to check item references")
	}
	if referenced {
		return Invalidf("לא ניתן למחוק פריט שכבר חולק")
	}

	if err := s.store.DeleteItem(ctx, id); err != nil {
		return Internalf(err, "failed to delete item")
	}

	s.logger.Info("Item deleted", zap.Int64("item_id", id))
	return nil
}

// SearchItems finds active items by code or name substring
func (s *ItemService) SearchItems(ctx context.Context, term string, limit int) ([]ItemDTO, error) {
	items, err := s.store.SearchItems(ctx, term, clampLimit(limit))
	if err != nil {
		return nil, Internalf(err, "failed to search items")
	}
	return itemDTOs(items), nil
}

// RecentItems returns the newest active items
func (s *ItemService) RecentItems(ctx context.Context, limit int) ([]ItemDTO, error) {
	items, err := s.store.GetRecentItems(ctx, clampLimit(limit))
	if err != nil {
		return nil, Internalf(err, "failed to load recent items")
	}
	return itemDTOs(items), nil
}

// FrequentItems returns active items ranked by receipt usage
func (s *ItemService) FrequentItems(ctx context.Context, limit int) ([]ItemDTO, error) {
	items, err := s.store.GetFrequentItems(ctx, clampLimit(limit))
	if err != nil {
		return nil, Internalf(err, "failed to load frequent items")
	}
	return itemDTOs(items), nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultSearchLimit
	}
	if limit > maxSearchLimit {
		return maxSearchLimit
	}
	return limit
}

func itemDTO(item *models.Item) ItemDTO {
	return ItemDTO{
		ID:              item.ID,
		Name:            item.Name,
		Code:            item.Code.String,
		Description:     item.Description.String,
		QuantityInStock: item.QuantityInStock,
		IsActive:        item.IsActive,
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       item.UpdatedAt,
	}
}

func itemDTOs(items []models.Item) []ItemDTO {
	dtos := make([]ItemDTO, 0, len(items))
	for i := range items {
		dtos = append(dtos, itemDTO(&items[i]))
	}
	return dtos
}
