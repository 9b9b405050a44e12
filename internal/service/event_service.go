package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bazap-service/internal/models"
	"bazap-service/internal/store"
	"bazap-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventStore is the persistence surface the event workflow needs
type EventStore interface {
	CreateEvent(ctx context.Context, evt *models.Event) error
	GetEventByID(ctx context.Context, id int64) (*models.Event, error)
	ListEvents(ctx context.Context, status string) ([]models.Event, error)
	UpdateEventStatus(ctx context.Context, eventID int64, status string) error
	CreateEventItem(ctx context.Context, item *models.EventItem) error
	GetEventItemByID(ctx context.Context, id int64) (*models.EventItem, error)
	GetEventItems(ctx context.Context, eventID int64) ([]models.EventItem, error)
	FindEventItemMatch(ctx context.Context, eventID int64, makat string, itemID sql.NullInt64) (*models.EventItem, error)
	UpdateEventItem(ctx context.Context, item *models.EventItem) error
	DeleteEventItem(ctx context.Context, id int64) error
	GetItemByCode(ctx context.Context, code string) (*models.Item, error)
	GetUsersByIDs(ctx context.Context, ids []int64) ([]models.User, error)
}

// Locker serializes multi-step sequences against one aggregate
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// EventPublisher publishes event-workflow domain events
type EventPublisher interface {
	PublishEventCreated(ctx context.Context, event *models.EventCreatedEvent) error
	PublishEventSubmitted(ctx context.Context, event *models.EventSubmittedEvent) error
	PublishEventCompleted(ctx context.Context, event *models.EventCompletedEvent) error
}

// EventService handles the event lifecycle
type EventService struct {
	store     EventStore
	locker    Locker
	publisher EventPublisher
	logger    *zap.Logger
}

// NewEventService creates a new event service
func NewEventService(store EventStore, locker Locker, publisher EventPublisher) *EventService {
	return &EventService{
		store:     store,
		locker:    locker,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// CreateEventRequest opens a new event batch
type CreateEventRequest struct {
	SourceUnit string `json:"source_unit" binding:"required"`
	Receiver   string `json:"receiver" binding:"required"`
	Type       string `json:"type"`
}

// AddItemRequest adds or merges one line on an event
type AddItemRequest struct {
	ItemID    *int64 `json:"item_id,omitempty"`
	ItemMakat string `json:"item_makat,omitempty"`
	ItemName  string `json:"item_name,omitempty"`
	Quantity  int    `json:"quantity"`
}

// EventItemDTO is one event line as served to clients
type EventItemDTO struct {
	ID               int64     `json:"id"`
	ItemID           *int64    `json:"item_id,omitempty"`
	ItemMakat        string    `json:"item_makat"`
	ItemName         string    `json:"item_name"`
	Quantity         int       `json:"quantity"`
	InspectionStatus string    `json:"inspection_status"`
	AddedAt          time.Time `json:"added_at"`
}

// EventDTO is a full event with derived inspection progress
type EventDTO struct {
	ID             int64          `json:"id"`
	Number         string         `json:"number"`
	Type           string         `json:"type"`
	SourceUnit     string         `json:"source_unit"`
	Receiver       string         `json:"receiver"`
	Status         string         `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	CreatedByUser  string         `json:"created_by_user"`
	Items          []EventItemDTO `json:"items"`
	PendingItems   int            `json:"pending_items"`
	CompletedItems int            `json:"completed_items"`
	PassedItems    int            `json:"passed_items"`
	FailedItems    int            `json:"failed_items"`
}

// CreateEvent opens a new event in draft status with zero items
func (s *EventService) CreateEvent(ctx context.Context, req *CreateEventRequest, userID int64) (*EventDTO, error) {
	ctx, span := util.StartSpan(ctx, "EventService.CreateEvent")
	defer span.End()

	eventType := req.Type
	if eventType == "" {
		eventType = models.EventTypeReceiving
	}
	if !models.ValidEventType(eventType) {
		return nil, Invalidf("סוג אירוע לא חוקי")
	}

	evt := &models.Event{
		Number:          generateEventNumber(),
		Type:            eventType,
		SourceUnit:      req.SourceUnit,
		Receiver:        req.Receiver,
		Status:          models.EventStatusDraft,
		CreatedByUserID: userID,
	}

	if err := s.store.CreateEvent(ctx, evt); err != nil {
		return nil, Internalf(err, "failed to create event")
	}

	util.EventsCreatedTotal.Inc()
	s.logger.Info("Event created",
		zap.Int64("event_id", evt.ID),
		zap.String("number", evt.Number))

	created := &models.EventCreatedEvent{
		BaseEvent:    newBaseEvent(models.BrokerEventCreated),
		BazapEventID: evt.ID,
		Number:       evt.Number,
		SourceUnit:   evt.SourceUnit,
		CreatedBy:    userID,
	}
	if err := s.publisher.PublishEventCreated(ctx, created); err != nil {
		s.logger.Error("Failed to publish EventCreated", zap.Error(err))
	}

	return s.GetEvent(ctx, evt.ID)
}

// GetEvent returns the full event with its items and derived counts
func (s *EventService) GetEvent(ctx context.Context, eventID int64) (*EventDTO, error) {
	evt, err := s.store.GetEventByID(ctx, eventID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFoundf("אירוע %d לא נמצא", eventID)
	}
	if err != nil {
		return nil, Internalf(err, "failed to load event")
	}

	items, err := s.store.GetEventItems(ctx, eventID)
	if err != nil {
		return nil, Internalf(err, "failed to load event items")
	}

	usernames, err := s.resolveUsernames(ctx, []int64{evt.CreatedByUserID})
	if err != nil {
		return nil, Internalf(err, "failed to resolve usernames")
	}

	dto := buildEventDTO(evt, items, usernames)
	return &dto, nil
}

// AddItem resolves the canonical code/name and merges or appends one line.
// An existing line matching the resolved makat or the supplied item id has
// its quantity replaced, not summed.
func (s *EventService) AddItem(ctx context.Context, eventID int64, req *AddItemRequest) (*EventDTO, error) {
	ctx, span := util.StartSpan(ctx, "EventService.AddItem")
	defer span.End()

	err := s.locker.WithLock(ctx, eventLockKey(eventID), func(ctx context.Context) error {
		evt, err := s.store.GetEventByID(ctx, eventID)
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundf("אירוע %d לא נמצא", eventID)
		}
		if err != nil {
			return Internalf(err, "failed to load event")
		}
		if evt.Status != models.EventStatusDraft {
			return Invalidf("ניתן להוסיף פריטים רק לאירוע בטיוטה")
		}

		makat := req.ItemMakat
		name := req.ItemName

		if makat != "" {
			item, err := s.store.GetItemByCode(ctx, makat)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return Internalf(err, "failed to resolve item by makat")
			}
			if err == nil {
				// Catalog values win over caller-supplied ones
				makat = item.Code.String
				name = item.Name
			}
		}
		if name == "" {
			name = makat
		}

		quantity := req.Quantity
		if quantity < 0 {
			quantity = 0
		}

		itemID := sql.NullInt64{}
		if req.ItemID != nil {
			itemID = sql.NullInt64{Int64: *req.ItemID, Valid: true}
		}

		existing, err := s.store.FindEventItemMatch(ctx, eventID, makat, itemID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return Internalf(err, "failed to look up existing line")
		}
		if err == nil {
			existing.Quantity = quantity
			existing.ItemMakat = makat
			existing.ItemName = name
			if itemID.Valid {
				existing.ItemID = itemID
			}
			if err := s.store.UpdateEventItem(ctx, existing); err != nil {
				return Internalf(err, "failed to merge event item")
			}
			return nil
		}

		line := &models.EventItem{
			EventID:          eventID,
			ItemID:           itemID,
			ItemMakat:        makat,
			ItemName:         name,
			Quantity:         quantity,
			InspectionStatus: models.InspectionStatusPending,
		}
		if err := s.store.CreateEventItem(ctx, line); err != nil {
			return Internalf(err, "failed to append event item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetEvent(ctx, eventID)
}

// RemoveItem deletes one line; its inspection actions go with it
func (s *EventService) RemoveItem(ctx context.Context, eventID, eventItemID int64) error {
	ctx, span := util.StartSpan(ctx, "EventService.RemoveItem")
	defer span.End()

	return s.locker.WithLock(ctx, eventLockKey(eventID), func(ctx context.Context) error {
		evt, err := s.store.GetEventByID(ctx, eventID)
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundf("אירוע %d לא נמצא", eventID)
		}
		if err != nil {
			return Internalf(err, "failed to load event")
		}
		if evt.Status != models.EventStatusDraft {
			return Invalidf("ניתן להסיר פריטים רק מאירוע בטיוטה")
		}

		line, err := s.store.GetEventItemByID(ctx, eventItemID)
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundf("פריט %d לא נמצא", eventItemID)
		}
		if err != nil {
			return Internalf(err, "failed to load event item")
		}
		if line.EventID != eventID {
			return Invalidf("הפריט אינו שייך לאירוע זה")
		}

		if err := s.store.DeleteEventItem(ctx, eventItemID); err != nil {
			return Internalf(err, "failed to delete event item")
		}
		return nil
	})
}

// SubmitForInspection moves a draft event with at least one line to pending
func (s *EventService) SubmitForInspection(ctx context.Context, eventID int64) error {
	ctx, span := util.StartSpan(ctx, "EventService.SubmitForInspection")
	defer span.End()

	var itemCount int
	err := s.locker.WithLock(ctx, eventLockKey(eventID), func(ctx context.Context) error {
		evt, err := s.store.GetEventByID(ctx, eventID)
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundf("אירוע %d לא נמצא", eventID)
		}
		if err != nil {
			return Internalf(err, "failed to load event")
		}
		if evt.Status != models.EventStatusDraft {
			return Invalidf("רק אירוע בטיוטה ניתן להגשה לבחינה")
		}

		items, err := s.store.GetEventItems(ctx, eventID)
		if err != nil {
			return Internalf(err, "failed to load event items")
		}
		if len(items) == 0 {
			return Invalidf("לא ניתן להגיש אירוע ללא פריטים")
		}
		itemCount = len(items)

		if err := s.store.UpdateEventStatus(ctx, eventID, models.EventStatusPending); err != nil {
			return Internalf(err, "failed to update event status")
		}
		return nil
	})
	if err != nil {
		return err
	}

	util.EventsSubmittedTotal.Inc()
	s.logger.Info("Event submitted for inspection", zap.Int64("event_id", eventID))

	submitted := &models.EventSubmittedEvent{
		BaseEvent:    newBaseEvent(models.BrokerEventSubmitted),
		BazapEventID: eventID,
		ItemCount:    itemCount,
	}
	if err := s.publisher.PublishEventSubmitted(ctx, submitted); err != nil {
		s.logger.Error("Failed to publish EventSubmitted", zap.Error(err))
	}
	return nil
}

// Complete is the operator override forcing an event to completed
func (s *EventService) Complete(ctx context.Context, eventID int64) error {
	ctx, span := util.StartSpan(ctx, "EventService.Complete")
	defer span.End()

	return s.locker.WithLock(ctx, eventLockKey(eventID), func(ctx context.Context) error {
		evt, err := s.store.GetEventByID(ctx, eventID)
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundf("אירוע %d לא נמצא", eventID)
		}
		if err != nil {
			return Internalf(err, "failed to load event")
		}
		if evt.Status == models.EventStatusCompleted {
			return nil
		}

		if err := s.store.UpdateEventStatus(ctx, eventID, models.EventStatusCompleted); err != nil {
			return Internalf(err, "failed to update event status")
		}

		util.EventsCompletedTotal.Inc()
		s.logger.Info("Event force-completed", zap.Int64("event_id", eventID))
		return nil
	})
}

// ListEvents returns all events, optionally filtered by exact status,
// each with derived inspection counts and its creator's username.
func (s *EventService) ListEvents(ctx context.Context, statusFilter string) ([]EventDTO, error) {
	ctx, span := util.StartSpan(ctx, "EventService.ListEvents")
	defer span.End()

	events, err := s.store.ListEvents(ctx, statusFilter)
	if err != nil {
		return nil, Internalf(err, "failed to list events")
	}

	creatorIDs := make([]int64, 0, len(events))
	seen := make(map[int64]bool)
	for _, evt := range events {
		if !seen[evt.CreatedByUserID] {
			seen[evt.CreatedByUserID] = true
			creatorIDs = append(creatorIDs, evt.CreatedByUserID)
		}
	}

	usernames, err := s.resolveUsernames(ctx, creatorIDs)
	if err != nil {
		return nil, Internalf(err, "failed to resolve usernames")
	}

	dtos := make([]EventDTO, 0, len(events))
	for i := range events {
		items, err := s.store.GetEventItems(ctx, events[i].ID)
		if err != nil {
			return nil, Internalf(err, "failed to load event items")
		}
		dtos = append(dtos, buildEventDTO(&events[i], items, usernames))
	}
	return dtos, nil
}

func (s *EventService) resolveUsernames(ctx context.Context, ids []int64) (map[int64]string, error) {
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names, nil
}

func buildEventDTO(evt *models.Event, items []models.EventItem, usernames map[int64]string) EventDTO {
	dto := EventDTO{
		ID:         evt.ID,
		Number:     evt.Number,
		Type:       evt.Type,
		SourceUnit: evt.SourceUnit,
		Receiver:   evt.Receiver,
		Status:     evt.Status,
		CreatedAt:  evt.CreatedAt,
		Items:      make([]EventItemDTO, 0, len(items)),
	}

	dto.CreatedByUser = usernames[evt.CreatedByUserID]
	if dto.CreatedByUser == "" {
		dto.CreatedByUser = "Unknown"
	}

	for _, item := range items {
		line := EventItemDTO{
			ID:               item.ID,
			ItemMakat:        item.ItemMakat,
			ItemName:         item.ItemName,
			Quantity:         item.Quantity,
			InspectionStatus: item.InspectionStatus,
			AddedAt:          item.AddedAt,
		}
		if item.ItemID.Valid {
			id := item.ItemID.Int64
			line.ItemID = &id
		}
		dto.Items = append(dto.Items, line)

		switch item.InspectionStatus {
		case models.InspectionStatusPending:
			dto.PendingItems++
		case models.InspectionStatusPass:
			dto.PassedItems++
			dto.CompletedItems++
		case models.InspectionStatusFail:
			dto.FailedItems++
			dto.CompletedItems++
		}
	}
	return dto
}

// generateEventNumber builds a human-readable number. No collision check is
// performed; the random suffix makes clashes improbable, not impossible.
func generateEventNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("EVT-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func eventLockKey(eventID int64) string {
	return fmt.Sprintf("event:%d", eventID)
}
