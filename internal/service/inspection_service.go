package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"bazap-service/internal/models"
	"bazap-service/internal/store"
	"bazap-service/internal/util"

	"go.uber.org/zap"
)

const (
	personalSuggestionLimit   = 3
	recentNotesLimit          = 5
	departmentSuggestionLimit = 3
	maxSuggestions            = 8
	recentNotesWindowDays     = 7
)

// InspectionStore is the persistence surface the inspection workflow needs
type InspectionStore interface {
	GetEventByID(ctx context.Context, id int64) (*models.Event, error)
	GetEventItemByID(ctx context.Context, id int64) (*models.EventItem, error)
	GetEventItems(ctx context.Context, eventID int64) ([]models.EventItem, error)
	UpdateEventItem(ctx context.Context, item *models.EventItem) error
	UpdateEventStatus(ctx context.Context, eventID int64, status string) error
	CreateInspectionAction(ctx context.Context, action *models.InspectionAction) error
	GetLatestInspectionAction(ctx context.Context, eventItemID int64) (*models.InspectionAction, error)
	UpsertReasonSuggestion(ctx context.Context, makat, reason string, userID int64) error
	GetPersonalSuggestions(ctx context.Context, makat string, userID int64, limit int) ([]string, error)
	GetRecentNotes(ctx context.Context, userID int64, days, limit int) ([]string, error)
	GetDepartmentSuggestions(ctx context.Context, makat string, excludeUserID int64, limit int) ([]string, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// InspectionPublisher publishes inspection domain events
type InspectionPublisher interface {
	PublishInspectionRecorded(ctx context.Context, event *models.InspectionRecordedEvent) error
	PublishEventCompleted(ctx context.Context, event *models.EventCompletedEvent) error
}

// SuggestionCache is an optional read-through cache for reason suggestions
type SuggestionCache interface {
	GetSuggestions(ctx context.Context, makat string, userID int64) ([]string, bool)
	SetSuggestions(ctx context.Context, makat string, userID int64, suggestions []string)
	InvalidateSuggestions(ctx context.Context, makat string)
}

// InspectionService records inspection decisions and serves label data
type InspectionService struct {
	store     InspectionStore
	locker    Locker
	publisher InspectionPublisher
	cache     SuggestionCache
	logger    *zap.Logger
}

// NewInspectionService creates a new inspection service
func NewInspectionService(store InspectionStore, locker Locker, publisher InspectionPublisher, cache SuggestionCache) *InspectionService {
	return &InspectionService{
		store:     store,
		locker:    locker,
		publisher: publisher,
		cache:     cache,
		logger:    util.GetLogger(),
	}
}

// DecisionRequest records one pass/disable decision on an event line
type DecisionRequest struct {
	EventItemID   int64  `json:"event_item_id" binding:"required"`
	Decision      string `json:"decision" binding:"required"`
	DisableReason string `json:"disable_reason,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// InspectionActionDTO is a recorded decision as served to clients
type InspectionActionDTO struct {
	ID              int64     `json:"id"`
	EventItemID     int64     `json:"event_item_id"`
	Decision        string    `json:"decision"`
	DisableReason   string    `json:"disable_reason,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	InspectedByUser string    `json:"inspected_by_user"`
	InspectedAt     time.Time `json:"inspected_at"`
}

// LabelData is the projection the print formatter renders
type LabelData struct {
	EventItemID   int64     `json:"event_item_id"`
	Makat         string    `json:"makat"`
	ItemName      string    `json:"item_name"`
	Decision      string    `json:"decision"`
	DisableReason string    `json:"disable_reason"`
	Notes         string    `json:"notes,omitempty"`
	ActionDate    time.Time `json:"action_date"`
	InspectorName string    `json:"inspector_name"`
	EventNumber   string    `json:"event_number"`
}

// RecordDecision appends an inspection action, updates the line status and
// derives the parent event's status: first decision moves a pending event to
// in-progress, and the event completes the moment no pending line remains.
func (s *InspectionService) RecordDecision(ctx context.Context, req *DecisionRequest, inspectorID int64) (*InspectionActionDTO, error) {
	ctx, span := util.StartSpan(ctx, "InspectionService.RecordDecision")
	defer span.End()

	if req.Decision != models.DecisionPass && req.Decision != models.DecisionDisabled {
		return nil, Invalidf("החלטה לא חוקית")
	}
	if req.Decision == models.DecisionDisabled {
		if req.DisableReason == "" {
			return nil, Invalidf("יש לבחור סיבת השבתה")
		}
		if !models.ValidDisableReason(req.DisableReason) {
			return nil, Invalidf("סיבת השבתה לא חוקית")
		}
	}

	line, err := s.store.GetEventItemByID(ctx, req.EventItemID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFoundf("פריט %d לא נמצא", req.EventItemID)
	}
	if err != nil {
		return nil, Internalf(err, "failed to load event item")
	}

	var action *models.InspectionAction
	err = s.locker.WithLock(ctx, eventLockKey(line.EventID), func(ctx context.Context) error {
		evt, err := s.store.GetEventByID(ctx, line.EventID)
		if errors.Is(err, store.ErrNotFound) {
			return Invalidf("אירוע לא קיים עבור הפריט")
		}
		if err != nil {
			return Internalf(err, "failed to load parent event")
		}

		action = &models.InspectionAction{
			EventItemID:       req.EventItemID,
			Decision:          req.Decision,
			InspectedByUserID: inspectorID,
		}
		if req.DisableReason != "" {
			action.DisableReason = sql.NullString{String: req.DisableReason, Valid: true}
		}
		if req.Notes != "" {
			action.Notes = sql.NullString{String: req.Notes, Valid: true}
		}
		if err := s.store.CreateInspectionAction(ctx, action); err != nil {
			return Internalf(err, "failed to record inspection action")
		}

		if req.Decision == models.DecisionPass {
			line.InspectionStatus = models.InspectionStatusPass
		} else {
			line.InspectionStatus = models.InspectionStatusFail
		}
		if err := s.store.UpdateEventItem(ctx, line); err != nil {
			return Internalf(err, "failed to update event item status")
		}

		if evt.Status == models.EventStatusPending {
			// First decision moves the event into inspection
			if err := s.store.UpdateEventStatus(ctx, evt.ID, models.EventStatusInProgress); err != nil {
				return Internalf(err, "failed to update event status")
			}
		}

		items, err := s.store.GetEventItems(ctx, evt.ID)
		if err != nil {
			return Internalf(err, "failed to reload event items")
		}
		pending, passed, failed := 0, 0, 0
		for _, item := range items {
			switch item.InspectionStatus {
			case models.InspectionStatusPending:
				pending++
			case models.InspectionStatusPass:
				passed++
			case models.InspectionStatusFail:
				failed++
			}
		}
		if pending == 0 {
			if err := s.store.UpdateEventStatus(ctx, evt.ID, models.EventStatusCompleted); err != nil {
				return Internalf(err, "failed to complete event")
			}
			util.EventsCompletedTotal.Inc()

			completed := &models.EventCompletedEvent{
				BaseEvent:    newBaseEvent(models.BrokerEventCompleted),
				BazapEventID: evt.ID,
				PassedItems:  passed,
				FailedItems:  failed,
			}
			if err := s.publisher.PublishEventCompleted(ctx, completed); err != nil {
				s.logger.Error("Failed to publish EventCompleted", zap.Error(err))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.InspectionDecisionsTotal.WithLabelValues(req.Decision).Inc()
	s.logger.Info("Inspection decision recorded",
		zap.Int64("event_item_id", req.EventItemID),
		zap.String("decision", req.Decision))

	if notes := strings.TrimSpace(req.Notes); notes != "" {
		s.learnReason(ctx, line.ItemMakat, notes, inspectorID)
	}

	recorded := &models.InspectionRecordedEvent{
		BaseEvent:     newBaseEvent(models.BrokerInspectionRecorded),
		EventItemID:   req.EventItemID,
		Decision:      req.Decision,
		DisableReason: req.DisableReason,
		InspectorID:   inspectorID,
	}
	if err := s.publisher.PublishInspectionRecorded(ctx, recorded); err != nil {
		s.logger.Error("Failed to publish InspectionRecorded", zap.Error(err))
	}

	dto := &InspectionActionDTO{
		ID:              action.ID,
		EventItemID:     action.EventItemID,
		Decision:        action.Decision,
		DisableReason:   action.DisableReason.String,
		Notes:           action.Notes.String,
		InspectedByUser: s.inspectorName(ctx, inspectorID),
		InspectedAt:     action.InspectedAt,
	}
	return dto, nil
}

// GetLabelData projects the latest inspection action of one line for printing
func (s *InspectionService) GetLabelData(ctx context.Context, eventItemID int64) (*LabelData, error) {
	ctx, span := util.StartSpan(ctx, "InspectionService.GetLabelData")
	defer span.End()

	line, err := s.store.GetEventItemByID(ctx, eventItemID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFoundf("פריט %d לא נמצא", eventItemID)
	}
	if err != nil {
		return nil, Internalf(err, "failed to load event item")
	}

	action, err := s.store.GetLatestInspectionAction(ctx, eventItemID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, Invalidf("לא נמצאה החלטת בחינה עבור הפריט")
	}
	if err != nil {
		return nil, Internalf(err, "failed to load inspection action")
	}

	eventNumber := "Unknown"
	if evt, err := s.store.GetEventByID(ctx, line.EventID); err == nil {
		eventNumber = evt.Number
	}

	reason := action.DisableReason.String
	if reason == "" {
		reason = models.DisableReasonOther
	}

	return &LabelData{
		EventItemID:   eventItemID,
		Makat:         line.ItemMakat,
		ItemName:      line.ItemName,
		Decision:      action.Decision,
		DisableReason: reason,
		Notes:         action.Notes.String,
		ActionDate:    action.InspectedAt,
		InspectorName: s.inspectorName(ctx, action.InspectedByUserID),
		EventNumber:   eventNumber,
	}, nil
}

// GetReasonSuggestions merges three ranked sources into at most eight
// distinct strings: the user's own reasons for this makat, the user's recent
// notes across all items, then department-wide reasons by usage.
func (s *InspectionService) GetReasonSuggestions(ctx context.Context, makat string, userID int64) ([]string, error) {
	ctx, span := util.StartSpan(ctx, "InspectionService.GetReasonSuggestions")
	defer span.End()

	if cached, ok := s.cache.GetSuggestions(ctx, makat, userID); ok {
		util.SuggestionsServedTotal.Inc()
		return cached, nil
	}

	personal, err := s.store.GetPersonalSuggestions(ctx, makat, userID, personalSuggestionLimit)
	if err != nil {
		return nil, Internalf(err, "failed to load personal suggestions")
	}

	recent, err := s.store.GetRecentNotes(ctx, userID, recentNotesWindowDays, recentNotesLimit)
	if err != nil {
		return nil, Internalf(err, "failed to load recent notes")
	}

	department, err := s.store.GetDepartmentSuggestions(ctx, makat, userID, departmentSuggestionLimit)
	if err != nil {
		return nil, Internalf(err, "failed to load department suggestions")
	}

	merged := make([]string, 0, maxSuggestions)
	seen := make(map[string]bool)
	for _, group := range [][]string{personal, recent, department} {
		for _, reason := range group {
			if len(merged) == maxSuggestions {
				break
			}
			if !seen[reason] {
				seen[reason] = true
				merged = append(merged, reason)
			}
		}
	}

	s.cache.SetSuggestions(ctx, makat, userID, merged)
	util.SuggestionsServedTotal.Inc()
	return merged, nil
}

// learnReason upserts a suggestion row. Advisory only: failures are logged,
// never surfaced.
func (s *InspectionService) learnReason(ctx context.Context, makat, reason string, userID int64) {
	if err := s.store.UpsertReasonSuggestion(ctx, makat, reason, userID); err != nil {
		s.logger.Error("Failed to learn disable reason",
			zap.String("makat", makat),
			zap.Error(err))
		return
	}
	s.cache.InvalidateSuggestions(ctx, makat)
}

func (s *InspectionService) inspectorName(ctx context.Context, userID int64) string {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return "Unknown"
	}
	return user.Username
}
