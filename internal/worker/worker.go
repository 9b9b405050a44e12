package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"bazap-service/internal/broker"
	"bazap-service/internal/models"
	"bazap-service/internal/store"
	"bazap-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// AuditWorker consumes domain events and materializes the audit log
type AuditWorker struct {
	consumer *broker.Consumer
	store    *store.Store
	logger   *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer, st *store.Store) *AuditWorker {
	return &AuditWorker{
		consumer: consumer,
		store:    st,
		logger:   util.GetLogger(),
	}
}

// Start starts the worker
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting audit worker")
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	w.logger.Info("Stopping audit worker")
	return w.consumer.Close()
}

func (w *AuditWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	base, err := broker.DecodeBase(msg)
	if err != nil {
		w.logger.Error("Skipping undecodable message",
			zap.String("key", string(msg.Key)),
			zap.Error(err))
		return nil
	}

	processed, err := w.store.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return fmt.Errorf("failed to check processed events: %w", err)
	}
	if processed {
		w.logger.Debug("Event already processed",
			zap.String("event_id", base.EventID))
		return nil
	}

	entry, err := w.buildEntry(base, msg.Value)
	if err != nil {
		w.logger.Error("Skipping unrecognized event",
			zap.String("event_type", base.EventType),
			zap.Error(err))
		return nil
	}

	if err := w.store.CreateAuditEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	if err := w.store.MarkEventProcessed(ctx, base.EventID, base.EventType); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	w.logger.Info("Audited event",
		zap.String("event_type", base.EventType),
		zap.String("entity_kind", entry.EntityKind),
		zap.Int64("entity_id", entry.EntityID))
	return nil
}

func (w *AuditWorker) buildEntry(base models.BaseEvent, raw []byte) (*models.AuditEntry, error) {
	entry := &models.AuditEntry{
		EventID:    base.EventID,
		EventType:  base.EventType,
		OccurredAt: base.Timestamp,
	}

	switch base.EventType {
	case models.BrokerEventCreated:
		var ev models.EventCreatedEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, err
		}
		entry.EntityKind = "event"
		entry.EntityID = ev.BazapEventID
		entry.ActorID = ev.CreatedBy
		entry.Detail = fmt.Sprintf("event %s opened for unit %s", ev.Number, ev.SourceUnit)

	case models.BrokerEventSubmitted:
		var ev models.EventSubmittedEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, err
		}
		entry.EntityKind = "event"
		entry.EntityID = ev.BazapEventID
		entry.Detail = fmt.Sprintf("submitted for inspection with %d items", ev.ItemCount)

	case models.BrokerEventCompleted:
		var ev models.EventCompletedEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, err
		}
		entry.EntityKind = "event"
		entry.EntityID = ev.BazapEventID
		entry.Detail = fmt.Sprintf("completed: %d passed, %d failed", ev.PassedItems, ev.FailedItems)

	case models.BrokerInspectionRecorded:
		var ev models.InspectionRecordedEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, err
		}
		entry.EntityKind = "event_item"
		entry.EntityID = ev.EventItemID
		entry.ActorID = ev.InspectorID
		if ev.DisableReason != "" {
			entry.Detail = fmt.Sprintf("decision %s (%s)", ev.Decision, ev.DisableReason)
		} else {
			entry.Detail = fmt.Sprintf("decision %s", ev.Decision)
		}

	case models.BrokerReceiptCreated:
		var ev models.ReceiptCreatedEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, err
		}
		entry.EntityKind = "receipt"
		entry.EntityID = ev.ReceiptID
		entry.ActorID = ev.CreatedBy
		entry.Detail = fmt.Sprintf("issued with %d lines", ev.LineCount)

	case models.BrokerReceiptCancelled:
		var ev models.ReceiptCancelledEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, err
		}
		entry.EntityKind = "receipt"
		entry.EntityID = ev.ReceiptID
		entry.Detail = fmt.Sprintf("cancelled: %s", ev.Reason)

	default:
		return nil, fmt.Errorf("unknown event type %q", base.EventType)
	}

	return entry, nil
}
