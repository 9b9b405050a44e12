package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"bazap-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher publishes domain events for the audit trail
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates an EventPublisher on top of a Producer
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishEventCreated publishes an EVENT_CREATED event
func (p *EventPublisher) PublishEventCreated(ctx context.Context, event *models.EventCreatedEvent) error {
	return p.producer.Publish(ctx, eventKey(event.BazapEventID), event)
}

// PublishEventSubmitted publishes an EVENT_SUBMITTED event
func (p *EventPublisher) PublishEventSubmitted(ctx context.Context, event *models.EventSubmittedEvent) error {
	return p.producer.Publish(ctx, eventKey(event.BazapEventID), event)
}

// PublishEventCompleted publishes an EVENT_COMPLETED event
func (p *EventPublisher) PublishEventCompleted(ctx context.Context, event *models.EventCompletedEvent) error {
	return p.producer.Publish(ctx, eventKey(event.BazapEventID), event)
}

// PublishInspectionRecorded publishes an INSPECTION_RECORDED event
func (p *EventPublisher) PublishInspectionRecorded(ctx context.Context, event *models.InspectionRecordedEvent) error {
	return p.producer.Publish(ctx, fmt.Sprintf("event-item-%d", event.EventItemID), event)
}

// PublishReceiptCreated publishes a RECEIPT_CREATED event
func (p *EventPublisher) PublishReceiptCreated(ctx context.Context, event *models.ReceiptCreatedEvent) error {
	return p.producer.Publish(ctx, receiptKey(event.ReceiptID), event)
}

// PublishReceiptCancelled publishes a RECEIPT_CANCELLED event
func (p *EventPublisher) PublishReceiptCancelled(ctx context.Context, event *models.ReceiptCancelledEvent) error {
	return p.producer.Publish(ctx, receiptKey(event.ReceiptID), event)
}

func eventKey(id int64) string {
	return fmt.Sprintf("event-%d", id)
}

func receiptKey(id int64) string {
	return fmt.Sprintf("receipt-%d", id)
}

// DecodeBase extracts the envelope fields from a raw broker message,
// used to route messages by type before full decoding.
func DecodeBase(msg kafka.Message) (models.BaseEvent, error) {
	var base models.BaseEvent
	if err := json.Unmarshal(msg.Value, &base); err != nil {
		return base, fmt.Errorf("failed to decode event envelope: %w", err)
	}
	return base, nil
}
