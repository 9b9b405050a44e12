package models

import "time"

// Broker event types
const (
	BrokerEventCreated       = "EVENT_CREATED"
	BrokerEventSubmitted     = "EVENT_SUBMITTED"
	BrokerEventCompleted     = "EVENT_COMPLETED"
	BrokerInspectionRecorded = "INSPECTION_RECORDED"
	BrokerReceiptCreated     = "RECEIPT_CREATED"
	BrokerReceiptCancelled   = "RECEIPT_CANCELLED"
)

// BaseEvent contains common fields for all broker events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// EventCreatedEvent published when a new event batch is opened
type EventCreatedEvent struct {
	BaseEvent
	BazapEventID int64  `json:"bazap_event_id"`
	Number       string `json:"number"`
	SourceUnit   string `json:"source_unit"`
	CreatedBy    int64  `json:"created_by"`
}

// EventSubmittedEvent published when an event is submitted for inspection
type EventSubmittedEvent struct {
	BaseEvent
	BazapEventID int64 `json:"bazap_event_id"`
	ItemCount    int   `json:"item_count"`
}

// EventCompletedEvent published when all items on an event are decided
type EventCompletedEvent struct {
	BaseEvent
	BazapEventID int64 `json:"bazap_event_id"`
	PassedItems  int   `json:"passed_items"`
	FailedItems  int   `json:"failed_items"`
}

// InspectionRecordedEvent published for every inspection decision
type InspectionRecordedEvent struct {
	BaseEvent
	EventItemID   int64  `json:"event_item_id"`
	Decision      string `json:"decision"`
	DisableReason string `json:"disable_reason,omitempty"`
	InspectorID   int64  `json:"inspector_id"`
}

// ReceiptCreatedEvent published when equipment is issued
type ReceiptCreatedEvent struct {
	BaseEvent
	ReceiptID int64 `json:"receipt_id"`
	LineCount int   `json:"line_count"`
	CreatedBy int64 `json:"created_by"`
}

// ReceiptCancelledEvent published when a receipt is cancelled and stock restored
type ReceiptCancelledEvent struct {
	BaseEvent
	ReceiptID int64  `json:"receipt_id"`
	Reason    string `json:"reason"`
}
