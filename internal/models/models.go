package models

import (
	"database/sql"
	"time"
)

// Item represents an equipment definition in the catalog
type Item struct {
	ID              int64          `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	Code            sql.NullString `db:"code" json:"code,omitempty"`
	Description     sql.NullString `db:"description" json:"description,omitempty"`
	QuantityInStock int            `db:"quantity_in_stock" json:"quantity_in_stock"`
	IsActive        bool           `db:"is_active" json:"is_active"`
	GroupID         sql.NullInt64  `db:"group_id" json:"group_id,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// ItemGroup is an optional grouping of catalog items
type ItemGroup struct {
	ID       int64          `db:"id" json:"id"`
	Name     string         `db:"name" json:"name"`
	Category sql.NullString `db:"category" json:"category,omitempty"`
}

// Event is a batch of equipment moving through receiving and inspection
type Event struct {
	ID              int64     `db:"id" json:"id"`
	Number          string    `db:"number" json:"number"`
	Type            string    `db:"type" json:"type"`
	SourceUnit      string    `db:"source_unit" json:"source_unit"`
	Receiver        string    `db:"receiver" json:"receiver"`
	Status          string    `db:"status" json:"status"`
	CreatedByUserID int64     `db:"created_by_user_id" json:"created_by_user_id"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// EventItem is one line within an event, with its own inspection status.
// ItemID is nullable: the line can represent equipment not yet in the catalog.
type EventItem struct {
	ID               int64         `db:"id" json:"id"`
	EventID          int64         `db:"event_id" json:"event_id"`
	ItemID           sql.NullInt64 `db:"item_id" json:"item_id,omitempty"`
	ItemMakat        string        `db:"item_makat" json:"item_makat"`
	ItemName         string        `db:"item_name" json:"item_name"`
	Quantity         int           `db:"quantity" json:"quantity"`
	InspectionStatus string        `db:"inspection_status" json:"inspection_status"`
	AddedAt          time.Time     `db:"added_at" json:"added_at"`
}

// InspectionAction is an append-only record of one pass/disable decision
type InspectionAction struct {
	ID                int64          `db:"id" json:"id"`
	EventItemID       int64          `db:"event_item_id" json:"event_item_id"`
	Decision          string         `db:"decision" json:"decision"`
	DisableReason     sql.NullString `db:"disable_reason" json:"disable_reason,omitempty"`
	Notes             sql.NullString `db:"notes" json:"notes,omitempty"`
	InspectedByUserID int64          `db:"inspected_by_user_id" json:"inspected_by_user_id"`
	InspectedAt       time.Time      `db:"inspected_at" json:"inspected_at"`
}

// ReasonSuggestion is a learned free-text disable reason.
// A null UserID marks a department-wide suggestion.
type ReasonSuggestion struct {
	ID         int64         `db:"id" json:"id"`
	ItemMakat  string        `db:"item_makat" json:"item_makat"`
	Reason     string        `db:"reason" json:"reason"`
	UsageCount int           `db:"usage_count" json:"usage_count"`
	LastUsed   time.Time     `db:"last_used" json:"last_used"`
	UserID     sql.NullInt64 `db:"user_id" json:"user_id,omitempty"`
}

// Receipt records equipment issued to a recipient
type Receipt struct {
	ID                 int64          `db:"id" json:"id"`
	RecipientName      string         `db:"recipient_name" json:"recipient_name"`
	ReceiptDate        time.Time      `db:"receipt_date" json:"receipt_date"`
	CreatedByUserID    int64          `db:"created_by_user_id" json:"created_by_user_id"`
	IsCancelled        bool           `db:"is_cancelled" json:"is_cancelled"`
	CancellationReason sql.NullString `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancelledAt        sql.NullTime   `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
}

// ReceiptItem is one issued line on a receipt
type ReceiptItem struct {
	ID        int64 `db:"id" json:"id"`
	ReceiptID int64 `db:"receipt_id" json:"receipt_id"`
	ItemID    int64 `db:"item_id" json:"item_id"`
	Quantity  int   `db:"quantity" json:"quantity"`
}

// User is an authentication user
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// RefreshToken is a persisted, revocable refresh token (stored hashed)
type RefreshToken struct {
	ID        int64        `db:"id" json:"-"`
	UserID    int64        `db:"user_id" json:"-"`
	TokenHash string       `db:"token_hash" json:"-"`
	ExpiresAt time.Time    `db:"expires_at" json:"-"`
	RevokedAt sql.NullTime `db:"revoked_at" json:"-"`
	CreatedAt time.Time    `db:"created_at" json:"-"`
}

// AuditEntry is one row in the audit log written by the audit worker
type AuditEntry struct {
	ID         int64     `db:"id" json:"id"`
	EventID    string    `db:"event_id" json:"event_id"`
	EventType  string    `db:"event_type" json:"event_type"`
	EntityKind string    `db:"entity_kind" json:"entity_kind"`
	EntityID   int64     `db:"entity_id" json:"entity_id"`
	ActorID    int64     `db:"actor_id" json:"actor_id"`
	Detail     string    `db:"detail" json:"detail"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
}

// Event types
const (
	EventTypeReceiving  = "RECEIVING"
	EventTypeInspection = "INSPECTION"
	EventTypeOutgoing   = "OUTGOING"
)

// Event statuses. ARCHIVED has no transition in the API and is only
// reachable by direct data manipulation.
const (
	EventStatusDraft      = "DRAFT"
	EventStatusPending    = "PENDING"
	EventStatusInProgress = "IN_PROGRESS"
	EventStatusCompleted  = "COMPLETED"
	EventStatusArchived   = "ARCHIVED"
)

// Per-item inspection statuses
const (
	InspectionStatusPending = "PENDING"
	InspectionStatusPass    = "PASS"
	InspectionStatusFail    = "FAIL"
)

// Inspection decisions
const (
	DecisionPass     = "PASS"
	DecisionDisabled = "DISABLED"
)

// Disable reasons
const (
	DisableReasonVisualDamage = "VISUAL_DAMAGE"
	DisableReasonScrap        = "SCRAP"
	DisableReasonMalfunction  = "MALFUNCTION"
	DisableReasonMissingParts = "MISSING_PARTS"
	DisableReasonExpired      = "EXPIRED"
	DisableReasonCalibration  = "CALIBRATION"
	DisableReasonOther        = "OTHER"
)

// Roles
const (
	RoleAdmin     = "Admin"
	RoleAlmachsan = "Almachsan"
)

// ValidEventType reports whether t is a known event type
func ValidEventType(t string) bool {
	switch t {
	case EventTypeReceiving, EventTypeInspection, EventTypeOutgoing:
		return true
	}
	return false
}

// ValidDisableReason reports whether r is a known disable reason
func ValidDisableReason(r string) bool {
	switch r {
	case DisableReasonVisualDamage, DisableReasonScrap, DisableReasonMalfunction,
		DisableReasonMissingParts, DisableReasonExpired, DisableReasonCalibration,
		DisableReasonOther:
		return true
	}
	return false
}
