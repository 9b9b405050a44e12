package worker

import (
	"encoding/json"
	"testing"
	"time"

	"bazap-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestEntry(t *testing.T, event interface{}, base models.BaseEvent) *models.AuditEntry {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)

	w := NewAuditWorker(nil, nil)
	entry, err := w.buildEntry(base, raw)
	require.NoError(t, err)
	return entry
}

func TestBuildEntryEventCompleted(t *testing.T) {
	base := models.BaseEvent{
		EventID:   "e-1",
		EventType: models.BrokerEventCompleted,
		Timestamp: time.Now(),
	}
	entry := buildTestEntry(t, models.EventCompletedEvent{
		BaseEvent:    base,
		BazapEventID: 42,
		PassedItems:  3,
		FailedItems:  1,
	}, base)

	assert.Equal(t, "event", entry.EntityKind)
	assert.Equal(t, int64(42), entry.EntityID)
	assert.Equal(t, "completed: 3 passed, 1 failed", entry.Detail)
}

func TestBuildEntryInspectionRecorded(t *testing.T) {
	base := models.BaseEvent{
		EventID:   "e-2",
		EventType: models.BrokerInspectionRecorded,
		Timestamp: time.Now(),
	}
	entry := buildTestEntry(t, models.InspectionRecordedEvent{
		BaseEvent:     base,
		EventItemID:   7,
		Decision:      models.DecisionDisabled,
		DisableReason: models.DisableReasonScrap,
		InspectorID:   3,
	}, base)

	assert.Equal(t, "event_item", entry.EntityKind)
	assert.Equal(t, int64(7), entry.EntityID)
	assert.Equal(t, int64(3), entry.ActorID)
	assert.Equal(t, "decision DISABLED (SCRAP)", entry.Detail)
}

func TestBuildEntryReceiptCancelled(t *testing.T) {
	base := models.BaseEvent{
		EventID:   "e-3",
		EventType: models.BrokerReceiptCancelled,
		Timestamp: time.Now(),
	}
	entry := buildTestEntry(t, models.ReceiptCancelledEvent{
		BaseEvent: base,
		ReceiptID: 9,
		Reason:    "הוזן בטעות",
	}, base)

	assert.Equal(t, "receipt", entry.EntityKind)
	assert.Equal(t, int64(9), entry.EntityID)
	assert.Equal(t, "cancelled: הוזן בטעות", entry.Detail)
}

func TestBuildEntryUnknownType(t *testing.T) {
	w := NewAuditWorker(nil, nil)
	_, err := w.buildEntry(models.BaseEvent{EventType: "SOMETHING_ELSE"}, []byte("{}"))
	assert.Error(t, err)
}
