package service

import (
	"context"
	"strings"
	"testing"

	"bazap-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEventFixture() (*EventService, *memStore, *capturePublisher) {
	ms := newMemStore()
	pub := &capturePublisher{}
	return NewEventService(ms, noopLocker{}, pub), ms, pub
}

func TestCreateEvent(t *testing.T) {
	svc, ms, pub := newEventFixture()
	user := ms.addUser("yossi")

	dto, err := svc.CreateEvent(context.Background(), &CreateEventRequest{
		SourceUnit: "8200",
		Receiver:   "דני",
	}, user.ID)
	require.NoError(t, err)

	assert.Equal(t, models.EventStatusDraft, dto.Status)
	assert.Equal(t, models.EventTypeReceiving, dto.Type)
	assert.Equal(t, "yossi", dto.CreatedByUser)
	assert.Empty(t, dto.Items)
	assert.True(t, strings.HasPrefix(dto.Number, "EVT-"))
	assert.Equal(t, []string{models.BrokerEventCreated}, pub.published)
}

func TestCreateEventRejectsUnknownType(t *testing.T) {
	svc, ms, _ := newEventFixture()
	user := ms.addUser("yossi")

	_, err := svc.CreateEvent(context.Background(), &CreateEventRequest{
		SourceUnit: "8200",
		Receiver:   "דני",
		Type:       "BOGUS",
	}, user.ID)
	assert.True(t, IsInvalid(err))
}

func TestAddItemResolvesCatalogValues(t *testing.T) {
	svc, ms, _ := newEventFixture()
	user := ms.addUser("yossi")
	ms.addItem("מכשיר קשר", "MK-100", 5)

	dto, err := svc.CreateEvent(context.Background(), &CreateEventRequest{
		SourceUnit: "8200",
		Receiver:   "דני",
	}, user.ID)
	require.NoError(t, err)

	dto, err = svc.AddItem(context.Background(), dto.ID, &AddItemRequest{
		ItemMakat: "MK-100",
		ItemName:  "whatever the caller typed",
		Quantity:  3,
	})
	require.NoError(t, err)

	require.Len(t, dto.Items, 1)
	assert.Equal(t, "מכשיר קשר", dto.Items[0].ItemName)
	assert.Equal(t, "MK-100", dto.Items[0].ItemMakat)
	assert.Equal(t, 3, dto.Items[0].Quantity)
	assert.Equal(t, models.InspectionStatusPending, dto.Items[0].InspectionStatus)
}

func TestAddItemMergeReplacesQuantity(t *testing.T) {
	svc, ms, _ := newEventFixture()
	user := ms.addUser("yossi")

	dto, err := svc.CreateEvent(context.Background(), &CreateEventRequest{
		SourceUnit: "8200",
		Receiver:   "דני",
	}, user.ID)
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), dto.ID, &AddItemRequest{ItemMakat: "MK-200", Quantity: 2})
	require.NoError(t, err)

	dto, err = svc.AddItem(context.Background(), dto.ID, &AddItemRequest{ItemMakat: "MK-200", Quantity: 7})
	require.NoError(t, err)

	require.Len(t, dto.Items, 1)
	assert.Equal(t, 7, dto.Items[0].Quantity)
}

func TestAddItemFallsBackToMakatAsName(t *testing.T) {
	svc, ms, _ := newEventFixture()
	user := ms.addUser("yossi")

	dto, err := svc.CreateEvent(context.Background(), &CreateEventRequest{
		SourceUnit: "8200",
		Receiver:   "דני",
	}, user.ID)
	require.NoError(t, err)

	dto, err = svc.AddItem(context.Background(), dto.ID, &AddItemRequest{ItemMakat: "MK-300", Quantity: 1})
	require.NoError(t, err)

	require.Len(t, dto.Items, 1)
	assert.Equal(t, "MK-300", dto.Items[0].ItemName)
}

func TestAddItemDraftOnly(t *testing.T) {
	svc, ms, _ := newEventFixture()
	user := ms.addUser("yossi")

	dto, err := svc.CreateEvent(context.Background(), &CreateEventRequest{
		SourceUnit: "8200",
		Receiver:   "דני",
	}, user.ID)
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), dto.ID, &AddItemRequest{ItemMakat: "MK-400", Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, svc.SubmitForInspection(context.Background(), dto.ID))

	_, err = svc.AddItem(context.Background(), dto.ID, &AddItemRequest{ItemMakat: "MK-500", Quantity: 1})
	assert.True(t, IsInvalid(err))
}

func TestRemoveItemChecksOwnership(t *testing.T) {
	svc, ms, _ := newEventFixture()
	user := ms.addUser("yossi")

	first, err := svc.CreateEvent(context.Background(), &CreateEventRequest{SourceUnit: "8200", Receiver: "דני"}, user.ID)
	require.NoError(t, err)
	second, err := svc.CreateEvent(context.Background(), &CreateEventRequest{SourceUnit: "8200", Receiver: "דני"}, user.ID)
	require.NoError(t, err)

	first, err = svc.AddItem(context.Background(), first.ID, &AddItemRequest{ItemMakat: "MK-600", Quantity: 1})
	require.NoError(t, err)

	err = svc.RemoveItem(context.Background(), second.ID, first.Items[0].ID)
	assert.True(t, IsInvalid(err))

	err = svc.RemoveItem(context.Background(), first.ID, first.Items[0].ID)
	require.NoError(t, err)

	first, err = svc.GetEvent(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Empty(t, first.Items)
}

func TestSubmitForInspectionGuards(t *testing.T) {
	svc, ms, pub := newEventFixture()
	user := ms.addUser("yossi")

	dto, err := svc.CreateEvent(context.Background(), &CreateEventRequest{SourceUnit: "8200", Receiver: "דני"}, user.ID)
	require.NoError(t, err)

	// No items yet
	err = svc.SubmitForInspection(context.Background(), dto.ID)
	assert.True(t, IsInvalid(err))

	_, err = svc.AddItem(context.Background(), dto.ID, &AddItemRequest{ItemMakat: "MK-700", Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, svc.SubmitForInspection(context.Background(), dto.ID))

	dto, err = svc.GetEvent(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusPending, dto.Status)
	assert.Contains(t, pub.published, models.BrokerEventSubmitted)

	// Double submit
	err = svc.SubmitForInspection(context.Background(), dto.ID)
	assert.True(t, IsInvalid(err))
}

func TestCompleteIsIdempotent(t *testing.T) {
	svc, ms, _ := newEventFixture()
	user := ms.addUser("yossi")

	dto, err := svc.CreateEvent(context.Background(), &CreateEventRequest{SourceUnit: "8200", Receiver: "דני"}, user.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Complete(context.Background(), dto.ID))
	require.NoError(t, svc.Complete(context.Background(), dto.ID))

	dto, err = svc.GetEvent(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusCompleted, dto.Status)
}

func TestListEventsFiltersByStatus(t *testing.T) {
	svc, ms, _ := newEventFixture()
	user := ms.addUser("yossi")

	draft, err := svc.CreateEvent(context.Background(), &CreateEventRequest{SourceUnit: "8200", Receiver: "דני"}, user.ID)
	require.NoError(t, err)
	done, err := svc.CreateEvent(context.Background(), &CreateEventRequest{SourceUnit: "8200", Receiver: "דני"}, user.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Complete(context.Background(), done.ID))

	all, err := svc.ListEvents(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	drafts, err := svc.ListEvents(context.Background(), models.EventStatusDraft)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, draft.ID, drafts[0].ID)
}

func TestGetEventNotFound(t *testing.T) {
	svc, _, _ := newEventFixture()

	_, err := svc.GetEvent(context.Background(), 999)
	assert.True(t, IsNotFound(err))
}
