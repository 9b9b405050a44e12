package service

import (
	"context"
	"testing"

	"bazap-service/internal/models"
	"bazap-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReceiptFixture() (*ReceiptService, *memStore, *capturePublisher) {
	ms := newMemStore()
	pub := &capturePublisher{}
	return NewReceiptService(ms, noopLocker{}, pub), ms, pub
}

func TestCreateReceipt(t *testing.T) {
	svc, ms, pub := newReceiptFixture()
	user := ms.addUser("dana")
	radio := ms.addItem("מכשיר קשר", "MK-100", 10)
	antenna := ms.addItem("אנטנה", "MK-200", 4)

	dto, err := svc.CreateReceipt(context.Background(), &CreateReceiptRequest{
		RecipientName: "פלוגה ב",
		Items: []ReceiptLineRequest{
			{ItemID: radio.ID, Quantity: 3},
			{ItemID: antenna.ID, Quantity: 2},
		},
	}, user.ID)
	require.NoError(t, err)

	assert.Equal(t, "פלוגה ב", dto.RecipientName)
	assert.Equal(t, "dana", dto.CreatedByUsername)
	assert.Len(t, dto.Items, 2)
	assert.False(t, dto.IsCancelled)

	assert.Equal(t, 7, ms.items[radio.ID].QuantityInStock)
	assert.Equal(t, 2, ms.items[antenna.ID].QuantityInStock)
	assert.Equal(t, []string{models.BrokerReceiptCreated}, pub.published)
}

func TestCreateReceiptValidation(t *testing.T) {
	svc, ms, _ := newReceiptFixture()
	user := ms.addUser("dana")
	radio := ms.addItem("מכשיר קשר", "MK-100", 10)

	_, err := svc.CreateReceipt(context.Background(), &CreateReceiptRequest{
		Items: []ReceiptLineRequest{{ItemID: radio.ID, Quantity: 1}},
	}, user.ID)
	assert.True(t, IsInvalid(err), "missing recipient")

	_, err = svc.CreateReceipt(context.Background(), &CreateReceiptRequest{
		RecipientName: "פלוגה ב",
	}, user.ID)
	assert.True(t, IsInvalid(err), "no lines")

	_, err = svc.CreateReceipt(context.Background(), &CreateReceiptRequest{
		RecipientName: "פלוגה ב",
		Items:         []ReceiptLineRequest{{ItemID: radio.ID, Quantity: 0}},
	}, user.ID)
	assert.True(t, IsInvalid(err), "non-positive quantity")

	_, err = svc.CreateReceipt(context.Background(), &CreateReceiptRequest{
		RecipientName: "פלוגה ב",
		Items:         []ReceiptLineRequest{{ItemID: 999, Quantity: 1}},
	}, user.ID)
	assert.True(t, IsInvalid(err), "unknown item")
}

func TestCreateReceiptInsufficientStockRejectsWholeRequest(t *testing.T) {
	svc, ms, _ := newReceiptFixture()
	user := ms.addUser("dana")
	radio := ms.addItem("מכשיר קשר", "MK-100", 10)
	antenna := ms.addItem("אנטנה", "MK-200", 1)

	_, err := svc.CreateReceipt(context.Background(), &CreateReceiptRequest{
		RecipientName: "פלוגה ב",
		Items: []ReceiptLineRequest{
			{ItemID: radio.ID, Quantity: 3},
			{ItemID: antenna.ID, Quantity: 2},
		},
	}, user.ID)
	require.True(t, IsInvalid(err))
	assert.Contains(t, err.Error(), "אנטנה")

	// Nothing moved
	assert.Equal(t, 10, ms.items[radio.ID].QuantityInStock)
	assert.Equal(t, 1, ms.items[antenna.ID].QuantityInStock)
	assert.Empty(t, ms.receipts)
}

func TestCreateReceiptSumsDuplicateLines(t *testing.T) {
	svc, ms, _ := newReceiptFixture()
	user := ms.addUser("dana")
	radio := ms.addItem("מכשיר קשר", "MK-100", 5)

	// 3 + 3 across two lines exceeds the 5 in stock even though each
	// line alone would pass
	_, err := svc.CreateReceipt(context.Background(), &CreateReceiptRequest{
		RecipientName: "פלוגה ב",
		Items: []ReceiptLineRequest{
			{ItemID: radio.ID, Quantity: 3},
			{ItemID: radio.ID, Quantity: 3},
		},
	}, user.ID)
	assert.True(t, IsInvalid(err))
	assert.Equal(t, 5, ms.items[radio.ID].QuantityInStock)
}

func TestCancelReceiptRestoresStockOnce(t *testing.T) {
	svc, ms, pub := newReceiptFixture()
	user := ms.addUser("dana")
	radio := ms.addItem("מכשיר קשר", "MK-100", 10)

	dto, err := svc.CreateReceipt(context.Background(), &CreateReceiptRequest{
		RecipientName: "פלוגה ב",
		Items:         []ReceiptLineRequest{{ItemID: radio.ID, Quantity: 4}},
	}, user.ID)
	require.NoError(t, err)
	require.Equal(t, 6, ms.items[radio.ID].QuantityInStock)

	require.NoError(t, svc.CancelReceipt(context.Background(), dto.ID, "הוזן בטעות"))
	assert.Equal(t, 10, ms.items[radio.ID].QuantityInStock)
	assert.Contains(t, pub.published, models.BrokerReceiptCancelled)

	// Second cancel must not restore again
	err = svc.CancelReceipt(context.Background(), dto.ID, "שוב")
	assert.True(t, IsInvalid(err))
	assert.Equal(t, 10, ms.items[radio.ID].QuantityInStock)

	got, err := svc.GetReceipt(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCancelled)
	assert.Equal(t, "הוזן בטעות", got.CancellationReason)
}

func TestDeleteReceiptRestoresStockUnlessCancelled(t *testing.T) {
	svc, ms, _ := newReceiptFixture()
	user := ms.addUser("dana")
	radio := ms.addItem("מכשיר קשר", "MK-100", 10)

	first, err := svc.CreateReceipt(context.Background(), &CreateReceiptRequest{
		RecipientName: "פלוגה ב",
		Items:         []ReceiptLineRequest{{ItemID: radio.ID, Quantity: 2}},
	}, user.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteReceipt(context.Background(), first.ID))
	assert.Equal(t, 10, ms.items[radio.ID].QuantityInStock)

	second, err := svc.CreateReceipt(context.Background(), &CreateReceiptRequest{
		RecipientName: "פלוגה ב",
		Items:         []ReceiptLineRequest{{ItemID: radio.ID, Quantity: 2}},
	}, user.ID)
	require.NoError(t, err)
	require.NoError(t, svc.CancelReceipt(context.Background(), second.ID, "ביטול"))
	require.Equal(t, 10, ms.items[radio.ID].QuantityInStock)

	// Cancellation already restored the stock, deletion must not double it
	require.NoError(t, svc.DeleteReceipt(context.Background(), second.ID))
	assert.Equal(t, 10, ms.items[radio.ID].QuantityInStock)
}

func TestListReceipts(t *testing.T) {
	svc, ms, _ := newReceiptFixture()
	user := ms.addUser("dana")
	radio := ms.addItem("מכשיר קשר", "MK-100", 10)

	for i := 0; i < 3; i++ {
		_, err := svc.CreateReceipt(context.Background(), &CreateReceiptRequest{
			RecipientName: "פלוגה ב",
			Items:         []ReceiptLineRequest{{ItemID: radio.ID, Quantity: 1}},
		}, user.ID)
		require.NoError(t, err)
	}

	dtos, err := svc.ListReceipts(context.Background(), store.ReceiptFilter{})
	require.NoError(t, err)
	assert.Len(t, dtos, 3)
}
