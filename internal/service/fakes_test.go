package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"bazap-service/internal/models"
	"bazap-service/internal/store"
)

// memStore is an in-memory stand-in for the Postgres store, shared by the
// service tests. It implements every store interface the services declare.
type memStore struct {
	items      map[int64]*models.Item
	events     map[int64]*models.Event
	eventItems map[int64]*models.EventItem
	actions    []*models.InspectionAction

	receipts     map[int64]*models.Receipt
	receiptItems map[int64][]models.ReceiptItem

	users         map[int64]*models.User
	refreshTokens map[string]*models.RefreshToken

	personal    []string
	recentNotes []string
	department  []string
	learned     []string

	nextID int64
}

func newMemStore() *memStore {
	return &memStore{
		items:         make(map[int64]*models.Item),
		events:        make(map[int64]*models.Event),
		eventItems:    make(map[int64]*models.EventItem),
		receipts:      make(map[int64]*models.Receipt),
		receiptItems:  make(map[int64][]models.ReceiptItem),
		users:         make(map[int64]*models.User),
		refreshTokens: make(map[string]*models.RefreshToken),
	}
}

func (m *memStore) nextSeq() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addUser(username string) *models.User {
	u := &models.User{
		ID:       m.nextSeq(),
		Username: username,
		Role:     models.RoleAdmin,
		IsActive: true,
	}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addItem(name, code string, stock int) *models.Item {
	item := &models.Item{
		ID:              m.nextSeq(),
		Name:            name,
		QuantityInStock: stock,
		IsActive:        true,
	}
	if code != "" {
		item.Code = sql.NullString{String: code, Valid: true}
	}
	m.items[item.ID] = item
	return item
}

func (m *memStore) CreateEvent(ctx context.Context, evt *models.Event) error {
	evt.ID = m.nextSeq()
	evt.CreatedAt = time.Now()
	cp := *evt
	m.events[evt.ID] = &cp
	return nil
}

func (m *memStore) GetEventByID(ctx context.Context, id int64) (*models.Event, error) {
	evt, ok := m.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *evt
	return &cp, nil
}

func (m *memStore) ListEvents(ctx context.Context, status string) ([]models.Event, error) {
	out := []models.Event{}
	for _, evt := range m.events {
		if status == "" || evt.Status == status {
			out = append(out, *evt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdateEventStatus(ctx context.Context, eventID int64, status string) error {
	evt, ok := m.events[eventID]
	if !ok {
		return store.ErrNotFound
	}
	evt.Status = status
	return nil
}

func (m *memStore) CreateEventItem(ctx context.Context, item *models.EventItem) error {
	item.ID = m.nextSeq()
	item.AddedAt = time.Now()
	cp := *item
	m.eventItems[item.ID] = &cp
	return nil
}

func (m *memStore) GetEventItemByID(ctx context.Context, id int64) (*models.EventItem, error) {
	item, ok := m.eventItems[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *memStore) GetEventItems(ctx context.Context, eventID int64) ([]models.EventItem, error) {
	out := []models.EventItem{}
	for _, item := range m.eventItems {
		if item.EventID == eventID {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) FindEventItemMatch(ctx context.Context, eventID int64, makat string, itemID sql.NullInt64) (*models.EventItem, error) {
	for _, item := range m.eventItems {
		if item.EventID != eventID {
			continue
		}
		if makat != "" && item.ItemMakat == makat {
			cp := *item
			return &cp, nil
		}
		if itemID.Valid && item.ItemID.Valid && item.ItemID.Int64 == itemID.Int64 {
			cp := *item
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) UpdateEventItem(ctx context.Context, item *models.EventItem) error {
	if _, ok := m.eventItems[item.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *item
	m.eventItems[item.ID] = &cp
	return nil
}

func (m *memStore) DeleteEventItem(ctx context.Context, id int64) error {
	if _, ok := m.eventItems[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.eventItems, id)
	return nil
}

func (m *memStore) CreateInspectionAction(ctx context.Context, action *models.InspectionAction) error {
	action.ID = m.nextSeq()
	action.InspectedAt = time.Now()
	cp := *action
	m.actions = append(m.actions, &cp)
	return nil
}

func (m *memStore) GetLatestInspectionAction(ctx context.Context, eventItemID int64) (*models.InspectionAction, error) {
	var latest *models.InspectionAction
	for _, action := range m.actions {
		if action.EventItemID == eventItemID {
			latest = action
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memStore) UpsertReasonSuggestion(ctx context.Context, makat, reason string, userID int64) error {
	m.learned = append(m.learned, reason)
	return nil
}

func (m *memStore) GetPersonalSuggestions(ctx context.Context, makat string, userID int64, limit int) ([]string, error) {
	return capStrings(m.personal, limit), nil
}

func (m *memStore) GetRecentNotes(ctx context.Context, userID int64, days, limit int) ([]string, error) {
	return capStrings(m.recentNotes, limit), nil
}

func (m *memStore) GetDepartmentSuggestions(ctx context.Context, makat string, excludeUserID int64, limit int) ([]string, error) {
	return capStrings(m.department, limit), nil
}

func capStrings(in []string, limit int) []string {
	if len(in) > limit {
		return in[:limit]
	}
	return in
}

func (m *memStore) CreateReceiptTx(ctx context.Context, receipt *models.Receipt, lines []store.ReceiptLine) error {
	demand := make(map[int64]int)
	order := []int64{}
	for _, line := range lines {
		if _, seen := demand[line.ItemID]; !seen {
			order = append(order, line.ItemID)
		}
		demand[line.ItemID] += line.Quantity
	}

	for _, itemID := range order {
		item, ok := m.items[itemID]
		if !ok {
			return store.ErrNotFound
		}
		if item.QuantityInStock < demand[itemID] {
			return &store.ErrInsufficientStock{
				ItemName:  item.Name,
				Available: item.QuantityInStock,
				Requested: demand[itemID],
			}
		}
	}

	receipt.ID = m.nextSeq()
	receipt.ReceiptDate = time.Now()
	receipt.CreatedAt = time.Now()
	cp := *receipt
	m.receipts[receipt.ID] = &cp

	for _, line := range lines {
		m.items[line.ItemID].QuantityInStock -= line.Quantity
		m.receiptItems[receipt.ID] = append(m.receiptItems[receipt.ID], models.ReceiptItem{
			ID:        m.nextSeq(),
			ReceiptID: receipt.ID,
			ItemID:    line.ItemID,
			Quantity:  line.Quantity,
		})
	}
	return nil
}

func (m *memStore) GetReceiptByID(ctx context.Context, id int64) (*models.Receipt, error) {
	receipt, ok := m.receipts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *receipt
	return &cp, nil
}

func (m *memStore) GetReceiptItems(ctx context.Context, receiptID int64) ([]models.ReceiptItem, error) {
	return m.receiptItems[receiptID], nil
}

func (m *memStore) ListReceipts(ctx context.Context, filter store.ReceiptFilter) ([]models.Receipt, error) {
	out := []models.Receipt{}
	for _, receipt := range m.receipts {
		out = append(out, *receipt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) restoreStock(receiptID int64) {
	for _, line := range m.receiptItems[receiptID] {
		if item, ok := m.items[line.ItemID]; ok {
			item.QuantityInStock += line.Quantity
		}
	}
}

func (m *memStore) CancelReceiptTx(ctx context.Context, receiptID int64, reason string) error {
	receipt, ok := m.receipts[receiptID]
	if !ok {
		return store.ErrNotFound
	}
	m.restoreStock(receiptID)
	receipt.IsCancelled = true
	receipt.CancellationReason = sql.NullString{String: reason, Valid: true}
	receipt.CancelledAt = sql.NullTime{Time: time.Now(), Valid: true}
	return nil
}

func (m *memStore) DeleteReceiptTx(ctx context.Context, receiptID int64, restoreStock bool) error {
	if _, ok := m.receipts[receiptID]; !ok {
		return store.ErrNotFound
	}
	if restoreStock {
		m.restoreStock(receiptID)
	}
	delete(m.receipts, receiptID)
	delete(m.receiptItems, receiptID)
	return nil
}

func (m *memStore) GetItemByID(ctx context.Context, id int64) (*models.Item, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *memStore) GetItemByCode(ctx context.Context, code string) (*models.Item, error) {
	for _, item := range m.items {
		if item.Code.Valid && item.Code.String == code {
			cp := *item
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetItems(ctx context.Context, includeInactive bool) ([]models.Item, error) {
	out := []models.Item{}
	for _, item := range m.items {
		if includeInactive || item.IsActive {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateItem(ctx context.Context, item *models.Item) error {
	item.ID = m.nextSeq()
	item.CreatedAt = time.Now()
	item.UpdatedAt = time.Now()
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *memStore) UpdateItem(ctx context.Context, item *models.Item) error {
	if _, ok := m.items[item.ID]; !ok {
		return store.ErrNotFound
	}
	item.UpdatedAt = time.Now()
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *memStore) DeleteItem(ctx context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memStore) ItemNameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	for _, item := range m.items {
		if item.Name == name && item.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ItemCodeExists(ctx context.Context, code string, excludeID int64) (bool, error) {
	for _, item := range m.items {
		if item.Code.Valid && item.Code.String == code && item.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ItemHasReceiptLines(ctx context.Context, itemID int64) (bool, error) {
	for _, lines := range m.receiptItems {
		for _, line := range lines {
			if line.ItemID == itemID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *memStore) SearchItems(ctx context.Context, term string, limit int) ([]models.Item, error) {
	return m.GetItems(ctx, false)
}

func (m *memStore) GetRecentItems(ctx context.Context, limit int) ([]models.Item, error) {
	return m.GetItems(ctx, false)
}

func (m *memStore) GetFrequentItems(ctx context.Context, limit int) ([]models.Item, error) {
	return m.GetItems(ctx, false)
}

func (m *memStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (m *memStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, user := range m.users {
		if user.Username == username {
			cp := *user
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetUsersByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	out := []models.User{}
	for _, id := range ids {
		if user, ok := m.users[id]; ok {
			out = append(out, *user)
		}
	}
	return out, nil
}

func (m *memStore) UpsertUser(ctx context.Context, user *models.User) error {
	for _, existing := range m.users {
		if existing.Username == user.Username {
			user.ID = existing.ID
			user.CreatedAt = existing.CreatedAt
			cp := *user
			m.users[user.ID] = &cp
			return nil
		}
	}
	user.ID = m.nextSeq()
	user.CreatedAt = time.Now()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memStore) CreateRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	m.refreshTokens[tokenHash] = &models.RefreshToken{
		ID:        m.nextSeq(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	return nil
}

func (m *memStore) GetRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	token, ok := m.refreshTokens[tokenHash]
	if !ok || token.RevokedAt.Valid || token.ExpiresAt.Before(time.Now()) {
		return nil, store.ErrNotFound
	}
	cp := *token
	return &cp, nil
}

func (m *memStore) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	if token, ok := m.refreshTokens[tokenHash]; ok {
		token.RevokedAt = sql.NullTime{Time: time.Now(), Valid: true}
	}
	return nil
}

// noopLocker runs the critical section inline
type noopLocker struct{}

func (noopLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	return fn(ctx)
}

// capturePublisher records every published event type in order
type capturePublisher struct {
	published []string
}

func (p *capturePublisher) record(eventType string) error {
	p.published = append(p.published, eventType)
	return nil
}

func (p *capturePublisher) PublishEventCreated(ctx context.Context, event *models.EventCreatedEvent) error {
	return p.record(event.EventType)
}

func (p *capturePublisher) PublishEventSubmitted(ctx context.Context, event *models.EventSubmittedEvent) error {
	return p.record(event.EventType)
}

func (p *capturePublisher) PublishEventCompleted(ctx context.Context, event *models.EventCompletedEvent) error {
	return p.record(event.EventType)
}

func (p *capturePublisher) PublishInspectionRecorded(ctx context.Context, event *models.InspectionRecordedEvent) error {
	return p.record(event.EventType)
}

func (p *capturePublisher) PublishReceiptCreated(ctx context.Context, event *models.ReceiptCreatedEvent) error {
	return p.record(event.EventType)
}

func (p *capturePublisher) PublishReceiptCancelled(ctx context.Context, event *models.ReceiptCancelledEvent) error {
	return p.record(event.EventType)
}

// memCache is a map-backed SuggestionCache
type memCache struct {
	entries map[string][]string
	hits    int
	sets    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]string)}
}

func (c *memCache) key(makat string, userID int64) string {
	return fmt.Sprintf("%s:%d", makat, userID)
}

func (c *memCache) GetSuggestions(ctx context.Context, makat string, userID int64) ([]string, bool) {
	v, ok := c.entries[c.key(makat, userID)]
	if ok {
		c.hits++
	}
	return v, ok
}

func (c *memCache) SetSuggestions(ctx context.Context, makat string, userID int64, suggestions []string) {
	c.sets++
	c.entries[c.key(makat, userID)] = suggestions
}

func (c *memCache) InvalidateSuggestions(ctx context.Context, makat string) {
	for k := range c.entries {
		delete(c.entries, k)
	}
}
