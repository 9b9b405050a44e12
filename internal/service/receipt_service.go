package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bazap-service/internal/models"
	"bazap-service/internal/store"
	"bazap-service/internal/util"

	"go.uber.org/zap"
)

// ReceiptStore is the persistence surface the receipt ledger needs
type ReceiptStore interface {
	CreateReceiptTx(ctx context.Context, receipt *models.Receipt, lines []store.ReceiptLine) error
	GetReceiptByID(ctx context.Context, id int64) (*models.Receipt, error)
	GetReceiptItems(ctx context.Context, receiptID int64) ([]models.ReceiptItem, error)
	ListReceipts(ctx context.Context, filter store.ReceiptFilter) ([]models.Receipt, error)
	CancelReceiptTx(ctx context.Context, receiptID int64, reason string) error
	DeleteReceiptTx(ctx context.Context, receiptID int64, restoreStock bool) error
	GetItemByID(ctx context.Context, id int64) (*models.Item, error)
	GetUsersByIDs(ctx context.Context, ids []int64) ([]models.User, error)
}

// ReceiptPublisher publishes receipt domain events
type ReceiptPublisher interface {
	PublishReceiptCreated(ctx context.Context, event *models.ReceiptCreatedEvent) error
	PublishReceiptCancelled(ctx context.Context, event *models.ReceiptCancelledEvent) error
}

// ReceiptService issues equipment and keeps catalog stock consistent
type ReceiptService struct {
	store     ReceiptStore
	locker    Locker
	publisher ReceiptPublisher
	logger    *zap.Logger
}

// NewReceiptService creates a new receipt service
func NewReceiptService(store ReceiptStore, locker Locker, publisher ReceiptPublisher) *ReceiptService {
	return &ReceiptService{
		store:     store,
		locker:    locker,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// ReceiptLineRequest is one requested (item, quantity) pair
type ReceiptLineRequest struct {
	ItemID   int64 `json:"item_id" binding:"required"`
	Quantity int   `json:"quantity"`
}

// CreateReceiptRequest issues equipment to a recipient
type CreateReceiptRequest struct {
	RecipientName string               `json:"recipient_name"`
	Items         []ReceiptLineRequest `json:"items"`
}

// ReceiptItemDTO is one issued line as served to clients
type ReceiptItemDTO struct {
	ID       int64  `json:"id"`
	ItemID   int64  `json:"item_id"`
	ItemName string `json:"item_name,omitempty"`
	Quantity int    `json:"quantity"`
}

// ReceiptDTO is a full receipt as served to clients
type ReceiptDTO struct {
	ID                 int64            `json:"id"`
	RecipientName      string           `json:"recipient_name"`
	ReceiptDate        time.Time        `json:"receipt_date"`
	CreatedByUserID    int64            `json:"created_by_user_id"`
	CreatedByUsername  string           `json:"created_by_username,omitempty"`
	IsCancelled        bool             `json:"is_cancelled"`
	CancellationReason string           `json:"cancellation_reason,omitempty"`
	Items              []ReceiptItemDTO `json:"items"`
	CreatedAt          time.Time        `json:"created_at"`
}

// CreateReceipt validates every line, then persists the receipt, its lines
// and the stock decrements as one transaction. A single insufficient line
// rejects the whole request with zero stock mutation.
func (s *ReceiptService) CreateReceipt(ctx context.Context, req *CreateReceiptRequest, userID int64) (*ReceiptDTO, error) {
	ctx, span := util.StartSpan(ctx, "ReceiptService.CreateReceipt")
	defer span.End()

	if req.RecipientName == "" {
		util.ReceiptsFailedTotal.WithLabelValues("missing_recipient").Inc()
		return nil, Invalidf("יש להזין שם מקבל")
	}
	if len(req.Items) == 0 {
		util.ReceiptsFailedTotal.WithLabelValues("no_lines").Inc()
		return nil, Invalidf("קבלה חייבת להכיל לפחות פריט אחד")
	}

	lines := make([]store.ReceiptLine, 0, len(req.Items))
	for _, line := range req.Items {
		if line.Quantity <= 0 {
			util.ReceiptsFailedTotal.WithLabelValues("invalid_quantity").Inc()
			return nil, Invalidf("כמות חייבת להיות חיובית")
		}
		if _, err := s.store.GetItemByID(ctx, line.ItemID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				util.ReceiptsFailedTotal.WithLabelValues("item_not_found").Inc()
				return nil, Invalidf("פריט %d לא נמצא", line.ItemID)
			}
			return nil, Internalf(err, "failed to validate receipt line")
		}
		lines = append(lines, store.ReceiptLine{ItemID: line.ItemID, Quantity: line.Quantity})
	}

	receipt := &models.Receipt{
		RecipientName:   req.RecipientName,
		CreatedByUserID: userID,
	}

	start := time.Now()
	err := s.store.CreateReceiptTx(ctx, receipt, lines)
	util.StockMovementLatency.Observe(time.Since(start).Seconds())

	var insufficient *store.ErrInsufficientStock
	if errors.As(err, &insufficient) {
		util.ReceiptsFailedTotal.WithLabelValues("insufficient_stock").Inc()
		return nil, Invalidf("כמות במלאי של %s אינה מספיקה. זמין: %d, מבוקש: %d",
			insufficient.ItemName, insufficient.Available, insufficient.Requested)
	}
	if errors.Is(err, store.ErrNotFound) {
		util.ReceiptsFailedTotal.WithLabelValues("item_not_found").Inc()
		return nil, Invalidf("פריט לא נמצא")
	}
	if err != nil {
		util.ReceiptsFailedTotal.WithLabelValues("db_error").Inc()
		return nil, Internalf(err, "failed to create receipt")
	}

	util.ReceiptsCreatedTotal.Inc()
	s.logger.Info("Receipt created",
		zap.Int64("receipt_id", receipt.ID),
		zap.Int("lines", len(lines)))

	created := &models.ReceiptCreatedEvent{
		BaseEvent: newBaseEvent(models.BrokerReceiptCreated),
		ReceiptID: receipt.ID,
		LineCount: len(lines),
		CreatedBy: userID,
	}
	if err := s.publisher.PublishReceiptCreated(ctx, created); err != nil {
		s.logger.Error("Failed to publish ReceiptCreated", zap.Error(err))
	}

	return s.GetReceipt(ctx, receipt.ID)
}

// GetReceipt returns a receipt with its lines and resolved names
func (s *ReceiptService) GetReceipt(ctx context.Context, receiptID int64) (*ReceiptDTO, error) {
	receipt, err := s.store.GetReceiptByID(ctx, receiptID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFoundf("קבלה %d לא נמצאה", receiptID)
	}
	if err != nil {
		return nil, Internalf(err, "failed to load receipt")
	}
	return s.buildReceiptDTO(ctx, receipt)
}

// ListReceipts returns receipts newest-first, optionally filtered
func (s *ReceiptService) ListReceipts(ctx context.Context, filter store.ReceiptFilter) ([]ReceiptDTO, error) {
	ctx, span := util.StartSpan(ctx, "ReceiptService.ListReceipts")
	defer span.End()

	receipts, err := s.store.ListReceipts(ctx, filter)
	if err != nil {
		return nil, Internalf(err, "failed to list receipts")
	}

	dtos := make([]ReceiptDTO, 0, len(receipts))
	for i := range receipts {
		dto, err := s.buildReceiptDTO(ctx, &receipts[i])
		if err != nil {
			return nil, err
		}
		dtos = append(dtos, *dto)
	}
	return dtos, nil
}

// CancelReceipt restores every line's stock and marks the receipt cancelled.
// A second cancel is rejected, so stock is never restored twice.
func (s *ReceiptService) CancelReceipt(ctx context.Context, receiptID int64, reason string) error {
	ctx, span := util.StartSpan(ctx, "ReceiptService.CancelReceipt")
	defer span.End()

	return s.locker.WithLock(ctx, receiptLockKey(receiptID), func(ctx context.Context) error {
		receipt, err := s.store.GetReceiptByID(ctx, receiptID)
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundf("קבלה %d לא נמצאה", receiptID)
		}
		if err != nil {
			return Internalf(err, "failed to load receipt")
		}
		if receipt.IsCancelled {
			return Invalidf("הקבלה כבר בוטלה")
		}

		if err := s.store.CancelReceiptTx(ctx, receiptID, reason); err != nil {
			return Internalf(err, "failed to cancel receipt")
		}

		util.ReceiptsCancelledTotal.Inc()
		s.logger.Info("Receipt cancelled",
			zap.Int64("receipt_id", receiptID),
			zap.String("reason", reason))

		cancelled := &models.ReceiptCancelledEvent{
			BaseEvent: newBaseEvent(models.BrokerReceiptCancelled),
			ReceiptID: receiptID,
			Reason:    reason,
		}
		if err := s.publisher.PublishReceiptCancelled(ctx, cancelled); err != nil {
			s.logger.Error("Failed to publish ReceiptCancelled", zap.Error(err))
		}
		return nil
	})
}

// DeleteReceipt removes the receipt row entirely. Stock is restored only if
// the receipt was not already cancelled, since cancellation restored it.
func (s *ReceiptService) DeleteReceipt(ctx context.Context, receiptID int64) error {
	ctx, span := util.StartSpan(ctx, "ReceiptService.DeleteReceipt")
	defer span.End()

	return s.locker.WithLock(ctx, receiptLockKey(receiptID), func(ctx context.Context) error {
		receipt, err := s.store.GetReceiptByID(ctx, receiptID)
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundf("קבלה %d לא נמצאה", receiptID)
		}
		if err != nil {
			return Internalf(err, "failed to load receipt")
		}

		if err := s.store.DeleteReceiptTx(ctx, receiptID, !receipt.IsCancelled); err != nil {
			return Internalf(err, "failed to delete receipt")
		}

		s.logger.Info("Receipt deleted", zap.Int64("receipt_id", receiptID))
		return nil
	})
}

func (s *ReceiptService) buildReceiptDTO(ctx context.Context, receipt *models.Receipt) (*ReceiptDTO, error) {
	lines, err := s.store.GetReceiptItems(ctx, receipt.ID)
	if err != nil {
		return nil, Internalf(err, "failed to load receipt lines")
	}

	dto := &ReceiptDTO{
		ID:                 receipt.ID,
		RecipientName:      receipt.RecipientName,
		ReceiptDate:        receipt.ReceiptDate,
		CreatedByUserID:    receipt.CreatedByUserID,
		IsCancelled:        receipt.IsCancelled,
		CancellationReason: receipt.CancellationReason.String,
		Items:              make([]ReceiptItemDTO, 0, len(lines)),
		CreatedAt:          receipt.CreatedAt,
	}

	users, err := s.store.GetUsersByIDs(ctx, []int64{receipt.CreatedByUserID})
	if err != nil {
		return nil, Internalf(err, "failed to resolve creator")
	}
	if len(users) > 0 {
		dto.CreatedByUsername = users[0].Username
	}

	for _, line := range lines {
		itemDTO := ReceiptItemDTO{
			ID:       line.ID,
			ItemID:   line.ItemID,
			Quantity: line.Quantity,
		}
		if item, err := s.store.GetItemByID(ctx, line.ItemID); err == nil {
			itemDTO.ItemName = item.Name
		}
		dto.Items = append(dto.Items, itemDTO)
	}
	return dto, nil
}

func receiptLockKey(receiptID int64) string {
	return fmt.Sprintf("receipt:%d", receiptID)
}
