package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bazap-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// ReceiptLine is one requested (item, quantity) pair for receipt creation
type ReceiptLine struct {
	ItemID   int64
	Quantity int
}

// ErrInsufficientStock is returned when a receipt would overdraw an item
type ErrInsufficientStock struct {
	ItemName  string
	Available int
	Requested int
}

func (e *ErrInsufficientStock) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available=%d, requested=%d",
		e.ItemName, e.Available, e.Requested)
}

// CreateReceiptTx creates a receipt with its lines and decrements stock in one
// transaction. Demand is summed per item across lines, then each item row is
// locked with FOR UPDATE before the sufficiency check, so concurrent receipts
// cannot both pass validation and overdraw.
func (s *Store) CreateReceiptTx(ctx context.Context, receipt *models.Receipt, lines []ReceiptLine) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	demand := make(map[int64]int)
	order := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, seen := demand[line.ItemID]; !seen {
			order = append(order, line.ItemID)
		}
		demand[line.ItemID] += line.Quantity
	}

	for _, itemID := range order {
		var item struct {
			Name      string `db:"name"`
			Available int    `db:"quantity_in_stock"`
		}
		err := tx.GetContext(ctx, &item,
			"SELECT name, quantity_in_stock FROM items WHERE id = $1 FOR UPDATE", itemID)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock item %d: %w", itemID, err)
		}

		if item.Available < demand[itemID] {
			return &ErrInsufficientStock{
				ItemName:  item.Name,
				Available: item.Available,
				Requested: demand[itemID],
			}
		}
	}

	err = tx.GetContext(ctx, receipt, `
		INSERT INTO receipts (recipient_name, receipt_date, created_by_user_id)
		VALUES ($1, NOW(), $2)
		RETURNING id, receipt_date, created_at`,
		receipt.RecipientName, receipt.CreatedByUserID)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}

	for _, line := range lines {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO receipt_items (receipt_id, item_id, quantity) VALUES ($1, $2, $3)",
			receipt.ID, line.ItemID, line.Quantity)
		if err != nil {
			return fmt.Errorf("failed to insert receipt line: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE items SET quantity_in_stock = quantity_in_stock - $1, updated_at = NOW() WHERE id = $2",
			line.Quantity, line.ItemID)
		if err != nil {
			return fmt.Errorf("failed to decrement stock: %w", err)
		}
	}

	return tx.Commit()
}

// GetReceiptByID retrieves a receipt by ID
func (s *Store) GetReceiptByID(ctx context.Context, id int64) (*models.Receipt, error) {
	var receipt models.Receipt
	err := s.db.GetContext(ctx, &receipt, "SELECT * FROM receipts WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// GetReceiptItems retrieves all lines for a receipt
func (s *Store) GetReceiptItems(ctx context.Context, receiptID int64) ([]models.ReceiptItem, error) {
	items := []models.ReceiptItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM receipt_items WHERE receipt_id = $1 ORDER BY id", receiptID)
	return items, err
}

// ReceiptFilter narrows receipt listings
type ReceiptFilter struct {
	FromDate   *time.Time
	ToDate     *time.Time
	SearchTerm string
	ItemID     int64
}

// ListReceipts retrieves receipts newest-first, optionally filtered
func (s *Store) ListReceipts(ctx context.Context, filter ReceiptFilter) ([]models.Receipt, error) {
	query := `
		SELECT DISTINCT r.* FROM receipts r
		LEFT JOIN receipt_items ri ON ri.receipt_id = r.id
		LEFT JOIN items i ON i.id = ri.item_id
		WHERE 1=1`
	args := []interface{}{}

	if filter.FromDate != nil {
		args = append(args, *filter.FromDate)
		query += fmt.Sprintf(" AND r.receipt_date >= $%d", len(args))
	}
	if filter.ToDate != nil {
		args = append(args, filter.ToDate.AddDate(0, 0, 1))
		query += fmt.Sprintf(" AND r.receipt_date < $%d", len(args))
	}
	if filter.SearchTerm != "" {
		args = append(args, "%"+filter.SearchTerm+"%")
		query += fmt.Sprintf(" AND (r.recipient_name ILIKE $%d OR i.name ILIKE $%d)", len(args), len(args))
	}
	if filter.ItemID != 0 {
		args = append(args, filter.ItemID)
		query += fmt.Sprintf(" AND ri.item_id = $%d", len(args))
	}

	query += " ORDER BY r.receipt_date DESC"

	receipts := []models.Receipt{}
	err := s.db.SelectContext(ctx, &receipts, query, args...)
	return receipts, err
}

// CancelReceiptTx marks a receipt cancelled and restores stock for each line,
// all in one transaction. Returns ErrNotFound if the receipt does not exist.
func (s *Store) CancelReceiptTx(ctx context.Context, receiptID int64, reason string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := restoreReceiptStock(ctx, tx, receiptID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE receipts
		SET is_cancelled = TRUE, cancellation_reason = $1, cancelled_at = NOW()
		WHERE id = $2`, reason, receiptID)
	if err != nil {
		return fmt.Errorf("failed to mark receipt cancelled: %w", err)
	}

	return tx.Commit()
}

// DeleteReceiptTx removes a receipt and its lines, restoring stock first
// unless the receipt was already cancelled (cancellation already restored it).
func (s *Store) DeleteReceiptTx(ctx context.Context, receiptID int64, restoreStock bool) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if restoreStock {
		if err := restoreReceiptStock(ctx, tx, receiptID); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM receipts WHERE id = $1", receiptID)
	if err != nil {
		return fmt.Errorf("failed to delete receipt: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

func restoreReceiptStock(ctx context.Context, tx *sqlx.Tx, receiptID int64) error {
	lines := []models.ReceiptItem{}
	err := tx.SelectContext(ctx, &lines,
		"SELECT * FROM receipt_items WHERE receipt_id = $1", receiptID)
	if err != nil {
		return fmt.Errorf("failed to load receipt lines: %w", err)
	}

	for _, line := range lines {
		_, err = tx.ExecContext(ctx,
			"UPDATE items SET quantity_in_stock = quantity_in_stock + $1, updated_at = NOW() WHERE id = $2",
			line.Quantity, line.ItemID)
		if err != nil {
			return fmt.Errorf("failed to restore stock: %w", err)
		}
	}
	return nil
}
