package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xinyao2002/payfrontwithback/internal/models"
	"github.com/xinyao2002/payfrontwithback/internal/storage"
)

// CreateBill persists a bill and its splits in one transaction.
func (s *SQLiteStore) CreateBill(ctx context.Context, bill *models.Bill, splits []*models.Split) error {
	// Generate IDs if not set
	if bill.ID == "" {
		bill.ID = uuid.New().String()
	}
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = time.Now().UTC()
	}
	if bill.Status == "" {
		bill.Status = models.StatusPending
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Insert bill
	_, err = tx.ExecContext(ctx,
		"INSERT INTO bills (id, name, creator_id, total_amount, status, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		bill.ID, bill.Name, bill.CreatorID, bill.TotalAmount.StringFixed(2), string(bill.Status), bill.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert bill: %w", err)
	}

	// Insert splits, positions following slice order
	for i, split := range splits {
		if split.ID == "" {
			split.ID = uuid.New().String()
		}
		split.BillID = bill.ID
		split.Position = i

		_, err = tx.ExecContext(ctx,
			"INSERT INTO splits (id, bill_id, user_id, amount, paid, position) VALUES (?, ?, ?, ?, 0, ?)",
			split.ID, bill.ID, split.UserID, split.Amount.StringFixed(2), i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetBill retrieves a bill by ID.
func (s *SQLiteStore) GetBill(ctx context.Context, billID string) (*models.Bill, error) {
	return getBill(ctx, s.db, billID)
}

// querier covers both *sql.DB and *sql.Tx so bill reads work inside and
// outside mutation transactions.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getBill(ctx context.Context, q querier, billID string) (*models.Bill, error) {
	bill := &models.Bill{}
	var total, status string
	var createdAt int64
	err := q.QueryRowContext(ctx,
		"SELECT id, name, creator_id, total_amount, status, created_at FROM bills WHERE id = ?",
		billID,
	).Scan(&bill.ID, &bill.Name, &bill.CreatorID, &total, &status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}

	bill.TotalAmount, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bill total %q: %w", total, err)
	}
	bill.Status = models.BillStatus(status)
	bill.CreatedAt = time.Unix(createdAt, 0).UTC()
	return bill, nil
}

// ListBillIDsForUser returns the IDs of every bill the user has a split on.
func (s *SQLiteStore) ListBillIDsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id FROM bills b
		 JOIN splits sp ON sp.bill_id = b.id
		 WHERE sp.user_id = ?
		 ORDER BY b.created_at, b.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills for user: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan bill id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bill ids: %w", err)
	}
	return ids, nil
}

// HasSplit reports whether the user is a participant on the bill.
func (s *SQLiteStore) HasSplit(ctx context.Context, billID, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM splits WHERE bill_id = ? AND user_id = ?",
		billID, userID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check split membership: %w", err)
	}
	return true, nil
}
