package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xinyao2002/payfrontwithback/internal/models"
	"github.com/xinyao2002/payfrontwithback/internal/storage"
)

const splitColumns = `sp.id, sp.bill_id, sp.user_id, u.name, sp.amount, sp.agree, sp.paid, sp.responded_at, sp.paid_at, sp.position`

// GetSplits returns the bill's splits in insertion order.
func (s *SQLiteStore) GetSplits(ctx context.Context, billID string) ([]*models.Split, error) {
	return getSplits(ctx, s.db, billID)
}

func getSplits(ctx context.Context, q querier, billID string) ([]*models.Split, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+splitColumns+` FROM splits sp
		 JOIN users u ON u.id = sp.user_id
		 WHERE sp.bill_id = ?
		 ORDER BY sp.position`,
		billID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get splits: %w", err)
	}
	defer rows.Close()

	var splits []*models.Split
	for rows.Next() {
		split, err := scanSplit(rows)
		if err != nil {
			return nil, err
		}
		splits = append(splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return splits, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSplit(row scanner) (*models.Split, error) {
	split := &models.Split{}
	var amount string
	var agree sql.NullBool
	var paid int
	var respondedAt, paidAt sql.NullInt64
	err := row.Scan(&split.ID, &split.BillID, &split.UserID, &split.UserName,
		&amount, &agree, &paid, &respondedAt, &paidAt, &split.Position)
	if err != nil {
		return nil, fmt.Errorf("failed to scan split: %w", err)
	}

	split.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse split amount %q: %w", amount, err)
	}
	if agree.Valid {
		v := agree.Bool
		split.Agree = &v
	}
	split.Paid = paid != 0
	if respondedAt.Valid {
		t := time.Unix(respondedAt.Int64, 0).UTC()
		split.RespondedAt = &t
	}
	if paidAt.Valid {
		t := time.Unix(paidAt.Int64, 0).UTC()
		split.PaidAt = &t
	}
	return split, nil
}

// splitTx implements storage.SplitTx over a live SQLite transaction.
type splitTx struct {
	ctx   context.Context
	tx    *sql.Tx
	split *models.Split
}

var _ storage.SplitTx = (*splitTx)(nil)

// MutateSplit locks the (billID, userID) split row inside one transaction
// and runs fn against it. The transaction begins immediate, so racing
// mutations of the same split queue on the write lock here and each fn
// observes the previous commit.
func (s *SQLiteStore) MutateSplit(ctx context.Context, billID, userID string, fn func(tx storage.SplitTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+splitColumns+` FROM splits sp
		 JOIN users u ON u.id = sp.user_id
		 WHERE sp.bill_id = ? AND sp.user_id = ?`,
		billID, userID,
	)
	split, err := scanSplit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return err
	}

	if err := fn(&splitTx{ctx: ctx, tx: tx, split: split}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Split returns the locked split row as last written in this transaction.
func (t *splitTx) Split() *models.Split {
	return t.split
}

// SetResponse records the participant's accept/reject decision.
func (t *splitTx) SetResponse(agree bool, at time.Time) error {
	_, err := t.tx.ExecContext(t.ctx,
		"UPDATE splits SET agree = ?, responded_at = ? WHERE id = ?",
		agree, at.Unix(), t.split.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update split response: %w", err)
	}
	t.split.Agree = &agree
	respondedAt := at.UTC()
	t.split.RespondedAt = &respondedAt
	return nil
}

// SetAmount updates the participant's share.
func (t *splitTx) SetAmount(amount decimal.Decimal) error {
	_, err := t.tx.ExecContext(t.ctx,
		"UPDATE splits SET amount = ? WHERE id = ?",
		amount.StringFixed(2), t.split.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update split amount: %w", err)
	}
	t.split.Amount = amount
	return nil
}

// Bill returns the owning bill as currently persisted.
func (t *splitTx) Bill() (*models.Bill, error) {
	return getBill(t.ctx, t.tx, t.split.BillID)
}

// Splits returns all splits of the owning bill in insertion order.
func (t *splitTx) Splits() ([]*models.Split, error) {
	return getSplits(t.ctx, t.tx, t.split.BillID)
}

// SetBillStatus persists a derived bill status.
func (t *splitTx) SetBillStatus(status models.BillStatus) error {
	_, err := t.tx.ExecContext(t.ctx,
		"UPDATE bills SET status = ? WHERE id = ?",
		string(status), t.split.BillID,
	)
	if err != nil {
		return fmt.Errorf("failed to update bill status: %w", err)
	}
	return nil
}
