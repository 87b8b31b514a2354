package notify

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xinyao2002/payfrontwithback/internal/models"
	"github.com/xinyao2002/payfrontwithback/internal/storage"
)

// Amount is a decimal that marshals as a quoted string with exactly two
// fraction digits, so "10.00" does not degrade to "10" on the wire.
type Amount struct {
	decimal.Decimal
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.StringFixed(2) + `"`), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	return a.Decimal.UnmarshalJSON(b)
}

// SplitSnapshot is the wire projection of one split.
// Agree is null until the participant responds.
type SplitSnapshot struct {
	User   string `json:"user"`
	UserID string `json:"user_id"`
	Amount Amount `json:"amount"`
	Agree  *bool  `json:"agree"`
	Paid   bool   `json:"paid"`
}

// BillSnapshot is the canonical read-only projection of a bill and its
// splits: the unit of realtime propagation. Splits are listed in insertion
// order. Amounts marshal as fixed two-decimal strings and time.Time as
// ISO 8601, matching the wire contract.
type BillSnapshot struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	TotalAmount Amount            `json:"total_amount"`
	Status      models.BillStatus `json:"status"`
	CreatedTime time.Time         `json:"created_time"`
	Splits      []SplitSnapshot   `json:"splits"`
}

// Snapshot builds the canonical projection of the bill from current
// persisted state. Returns storage.ErrNotFound if the bill is absent.
func Snapshot(ctx context.Context, store storage.Store, billID string) (*BillSnapshot, error) {
	bill, err := store.GetBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	splits, err := store.GetSplits(ctx, billID)
	if err != nil {
		return nil, err
	}

	snap := &BillSnapshot{
		ID:          bill.ID,
		Name:        bill.Name,
		TotalAmount: Amount{bill.TotalAmount},
		Status:      bill.Status,
		CreatedTime: bill.CreatedAt,
		Splits:      make([]SplitSnapshot, 0, len(splits)),
	}
	for _, split := range splits {
		snap.Splits = append(snap.Splits, SplitSnapshot{
			User:   split.UserName,
			UserID: split.UserID,
			Amount: Amount{split.Amount},
			Agree:  split.Agree,
			Paid:   split.Paid,
		})
	}
	return snap, nil
}
