package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Split represents one participant's share of a bill.
// A (bill, user) pair is unique: a participant appears in a bill exactly once.
type Split struct {
	// ID is the unique identifier for the split (UUID format).
	ID string

	// BillID is the owning bill.
	BillID string

	// UserID is the participant who owes this share.
	UserID string

	// UserName is the participant's display name, joined in from the users
	// table when the split is read. Not persisted on the split row itself.
	UserName string

	// Amount is this participant's share with two decimal places.
	Amount decimal.Decimal

	// Agree is the participant's response: nil until they respond,
	// true for accepted, false for rejected.
	Agree *bool

	// Paid reports whether this share has been settled.
	Paid bool

	// RespondedAt is when the participant accepted or rejected.
	RespondedAt *time.Time

	// PaidAt is when the share was settled.
	PaidAt *time.Time

	// Position is the insertion order within the bill. Snapshots list
	// splits in this order.
	Position int
}

// Responded reports whether the participant has accepted or rejected.
func (s *Split) Responded() bool {
	return s.Agree != nil
}

// Rejected reports whether the participant rejected their share.
func (s *Split) Rejected() bool {
	return s.Agree != nil && !*s.Agree
}
