package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillStatus is the aggregate state of a bill, derived from its splits.
type BillStatus string

const (
	// StatusPending means at least one participant has not responded yet
	// and nobody has rejected.
	StatusPending BillStatus = "pending"

	// StatusReady means every participant responded and nobody rejected.
	StatusReady BillStatus = "ready"

	// StatusCompleted means the bill has been settled. It is only reached
	// through the external payment path, never through derivation.
	StatusCompleted BillStatus = "completed"

	// StatusFailed means at least one participant rejected their split.
	StatusFailed BillStatus = "failed"
)

// Bill represents a shared expense split among participants.
// Status is a pure function of the bill's splits; request handlers must
// never write it directly.
type Bill struct {
	// ID is the unique identifier for the bill (UUID format).
	ID string

	// Name is the human-readable name for the bill.
	Name string

	// CreatorID is the user who created the bill.
	CreatorID string

	// TotalAmount is the full bill amount with two decimal places.
	// At creation time the split amounts sum to this value within one cent.
	TotalAmount decimal.Decimal

	// Status is the derived aggregate state.
	Status BillStatus

	// CreatedAt is when the bill was created.
	CreatedAt time.Time
}
