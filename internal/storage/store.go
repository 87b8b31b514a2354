// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xinyao2002/payfrontwithback/internal/models"
)

// ErrNotFound is returned when a bill, split or user does not exist for the
// given identifier. Handlers map it to 404.
var ErrNotFound = errors.New("not found")

// Store defines the interface for bill storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	// CreateBill persists a bill and all of its splits in one transaction.
	// Split positions follow slice order. The bill.ID and split IDs are
	// populated by the store if unset.
	CreateBill(ctx context.Context, bill *models.Bill, splits []*models.Split) error

	// GetBill retrieves a bill by its ID.
	// Returns ErrNotFound if the bill does not exist.
	GetBill(ctx context.Context, billID string) (*models.Bill, error)

	// GetSplits returns the bill's splits in insertion order, with the
	// participant display names joined in.
	GetSplits(ctx context.Context, billID string) ([]*models.Split, error)

	// HasSplit reports whether the user is a participant on the bill.
	HasSplit(ctx context.Context, billID, userID string) (bool, error)

	// ListBillIDsForUser returns the IDs of every bill the user has a split
	// on, oldest first.
	ListBillIDsForUser(ctx context.Context, userID string) ([]string, error)

	// MutateSplit runs fn inside one serializable transaction holding an
	// exclusive lock on the (billID, userID) split row. Returns ErrNotFound
	// if no such split exists. The transaction commits only if fn returns
	// nil; concurrent mutations of the same split are strictly ordered.
	MutateSplit(ctx context.Context, billID, userID string, fn func(tx SplitTx) error) error

	// CreateUser persists a new user account.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail retrieves a user by email. Returns ErrNotFound if absent.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves a user by ID. Returns ErrNotFound if absent.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// ListUsers returns all registered users, oldest first.
	ListUsers(ctx context.Context) ([]*models.User, error)

	// Close releases any resources held by the store.
	Close() error
}

// SplitTx is the view of a split mutation transaction handed to
// Store.MutateSplit. Every read observes the transaction's consistent
// snapshot, so status derivation sees the mutated split.
type SplitTx interface {
	// Split returns the locked split row as last written in this transaction.
	Split() *models.Split

	// SetResponse records the participant's accept/reject decision.
	SetResponse(agree bool, at time.Time) error

	// SetAmount updates the participant's share.
	SetAmount(amount decimal.Decimal) error

	// Bill returns the owning bill as currently persisted.
	Bill() (*models.Bill, error)

	// Splits returns all splits of the owning bill in insertion order.
	Splits() ([]*models.Split, error)

	// SetBillStatus persists a derived bill status. Only the status
	// derivation step may call this.
	SetBillStatus(status models.BillStatus) error
}
