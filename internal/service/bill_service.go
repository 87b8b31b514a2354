// Package service implements the bill mutation service: the four atomic
// operations on bills and splits, the status derivation that follows each
// mutation, and the hand-off to snapshot fan-out.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xinyao2002/payfrontwithback/internal/calculator"
	"github.com/xinyao2002/payfrontwithback/internal/metrics"
	"github.com/xinyao2002/payfrontwithback/internal/models"
	"github.com/xinyao2002/payfrontwithback/internal/storage"
)

// Publisher receives the id of a bill whose persisted state changed.
// Implementations must be fire-and-forget: the mutation is durable before
// publishing starts and a publish failure never fails the mutation.
type Publisher interface {
	BillChanged(ctx context.Context, billID string)
}

// SplitRequest is one requested participant share at bill creation.
type SplitRequest struct {
	UserID string
	Amount decimal.Decimal
}

// BillService exposes the atomic bill/split mutations. Every mutation runs
// in one serializable transaction holding a lock on the affected split row,
// re-derives the bill status inside that transaction, and publishes a fresh
// snapshot after commit.
type BillService struct {
	store     storage.Store
	publisher Publisher
	now       func() time.Time
}

// NewBillService creates a bill service over the given store and publisher.
func NewBillService(store storage.Store, publisher Publisher) *BillService {
	return &BillService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// CreateBill validates the requested splits, persists the bill (pending)
// and one split per participant in a single transaction, and publishes the
// first snapshot.
//
// The requested amounts must sum to the total within one cent. When they
// are additionally all equal the request is treated as an equal split and
// the amounts are recomputed so they sum exactly to the total: whole-cent
// base shares with the leftover cents going to the first participants in
// request order.
func (s *BillService) CreateBill(ctx context.Context, creatorID, name string, total decimal.Decimal, requests []SplitRequest) (*models.Bill, error) {
	bill, err := s.createBill(ctx, creatorID, name, total, requests)
	if err != nil {
		metrics.Mutations.WithLabelValues("create_bill", metrics.OutcomeError).Inc()
		return nil, err
	}
	metrics.Mutations.WithLabelValues("create_bill", metrics.OutcomeOK).Inc()
	// The mutation is durable; a caller disconnect between commit and
	// fan-out must not lose the broadcast.
	s.publisher.BillChanged(context.WithoutCancel(ctx), bill.ID)
	return bill, nil
}

func (s *BillService) createBill(ctx context.Context, creatorID, name string, total decimal.Decimal, requests []SplitRequest) (*models.Bill, error) {
	if name == "" {
		return nil, validationf("bill name required")
	}
	if len(requests) == 0 {
		return nil, validationf("at least one participant required")
	}
	if !total.IsPositive() {
		return nil, validationf("total amount must be positive")
	}

	amounts := make([]decimal.Decimal, len(requests))
	seen := make(map[string]bool, len(requests))
	for i, r := range requests {
		if seen[r.UserID] {
			return nil, validationf("participant %s appears more than once", r.UserID)
		}
		seen[r.UserID] = true
		if !r.Amount.IsPositive() {
			return nil, validationf("split amount must be positive")
		}
		if _, err := s.store.GetUserByID(ctx, r.UserID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, validationf("participant %s is not a registered user", r.UserID)
			}
			return nil, err
		}
		amounts[i] = r.Amount
	}

	// The requested amounts must reconcile with the total even when they
	// are equal and about to be recomputed; an equal request whose sum is
	// off is a bad request, not an invitation to overwrite it.
	if err := calculator.ValidateSplitSum(total, amounts); err != nil {
		return nil, validationf("%v", err)
	}
	if calculator.EqualAmounts(amounts) {
		// Equal split: recompute so the cents add up exactly.
		recomputed, err := calculator.DistributeEvenly(total, len(requests))
		if err != nil {
			return nil, validationf("%v", err)
		}
		amounts = recomputed
	}

	bill := &models.Bill{
		Name:        name,
		CreatorID:   creatorID,
		TotalAmount: total,
		Status:      models.StatusPending,
		CreatedAt:   s.now().UTC(),
	}
	splits := make([]*models.Split, len(requests))
	for i, r := range requests {
		splits[i] = &models.Split{
			UserID: r.UserID,
			Amount: amounts[i],
		}
	}

	if err := s.store.CreateBill(ctx, bill, splits); err != nil {
		slog.Error("CreateBill failed", "creator_id", creatorID, "error", err)
		return nil, err
	}
	slog.Info("Bill created", "bill_id", bill.ID, "creator_id", creatorID, "participants", len(splits))
	return bill, nil
}

// AcceptSplit records the participant's acceptance of their share.
// Returns storage.ErrNotFound if the user has no split on the bill.
func (s *BillService) AcceptSplit(ctx context.Context, userID, billID string) error {
	return s.respond(ctx, "accept_split", userID, billID, true)
}

// RejectSplit records the participant's rejection of their share.
// Returns storage.ErrNotFound if the user has no split on the bill.
func (s *BillService) RejectSplit(ctx context.Context, userID, billID string) error {
	return s.respond(ctx, "reject_split", userID, billID, false)
}

func (s *BillService) respond(ctx context.Context, op, userID, billID string, agree bool) error {
	err := s.store.MutateSplit(ctx, billID, userID, func(tx storage.SplitTx) error {
		if err := tx.SetResponse(agree, s.now()); err != nil {
			return err
		}
		return s.derive(tx)
	})
	if err != nil {
		metrics.Mutations.WithLabelValues(op, metrics.OutcomeError).Inc()
		slog.Error("Split response failed", "op", op, "bill_id", billID, "user_id", userID, "error", err)
		return err
	}
	metrics.Mutations.WithLabelValues(op, metrics.OutcomeOK).Inc()
	slog.Info("Split response recorded", "op", op, "bill_id", billID, "user_id", userID)
	s.publisher.BillChanged(context.WithoutCancel(ctx), billID)
	return nil
}

// AmendAmount updates the participant's own share. The bill-level total is
// deliberately not re-validated: an amendment is participant-local and may
// leave the split sum out of step with the total until reconciled.
func (s *BillService) AmendAmount(ctx context.Context, userID, billID string, amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Mul(decimal.NewFromInt(100)).IsInteger() {
		metrics.Mutations.WithLabelValues("amend_amount", metrics.OutcomeError).Inc()
		return validationf("amount must be a positive value with at most two decimal places")
	}

	err := s.store.MutateSplit(ctx, billID, userID, func(tx storage.SplitTx) error {
		if err := tx.SetAmount(amount); err != nil {
			return err
		}
		return s.derive(tx)
	})
	if err != nil {
		metrics.Mutations.WithLabelValues("amend_amount", metrics.OutcomeError).Inc()
		slog.Error("AmendAmount failed", "bill_id", billID, "user_id", userID, "error", err)
		return err
	}
	metrics.Mutations.WithLabelValues("amend_amount", metrics.OutcomeOK).Inc()
	slog.Info("Split amount amended", "bill_id", billID, "user_id", userID, "amount", amount.StringFixed(2))
	s.publisher.BillChanged(context.WithoutCancel(ctx), billID)
	return nil
}

// derive runs the status derivation trigger inside the mutation
// transaction: recompute the aggregate status from the consistent snapshot
// of splits and persist it only when it changed. The caller publishes a
// freshly re-read snapshot after commit regardless of whether the status
// moved, because split-level fields must reach observers either way.
func (s *BillService) derive(tx storage.SplitTx) error {
	bill, err := tx.Bill()
	if err != nil {
		return err
	}
	splits, err := tx.Splits()
	if err != nil {
		return err
	}
	next, changed := DeriveStatus(bill.Status, splits)
	if !changed {
		return nil
	}
	slog.Debug("Bill status derived", "bill_id", bill.ID, "from", bill.Status, "to", next)
	return tx.SetBillStatus(next)
}
