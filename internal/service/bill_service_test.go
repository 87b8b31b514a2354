package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xinyao2002/payfrontwithback/internal/models"
	"github.com/xinyao2002/payfrontwithback/internal/storage"
	"github.com/xinyao2002/payfrontwithback/internal/storage/sqlite"
)

// recordingPublisher captures BillChanged calls instead of fanning out.
type recordingPublisher struct {
	mu      sync.Mutex
	billIDs []string
	ctxs    []context.Context
}

func (p *recordingPublisher) BillChanged(ctx context.Context, billID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.billIDs = append(p.billIDs, billID)
	p.ctxs = append(p.ctxs, ctx)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.billIDs)
}

func (p *recordingPublisher) lastCtx() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctxs[len(p.ctxs)-1]
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func setup(t *testing.T, userNames ...string) (*BillService, storage.Store, *recordingPublisher, []*models.User) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	users := make([]*models.User, len(userNames))
	for i, name := range userNames {
		users[i] = models.NewUser(name+"@example.com", name, "hash")
		if err := store.CreateUser(context.Background(), users[i]); err != nil {
			t.Fatalf("failed to create user %s: %v", name, err)
		}
	}

	pub := &recordingPublisher{}
	return NewBillService(store, pub), store, pub, users
}

func equalRequests(users []*models.User, amount decimal.Decimal) []SplitRequest {
	reqs := make([]SplitRequest, len(users))
	for i, u := range users {
		reqs[i] = SplitRequest{UserID: u.ID, Amount: amount}
	}
	return reqs
}

func TestCreateBill(t *testing.T) {
	ctx := context.Background()

	t.Run("equal split distributes leftover cents to the first participants", func(t *testing.T) {
		svc, store, pub, users := setup(t, "alice", "bob", "carol")

		bill, err := svc.CreateBill(ctx, users[0].ID, "Dinner", dec(t, "10.00"), equalRequests(users, dec(t, "3.33")))
		if err != nil {
			t.Fatalf("CreateBill failed: %v", err)
		}

		splits, err := store.GetSplits(ctx, bill.ID)
		if err != nil {
			t.Fatalf("GetSplits failed: %v", err)
		}
		want := []string{"3.34", "3.33", "3.33"}
		sum := decimal.Zero
		for i, split := range splits {
			if split.Amount.StringFixed(2) != want[i] {
				t.Errorf("split[%d] = %s, want %s", i, split.Amount.StringFixed(2), want[i])
			}
			sum = sum.Add(split.Amount)
		}
		if !sum.Equal(dec(t, "10.00")) {
			t.Errorf("splits sum to %s, want 10.00", sum.StringFixed(2))
		}
		if bill.Status != models.StatusPending {
			t.Errorf("Status = %s, want pending", bill.Status)
		}
		if pub.count() != 1 {
			t.Errorf("publisher called %d times, want 1", pub.count())
		}
	})

	t.Run("unequal split with mismatched sum persists nothing", func(t *testing.T) {
		svc, store, pub, users := setup(t, "alice", "bob")

		_, err := svc.CreateBill(ctx, users[0].ID, "Broken", dec(t, "10.00"), []SplitRequest{
			{UserID: users[0].ID, Amount: dec(t, "5.00")},
			{UserID: users[1].ID, Amount: dec(t, "4.50")},
		})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("CreateBill error = %v, want ErrValidation", err)
		}

		ids, err := store.ListBillIDsForUser(ctx, users[0].ID)
		if err != nil {
			t.Fatalf("ListBillIDsForUser failed: %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("found %d bills after failed creation, want 0", len(ids))
		}
		if pub.count() != 0 {
			t.Errorf("publisher called %d times after failed creation, want 0", pub.count())
		}
	})

	t.Run("equal amounts that do not sum to the total are rejected", func(t *testing.T) {
		svc, store, _, users := setup(t, "alice", "bob", "carol")

		// 3 x 5.00 against a 10.00 total must fail validation, not be
		// silently recomputed into an even split.
		_, err := svc.CreateBill(ctx, users[0].ID, "Off", dec(t, "10.00"), equalRequests(users, dec(t, "5.00")))
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("CreateBill error = %v, want ErrValidation", err)
		}

		ids, err := store.ListBillIDsForUser(ctx, users[0].ID)
		if err != nil {
			t.Fatalf("ListBillIDsForUser failed: %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("found %d bills after failed creation, want 0", len(ids))
		}
	})

	t.Run("unknown participant is rejected", func(t *testing.T) {
		svc, _, _, users := setup(t, "alice")

		_, err := svc.CreateBill(ctx, users[0].ID, "Ghost", dec(t, "10.00"), []SplitRequest{
			{UserID: users[0].ID, Amount: dec(t, "5.00")},
			{UserID: "no-such-user", Amount: dec(t, "5.00")},
		})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("CreateBill error = %v, want ErrValidation", err)
		}
	})

	t.Run("unequal split within one cent is accepted as given", func(t *testing.T) {
		svc, store, _, users := setup(t, "alice", "bob")

		bill, err := svc.CreateBill(ctx, users[0].ID, "Uneven", dec(t, "10.00"), []SplitRequest{
			{UserID: users[0].ID, Amount: dec(t, "7.00")},
			{UserID: users[1].ID, Amount: dec(t, "3.00")},
		})
		if err != nil {
			t.Fatalf("CreateBill failed: %v", err)
		}
		splits, err := store.GetSplits(ctx, bill.ID)
		if err != nil {
			t.Fatalf("GetSplits failed: %v", err)
		}
		if splits[0].Amount.StringFixed(2) != "7.00" || splits[1].Amount.StringFixed(2) != "3.00" {
			t.Errorf("amounts = %s, %s; want 7.00, 3.00", splits[0].Amount, splits[1].Amount)
		}
	})

	t.Run("validation failures", func(t *testing.T) {
		svc, _, _, users := setup(t, "alice", "bob")

		tests := []struct {
			name     string
			billName string
			total    string
			requests []SplitRequest
		}{
			{"empty name", "", "10.00", equalRequests(users, dec(t, "5.00"))},
			{"no participants", "Bill", "10.00", nil},
			{"zero total", "Bill", "0.00", equalRequests(users, dec(t, "0.00"))},
			{"negative amount", "Bill", "10.00", []SplitRequest{
				{UserID: users[0].ID, Amount: dec(t, "15.00")},
				{UserID: users[1].ID, Amount: dec(t, "-5.00")},
			}},
			{"duplicate participant", "Bill", "10.00", []SplitRequest{
				{UserID: users[0].ID, Amount: dec(t, "6.00")},
				{UserID: users[0].ID, Amount: dec(t, "4.00")},
			}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.CreateBill(ctx, users[0].ID, tt.billName, dec(t, tt.total), tt.requests)
				if !errors.Is(err, ErrValidation) {
					t.Errorf("CreateBill error = %v, want ErrValidation", err)
				}
			})
		}
	})
}

func TestSplitResponses(t *testing.T) {
	ctx := context.Background()

	t.Run("all accepts make the bill ready", func(t *testing.T) {
		svc, store, pub, users := setup(t, "alice", "bob")
		bill, err := svc.CreateBill(ctx, users[0].ID, "Lunch", dec(t, "20.00"), equalRequests(users, dec(t, "10.00")))
		if err != nil {
			t.Fatalf("CreateBill failed: %v", err)
		}

		if err := svc.AcceptSplit(ctx, users[0].ID, bill.ID); err != nil {
			t.Fatalf("AcceptSplit(alice) failed: %v", err)
		}
		got, _ := store.GetBill(ctx, bill.ID)
		if got.Status != models.StatusPending {
			t.Errorf("Status after one accept = %s, want pending", got.Status)
		}

		if err := svc.AcceptSplit(ctx, users[1].ID, bill.ID); err != nil {
			t.Fatalf("AcceptSplit(bob) failed: %v", err)
		}
		got, _ = store.GetBill(ctx, bill.ID)
		if got.Status != models.StatusReady {
			t.Errorf("Status after all accepts = %s, want ready", got.Status)
		}

		// create + two responses
		if pub.count() != 3 {
			t.Errorf("publisher called %d times, want 3", pub.count())
		}
	})

	t.Run("one rejection fails the bill", func(t *testing.T) {
		svc, store, _, users := setup(t, "alice", "bob")
		bill, err := svc.CreateBill(ctx, users[0].ID, "Lunch", dec(t, "20.00"), equalRequests(users, dec(t, "10.00")))
		if err != nil {
			t.Fatalf("CreateBill failed: %v", err)
		}

		if err := svc.AcceptSplit(ctx, users[0].ID, bill.ID); err != nil {
			t.Fatalf("AcceptSplit failed: %v", err)
		}
		if err := svc.RejectSplit(ctx, users[1].ID, bill.ID); err != nil {
			t.Fatalf("RejectSplit failed: %v", err)
		}

		got, _ := store.GetBill(ctx, bill.ID)
		if got.Status != models.StatusFailed {
			t.Errorf("Status = %s, want failed", got.Status)
		}
	})

	t.Run("responding to a bill you are not on returns NotFound", func(t *testing.T) {
		svc, _, _, users := setup(t, "alice", "bob", "mallory")
		bill, err := svc.CreateBill(ctx, users[0].ID, "Duo", dec(t, "10.00"), equalRequests(users[:2], dec(t, "5.00")))
		if err != nil {
			t.Fatalf("CreateBill failed: %v", err)
		}

		if err := svc.AcceptSplit(ctx, users[2].ID, bill.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("AcceptSplit error = %v, want ErrNotFound", err)
		}
	})

	t.Run("any interleaving of accepts and one reject converges to failed", func(t *testing.T) {
		svc, store, _, users := setup(t, "a", "b", "c", "d", "e", "f", "g", "h")
		bill, err := svc.CreateBill(ctx, users[0].ID, "Race", dec(t, "80.00"), equalRequests(users, dec(t, "10.00")))
		if err != nil {
			t.Fatalf("CreateBill failed: %v", err)
		}

		var wg sync.WaitGroup
		for i, user := range users {
			wg.Add(1)
			go func(i int, userID string) {
				defer wg.Done()
				var err error
				if i == 2 {
					err = svc.RejectSplit(ctx, userID, bill.ID)
				} else {
					err = svc.AcceptSplit(ctx, userID, bill.ID)
				}
				if err != nil {
					t.Errorf("response for user %d failed: %v", i, err)
				}
			}(i, user.ID)
		}
		wg.Wait()

		got, err := store.GetBill(ctx, bill.ID)
		if err != nil {
			t.Fatalf("GetBill failed: %v", err)
		}
		if got.Status != models.StatusFailed {
			t.Errorf("final Status = %s, want failed", got.Status)
		}

		splits, err := store.GetSplits(ctx, bill.ID)
		if err != nil {
			t.Fatalf("GetSplits failed: %v", err)
		}
		for _, split := range splits {
			if !split.Responded() {
				t.Errorf("split for %s lost its response", split.UserID)
			}
		}
	})

	t.Run("fan-out context survives caller cancellation", func(t *testing.T) {
		svc, _, pub, users := setup(t, "alice", "bob")

		reqCtx, cancel := context.WithCancel(context.Background())
		bill, err := svc.CreateBill(reqCtx, users[0].ID, "Lunch", dec(t, "20.00"), equalRequests(users, dec(t, "10.00")))
		if err != nil {
			t.Fatalf("CreateBill failed: %v", err)
		}
		if err := svc.AcceptSplit(reqCtx, users[1].ID, bill.ID); err != nil {
			t.Fatalf("AcceptSplit failed: %v", err)
		}
		cancel()

		if err := pub.lastCtx().Err(); err != nil {
			t.Errorf("published context carries cancellation: %v", err)
		}
	})
}

func TestAmendAmount(t *testing.T) {
	ctx := context.Background()

	t.Run("updates the participant's own share", func(t *testing.T) {
		svc, store, pub, users := setup(t, "alice", "bob")
		bill, err := svc.CreateBill(ctx, users[0].ID, "Lunch", dec(t, "20.00"), equalRequests(users, dec(t, "10.00")))
		if err != nil {
			t.Fatalf("CreateBill failed: %v", err)
		}

		if err := svc.AmendAmount(ctx, users[1].ID, bill.ID, dec(t, "12.50")); err != nil {
			t.Fatalf("AmendAmount failed: %v", err)
		}

		splits, _ := store.GetSplits(ctx, bill.ID)
		if !splits[1].Amount.Equal(dec(t, "12.50")) {
			t.Errorf("bob's amount = %s, want 12.50", splits[1].Amount)
		}
		// Amendment is participant-local: the bill total stands even
		// though the split sum no longer matches it.
		got, _ := store.GetBill(ctx, bill.ID)
		if !got.TotalAmount.Equal(dec(t, "20.00")) {
			t.Errorf("TotalAmount = %s, want 20.00", got.TotalAmount)
		}
		if pub.count() != 2 {
			t.Errorf("publisher called %d times, want 2", pub.count())
		}
	})

	t.Run("rejects non-positive and sub-cent amounts", func(t *testing.T) {
		svc, _, _, users := setup(t, "alice", "bob")
		bill, err := svc.CreateBill(ctx, users[0].ID, "Lunch", dec(t, "20.00"), equalRequests(users, dec(t, "10.00")))
		if err != nil {
			t.Fatalf("CreateBill failed: %v", err)
		}

		for _, amount := range []string{"0.00", "-1.00", "3.333"} {
			if err := svc.AmendAmount(ctx, users[0].ID, bill.ID, dec(t, amount)); !errors.Is(err, ErrValidation) {
				t.Errorf("AmendAmount(%s) error = %v, want ErrValidation", amount, err)
			}
		}
	})
}
