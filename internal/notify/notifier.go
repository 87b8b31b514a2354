// Package notify builds canonical bill snapshots and fans them out to the
// topic registry.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/xinyao2002/payfrontwithback/internal/metrics"
	"github.com/xinyao2002/payfrontwithback/internal/pubsub"
	"github.com/xinyao2002/payfrontwithback/internal/storage"
)

// Notifier publishes bill snapshots to the bill's own topic and to every
// participant's bill-list topic.
type Notifier struct {
	store storage.Store
	hub   *pubsub.Hub
}

// New creates a notifier over the given store and hub.
func New(store storage.Store, hub *pubsub.Hub) *Notifier {
	return &Notifier{store: store, hub: hub}
}

// BillChanged builds one snapshot of the bill from current persisted state
// and publishes the identical frame to the bill topic and to each
// participant's bill-list topic.
//
// Fan-out is fire-and-forget relative to the mutation: the mutation is
// already durable when this runs, so failures here are logged and
// swallowed, never surfaced to the mutating caller. Delivery is
// best-effort, at-most-once per connected subscriber.
func (n *Notifier) BillChanged(ctx context.Context, billID string) {
	snap, err := Snapshot(ctx, n.store, billID)
	if err != nil {
		slog.Error("Fan-out snapshot build failed", "bill_id", billID, "error", err)
		return
	}
	frame, err := json.Marshal(snap)
	if err != nil {
		slog.Error("Fan-out snapshot encode failed", "bill_id", billID, "error", err)
		return
	}

	delivered, dropped := n.hub.Publish(pubsub.BillTopic(billID), frame)
	for _, split := range snap.Splits {
		d, dr := n.hub.Publish(pubsub.UserBillsTopic(split.UserID), frame)
		delivered += d
		dropped += dr
	}

	metrics.FanoutPublished.Add(float64(delivered))
	if dropped > 0 {
		metrics.FanoutDropped.Add(float64(dropped))
		slog.Warn("Fan-out dropped frames on full buffers", "bill_id", billID, "dropped", dropped)
	}
	slog.Debug("Bill snapshot published", "bill_id", billID, "status", snap.Status, "delivered", delivered)
}
