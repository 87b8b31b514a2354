// Package realtime implements the websocket gateway: per-connection
// sessions that subscribe to snapshot topics and forward published frames
// to their remote peer.
//
// Two session kinds exist. A bill-room session watches one bill, requires
// the caller to be a participant on it, and accepts the closed inbound
// command set (accept, reject, update_amount). A bill-list session watches
// all of a user's bills, requires only authentication, and is read-only.
// Both send a fresh full snapshot on connect, which supersedes any frames
// missed while disconnected.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/xinyao2002/payfrontwithback/internal/metrics"
	"github.com/xinyao2002/payfrontwithback/internal/middleware"
	"github.com/xinyao2002/payfrontwithback/internal/notify"
	"github.com/xinyao2002/payfrontwithback/internal/pubsub"
	"github.com/xinyao2002/payfrontwithback/internal/service"
	"github.com/xinyao2002/payfrontwithback/internal/storage"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size. Commands are tiny.
	maxMessageSize = 512
)

// Gateway upgrades authenticated HTTP requests into realtime sessions.
type Gateway struct {
	bills    *service.BillService
	store    storage.Store
	hub      *pubsub.Hub
	upgrader websocket.Upgrader
}

// NewGateway creates a gateway over the given mutation service, store and hub.
func NewGateway(bills *service.BillService, store storage.Store, hub *pubsub.Hub) *Gateway {
	return &Gateway{
		bills: bills,
		store: store,
		hub:   hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The browser clients hit the API cross-origin; auth is the
			// JWT, not the Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeBill handles GET /ws/bills/{billID}: the bill-room session.
// Non-participants are refused before the upgrade, so a refused caller
// never receives a frame.
func (g *Gateway) ServeBill(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	billID := chi.URLParam(r, "billID")

	member, err := g.store.HasSplit(r.Context(), billID, userID)
	if err != nil {
		slog.Error("Bill session membership check failed", "bill_id", billID, "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !member {
		http.Error(w, "not a participant on this bill", http.StatusForbidden)
		return
	}

	frame, err := g.billFrame(r.Context(), billID)
	if err != nil {
		slog.Error("Bill session snapshot failed", "bill_id", billID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "bill_id", billID, "error", err)
		return
	}

	sub := g.hub.Subscribe(pubsub.BillTopic(billID))
	metrics.ActiveSessions.WithLabelValues("bill").Inc()
	slog.Info("Bill session subscribed", "bill_id", billID, "user_id", userID)

	defer func() {
		g.hub.Unsubscribe(sub)
		conn.Close()
		metrics.ActiveSessions.WithLabelValues("bill").Dec()
		slog.Info("Bill session closed", "bill_id", billID, "user_id", userID)
	}()

	// Current state first, then live frames.
	if err := writeFrame(conn, frame); err != nil {
		return
	}
	go writePump(conn, sub)

	// Disconnect must not cancel a mutation already in flight: commands
	// dispatch on a context detached from the request's cancellation, so a
	// mutation started just before the peer vanished still commits and
	// fans out.
	g.readCommands(context.WithoutCancel(r.Context()), conn, userID, billID)
}

// ServeList handles GET /ws/bills: the user bill-list session. Read-only;
// inbound data frames are drained and ignored.
func (g *Gateway) ServeList(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	// A snapshot failure degrades to an empty list; the session stays up.
	frame, err := g.listFrame(r.Context(), userID)
	if err != nil {
		slog.Error("List session snapshot failed, sending empty list", "user_id", userID, "error", err)
		frame = []byte("[]")
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	sub := g.hub.Subscribe(pubsub.UserBillsTopic(userID))
	metrics.ActiveSessions.WithLabelValues("list").Inc()
	slog.Info("List session subscribed", "user_id", userID)

	defer func() {
		g.hub.Unsubscribe(sub)
		conn.Close()
		metrics.ActiveSessions.WithLabelValues("list").Dec()
		slog.Info("List session closed", "user_id", userID)
	}()

	if err := writeFrame(conn, frame); err != nil {
		return
	}
	go writePump(conn, sub)

	drain(conn)
}

// billFrame builds the encoded snapshot of one bill.
func (g *Gateway) billFrame(ctx context.Context, billID string) ([]byte, error) {
	snap, err := notify.Snapshot(ctx, g.store, billID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snap)
}

// listFrame builds the encoded snapshot list of every bill the user is on.
func (g *Gateway) listFrame(ctx context.Context, userID string) ([]byte, error) {
	billIDs, err := g.store.ListBillIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	snaps := make([]*notify.BillSnapshot, 0, len(billIDs))
	for _, id := range billIDs {
		snap, err := notify.Snapshot(ctx, g.store, id)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return json.Marshal(snaps)
}

// readCommands decodes inbound frames and forwards them synchronously into
// the mutation service under the connection's authenticated identity.
// Commands produce no direct reply; observers see the result through the
// broadcast triggered by the mutation. An unknown or malformed command is a
// protocol error and closes the session.
func (g *Gateway) readCommands(ctx context.Context, conn *websocket.Conn, userID, billID string) {
	setupReader(conn)
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Bill session read error", "bill_id", billID, "user_id", userID, "error", err)
			}
			return
		}

		cmd, err := decodeCommand(frame)
		if err != nil {
			slog.Warn("Rejecting bad command frame", "bill_id", billID, "user_id", userID, "error", err)
			msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}

		g.dispatch(ctx, cmd, userID, billID)
	}
}

// dispatch forwards one command into the mutation service. Mutation errors
// do not tear the session down: the command simply produces no broadcast.
func (g *Gateway) dispatch(ctx context.Context, cmd Command, userID, billID string) {
	var err error
	switch cmd.Type {
	case CommandAccept:
		err = g.bills.AcceptSplit(ctx, userID, billID)
	case CommandReject:
		err = g.bills.RejectSplit(ctx, userID, billID)
	case CommandUpdateAmount:
		err = g.bills.AmendAmount(ctx, userID, billID, *cmd.Amount)
	}
	if err != nil {
		slog.Warn("Realtime command failed", "type", cmd.Type, "bill_id", billID, "user_id", userID, "error", err)
	}
}

func setupReader(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// drain reads and discards inbound frames until the peer goes away,
// keeping control-frame processing alive for the read-only session.
func drain(conn *websocket.Conn) {
	setupReader(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeFrame sends one data frame with the write deadline applied.
func writeFrame(conn *websocket.Conn, frame []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// writePump forwards published frames to the peer and keeps the connection
// alive with pings. It exits when the subscription is closed or a write
// fails; the read side notices and tears the session down.
func writePump(conn *websocket.Conn, sub *pubsub.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-sub.Messages():
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := writeFrame(conn, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
