package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/xinyao2002/payfrontwithback/internal/middleware"
	"github.com/xinyao2002/payfrontwithback/internal/models"
	"github.com/xinyao2002/payfrontwithback/internal/notify"
	"github.com/xinyao2002/payfrontwithback/internal/pubsub"
	"github.com/xinyao2002/payfrontwithback/internal/service"
	"github.com/xinyao2002/payfrontwithback/internal/storage"
	"github.com/xinyao2002/payfrontwithback/internal/storage/sqlite"
)

type gatewayHarness struct {
	store storage.Store
	bills *service.BillService
	srv   *httptest.Server
}

// identity middleware for tests: the caller names itself with the uid
// query parameter instead of presenting a token.
func testIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), middleware.UserIDKey, r.URL.Query().Get("uid"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newHarness(t *testing.T) *gatewayHarness {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hub := pubsub.NewHub()
	bills := service.NewBillService(store, notify.New(store, hub))
	gateway := NewGateway(bills, store, hub)

	r := chi.NewRouter()
	r.Use(testIdentity)
	r.Get("/ws/bills", gateway.ServeList)
	r.Get("/ws/bills/{billID}", gateway.ServeBill)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &gatewayHarness{store: store, bills: bills, srv: srv}
}

func (h *gatewayHarness) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := models.NewUser(name+"@example.com", name, "hash")
	require.NoError(t, h.store.CreateUser(context.Background(), u))
	return u
}

func (h *gatewayHarness) bill(t *testing.T, total string, users ...*models.User) *models.Bill {
	t.Helper()
	share := decimal.RequireFromString(total).Div(decimal.NewFromInt(int64(len(users)))).Round(2)
	reqs := make([]service.SplitRequest, len(users))
	for i, u := range users {
		reqs[i] = service.SplitRequest{UserID: u.ID, Amount: share}
	}
	bill, err := h.bills.CreateBill(context.Background(), users[0].ID, "Dinner", decimal.RequireFromString(total), reqs)
	require.NoError(t, err)
	return bill
}

func (h *gatewayHarness) dial(t *testing.T, path, uid string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + path + "?uid=" + uid
	return websocket.DefaultDialer.Dial(url, nil)
}

func readSnapshot(t *testing.T, conn *websocket.Conn) notify.BillSnapshot {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	var snap notify.BillSnapshot
	require.NoError(t, json.Unmarshal(frame, &snap))
	return snap
}

func TestBillSessionRefusesNonParticipant(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	mallory := h.user(t, "mallory")
	bill := h.bill(t, "10.00", alice, bob)

	conn, resp, err := h.dial(t, "/ws/bills/"+bill.ID, mallory.ID)
	require.Error(t, err)
	require.Nil(t, conn)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestBillSessionInitialSnapshot(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	bill := h.bill(t, "10.00", alice, bob)

	conn, _, err := h.dial(t, "/ws/bills/"+bill.ID, alice.ID)
	require.NoError(t, err)
	defer conn.Close()

	snap := readSnapshot(t, conn)
	require.Equal(t, bill.ID, snap.ID)
	require.Equal(t, models.StatusPending, snap.Status)
	require.Len(t, snap.Splits, 2)
	require.Equal(t, "alice", snap.Splits[0].User)
}

func TestBillSessionCommandsDriveStatus(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	bill := h.bill(t, "10.00", alice, bob)

	aliceConn, _, err := h.dial(t, "/ws/bills/"+bill.ID, alice.ID)
	require.NoError(t, err)
	defer aliceConn.Close()
	bobConn, _, err := h.dial(t, "/ws/bills/"+bill.ID, bob.ID)
	require.NoError(t, err)
	defer bobConn.Close()

	readSnapshot(t, aliceConn)
	readSnapshot(t, bobConn)

	require.NoError(t, aliceConn.WriteJSON(Command{Type: CommandAccept}))
	require.NoError(t, bobConn.WriteJSON(Command{Type: CommandAccept}))

	// Both accepts broadcast a frame; only the final state matters here.
	deadline := time.Now().Add(3 * time.Second)
	var last notify.BillSnapshot
	for time.Now().Before(deadline) {
		last = readSnapshot(t, aliceConn)
		if last.Status == models.StatusReady {
			break
		}
	}
	require.Equal(t, models.StatusReady, last.Status)
	for _, split := range last.Splits {
		require.NotNil(t, split.Agree)
		require.True(t, *split.Agree)
	}
}

func TestBillSessionRejectionFailsBill(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	bill := h.bill(t, "10.00", alice, bob)

	conn, _, err := h.dial(t, "/ws/bills/"+bill.ID, alice.ID)
	require.NoError(t, err)
	defer conn.Close()
	readSnapshot(t, conn)

	require.NoError(t, conn.WriteJSON(Command{Type: CommandReject}))

	snap := readSnapshot(t, conn)
	require.Equal(t, models.StatusFailed, snap.Status)
}

func TestBillSessionUnknownCommandClosesConnection(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.user(t, "alice"), h.user(t, "bob")
	bill := h.bill(t, "10.00", alice, bob)

	conn, _, err := h.dial(t, "/ws/bills/"+bill.ID, alice.ID)
	require.NoError(t, err)
	defer conn.Close()
	readSnapshot(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"settle"}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	require.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
}

func TestListSession(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	t.Run("starts with an empty list for a user with no bills", func(t *testing.T) {
		conn, _, err := h.dial(t, "/ws/bills", alice.ID)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)
		require.JSONEq(t, "[]", string(frame))
	})

	t.Run("receives a snapshot when a bill the user is on changes", func(t *testing.T) {
		conn, _, err := h.dial(t, "/ws/bills", alice.ID)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err = conn.ReadMessage()
		require.NoError(t, err)

		bill := h.bill(t, "10.00", alice, bob)

		snap := readSnapshot(t, conn)
		require.Equal(t, bill.ID, snap.ID)
	})

	t.Run("initial list carries existing bills", func(t *testing.T) {
		bill := h.bill(t, "24.00", bob, alice)

		conn, _, err := h.dial(t, "/ws/bills", bob.ID)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)

		var snaps []notify.BillSnapshot
		require.NoError(t, json.Unmarshal(frame, &snaps))
		require.NotEmpty(t, snaps)
		found := false
		for _, s := range snaps {
			if s.ID == bill.ID {
				found = true
			}
		}
		require.True(t, found)
	})
}
