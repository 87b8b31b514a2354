// Package server provides the HTTP surface of the billing service: JSON
// REST endpoints for bill CRUD and split responses, plus the websocket
// routes served by the realtime gateway.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xinyao2002/payfrontwithback/internal/middleware"
	"github.com/xinyao2002/payfrontwithback/internal/notify"
	"github.com/xinyao2002/payfrontwithback/internal/service"
	"github.com/xinyao2002/payfrontwithback/internal/storage"
)

// Server wires the HTTP handlers to the mutation service and store.
type Server struct {
	store storage.Store
	bills *service.BillService
}

// NewServer creates the HTTP handler layer.
func NewServer(store storage.Store, bills *service.BillService) *Server {
	return &Server{store: store, bills: bills}
}

type createBillRequest struct {
	Name        string          `json:"name"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Splits      []struct {
		UserID string          `json:"user_id"`
		Amount decimal.Decimal `json:"amount"`
	} `json:"splits"`
}

// createBill handles POST /api/bills.
func (s *Server) createBill(w http.ResponseWriter, r *http.Request) {
	var req createBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, fmt.Errorf("%w: %v", service.ErrValidation, err))
		return
	}

	requests := make([]service.SplitRequest, len(req.Splits))
	for i, sp := range req.Splits {
		requests[i] = service.SplitRequest{UserID: sp.UserID, Amount: sp.Amount}
	}

	bill, err := s.bills.CreateBill(r.Context(), middleware.GetUserID(r.Context()), req.Name, req.TotalAmount, requests)
	if err != nil {
		writeErr(w, err)
		return
	}

	snap, err := notify.Snapshot(r.Context(), s.store, bill.ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// listBills handles GET /api/bills: every bill the caller has a split on,
// each as a full snapshot.
func (s *Server) listBills(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	billIDs, err := s.store.ListBillIDsForUser(r.Context(), userID)
	if err != nil {
		writeErr(w, err)
		return
	}

	snaps := make([]*notify.BillSnapshot, 0, len(billIDs))
	for _, id := range billIDs {
		snap, err := notify.Snapshot(r.Context(), s.store, id)
		if err != nil {
			slog.Error("Bill list snapshot failed", "bill_id", id, "error", err)
			continue
		}
		snaps = append(snaps, snap)
	}
	writeJSON(w, http.StatusOK, snaps)
}

// getBill handles GET /api/bills/{billID}. Participants only.
func (s *Server) getBill(w http.ResponseWriter, r *http.Request) {
	billID := chi.URLParam(r, "billID")
	userID := middleware.GetUserID(r.Context())

	member, err := s.store.HasSplit(r.Context(), billID, userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !member {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "you must be a participant to view this bill"})
		return
	}

	snap, err := notify.Snapshot(r.Context(), s.store, billID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// acceptSplit handles POST /api/bills/{billID}/accept.
func (s *Server) acceptSplit(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.bills.AcceptSplit)
}

// rejectSplit handles POST /api/bills/{billID}/reject.
func (s *Server) rejectSplit(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.bills.RejectSplit)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, mutate func(ctx context.Context, userID, billID string) error) {
	billID := chi.URLParam(r, "billID")
	userID := middleware.GetUserID(r.Context())

	if err := mutate(r.Context(), userID, billID); err != nil {
		writeErr(w, err)
		return
	}

	snap, err := notify.Snapshot(r.Context(), s.store, billID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// updateAmount handles POST /api/bills/{billID}/update-amount.
func (s *Server) updateAmount(w http.ResponseWriter, r *http.Request) {
	billID := chi.URLParam(r, "billID")
	userID := middleware.GetUserID(r.Context())

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, fmt.Errorf("%w: %v", service.ErrValidation, err))
		return
	}

	if err := s.bills.AmendAmount(r.Context(), userID, billID, req.Amount); err != nil {
		writeErr(w, err)
		return
	}

	snap, err := notify.Snapshot(r.Context(), s.store, billID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// listUsers handles GET /api/users, used by clients to pick participants.
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}

	type userView struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, userView{ID: u.ID, Name: u.Name, Email: u.Email})
	}
	writeJSON(w, http.StatusOK, views)
}
