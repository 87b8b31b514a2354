package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xinyao2002/payfrontwithback/internal/auth"
	"github.com/xinyao2002/payfrontwithback/internal/middleware"
	"github.com/xinyao2002/payfrontwithback/internal/realtime"
)

// Router assembles the full HTTP surface: auth, bill REST endpoints, the
// realtime websocket routes and operational endpoints.
func Router(s *Server, authH *AuthHandlers, gateway *realtime.Gateway, jwtManager *auth.JWTManager) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("healthy"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/auth/register", authH.register)
	r.Post("/api/auth/login", authH.login)

	// Everything below requires an authenticated identity.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtManager))

		// Plain request/response endpoints get a timeout; the websocket
		// routes are long-lived and must not.
		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(60 * time.Second))

			r.Get("/api/users", s.listUsers)
			r.Post("/api/bills", s.createBill)
			r.Get("/api/bills", s.listBills)
			r.Get("/api/bills/{billID}", s.getBill)
			r.Post("/api/bills/{billID}/accept", s.acceptSplit)
			r.Post("/api/bills/{billID}/reject", s.rejectSplit)
			r.Post("/api/bills/{billID}/update-amount", s.updateAmount)
		})

		r.Get("/ws/bills", gateway.ServeList)
		r.Get("/ws/bills/{billID}", gateway.ServeBill)
	})

	return r
}
