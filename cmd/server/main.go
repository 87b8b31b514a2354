package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/xinyao2002/payfrontwithback/internal/auth"
	"github.com/xinyao2002/payfrontwithback/internal/config"
	"github.com/xinyao2002/payfrontwithback/internal/notify"
	"github.com/xinyao2002/payfrontwithback/internal/pubsub"
	"github.com/xinyao2002/payfrontwithback/internal/realtime"
	"github.com/xinyao2002/payfrontwithback/internal/server"
	"github.com/xinyao2002/payfrontwithback/internal/service"
	"github.com/xinyao2002/payfrontwithback/internal/storage/sqlite"
	"github.com/xinyao2002/payfrontwithback/pkg/logging"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}

	// Setup structured logging
	logging.Setup(cfg.LogLevel)

	// Initialize SQLite storage
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	// Fan-out pipeline: mutations -> notifier -> hub -> sessions
	hub := pubsub.NewHub()
	notifier := notify.New(store, hub)
	bills := service.NewBillService(store, notifier)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenDuration)
	authenticator := auth.NewPasswordAuthenticator(store)

	handler := server.Router(
		server.NewServer(store, bills),
		server.NewAuthHandlers(authenticator, jwtManager),
		realtime.NewGateway(bills, store, hub),
		jwtManager,
	)

	addr := ":" + cfg.ServerPort
	slog.Info("Billing server starting", "address", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
