package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/conference-manager/internal/application"
	"github.com/example/conference-manager/internal/config"
	"github.com/example/conference-manager/internal/directory"
	"github.com/example/conference-manager/internal/events"
	"github.com/example/conference-manager/internal/logging"
	"github.com/example/conference-manager/internal/messaging"
	"github.com/example/conference-manager/internal/persistence"
	"github.com/example/conference-manager/internal/persistence/sqlite"
	"github.com/example/conference-manager/internal/rooms"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open snapshot store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close snapshot store", "error", cerr)
		}
	}()

	var users *directory.Directory
	if cfg.MasterInviteCode != "" {
		users = directory.NewWithMasterCode(cfg.MasterInviteCode)
	} else {
		users = directory.New()
	}
	roomRegistry := rooms.NewRegistry()
	catalog := events.NewCatalogWithHours(cfg.OpenHour, cfg.CloseHour)
	messages := messaging.NewStore(nil, time.Now)

	snap, found, err := store.Load(ctx)
	switch {
	case err != nil:
		logger.Warn("failed to load snapshot, starting empty", "error", err)
	case found:
		persistence.Apply(snap, users, roomRegistry, catalog, messages)
		purged := purgePastEvents(catalog, time.Now())
		logger.Info("snapshot restored",
			"accounts", len(snap.Users.Accounts),
			"rooms", len(snap.Rooms),
			"events", len(snap.Events),
			"past_events_purged", purged)
	default:
		logger.Info("no snapshot found, starting empty")
	}

	scheduling := application.NewSchedulingService(roomRegistry, catalog, users, time.Now, logger)
	messagingService := application.NewMessagingService(messages, users, catalog, logger)

	console := newSession(users, scheduling, messagingService, os.Stdout)
	if err := console.run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("console session failed", "error", err)
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Save(saveCtx, persistence.Capture(users, roomRegistry, catalog, messages)); err != nil {
		logger.Error("failed to save snapshot", "error", err)
		os.Exit(1)
	}
	logger.Info("snapshot saved")
}

// purgePastEvents drops restored events that already started and
// reports how many were removed.
func purgePastEvents(catalog *events.Catalog, now time.Time) int {
	before := len(catalog.All())
	catalog.RemovePast(now)
	return before - len(catalog.All())
}
