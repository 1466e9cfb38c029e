package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/remindd/remindd/internal/backup"
	"github.com/remindd/remindd/internal/bus"
	"github.com/remindd/remindd/internal/cloud"
	"github.com/remindd/remindd/internal/config"
	"github.com/remindd/remindd/internal/logging"
	"github.com/remindd/remindd/internal/notify"
	"github.com/remindd/remindd/internal/reminder"
	"github.com/remindd/remindd/internal/settings"
	"github.com/remindd/remindd/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg.LogLevel, cfg.LogPath)
	if err != nil {
		slog.Error("setup logging", "error", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirs(); err != nil {
		logger.Error("prepare data directories", "error", err)
		os.Exit(1)
	}

	userSettings, err := settings.Load(cfg.SettingsPath)
	if err != nil {
		logger.Error("load settings", "error", err)
		os.Exit(1)
	}

	// Reconnect-on-demand: the scheduler goroutine and any frontend
	// glue share this store and must survive a dropped connection.
	eventStore := store.NewEventStore(cfg.DBPath, true)
	defer eventStore.Disconnect()

	codec := backup.NewCodec(eventStore, userSettings)
	syncClient := cloud.NewClient(cloud.Config{
		ServerURL: cfg.ServerURL,
		TokenPath: cfg.TokenPath,
	})

	events := bus.NewBus()
	events.Subscribe(bus.EventsChanged, func(e bus.Event) {
		logger.Debug("events changed", "data", e.Data)
	})

	scheduler := reminder.NewScheduler(eventStore, userSettings, notify.NewCommand(), events)
	scheduler.SetInterval(cfg.TickInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("start scheduler", "error", err)
		os.Exit(1)
	}

	logger.Info("remindd running",
		"db", cfg.DBPath,
		"server", cfg.ServerURL,
		"authenticated", syncClient.IsAuthenticated(),
	)

	// SIGUSR1 writes a local backup and prunes old ones, so a cron job
	// or the frontend glue can trigger backups without talking SQL.
	backupSignal := make(chan os.Signal, 1)
	signal.Notify(backupSignal, syscall.SIGUSR1)
	go func() {
		for range backupSignal {
			record, err := codec.PrepareFromStore(time.Now(), userSettings.IncludeSettingsBackup(), "")
			if err != nil {
				logger.Error("prepare backup", "error", err)
				continue
			}
			path, err := backup.Save(record, cfg.BackupDir)
			if err != nil {
				logger.Error("save backup", "error", err)
				continue
			}
			removed, err := backup.Prune(cfg.BackupDir, userSettings.MaxBackups())
			if err != nil {
				logger.Error("prune backups", "error", err)
			}
			logger.Info("backup written", "path", path, "events", record.EventCount, "pruned", removed)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	scheduler.Stop()
}
