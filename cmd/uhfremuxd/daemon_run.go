package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"uhfremux/internal/config"
	"uhfremux/internal/daemon"
	"uhfremux/internal/librarysync"
	"uhfremux/internal/logging"
	"uhfremux/internal/monitor"
	"uhfremux/internal/queue"
	"uhfremux/internal/recordings"
	"uhfremux/internal/remux"
	"uhfremux/internal/services/plex"
)

func runDaemonProcess(cmdCtx context.Context, configPath string, dryRun, debug bool) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, resolvedPath, exists, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg, debug)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if exists {
		logger.Info("configuration loaded", logging.String("path", resolvedPath))
	} else {
		logger.Info("no configuration file found, using defaults and environment")
	}
	if dryRun {
		logger.Info("dry run enabled: no files will be remuxed")
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}
	defer store.Close()

	reader := recordings.NewReader(cfg.SnapshotPath(), logger)
	executor := remux.NewExecutor(cfg, store, logger, dryRun)

	var mon *monitor.Monitor
	if svc := plex.NewService(cfg); svc != nil {
		syncer := librarysync.NewCoordinator(cfg, store, svc, logger, dryRun)
		mon = monitor.New(cfg, reader, store, executor, syncer, logger, dryRun)
	} else {
		logger.Warn("plex integration disabled due to missing configuration")
		mon = monitor.New(cfg, reader, store, executor, nil, logger, dryRun)
	}

	d, err := daemon.New(cfg, store, mon, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return err
	}

	<-signalCtx.Done()
	logger.Info("shutting down")
	d.Stop()
	return nil
}
