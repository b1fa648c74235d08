// Package app wires together the backend client, the expired-record
// coordinator, run history, scheduler, and HTTP server.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hr-backoffice/nfd-autoupdater/internal/backend"
	"github.com/hr-backoffice/nfd-autoupdater/internal/collector"
	"github.com/hr-backoffice/nfd-autoupdater/internal/config"
	"github.com/hr-backoffice/nfd-autoupdater/internal/nfdstatus"
	"github.com/hr-backoffice/nfd-autoupdater/internal/scheduler"
	"github.com/hr-backoffice/nfd-autoupdater/internal/server"
	"github.com/hr-backoffice/nfd-autoupdater/internal/store"
)

const queueSize = 256

// App is the main application orchestrator.
type App struct {
	config      *config.Config
	coordinator *nfdstatus.Coordinator
	history     store.Store
	queue       *scheduler.TaskQueue
	scheduler   *scheduler.Scheduler
	server      *server.Server
	logger      *logrus.Entry
}

// New creates and initialises the application:
//  1. Creates the backend client.
//  2. Opens the run history (Redis, LevelDB, or in-memory).
//  3. Builds the coordinator with its metrics and history observers.
//  4. Registers the optional refresh task and the webhook-driven forced run.
//  5. Creates the HTTP server.
func New(cfg *config.Config, logger *logrus.Entry) (*App, error) {
	log := logger.WithField("component", "app")

	// --- 1. Backend client ---
	client, err := backend.New(cfg.Backend, logger)
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}

	// --- 2. History ---
	history, err := OpenHistory(cfg.History, log)
	if err != nil {
		return nil, err
	}

	// --- 3. Coordinator ---
	queue := scheduler.NewTaskQueue(queueSize, logger)
	status := collector.NewStatusCollector()
	coord := nfdstatus.New(client, logger,
		nfdstatus.WithTTL(cfg.AutoUpdate.TTL()),
		nfdstatus.WithObserver(status),
		nfdstatus.WithObserver(store.NewRecorder(history, queue, logger)),
	)
	status.SetSource(coord)

	// --- 4. Scheduler ---
	sched := scheduler.NewScheduler(logger)
	if cfg.AutoUpdate.RefreshEnabled {
		sched.AddTask(scheduler.NewTask("auto_update_refresh", cfg.AutoUpdate.RefreshInterval(),
			func(ctx context.Context) error {
				out := coord.AutoUpdate(ctx)
				if out.Failed {
					return fmt.Errorf("auto update: %s", out.Error)
				}
				return nil
			}, logger))
		log.WithField("interval", cfg.AutoUpdate.RefreshInterval()).Info("background refresh enabled")
	}

	// Webhook events share one pending forced run, so a burst of
	// notifications costs at most one extra backend call.
	forced := scheduler.NewTask("webhook_force_update", 0,
		func(ctx context.Context) error {
			out := coord.ForceUpdate(ctx)
			if out.Failed {
				return fmt.Errorf("forced update: %s", out.Error)
			}
			return nil
		}, logger)
	sched.AddTask(forced)

	// --- 5. HTTP server ---
	srv, err := server.NewServer(cfg, server.Deps{
		Coordinator: coord,
		History:     history,
		Metrics:     append([]prometheus.Collector{status}, backend.Metrics()...),
		OnRecordsChanged: func(event string) {
			if !forced.Trigger() {
				log.WithField("event", event).Debug("forced update already pending")
			}
		},
	}, logger)
	if err != nil {
		_ = history.Close()
		return nil, fmt.Errorf("creating server: %w", err)
	}

	log.WithFields(logrus.Fields{
		"backend": client.BaseURL(),
		"ttl":     coord.TTL(),
	}).Info("application initialised")

	return &App{
		config:      cfg,
		coordinator: coord,
		history:     history,
		queue:       queue,
		scheduler:   sched,
		server:      srv,
		logger:      log,
	}, nil
}

// OpenHistory opens the configured run-history backend. Redis wins over
// LevelDB; with neither configured an in-memory ring is used.
func OpenHistory(cfg config.HistoryConfig, log *logrus.Entry) (store.Store, error) {
	switch {
	case cfg.RedisURL != "":
		rs, err := store.NewRedisStore(cfg.RedisURL, cfg.Size)
		if err != nil {
			return nil, fmt.Errorf("creating redis history: %w", err)
		}
		log.Info("using Redis history")
		return rs, nil
	case cfg.LevelDBPath != "":
		ls, err := store.NewLevelDBStore(cfg.LevelDBPath, cfg.Size)
		if err != nil {
			return nil, fmt.Errorf("creating leveldb history: %w", err)
		}
		log.WithField("path", cfg.LevelDBPath).Info("using LevelDB history")
		return ls, nil
	default:
		log.Info("using in-memory history")
		return store.NewMemoryStore(cfg.Size), nil
	}
}

// Coordinator returns the expired-record coordinator.
func (a *App) Coordinator() *nfdstatus.Coordinator {
	return a.coordinator
}

// Handler returns the HTTP handler served by Run.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Run starts the HTTP server, the scheduler and the task queue, then blocks
// until ctx is cancelled or one of them fails. The history store is closed
// after everything has stopped.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.server.Run(ctx) })
	g.Go(func() error { return a.scheduler.Run(ctx) })
	g.Go(func() error { return a.queue.Run(ctx) })

	a.logger.Info("application is running")
	err := g.Wait()

	a.logger.Info("application stopped")
	if cerr := a.history.Close(); cerr != nil {
		a.logger.WithError(cerr).Error("error closing history store")
	}
	return err
}
