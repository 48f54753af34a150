package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/grandcat/zeroconf"

	"beaconwatch/go-telemetry-server/internal/config"
	"beaconwatch/go-telemetry-server/internal/mqttclient"
	"beaconwatch/go-telemetry-server/internal/report"
	"beaconwatch/go-telemetry-server/internal/signal"
	"beaconwatch/go-telemetry-server/internal/store"
	"beaconwatch/go-telemetry-server/internal/tracker"
	"beaconwatch/go-telemetry-server/internal/uptime"
)

// App wires together the beacon telemetry services and manages their lifecycle.
type App struct {
	cfg     config.Config
	logger  *slog.Logger
	tracker *tracker.Tracker

	store   *store.Store
	uptime  *uptime.Recorder
	reports *report.Generator
	mqtt    *mqttclient.Subscriber
	mdns    *zeroconf.Server

	ready atomic.Bool
}

// New constructs a new application instance. Tracker options are passed through, mainly for tests.
func New(cfg config.Config, logger *slog.Logger, opts ...tracker.Option) *App {
	if logger == nil {
		logger = slog.Default()
	}

	tr := tracker.New(tracker.Settings{
		TTL:              cfg.TTL,
		DisplayOffset:    cfg.DisplayOffset,
		TxPower:          cfg.TxPower,
		PathLossExponent: cfg.PathLossExponent,
		SmoothingEnabled: cfg.SmoothingEnabled,
		Smoother: signal.SmootherParams{
			ProcessNoise:     cfg.ProcessNoise,
			MeasurementNoise: cfg.MeasurementNoise,
			MaxStep:          cfg.MaxStep,
		},
	}, logger.With("component", "tracker"), opts...)

	return &App{cfg: cfg, logger: logger, tracker: tr}
}

// attach binds the persistence-backed services to an opened store.
func (a *App) attach(st *store.Store) {
	a.store = st
	a.uptime = uptime.NewRecorder(a.tracker, st, a.cfg.UptimeInterval, a.tracker.Zone(), a.logger.With("component", "uptime"))
	a.reports = report.NewGenerator(st, a.tracker, a.tracker.Zone(), a.tracker.Now, a.logger.With("component", "report"))
	a.ready.Store(true)
}

// Run starts all configured services and blocks until the context is cancelled or an error occurs.
func (a *App) Run(ctx context.Context) error {
	db, err := store.Open(a.cfg.DatabasePath)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := db.Close(); cerr != nil {
			a.logger.Error("close store", "error", cerr)
		}
	}()

	if err := db.InitSchema(ctx); err != nil {
		return err
	}
	a.attach(db)

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	workerErrCh := make(chan error, 2)
	go func() {
		workerErrCh <- a.uptime.Run(workerCtx)
	}()
	go func() {
		scheduler := report.NewScheduler(a.reports, a.cfg.ReportHour, a.cfg.ReportMinute, a.logger.With("component", "scheduler"))
		workerErrCh <- scheduler.Run(workerCtx)
	}()

	if a.cfg.MQTTBroker != "" {
		if err := a.startMQTT(); err != nil {
			return err
		}
		defer a.mqtt.Disconnect()
	}

	httpErrCh := make(chan error, 1)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.HTTPPort),
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErrCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.cfg.MDNSEnabled {
		if err := a.startMDNS(a.cfg.HTTPPort); err != nil {
			a.logger.Warn("mDNS advertisement failed", "error", err)
		}
		defer a.stopMDNS()
	}

	for {
		select {
		case <-ctx.Done():
			a.ready.Store(false)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("http server shutdown: %w", err)
			}
			a.logger.Info("http server stopped")
			return nil
		case err := <-httpErrCh:
			a.ready.Store(false)
			return err
		case err := <-workerErrCh:
			if err != nil {
				a.ready.Store(false)
				_ = httpServer.Shutdown(context.Background())
				return err
			}
		}
	}
}

func (a *App) startMQTT() error {
	sub, err := mqttclient.New(mqttclient.Options{
		Broker:   a.cfg.MQTTBroker,
		Topics:   a.cfg.MQTTTopics,
		ClientID: a.cfg.MQTTClientID,
		Username: a.cfg.MQTTUsername,
		Password: a.cfg.MQTTPassword,
	}, a.handleMQTTDelivery, a.logger.With("component", "mqtt"))
	if err != nil {
		return fmt.Errorf("mqtt subscriber: %w", err)
	}
	if err := sub.Connect(); err != nil {
		return err
	}
	a.mqtt = sub
	return nil
}

func (a *App) handleMQTTDelivery(topic string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := a.ingestDelivery(ctx, "mqtt:"+topic, payload); err != nil {
		a.logger.Warn("mqtt delivery rejected", "topic", topic, "error", err)
	}
}
