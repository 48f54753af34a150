package uptime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"beaconwatch/go-telemetry-server/internal/model"
)

const timestampLayout = "2006-01-02 15:04:05"

// HealthSource reports the live device and beacon counts.
type HealthSource interface {
	Health(now time.Time) model.Health
}

// Sink persists uptime snapshots.
type Sink interface {
	InsertUptimeLog(ctx context.Context, l model.UptimeLog) error
}

// Recorder writes at most one health snapshot per interval.
type Recorder struct {
	source   HealthSource
	sink     Sink
	interval time.Duration
	zone     *time.Location
	clock    func() time.Time
	logger   *slog.Logger

	mu   sync.Mutex
	last time.Time
}

// NewRecorder constructs a recorder; zone controls how stored timestamps are rendered.
func NewRecorder(source HealthSource, sink Sink, interval time.Duration, zone *time.Location, logger *slog.Logger) *Recorder {
	if zone == nil {
		zone = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		source:   source,
		sink:     sink,
		interval: interval,
		zone:     zone,
		clock:    time.Now,
		logger:   logger,
	}
}

// MaybeRecord stores a snapshot unless one was stored less than an interval before now.
// It reports whether a row was written.
func (r *Recorder) MaybeRecord(ctx context.Context, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.last.IsZero() && now.Sub(r.last) < r.interval {
		return false, nil
	}

	h := r.source.Health(now)
	entry := model.UptimeLog{
		Timestamp:   now.In(r.zone).Format(timestampLayout),
		DeviceCount: h.ActiveDevices,
		BeaconCount: h.ActiveBeacons,
		Status:      h.Status(),
	}

	if err := r.sink.InsertUptimeLog(ctx, entry); err != nil {
		return false, fmt.Errorf("record uptime: %w", err)
	}

	r.last = now
	r.logger.Debug("uptime recorded", "devices", entry.DeviceCount, "beacons", entry.BeaconCount, "status", entry.Status)
	return true, nil
}

// Run records on every tick until the context is cancelled, so silent periods show up as NO_DATA.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			recCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if _, err := r.MaybeRecord(recCtx, r.clock()); err != nil {
				r.logger.Error("uptime snapshot failed", "error", err)
			}
			cancel()
		}
	}
}
