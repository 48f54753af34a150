package tracker

import (
	"log/slog"
	"time"

	"beaconwatch/go-telemetry-server/internal/model"
	"beaconwatch/go-telemetry-server/internal/signal"
)

// Settings carries the tracker calibration and freshness constants.
type Settings struct {
	TTL              time.Duration
	DisplayOffset    time.Duration
	TxPower          float64
	PathLossExponent float64
	SmoothingEnabled bool
	Smoother         signal.SmootherParams
}

// DeliveryStats summarizes one ingested delivery.
type DeliveryStats struct {
	Received  int
	Processed int
	Tracking  int
}

// Tracker is the in-memory view of which beacons are near which device.
type Tracker struct {
	settings     Settings
	zone         *time.Location
	clock        func() time.Time
	logger       *slog.Logger
	observations *ObservationStore
	devices      *SnapshotStore
	normalizer   *Normalizer
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) {
		t.clock = clock
	}
}

// New constructs a tracker with empty stores.
func New(settings Settings, logger *slog.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}

	zone := DisplayZone(settings.DisplayOffset)

	obsOpts := ObservationOptions{
		TTL:       settings.TTL,
		Estimator: signal.NewEstimator(settings.TxPower, settings.PathLossExponent),
		Zone:      zone,
	}
	if settings.SmoothingEnabled {
		params := settings.Smoother
		obsOpts.Smoothing = &params
	}

	observations := NewObservationStore(obsOpts)

	t := &Tracker{
		settings:     settings,
		zone:         zone,
		clock:        time.Now,
		logger:       logger,
		observations: observations,
		devices:      NewSnapshotStore(),
		normalizer:   NewNormalizer(observations, zone),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Now returns the tracker's current time.
func (t *Tracker) Now() time.Time {
	return t.clock()
}

// Zone returns the display time zone.
func (t *Tracker) Zone() *time.Location {
	return t.zone
}

// Ingest normalizes one message and stores the resulting record.
func (t *Tracker) Ingest(raw any) model.DeviceRecord {
	rec := t.normalizer.Normalize(raw, t.clock())
	t.devices.Put(rec)
	t.logger.Debug("ingested message", "ident", rec.Identity, "beacons", len(rec.Beacons))
	return rec
}

// IngestDelivery splits a delivery body and ingests every object message in it.
func (t *Tracker) IngestDelivery(body []byte) (DeliveryStats, error) {
	msgs, err := SplitDelivery(body)
	if err != nil {
		return DeliveryStats{}, err
	}

	stats := DeliveryStats{Received: len(msgs)}
	for _, raw := range msgs {
		if _, ok := raw.(map[string]any); !ok {
			continue
		}
		t.Ingest(raw)
		stats.Processed++
	}
	stats.Tracking = t.devices.Len()
	return stats, nil
}

// Snapshot returns a point-in-time copy of all records, the report entry included.
func (t *Tracker) Snapshot() map[string]model.DeviceRecord {
	return t.devices.Snapshot()
}

// Health counts devices and beacons seen within the TTL of now.
func (t *Tracker) Health(now time.Time) model.Health {
	return healthOf(t.devices, t.observations, t.settings.TTL, now)
}

// PublishReport places the daily report under the reserved identity.
func (t *Tracker) PublishReport(entries []model.ReportEntry, at time.Time) {
	epoch := EpochSeconds(at)
	t.devices.Put(model.DeviceRecord{
		Identity:        model.ReportIdentity,
		ObservedAtEpoch: epoch,
		ObservedAt:      FormatEpoch(epoch, t.zone),
		Beacons:         []model.BeaconObservation{},
		Report:          entries,
	})
}
