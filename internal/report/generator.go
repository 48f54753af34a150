package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"beaconwatch/go-telemetry-server/internal/model"
)

const createdAtLayout = "2006-01-02T15:04:05"

// ErrNoActivity is returned when a beacon has no notification history.
var ErrNoActivity = errors.New("no activity recorded for beacon")

// Store is the persistence the generator reads from and writes to.
type Store interface {
	BeaconNames(ctx context.Context) (map[string]string, error)
	InsertDailyReport(ctx context.Context, r model.DailyReport) (int64, error)
	NotificationsForBeacon(ctx context.Context, beaconName string) ([]model.Notification, error)
	InsertActivityReport(ctx context.Context, r model.ActivityReport) (int64, error)
}

// Source is the live tracker view a daily report is built from.
type Source interface {
	Snapshot() map[string]model.DeviceRecord
	PublishReport(entries []model.ReportEntry, at time.Time)
}

// Generator builds and stores daily and activity reports.
type Generator struct {
	store  Store
	source Source
	zone   *time.Location
	clock  func() time.Time
	logger *slog.Logger
}

// NewGenerator constructs a generator; clock may be nil for wall time.
func NewGenerator(store Store, source Source, zone *time.Location, clock func() time.Time, logger *slog.Logger) *Generator {
	if zone == nil {
		zone = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{store: store, source: source, zone: zone, clock: clock, logger: logger}
}

// Zone returns the zone report times are rendered in.
func (g *Generator) Zone() *time.Location {
	return g.zone
}

// GenerateDaily checks every named beacon against the live snapshot, stores the
// result and publishes it under the reserved report identity.
func (g *Generator) GenerateDaily(ctx context.Context) (model.DailyReport, error) {
	names, err := g.store.BeaconNames(ctx)
	if err != nil {
		return model.DailyReport{}, fmt.Errorf("load beacon names: %w", err)
	}

	now := g.clock()
	entries := BuildEntries(names, g.source.Snapshot())

	r := model.DailyReport{
		CreatedAt: now.In(g.zone).Format(createdAtLayout),
		Summary:   DailySummary(entries),
		Entries:   entries,
	}

	id, err := g.store.InsertDailyReport(ctx, r)
	if err != nil {
		return model.DailyReport{}, fmt.Errorf("store daily report: %w", err)
	}
	r.ID = id

	g.source.PublishReport(entries, now)
	g.logger.Info("daily report generated", "id", id, "summary", r.Summary)
	return r, nil
}

// BuildEntries marks each named beacon Online when some device currently sees it.
// When several devices see the same beacon the most recent sighting wins.
func BuildEntries(names map[string]string, snapshot map[string]model.DeviceRecord) []model.ReportEntry {
	ids := make([]string, 0, len(names))
	for id := range names {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entries := make([]model.ReportEntry, 0, len(ids))
	for _, id := range ids {
		entry := model.ReportEntry{ID: id, Name: names[id], Status: "Offline"}

		var best *model.BeaconObservation
		for ident, rec := range snapshot {
			if ident == model.ReportIdentity {
				continue
			}
			for i := range rec.Beacons {
				b := rec.Beacons[i]
				if b.BeaconID != id {
					continue
				}
				if best == nil || b.LastSeenEpoch > best.LastSeenEpoch ||
					(b.LastSeenEpoch == best.LastSeenEpoch && ident < best.OwnerDeviceID) {
					best = &b
				}
			}
		}

		if best != nil && best.LastSeen != "" {
			entry.Status = "Online"
			entry.LastSeen = best.LastSeen
			entry.LastDevice = best.OwnerDeviceID
			entry.Distance = best.DistanceMeters
		}
		entries = append(entries, entry)
	}
	return entries
}

// DailySummary renders the one-line totals stored with a daily report.
func DailySummary(entries []model.ReportEntry) string {
	offline := 0
	for _, e := range entries {
		if e.Status == "Offline" {
			offline++
		}
	}
	return fmt.Sprintf("%d beacons, %d offline", len(entries), offline)
}

// GenerateActivity builds a report from the full notification history of one beacon.
func (g *Generator) GenerateActivity(ctx context.Context, beaconName string) (model.ActivityReport, error) {
	events, err := g.store.NotificationsForBeacon(ctx, beaconName)
	if err != nil {
		return model.ActivityReport{}, fmt.Errorf("load notifications: %w", err)
	}
	if len(events) == 0 {
		return model.ActivityReport{}, ErrNoActivity
	}

	r := model.ActivityReport{
		BeaconName: beaconName,
		CreatedAt:  g.clock().In(g.zone).Format(createdAtLayout),
		Summary:    ActivitySummary(events),
		Events:     events,
	}

	id, err := g.store.InsertActivityReport(ctx, r)
	if err != nil {
		return model.ActivityReport{}, fmt.Errorf("store activity report: %w", err)
	}
	r.ID = id

	g.logger.Info("activity report generated", "id", id, "beacon", beaconName, "summary", r.Summary)
	return r, nil
}

// ActivitySummary counts the events of a history by direction.
func ActivitySummary(events []model.Notification) string {
	left, in := 0, 0
	for _, e := range events {
		switch strings.ToLower(e.Type) {
		case "left":
			left++
		case "in":
			in++
		}
	}
	return fmt.Sprintf("%d events (%d LEFT, %d IN)", len(events), left, in)
}
