package report_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"beaconwatch/go-telemetry-server/internal/model"
	"beaconwatch/go-telemetry-server/internal/report"
)

type memoryStore struct {
	names         map[string]string
	notifications map[string][]model.Notification
	daily         []model.DailyReport
	activity      []model.ActivityReport
}

func (m *memoryStore) BeaconNames(context.Context) (map[string]string, error) {
	return m.names, nil
}

func (m *memoryStore) InsertDailyReport(_ context.Context, r model.DailyReport) (int64, error) {
	m.daily = append(m.daily, r)
	return int64(len(m.daily)), nil
}

func (m *memoryStore) NotificationsForBeacon(_ context.Context, name string) ([]model.Notification, error) {
	return m.notifications[name], nil
}

func (m *memoryStore) InsertActivityReport(_ context.Context, r model.ActivityReport) (int64, error) {
	m.activity = append(m.activity, r)
	return int64(len(m.activity)), nil
}

type stubSource struct {
	snapshot  map[string]model.DeviceRecord
	published []model.ReportEntry
	at        time.Time
}

func (s *stubSource) Snapshot() map[string]model.DeviceRecord {
	return s.snapshot
}

func (s *stubSource) PublishReport(entries []model.ReportEntry, at time.Time) {
	s.published = entries
	s.at = at
}

func distance(v float64) *float64 {
	return &v
}

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestGenerateDaily_OnlineAndOffline(t *testing.T) {
	st := &memoryStore{names: map[string]string{"B1": "Keys", "B2": "Wallet"}}
	src := &stubSource{snapshot: map[string]model.DeviceRecord{
		"D1": {Identity: "D1", Beacons: []model.BeaconObservation{
			{BeaconID: "B1", OwnerDeviceID: "D1", LastSeenEpoch: 100, LastSeen: "early", DistanceMeters: distance(3)},
		}},
		"D2": {Identity: "D2", Beacons: []model.BeaconObservation{
			{BeaconID: "B1", OwnerDeviceID: "D2", LastSeenEpoch: 200, LastSeen: "late", DistanceMeters: distance(1.5)},
		}},
		model.ReportIdentity: {Identity: model.ReportIdentity, Beacons: []model.BeaconObservation{
			{BeaconID: "B2", OwnerDeviceID: model.ReportIdentity, LastSeenEpoch: 999, LastSeen: "ignored"},
		}},
	}}

	g := report.NewGenerator(st, src, time.UTC, func() time.Time { return fixedNow }, nil)
	r, err := g.GenerateDaily(context.Background())
	if err != nil {
		t.Fatalf("GenerateDaily returned error: %v", err)
	}

	if r.ID != 1 || r.Summary != "2 beacons, 1 offline" || r.CreatedAt != "2024-03-01T09:00:00" {
		t.Errorf("Unexpected report header %+v", r)
	}
	if len(r.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(r.Entries))
	}

	b1, b2 := r.Entries[0], r.Entries[1]
	if b1.ID != "B1" || b1.Status != "Online" || b1.LastDevice != "D2" || b1.LastSeen != "late" || *b1.Distance != 1.5 {
		t.Errorf("Unexpected B1 entry %+v", b1)
	}
	if b2.ID != "B2" || b2.Status != "Offline" || b2.LastDevice != "" || b2.Distance != nil {
		t.Errorf("Unexpected B2 entry %+v", b2)
	}

	if len(src.published) != 2 || !src.at.Equal(fixedNow) {
		t.Errorf("Expected report published to tracker, got %+v at %v", src.published, src.at)
	}
	if len(st.daily) != 1 {
		t.Errorf("Expected one stored report, got %d", len(st.daily))
	}
}

func TestGenerateDaily_NoNamedBeacons(t *testing.T) {
	st := &memoryStore{names: map[string]string{}}
	src := &stubSource{snapshot: map[string]model.DeviceRecord{}}

	r, err := report.NewGenerator(st, src, nil, nil, nil).GenerateDaily(context.Background())
	if err != nil {
		t.Fatalf("GenerateDaily returned error: %v", err)
	}
	if r.Summary != "0 beacons, 0 offline" || len(r.Entries) != 0 {
		t.Errorf("Unexpected empty report %+v", r)
	}
}

func TestGenerateActivity(t *testing.T) {
	st := &memoryStore{notifications: map[string][]model.Notification{
		"Keys": {
			{Type: "in", BeaconName: "Keys"},
			{Type: "left", BeaconName: "Keys"},
			{Type: "LEFT", BeaconName: "Keys"},
			{Type: "other", BeaconName: "Keys"},
		},
	}}
	g := report.NewGenerator(st, &stubSource{}, time.UTC, func() time.Time { return fixedNow }, nil)

	r, err := g.GenerateActivity(context.Background(), "Keys")
	if err != nil {
		t.Fatalf("GenerateActivity returned error: %v", err)
	}
	if r.Summary != "4 events (2 LEFT, 1 IN)" || r.ID != 1 || len(r.Events) != 4 {
		t.Errorf("Unexpected activity report %+v", r)
	}

	if _, err := g.GenerateActivity(context.Background(), "Nobody"); !errors.Is(err, report.ErrNoActivity) {
		t.Errorf("Expected ErrNoActivity, got %v", err)
	}
}

func TestGeneratorZone(t *testing.T) {
	zone := time.FixedZone("UTC+13", 13*3600)
	if got := report.NewGenerator(&memoryStore{}, &stubSource{}, zone, nil, nil).Zone(); got != zone {
		t.Errorf("Expected configured zone, got %v", got)
	}
	if got := report.NewGenerator(&memoryStore{}, &stubSource{}, nil, nil, nil).Zone(); got != time.UTC {
		t.Errorf("Expected UTC when no zone is given, got %v", got)
	}
}

func TestNextRun(t *testing.T) {
	zone := time.FixedZone("UTC+13", 13*3600)

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"later today", time.Date(2024, 1, 1, 8, 0, 0, 0, zone), time.Date(2024, 1, 1, 22, 0, 0, 0, zone)},
		{"exactly on time", time.Date(2024, 1, 1, 22, 0, 0, 0, zone), time.Date(2024, 1, 2, 22, 0, 0, 0, zone)},
		{"after today", time.Date(2024, 1, 1, 23, 30, 0, 0, zone), time.Date(2024, 1, 2, 22, 0, 0, 0, zone)},
		// 09:30 UTC is 22:30 in the display zone.
		{"utc input", time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC), time.Date(2024, 1, 2, 22, 0, 0, 0, zone)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := report.NextRun(tc.now, 22, 0, zone); !got.Equal(tc.want) {
				t.Errorf("NextRun(%v) = %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}

func TestWriteDailyCSV(t *testing.T) {
	var buf bytes.Buffer
	err := report.WriteDailyCSV(&buf, model.DailyReport{Entries: []model.ReportEntry{
		{ID: "B1", Name: "Keys, spare", Status: "Online", LastSeen: "2024-01-01 10:00:00", LastDevice: "D1", Distance: distance(2)},
		{ID: "B2", Status: "Offline"},
	}})
	if err != nil {
		t.Fatalf("WriteDailyCSV returned error: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header plus 2 rows, got %d", len(rows))
	}
	if strings.Join(rows[1], "|") != "B1|Keys, spare|Online|2024-01-01 10:00:00|D1|2.00" {
		t.Errorf("Unexpected row %v", rows[1])
	}
	if strings.Join(rows[2], "|") != "B2|-|Offline|-|-|-" {
		t.Errorf("Unexpected row %v", rows[2])
	}
}

func TestWriteActivityCSV(t *testing.T) {
	var buf bytes.Buffer
	err := report.WriteActivityCSV(&buf, model.ActivityReport{Events: []model.Notification{
		{Type: "left", EventTime: "10:00", Distance: distance(7.456), CreatedAt: "2024-01-01T10:00:01"},
	}})
	if err != nil {
		t.Fatalf("WriteActivityCSV returned error: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Output is not valid CSV: %v", err)
	}
	if strings.Join(rows[1], "|") != "LEFT|10:00|7.46|2024-01-01T10:00:01" {
		t.Errorf("Unexpected row %v", rows[1])
	}
}

func TestFilenames(t *testing.T) {
	if got := report.DailyFilename(model.DailyReport{CreatedAt: "2024-01-01T22:00:00"}); got != "report_2024-01-01T22_00_00.csv" {
		t.Errorf("Unexpected daily filename %q", got)
	}
	if got := report.ActivityFilename(model.ActivityReport{BeaconName: "Car keys/1", CreatedAt: "x"}); got != "activity_Car_keys_1_x.csv" {
		t.Errorf("Unexpected activity filename %q", got)
	}
}
