package uptime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"beaconwatch/go-telemetry-server/internal/model"
	"beaconwatch/go-telemetry-server/internal/uptime"
)

type fixedHealth struct {
	health model.Health
}

func (f fixedHealth) Health(time.Time) model.Health {
	return f.health
}

type memorySink struct {
	mu   sync.Mutex
	logs []model.UptimeLog
	err  error
}

func (m *memorySink) InsertUptimeLog(_ context.Context, l model.UptimeLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.logs = append(m.logs, l)
	return nil
}

func (m *memorySink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

func TestMaybeRecord_Throttles(t *testing.T) {
	sink := &memorySink{}
	rec := uptime.NewRecorder(fixedHealth{model.Health{ActiveDevices: 1, ActiveBeacons: 2}}, sink, time.Minute, time.UTC, nil)

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	steps := []struct {
		at    time.Time
		wrote bool
	}{
		{start, true},
		{start.Add(30 * time.Second), false},
		{start.Add(59 * time.Second), false},
		{start.Add(time.Minute), true},
		{start.Add(90 * time.Second), false},
	}

	for _, step := range steps {
		wrote, err := rec.MaybeRecord(ctx, step.at)
		if err != nil {
			t.Fatalf("MaybeRecord returned error: %v", err)
		}
		if wrote != step.wrote {
			t.Errorf("MaybeRecord(%v) wrote=%v, want %v", step.at, wrote, step.wrote)
		}
	}

	if sink.count() != 2 {
		t.Fatalf("Expected 2 rows, got %d", sink.count())
	}
	first := sink.logs[0]
	if first.Timestamp != "2024-01-01 10:00:00" || first.DeviceCount != 1 || first.BeaconCount != 2 || first.Status != "OK" {
		t.Errorf("Unexpected row %+v", first)
	}
}

func TestMaybeRecord_FormatsInDisplayZone(t *testing.T) {
	sink := &memorySink{}
	zone := time.FixedZone("UTC+13", 13*3600)
	rec := uptime.NewRecorder(fixedHealth{}, sink, time.Minute, zone, nil)

	if _, err := rec.MaybeRecord(context.Background(), time.Unix(1700000000, 0)); err != nil {
		t.Fatalf("MaybeRecord returned error: %v", err)
	}
	if got := sink.logs[0]; got.Timestamp != "2023-11-15 11:13:20" || got.Status != "NO_DATA" {
		t.Errorf("Unexpected row %+v", got)
	}
}

func TestMaybeRecord_SinkFailureDoesNotAdvanceThrottle(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	rec := uptime.NewRecorder(fixedHealth{}, sink, time.Minute, time.UTC, nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := rec.MaybeRecord(context.Background(), now); err == nil {
		t.Fatal("Expected error from failing sink")
	}

	sink.err = nil
	wrote, err := rec.MaybeRecord(context.Background(), now.Add(time.Second))
	if err != nil || !wrote {
		t.Errorf("Expected retry to write, got wrote=%v err=%v", wrote, err)
	}
}

func TestRun_RecordsOnTicksAndStops(t *testing.T) {
	sink := &memorySink{}
	rec := uptime.NewRecorder(fixedHealth{}, sink, 10*time.Millisecond, time.UTC, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	if sink.count() == 0 {
		t.Error("Expected at least one tick to record")
	}
}
