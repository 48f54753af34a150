package tracker_test

import (
	"testing"
	"time"

	"beaconwatch/go-telemetry-server/internal/signal"
	"beaconwatch/go-telemetry-server/internal/tracker"
)

const testTTL = 360 * time.Second

func newObservationStore(smoothing *signal.SmootherParams) *tracker.ObservationStore {
	return tracker.NewObservationStore(tracker.ObservationOptions{
		TTL:       testTTL,
		Estimator: signal.NewEstimator(-59, 2.0),
		Zone:      samoa,
		Smoothing: smoothing,
	})
}

func TestObservationStore_TTLBoundary(t *testing.T) {
	store := newObservationStore(nil)
	const start = 1700000000.0

	store.Upsert("D1", map[string]any{"id": "B1", "rssi": -65.0}, start)

	live := store.LiveFor("D1", start+testTTL.Seconds()-1)
	if len(live) != 1 || live[0].BeaconID != "B1" {
		t.Fatalf("Expected B1 alive just before TTL, got %+v", live)
	}

	live = store.LiveFor("D1", start+testTTL.Seconds()+1)
	if len(live) != 0 {
		t.Fatalf("Expected no beacons after TTL, got %+v", live)
	}
	if store.Len() != 0 {
		t.Errorf("Expected expired entry to be removed, table has %d", store.Len())
	}
	if n := store.CountLive(start + testTTL.Seconds() + 1); n != 0 {
		t.Errorf("Expected count 0 after expiry, got %d", n)
	}
}

func TestObservationStore_SweepIsGlobal(t *testing.T) {
	store := newObservationStore(nil)

	store.Upsert("D1", map[string]any{"id": "B1"}, 1000)
	store.Upsert("D2", map[string]any{"id": "B2"}, 1500)

	live := store.LiveFor("D2", 1000+testTTL.Seconds()+1)
	if len(live) != 1 {
		t.Fatalf("Expected D2 beacon alive, got %+v", live)
	}
	if store.Len() != 1 {
		t.Errorf("Expected D1 entry swept by a D2 read, table has %d", store.Len())
	}
}

func TestObservationStore_KeyedByDeviceAndBeacon(t *testing.T) {
	store := newObservationStore(nil)

	store.Upsert("D1", map[string]any{"id": "B1", "rssi": -60.0}, 1000)
	store.Upsert("D2", map[string]any{"id": "B1", "rssi": -80.0}, 1000)

	if n := store.CountLive(1000); n != 2 {
		t.Fatalf("Expected one entry per device, got %d", n)
	}

	d1 := store.LiveFor("D1", 1000)
	if len(d1) != 1 || *d1[0].RawSignal != -60 || d1[0].OwnerDeviceID != "D1" {
		t.Errorf("Unexpected D1 observation %+v", d1)
	}
}

func TestObservationStore_OverwriteNotMerge(t *testing.T) {
	store := newObservationStore(nil)

	store.Upsert("D1", map[string]any{"id": "B1", "rssi": -60.0, "battery.voltage": 3000.0}, 1000)
	store.Upsert("D1", map[string]any{"id": "B1"}, 1010)

	live := store.LiveFor("D1", 1010)
	if len(live) != 1 {
		t.Fatalf("Expected a single entry, got %d", len(live))
	}
	obs := live[0]
	if obs.RawSignal != nil || obs.DistanceMeters != nil || obs.BatteryPercent != nil {
		t.Errorf("Expected prior fields dropped on overwrite, got %+v", obs)
	}
	if obs.LastSeenEpoch != 1010 {
		t.Errorf("Expected last seen 1010, got %v", obs.LastSeenEpoch)
	}
}

func TestObservationStore_BeaconFields(t *testing.T) {
	store := newObservationStore(nil)

	store.Upsert("D1", map[string]any{"uuid": "U-1", "rssi": "-79", "battery": map[string]any{"voltage": 2500.0}}, 1700000000)
	store.Upsert("D1", map[string]any{"mac": "AA:BB", "rssi": "weak"}, 1700000000)
	store.Upsert("D1", map[string]any{"id": "", "rssi": -59.0}, 1700000000)

	live := store.LiveFor("D1", 1700000000)
	if len(live) != 3 {
		t.Fatalf("Expected 3 observations, got %d", len(live))
	}

	byID := map[string]int{}
	for i, obs := range live {
		byID[obs.BeaconID] = i
	}

	u := live[byID["U-1"]]
	if u.DistanceMeters == nil || *u.DistanceMeters != 10 {
		t.Errorf("Expected 10m for -79 dBm, got %v", u.DistanceMeters)
	}
	if u.BatteryPercent == nil || *u.BatteryPercent != 50 {
		t.Errorf("Expected nested battery voltage 50%%, got %v", u.BatteryPercent)
	}
	if u.LastSeen != "2023-11-15 11:13:20" {
		t.Errorf("Unexpected display time %q", u.LastSeen)
	}

	mac := live[byID["AA:BB"]]
	if mac.RawSignal != nil || mac.DistanceMeters != nil {
		t.Errorf("Expected nil signal for non-numeric rssi, got %+v", mac)
	}

	if _, ok := byID["unknown"]; !ok {
		t.Errorf("Expected empty id to resolve to unknown, got %v", byID)
	}
}

func TestObservationStore_StableOrder(t *testing.T) {
	store := newObservationStore(nil)

	for _, id := range []string{"C", "A", "B"} {
		store.Upsert("D1", map[string]any{"id": id}, 1000)
	}

	live := store.LiveFor("D1", 1000)
	if live[0].BeaconID != "A" || live[1].BeaconID != "B" || live[2].BeaconID != "C" {
		t.Errorf("Expected beacons ordered by id, got %v %v %v", live[0].BeaconID, live[1].BeaconID, live[2].BeaconID)
	}
}

func TestObservationStore_Smoothing(t *testing.T) {
	params := signal.SmootherParams{ProcessNoise: 0.3, MeasurementNoise: 9.0, MaxStep: 3.0}
	store := newObservationStore(&params)

	first := store.Upsert("D1", map[string]any{"id": "B1", "rssi": -59.0}, 1000)
	if first.SmoothedSignal == nil || *first.SmoothedSignal != -59 {
		t.Fatalf("Expected first smoothed reading verbatim, got %v", first.SmoothedSignal)
	}

	second := store.Upsert("D1", map[string]any{"id": "B1", "rssi": -99.0}, 1001)
	if *second.SmoothedSignal != -62 {
		t.Errorf("Expected smoothed signal clamped to -62, got %v", *second.SmoothedSignal)
	}
	if *second.RawSignal != -99 {
		t.Errorf("Expected raw signal preserved, got %v", *second.RawSignal)
	}

	// Expiry forgets the filter state along with the entry.
	store.CountLive(1001 + testTTL.Seconds() + 1)
	third := store.Upsert("D1", map[string]any{"id": "B1", "rssi": -99.0}, 2000)
	if *third.SmoothedSignal != -99 {
		t.Errorf("Expected fresh filter after expiry, got %v", *third.SmoothedSignal)
	}
}

func TestObservationStore_SmoothingWithoutSignalHasNoDistance(t *testing.T) {
	params := signal.DefaultSmootherParams
	store := newObservationStore(&params)

	store.Upsert("D1", map[string]any{"id": "B1", "rssi": -65.0}, 1000)
	obs := store.Upsert("D1", map[string]any{"id": "B1"}, 1001)

	if obs.RawSignal != nil {
		t.Fatalf("Expected no raw signal, got %v", *obs.RawSignal)
	}
	if obs.DistanceMeters != nil {
		t.Errorf("Expected no distance without a signal, got %v", *obs.DistanceMeters)
	}
	if obs.SmoothedSignal == nil || *obs.SmoothedSignal != -65 {
		t.Errorf("Expected smoothed estimate kept at -65, got %v", obs.SmoothedSignal)
	}

	next := store.Upsert("D1", map[string]any{"id": "B1", "rssi": -65.0}, 1002)
	if next.DistanceMeters == nil {
		t.Errorf("Expected distance once the signal returns")
	}
}
