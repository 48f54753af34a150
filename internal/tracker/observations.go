package tracker

import (
	"math"
	"sort"
	"sync"
	"time"

	"beaconwatch/go-telemetry-server/internal/model"
	"beaconwatch/go-telemetry-server/internal/signal"
)

const unknownID = model.UnknownIdentity

type observationKey struct {
	owner  string
	beacon string
}

// ObservationOptions configures an ObservationStore.
type ObservationOptions struct {
	TTL       time.Duration
	Estimator signal.Estimator
	Zone      *time.Location
	// Smoothing enables one Smoother per (device, beacon) pair when non-nil.
	Smoothing *signal.SmootherParams
}

// ObservationStore keeps the latest sighting of each beacon per reporting device.
// Expired entries are removed by whichever read sweeps the table next.
type ObservationStore struct {
	ttl       float64
	estimator signal.Estimator
	zone      *time.Location
	smoothing *signal.SmootherParams

	mu        sync.Mutex
	entries   map[observationKey]model.BeaconObservation
	smoothers map[observationKey]*signal.Smoother
}

// NewObservationStore constructs an empty store.
func NewObservationStore(opts ObservationOptions) *ObservationStore {
	zone := opts.Zone
	if zone == nil {
		zone = time.UTC
	}
	return &ObservationStore{
		ttl:       opts.TTL.Seconds(),
		estimator: opts.Estimator,
		zone:      zone,
		smoothing: opts.Smoothing,
		entries:   make(map[observationKey]model.BeaconObservation),
		smoothers: make(map[observationKey]*signal.Smoother),
	}
}

// Upsert parses a raw beacon entry and replaces whatever was stored for (owner, beacon).
func (s *ObservationStore) Upsert(owner string, payload map[string]any, nowEpoch float64) model.BeaconObservation {
	obs := model.BeaconObservation{
		BeaconID:      identity(payload, beaconIdentityFields),
		OwnerDeviceID: owner,
		LastSeenEpoch: nowEpoch,
		LastSeen:      FormatEpoch(nowEpoch, s.zone),
	}

	if rssi, ok := signal.Float(payload["rssi"]); ok {
		obs.RawSignal = &rssi
	}
	if mv, ok := firstPresent(payload, batteryVoltageFields); ok {
		obs.BatteryPercent = signal.BatteryPercent(mv)
	}

	key := observationKey{owner: owner, beacon: obs.BeaconID}

	s.mu.Lock()
	defer s.mu.Unlock()

	obs.DistanceMeters = s.distanceLocked(key, obs.RawSignal, &obs)
	s.entries[key] = obs
	return obs
}

func (s *ObservationStore) distanceLocked(key observationKey, rssi *float64, obs *model.BeaconObservation) *float64 {
	if rssi == nil {
		if sm, ok := s.smoothers[key]; ok {
			if est, ok := sm.Estimate(); ok {
				obs.SmoothedSignal = &est
			}
		}
		return nil
	}
	if s.smoothing == nil {
		return s.estimator.FromRSSI(*rssi)
	}

	sm, ok := s.smoothers[key]
	if !ok {
		sm = signal.NewSmoother(*s.smoothing)
		s.smoothers[key] = sm
	}
	smoothed, ok := sm.Update(rssi)
	if !ok {
		return nil
	}
	obs.SmoothedSignal = &smoothed
	return s.estimator.FromRSSI(smoothed)
}

// LiveFor sweeps the whole table and returns the surviving observations reported by owner,
// ordered by beacon id.
func (s *ObservationStore) LiveFor(owner string, nowEpoch float64) []model.BeaconObservation {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(nowEpoch)

	live := make([]model.BeaconObservation, 0)
	for key, obs := range s.entries {
		if key.owner == owner {
			live = append(live, obs)
		}
	}
	sort.Slice(live, func(i, j int) bool {
		return live[i].BeaconID < live[j].BeaconID
	})
	return live
}

// CountLive sweeps the table and returns the number of surviving observations.
func (s *ObservationStore) CountLive(nowEpoch float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(nowEpoch)
	return len(s.entries)
}

// Len reports the physical table size without sweeping, so callers can see what
// earlier reads evicted. Tests use it to observe eviction.
func (s *ObservationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *ObservationStore) sweepLocked(nowEpoch float64) {
	for key, obs := range s.entries {
		if s.expired(obs, nowEpoch) {
			delete(s.entries, key)
			delete(s.smoothers, key)
		}
	}
}

func (s *ObservationStore) expired(obs model.BeaconObservation, nowEpoch float64) bool {
	if math.IsNaN(obs.LastSeenEpoch) || math.IsInf(obs.LastSeenEpoch, 0) {
		return true
	}
	return nowEpoch-obs.LastSeenEpoch > s.ttl
}
