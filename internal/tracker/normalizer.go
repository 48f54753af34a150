package tracker

import (
	"time"

	"beaconwatch/go-telemetry-server/internal/model"
	"beaconwatch/go-telemetry-server/internal/signal"
)

// Normalizer turns one raw telemetry message into a canonical DeviceRecord,
// updating the observation store on the way.
type Normalizer struct {
	observations *ObservationStore
	zone         *time.Location
}

// NewNormalizer returns a normalizer writing beacon sightings into observations.
func NewNormalizer(observations *ObservationStore, zone *time.Location) *Normalizer {
	if zone == nil {
		zone = time.UTC
	}
	return &Normalizer{observations: observations, zone: zone}
}

// Normalize never fails: a non-object message yields an "unknown" record with no beacons.
func (n *Normalizer) Normalize(raw any, now time.Time) model.DeviceRecord {
	msg, ok := raw.(map[string]any)
	if !ok {
		msg = map[string]any{}
	}

	ident := identity(msg, deviceIdentityFields)

	tsRaw, _ := firstPresent(msg, timestampFields)
	ts := CoerceEpoch(tsRaw, now)

	rec := model.DeviceRecord{
		Identity:        ident,
		ObservedAtEpoch: ts,
		ObservedAt:      FormatEpoch(ts, n.zone),
		Latitude:        coordinate(msg, latitudeFields),
		Longitude:       coordinate(msg, longitudeFields),
	}

	nowEpoch := EpochSeconds(now)

	if list, ok := firstPresent(msg, beaconListFields); ok {
		if entries, ok := list.([]any); ok {
			for _, entry := range entries {
				payload, ok := entry.(map[string]any)
				if !ok {
					continue
				}
				n.observations.Upsert(ident, payload, nowEpoch)
			}
		}
	}

	rec.Beacons = n.observations.LiveFor(ident, nowEpoch)
	return rec
}

func coordinate(msg map[string]any, chain []accessor) *float64 {
	for _, get := range chain {
		if v, ok := signal.Float(get(msg)); ok {
			return &v
		}
	}
	return nil
}
