package tracker

import (
	"math"
	"time"

	"beaconwatch/go-telemetry-server/internal/model"
)

func healthOf(devices *SnapshotStore, observations *ObservationStore, ttl time.Duration, now time.Time) model.Health {
	nowEpoch := EpochSeconds(now)
	limit := ttl.Seconds()

	var h model.Health
	for ident, rec := range devices.Snapshot() {
		if ident == model.ReportIdentity {
			continue
		}
		ts := rec.ObservedAtEpoch
		if math.IsNaN(ts) || math.IsInf(ts, 0) {
			// Known device with no usable clock: count it.
			h.ActiveDevices++
			continue
		}
		if ts > millisecondThreshold {
			ts /= 1000.0
		}
		if nowEpoch-ts <= limit {
			h.ActiveDevices++
		}
	}

	h.ActiveBeacons = observations.CountLive(nowEpoch)
	return h
}
