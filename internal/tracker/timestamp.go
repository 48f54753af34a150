package tracker

import (
	"fmt"
	"math"
	"time"

	"beaconwatch/go-telemetry-server/internal/signal"
)

const (
	// Epoch values above this are taken to be milliseconds.
	millisecondThreshold = 1e12

	displayLayout = "2006-01-02 15:04:05"

	neverDisplay   = "Never"
	invalidDisplay = "Invalid time"
)

// EpochSeconds converts t to fractional Unix seconds.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// CoerceEpoch normalizes a timestamp of unknown shape to epoch seconds.
// Absent or unparseable values fall back to now.
func CoerceEpoch(raw any, now time.Time) float64 {
	if ts, ok := parseEpoch(raw); ok {
		return ts
	}
	return EpochSeconds(now)
}

func parseEpoch(raw any) (float64, bool) {
	if _, isBool := raw.(bool); isBool {
		return 0, false
	}
	ts, ok := signal.Float(raw)
	if !ok {
		return 0, false
	}
	if ts > millisecondThreshold {
		ts /= 1000.0
	}
	return ts, true
}

// DisplayZone returns the fixed civil zone used for human-readable timestamps.
func DisplayZone(offset time.Duration) *time.Location {
	name := "UTC"
	if offset != 0 {
		name = fmt.Sprintf("UTC%+g", offset.Hours())
	}
	return time.FixedZone(name, int(offset/time.Second))
}

// FormatEpoch renders epoch seconds as local civil time in zone.
func FormatEpoch(sec float64, zone *time.Location) string {
	whole := math.Floor(sec)
	t := time.Unix(int64(whole), int64((sec-whole)*1e9))
	return t.In(zone).Format(displayLayout)
}

// FormatDisplay renders a timestamp of unknown shape, accepting seconds or milliseconds.
func FormatDisplay(raw any, zone *time.Location) string {
	if raw == nil {
		return neverDisplay
	}
	ts, ok := parseEpoch(raw)
	if !ok {
		return invalidDisplay
	}
	return FormatEpoch(ts, zone)
}
