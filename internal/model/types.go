package model

// ReportIdentity is the reserved snapshot key carrying the most recent daily report.
const ReportIdentity = "DAILY_REPORT"

// UnknownIdentity replaces a device or beacon identity that no known field provides.
const UnknownIdentity = "unknown"

// BeaconObservation is the latest sighting of a beacon attributed to one device.
type BeaconObservation struct {
	BeaconID       string   `json:"id"`
	OwnerDeviceID  string   `json:"device_ident"`
	RawSignal      *float64 `json:"rssi"`
	SmoothedSignal *float64 `json:"smoothed_rssi,omitempty"`
	DistanceMeters *float64 `json:"distance"`
	LastSeenEpoch  float64  `json:"last_seen_raw"`
	LastSeen       string   `json:"last_seen"`
	BatteryPercent *int     `json:"battery_percent"`
}

// DeviceRecord is the canonical view of the latest message from one device.
type DeviceRecord struct {
	Identity        string              `json:"ident"`
	ObservedAtEpoch float64             `json:"timestamp_raw"`
	ObservedAt      string              `json:"timestamp"`
	Latitude        *float64            `json:"lat"`
	Longitude       *float64            `json:"lon"`
	Beacons         []BeaconObservation `json:"beacons"`
	Report          []ReportEntry       `json:"report,omitempty"`
}

// Health aggregates the devices and beacons seen within the TTL.
type Health struct {
	ActiveDevices int `json:"active_devices"`
	ActiveBeacons int `json:"active_beacons"`
}

// Status condenses the counts into the label stored with uptime snapshots.
func (h Health) Status() string {
	switch {
	case h.ActiveDevices == 0 && h.ActiveBeacons == 0:
		return "NO_DATA"
	case h.ActiveDevices == 0:
		return "NO_DEVICES"
	case h.ActiveBeacons == 0:
		return "NO_BEACONS"
	default:
		return "OK"
	}
}

// DeviceMeta holds the human-assigned name and map color of a device.
type DeviceMeta struct {
	ID    string  `json:"id"`
	Name  *string `json:"name"`
	Color string  `json:"color"`
}

// Notification records a beacon entering or leaving the range of its device.
type Notification struct {
	ID         int64    `json:"id"`
	Type       string   `json:"type"`
	BeaconName string   `json:"name"`
	EventTime  string   `json:"time"`
	Distance   *float64 `json:"distance"`
	CreatedAt  string   `json:"created_at"`
}

// ReportEntry is one beacon row of a daily report.
type ReportEntry struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Status     string   `json:"status"`
	LastSeen   string   `json:"last_seen,omitempty"`
	LastDevice string   `json:"last_device,omitempty"`
	Distance   *float64 `json:"distance"`
}

// DailyReport is a persisted daily beacon report.
type DailyReport struct {
	ID        int64         `json:"id"`
	CreatedAt string        `json:"created_at"`
	Summary   string        `json:"summary"`
	Entries   []ReportEntry `json:"entries,omitempty"`
}

// ActivityReport is a persisted per-beacon history of notifications.
type ActivityReport struct {
	ID         int64          `json:"id"`
	BeaconName string         `json:"beacon_name"`
	CreatedAt  string         `json:"created_at"`
	Summary    string         `json:"summary"`
	Events     []Notification `json:"events,omitempty"`
}

// UptimeLog is a single stored health snapshot.
type UptimeLog struct {
	ID          int64  `json:"id"`
	Timestamp   string `json:"timestamp"`
	DeviceCount int    `json:"device_count"`
	BeaconCount int    `json:"beacon_count"`
	Status      string `json:"status"`
}
