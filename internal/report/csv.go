package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"beaconwatch/go-telemetry-server/internal/model"
)

// WriteDailyCSV renders a daily report as CSV, one row per beacon.
func WriteDailyCSV(w io.Writer, r model.DailyReport) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"beacon_id", "name", "status", "last_seen", "last_device", "distance_m"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, e := range r.Entries {
		row := []string{
			e.ID,
			orDash(e.Name),
			e.Status,
			orDash(e.LastSeen),
			orDash(e.LastDevice),
			formatDistance(e.Distance),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteActivityCSV renders an activity report as CSV, one row per event.
func WriteActivityCSV(w io.Writer, r model.ActivityReport) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"type", "event_time", "distance_m", "recorded_at"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, e := range r.Events {
		row := []string{
			strings.ToUpper(orDash(e.Type)),
			orDash(e.EventTime),
			formatDistance(e.Distance),
			orDash(e.CreatedAt),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// DailyFilename names the download of a daily report.
func DailyFilename(r model.DailyReport) string {
	return fmt.Sprintf("report_%s.csv", safeName(r.CreatedAt))
}

// ActivityFilename names the download of an activity report.
func ActivityFilename(r model.ActivityReport) string {
	return fmt.Sprintf("activity_%s_%s.csv", safeName(r.BeaconName), safeName(r.CreatedAt))
}

func safeName(s string) string {
	if s == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatDistance(d *float64) string {
	if d == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *d)
}
