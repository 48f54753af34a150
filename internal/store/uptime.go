package store

import (
	"context"
	"database/sql"
	"fmt"

	"beaconwatch/go-telemetry-server/internal/model"
)

// InsertUptimeLog stores one health snapshot.
func (s *Store) InsertUptimeLog(ctx context.Context, l model.UptimeLog) error {
	if s.db == nil {
		return errNotInitialized
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO uptime_logs (timestamp, device_count, beacon_count, status) VALUES (?, ?, ?, ?);`,
		l.Timestamp,
		l.DeviceCount,
		l.BeaconCount,
		l.Status,
	)
	if err != nil {
		return fmt.Errorf("insert uptime log: %w", err)
	}
	return nil
}

// UptimeLogs returns the newest snapshots first.
func (s *Store) UptimeLogs(ctx context.Context, limit int) ([]model.UptimeLog, error) {
	if s.db == nil {
		return nil, errNotInitialized
	}

	if limit <= 0 {
		limit = 500
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, timestamp, device_count, beacon_count, status
		 FROM uptime_logs
		 ORDER BY id DESC
		 LIMIT ?;`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query uptime logs: %w", err)
	}
	defer rows.Close()

	logs := []model.UptimeLog{}
	for rows.Next() {
		var (
			l       model.UptimeLog
			ts      sql.NullString
			devices sql.NullInt64
			beacons sql.NullInt64
			status  sql.NullString
		)
		if err := rows.Scan(&l.ID, &ts, &devices, &beacons, &status); err != nil {
			return nil, fmt.Errorf("scan uptime log: %w", err)
		}
		l.Timestamp = ts.String
		l.DeviceCount = int(devices.Int64)
		l.BeaconCount = int(beacons.Int64)
		l.Status = status.String
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uptime logs: %w", err)
	}

	return logs, nil
}
