package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"beaconwatch/go-telemetry-server/internal/model"
)

// InsertNotification stores one enter/leave event and returns its id.
func (s *Store) InsertNotification(ctx context.Context, n model.Notification) (int64, error) {
	if s.db == nil {
		return 0, errNotInitialized
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO notifications (type, beacon_name, event_time, distance, created_at) VALUES (?, ?, ?, ?, ?);`,
		n.Type,
		n.BeaconName,
		nullString(n.EventTime),
		nullFloat(n.Distance),
		n.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("notification id: %w", err)
	}
	return id, nil
}

// Notifications returns the newest notifications, optionally filtered by a substring
// of the beacon name, type, event time or creation time.
func (s *Store) Notifications(ctx context.Context, query string, limit int) ([]model.Notification, error) {
	if s.db == nil {
		return nil, errNotInitialized
	}

	if limit <= 0 {
		limit = 500
	}

	stmt := `SELECT id, type, beacon_name, event_time, distance, created_at FROM notifications`
	var args []interface{}
	if q := strings.TrimSpace(query); q != "" {
		like := "%" + q + "%"
		stmt += ` WHERE beacon_name LIKE ? OR type LIKE ? OR event_time LIKE ? OR created_at LIKE ?`
		args = append(args, like, like, like, like)
	}
	stmt += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	return s.queryNotifications(ctx, stmt+";", args...)
}

// NotificationsForBeacon returns the full history of one beacon, oldest first.
func (s *Store) NotificationsForBeacon(ctx context.Context, beaconName string) ([]model.Notification, error) {
	if s.db == nil {
		return nil, errNotInitialized
	}

	return s.queryNotifications(
		ctx,
		`SELECT id, type, beacon_name, event_time, distance, created_at
		 FROM notifications
		 WHERE beacon_name = ?
		 ORDER BY id ASC;`,
		beaconName,
	)
}

func (s *Store) queryNotifications(ctx context.Context, stmt string, args ...interface{}) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		var (
			n         model.Notification
			typ       sql.NullString
			name      sql.NullString
			eventTime sql.NullString
			distance  sql.NullFloat64
			createdAt sql.NullString
		)
		if err := rows.Scan(&n.ID, &typ, &name, &eventTime, &distance, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = typ.String
		n.BeaconName = name.String
		n.EventTime = eventTime.String
		n.Distance = floatPtr(distance)
		n.CreatedAt = createdAt.String
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}

	return notifications, nil
}
