package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"beaconwatch/go-telemetry-server/internal/model"
)

// DefaultDeviceColor is used when a device is renamed before it was ever assigned a color.
const DefaultDeviceColor = "#3b82f6"

// BeaconNames returns every human-assigned beacon name keyed by beacon id.
func (s *Store) BeaconNames(ctx context.Context) (map[string]string, error) {
	if s.db == nil {
		return nil, errNotInitialized
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM beacon_names;`)
	if err != nil {
		return nil, fmt.Errorf("query beacon names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var id string
		var name sql.NullString
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan beacon name: %w", err)
		}
		names[id] = name.String
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate beacon names: %w", err)
	}

	return names, nil
}

// RenameBeacon stores or replaces the name of a beacon.
func (s *Store) RenameBeacon(ctx context.Context, beaconID, name string) error {
	if s.db == nil {
		return errNotInitialized
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO beacon_names (id, name) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name;`,
		beaconID,
		name,
	)
	if err != nil {
		return fmt.Errorf("rename beacon: %w", err)
	}
	return nil
}

// Devices returns the stored name and color of every known device keyed by id.
func (s *Store) Devices(ctx context.Context) (map[string]model.DeviceMeta, error) {
	if s.db == nil {
		return nil, errNotInitialized
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, color FROM devices;`)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	devices := make(map[string]model.DeviceMeta)
	for rows.Next() {
		var (
			id    string
			name  sql.NullString
			color sql.NullString
		)
		if err := rows.Scan(&id, &name, &color); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}

		meta := model.DeviceMeta{ID: id, Color: color.String}
		if name.Valid {
			n := name.String
			meta.Name = &n
		}
		devices[id] = meta
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate devices: %w", err)
	}

	return devices, nil
}

// UpsertDevice records the name and color of a device.
func (s *Store) UpsertDevice(ctx context.Context, meta model.DeviceMeta) error {
	if s.db == nil {
		return errNotInitialized
	}

	var name sql.NullString
	if meta.Name != nil {
		name = sql.NullString{String: *meta.Name, Valid: true}
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO devices (id, name, color) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, color = excluded.color;`,
		meta.ID,
		name,
		nullString(meta.Color),
	)
	if err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}
	return nil
}

// RenameDevice sets the name of a device while keeping its assigned color.
func (s *Store) RenameDevice(ctx context.Context, deviceID, name string) error {
	if s.db == nil {
		return errNotInitialized
	}

	var color sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT color FROM devices WHERE id = ?;`, deviceID).Scan(&color)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("lookup device color: %w", err)
	}

	keep := color.String
	if keep == "" {
		keep = DefaultDeviceColor
	}

	return s.UpsertDevice(ctx, model.DeviceMeta{ID: deviceID, Name: &name, Color: keep})
}
