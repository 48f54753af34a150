package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"beaconwatch/go-telemetry-server/internal/model"
)

// InsertDailyReport persists a daily report with its entries encoded as JSON.
func (s *Store) InsertDailyReport(ctx context.Context, r model.DailyReport) (int64, error) {
	if s.db == nil {
		return 0, errNotInitialized
	}

	entries := r.Entries
	if entries == nil {
		entries = []model.ReportEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return 0, fmt.Errorf("encode report entries: %w", err)
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO daily_reports (created_at, report_json, summary) VALUES (?, ?, ?);`,
		r.CreatedAt,
		string(raw),
		r.Summary,
	)
	if err != nil {
		return 0, fmt.Errorf("insert daily report: %w", err)
	}
	return res.LastInsertId()
}

// DailyReports lists stored daily reports newest first, without their entries.
func (s *Store) DailyReports(ctx context.Context, limit int) ([]model.DailyReport, error) {
	if s.db == nil {
		return nil, errNotInitialized
	}

	if limit <= 0 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at, summary FROM daily_reports ORDER BY id DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("query daily reports: %w", err)
	}
	defer rows.Close()

	reports := []model.DailyReport{}
	for rows.Next() {
		var (
			r         model.DailyReport
			createdAt sql.NullString
			summary   sql.NullString
		)
		if err := rows.Scan(&r.ID, &createdAt, &summary); err != nil {
			return nil, fmt.Errorf("scan daily report: %w", err)
		}
		r.CreatedAt = createdAt.String
		r.Summary = summary.String
		reports = append(reports, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily reports: %w", err)
	}

	return reports, nil
}

// DailyReport loads one report with its entries.
func (s *Store) DailyReport(ctx context.Context, id int64) (model.DailyReport, error) {
	return s.dailyReport(ctx, `SELECT id, created_at, report_json, summary FROM daily_reports WHERE id = ?;`, id)
}

// LatestDailyReport loads the most recently stored report.
func (s *Store) LatestDailyReport(ctx context.Context) (model.DailyReport, error) {
	return s.dailyReport(ctx, `SELECT id, created_at, report_json, summary FROM daily_reports ORDER BY id DESC LIMIT 1;`)
}

func (s *Store) dailyReport(ctx context.Context, stmt string, args ...interface{}) (model.DailyReport, error) {
	if s.db == nil {
		return model.DailyReport{}, errNotInitialized
	}

	var (
		r         model.DailyReport
		createdAt sql.NullString
		raw       sql.NullString
		summary   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&r.ID, &createdAt, &raw, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DailyReport{}, ErrNotFound
	}
	if err != nil {
		return model.DailyReport{}, fmt.Errorf("get daily report: %w", err)
	}

	r.CreatedAt = createdAt.String
	r.Summary = summary.String
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &r.Entries); err != nil {
			return model.DailyReport{}, fmt.Errorf("decode report entries: %w", err)
		}
	}
	return r, nil
}

// InsertActivityReport persists a per-beacon activity report.
func (s *Store) InsertActivityReport(ctx context.Context, r model.ActivityReport) (int64, error) {
	if s.db == nil {
		return 0, errNotInitialized
	}

	events := r.Events
	if events == nil {
		events = []model.Notification{}
	}
	raw, err := json.Marshal(events)
	if err != nil {
		return 0, fmt.Errorf("encode activity events: %w", err)
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO activity_reports (beacon_name, events_json, created_at, summary) VALUES (?, ?, ?, ?);`,
		r.BeaconName,
		string(raw),
		r.CreatedAt,
		r.Summary,
	)
	if err != nil {
		return 0, fmt.Errorf("insert activity report: %w", err)
	}
	return res.LastInsertId()
}

// ActivityReports lists stored activity reports newest first, without their events.
func (s *Store) ActivityReports(ctx context.Context, limit int) ([]model.ActivityReport, error) {
	if s.db == nil {
		return nil, errNotInitialized
	}

	if limit <= 0 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, beacon_name, created_at, summary FROM activity_reports ORDER BY id DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity reports: %w", err)
	}
	defer rows.Close()

	reports := []model.ActivityReport{}
	for rows.Next() {
		var (
			r         model.ActivityReport
			name      sql.NullString
			createdAt sql.NullString
			summary   sql.NullString
		)
		if err := rows.Scan(&r.ID, &name, &createdAt, &summary); err != nil {
			return nil, fmt.Errorf("scan activity report: %w", err)
		}
		r.BeaconName = name.String
		r.CreatedAt = createdAt.String
		r.Summary = summary.String
		reports = append(reports, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity reports: %w", err)
	}

	return reports, nil
}

// ActivityReport loads one activity report with its events.
func (s *Store) ActivityReport(ctx context.Context, id int64) (model.ActivityReport, error) {
	if s.db == nil {
		return model.ActivityReport{}, errNotInitialized
	}

	var (
		r         model.ActivityReport
		name      sql.NullString
		raw       sql.NullString
		createdAt sql.NullString
		summary   sql.NullString
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, beacon_name, events_json, created_at, summary FROM activity_reports WHERE id = ?;`,
		id,
	).Scan(&r.ID, &name, &raw, &createdAt, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ActivityReport{}, ErrNotFound
	}
	if err != nil {
		return model.ActivityReport{}, fmt.Errorf("get activity report: %w", err)
	}

	r.BeaconName = name.String
	r.CreatedAt = createdAt.String
	r.Summary = summary.String
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &r.Events); err != nil {
			return model.ActivityReport{}, fmt.Errorf("decode activity events: %w", err)
		}
	}
	return r, nil
}
