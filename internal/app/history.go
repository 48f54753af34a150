package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"

	"beaconwatch/go-telemetry-server/internal/model"
	"beaconwatch/go-telemetry-server/internal/report"
	"beaconwatch/go-telemetry-server/internal/store"
)

const (
	historyLimit    = 500
	reportListLimit = 200
	createdAtLayout = "2006-01-02T15:04:05"
	reportTimeout   = 10 * time.Second
	queryTimeout    = 2 * time.Second
	csvContentType  = "text/csv; charset=utf-8"
)

func (a *App) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		http.Error(w, "store not initialized", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Type     string   `json:"type"`
		Name     string   `json:"name"`
		Time     string   `json:"time"`
		Distance *float64 `json:"distance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" || req.Name == "" {
		a.writeError(w, http.StatusBadRequest, "Invalid notification")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	n := model.Notification{
		Type:       req.Type,
		BeaconName: req.Name,
		EventTime:  req.Time,
		Distance:   req.Distance,
		CreatedAt:  a.tracker.Now().In(a.tracker.Zone()).Format(createdAtLayout),
	}

	id, err := a.store.InsertNotification(ctx, n)
	if err != nil {
		a.logger.Error("failed to store notification", "beacon", req.Name, "error", err)
		a.writeError(w, http.StatusInternalServerError, "failed to store notification")
		return
	}

	a.writeJSON(w, http.StatusCreated, map[string]any{"status": "ok", "id": id})
}

func (a *App) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		http.Error(w, "store not initialized", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	notifications, err := a.store.Notifications(ctx, q, historyLimit)
	if err != nil {
		a.logger.Error("failed to load notifications", "error", err)
		http.Error(w, "failed to load notifications", http.StatusInternalServerError)
		return
	}

	a.writeJSON(w, http.StatusOK, struct {
		Query         string               `json:"query"`
		Notifications []model.Notification `json:"notifications"`
	}{q, notifications})
}

func (a *App) handleUptime(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		http.Error(w, "store not initialized", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	logs, err := a.store.UptimeLogs(ctx, historyLimit)
	if err != nil {
		a.logger.Error("failed to load uptime logs", "error", err)
		http.Error(w, "failed to load uptime", http.StatusInternalServerError)
		return
	}

	a.writeJSON(w, http.StatusOK, struct {
		Uptime []model.UptimeLog `json:"uptime"`
	}{logs})
}

func (a *App) handleListReports(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		http.Error(w, "store not initialized", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	reports, err := a.store.DailyReports(ctx, reportListLimit)
	if err != nil {
		a.logger.Error("failed to load daily reports", "error", err)
		http.Error(w, "failed to load reports", http.StatusInternalServerError)
		return
	}

	a.writeJSON(w, http.StatusOK, struct {
		Reports []model.DailyReport `json:"reports"`
	}{reports})
}

func (a *App) handleCreateDailyReport(w http.ResponseWriter, r *http.Request) {
	if a.reports == nil {
		http.Error(w, "store not initialized", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reportTimeout)
	defer cancel()

	rep, err := a.reports.GenerateDaily(ctx)
	if err != nil {
		a.logger.Error("manual daily report failed", "error", err)
		http.Error(w, "failed to generate report", http.StatusInternalServerError)
		return
	}

	a.writeJSON(w, http.StatusCreated, rep)
}

func (a *App) handleListActivityReports(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		http.Error(w, "store not initialized", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	reports, err := a.store.ActivityReports(ctx, reportListLimit)
	if err != nil {
		a.logger.Error("failed to load activity reports", "error", err)
		http.Error(w, "failed to load activity reports", http.StatusInternalServerError)
		return
	}

	a.writeJSON(w, http.StatusOK, struct {
		Reports []model.ActivityReport `json:"reports"`
	}{reports})
}

func (a *App) handleCreateActivityReport(w http.ResponseWriter, r *http.Request) {
	if a.reports == nil {
		http.Error(w, "store not initialized", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		BeaconName string `json:"beacon_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.BeaconName) == "" {
		a.writeError(w, http.StatusBadRequest, "beacon_name required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reportTimeout)
	defer cancel()

	rep, err := a.reports.GenerateActivity(ctx, strings.TrimSpace(req.BeaconName))
	if errors.Is(err, report.ErrNoActivity) {
		a.writeError(w, http.StatusNotFound, "No notifications found for this beacon")
		return
	}
	if err != nil {
		a.logger.Error("activity report failed", "beacon", req.BeaconName, "error", err)
		http.Error(w, "failed to generate report", http.StatusInternalServerError)
		return
	}

	a.writeJSON(w, http.StatusCreated, rep)
}

func (a *App) handleDownloadLatestReport(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		http.Error(w, "store not initialized", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	rep, err := a.store.LatestDailyReport(ctx)
	a.serveDailyCSV(w, rep, err)
}

func (a *App) handleDownloadReport(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		http.Error(w, "store not initialized", http.StatusServiceUnavailable)
		return
	}

	id, ok := reportID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	rep, err := a.store.DailyReport(ctx, id)
	a.serveDailyCSV(w, rep, err)
}

func (a *App) serveDailyCSV(w http.ResponseWriter, rep model.DailyReport, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "No report available", http.StatusNotFound)
		return
	}
	if err != nil {
		a.logger.Error("failed to load daily report", "error", err)
		http.Error(w, "failed to load report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", csvContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", report.DailyFilename(rep)))
	if err := report.WriteDailyCSV(w, rep); err != nil {
		a.logger.Error("failed to write daily report", "id", rep.ID, "error", err)
	}
}

func (a *App) handleDownloadActivityReport(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		http.Error(w, "store not initialized", http.StatusServiceUnavailable)
		return
	}

	id, ok := reportID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	rep, err := a.store.ActivityReport(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Report not found", http.StatusNotFound)
		return
	}
	if err != nil {
		a.logger.Error("failed to load activity report", "id", id, "error", err)
		http.Error(w, "failed to load report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", csvContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", report.ActivityFilename(rep)))
	if err := report.WriteActivityCSV(w, rep); err != nil {
		a.logger.Error("failed to write activity report", "id", id, "error", err)
	}
}

func reportID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid report id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
