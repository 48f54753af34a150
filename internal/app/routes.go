package app

import (
	"encoding/json"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/rs/cors"
)

func (a *App) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
		Debug:          false,
	}).Handler)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Get("/api/health", a.handleHealth)

	r.Post("/flespi", a.handleFlespi)
	r.Get("/data", a.handleMapData)
	r.Post("/rename", a.handleRenameBeacon)
	r.Post("/rename_device", a.handleRenameDevice)

	r.Route("/api", func(r chi.Router) {
		r.Get("/notifications", a.handleListNotifications)
		r.Post("/notifications", a.handleCreateNotification)
		r.Get("/uptime", a.handleUptime)
		r.Get("/reports", a.handleListReports)
		r.Post("/reports/daily", a.handleCreateDailyReport)
		r.Get("/activity-reports", a.handleListActivityReports)
		r.Post("/activity-reports", a.handleCreateActivityReport)
	})

	r.Get("/download/latest-report", a.handleDownloadLatestReport)
	r.Get("/download/report/{id}", a.handleDownloadReport)
	r.Get("/download/activity-report/{id}", a.handleDownloadActivityReport)

	webDir := a.cfg.WebDir
	if webDir == "" {
		webDir = "web"
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(webDir))))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/map", http.StatusFound)
	})
	r.Get("/map", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(webDir, "index.html"))
	})

	return r
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to encode response", "error", err)
	}
}

func (a *App) writeError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, map[string]string{"status": "error", "message": message})
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (a *App) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !a.ready.Load() || a.store == nil || a.store.Ping(r.Context()) != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"starting"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := a.tracker.Health(a.tracker.Now())

	a.writeJSON(w, http.StatusOK, struct {
		ActiveDevices int    `json:"active_devices"`
		ActiveBeacons int    `json:"active_beacons"`
		Status        string `json:"status"`
	}{h.ActiveDevices, h.ActiveBeacons, h.Status()})
}
