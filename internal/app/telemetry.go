package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"beaconwatch/go-telemetry-server/internal/model"
	"beaconwatch/go-telemetry-server/internal/tracker"
)

const maxDeliveryBytes = 10 << 20

var devicePalette = []string{
	"#3b82f6",
	"#10b981",
	"#f59e0b",
	"#ef4444",
	"#8b5cf6",
	"#ec4899",
	"#22c55e",
	"#f97316",
	"#0ea5e9",
	"#a855f7",
}

// nextColor picks the first palette color not yet used, then cycles by the number of used colors.
func nextColor(used map[string]struct{}) string {
	for _, c := range devicePalette {
		if _, ok := used[c]; !ok {
			used[c] = struct{}{}
			return c
		}
	}
	c := devicePalette[len(used)%len(devicePalette)]
	used[c] = struct{}{}
	return c
}

// ingestDelivery feeds one webhook or MQTT body into the tracker and pokes the uptime recorder.
func (a *App) ingestDelivery(ctx context.Context, source string, body []byte) (tracker.DeliveryStats, error) {
	deliveryID := uuid.NewString()

	stats, err := a.tracker.IngestDelivery(body)
	if err != nil {
		a.logger.Warn("delivery rejected", "delivery", deliveryID, "source", source, "bytes", len(body), "error", err)
		return stats, err
	}

	a.logger.Info("delivery ingested",
		"delivery", deliveryID,
		"source", source,
		"received", stats.Received,
		"processed", stats.Processed,
		"tracking", stats.Tracking,
	)

	if a.uptime != nil {
		if _, err := a.uptime.MaybeRecord(ctx, a.tracker.Now()); err != nil {
			a.logger.Error("uptime snapshot failed", "delivery", deliveryID, "error", err)
		}
	}

	return stats, nil
}

func (a *App) handleFlespi(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDeliveryBytes))
	if err != nil {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := a.ingestDelivery(ctx, "webhook", body); err != nil {
		switch {
		case errors.Is(err, tracker.ErrNotJSON):
			http.Error(w, "no json", http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

type deviceView struct {
	Ident        string                    `json:"ident"`
	Name         *string                   `json:"name"`
	Color        string                    `json:"color"`
	TimestampRaw float64                   `json:"timestamp_raw"`
	Timestamp    string                    `json:"timestamp"`
	Lat          *float64                  `json:"lat"`
	Lon          *float64                  `json:"lon"`
	Beacons      []model.BeaconObservation `json:"beacons"`
}

func (a *App) handleMapData(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		http.Error(w, "store not initialized", http.StatusServiceUnavailable)
		return
	}

	snapshot := a.tracker.Snapshot()

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names, err := a.store.BeaconNames(ctx)
	if err != nil {
		a.logger.Error("failed to load beacon names", "error", err)
		http.Error(w, "failed to load beacon names", http.StatusInternalServerError)
		return
	}

	meta, err := a.store.Devices(ctx)
	if err != nil {
		a.logger.Error("failed to load devices", "error", err)
		http.Error(w, "failed to load devices", http.StatusInternalServerError)
		return
	}

	idents := make([]string, 0, len(snapshot))
	for ident := range snapshot {
		idents = append(idents, ident)
	}
	sort.Strings(idents)

	used := make(map[string]struct{})
	for _, m := range meta {
		if m.Color != "" {
			used[m.Color] = struct{}{}
		}
	}

	for _, ident := range idents {
		if ident == model.ReportIdentity {
			continue
		}
		if _, ok := meta[ident]; ok {
			continue
		}
		m := model.DeviceMeta{ID: ident, Color: nextColor(used)}
		if err := a.store.UpsertDevice(ctx, m); err != nil {
			a.logger.Error("failed to assign device color", "ident", ident, "error", err)
			http.Error(w, "failed to store device", http.StatusInternalServerError)
			return
		}
		meta[ident] = m
	}

	devices := make([]any, 0, len(idents))
	for _, ident := range idents {
		rec := snapshot[ident]
		if ident == model.ReportIdentity {
			devices = append(devices, rec)
			continue
		}

		beacons := rec.Beacons
		if beacons == nil {
			beacons = []model.BeaconObservation{}
		}
		m := meta[ident]
		devices = append(devices, deviceView{
			Ident:        ident,
			Name:         m.Name,
			Color:        m.Color,
			TimestampRaw: rec.ObservedAtEpoch,
			Timestamp:    rec.ObservedAt,
			Lat:          rec.Latitude,
			Lon:          rec.Longitude,
			Beacons:      beacons,
		})
	}

	a.writeJSON(w, http.StatusOK, struct {
		Devices     []any             `json:"devices"`
		BeaconNames map[string]string `json:"beacon_names"`
	}{devices, names})
}

type renameRequest struct {
	BeaconID string  `json:"beacon_id"`
	DeviceID string  `json:"device_id"`
	NewName  *string `json:"new_name"`
}

func decodeRename(r *http.Request) renameRequest {
	var req renameRequest
	// A malformed body is handled as an empty request.
	_ = json.NewDecoder(r.Body).Decode(&req)
	return req
}

func (a *App) handleRenameBeacon(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		http.Error(w, "store not initialized", http.StatusServiceUnavailable)
		return
	}

	req := decodeRename(r)
	if req.BeaconID == "" || req.NewName == nil {
		a.writeError(w, http.StatusBadRequest, "Invalid input")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.store.RenameBeacon(ctx, req.BeaconID, *req.NewName); err != nil {
		a.logger.Error("failed to rename beacon", "beacon", req.BeaconID, "error", err)
		a.writeError(w, http.StatusInternalServerError, "failed to rename beacon")
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleRenameDevice(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		http.Error(w, "store not initialized", http.StatusServiceUnavailable)
		return
	}

	req := decodeRename(r)
	if req.DeviceID == "" || req.NewName == nil {
		a.writeError(w, http.StatusBadRequest, "Invalid input")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.store.RenameDevice(ctx, req.DeviceID, *req.NewName); err != nil {
		a.logger.Error("failed to rename device", "device", req.DeviceID, "error", err)
		a.writeError(w, http.StatusInternalServerError, "failed to rename device")
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
