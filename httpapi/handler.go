package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ktrzcinx/rtls-app/metrics"
	"github.com/ktrzcinx/rtls-app/zone"
	"github.com/rs/zerolog"
)

// Zone is the part of the tracking engine the API exposes.
type Zone interface {
	AddDevice(id int, x, y, z float64) error
	AddMeasurement(from, to int, distance float64, timestampMs int64) error
	AllDevicePositions(timestampMs int64) []zone.DevicePosition
	DeviceHandle(index int) (zone.DeviceHandle, error)
	Serialize(h zone.DeviceHandle) (zone.DeviceSnapshot, error)
}

type Handler struct {
	log     zerolog.Logger
	zone    Zone
	metrics *metrics.Metrics
	// now supplies the zone clock for requests that omit a timestamp.
	now func() int64
}

func NewHandler(log zerolog.Logger, z Zone, m *metrics.Metrics, now func() int64) *Handler {
	if now == nil {
		start := time.Now()
		now = func() int64 { return time.Since(start).Milliseconds() }
	}
	return &Handler{log: log, zone: z, metrics: m, now: now}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(h.accessLog)

	r.Get("/healthz", h.handleHealthz)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Route("/devices", func(r chi.Router) {
				r.Post("/", h.handleAddDevice)
				r.Get("/{index}", h.handleGetDevice)
			})
			r.Post("/measurements", h.handleAddMeasurement)
			r.Get("/positions", h.handlePositions)
		})
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		h.metrics.ObserveHTTPRequest(r.Method, path, ww.Status(), time.Since(start))

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

// writeZoneError maps zone sentinels onto HTTP statuses.
func (h *Handler) writeZoneError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, zone.ErrDeviceExists):
		h.writeError(w, http.StatusConflict, "device_exists", err.Error(), nil)
	case errors.Is(err, zone.ErrUnknownDevice), errors.Is(err, zone.ErrIndexOutOfRange):
		h.writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, zone.ErrInvalidDistance),
		errors.Is(err, zone.ErrSelfMeasurement),
		errors.Is(err, zone.ErrInvalidPosition):
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
	default:
		h.log.Error().Err(err).Msg("zone error")
		h.writeError(w, http.StatusInternalServerError, "internal", "zone error", nil)
	}
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type deviceCreate struct {
	ID *int    `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
}

func (h *Handler) handleAddDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceCreate
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if req.ID == nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "id is required", nil)
		return
	}

	if err := h.zone.AddDevice(*req.ID, req.X, req.Y, req.Z); err != nil {
		h.writeZoneError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{"id": *req.ID})
}

type measurementCreate struct {
	From      *int     `json:"from"`
	To        *int     `json:"to"`
	Distance  *float64 `json:"distance"`
	Timestamp *int64   `json:"timestamp"`
}

func (h *Handler) handleAddMeasurement(w http.ResponseWriter, r *http.Request) {
	var req measurementCreate
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if req.From == nil || req.To == nil || req.Distance == nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "from, to and distance are required", nil)
		return
	}
	ts := h.now()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}

	if err := h.zone.AddMeasurement(*req.From, *req.To, *req.Distance, ts); err != nil {
		h.writeZoneError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "timestamp": ts})
}

func (h *Handler) handlePositions(w http.ResponseWriter, r *http.Request) {
	ts := h.now()
	if raw := r.URL.Query().Get("ts"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "ts must be an integer", nil)
			return
		}
		ts = v
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"timestamp": ts,
		"devices":   h.zone.AllDevicePositions(ts),
	})
}

func (h *Handler) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "index must be an integer", nil)
		return
	}
	handle, err := h.zone.DeviceHandle(index)
	if err != nil {
		h.writeZoneError(w, err)
		return
	}
	snap, err := h.zone.Serialize(handle)
	if err != nil {
		h.writeZoneError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}
