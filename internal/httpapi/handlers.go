package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/runnerr0/listkeeper/internal/logger"
	"github.com/runnerr0/listkeeper/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, log logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("failed to write response", logger.Error(err))
	}
}

func writeError(w http.ResponseWriter, log logger.Logger, status int, msg string) {
	writeJSON(w, log, status, errorResponse{Error: msg})
}

type healthzResponse struct {
	Status        string     `json:"status"`
	UptimeSeconds float64    `json:"uptime_seconds"`
	Version       string     `json:"version,omitempty"`
	LastSync      *time.Time `json:"last_sync,omitempty"`
	SyncError     string     `json:"sync_error,omitempty"`
}

// Healthz reports liveness and the last sync outcome.
func Healthz(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthzResponse{
			Status:        "ok",
			Version:       d.Version,
			UptimeSeconds: time.Since(d.StartTime).Seconds(),
		}
		if d.Syncer != nil {
			st := d.Syncer.Status()
			if !st.LastSuccess.IsZero() {
				last := st.LastSuccess
				resp.LastSync = &last
			}
			resp.SyncError = st.LastError
		}
		writeJSON(w, d.Logger, http.StatusOK, resp)
	}
}

type listsResponse struct {
	Lists []string `json:"lists"`
}

// Lists returns the names of all lists.
func Lists(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := d.Store.ListNames(r.Context())
		if err != nil {
			d.Logger.Error("list names failed", logger.Error(err))
			writeError(w, d.Logger, http.StatusInternalServerError, "failed to read lists")
			return
		}
		writeJSON(w, d.Logger, http.StatusOK, listsResponse{Lists: names})
	}
}

type entriesResponse struct {
	ListName string               `json:"listName"`
	Entries  []*storage.ListEntry `json:"entries"`
}

// Entries returns the entries of a list, optionally filtered by ?source=.
func Entries(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		var (
			entries []*storage.ListEntry
			err     error
		)
		if raw := strings.TrimSpace(r.URL.Query().Get("source")); raw != "" {
			src, perr := storage.ParseSource(raw)
			if perr != nil {
				writeError(w, d.Logger, http.StatusBadRequest, perr.Error())
				return
			}
			entries, err = d.Store.GetByListAndSource(r.Context(), name, src)
		} else {
			entries, err = d.Store.GetByList(r.Context(), name)
		}
		if err != nil {
			d.Logger.Error("read entries failed", logger.String("list", name), logger.Error(err))
			writeError(w, d.Logger, http.StatusInternalServerError, "failed to read entries")
			return
		}

		writeJSON(w, d.Logger, http.StatusOK, entriesResponse{ListName: name, Entries: entries})
	}
}

// Match tests ?url= against a list.
func Match(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		rawURL := r.URL.Query().Get("url")
		if rawURL == "" {
			writeError(w, d.Logger, http.StatusBadRequest, "url query parameter is required")
			return
		}

		res, err := d.Checker.Match(r.Context(), name, rawURL)
		if err != nil {
			d.Logger.Error("match failed", logger.String("list", name), logger.Error(err))
			writeError(w, d.Logger, http.StatusInternalServerError, "failed to match")
			return
		}
		writeJSON(w, d.Logger, http.StatusOK, res)
	}
}

type syncResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// Sync requests an immediate backend sync.
func Sync(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Syncer == nil {
			writeError(w, d.Logger, http.StatusServiceUnavailable, "backend sync is not configured")
			return
		}
		if d.Syncer.Trigger() {
			d.Logger.Info("manual sync triggered via endpoint", logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, d.Logger, http.StatusAccepted, syncResponse{Triggered: true, Message: "sync triggered"})
			return
		}
		d.Logger.Warn("sync already pending", logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, d.Logger, http.StatusTooManyRequests, syncResponse{Message: "sync already pending"})
	}
}
