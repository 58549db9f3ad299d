package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"mulay/internal/asset"
	"mulay/internal/logging"
	"mulay/internal/metrics"
	"mulay/internal/version"
)

type RestHandler struct {
	Managers []AssetSource
	Metrics  *metrics.Registry
	Logger   *logging.Logger
}

type assetSummary struct {
	Manager string `json:"manager"`
	ID      string `json:"id"`
	Path    string `json:"path"`
	Loaded  bool   `json:"loaded"`
	Error   string `json:"error,omitempty"`
}

type reloadResponse struct {
	Manager  string `json:"manager"`
	ID       string `json:"id"`
	Reloaded bool   `json:"reloaded"`
}

func (h *RestHandler) handleAssets(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	filter := strings.TrimSpace(r.URL.Query().Get("manager"))

	summaries := []assetSummary{}
	for _, manager := range h.Managers {
		if filter != "" && manager.Name() != filter {
			continue
		}
		for _, id := range manager.IDs() {
			path, ok := manager.Path(id)
			if !ok {
				// Destroyed between IDs and Path.
				continue
			}
			summary := assetSummary{Manager: manager.Name(), ID: id, Path: path}
			loaded, found, err := manager.IsLoaded(id)
			if !found {
				continue
			}
			summary.Loaded = loaded
			if err != nil {
				summary.Error = err.Error()
			}
			summaries = append(summaries, summary)
		}
	}
	writeJSON(w, http.StatusOK, summaries)
	return nil
}

func (h *RestHandler) handleReload(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodPost {
		return methodNotAllowed(w, "POST")
	}
	name := r.PathValue("manager")
	id := r.PathValue("id")

	manager := h.findManager(name)
	if manager == nil {
		return &apiError{Status: http.StatusNotFound, Message: "unknown manager " + strconv.Quote(name)}
	}
	found, err := manager.Reload(id)
	if !found {
		return &apiError{Status: http.StatusNotFound, Message: "unknown asset " + strconv.Quote(id)}
	}
	if err != nil {
		status := http.StatusConflict
		if errors.Is(err, asset.ErrLockPoisoned) {
			status = http.StatusInternalServerError
		}
		return &apiError{Status: status, Message: err.Error()}
	}
	writeJSON(w, http.StatusOK, reloadResponse{Manager: name, ID: id, Reloaded: true})
	return nil
}

func (h *RestHandler) handleLogs(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	buffer := h.Logger.Buffer()
	if buffer == nil {
		return &apiError{Status: http.StatusServiceUnavailable, Message: "log buffer unavailable"}
	}

	var minLevel logging.Level
	if rawLevel := strings.TrimSpace(r.URL.Query().Get("level")); rawLevel != "" {
		parsed, ok := logging.ParseLevel(rawLevel)
		if !ok {
			return &apiError{Status: http.StatusBadRequest, Message: "invalid log level"}
		}
		minLevel = parsed
	}
	limit := 0
	if rawLimit := strings.TrimSpace(r.URL.Query().Get("limit")); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed < 0 {
			return &apiError{Status: http.StatusBadRequest, Message: "invalid limit"}
		}
		limit = parsed
	}

	entries := []logging.LogEntry{}
	for _, entry := range buffer.List() {
		if logging.LevelAtLeast(entry.Level, minLevel) {
			entries = append(entries, entry)
		}
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	writeJSON(w, http.StatusOK, entries)
	return nil
}

func (h *RestHandler) handleVersion(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	writeJSON(w, http.StatusOK, version.GetVersionInfo())
	return nil
}

func (h *RestHandler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	setSecurityHeaders(w, cacheControlNoStore)
	if err := h.Metrics.WritePrometheus(w); err != nil {
		h.Logger.Warn("write metrics failed", map[string]string{
			"mulay.category": "api",
			"error":          err.Error(),
		})
	}
}

func (h *RestHandler) findManager(name string) AssetSource {
	for _, manager := range h.Managers {
		if manager.Name() == name {
			return manager
		}
	}
	return nil
}
