// Package api exposes a running reload loop over HTTP: the registered
// assets, a websocket stream of watcher and asset events, recent logs and
// the metrics registry.
package api

import (
	"net/http"

	"mulay/internal/event"
	"mulay/internal/logging"
	"mulay/internal/metrics"
)

// AssetSource is the view of an asset manager the API needs. Every
// *asset.Manager satisfies it.
type AssetSource interface {
	Name() string
	IDs() []string
	Path(id string) (string, bool)
	IsLoaded(id string) (loaded, found bool, err error)
	Reload(id string) (bool, error)
}

type Options struct {
	Managers       []AssetSource
	Events         *event.Bus[event.Event]
	Metrics        *metrics.Registry
	Logger         *logging.Logger
	AuthToken      string
	AllowedOrigins []string
}

func RegisterRoutes(mux *http.ServeMux, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	rest := &RestHandler{
		Managers: opts.Managers,
		Metrics:  opts.Metrics,
		Logger:   logger,
	}
	wrap := func(handler http.Handler) http.Handler {
		return loggingMiddleware(logger, handler)
	}

	mux.Handle("/api/assets", wrap(restHandler(opts.AuthToken, rest.handleAssets)))
	mux.Handle("/api/assets/{manager}/{id}/reload", wrap(restHandler(opts.AuthToken, rest.handleReload)))
	mux.Handle("/api/logs", wrap(restHandler(opts.AuthToken, rest.handleLogs)))
	mux.Handle("/api/version", wrap(restHandler("", rest.handleVersion)))
	mux.Handle("/metrics", wrap(http.HandlerFunc(rest.handleMetrics)))

	events := &EventsHandler{
		Bus:            opts.Events,
		Logger:         logger,
		AuthToken:      opts.AuthToken,
		AllowedOrigins: opts.AllowedOrigins,
	}
	mux.Handle("/api/events", wrap(events))
}
