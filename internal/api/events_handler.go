package api

import (
	"net/http"
	"strings"

	"mulay/internal/event"
	"mulay/internal/logging"
)

var streamableEventTypes = map[string]struct{}{
	event.TypeFileChanged:       {},
	event.TypeAssetLoaded:       {},
	event.TypeAssetReloaded:     {},
	event.TypeAssetReloadFailed: {},
	event.TypeAssetDestroyed:    {},
}

// EventsHandler streams watcher and asset events over a websocket. The
// optional types query parameter is a comma separated allow list.
type EventsHandler struct {
	Bus            *event.Bus[event.Event]
	Logger         *logging.Logger
	AuthToken      string
	AllowedOrigins []string
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeJSONError(w, &apiError{Status: http.StatusMethodNotAllowed, Message: "method not allowed"})
		return
	}
	types, unknown := parseEventTypes(r.URL.Query().Get("types"))
	if unknown != "" {
		writeJSONError(w, &apiError{Status: http.StatusBadRequest, Message: "unknown event type " + unknown})
		return
	}

	serveWSBusStream(w, r, wsBusStreamConfig[event.Event]{
		Logger:            h.Logger,
		AuthToken:         h.AuthToken,
		AllowedOrigins:    h.AllowedOrigins,
		Bus:               h.Bus,
		Types:             types,
		UnavailableReason: "event bus unavailable",
	})
}

func parseEventTypes(raw string) (types []string, unknown string) {
	for _, part := range strings.Split(raw, ",") {
		eventType := strings.TrimSpace(part)
		if eventType == "" {
			continue
		}
		if _, ok := streamableEventTypes[eventType]; !ok {
			return nil, eventType
		}
		types = append(types, eventType)
	}
	return types, ""
}
