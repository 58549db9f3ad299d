package event

import "time"

// Event represents a typed event with an occurrence timestamp.
type Event interface {
	Type() string
	Timestamp() time.Time
}

const (
	TypeFileChanged       = "file_changed"
	TypeAssetLoaded       = "asset_loaded"
	TypeAssetReloaded     = "asset_reloaded"
	TypeAssetReloadFailed = "asset_reload_failed"
	TypeAssetDestroyed    = "asset_destroyed"
)

// FileEvent is a changed path appended to a watcher's stale buffer.
type FileEvent struct {
	EventType  string    `json:"type"`
	Path       string    `json:"path"`
	Operation  string    `json:"operation"`
	OccurredAt time.Time `json:"timestamp"`
}

func NewFileEvent(path, operation string) FileEvent {
	return FileEvent{
		EventType:  TypeFileChanged,
		Path:       path,
		Operation:  operation,
		OccurredAt: time.Now().UTC(),
	}
}

func (e FileEvent) Type() string {
	return e.EventType
}

func (e FileEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// AssetEvent captures a manager lifecycle change for one asset.
type AssetEvent struct {
	EventType  string    `json:"type"`
	Manager    string    `json:"manager"`
	AssetID    string    `json:"asset_id"`
	Path       string    `json:"path,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"timestamp"`
}

func NewAssetEvent(manager, assetID, path, eventType string) AssetEvent {
	return AssetEvent{
		EventType:  eventType,
		Manager:    manager,
		AssetID:    assetID,
		Path:       path,
		OccurredAt: time.Now().UTC(),
	}
}

func (e AssetEvent) Type() string {
	return e.EventType
}

func (e AssetEvent) Timestamp() time.Time {
	return e.OccurredAt
}
