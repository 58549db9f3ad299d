package resources

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"mulay/internal/asset"
)

var documentExtensions = map[string]struct{}{
	".yaml": {},
	".yml":  {},
	".json": {},
}

// Document is a YAML or JSON mapping loaded from disk. JSON is read through
// the YAML decoder, which accepts it as a subset.
type Document struct {
	id       string
	path     string
	raw      []byte
	data     map[string]any
	revision uint64
	loaded   bool
}

// NewDocument is an asset.Constructor for data documents.
func NewDocument(id, path string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := documentExtensions[ext]; !ok {
		return nil, asset.NewError(asset.KindInvalidFileExtension, path, "expected .yaml, .yml or .json", nil)
	}
	raw, data, err := readDocument(path)
	if err != nil {
		return nil, asset.NewError(asset.KindLoadingFailed, path, "load document", err)
	}
	return &Document{
		id:       id,
		path:     path,
		raw:      raw,
		data:     data,
		revision: nextRevision(),
		loaded:   true,
	}, nil
}

func readDocument(path string) ([]byte, map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	data, err := decodeMapping(raw)
	if err != nil {
		return nil, nil, err
	}
	return raw, data, nil
}

func decodeMapping(raw []byte) (map[string]any, error) {
	data := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return data, nil
	}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (d *Document) Reload() error {
	if !d.loaded {
		return &asset.Error{Kind: asset.KindNotLoaded, ID: d.id, Path: d.path, Message: "document not loaded"}
	}
	raw, err := os.ReadFile(d.path)
	if err != nil {
		return asset.NewError(asset.KindLoadingFailed, d.path, "read document", err)
	}
	data, err := decodeMapping(raw)
	if err != nil {
		return asset.NewError(asset.KindReloadingFailed, d.path, "decode document", err)
	}
	d.raw = raw
	d.data = data
	d.revision = nextRevision()
	return nil
}

func (d *Document) Destroy() error {
	d.raw = nil
	d.data = nil
	d.loaded = false
	return nil
}

func (d *Document) IsLoaded() bool {
	return d.loaded
}

func (d *Document) SourcePath() string {
	return d.path
}

func (d *Document) ID() string {
	return d.id
}

func (d *Document) Revision() uint64 {
	return d.revision
}

// Data returns the decoded top-level mapping.
func (d *Document) Data() map[string]any {
	return d.data
}

// Lookup walks nested mappings by key.
func (d *Document) Lookup(keys ...string) (any, bool) {
	var current any = d.data
	for _, key := range keys {
		mapping, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = mapping[key]
		if !ok {
			return nil, false
		}
	}
	return current, d.data != nil
}

// Decode unmarshals the current document into target.
func (d *Document) Decode(target any) error {
	if !d.loaded {
		return &asset.Error{Kind: asset.KindNotLoaded, ID: d.id, Path: d.path, Message: "document not loaded"}
	}
	return yaml.Unmarshal(d.raw, target)
}
