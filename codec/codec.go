// Package codec centralizes payload encoding for persisted data: fingerprint
// snapshots and stored neighbor lists.
//
// Codec selection is a breaking-change boundary. Snapshot files record the
// codec name in their header and select the codec by name on load, so bytes
// written by one codec are never fed to another.
package codec

import (
	"encoding/json"

	gojson "github.com/goccy/go-json"
)

// Codec encodes and decodes values. Implementations must be safe for
// concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used for newly written data. Existing files are
// self-describing and are opened with the codec named in their header.
var Default Codec = GoJSON{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// JSON is the standard-library JSON codec. The most portable option; kept as
// a named alternative for data written before go-json became the default.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// GoJSON is a JSON codec backed by github.com/goccy/go-json. Wire-compatible
// with JSON, considerably faster on the large snapshot payloads.
type GoJSON struct{}

// Marshal encodes the value to JSON.
func (GoJSON) Marshal(v any) ([]byte, error) { return gojson.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }

// Name returns the unique name of the codec ("go-json").
func (GoJSON) Name() string { return "go-json" }
