package codec

import (
	"encoding/json"
)

// JSON encodes pages and snapshots with encoding/json. Use it when files
// written by a blob store must be read by tools outside this module.
type JSON struct{}

// Marshal implements Codec.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal implements Codec.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns "json", the key ByName resolves it by.
func (JSON) Name() string { return "json" }
