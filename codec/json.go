package codec

import json "github.com/goccy/go-json"

// JSON implements Codec using JSON serialization.
type JSON struct{}

// Encode serializes v to JSON bytes.
func (JSON) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode deserializes JSON bytes into v.
func (JSON) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// ContentType returns the MIME type for JSON.
func (JSON) ContentType() string {
	return "application/json"
}

var _ Codec = JSON{}
