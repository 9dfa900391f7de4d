// Package codec encodes registry records for persistence backends.
//
// Stores hold opaque bytes; a Codec decides their layout. JSON is the default
// and keeps stored records human-readable. MsgPack is more compact.
//
// Usage:
//
//	reg := registry.New(
//	    registry.WithStore(store.NewRedisStore(client)),
//	    registry.WithCodec(codec.MsgPack{}),
//	)
package codec

import "sync"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Encode serializes v to bytes.
	Encode(v any) ([]byte, error)

	// Decode deserializes bytes into v, which must be a pointer.
	Decode(data []byte, v any) error

	// ContentType returns the MIME type (e.g., "application/json").
	ContentType() string
}

// Default returns the default codec (JSON).
func Default() Codec {
	return JSON{}
}

var (
	mu       sync.RWMutex
	registry = map[string]Codec{
		JSON{}.ContentType():    JSON{},
		MsgPack{}.ContentType(): MsgPack{},
	}
)

// Register adds a codec to the global registry, keyed by content type.
func Register(c Codec) {
	mu.Lock()
	defer mu.Unlock()
	registry[c.ContentType()] = c
}

// Get retrieves a codec by content type.
func Get(contentType string) (Codec, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := registry[contentType]
	return c, ok
}

// MustGet retrieves a codec by content type, falling back to JSON.
func MustGet(contentType string) Codec {
	if c, ok := Get(contentType); ok {
		return c
	}
	return JSON{}
}
