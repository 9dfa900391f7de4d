// Package store provides key-value backends used as a write-through cache of
// registry metadata.
//
// A store is never the source of truth. The version registry writes a record
// after every successful mutation and removes it on deletion; failures are
// logged and do not fail the registration.
//
// Keys have the form "name@version" (see Key). Values are opaque bytes
// produced by a codec.
//
// Backends:
//   - MemoryStore: in-process map, for tests and single-node use
//   - RedisStore: one Redis hash, one field per key
//   - MongoStore: one document per key
//   - SQLStore: one row per key, any database/sql driver (PostgreSQL via
//     OpenPostgres, SQLite in tests)
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNotFound is returned by Load when the key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrInvalidKey is returned when a key is not of the form "name@version".
	ErrInvalidKey = errors.New("invalid store key")
)

// Store abstracts key-value persistence.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save writes value under key, replacing any existing value.
	Save(ctx context.Context, key string, value []byte) error

	// Load returns the value stored under key.
	// Returns ErrNotFound if the key does not exist.
	Load(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns all keys starting with prefix, sorted.
	// An empty prefix lists every key.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases resources.
	Close() error
}

// Key returns the store key for a schema version.
func Key(name string, version int) string {
	return name + "@" + strconv.Itoa(version)
}

// Prefix returns the key prefix shared by every version of name.
func Prefix(name string) string {
	return name + "@"
}

// ParseKey splits a key produced by Key. Names may themselves contain "@";
// the version is everything after the last one.
func ParseKey(key string) (string, int, error) {
	i := strings.LastIndexByte(key, '@')
	if i <= 0 || i == len(key)-1 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	v, err := strconv.Atoi(key[i+1:])
	if err != nil || v < 1 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return key[:i], v, nil
}
