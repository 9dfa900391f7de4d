package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rbaliyan/evolve/store"
)

// StoredRecord is the persisted form of a Record. The schema itself is not
// persisted; its canonical text and hash identify it.
type StoredRecord struct {
	Name        string    `json:"name" msgpack:"name"`
	Version     int       `json:"version" msgpack:"version"`
	Hash        string    `json:"hash" msgpack:"hash"`
	Canonical   string    `json:"canonical" msgpack:"canonical"`
	Description string    `json:"description,omitempty" msgpack:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" msgpack:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" msgpack:"updated_at"`
	Metadata    Metadata  `json:"metadata" msgpack:"metadata"`
}

func toStored(rec *Record) *StoredRecord {
	return &StoredRecord{
		Name:        rec.Name,
		Version:     rec.Version,
		Hash:        rec.Hash,
		Canonical:   rec.Schema.Canonical(),
		Description: rec.Description,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		Metadata:    rec.Metadata.Clone(),
	}
}

// storeOp is a store write captured under the entry lock and applied after
// the lock is released. A nil record deletes the key.
type storeOp struct {
	seq    uint64
	name   string
	v      int
	record *StoredRecord
}

// keyState orders the store operations of one key.
type keyState struct {
	mu      sync.Mutex
	applied uint64
}

// saveOp captures the persisted form of rec. Callers hold the entry lock.
func (r *Registry) saveOp(rec *Record) storeOp {
	if r.store == nil {
		return storeOp{}
	}
	return storeOp{seq: r.seq.Add(1), name: rec.Name, v: rec.Version, record: toStored(rec)}
}

// deleteOp captures the removal of name@v. Callers hold the entry lock.
func (r *Registry) deleteOp(name string, v int) storeOp {
	if r.store == nil {
		return storeOp{}
	}
	return storeOp{seq: r.seq.Add(1), name: name, v: v}
}

func (r *Registry) stateOf(key string) *keyState {
	r.ioMu.Lock()
	defer r.ioMu.Unlock()
	ks, ok := r.keys[key]
	if !ok {
		ks = &keyState{}
		r.keys[key] = ks
	}
	return ks
}

// apply performs captured store operations. An operation older than one
// already applied to the same key is skipped. Failures are logged only.
func (r *Registry) apply(ctx context.Context, ops ...storeOp) {
	if r.store == nil {
		return
	}
	for _, op := range ops {
		if op.seq == 0 {
			continue
		}
		key := store.Key(op.name, op.v)
		ks := r.stateOf(key)
		ks.mu.Lock()
		if op.seq > ks.applied {
			ks.applied = op.seq
			r.write(ctx, key, op)
		}
		ks.mu.Unlock()
	}
}

func (r *Registry) write(ctx context.Context, key string, op storeOp) {
	if op.record == nil {
		if err := r.store.Delete(ctx, key); err != nil {
			r.logger.Warn("failed to delete stored schema record",
				"schema", op.name,
				"version", op.v,
				"error", err)
		}
		return
	}
	data, err := r.codec.Encode(op.record)
	if err == nil {
		err = r.store.Save(ctx, key, data)
	}
	if err != nil {
		r.logger.Warn("failed to persist schema record",
			"schema", op.name,
			"version", op.v,
			"error", err)
	}
}

// ErrNoStore is returned when reading stored records without a store.
var ErrNoStore = errors.New("registry has no store")

// Stored reads the persisted copy of version v of name.
func (r *Registry) Stored(ctx context.Context, name string, v int) (*StoredRecord, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	data, err := r.store.Load(ctx, store.Key(name, v))
	if err != nil {
		return nil, err
	}
	var rec StoredRecord
	if err := r.codec.Decode(data, &rec); err != nil {
		return nil, fmt.Errorf("decode stored record: %w", err)
	}
	return &rec, nil
}

// StoredVersions lists every persisted record of name in ascending order.
// Useful for processes that only need metadata and never registered the
// schemas themselves.
func (r *Registry) StoredVersions(ctx context.Context, name string) ([]*StoredRecord, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	keys, err := r.store.List(ctx, store.Prefix(name))
	if err != nil {
		return nil, err
	}

	records := make([]*StoredRecord, 0, len(keys))
	for _, key := range keys {
		keyName, v, err := store.ParseKey(key)
		if err != nil || keyName != name {
			continue
		}
		rec, err := r.Stored(ctx, name, v)
		if errors.Is(err, store.ErrNotFound) {
			// Deleted between List and Load
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Version < records[j].Version })
	return records, nil
}
