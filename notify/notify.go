// Package notify delivers schema change notifications.
//
// The version registry emits a Change after every successful mutation.
// Notifiers fan those changes out to in-process watchers or to a broker so
// other processes can refresh their view of the registry.
//
// Delivery is best effort: the registry logs notifier errors and carries on.
//
// Example:
//
//	watcher := notify.NewChannelNotifier()
//	reg := registry.New(registry.WithNotifier(notify.Multi(
//	    watcher,
//	    notify.NewNATSNotifier(nc),
//	)))
//
//	changes, _ := watcher.Watch(ctx)
//	for c := range changes {
//	    log.Printf("%s v%d %s", c.Name, c.Version, c.Kind)
//	}
package notify

import (
	"context"
	"errors"
	"time"
)

// ErrNotifierClosed is returned when notifying through a closed notifier.
var ErrNotifierClosed = errors.New("notifier is closed")

// Kind identifies the mutation that produced a change.
type Kind string

// Change kinds.
const (
	KindCreated         Kind = "created"
	KindVersionAdded    Kind = "version_added"
	KindMetadataUpdated Kind = "metadata_updated"
	KindVersionDeleted  Kind = "version_deleted"
	KindRemoved         Kind = "removed"
)

// Change describes one registry mutation.
type Change struct {
	Name    string    `json:"name"`
	Version int       `json:"version,omitempty"`
	Kind    Kind      `json:"kind"`
	Hash    string    `json:"hash,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier publishes changes.
// Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, c Change) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, c Change) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, c Change) error {
	return f(ctx, c)
}

type multi []Notifier

// Multi returns a notifier that forwards to every non-nil notifier and joins
// their errors.
func Multi(notifiers ...Notifier) Notifier {
	m := make(multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			m = append(m, n)
		}
	}
	return m
}

func (m multi) Notify(ctx context.Context, c Change) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Notifier = NotifierFunc(nil)
	_ Notifier = multi(nil)
)
