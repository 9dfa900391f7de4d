package notify

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/rbaliyan/evolve/codec"
)

// msgPublisher is the subset of *nats.Conn used by NATSNotifier.
type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSNotifier publishes changes to NATS core subjects.
//
// The subject is "<prefix>.<name>", e.g. "evolve.changes.users", so
// subscribers can filter with wildcards ("evolve.changes.>").
type NATSNotifier struct {
	pub    msgPublisher
	prefix string
	codec  codec.Codec
}

// NATSOption configures NATSNotifier.
type NATSOption func(*NATSNotifier)

// WithSubjectPrefix sets the subject prefix (default: "evolve.changes").
func WithSubjectPrefix(prefix string) NATSOption {
	return func(n *NATSNotifier) {
		n.prefix = prefix
	}
}

// WithNATSCodec sets the payload codec (default: JSON).
func WithNATSCodec(c codec.Codec) NATSOption {
	return func(n *NATSNotifier) {
		if c != nil {
			n.codec = c
		}
	}
}

// NewNATSNotifier creates a notifier publishing on conn.
// The connection is owned by the caller.
func NewNATSNotifier(conn *nats.Conn, opts ...NATSOption) *NATSNotifier {
	return newNATSNotifier(conn, opts...)
}

func newNATSNotifier(pub msgPublisher, opts ...NATSOption) *NATSNotifier {
	n := &NATSNotifier{
		pub:    pub,
		prefix: "evolve.changes",
		codec:  codec.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Subject returns the subject changes for name are published on.
func (n *NATSNotifier) Subject(name string) string {
	return n.prefix + "." + name
}

// Notify publishes c (fire-and-forget).
func (n *NATSNotifier) Notify(ctx context.Context, c Change) error {
	data, err := n.codec.Encode(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	msg := nats.NewMsg(n.Subject(c.Name))
	msg.Data = data
	msg.Header.Set("Content-Type", n.codec.ContentType())
	msg.Header.Set("Evolve-Kind", string(c.Kind))

	if err := n.pub.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

var (
	_ msgPublisher = (*nats.Conn)(nil)
	_ Notifier     = (*NATSNotifier)(nil)
)
