package notify

import (
	"context"
	"sync"
)

// DefaultWatchBuffer is the channel buffer size for new watchers.
var DefaultWatchBuffer = 100

// ChannelNotifier delivers changes to in-process watchers.
// A watcher whose buffer is full misses the change.
type ChannelNotifier struct {
	mu        sync.Mutex
	watchers  []chan Change
	closed    bool
	closeChan chan struct{}
}

// NewChannelNotifier creates a notifier with no watchers.
func NewChannelNotifier() *ChannelNotifier {
	return &ChannelNotifier{closeChan: make(chan struct{})}
}

// Notify sends c to every watcher without blocking.
func (n *ChannelNotifier) Notify(ctx context.Context, c Change) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrNotifierClosed
	}
	for _, w := range n.watchers {
		select {
		case w <- c:
		default:
			// Watcher buffer full, skip
		}
	}
	return nil
}

// Watch returns a channel receiving every subsequent change.
// The channel is closed when ctx is done or the notifier is closed.
func (n *ChannelNotifier) Watch(ctx context.Context) (<-chan Change, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil, ErrNotifierClosed
	}

	ch := make(chan Change, DefaultWatchBuffer)
	n.watchers = append(n.watchers, ch)

	go func() {
		select {
		case <-ctx.Done():
		case <-n.closeChan:
		}
		n.mu.Lock()
		defer n.mu.Unlock()

		for i, w := range n.watchers {
			if w == ch {
				n.watchers = append(n.watchers[:i], n.watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

// Close closes the notifier and all watcher channels.
func (n *ChannelNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true
	close(n.closeChan)
	return nil
}

// Compile-time check that ChannelNotifier implements Notifier.
var _ Notifier = (*ChannelNotifier)(nil)
