package testutil

import (
	"context"
	"sync"
)

// RecordingNotifier collects success messages.
type RecordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

// Success implements service.Notifier.
func (n *RecordingNotifier) Success(ctx context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

// Messages returns a copy of everything received so far.
func (n *RecordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

// Reset drops recorded messages.
func (n *RecordingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = nil
}
