package sync

import (
	"sync"
	"time"
)

// NotificationLevel distinguishes retry-oriented notices from terminal
// failures in whatever surface the caller wires in.
type NotificationLevel string

const (
	NoticeInfo    NotificationLevel = "info"
	NoticeWarning NotificationLevel = "warning"
	NoticeError   NotificationLevel = "error"
)

// Notification is a user-facing message emitted by the sync engine.
type Notification struct {
	ID      string
	Level   NotificationLevel
	Message string
}

// Notifier delivers notifications to a sink while suppressing repeats of
// the same id within a TTL window. It is owned and injected explicitly;
// there is no package-level instance.
type Notifier struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	sink func(Notification)
	now  func() time.Time
}

func NewNotifier(ttl time.Duration, sink func(Notification)) *Notifier {
	if sink == nil {
		sink = func(Notification) {}
	}
	return &Notifier{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		sink: sink,
		now:  time.Now,
	}
}

// Notify emits the notification unless the same id was emitted within the
// TTL. Returns true when the notification reached the sink.
func (n *Notifier) Notify(id string, level NotificationLevel, message string) bool {
	n.mu.Lock()
	now := n.now()
	n.purgeLocked(now)
	if expiry, ok := n.seen[id]; ok && now.Before(expiry) {
		n.mu.Unlock()
		return false
	}
	n.seen[id] = now.Add(n.ttl)
	n.mu.Unlock()

	n.sink(Notification{ID: id, Level: level, Message: message})
	return true
}

func (n *Notifier) purgeLocked(now time.Time) {
	for id, expiry := range n.seen {
		if !now.Before(expiry) {
			delete(n.seen, id)
		}
	}
}
