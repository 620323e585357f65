// Package notify carries state-change notifications from the player engine up to its host.
package notify

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Event is one upward notification. Hosts switch on the concrete type.
type Event interface {
	EventName() string
}

type ActiveVideoChanged struct {
	Previous int
	Index    int
	VideoID  string
}

type Field string

const (
	FieldReaction     Field = "reaction"
	FieldLikeCount    Field = "like_count"
	FieldDislikeCount Field = "dislike_count"
	FieldBookmarked   Field = "bookmarked"
	FieldCommentCount Field = "comment_count"
)

type EngagementChanged struct {
	VideoID string
	Fields  []Field
}

// Has reports whether f is among the changed fields.
func (e EngagementChanged) Has(f Field) bool {
	for _, changed := range e.Fields {
		if changed == f {
			return true
		}
	}
	return false
}

type GestureOffsetChanged struct {
	Offset       float64
	Scale        float64
	CornerRadius float64
	BlurOpacity  float64
}

type DoubleTapFired struct {
	VideoID string
	At      time.Time
}

type PlaybackStateChanged struct {
	Playing  bool
	Muted    bool
	Rejected bool
}

func (ActiveVideoChanged) EventName() string   { return "active-video-changed" }
func (EngagementChanged) EventName() string    { return "engagement-state-changed" }
func (GestureOffsetChanged) EventName() string { return "gesture-offset-changed" }
func (DoubleTapFired) EventName() string       { return "double-tap-fired" }
func (PlaybackStateChanged) EventName() string { return "playback-state-changed" }

type Listener func(Event)

// Bus fans out events to every subscribed listener, in subscription order.
// A nil *Bus drops everything.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
}

func NewBus() *Bus {
	return &Bus{listeners: make(map[int]Listener)}
}

// Subscribe registers l and returns a function that removes it again.
func (b *Bus) Subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers e synchronously. Listeners run outside the bus lock so they may
// subscribe, unsubscribe or call back into the engine.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, b.listeners[id])
	}
	b.mu.RUnlock()

	for _, l := range listeners {
		deliver(l, e)
	}
}

func deliver(l Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("notify: listener panicked", "event", e.EventName(), "panic", r)
		}
	}()
	l(e)
}
