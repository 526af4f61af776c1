// Package changefeed fans out row-change notifications keyed by collection so
// that open views can refetch when the underlying table changes.
package changefeed

import (
	"context"
	"sync"
	"time"
)

// Collections that emit change events.
const (
	Appointments  = "appointments"
	BlockedSlots  = "blocked_slots"
	BlogPosts     = "blog_posts"
	GalleryImages = "gallery_images"
)

// Actions mirror the SQL operation that produced the change.
const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// IsCollection reports whether name is a known collection.
func IsCollection(name string) bool {
	switch name {
	case Appointments, BlockedSlots, BlogPosts, GalleryImages:
		return true
	}
	return false
}

// Event describes one change to a collection.
type Event struct {
	Collection string    `json:"collection"`
	Action     string    `json:"action"`
	RecordID   string    `json:"record_id,omitempty"`
	At         time.Time `json:"at"`
}

// NewEvent stamps an event with the current time.
func NewEvent(collection, action, recordID string) Event {
	return Event{Collection: collection, Action: action, RecordID: recordID, At: time.Now().UTC()}
}

// Publisher emits change events.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Subscriber delivers change events for one collection until cancel is called.
type Subscriber interface {
	Subscribe(ctx context.Context, collection string) (events <-chan Event, cancel func(), err error)
}

// Broker is both ends of the feed.
type Broker interface {
	Publisher
	Subscriber
}

// Nop discards every event. Services use it when Postgres triggers already
// feed the broker.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

const subscriberBuffer = 16

// LocalBroker is an in-process broker.
type LocalBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[chan Event]struct{})}
}

// Publish never blocks; a subscriber that is not keeping up misses events,
// which is fine because every event only means "refetch".
func (b *LocalBroker) Publish(_ context.Context, evt Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[evt.Collection] {
		select {
		case ch <- evt:
		default:
		}
	}
	return nil
}

func (b *LocalBroker) Subscribe(_ context.Context, collection string) (<-chan Event, func(), error) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	if b.subs[collection] == nil {
		b.subs[collection] = make(map[chan Event]struct{})
	}
	b.subs[collection][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[collection], ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}

// Watch calls fetch once, then again after every event on collection, until
// ctx is done. Subscribing happens before the first fetch so no change between
// the two is lost. Fetch errors are handed to onErr and do not stop the loop.
func Watch(ctx context.Context, sub Subscriber, collection string, fetch func(context.Context) error, onErr func(error)) error {
	events, cancel, err := sub.Subscribe(ctx, collection)
	if err != nil {
		return err
	}
	defer cancel()

	run := func() {
		if err := fetch(ctx); err != nil && onErr != nil {
			onErr(err)
		}
	}
	run()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-events:
			if !ok {
				return nil
			}
			run()
		}
	}
}
