package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/dentacare/clinic-portal/pkg/logging"
)

// NotifyChannel is the Postgres channel the table triggers notify on.
const NotifyChannel = "table_changes"

// notifyPayload matches the json_build_object in the notify trigger.
type notifyPayload struct {
	Table  string `json:"table"`
	Action string `json:"action"`
	ID     string `json:"id"`
}

// PGListener relays Postgres NOTIFY messages into a Publisher. It covers
// writes that bypass the API, such as manual SQL or migrations.
type PGListener struct {
	dsn    string
	pub    Publisher
	logger *logging.Logger
}

func NewPGListener(dsn string, pub Publisher, logger *logging.Logger) *PGListener {
	if logger == nil {
		logger = logging.Default()
	}
	return &PGListener{dsn: dsn, pub: pub, logger: logger}
}

// Run blocks until ctx is cancelled.
func (l *PGListener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			l.logger.Warn("changefeed: listener event", "event", int(ev), "error", err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(NotifyChannel); err != nil {
		return fmt.Errorf("changefeed: listen: %w", err)
	}
	l.logger.Info("changefeed: listening for table changes", "channel", NotifyChannel)

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			// nil after a reconnect; anything may have changed meanwhile.
			if n == nil {
				l.broadcastAll(ctx)
				continue
			}
			l.relay(ctx, n.Extra)
		case <-time.After(90 * time.Second):
			if err := listener.Ping(); err != nil {
				l.logger.Warn("changefeed: listener ping failed", "error", err)
			}
		}
	}
}

func (l *PGListener) relay(ctx context.Context, raw string) {
	evt, err := ParseNotification(raw)
	if err != nil {
		l.logger.Warn("changefeed: bad notification", "payload", raw, "error", err)
		return
	}
	if err := l.pub.Publish(ctx, evt); err != nil {
		l.logger.Error("changefeed: relay failed", "collection", evt.Collection, "error", err)
	}
}

func (l *PGListener) broadcastAll(ctx context.Context) {
	for _, c := range []string{Appointments, BlockedSlots, BlogPosts, GalleryImages} {
		_ = l.pub.Publish(ctx, NewEvent(c, ActionUpdate, ""))
	}
}

// ParseNotification decodes a trigger payload into an Event.
func ParseNotification(raw string) (Event, error) {
	var p notifyPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Event{}, err
	}
	if !IsCollection(p.Table) {
		return Event{}, fmt.Errorf("unknown table %q", p.Table)
	}
	return NewEvent(p.Table, p.Action, p.ID), nil
}
