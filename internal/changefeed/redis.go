package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/dentacare/clinic-portal/pkg/logging"
)

const channelPrefix = "changefeed:"

// RedisBroker fans events out across API replicas using Redis pub/sub.
type RedisBroker struct {
	client *redis.Client
	logger *logging.Logger
}

func NewRedisBroker(client *redis.Client, logger *logging.Logger) *RedisBroker {
	if client == nil {
		panic("changefeed: redis client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisBroker{client: client, logger: logger}
}

func (b *RedisBroker) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("changefeed: marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, channelPrefix+evt.Collection, payload).Err(); err != nil {
		return fmt.Errorf("changefeed: publish: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, collection string) (<-chan Event, func(), error) {
	ps := b.client.Subscribe(ctx, channelPrefix+collection)
	// Wait for the subscription to be confirmed so publishes after Subscribe
	// returns are not missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("changefeed: subscribe: %w", err)
	}

	out := make(chan Event, subscriberBuffer)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					b.logger.Warn("changefeed: dropping malformed event", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- evt:
				default:
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}
	return out, cancel, nil
}
