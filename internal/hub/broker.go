package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"

	"eventhub/internal/model"
)

// Broker carries events between server instances. Every instance publishes
// to the broker and fans out whatever the broker delivers to its own sockets.
type Broker interface {
	Publish(ctx context.Context, ev model.Event) error
	Events() <-chan model.Event
	Close() error
}

// LocalBroker is an in-process broker for a single instance
type LocalBroker struct {
	events chan model.Event
	once   sync.Once
	done   chan struct{}
}

// NewLocalBroker creates a broker buffered so publishers do not block on
// slow fan-out.
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{
		events: make(chan model.Event, 100),
		done:   make(chan struct{}),
	}
}

// Publish implements Broker
func (b *LocalBroker) Publish(ctx context.Context, ev model.Event) error {
	select {
	case b.events <- ev:
		return nil
	case <-b.done:
		return errors.New("broker closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events implements Broker
func (b *LocalBroker) Events() <-chan model.Event { return b.events }

// Close implements Broker
func (b *LocalBroker) Close() error {
	b.once.Do(func() { close(b.done) })
	return nil
}

// RedisChannel is the pub/sub channel shared by all instances
const RedisChannel = "eventhub:chat-events"

// RedisBroker fans events out through Redis pub/sub
type RedisBroker struct {
	rdb    *redis.Client
	sub    *redis.PubSub
	events chan model.Event
}

// NewRedisBroker subscribes to RedisChannel. url is either a redis:// URL
// or a bare host:port.
func NewRedisBroker(ctx context.Context, url string) (*RedisBroker, error) {
	opts := &redis.Options{Addr: url, DB: 0}
	if strings.Contains(url, "://") {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, err
		}
		opts = parsed
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	sub := rdb.Subscribe(ctx, RedisChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		rdb.Close()
		return nil, err
	}

	b := &RedisBroker{rdb: rdb, sub: sub, events: make(chan model.Event, 100)}
	go b.pump()

	log.Println("🔧 Redis broker initialized with address:", opts.Addr)
	return b, nil
}

func (b *RedisBroker) pump() {
	defer close(b.events)
	for msg := range b.sub.Channel() {
		var ev model.Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Printf("[Redis] ❌ Bad event payload: %v", err)
			continue
		}
		b.events <- ev
	}
}

// Publish implements Broker
func (b *RedisBroker) Publish(ctx context.Context, ev model.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, RedisChannel, payload).Err()
}

// Events implements Broker
func (b *RedisBroker) Events() <-chan model.Event { return b.events }

// Close implements Broker
func (b *RedisBroker) Close() error {
	b.sub.Close()
	return b.rdb.Close()
}
