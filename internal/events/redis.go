package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eigerco/surety/pkg/log"
)

// Envelope is the wire form of an event on the redis channel.
type Envelope struct {
	Kind  Kind            `json:"kind"`
	Event json.RawMessage `json:"event"`
}

func Encode(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", ev.Kind(), err)
	}
	return json.Marshal(Envelope{Kind: ev.Kind(), Event: body})
}

func Decode(payload []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	switch env.Kind {
	case KindStatusRequested:
		var ev StatusRequested
		if err := json.Unmarshal(env.Event, &ev); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Kind, err)
		}
		return ev, nil
	case KindStatusResolved:
		var ev StatusResolved
		if err := json.Unmarshal(env.Event, &ev); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Kind, err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", env.Kind)
	}
}

// redisPublisher is the part of redis.UniversalClient the forwarder needs.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisForwarder relays events to a redis pub/sub channel for oracle
// processes and front ends running outside the host. Handle only queues, the
// network round trip happens in Run.
type RedisForwarder struct {
	client  redisPublisher
	channel string
	timeout time.Duration
	queue   chan Event
}

func NewRedisForwarder(client redisPublisher, channel string, buffer int) *RedisForwarder {
	if buffer <= 0 {
		buffer = 256
	}
	return &RedisForwarder{
		client:  client,
		channel: channel,
		timeout: 5 * time.Second,
		queue:   make(chan Event, buffer),
	}
}

// Handle enqueues ev; when the queue is full the event is dropped and logged.
func (f *RedisForwarder) Handle(ev Event) {
	select {
	case f.queue <- ev:
	default:
		log.Host.Warn().Str("kind", string(ev.Kind())).Str("id", ev.Header().ID.String()).
			Msg("redis forwarder queue full, dropping event")
	}
}

// Run publishes queued events until ctx is done.
func (f *RedisForwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-f.queue:
			if err := f.forward(ctx, ev); err != nil {
				log.Host.Error().Err(err).Str("kind", string(ev.Kind())).Msg("forward event")
			}
		}
	}
}

func (f *RedisForwarder) forward(ctx context.Context, ev Event) error {
	payload, err := Encode(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", f.channel, err)
	}
	return nil
}
