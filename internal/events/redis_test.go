package events

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/surety/internal/state"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages [][]byte
	fail     bool
	sent     chan struct{}
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer func() { f.sent <- struct{}{} }()
	if f.fail {
		return redis.NewIntResult(0, errors.New("connection refused"))
	}
	f.messages = append(f.messages, message.([]byte))
	return redis.NewIntResult(1, nil)
}

func TestRedisForwarder(t *testing.T) {
	pub := &fakePublisher{sent: make(chan struct{}, 4)}
	f := NewRedisForwarder(pub, "surety.events", 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	ev := StatusResolved{Meta: NewMeta(3), Index: 1, Status: state.StatusOnTime}
	f.Handle(ev)
	select {
	case <-pub.sent:
	case <-time.After(5 * time.Second):
		t.Fatal("event was not forwarded")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.messages, 1)
	back, err := Decode(pub.messages[0])
	require.NoError(t, err)
	assert.Equal(t, ev, back)
}

func TestRedisForwarderPublishError(t *testing.T) {
	pub := &fakePublisher{fail: true, sent: make(chan struct{}, 1)}
	f := NewRedisForwarder(pub, "surety.events", 1)
	err := f.forward(context.Background(), StatusResolved{Meta: NewMeta(1)})
	assert.ErrorContains(t, err, "surety.events")
}

func TestRedisForwarderDropsWhenFull(t *testing.T) {
	pub := &fakePublisher{sent: make(chan struct{}, 4)}
	f := NewRedisForwarder(pub, "surety.events", 1)

	// Run is not started: the first event fills the queue, the second is dropped.
	f.Handle(StatusResolved{Meta: NewMeta(1)})
	f.Handle(StatusResolved{Meta: NewMeta(2)})
	assert.Len(t, f.queue, 1)
}

// TestRedisForwarderLive needs a reachable redis, e.g. SURETY_REDIS_ADDR=localhost:6379.
func TestRedisForwarderLive(t *testing.T) {
	addr := os.Getenv("SURETY_REDIS_ADDR")
	if addr == "" {
		t.Skip("SURETY_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, "surety.test.events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	f := NewRedisForwarder(client, "surety.test.events", 1)
	ev := StatusResolved{Meta: NewMeta(5), Status: state.StatusLateWeather}
	require.NoError(t, f.forward(ctx, ev))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	back, err := Decode([]byte(msg.Payload))
	require.NoError(t, err)
	assert.Equal(t, ev, back)
}
