package bridge

import (
	"context"
	"errors"
	"sync"

	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Direction names one side of a session's message exchange.
type Direction string

const (
	// Inbound carries messages from the host page to the cart.
	Inbound Direction = "inbound"
	// Outbound carries messages from the cart to the embedded page.
	Outbound Direction = "outbound"
)

// Subscription delivers payloads published after it was created, in order.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// Broker moves payloads between the HTTP edge and mounted bridges, possibly
// across processes.
type Broker interface {
	Publish(ctx context.Context, sessionID string, dir Direction, payload []byte) error
	Subscribe(ctx context.Context, sessionID string, dir Direction) (Subscription, error)
}

var errBrokerClosed = errors.New("subscription closed")

const memoryBuffer = 64

// MemoryBroker is an in-process Broker for single-instance deployments and tests.
type MemoryBroker struct {
	mu     sync.RWMutex
	topics map[string]map[*memorySubscription]struct{}
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{topics: map[string]map[*memorySubscription]struct{}{}}
}

func (b *MemoryBroker) Publish(ctx context.Context, sessionID string, dir Direction, payload []byte) error {
	b.mu.RLock()
	subs := make([]*memorySubscription, 0, len(b.topics[topicKey(sessionID, dir)]))
	for sub := range b.topics[topicKey(sessionID, dir)] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.deliver(ctx, payload); err != nil && !errors.Is(err, errBrokerClosed) {
			return err
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, sessionID string, dir Direction) (Subscription, error) {
	key := topicKey(sessionID, dir)
	sub := &memorySubscription{
		out:  make(chan []byte, memoryBuffer),
		done: make(chan struct{}),
	}
	sub.unregister = func() {
		b.mu.Lock()
		delete(b.topics[key], sub)
		if len(b.topics[key]) == 0 {
			delete(b.topics, key)
		}
		b.mu.Unlock()
	}

	b.mu.Lock()
	if b.topics[key] == nil {
		b.topics[key] = map[*memorySubscription]struct{}{}
	}
	b.topics[key][sub] = struct{}{}
	b.mu.Unlock()
	return sub, nil
}

func topicKey(sessionID string, dir Direction) string {
	return sessionID + "|" + string(dir)
}

type memorySubscription struct {
	mu         sync.Mutex
	out        chan []byte
	done       chan struct{}
	closed     bool
	once       sync.Once
	unregister func()
}

func (s *memorySubscription) Messages() <-chan []byte {
	return s.out
}

func (s *memorySubscription) deliver(ctx context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errBrokerClosed
	}
	select {
	case s.out <- payload:
		return nil
	case <-s.done:
		return errBrokerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.unregister()
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.out)
		s.mu.Unlock()
	})
	return nil
}

type redisPubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (*pkgredis.Subscription, error)
	EmbedChannel(sessionID, direction string) string
}

// RedisBroker relays bridge traffic over Redis pub/sub so the HTTP edge and the
// mounted bridge may live on different instances.
type RedisBroker struct {
	client redisPubSub
}

func NewRedisBroker(client redisPubSub) (*RedisBroker, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	return &RedisBroker{client: client}, nil
}

func (b *RedisBroker) Publish(ctx context.Context, sessionID string, dir Direction, payload []byte) error {
	return b.client.Publish(ctx, b.client.EmbedChannel(sessionID, string(dir)), payload)
}

func (b *RedisBroker) Subscribe(ctx context.Context, sessionID string, dir Direction) (Subscription, error) {
	sub, err := b.client.Subscribe(ctx, b.client.EmbedChannel(sessionID, string(dir)))
	if err != nil {
		return nil, err
	}
	return sub, nil
}
