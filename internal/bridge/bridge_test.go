package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const hostOrigin = "https://landing.example.com"

type harness struct {
	broker   *MemoryBroker
	sessions *cart.Sessions
	bridge   *Bridge
}

func newHarness(t *testing.T, origins []string, loading time.Duration) *harness {
	t.Helper()
	broker := NewMemoryBroker()
	sessions := cart.NewSessions(cart.SessionsOptions{})
	b, err := New(Options{
		Broker:         broker,
		Sessions:       sessions,
		Origins:        NewOriginPolicy(origins),
		LoadingTimeout: loading,
		Logger:         logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return &harness{broker: broker, sessions: sessions, bridge: b}
}

func (h *harness) store(t *testing.T, sessionID string) *cart.Store {
	t.Helper()
	store, err := h.sessions.Get(context.Background(), sessionID)
	require.NoError(t, err)
	return store
}

func updatePayload(items ...map[string]any) []byte {
	if items == nil {
		items = []map[string]any{}
	}
	raw, _ := json.Marshal(map[string]any{"type": "cart.update", "version": 1, "items": items})
	return raw
}

func line(id string, price float64, qty int) map[string]any {
	return map[string]any{"id": id, "name": "Item " + id, "price": price, "quantity": qty}
}

func receive(t *testing.T, sub Subscription) Message {
	t.Helper()
	select {
	case raw, ok := <-sub.Messages():
		require.True(t, ok, "subscription closed")
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound message")
		return Message{}
	}
}

func assertQuiet(t *testing.T, sub Subscription) {
	t.Helper()
	select {
	case raw := <-sub.Messages():
		t.Fatalf("unexpected outbound message %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMountSendsExactlyOneReady(t *testing.T) {
	h := newHarness(t, nil, time.Second)
	ctx := context.Background()

	out, err := h.bridge.SubscribeOutbound(ctx, "s1")
	require.NoError(t, err)
	defer out.Close()

	m, err := h.bridge.Mount(ctx, "s1")
	require.NoError(t, err)
	defer m.Unmount()

	msg := receive(t, out)
	assert.Equal(t, enums.BridgeMessageCartReady, msg.Type)
	assert.Equal(t, SchemaVersion, msg.Version)
	assertQuiet(t, out)
}

func TestHostUpdatesReplaceCartInOrder(t *testing.T) {
	h := newHarness(t, []string{hostOrigin}, time.Second)
	ctx := context.Background()

	m, err := h.bridge.Mount(ctx, "s1")
	require.NoError(t, err)
	defer m.Unmount()

	require.NoError(t, h.bridge.Deliver(ctx, "s1", hostOrigin, updatePayload(line("a", 10, 1))))
	require.NoError(t, h.bridge.Deliver(ctx, "s1", hostOrigin, updatePayload(line("a", 10, 2), line("b", 5, 1))))
	require.NoError(t, h.bridge.Deliver(ctx, "s1", hostOrigin, updatePayload(line("b", 5, 3))))

	store := h.store(t, "s1")
	require.Eventually(t, func() bool {
		items := store.Items()
		return len(items) == 1 && items[0].ID == "b" && items[0].Quantity == 3
	}, time.Second, 5*time.Millisecond)
	assert.True(t, store.Total().Equal(decimal.NewFromInt(15)))
}

func TestInvalidMessagesAreIgnored(t *testing.T) {
	h := newHarness(t, nil, time.Second)
	ctx := context.Background()

	m, err := h.bridge.Mount(ctx, "s1")
	require.NoError(t, err)
	defer m.Unmount()

	bad := [][]byte{
		[]byte("not json"),
		[]byte(`{"type":"cart.update","version":1}`),
		[]byte(`{"type":"cart.update","items":[{"id":"a","name":"A","price":1,"quantity":-1}]}`),
		[]byte(`{"type":"cart.update","items":[{"id":"a","name":"A","quantity":1}]}`),
		[]byte(`{"type":"cart.update","version":9,"items":[]}`),
		[]byte(`{"type":"cart.sync","items":[]}`),
		[]byte(`{"type":"something.else"}`),
	}
	for _, payload := range bad {
		require.NoError(t, h.bridge.Deliver(ctx, "s1", hostOrigin, payload))
	}
	require.NoError(t, h.bridge.Deliver(ctx, "s1", hostOrigin, updatePayload(line("ok", 1, 1))))

	store := h.store(t, "s1")
	require.Eventually(t, func() bool { return store.Count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "ok", store.Items()[0].ID)
}

func TestDisallowedOriginIsIgnored(t *testing.T) {
	h := newHarness(t, []string{hostOrigin}, time.Second)
	ctx := context.Background()

	m, err := h.bridge.Mount(ctx, "s1")
	require.NoError(t, err)
	defer m.Unmount()

	require.NoError(t, h.bridge.Deliver(ctx, "s1", "https://evil.example.com", updatePayload(line("x", 1, 1))))
	require.NoError(t, h.bridge.Deliver(ctx, "s1", hostOrigin+"/", updatePayload(line("a", 1, 2))))

	store := h.store(t, "s1")
	require.Eventually(t, func() bool { return store.Count() == 2 }, time.Second, 5*time.Millisecond)
	_, ok := store.Get("x")
	assert.False(t, ok)
}

func TestNoProcessingAfterUnmount(t *testing.T) {
	h := newHarness(t, nil, time.Second)
	ctx := context.Background()

	m, err := h.bridge.Mount(ctx, "s1")
	require.NoError(t, err)
	m.Unmount()
	m.Unmount()

	require.NoError(t, h.bridge.Deliver(ctx, "s1", hostOrigin, updatePayload(line("a", 1, 1))))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, h.store(t, "s1").Count())
	assert.False(t, h.bridge.Syncing("s1"))
}

func TestContextCancellationUnmounts(t *testing.T) {
	h := newHarness(t, nil, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	m, err := h.bridge.Mount(ctx, "s1")
	require.NoError(t, err)
	cancel()

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("mount did not stop after cancellation")
	}
	require.NoError(t, h.bridge.Deliver(context.Background(), "s1", hostOrigin, updatePayload(line("a", 1, 1))))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, h.store(t, "s1").Count())
}

func TestLoadingGuardClearsSyncing(t *testing.T) {
	h := newHarness(t, nil, 30*time.Millisecond)
	m, err := h.bridge.Mount(context.Background(), "s1")
	require.NoError(t, err)
	defer m.Unmount()

	assert.True(t, m.Syncing())
	assert.True(t, h.bridge.Syncing("s1"))
	require.Eventually(t, func() bool { return !m.Syncing() }, time.Second, 5*time.Millisecond)
}

func TestFirstUpdateClearsSyncing(t *testing.T) {
	h := newHarness(t, nil, time.Minute)
	ctx := context.Background()
	m, err := h.bridge.Mount(ctx, "s1")
	require.NoError(t, err)
	defer m.Unmount()

	require.NoError(t, h.bridge.Deliver(ctx, "s1", hostOrigin, updatePayload()))
	require.Eventually(t, func() bool { return !m.Syncing() }, time.Second, 5*time.Millisecond)
}

func TestLocalChangesAreSyncedButHostChangesAreNotEchoed(t *testing.T) {
	h := newHarness(t, nil, time.Second)
	ctx := context.Background()

	out, err := h.bridge.SubscribeOutbound(ctx, "s1")
	require.NoError(t, err)
	defer out.Close()

	m, err := h.bridge.Mount(ctx, "s1")
	require.NoError(t, err)
	defer m.Unmount()
	receive(t, out)

	store := h.store(t, "s1")
	store.Replace(ctx, cart.SourceHost, []cart.Item{{ID: "h", Price: decimal.NewFromInt(1), Quantity: 1}})
	assertQuiet(t, out)

	require.NoError(t, store.Add(ctx, cart.Item{ID: "order-bump-1", Name: "Bump", Price: decimal.NewFromInt(5), Quantity: 1}))
	msg := receive(t, out)
	assert.Equal(t, enums.BridgeMessageCartSync, msg.Type)
	require.Len(t, msg.Items, 2)
	require.NotNil(t, msg.Totals)
	assert.True(t, msg.Totals.OrderBumpTotal.Equal(decimal.NewFromInt(5)))
}

type gatedBroker struct {
	*MemoryBroker
	gate chan struct{}
}

func (b *gatedBroker) Publish(ctx context.Context, sessionID string, dir Direction, payload []byte) error {
	var msg Message
	if dir == Outbound && json.Unmarshal(payload, &msg) == nil && msg.Type == enums.BridgeMessageCartSync {
		<-b.gate
	}
	return b.MemoryBroker.Publish(ctx, sessionID, dir, payload)
}

func TestSlowSyncPublishDoesNotBlockCart(t *testing.T) {
	broker := &gatedBroker{MemoryBroker: NewMemoryBroker(), gate: make(chan struct{})}
	sessions := cart.NewSessions(cart.SessionsOptions{})
	b, err := New(Options{
		Broker:   broker,
		Sessions: sessions,
		Origins:  NewOriginPolicy(nil),
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	ctx := context.Background()

	out, err := b.SubscribeOutbound(ctx, "s1")
	require.NoError(t, err)
	defer out.Close()
	m, err := b.Mount(ctx, "s1")
	require.NoError(t, err)
	defer m.Unmount()
	receive(t, out)

	store, err := sessions.Get(ctx, "s1")
	require.NoError(t, err)
	start := time.Now()
	for i := 1; i <= 3; i++ {
		require.NoError(t, store.Add(ctx, cart.Item{ID: "a", Name: "A", Price: decimal.NewFromInt(2), Quantity: 1}))
	}
	assert.True(t, store.Total().Equal(decimal.NewFromInt(6)))
	assert.Less(t, time.Since(start), 200*time.Millisecond)

	close(broker.gate)
	require.Eventually(t, func() bool {
		select {
		case raw := <-out.Messages():
			var msg Message
			if json.Unmarshal(raw, &msg) != nil || len(msg.Items) != 1 || msg.Items[0].Quantity == nil {
				return false
			}
			return *msg.Items[0].Quantity == 3
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

type failingBroker struct {
	*MemoryBroker
	inbound Subscription
}

func (b *failingBroker) Subscribe(ctx context.Context, sessionID string, dir Direction) (Subscription, error) {
	sub, err := b.MemoryBroker.Subscribe(ctx, sessionID, dir)
	b.inbound = sub
	return sub, err
}

func (b *failingBroker) Publish(context.Context, string, Direction, []byte) error {
	return errors.New("broker unavailable")
}

func TestMountFailureReleasesSubscription(t *testing.T) {
	broker := &failingBroker{MemoryBroker: NewMemoryBroker()}
	b, err := New(Options{
		Broker:   broker,
		Sessions: cart.NewSessions(cart.SessionsOptions{}),
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)

	_, err = b.Mount(context.Background(), "s1")
	require.Error(t, err)

	_, open := <-broker.inbound.Messages()
	assert.False(t, open)
	assert.False(t, b.Syncing("s1"))
}

func TestOriginPolicy(t *testing.T) {
	assert.True(t, NewOriginPolicy(nil).Allows("https://anything.example"))
	assert.True(t, NewOriginPolicy([]string{"*"}).Allows("https://anything.example"))

	p := NewOriginPolicy([]string{"https://Shop.example.com/", "https://shop.example.com"})
	assert.True(t, p.Allows("https://shop.example.com"))
	assert.False(t, p.Allows("https://other.example.com"))
	assert.False(t, p.Allows(""))
	assert.Equal(t, []string{"https://shop.example.com"}, p.Origins())
}

func TestMemoryBrokerDeliversInOrderUntilClosed(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	sub, err := broker.Subscribe(ctx, "s1", Inbound)
	require.NoError(t, err)
	other, err := broker.Subscribe(ctx, "s1", Outbound)
	require.NoError(t, err)
	defer other.Close()

	for _, p := range []string{"1", "2", "3"} {
		require.NoError(t, broker.Publish(ctx, "s1", Inbound, []byte(p)))
	}
	for _, want := range []string{"1", "2", "3"} {
		assert.Equal(t, want, string(<-sub.Messages()))
	}
	assert.Empty(t, other.Messages())

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	require.NoError(t, broker.Publish(ctx, "s1", Inbound, []byte("4")))
	_, open := <-sub.Messages()
	assert.False(t, open)
}
