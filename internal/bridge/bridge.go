// Package bridge keeps an embedded cart in step with the host page that embeds
// it. Host updates arrive through a Broker and replace the session's cart; local
// changes are published back as sync messages.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/guard"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	resultApplied        = "applied"
	resultMalformed      = "dropped_malformed"
	resultOrigin         = "dropped_origin"
	resultUnexpectedType = "dropped_type"
)

type cartSessions interface {
	Get(ctx context.Context, sessionID string) (*cart.Store, error)
}

// Options configures a Bridge.
type Options struct {
	Broker         Broker
	Sessions       cartSessions
	Origins        OriginPolicy
	LoadingTimeout time.Duration
	Logger         *logger.Logger
	Metrics        *metrics.StorefrontMetrics
}

// Bridge mounts host-page listeners for cart sessions.
type Bridge struct {
	broker         Broker
	sessions       cartSessions
	origins        OriginPolicy
	loadingTimeout time.Duration
	logg           *logger.Logger
	metrics        *metrics.StorefrontMetrics

	mu     sync.Mutex
	mounts map[string]map[*Mount]struct{}
}

func New(opts Options) (*Bridge, error) {
	if opts.Broker == nil {
		return nil, errors.New("broker required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("cart sessions required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger required")
	}
	timeout := opts.LoadingTimeout
	if timeout <= 0 {
		timeout = guard.DefaultLoadingTimeout
	}
	return &Bridge{
		broker:         opts.Broker,
		sessions:       opts.Sessions,
		origins:        opts.Origins,
		loadingTimeout: timeout,
		logg:           opts.Logger,
		metrics:        opts.Metrics,
		mounts:         map[string]map[*Mount]struct{}{},
	}, nil
}

// Deliver forwards a host payload to the session's mounted bridges. The payload
// is not inspected here; validation happens when it is received.
func (b *Bridge) Deliver(ctx context.Context, sessionID, origin string, payload []byte) error {
	if err := cart.ValidateSessionID(sessionID); err != nil {
		return err
	}
	raw, err := json.Marshal(envelope{Origin: origin, Data: payload})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return b.broker.Publish(ctx, sessionID, Inbound, raw)
}

// SubscribeOutbound returns the stream of messages the bridge sends to the
// embedded page. Subscribe before Mount to observe the ready message.
func (b *Bridge) SubscribeOutbound(ctx context.Context, sessionID string) (Subscription, error) {
	if err := cart.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	return b.broker.Subscribe(ctx, sessionID, Outbound)
}

// Syncing reports whether any mount of the session is still waiting for its first
// host update.
func (b *Bridge) Syncing(sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for m := range b.mounts[sessionID] {
		if m.Syncing() {
			return true
		}
	}
	return false
}

// Mount starts listening for host updates to the session's cart and then
// announces readiness with exactly one ready message. The mount ends when
// Unmount is called or ctx is done.
func (b *Bridge) Mount(ctx context.Context, sessionID string) (*Mount, error) {
	store, err := b.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sub, err := b.broker.Subscribe(ctx, sessionID, Inbound)
	if err != nil {
		return nil, fmt.Errorf("subscribe inbound: %w", err)
	}

	m := &Mount{
		bridge:    b,
		sessionID: sessionID,
		store:     store,
		sub:       sub,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		logCtx:    b.logg.WithSessionID(context.WithoutCancel(ctx), sessionID),
	}
	m.outbox = guard.NewLatest(m.publish)
	m.syncing.Store(true)
	m.disposeGuard = guard.StartLoadingGuard(m.setSyncing, b.loadingTimeout)
	m.unobserve = store.Subscribe(m.onChange)
	b.track(m)

	ready, err := json.Marshal(readyMessage())
	if err == nil {
		err = b.broker.Publish(ctx, sessionID, Outbound, ready)
	}
	if err != nil {
		m.teardown()
		close(m.done)
		return nil, fmt.Errorf("announce ready: %w", err)
	}

	go m.run(ctx)
	return m, nil
}

func (b *Bridge) track(m *Mount) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mounts[m.sessionID] == nil {
		b.mounts[m.sessionID] = map[*Mount]struct{}{}
	}
	b.mounts[m.sessionID][m] = struct{}{}
}

func (b *Bridge) forget(m *Mount) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.mounts[m.sessionID], m)
	if len(b.mounts[m.sessionID]) == 0 {
		delete(b.mounts, m.sessionID)
	}
}

// Mount is one active listener. Unmount is idempotent; once it returns no further
// host message is applied.
type Mount struct {
	bridge    *Bridge
	sessionID string
	store     *cart.Store
	sub       Subscription
	logCtx    context.Context

	syncing      atomic.Bool
	disposeGuard func()
	unobserve    func()
	outbox       *guard.Latest[[]byte]

	once sync.Once
	stop chan struct{}
	done chan struct{}
}

// Syncing reports whether the mount is still waiting for the host's first update.
func (m *Mount) Syncing() bool {
	return m.syncing.Load()
}

// Unmount stops the listener and waits for in-flight handling to finish.
func (m *Mount) Unmount() {
	m.teardown()
	<-m.done
}

// Done is closed once the mount has stopped.
func (m *Mount) Done() <-chan struct{} {
	return m.done
}

func (m *Mount) teardown() {
	m.once.Do(func() {
		close(m.stop)
		if err := m.sub.Close(); err != nil {
			m.bridge.logg.Warn(m.bridge.logg.WithField(m.logCtx, "error", err.Error()), "bridge.unsubscribe.failed")
		}
		m.unobserve()
		m.disposeGuard()
		m.syncing.Store(false)
		m.bridge.forget(m)
	})
}

func (m *Mount) run(ctx context.Context) {
	defer close(m.done)
	messages := m.sub.Messages()
	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			m.teardown()
			return
		case raw, ok := <-messages:
			if !ok {
				m.teardown()
				return
			}
			select {
			case <-m.stop:
				return
			default:
			}
			m.handle(raw)
		}
	}
}

func (m *Mount) handle(raw []byte) {
	b := m.bridge

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		m.drop(resultMalformed, err)
		return
	}
	if !b.origins.Allows(env.Origin) {
		m.drop(resultOrigin, fmt.Errorf("origin %q not allowed", env.Origin))
		return
	}
	msg, err := DecodeMessage(env.Data)
	if err != nil {
		m.drop(resultMalformed, err)
		return
	}
	if msg.Type != enums.BridgeMessageCartUpdate {
		m.drop(resultUnexpectedType, fmt.Errorf("unexpected %s", msg.Type))
		return
	}

	m.store.Replace(m.logCtx, cart.SourceHost, msg.CartItems())
	b.metrics.IncBridgeMessage(resultApplied)
	m.disposeGuard()
	m.setSyncing(false)
}

func (m *Mount) drop(result string, err error) {
	m.bridge.metrics.IncBridgeMessage(result)
	logCtx := m.bridge.logg.WithFields(m.logCtx, map[string]any{
		"result": result,
		"error":  err.Error(),
	})
	m.bridge.logg.Debug(logCtx, "bridge.message.dropped")
}

func (m *Mount) setSyncing(v bool) {
	m.syncing.Store(v)
}

// onChange queues local changes for the embedded page. Changes that came from
// the host are not echoed back. Each sync carries the whole cart, so only the
// newest queued one needs to go out.
func (m *Mount) onChange(ctx context.Context, change cart.Change) {
	if change.Source == cart.SourceHost {
		return
	}
	payload, err := json.Marshal(syncMessage(change.Items, change.Totals))
	if err != nil {
		return
	}
	m.outbox.Offer(ctx, payload)
}

func (m *Mount) publish(ctx context.Context, payload []byte) {
	select {
	case <-m.stop:
		return
	default:
	}
	err := guard.Run(ctx, guard.DefaultTimeout, func(ctx context.Context) error {
		return m.bridge.broker.Publish(ctx, m.sessionID, Outbound, payload)
	})
	if err != nil {
		m.bridge.logg.Warn(m.bridge.logg.WithField(m.logCtx, "error", err.Error()), "bridge.sync.publish_failed")
	}
}
