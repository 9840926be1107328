package sync

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/maypok86/otter"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// defaultDedupeWindow is how long a fetched payload satisfies further
// requests for the same resource without touching the network. Several
// dashboard views share the same underlying data; staggered renders
// must not multiply device traffic.
const defaultDedupeWindow = 2 * time.Second

// Update is one refresh delivered to a subscriber.
type Update struct {
	Resource string
	Data     json.RawMessage
	// Stale marks data served from an earlier successful fetch because
	// the current refresh failed. Err carries that failure.
	Stale bool
	Err   error
	At    time.Time
}

// Manager coordinates polling across subscribers. Concurrent fetches of
// one resource collapse into a single upstream request, recent results
// are reused inside the dedupe window, and the last good snapshot is
// kept for serving through outages.
type Manager struct {
	client *Client
	logger *zap.Logger

	group    singleflight.Group
	recent   otter.Cache[string, json.RawMessage]
	lastGood otter.Cache[string, json.RawMessage]

	onAuthExpired func()
	expiredFired  atomic.Bool
}

// Option configures a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	dedupeWindow  time.Duration
	onAuthExpired func()
}

// WithDedupeWindow overrides the reuse window for recent results.
func WithDedupeWindow(d time.Duration) Option {
	return func(o *managerOptions) { o.dedupeWindow = d }
}

// WithAuthExpiredFunc registers a callback fired when a refresh reports
// an expired session. The callback runs at most once until
// ResetAuthExpired, no matter how many concurrent polls hit the 401.
func WithAuthExpiredFunc(fn func()) Option {
	return func(o *managerOptions) { o.onAuthExpired = fn }
}

// NewManager creates a polling manager on top of a client.
func NewManager(client *Client, logger *zap.Logger, opts ...Option) *Manager {
	o := managerOptions{dedupeWindow: defaultDedupeWindow}
	for _, opt := range opts {
		opt(&o)
	}

	recent, err := otter.MustBuilder[string, json.RawMessage](len(Resources) * 2).
		Cost(func(_ string, _ json.RawMessage) uint32 { return 1 }).
		WithTTL(o.dedupeWindow).
		Build()
	if err != nil {
		panic("sync: failed to create dedupe cache: " + err.Error())
	}
	lastGood, err := otter.MustBuilder[string, json.RawMessage](len(Resources) * 2).
		Cost(func(_ string, _ json.RawMessage) uint32 { return 1 }).
		Build()
	if err != nil {
		panic("sync: failed to create snapshot cache: " + err.Error())
	}

	return &Manager{
		client:        client,
		logger:        logger,
		recent:        recent,
		lastGood:      lastGood,
		onAuthExpired: o.onAuthExpired,
	}
}

// Fetch returns the resource's payload, reusing a recent result when one
// is inside the dedupe window. On a failed refresh the last good
// snapshot is returned with stale set and the failure in err; callers
// keep rendering data while surfacing the problem.
func (m *Manager) Fetch(ctx context.Context, res Resource) (data json.RawMessage, stale bool, err error) {
	if v, ok := m.recent.Get(res.Name); ok {
		return v, false, nil
	}

	if res.Auth {
		ok, authErr := m.client.Store().IsAuthenticated(ctx)
		if authErr == nil && !ok {
			// No session yet. Let the server answer when the store is
			// unreadable, but don't burn requests we know will 401.
			return nil, false, ErrLoginRequired
		}
	}

	v, err, _ := m.group.Do(res.Name, func() (any, error) {
		return m.client.Get(ctx, res.Path)
	})
	if err != nil {
		if errors.Is(err, ErrAuthExpired) && m.expiredFired.CompareAndSwap(false, true) {
			// Dead credentials are cleared once, no matter how many polls
			// hit the expired session at the same time.
			if clearErr := m.client.Store().ClearCredentials(ctx); clearErr != nil {
				m.logger.Warn("failed to clear expired session", zap.Error(clearErr))
			}
			if m.onAuthExpired != nil {
				m.onAuthExpired()
			}
		}
		if snapshot, ok := m.lastGood.Get(res.Name); ok {
			m.logger.Debug("refresh failed, serving last good snapshot",
				zap.String("resource", res.Name), zap.Error(err))
			return snapshot, true, err
		}
		return nil, false, err
	}

	payload := v.(json.RawMessage)
	m.recent.Set(res.Name, payload)
	m.lastGood.Set(res.Name, payload)
	return payload, false, nil
}

// Invalidate drops cached results for a resource so the next Fetch goes
// to the network. Mutations call this on the views they change.
func (m *Manager) Invalidate(name string) {
	m.recent.Delete(name)
}

// Refresh bypasses the dedupe window and fetches the resource now.
func (m *Manager) Refresh(ctx context.Context, res Resource) (json.RawMessage, bool, error) {
	m.recent.Delete(res.Name)
	return m.Fetch(ctx, res)
}

// ResetAuthExpired re-arms the auth-expiry callback, typically after a
// fresh login.
func (m *Manager) ResetAuthExpired() {
	m.expiredFired.Store(false)
}

// Subscribe polls the resource on its interval and delivers each result
// until ctx is done. The first fetch happens immediately. A slow
// consumer drops intermediate updates rather than stalling the poll
// loop.
func (m *Manager) Subscribe(ctx context.Context, res Resource) <-chan Update {
	ch := make(chan Update, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(res.Interval)
		defer ticker.Stop()

		for {
			data, stale, err := m.Fetch(ctx, res)
			u := Update{Resource: res.Name, Data: data, Stale: stale, Err: err, At: time.Now()}
			select {
			case ch <- u:
			default:
				select {
				case <-ch:
				default:
				}
				ch <- u
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return ch
}

// Close releases the caches.
func (m *Manager) Close() {
	m.recent.Close()
	m.lastGood.Close()
}
