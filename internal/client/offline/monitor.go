// Package offline tracks server reachability and records mutations that
// fail while disconnected for later replay.
package offline

import (
	"context"
	"sync"
	"time"
)

// Probe checks reachability; nil means online. Normally api.Client.Ping.
type Probe func(ctx context.Context) error

// Monitor polls the probe and notifies subscribers on online/offline
// transitions. Callers consult Online before attempting an operation so the
// UI can warn the user first.
type Monitor struct {
	probe    Probe
	interval time.Duration

	mu         sync.Mutex
	online     bool
	lastOnline time.Time
	subs       []chan bool
}

// NewMonitor constructs a monitor; the initial state is offline until the
// first successful probe.
func NewMonitor(probe Probe, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{probe: probe, interval: interval}
}

// Run polls until ctx is done. Run once, from the app's root goroutine.
func (m *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	m.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.check(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	err := m.probe(ctx)
	m.SetOnline(err == nil)
}

// SetOnline records the connectivity state and, on a transition, notifies
// subscribers without blocking.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	changed := online != m.online
	m.online = online
	if online {
		m.lastOnline = time.Now()
	}
	subs := m.subs
	m.mu.Unlock()

	if !changed {
		return
	}
	for _, ch := range subs {
		select {
		case ch <- online:
		default:
		}
	}
}

// Online reports the last known connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// LastOnlineAt returns when the server was last reachable (zero if never).
func (m *Monitor) LastOnlineAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOnline
}

// Subscribe returns a channel receiving the new state on every transition.
func (m *Monitor) Subscribe() <-chan bool {
	ch := make(chan bool, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}
