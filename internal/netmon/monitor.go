// Package netmon tracks connectivity to the remote store and reports
// online/offline edges.
package netmon

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultProbeInterval is how often Run checks reachability.
	DefaultProbeInterval = 10 * time.Second

	// probeTimeout bounds a single reachability check.
	probeTimeout = 5 * time.Second

	// subscriberBuffer is the channel buffer per subscriber. A subscriber
	// that falls this far behind misses transitions rather than blocking
	// the monitor.
	subscriberBuffer = 8
)

// Direction is the new connectivity state after a transition.
type Direction int

const (
	Offline Direction = iota
	Online
)

func (d Direction) String() string {
	if d == Online {
		return "online"
	}

	return "offline"
}

// Transition is emitted once per actual change of connectivity.
type Transition struct {
	Direction Direction
	At        time.Time
}

// Prober checks whether the remote store is reachable.
type Prober interface {
	Ping(ctx context.Context) error
}

// Monitor holds the best-known connectivity state. State changes come from
// Set, either called directly by a platform hook or by the Run probe loop.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   map[int]chan Transition
	nextID int

	prober   Prober
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// New returns a monitor starting in the given state. prober may be nil if
// the caller drives the state with Set only.
func New(initial bool, prober Prober, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}

	return &Monitor{
		online:   initial,
		subs:     make(map[int]chan Transition),
		prober:   prober,
		interval: interval,
		logger:   logger.With(slog.String("component", "netmon")),
		now:      time.Now,
	}
}

// IsOnline returns the current best-known state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.online
}

// Set records the observed state. Subscribers receive a Transition only
// if the state actually changed, so repeated reports of the same state
// are silent. Returns true if a transition was emitted.
func (m *Monitor) Set(online bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.online == online {
		return false
	}

	m.online = online

	tr := Transition{Direction: Offline, At: m.now()}
	if online {
		tr.Direction = Online
	}

	m.logger.Info("connectivity changed", slog.String("state", tr.Direction.String()))

	for id, ch := range m.subs {
		select {
		case ch <- tr:
		default:
			m.logger.Warn("subscriber not keeping up, transition dropped", slog.Int("subscriber", id))
		}
	}

	return true
}

// Subscribe returns a channel of future transitions and a cancel func that
// closes it.
func (m *Monitor) Subscribe() (<-chan Transition, func()) {
	ch := make(chan Transition, subscriberBuffer)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// Probe runs one reachability check and feeds the result to Set.
func (m *Monitor) Probe(ctx context.Context) bool {
	if m.prober == nil {
		return m.IsOnline()
	}

	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	err := m.prober.Ping(pctx)
	if ctx.Err() != nil {
		// Shutting down; a cancelled probe says nothing about the network.
		return m.IsOnline()
	}

	if err != nil {
		m.logger.Debug("probe failed", slog.String("error", err.Error()))
	}

	online := err == nil
	m.Set(online)

	return online
}

// Run probes immediately and then every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	if m.prober == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
