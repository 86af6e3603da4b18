package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ProbeFunc checks whether the remote is reachable.
type ProbeFunc func(ctx context.Context) error

// ConnectivityMonitor probes the remote periodically. It answers Online and
// acts as a Trigger that fires when the remote comes back.
type ConnectivityMonitor struct {
	probe    ProbeFunc
	interval time.Duration
	timeout  time.Duration

	online atomic.Bool
	probed atomic.Bool
	mu     sync.Mutex // serializes probes

	log *slog.Logger
}

// NewConnectivityMonitor creates a monitor. interval <= 0 defaults to 10s.
func NewConnectivityMonitor(probe ProbeFunc, interval time.Duration) *ConnectivityMonitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &ConnectivityMonitor{
		probe:    probe,
		interval: interval,
		timeout:  5 * time.Second,
		log:      slog.Default().With("component", "connectivity"),
	}
}

// Online returns the last probe result, probing first if it never ran.
func (m *ConnectivityMonitor) Online(ctx context.Context) bool {
	if !m.probed.Load() {
		m.check(ctx)
	}
	return m.online.Load()
}

// check probes once and reports whether the state went offline -> online.
func (m *ConnectivityMonitor) check(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	err := m.probe(pctx)

	up := err == nil
	first := !m.probed.Swap(true)
	was := m.online.Swap(up)

	switch {
	case up && !was && !first:
		m.log.Info("Remote reachable again")
		return true
	case !up && (was || first):
		m.log.Warn("Remote unreachable", "error", err)
	}
	return false
}

// Events implements Trigger.
func (m *ConnectivityMonitor) Events(ctx context.Context) (<-chan string, error) {
	out := make(chan string)
	go func() {
		defer close(out)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !m.check(ctx) {
					continue
				}
				select {
				case out <- "online":
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
