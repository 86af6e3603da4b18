package engine

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Trigger is a source of flush requests. Each value received on the channel
// is the reason for one flush; the channel closes when ctx is done.
type Trigger interface {
	Events(ctx context.Context) (<-chan string, error)
}

// TriggerFunc adapts a subscription function to Trigger.
type TriggerFunc func(ctx context.Context) (<-chan string, error)

// Events implements Trigger.
func (f TriggerFunc) Events(ctx context.Context) (<-chan string, error) {
	return f(ctx)
}

// Ticker fires on a fixed interval.
type Ticker struct {
	Interval time.Duration
}

// NewTicker creates a ticker trigger.
func NewTicker(interval time.Duration) *Ticker {
	return &Ticker{Interval: interval}
}

// Events implements Trigger.
func (t *Ticker) Events(ctx context.Context) (<-chan string, error) {
	if t.Interval <= 0 {
		return nil, errors.New("ticker interval must be positive")
	}
	out := make(chan string)
	go func() {
		defer close(out)
		ticker := time.NewTicker(t.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case out <- "timer":
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Run flushes once, then again on every trigger event until ctx is done.
// Events that arrive during a cycle collapse into a single follow-up flush.
func (e *Engine) Run(ctx context.Context, triggers ...Trigger) error {
	pending := make(chan string, 1)
	var wg sync.WaitGroup

	for _, t := range triggers {
		events, err := t.Events(ctx)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for reason := range events {
				select {
				case pending <- reason:
				default:
				}
			}
		}()
	}

	e.log.Info("Sync engine started", "triggers", len(triggers))
	e.flushLogged(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			e.log.Info("Sync engine stopped")
			return nil
		case reason := <-pending:
			e.flushLogged(ctx, reason)
		}
	}
}

func (e *Engine) flushLogged(ctx context.Context, reason string) {
	e.log.Debug("Flush requested", "reason", reason)
	if _, err := e.Flush(ctx); err != nil && !errors.Is(err, ErrGuestImportPending) {
		e.log.Error("Flush failed", "reason", reason, "error", err)
	}
}
