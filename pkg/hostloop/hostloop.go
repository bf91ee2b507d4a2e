// Package hostloop is a minimal host scheduler for a tickbus.Bus: every tick
// it runs all producers concurrently, waits for all of them (the write-phase
// barrier) and then drains the bus on the calling goroutine.
package hostloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rawbytedev/tickbus"
)

// Producer writes the messages of one tick.
type Producer interface {
	Produce(ctx context.Context, tick uint64, m *tickbus.Messenger) error
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc func(ctx context.Context, tick uint64, m *tickbus.Messenger) error

func (f ProducerFunc) Produce(ctx context.Context, tick uint64, m *tickbus.Messenger) error {
	return f(ctx, tick, m)
}

type Config struct {
	// TickRate is the interval between ticks in Run (default 16.67ms, 60 Hz).
	TickRate time.Duration
	// StopOnError stops Run at the first failed tick. When false, failed
	// ticks are logged and the loop continues.
	StopOnError bool
}

// Loop drives one bus.
type Loop struct {
	bus       *tickbus.Bus
	producers []Producer
	cfg       Config
	log       *slog.Logger
}

func New(bus *tickbus.Bus, cfg Config, producers ...Producer) *Loop {
	if cfg.TickRate == 0 {
		cfg.TickRate = 16667 * time.Microsecond
	}
	return &Loop{
		bus:       bus,
		producers: producers,
		cfg:       cfg,
		log:       slog.Default(),
	}
}

// WithLogger replaces the loop logger.
func (l *Loop) WithLogger(log *slog.Logger) *Loop {
	l.log = log
	return l
}

// Step runs one tick: the producer phase, the barrier, then Drain. Producer
// errors skip nothing; messages already written are still drained.
func (l *Loop) Step(ctx context.Context) error {
	tick := l.bus.Tick()
	m := l.bus.Messenger()

	var g errgroup.Group
	for _, p := range l.producers {
		g.Go(func() error {
			return p.Produce(ctx, tick, m)
		})
	}
	produceErr := g.Wait()

	drainErr := l.bus.Drain(ctx)
	if produceErr != nil {
		produceErr = fmt.Errorf("tick %d: produce: %w", tick, produceErr)
	}
	return errors.Join(produceErr, drainErr)
}

// Run steps the bus at the configured rate until ctx is done, then returns
// ctx.Err(). A tick already started is always completed first.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.TickRate)
	defer ticker.Stop()

	l.log.Info("hostloop: started", "tick_rate", l.cfg.TickRate, "producers", len(l.producers))
	for {
		select {
		case <-ctx.Done():
			l.log.Info("hostloop: stopped", "ticks", l.bus.Tick())
			return ctx.Err()
		case <-ticker.C:
			if err := l.Step(ctx); err != nil {
				if l.cfg.StopOnError {
					return err
				}
				l.log.Warn("hostloop: tick failed", "error", err)
			}
		}
	}
}

// RunTicks steps the bus n times back to back, without waiting on the
// ticker. Useful for tests and offline simulation. Like Run, it returns
// ctx.Err() when ctx ends before the n-th tick.
func (l *Loop) RunTicks(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.Step(ctx); err != nil {
			if l.cfg.StopOnError {
				return err
			}
			l.log.Warn("hostloop: tick failed", "error", err)
		}
	}
	return nil
}
