package tickbus

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rawbytedev/tickbus/pkg/frame"
)

// Drain runs the tick boundary: it demultiplexes the shared buffer into
// slots, dispatches every consumer whose slot is not empty in registration
// order, then clears all buffers.
//
// Drain must be called exactly once per tick, after every producer of the
// tick has returned and before any producer of the next tick starts.
//
// A frame with an unregistered type aborts the tick before any consumer runs
// and returns an *UnregisteredTypeError; the tick's messages are discarded.
// Errors from consumers do not stop later consumers; they are joined and
// returned once the tick is complete.
func (b *Bus) Drain(ctx context.Context) error {
	b.Seal()
	tick := b.tick
	b.tick++
	b.stats.ticks.Add(1)

	raw := b.buf.Bytes()
	if len(raw) == 0 && !b.buf.Overflowed() {
		return nil
	}

	ctx, span := b.tracer.Start(ctx, "tickbus.Drain", trace.WithAttributes(
		attribute.Int64("tickbus.tick", int64(tick)),
		attribute.Int("tickbus.bytes", len(raw)),
	))
	defer span.End()
	defer b.reset(tick)

	if b.recorder != nil && len(raw) > 0 {
		if err := b.recorder.Record(tick, raw); err != nil {
			b.log.Warn("tickbus: tick capture failed", "tick", tick, "error", err)
		}
	}

	frames, err := b.demux(tick, raw)
	span.SetAttributes(attribute.Int("tickbus.frames", frames))
	if err != nil {
		b.stats.aborted.Add(1)
		b.log.Error("tickbus: drain aborted, tick discarded",
			"tick", tick,
			"frames", frames,
			"error", err,
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	b.stats.frames.Add(uint64(frames))
	b.stats.bytes.Add(uint64(len(raw)))

	dispatched, err := b.dispatch(ctx)
	span.SetAttributes(attribute.Int("tickbus.dispatched", dispatched))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "consumer update failed")
	}
	return err
}

// demux copies every frame payload into the slot of its type. On error the
// slots are left partly filled; reset discards them.
func (b *Bus) demux(tick uint64, raw []byte) (int, error) {
	frames := 0
	err := frame.Walk(raw, b.table, func(f frame.Frame) error {
		slot, _ := b.table.Lookup(f.TypeHash)
		slot.Append(f.Payload(raw))
		frames++
		return nil
	})
	if err != nil {
		var ute *frame.UnknownTypeError
		if errors.As(err, &ute) {
			return frames, &UnregisteredTypeError{Tick: tick, Hash: ute.Hash, Offset: ute.Offset}
		}
		return frames, fmt.Errorf("tick %d: decode shared buffer: %w", tick, err)
	}
	return frames, nil
}

func (b *Bus) dispatch(ctx context.Context) (int, error) {
	var (
		errs []error
		n    int
	)
	for _, bd := range b.bindings {
		if bd.slot.Len() == 0 {
			continue
		}
		n++
		if err := bd.run(ctx); err != nil {
			b.log.Warn("tickbus: consumer update failed",
				"consumer", bd.name,
				"type", bd.typeName,
				"error", err,
			)
			errs = append(errs, &ConsumerError{Consumer: bd.name, Err: err})
		}
	}
	b.stats.dispatches.Add(uint64(n))
	return n, errors.Join(errs...)
}

// reset clears the shared buffer and every slot, then grows the shared
// buffer if the write phase ran out of room. No writer is active here.
func (b *Bus) reset(tick uint64) {
	demand := b.buf.Demand()
	overflowed := b.buf.Overflowed()
	b.buf.Clear()
	b.table.ClearAll()
	if !overflowed {
		return
	}
	b.log.Warn("tickbus: shared buffer overflowed during write phase",
		"tick", tick,
		"capacity", b.buf.Cap(),
		"demand", demand,
		"dropped_total", b.buf.Dropped(),
	)
	if b.cfg.GrowOnOverflow {
		b.grow(demand)
	}
}

func (b *Bus) grow(demand int) {
	prev := b.buf.Cap()
	target := prev * 2
	if demand > target {
		target = demand
	}
	if b.cfg.MaxCapacity > 0 && target > b.cfg.MaxCapacity {
		target = b.cfg.MaxCapacity
	}
	if target <= prev || !b.buf.Grow(target) {
		return
	}
	b.stats.grows.Add(1)
	b.stats.capacity.Store(int64(target))
	b.log.Info("tickbus: shared buffer grown", "from", prev, "to", target)
}
