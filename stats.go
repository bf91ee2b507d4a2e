package tickbus

import "sync/atomic"

// Stats is a snapshot of bus counters since New.
type Stats struct {
	// Ticks is the number of Drain calls.
	Ticks uint64
	// Frames and Bytes count what was demultiplexed into slots.
	Frames uint64
	Bytes  uint64
	// Dispatches is the number of consumer Update calls.
	Dispatches uint64
	// Dropped is the number of sends rejected because the shared buffer
	// was full.
	Dropped uint64
	// Aborted is the number of ticks discarded on an unregistered type.
	Aborted uint64
	// Grows counts shared buffer reallocations.
	Grows uint64
	// Capacity is the current shared buffer size.
	Capacity int
}

type counters struct {
	ticks      atomic.Uint64
	frames     atomic.Uint64
	bytes      atomic.Uint64
	dispatches atomic.Uint64
	aborted    atomic.Uint64
	grows      atomic.Uint64
	capacity   atomic.Int64
}

// Stats returns a snapshot of the counters. Safe to call from any goroutine.
func (b *Bus) Stats() Stats {
	return Stats{
		Ticks:      b.stats.ticks.Load(),
		Frames:     b.stats.frames.Load(),
		Bytes:      b.stats.bytes.Load(),
		Dispatches: b.stats.dispatches.Load(),
		Dropped:    b.buf.Dropped(),
		Aborted:    b.stats.aborted.Load(),
		Grows:      b.stats.grows.Load(),
		Capacity:   int(b.stats.capacity.Load()),
	}
}
