package tickbus

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/rawbytedev/tickbus/pkg/appendbuf"
	"github.com/rawbytedev/tickbus/pkg/slots"
)

const instrumentationName = "github.com/rawbytedev/tickbus"

// TickRecorder receives the raw frames of every non-empty tick before they
// are dispatched. *tape.Recorder implements it.
type TickRecorder interface {
	Record(tick uint64, raw []byte) error
}

// Bus owns the shared buffer, the slot table and the consumer bindings.
type Bus struct {
	cfg       Config
	buf       *appendbuf.Buffer
	table     *slots.Table
	sealed    atomic.Bool
	messenger *Messenger
	bindings  []*binding

	log      *slog.Logger
	tracer   trace.Tracer
	recorder TickRecorder

	tick  uint64
	stats counters
}

type Option func(*Bus)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.log = l }
}

// WithTracerProvider sets the provider drain spans are created from; the
// default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(b *Bus) { b.tracer = tp.Tracer(instrumentationName) }
}

// WithRecorder captures every drained tick.
func WithRecorder(r TickRecorder) Option {
	return func(b *Bus) { b.recorder = r }
}

// New creates a bus sized by cfg.
func New(cfg Config, opts ...Option) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Bus{
		cfg:   cfg,
		buf:   appendbuf.New(cfg.Capacity),
		table: slots.NewTable(cfg.SlotCapacity),
	}
	b.stats.capacity.Store(int64(cfg.Capacity))
	b.messenger = &Messenger{buf: b.buf, table: b.table, sealed: &b.sealed}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = slog.Default()
	}
	if b.tracer == nil {
		b.tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}
	return b, nil
}

// Messenger returns the producer handle of the bus.
func (b *Bus) Messenger() *Messenger { return b.messenger }

// Seal ends registration. Drain seals implicitly; calling Seal before the
// first write phase also enables hash collision checks on the first tick.
func (b *Bus) Seal() {
	if b.sealed.Load() {
		return
	}
	b.table.Seal()
	b.sealed.Store(true)
	b.log.Debug("tickbus: registration sealed",
		"consumers", len(b.bindings),
		"types", b.table.Len(),
	)
}

// Tick is the number of drains performed so far.
func (b *Bus) Tick() uint64 { return b.tick }

// Capacity is the current shared buffer size in bytes.
func (b *Bus) Capacity() int { return b.buf.Cap() }

// EnsureCapacity grows the shared buffer to at least n bytes. Owner-only: it
// must be called at the tick boundary, before any producer of the next tick
// writes. n above MaxCapacity fails with ErrCapacityExceeded.
func (b *Bus) EnsureCapacity(n int) error {
	prev := b.buf.Cap()
	if n <= prev {
		return nil
	}
	if b.cfg.MaxCapacity > 0 && n > b.cfg.MaxCapacity {
		return fmt.Errorf("%w: %d bytes above max_capacity %d", ErrCapacityExceeded, n, b.cfg.MaxCapacity)
	}
	if !b.buf.Grow(n) {
		return fmt.Errorf("ensure capacity: %d bytes pending", b.buf.Len())
	}
	b.stats.grows.Add(1)
	b.stats.capacity.Store(int64(n))
	b.log.Info("tickbus: shared buffer grown", "from", prev, "to", n)
	return nil
}

// Pending is the number of valid bytes waiting for the next drain. Only
// meaningful between the write phase and Drain.
func (b *Bus) Pending() int { return b.buf.Len() }
