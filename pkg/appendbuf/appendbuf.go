// Package appendbuf implements the shared multi-writer byte log that
// producers encode frames into during a tick.
//
// Writers never block each other: each one claims its whole frame with a
// single atomic add on the log length and then copies into the claimed range.
// Ranges returned by Reserve are disjoint, so the log is always a sequence of
// complete frames once every writer has returned.
//
// The backing storage is sized up front and never moves while writers are
// active. Methods documented as owner-only (Bytes, Clear, Grow, ...) must be
// called by the single goroutine that drains the log, after the host has
// guaranteed that no writer is running.
package appendbuf

import (
	"errors"
	"math"
	"sync/atomic"

	"github.com/rawbytedev/tickbus/pkg/frame"
)

// ErrCapacityExceeded is returned by a reservation that does not fit in the
// pre-sized storage. The frame is not written.
var ErrCapacityExceeded = errors.New("shared buffer capacity exceeded")

// noOverflow marks an overflow watermark that was never set.
const noOverflow = math.MaxInt64

type Buffer struct {
	data []byte

	// length counts every byte ever reserved since the last Clear,
	// including reservations that failed.
	length atomic.Int64

	// overflowAt is the lowest offset of a failed reservation. Every
	// reservation starting below it completed inside capacity.
	overflowAt atomic.Int64

	dropped atomic.Uint64
}

// New allocates a buffer with room for capacity bytes.
func New(capacity int) *Buffer {
	b := &Buffer{data: make([]byte, capacity)}
	b.overflowAt.Store(noOverflow)
	return b
}

// Reserve claims n bytes and returns the offset of the claimed range.
// Safe for concurrent use.
func (b *Buffer) Reserve(n int) (int, error) {
	end := b.length.Add(int64(n))
	off := end - int64(n)
	if end > int64(len(b.data)) {
		b.dropped.Add(1)
		for {
			cur := b.overflowAt.Load()
			if off >= cur || b.overflowAt.CompareAndSwap(cur, off) {
				break
			}
		}
		return -1, ErrCapacityExceeded
	}
	return int(off), nil
}

// WriteAt copies p into the storage at off. The range must come from Reserve.
func (b *Buffer) WriteAt(off int, p []byte) {
	copy(b.data[off:off+len(p)], p)
}

// Send reserves and writes a single-message frame.
func (b *Buffer) Send(hash uint32, payload []byte) error {
	n := frame.SingleLen(len(payload))
	off, err := b.Reserve(n)
	if err != nil {
		return err
	}
	frame.PutSingle(b.data[off:off+n], hash, payload)
	return nil
}

// SendRange reserves and writes one frame carrying count elements.
func (b *Buffer) SendRange(hash uint32, count int, elements []byte) error {
	n := frame.HeaderSize + frame.CountSize + len(elements)
	off, err := b.Reserve(n)
	if err != nil {
		return err
	}
	frame.PutMulti(b.data[off:off+n], hash, count, elements)
	return nil
}

// Append reserves room for raw, which must already be a sequence of complete
// frames, and copies it in.
func (b *Buffer) Append(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	off, err := b.Reserve(len(raw))
	if err != nil {
		return err
	}
	b.WriteAt(off, raw)
	return nil
}

// Bytes returns the valid prefix of the log: every frame whose reservation
// fit in capacity. Owner-only; the slice aliases the storage until Clear.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.Len()]
}

// Len is the length of the valid prefix. Owner-only.
func (b *Buffer) Len() int {
	n := b.length.Load()
	if at := b.overflowAt.Load(); at < n {
		n = at
	}
	return int(n)
}

// Demand is the number of bytes writers asked for since the last Clear,
// including failed reservations. Owner-only.
func (b *Buffer) Demand() int { return int(b.length.Load()) }

// Overflowed reports whether any reservation failed since the last Clear.
func (b *Buffer) Overflowed() bool { return b.overflowAt.Load() != noOverflow }

// Dropped returns the number of failed reservations since New.
func (b *Buffer) Dropped() uint64 { return b.dropped.Load() }

// Cap returns the storage capacity in bytes.
func (b *Buffer) Cap() int { return len(b.data) }

// Clear resets the log to empty. Owner-only.
func (b *Buffer) Clear() {
	b.length.Store(0)
	b.overflowAt.Store(noOverflow)
}

// Grow replaces the storage with one of at least capacity bytes. Owner-only,
// and only while the log is empty; it returns false otherwise.
func (b *Buffer) Grow(capacity int) bool {
	if b.length.Load() != 0 {
		return false
	}
	if capacity > len(b.data) {
		b.data = make([]byte, capacity)
	}
	return true
}
