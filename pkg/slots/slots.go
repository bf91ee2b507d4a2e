// Package slots holds the per-message-type staging buffers filled by the
// drain pass.
//
// Slots are created while consumers register and are reused every tick. The
// drain goroutine is the only writer. Storage is kept in 8-byte words so the
// byte view can be aliased as a slice of any plain-data message type.
package slots

import (
	"errors"
	"fmt"

	"github.com/rawbytedev/tickbus/internal/common"
)

var (
	// ErrHashCollision is returned when two distinct types share a hash.
	ErrHashCollision = errors.New("type hash collision")
	// ErrSealed is returned by GetOrCreate after Seal.
	ErrSealed = errors.New("slot table is sealed")
	// ErrBadSize is returned for non-positive element sizes.
	ErrBadSize = errors.New("element size must be positive")
)

// Slot is the staging buffer of one message type.
type Slot struct {
	Hash     uint32
	Size     int
	TypeName string

	words []uint64
	n     int // bytes in use
	gen   uint64
}

func newSlot(hash uint32, size int, name string, initialElems int) *Slot {
	s := &Slot{Hash: hash, Size: size, TypeName: name, gen: 1}
	if initialElems < 1 {
		initialElems = 1
	}
	s.words = make([]uint64, wordsFor(size*initialElems))
	return s
}

func wordsFor(n int) int { return (n + 7) / 8 }

// Append copies p to the end of the slot. When the storage has to move, the
// slot generation is bumped so aliased views can be rebuilt.
func (s *Slot) Append(p []byte) {
	need := s.n + len(p)
	if need > len(s.words)*8 {
		grown := len(s.words) * 2
		if w := wordsFor(need); w > grown {
			grown = w
		}
		words := make([]uint64, grown)
		copy(words, s.words[:wordsFor(s.n)])
		s.words = words
		s.gen++
	}
	copy(common.WordBytes(s.words)[s.n:need], p)
	s.n = need
}

// Len is the number of bytes staged this tick.
func (s *Slot) Len() int { return s.n }

// Count is the number of elements staged this tick.
func (s *Slot) Count() int { return s.n / s.Size }

// Bytes returns the staged bytes. The slice aliases the slot storage.
func (s *Slot) Bytes() []byte { return common.WordBytes(s.words)[:s.n] }

// Storage returns the whole backing storage as bytes, staged or not.
func (s *Slot) Storage() []byte { return common.WordBytes(s.words) }

// Capacity is the number of whole elements the current storage can hold.
func (s *Slot) Capacity() int { return len(s.words) * 8 / s.Size }

// Generation identifies the current storage; it changes on reallocation.
func (s *Slot) Generation() uint64 { return s.gen }

// Reset empties the slot and keeps its storage.
func (s *Slot) Reset() { s.n = 0 }

// Table maps type hashes to slots.
type Table struct {
	byHash  map[uint32]*Slot
	ordered []*Slot
	initial int
	sealed  bool
}

// NewTable returns an empty table whose slots start with room for
// initialElems elements.
func NewTable(initialElems int) *Table {
	return &Table{byHash: make(map[uint32]*Slot), initial: initialElems}
}

// GetOrCreate returns the slot registered under hash, creating it on first
// use. A second type with the same hash fails with ErrHashCollision.
func (t *Table) GetOrCreate(hash uint32, size int, typeName string) (*Slot, error) {
	if s, ok := t.byHash[hash]; ok {
		if s.TypeName != typeName || s.Size != size {
			return nil, fmt.Errorf("%w: %#08x is %s (%d bytes), not %s (%d bytes)",
				ErrHashCollision, hash, s.TypeName, s.Size, typeName, size)
		}
		return s, nil
	}
	if t.sealed {
		return nil, ErrSealed
	}
	if size <= 0 {
		return nil, fmt.Errorf("%s: %w", typeName, ErrBadSize)
	}
	s := newSlot(hash, size, typeName, t.initial)
	t.byHash[hash] = s
	t.ordered = append(t.ordered, s)
	return s, nil
}

// Lookup returns the slot for hash.
func (t *Table) Lookup(hash uint32) (*Slot, bool) {
	s, ok := t.byHash[hash]
	return s, ok
}

// ElementSize implements frame.Sizer.
func (t *Table) ElementSize(hash uint32) (int, bool) {
	s, ok := t.byHash[hash]
	if !ok {
		return 0, false
	}
	return s.Size, true
}

// Seal forbids new slots. Lookups stay valid and, once sealed, the table is
// safe for concurrent readers.
func (t *Table) Seal() { t.sealed = true }

// Sealed reports whether Seal was called.
func (t *Table) Sealed() bool { return t.sealed }

// ClearAll resets every slot.
func (t *Table) ClearAll() {
	for _, s := range t.ordered {
		s.Reset()
	}
}

// Slots returns the slots in creation order.
func (t *Table) Slots() []*Slot { return t.ordered }

// Len is the number of slots.
func (t *Table) Len() int { return len(t.ordered) }
