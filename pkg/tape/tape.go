// Package tape captures the raw frames of drained ticks into a zstd
// compressed stream and reads them back.
//
// Concurrent producers reserve buffer space in a different order on every
// run, so a tape is the only way to reproduce a tick byte for byte: read a
// tick back and hand its frames to Messenger.AppendFrames before draining.
//
// Stream layout (before compression):
//
//	magic   : u32 "TKT1"
//	records : { u64 tick, u32 length, length bytes of frames }*
package tape

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

const (
	MagicV1    = 0x31544B54 // "TKT1"
	recordHead = 12

	// MaxRecord bounds the frames of a single tick.
	MaxRecord = 1 << 30
)

var (
	ErrBadMagic       = errors.New("tape: bad magic")
	ErrRecordTooLarge = errors.New("tape: record too large")
)

// Recorder writes ticks to a compressed stream. Not safe for concurrent use;
// the drain goroutine is its only caller.
type Recorder struct {
	enc   *zstd.Encoder
	head  [recordHead]byte
	ticks uint64
	bytes uint64
	limit int
}

// NewRecorder starts a tape on w. Close must be called to flush the stream;
// it does not close w.
func NewRecorder(w io.Writer, opts ...zstd.EOption) (*Recorder, error) {
	enc, err := zstd.NewWriter(w, opts...)
	if err != nil {
		return nil, fmt.Errorf("tape: zstd writer: %w", err)
	}
	var magic [4]byte
	binary.LittleEndian.PutUint32(magic[:], MagicV1)
	if _, err := enc.Write(magic[:]); err != nil {
		enc.Close()
		return nil, fmt.Errorf("tape: write magic: %w", err)
	}
	return &Recorder{enc: enc, limit: MaxRecord}, nil
}

// Record appends the frames of one tick. Ticks above MaxRecord are rejected
// with ErrRecordTooLarge and nothing is written.
func (r *Recorder) Record(tick uint64, raw []byte) error {
	if len(raw) > r.limit {
		return fmt.Errorf("%w: tick %d has %d bytes", ErrRecordTooLarge, tick, len(raw))
	}
	binary.LittleEndian.PutUint64(r.head[0:], tick)
	binary.LittleEndian.PutUint32(r.head[8:], uint32(len(raw)))
	if _, err := r.enc.Write(r.head[:]); err != nil {
		return fmt.Errorf("tape: write record head: %w", err)
	}
	if _, err := r.enc.Write(raw); err != nil {
		return fmt.Errorf("tape: write record: %w", err)
	}
	r.ticks++
	r.bytes += uint64(len(raw))
	return nil
}

// Flush pushes buffered data to the underlying writer.
func (r *Recorder) Flush() error { return r.enc.Flush() }

// Close finishes the compressed stream.
func (r *Recorder) Close() error { return r.enc.Close() }

// Ticks is the number of ticks recorded.
func (r *Recorder) Ticks() uint64 { return r.ticks }

// Bytes is the number of uncompressed frame bytes recorded.
func (r *Recorder) Bytes() uint64 { return r.bytes }

// Tick is one record read back from a tape.
type Tick struct {
	Number uint64
	// Frames is only valid until the next call to Next.
	Frames []byte
}

// Reader reads ticks back from a tape.
type Reader struct {
	dec  *zstd.Decoder
	head [recordHead]byte
	buf  []byte
}

func NewReader(rd io.Reader) (*Reader, error) {
	dec, err := zstd.NewReader(rd)
	if err != nil {
		return nil, fmt.Errorf("tape: zstd reader: %w", err)
	}
	var magic [4]byte
	if _, err := io.ReadFull(dec, magic[:]); err != nil {
		dec.Close()
		return nil, fmt.Errorf("tape: read magic: %w", err)
	}
	if binary.LittleEndian.Uint32(magic[:]) != MagicV1 {
		dec.Close()
		return nil, ErrBadMagic
	}
	return &Reader{dec: dec}, nil
}

// Next returns the next recorded tick, or io.EOF after the last one.
func (r *Reader) Next() (Tick, error) {
	if _, err := io.ReadFull(r.dec, r.head[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Tick{}, io.EOF
		}
		return Tick{}, fmt.Errorf("tape: read record head: %w", err)
	}
	t := Tick{Number: binary.LittleEndian.Uint64(r.head[0:])}
	n := int(binary.LittleEndian.Uint32(r.head[8:]))
	if n > MaxRecord {
		return Tick{}, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, n)
	}
	if cap(r.buf) < n {
		r.buf = make([]byte, n)
	}
	r.buf = r.buf[:n]
	if _, err := io.ReadFull(r.dec, r.buf); err != nil {
		return Tick{}, fmt.Errorf("tape: read record %d: %w", t.Number, err)
	}
	t.Frames = r.buf
	return t, nil
}

// Close releases the decoder.
func (r *Reader) Close() { r.dec.Close() }
