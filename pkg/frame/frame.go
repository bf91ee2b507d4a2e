// Package frame defines the binary layout of a message inside the shared tick
// buffer.
//
//	Header  : u8 flags (bit0 = Multi), u32 typeHash   (5 bytes)
//	[count] : i32                                     (4 bytes, iff Multi)
//	payload : elementSize × elementCount raw bytes
//
// All integers are little-endian. The codec knows nothing about message types;
// the element size of a hash is supplied by the caller through a Sizer.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	HeaderSize = 5
	CountSize  = 4

	// FlagMulti marks a frame carrying an explicit element count.
	FlagMulti = 0x01

	// MaxCount is the largest element count a multi frame can carry.
	MaxCount = math.MaxInt32
)

var (
	ErrTruncated   = errors.New("frame truncated")
	ErrBadCount    = errors.New("frame has negative element count")
	ErrUnknownType = errors.New("frame type hash has no element size")
	ErrShortDst    = errors.New("destination does not match frame length")
)

// Header is the fixed prefix of every frame.
type Header struct {
	Flags    uint8
	TypeHash uint32
}

// Multi reports whether the frame carries an element count.
func (h Header) Multi() bool { return h.Flags&FlagMulti != 0 }

// Frame describes one decoded frame within a buffer.
type Frame struct {
	Header
	Count         int
	PayloadOffset int
	PayloadLen    int
	Length        int
}

// Payload returns the payload bytes of f inside buf.
func (f Frame) Payload(buf []byte) []byte {
	return buf[f.PayloadOffset : f.PayloadOffset+f.PayloadLen]
}

// Sizer resolves the element size registered for a type hash.
type Sizer interface {
	ElementSize(hash uint32) (int, bool)
}

// SizerFunc adapts a function to Sizer.
type SizerFunc func(hash uint32) (int, bool)

func (fn SizerFunc) ElementSize(hash uint32) (int, bool) { return fn(hash) }

// UnknownTypeError reports a frame whose hash the Sizer could not resolve.
type UnknownTypeError struct {
	Hash   uint32
	Offset int
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("frame at offset %d: type hash %#08x has no element size", e.Offset, e.Hash)
}

func (e *UnknownTypeError) Unwrap() error { return ErrUnknownType }

// SingleLen is the encoded length of a single-message frame.
func SingleLen(size int) int { return HeaderSize + size }

// MultiLen is the encoded length of a frame carrying count elements.
func MultiLen(size, count int) int { return HeaderSize + CountSize + size*count }

func putHeader(dst []byte, h Header) {
	dst[0] = h.Flags
	binary.LittleEndian.PutUint32(dst[1:], h.TypeHash)
}

// EncodeSingle appends a single-message frame to dst.
func EncodeSingle(dst []byte, hash uint32, payload []byte) []byte {
	n := len(dst)
	dst = append(dst, make([]byte, SingleLen(len(payload)))...)
	PutSingle(dst[n:], hash, payload)
	return dst
}

// EncodeMulti appends a frame of count elements to dst. elements holds the
// concatenated element bytes.
func EncodeMulti(dst []byte, hash uint32, count int, elements []byte) []byte {
	n := len(dst)
	dst = append(dst, make([]byte, HeaderSize+CountSize+len(elements))...)
	PutMulti(dst[n:], hash, count, elements)
	return dst
}

// PutSingle writes a single-message frame into dst, which must be exactly
// SingleLen(len(payload)) bytes long.
func PutSingle(dst []byte, hash uint32, payload []byte) {
	if len(dst) != HeaderSize+len(payload) {
		panic(ErrShortDst)
	}
	putHeader(dst, Header{TypeHash: hash})
	copy(dst[HeaderSize:], payload)
}

// PutMulti writes a multi frame into dst, which must be exactly
// HeaderSize+CountSize+len(elements) bytes long.
func PutMulti(dst []byte, hash uint32, count int, elements []byte) {
	if len(dst) != HeaderSize+CountSize+len(elements) {
		panic(ErrShortDst)
	}
	putHeader(dst, Header{Flags: FlagMulti, TypeHash: hash})
	binary.LittleEndian.PutUint32(dst[HeaderSize:], uint32(int32(count)))
	copy(dst[HeaderSize+CountSize:], elements)
}
