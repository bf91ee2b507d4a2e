package frame

import (
	"encoding/binary"
	"fmt"
)

// ReadHeader parses the header at off; zero copy.
func ReadHeader(buf []byte, off int) (Header, error) {
	if off < 0 || len(buf)-off < HeaderSize {
		return Header{}, fmt.Errorf("header at offset %d: %w", off, ErrTruncated)
	}
	return Header{
		Flags:    buf[off],
		TypeHash: binary.LittleEndian.Uint32(buf[off+1:]),
	}, nil
}

// Decode reads the frame starting at off. Only structural fields are
// interpreted; the payload is never inspected.
func Decode(buf []byte, off int, sizer Sizer) (Frame, error) {
	h, err := ReadHeader(buf, off)
	if err != nil {
		return Frame{}, err
	}
	f := Frame{Header: h, Count: 1, PayloadOffset: off + HeaderSize}
	if h.Multi() {
		if len(buf)-f.PayloadOffset < CountSize {
			return Frame{}, fmt.Errorf("count at offset %d: %w", f.PayloadOffset, ErrTruncated)
		}
		cnt := int32(binary.LittleEndian.Uint32(buf[f.PayloadOffset:]))
		if cnt < 0 {
			return Frame{}, fmt.Errorf("frame at offset %d: %w (%d)", off, ErrBadCount, cnt)
		}
		f.Count = int(cnt)
		f.PayloadOffset += CountSize
	}
	size, ok := sizer.ElementSize(h.TypeHash)
	if !ok {
		return Frame{}, &UnknownTypeError{Hash: h.TypeHash, Offset: off}
	}
	f.PayloadLen = size * f.Count
	if len(buf)-f.PayloadOffset < f.PayloadLen {
		return Frame{}, fmt.Errorf("payload at offset %d: %w", f.PayloadOffset, ErrTruncated)
	}
	f.Length = f.PayloadOffset + f.PayloadLen - off
	return f, nil
}

// Walk decodes buf front to back and calls fn for every frame. It stops at
// the first decode error or the first error returned by fn.
func Walk(buf []byte, sizer Sizer, fn func(Frame) error) error {
	for off := 0; off < len(buf); {
		f, err := Decode(buf, off, sizer)
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
		off += f.Length
	}
	return nil
}
