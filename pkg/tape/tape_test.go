package tape

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/tickbus/pkg/frame"
)

func TestRecordAndReadBack(t *testing.T) {
	var out bytes.Buffer
	rec, err := NewRecorder(&out, zstd.WithEncoderLevel(zstd.SpeedFastest))
	require.NoError(t, err)

	tick0 := frame.EncodeSingle(nil, 1, []byte{1, 2, 3, 4})
	tick2 := frame.EncodeMulti(nil, 2, 3, []byte{1, 1, 2, 2, 3, 3})
	tick2 = frame.EncodeSingle(tick2, 1, []byte{5, 6, 7, 8})

	require.NoError(t, rec.Record(0, tick0))
	require.NoError(t, rec.Record(2, tick2))
	require.Equal(t, uint64(2), rec.Ticks())
	require.Equal(t, uint64(len(tick0)+len(tick2)), rec.Bytes())
	require.NoError(t, rec.Close())

	rd, err := NewReader(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	defer rd.Close()

	got, err := rd.Next()
	require.NoError(t, err)
	require.Equal(t, uint64(0), got.Number)
	require.Equal(t, tick0, got.Frames)

	got, err = rd.Next()
	require.NoError(t, err)
	require.Equal(t, uint64(2), got.Number)
	require.Equal(t, tick2, got.Frames)

	_, err = rd.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestReaderRejectsForeignStream(t *testing.T) {
	var out bytes.Buffer
	enc, err := zstd.NewWriter(&out)
	require.NoError(t, err)
	_, err = enc.Write([]byte("not a tape"))
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	_, err = NewReader(bytes.NewReader(out.Bytes()))
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestReaderTruncatedRecord(t *testing.T) {
	var plain bytes.Buffer
	enc, err := zstd.NewWriter(&plain)
	require.NoError(t, err)
	// magic, then a head announcing 16 bytes followed by only 3
	_, err = enc.Write([]byte{'T', 'K', 'T', '1', 7, 0, 0, 0, 0, 0, 0, 0, 16, 0, 0, 0, 1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	rd, err := NewReader(bytes.NewReader(plain.Bytes()))
	require.NoError(t, err)
	defer rd.Close()
	_, err = rd.Next()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestRecordRejectsOversizedTick(t *testing.T) {
	var out bytes.Buffer
	rec, err := NewRecorder(&out)
	require.NoError(t, err)
	rec.limit = 8

	big := frame.EncodeSingle(nil, 1, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.ErrorIs(t, rec.Record(0, big), ErrRecordTooLarge)
	require.Zero(t, rec.Ticks())

	small := frame.EncodeSingle(nil, 1, []byte{1, 2})
	require.NoError(t, rec.Record(1, small))
	require.NoError(t, rec.Close())

	rd, err := NewReader(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	defer rd.Close()
	got, err := rd.Next()
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.Number)
	require.Equal(t, small, got.Frames)
	_, err = rd.Next()
	require.ErrorIs(t, err, io.EOF)
}
