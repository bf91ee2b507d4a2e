package tickbus

import (
	"fmt"
	"sync/atomic"

	"github.com/rawbytedev/tickbus/internal/common"
	"github.com/rawbytedev/tickbus/pkg/appendbuf"
	"github.com/rawbytedev/tickbus/pkg/frame"
	"github.com/rawbytedev/tickbus/pkg/slots"
)

// Messenger is the producer side of a bus. All methods are safe for
// concurrent use during the write phase of a tick.
type Messenger struct {
	buf    *appendbuf.Buffer
	table  *slots.Table
	sealed *atomic.Bool
}

func (m *Messenger) check(ti *typeInfo) error {
	if ti.err != nil {
		return ti.err
	}
	if m.sealed.Load() {
		if s, ok := m.table.Lookup(ti.hash); ok && s.TypeName != ti.name {
			return fmt.Errorf("%w: %s sent under hash %#08x registered for %s",
				ErrHashCollision, ti.name, ti.hash, s.TypeName)
		}
	}
	return nil
}

// Send writes one message for the current tick.
func Send[T any](m *Messenger, v T) error {
	ti := infoFor[T]()
	if err := m.check(ti); err != nil {
		return err
	}
	return m.buf.Send(ti.hash, common.BytesOf(&v))
}

// SendRange writes vs as a single frame; the messages stay contiguous and in
// order in the consumer's view. An empty range sends nothing.
func SendRange[T any](m *Messenger, vs []T) error {
	if len(vs) == 0 {
		return nil
	}
	ti := infoFor[T]()
	if err := m.check(ti); err != nil {
		return err
	}
	if len(vs) > frame.MaxCount {
		return fmt.Errorf("%w: %d elements", ErrTooLarge, len(vs))
	}
	return m.buf.SendRange(ti.hash, len(vs), common.SliceBytes(vs))
}

// AppendFrames copies already encoded frames, such as a tick read back from
// a tape, into the current tick.
func (m *Messenger) AppendFrames(raw []byte) error {
	return m.buf.Append(raw)
}
