package tickbus

import (
	"context"
	"iter"
	"reflect"

	"github.com/rawbytedev/tickbus/internal/common"
	"github.com/rawbytedev/tickbus/pkg/slots"
)

// Consumer is invoked once per tick in which at least one message of its
// type was sent.
type Consumer interface {
	Update(ctx context.Context) error
}

// SingleReceiver exposes one embedded message value. The field address is
// captured at registration and must stay valid for the run.
type SingleReceiver[T any] interface {
	Consumer
	MessageField() *T
}

// MultiReceiver exposes an embedded slice field that the bus points at the
// slot storage for the duration of Update. The slot is shared by every
// consumer of T; Update must not write through the slice.
type MultiReceiver[T any] interface {
	Consumer
	MessagesField() *[]T
}

// Strategy is how a binding hands messages to its consumer.
type Strategy uint8

const (
	DirectSingle Strategy = iota + 1
	DirectMulti
	AliasedView
)

func (s Strategy) String() string {
	switch s {
	case DirectSingle:
		return "direct-single"
	case DirectMulti:
		return "direct-multi"
	case AliasedView:
		return "aliased-view"
	default:
		return "unknown"
	}
}

// Inbox gives an embedding consumer read-only access to the messages of the
// current tick. At and All return copies; the slice returned by Messages
// aliases bus storage shared with every consumer of T, must not be written
// to and is only valid during Update.
type Inbox[T any] struct {
	msgs []T
}

// Messages returns this tick's messages in reservation order.
func (in *Inbox[T]) Messages() []T { return in.msgs }

// Message returns the first message of the tick.
func (in *Inbox[T]) Message() (T, bool) {
	if len(in.msgs) == 0 {
		var zero T
		return zero, false
	}
	return in.msgs[0], true
}

// At returns a copy of message i.
func (in *Inbox[T]) At(i int) T { return in.msgs[i] }

// All yields copies of this tick's messages in reservation order.
func (in *Inbox[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, v := range in.msgs {
			if !yield(i, v) {
				return
			}
		}
	}
}

// Len is the number of messages this tick.
func (in *Inbox[T]) Len() int { return len(in.msgs) }

func (in *Inbox[T]) inbox() *Inbox[T] { return in }

func (in *Inbox[T]) inboxElem() reflect.Type { return reflect.TypeFor[T]() }

type inboxHolder[T any] interface {
	inbox() *Inbox[T]
}

type anyInbox interface {
	inboxElem() reflect.Type
}

// binder moves slot contents into consumer storage around one Update call.
type binder interface {
	bind(s *slots.Slot)
	release()
}

type singleBinder[T any] struct {
	dst *T
}

func (b *singleBinder[T]) bind(s *slots.Slot) {
	*b.dst = common.Load[T](s.Bytes())
}

func (b *singleBinder[T]) release() {}

// aliasBinder points a []T at the slot storage. The aliased base is only
// rebuilt when the slot generation moves, that is after a reallocation.
type aliasBinder[T any] struct {
	dst     *[]T
	base    []T
	lastGen uint64
	rebinds uint64
}

func (b *aliasBinder[T]) bind(s *slots.Slot) {
	if g := s.Generation(); g != b.lastGen {
		b.base = common.View[T](s.Storage(), s.Capacity())
		b.lastGen = g
		b.rebinds++
	}
	n := s.Count()
	*b.dst = b.base[:n:n]
}

func (b *aliasBinder[T]) release() {
	*b.dst = b.base[:0:0]
}

func (b *aliasBinder[T]) rebindCount() uint64 { return b.rebinds }
