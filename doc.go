// Package tickbus is a per-tick, type-erased message bus for real-time
// simulation loops.
//
// Producers running in parallel encode fixed-size plain-data messages into
// one shared append-only buffer. Once per tick, after the host has made sure
// every producer is done, Drain decodes the buffer, sorts the frames into one
// staging slot per message type and hands every registered consumer a
// zero-copy view of its messages. All buffers are then reset for the next
// tick.
//
// # Basic Usage
//
//	bus, err := tickbus.New(tickbus.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//
//	// Registration happens once, before the first tick, in dispatch order.
//	if err := tickbus.Register[Point](bus, "renderer", renderer); err != nil {
//	    return err
//	}
//
//	// Write phase: any number of goroutines.
//	m := bus.Messenger()
//	_ = tickbus.Send(m, Point{X: 1, Y: 2})
//
//	// Tick boundary: exactly one goroutine, after all writers returned.
//	if err := bus.Drain(ctx); err != nil {
//	    return err
//	}
//
// # Consumers
//
// A consumer declares the message type it consumes through the type argument
// of Register and exposes its storage in one of three ways:
//
//   - MessageField() *T   : DirectSingle, the first message of the tick is copied in.
//   - MessagesField() *[]T: DirectMulti, the field aliases the slot storage.
//   - embedding Inbox[T]  : AliasedView, read through At/All/Message/Len.
//
// Aliased views are only valid inside the consumer's Update call. They are
// truncated to length zero as soon as Update returns and must not be retained.
// Every consumer of a type sees the same slot storage, so views must not be
// written to.
//
// # Thread Safety
//
// Send, SendRange and AppendFrames are safe for concurrent use. Register,
// Seal and Drain must be called from a single goroutine and never while a
// producer is writing. The bus relies on the host's tick barrier and uses no
// locks on the write path.
package tickbus
