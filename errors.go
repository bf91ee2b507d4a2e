package tickbus

import (
	"errors"
	"fmt"

	"github.com/rawbytedev/tickbus/pkg/appendbuf"
	"github.com/rawbytedev/tickbus/pkg/slots"
)

var (
	// ErrUnregisteredMessageType is returned by Drain when a frame carries a
	// type hash that no consumer registered for.
	ErrUnregisteredMessageType = errors.New("unregistered message type")

	// ErrBindingMismatch is returned by Register when the consumer's storage
	// does not match its declared message type.
	ErrBindingMismatch = errors.New("consumer binding mismatch")

	// ErrNotPlainData is returned for message types that cannot be copied
	// byte for byte.
	ErrNotPlainData = errors.New("message type is not plain data")

	// ErrTooLarge is returned by SendRange for ranges a frame cannot count.
	ErrTooLarge = errors.New("message range too large")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid config")

	ErrCapacityExceeded = appendbuf.ErrCapacityExceeded
	ErrHashCollision    = slots.ErrHashCollision
	ErrSealed           = slots.ErrSealed
)

// UnregisteredTypeError describes the frame that aborted a drain.
type UnregisteredTypeError struct {
	Tick   uint64
	Hash   uint32
	Offset int
}

func (e *UnregisteredTypeError) Error() string {
	return fmt.Sprintf("tick %d: frame at offset %d: type hash %#08x: %s",
		e.Tick, e.Offset, e.Hash, ErrUnregisteredMessageType)
}

func (e *UnregisteredTypeError) Unwrap() error { return ErrUnregisteredMessageType }

// ConsumerError wraps an error returned by a consumer's Update.
type ConsumerError struct {
	Consumer string
	Err      error
}

func (e *ConsumerError) Error() string {
	return fmt.Sprintf("consumer %s: %v", e.Consumer, e.Err)
}

func (e *ConsumerError) Unwrap() error { return e.Err }
