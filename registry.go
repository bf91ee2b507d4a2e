package tickbus

import (
	"context"
	"fmt"
	"reflect"

	"github.com/rawbytedev/tickbus/pkg/slots"
)

type binding struct {
	name     string
	typeName string
	strategy Strategy
	slot     *slots.Slot
	consumer Consumer
	binder   binder
}

// run binds the slot, calls Update and releases the view even if Update
// panics.
func (bd *binding) run(ctx context.Context) error {
	bd.binder.bind(bd.slot)
	defer bd.binder.release()
	return bd.consumer.Update(ctx)
}

// BindingInfo describes one registered consumer.
type BindingInfo struct {
	Name     string
	TypeName string
	Hash     uint32
	Strategy Strategy
	// Rebinds counts how often an aliased view was rebuilt after the slot
	// storage moved. Always zero for DirectSingle.
	Rebinds uint64
}

// Register binds c to messages of type T. Consumers are dispatched in
// registration order. Registration must finish before the first Drain.
func Register[T any](b *Bus, name string, c Consumer) error {
	if c == nil {
		return fmt.Errorf("register %s: %w: nil consumer", name, ErrBindingMismatch)
	}
	if b.table.Sealed() {
		return fmt.Errorf("register %s: %w", name, ErrSealed)
	}
	ti := infoFor[T]()
	if ti.err != nil {
		return fmt.Errorf("register %s: %w", name, ti.err)
	}
	strategy, bd, err := binderFor[T](c)
	if err != nil {
		return fmt.Errorf("register %s for %s: %w", name, ti.name, err)
	}
	slot, err := b.table.GetOrCreate(ti.hash, ti.size, ti.name)
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	b.bindings = append(b.bindings, &binding{
		name:     name,
		typeName: ti.name,
		strategy: strategy,
		slot:     slot,
		consumer: c,
		binder:   bd,
	})
	b.log.Debug("tickbus: consumer registered",
		"consumer", name,
		"type", ti.name,
		"hash", fmt.Sprintf("%#08x", ti.hash),
		"strategy", strategy.String(),
		"order", len(b.bindings)-1,
	)
	return nil
}

// binderFor picks the strategy from the storage c exposes for T. Exactly one
// kind of storage is allowed.
func binderFor[T any](c Consumer) (Strategy, binder, error) {
	var (
		found    []Strategy
		strategy Strategy
		bd       binder
	)
	if r, ok := c.(SingleReceiver[T]); ok {
		found = append(found, DirectSingle)
		strategy, bd = DirectSingle, &singleBinder[T]{dst: r.MessageField()}
	}
	if r, ok := c.(MultiReceiver[T]); ok {
		found = append(found, DirectMulti)
		strategy, bd = DirectMulti, &aliasBinder[T]{dst: r.MessagesField()}
	}
	if r, ok := c.(inboxHolder[T]); ok {
		found = append(found, AliasedView)
		strategy, bd = AliasedView, &aliasBinder[T]{dst: &r.inbox().msgs}
	}
	switch len(found) {
	case 1:
		if d, ok := bd.(*singleBinder[T]); ok && d.dst == nil {
			return 0, nil, fmt.Errorf("%w: MessageField returned nil", ErrBindingMismatch)
		}
		if d, ok := bd.(*aliasBinder[T]); ok && d.dst == nil {
			return 0, nil, fmt.Errorf("%w: MessagesField returned nil", ErrBindingMismatch)
		}
		return strategy, bd, nil
	case 0:
		return 0, nil, fmt.Errorf("%w: %s", ErrBindingMismatch, describeStorage(c))
	default:
		return 0, nil, fmt.Errorf("%w: ambiguous storage %v", ErrBindingMismatch, found)
	}
}

// describeStorage explains why c exposes no storage for the declared type.
func describeStorage(c Consumer) string {
	t := reflect.TypeOf(c)
	for _, name := range []string{"MessageField", "MessagesField"} {
		if m, ok := t.MethodByName(name); ok && m.Type.NumOut() == 1 {
			return fmt.Sprintf("%s.%s returns %s", t, name, m.Type.Out(0))
		}
	}
	if in, ok := c.(anyInbox); ok {
		return fmt.Sprintf("%s embeds an inbox of %s", t, in.inboxElem())
	}
	return fmt.Sprintf("%s exposes no message storage", t)
}

// Bindings returns the registered consumers in dispatch order.
func (b *Bus) Bindings() []BindingInfo {
	out := make([]BindingInfo, 0, len(b.bindings))
	for _, bd := range b.bindings {
		info := BindingInfo{
			Name:     bd.name,
			TypeName: bd.typeName,
			Hash:     bd.slot.Hash,
			Strategy: bd.strategy,
		}
		if rc, ok := bd.binder.(interface{ rebindCount() uint64 }); ok {
			info.Rebinds = rc.rebindCount()
		}
		out = append(out, info)
	}
	return out
}
