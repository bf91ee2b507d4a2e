package tickbus

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/rawbytedev/tickbus/internal/common"
)

// typeInfo is computed once per message type and cached for the run.
type typeInfo struct {
	hash uint32
	size int
	name string
	err  error
}

var typeCache sync.Map // reflect.Type -> *typeInfo

func infoFor[T any]() *typeInfo {
	t := reflect.TypeFor[T]()
	if v, ok := typeCache.Load(t); ok {
		return v.(*typeInfo)
	}
	ti := &typeInfo{
		name: common.TypeName(t),
		size: common.SizeOf[T](),
	}
	ti.hash = hashName(ti.name)
	if err := common.CheckPlain(t); err != nil {
		ti.err = fmt.Errorf("%w: %w", ErrNotPlainData, err)
	} else if ti.size == 0 {
		ti.err = fmt.Errorf("%w: %s is zero-sized", ErrNotPlainData, ti.name)
	}
	v, _ := typeCache.LoadOrStore(t, ti)
	return v.(*typeInfo)
}

// hashName folds the 64-bit xxhash of a type name into the 32 bits a frame
// header carries.
func hashName(name string) uint32 {
	h := xxhash.Sum64String(name)
	return uint32(h>>32) ^ uint32(h)
}

// TypeHash returns the frame type hash of T. It is stable for a given
// package path and type name.
func TypeHash[T any]() uint32 { return infoFor[T]().hash }

// TypeName returns the name T is registered and hashed under.
func TypeName[T any]() string { return infoFor[T]().name }

// TypeSize returns the element size of T as carried in frames.
func TypeSize[T any]() int { return infoFor[T]().size }
