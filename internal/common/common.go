package common

import (
	"errors"
	"fmt"
	"reflect"
	"unsafe"
)

// ErrNotPlain is returned for types whose memory holds pointers or has no
// fixed layout, so it cannot be copied byte for byte.
var ErrNotPlain = errors.New("not plain data")

// IsPlainKind reports whether k is a fixed-size primitive kind without pointers.
func IsPlainKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return true
	default:
		return false
	}
}

// CheckPlain walks t and reports the first part of it that is not plain data.
func CheckPlain(t reflect.Type) error {
	switch k := t.Kind(); {
	case IsPlainKind(k):
		return nil
	case k == reflect.Array:
		if err := CheckPlain(t.Elem()); err != nil {
			return fmt.Errorf("%s: %w", t, err)
		}
		return nil
	case k == reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if err := CheckPlain(sf.Type); err != nil {
				return fmt.Errorf("field %s: %w", sf.Name, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("%s (%s): %w", t, k, ErrNotPlain)
	}
}

// TypeName returns the package-qualified name of t, or its literal form for
// unnamed types.
func TypeName(t reflect.Type) string {
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// SizeOf returns the array stride of T in bytes.
func SizeOf[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// BytesOf aliases the memory of *v as a byte slice without copying.
func BytesOf[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

// SliceBytes aliases the backing array of vs as a byte slice without copying.
func SliceBytes[T any](vs []T) []byte {
	if len(vs) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(vs))), len(vs)*SizeOf[T]())
}

// View aliases the first n elements of b as a []T. b must hold at least
// n*SizeOf[T]() bytes and satisfy the alignment of T; see Aligned.
func View[T any](b []byte, n int) []T {
	if n == 0 || len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// Aligned reports whether the first byte of b satisfies the alignment of T.
func Aligned[T any](b []byte) bool {
	var zero T
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))%unsafe.Alignof(zero) == 0
}

// Load copies the first SizeOf[T]() bytes of b into a new T.
func Load[T any](b []byte) T {
	var v T
	copy(BytesOf(&v), b)
	return v
}

// WordBytes aliases a word slice as bytes. Word storage keeps the byte view
// 8-byte aligned so any plain-data type can be viewed on top of it.
func WordBytes(w []uint64) []byte {
	if len(w) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(w))), len(w)*8)
}
