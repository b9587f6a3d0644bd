// Package unsafecast provides utilities for reinterpreting Arrow buffers as
// typed slices without copying.
package unsafecast

import "unsafe"

// Sizeof returns the size of T in bytes.
func Sizeof[T any]() uintptr {
	var zero T
	return unsafe.Sizeof(zero)
}

// Slice reinterprets a slice of one type as a slice of another type. Slice
// does not perform any type conversion or validation; it simply reinterprets
// the underlying memory.
//
// The length and capacity of the output slice are scaled according to the
// sizes of the From and To types.
func Slice[From, To any](in []From) []To {
	if cap(in) == 0 {
		return nil
	}

	var (
		fromSize = int(Sizeof[From]())
		toSize   = int(Sizeof[To]())

		toLen = len(in) * fromSize / toSize
		toCap = cap(in) * fromSize / toSize
	)

	outPointer := (*To)(unsafe.Pointer(unsafe.SliceData(in)))
	return unsafe.Slice(outPointer, toCap)[:toLen]
}

// Values returns the elements [offset, offset+length) of buf interpreted as a
// sequence of T. Values panics if buf is too short to hold them.
//
// Offset and length are measured in elements of T, matching the offset and
// length of an Arrow array's data.
func Values[T any](buf []byte, offset, length int) []T {
	size := int(Sizeof[T]())
	if need := (offset + length) * size; need > len(buf) {
		panic("unsafecast: buffer too short")
	}
	return Slice[byte, T](buf)[offset : offset+length]
}
