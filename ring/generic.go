package ring

import "unsafe"

// WriteValue writes the raw bytes of a plain-old-data value v into the ring
// at offset, handling wrap. T must not contain pointers or interfaces.
func WriteValue[T any](b *Buffer, v T, offset int64) {
	size := int64(unsafe.Sizeof(v))
	src := unsafe.Slice((*byte)(unsafe.Pointer(&v)), size)
	b.Write(src, offset)
}

// ReadValue is the inverse of WriteValue.
func ReadValue[T any](b *Buffer, offset int64) T {
	var v T
	size := int64(unsafe.Sizeof(v))
	dst := unsafe.Slice((*byte)(unsafe.Pointer(&v)), size)
	b.GetWrappedSpan(offset, size).TryRead(dst)
	return v
}
