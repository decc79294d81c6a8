// Package ring implements a pointer-arithmetic view over a contiguous,
// wrap-around byte region: the CircularBuffer primitive the wire and queue
// packages use for every access to a queue's ring body. The QueueHeader in
// front of the body is not reached through Buffer: wire addresses its fields
// from the region base pointer, and queue derives the body's base pointer by
// adding wire.QueueHeaderSize to it.
package ring

import (
	"fmt"
	"unsafe"
)

// Buffer is a thin, wrap-aware view over a fixed-capacity byte region
// addressed by a raw base pointer. It does not own the memory it points
// into — the caller (region.Region) is responsible for keeping the backing
// mapping alive for at least as long as the Buffer is used.
type Buffer struct {
	base     unsafe.Pointer
	capacity int64
}

// NewBuffer wraps base as a ring of the given capacity. capacity must be
// positive.
func NewBuffer(base unsafe.Pointer, capacity int64) *Buffer {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Buffer{base: base, capacity: capacity}
}

// Capacity returns the buffer's fixed size in bytes.
func (b *Buffer) Capacity() int64 {
	return b.capacity
}

func (b *Buffer) pos(offset int64) int64 {
	p := offset % b.capacity
	if p < 0 {
		p += b.capacity
	}
	return p
}

// Pointer returns a raw pointer at offset mod capacity. It is the escape
// hatch used by the wire package to perform atomic operations directly on
// header fields living in shared memory.
func (b *Buffer) Pointer(offset int64) unsafe.Pointer {
	return unsafe.Add(b.base, b.pos(offset))
}

// GetWrappedSpan returns the pair of contiguous spans covering
// [offset, offset+length) with wrap. It panics if length exceeds capacity.
func (b *Buffer) GetWrappedSpan(offset int64, length int64) WrappedSpan {
	if length < 0 {
		panic("ring: negative length")
	}
	if length > b.capacity {
		panic(fmt.Sprintf("ring: span length %d exceeds capacity %d", length, b.capacity))
	}
	if length == 0 {
		return WrappedSpan{}
	}

	p := b.pos(offset)
	rightLen := min(b.capacity-p, length)
	leftLen := length - rightLen

	right := unsafe.Slice((*byte)(unsafe.Add(b.base, p)), rightLen)
	if leftLen == 0 {
		return WrappedSpan{First: right}
	}
	left := unsafe.Slice((*byte)(b.base), leftLen)
	return WrappedSpan{First: right, Second: left}
}

// Read copies up to length bytes starting at offset into dest, handling
// wrap. A nil dest gets a freshly allocated length-byte slice; a non-nil
// dest shorter than length truncates the read to dest's own size rather
// than growing it, mirroring an io.Reader-shaped destination buffer.
func (b *Buffer) Read(offset int64, length int64, dest []byte) []byte {
	if length == 0 {
		return dest[:0]
	}
	n := length
	if dest != nil {
		if int64(len(dest)) < n {
			n = int64(len(dest))
		}
		dest = dest[:n]
	} else {
		dest = make([]byte, n)
	}
	b.GetWrappedSpan(offset, n).TryRead(dest)
	return dest
}

// Write copies source into the ring starting at offset, handling wrap.
func (b *Buffer) Write(source []byte, offset int64) {
	if len(source) == 0 {
		return
	}
	b.GetWrappedSpan(offset, int64(len(source))).TryWrite(source)
}

// Clear zeroes length bytes starting at offset, handling wrap.
func (b *Buffer) Clear(offset int64, length int64) {
	if length == 0 {
		return
	}
	span := b.GetWrappedSpan(offset, length)
	clear(span.First)
	clear(span.Second)
}
