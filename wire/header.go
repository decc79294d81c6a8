// Package wire defines the fixed on-disk layout shared by every process
// mapping a queue's region: the QueueHeader at the front of the region, the
// MessageHeader at the front of every slot, the slot state machine, and the
// alignment arithmetic that ties them together. Every multi-byte integer is
// native-endian; the design is intra-host only (see spec.md §6).
package wire

import (
	"sync/atomic"
	"unsafe"

	"github.com/vectorway/shmq/ring"
)

// State is a slot's position in the lifecycle described in spec.md §3.
type State int32

const (
	// Vacant means the slot holds no message and is available to a
	// publisher.
	Vacant State = iota
	// ReadyToBeConsumed means the publisher has fully committed a message
	// body and header.
	ReadyToBeConsumed
	// LockedToBeConsumed means exactly one subscriber currently owns the
	// slot.
	LockedToBeConsumed
	// Aborted means the publisher's writer function declined to write a
	// body; the slot still occupies ring space and must be reaped.
	Aborted
)

func (s State) String() string {
	switch s {
	case Vacant:
		return "vacant"
	case ReadyToBeConsumed:
		return "ready"
	case LockedToBeConsumed:
		return "locked"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

const (
	// QueueHeaderSize is the size in bytes of the fixed prefix at the
	// start of every region: HeadOffset (int64) followed by TailOffset
	// (int64).
	QueueHeaderSize = 16

	// MessageHeaderSize is the size in bytes of the fixed prefix at the
	// start of every slot: State (int32), padding (int32), BodyLength
	// (int32), padding (int32) — spec.md §3's 16-byte layout exactly.
	MessageHeaderSize = 16

	offsetState      = 0
	offsetBodyLength = 8
)

// Align8 rounds n up to the next multiple of 8.
func Align8(n int64) int64 {
	return (n + 7) &^ 7
}

// SlotSize returns the total aligned size of a slot (header + body +
// padding) holding a body of the given length.
func SlotSize(bodyLength int32) int64 {
	return Align8(int64(MessageHeaderSize) + int64(bodyLength))
}

// LoadHead atomically loads HeadOffset from the start of a region.
func LoadHead(regionBase unsafe.Pointer) int64 {
	return atomic.LoadInt64((*int64)(regionBase))
}

// LoadTail atomically loads TailOffset from the start of a region.
func LoadTail(regionBase unsafe.Pointer) int64 {
	return atomic.LoadInt64((*int64)(unsafe.Add(regionBase, 8)))
}

// CASHead attempts to advance HeadOffset from old to new.
func CASHead(regionBase unsafe.Pointer, old, new int64) bool {
	return atomic.CompareAndSwapInt64((*int64)(regionBase), old, new)
}

// CASTail attempts to advance TailOffset from old to new.
func CASTail(regionBase unsafe.Pointer, old, new int64) bool {
	return atomic.CompareAndSwapInt64((*int64)(unsafe.Add(regionBase, 8)), old, new)
}

// LoadState atomically loads the State field of the slot whose header
// starts at slotOffset (an absolute, unbounded counter value; buf reduces it
// modulo the body's capacity). Because every slot starts at an offset that
// is a multiple of 8, and the body capacity is itself a multiple of 8, no
// individual header field ever straddles the ring's wrap point.
func LoadState(buf *ring.Buffer, slotOffset int64) State {
	return State(atomic.LoadInt32((*int32)(buf.Pointer(slotOffset + offsetState))))
}

// CASState attempts to transition the slot's State from old to new.
func CASState(buf *ring.Buffer, slotOffset int64, old, new State) bool {
	ptr := (*int32)(buf.Pointer(slotOffset + offsetState))
	return atomic.CompareAndSwapInt32(ptr, int32(old), int32(new))
}

// StoreState atomically sets the slot's State. Used only by the publisher
// when committing a brand new slot, where there is no prior reader to race
// against a CAS.
func StoreState(buf *ring.Buffer, slotOffset int64, v State) {
	atomic.StoreInt32((*int32)(buf.Pointer(slotOffset+offsetState)), int32(v))
}

// LoadBodyLength atomically loads the BodyLength field.
func LoadBodyLength(buf *ring.Buffer, slotOffset int64) int32 {
	return atomic.LoadInt32((*int32)(buf.Pointer(slotOffset + offsetBodyLength)))
}

// StoreBodyLength atomically stores the BodyLength field.
func StoreBodyLength(buf *ring.Buffer, slotOffset int64, v int32) {
	atomic.StoreInt32((*int32)(buf.Pointer(slotOffset+offsetBodyLength)), v)
}
