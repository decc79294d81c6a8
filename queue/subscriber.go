package queue

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/go-multierror"

	"github.com/vectorway/shmq/internal/shmqerr"
	"github.com/vectorway/shmq/region"
	"github.com/vectorway/shmq/ring"
	"github.com/vectorway/shmq/wire"
	"github.com/vectorway/shmq/xsignal"
)

// ReaderFunc consumes a locked slot's body in place. It returns true to
// commit the dequeue (the slot is zeroed and the head advances) or false to
// roll the slot back to ReadyToBeConsumed for another subscriber.
type ReaderFunc func(ctx context.Context, span ring.WrappedSpan) bool

// Stats tracks reap activity alongside successful dequeues, mirroring the
// RPktRead/WPktLost-shaped counters other_examples/gregbostrom-shmx exposes
// from its ring buffer. It does not affect protocol correctness.
type Stats struct {
	// Dequeued counts slots delivered to a caller.
	Dequeued uint64
	// Reaped counts Aborted slots this Subscriber recovered and skipped
	// (spec.md §9's "silently reaped" path).
	Reaped uint64
}

// Subscriber is one consumer of a queue: it locks the head slot by CAS on
// slot state, drains or recovers it, advances the head, and sleeps on the
// coupling Signal when the queue is empty (spec.md §4.6).
type Subscriber struct {
	name   string
	region *region.Region
	signal *xsignal.Signal
	buf    *ring.Buffer
	base   unsafe.Pointer
	body   int64

	cancel context.CancelFunc
	local  context.Context

	dequeued atomic.Uint64
	reaped   atomic.Uint64
}

// yieldAttempts is how many times the blocking variants spin with a plain
// scheduler yield before falling back to timed Signal.Wait, per spec.md
// §4.6 "a cooperative thread yield for a few iterations".
const yieldAttempts = 4

// NewSubscriber opens (creating if absent) the named queue and its
// coupling signal, returning a Subscriber ready to dequeue.
func NewSubscriber(opts Options) (*Subscriber, error) {
	if err := opts.validate("queue.NewSubscriber"); err != nil {
		return nil, err
	}
	reg, err := region.Open(opts.regionConfig())
	if err != nil {
		return nil, err
	}
	sig, err := xsignal.Open(xsignal.Config{Name: couplingName(opts.Name), DeleteOnDispose: opts.DeleteOnDispose})
	if err != nil {
		_ = reg.Close()
		return nil, err
	}
	body := reg.Capacity() - wire.QueueHeaderSize
	buf := ring.NewBuffer(unsafe.Add(reg.Base(), wire.QueueHeaderSize), body)
	local, cancel := context.WithCancel(context.Background())
	return &Subscriber{
		name: opts.Name, region: reg, signal: sig, buf: buf, base: reg.Base(), body: body,
		local: local, cancel: cancel,
	}, nil
}

// Name returns the queue name this Subscriber addresses.
func (s *Subscriber) Name() string { return s.name }

// Stats returns a snapshot of this Subscriber's delivered/reaped counters.
func (s *Subscriber) Stats() Stats {
	return Stats{Dequeued: s.dequeued.Load(), Reaped: s.reaped.Load()}
}

// TryDequeueInplace implements the non-blocking core of spec.md §4.6's
// 8-step algorithm, handing the caller's reader the slot's body in place.
func (s *Subscriber) TryDequeueInplace(ctx context.Context, read ReaderFunc) (bool, error) {
	if err := s.checkCancelled(ctx); err != nil {
		return false, err
	}

	for {
		head := wire.LoadHead(s.base)
		tail := wire.LoadTail(s.base)
		if head == tail {
			return false, nil
		}

		observed := wire.LoadState(s.buf, head)
		switch observed {
		case wire.ReadyToBeConsumed:
			if !wire.CASState(s.buf, head, wire.ReadyToBeConsumed, wire.LockedToBeConsumed) {
				return false, nil // another subscriber won the race
			}
		case wire.Aborted:
			if !wire.CASState(s.buf, head, wire.Aborted, wire.LockedToBeConsumed) {
				return false, nil // another subscriber already reaping it
			}
			s.reap(head)
			continue // this slot carried no message; look at the new head
		default:
			return false, nil // not ready yet, or already locked by someone else
		}

		if wire.LoadHead(s.base) != head {
			// Another subscriber advanced the head while we were locking;
			// give the slot back and report empty (spec.md §4.6 step 5).
			wire.CASState(s.buf, head, wire.LockedToBeConsumed, wire.ReadyToBeConsumed)
			return false, nil
		}

		bodyLength := wire.LoadBodyLength(s.buf, head)
		bodyOffset := head + wire.MessageHeaderSize
		span := s.buf.GetWrappedSpan(bodyOffset, int64(bodyLength))

		if !read(ctx, span) {
			wire.CASState(s.buf, head, wire.LockedToBeConsumed, wire.ReadyToBeConsumed)
			return false, nil
		}

		s.retire(head, bodyOffset, bodyLength)
		s.dequeued.Add(1)
		return true, nil
	}
}

// reap recovers an Aborted slot: its body is garbage, so it is discarded
// without ever reaching a ReaderFunc (spec.md §4.6 step 4's Aborted branch,
// jumping straight to step 7).
func (s *Subscriber) reap(head int64) {
	bodyLength := wire.LoadBodyLength(s.buf, head)
	s.retire(head, head+wire.MessageHeaderSize, bodyLength)
	s.reaped.Add(1)
}

// retire zeroes a locked slot's body and header and advances HeadOffset
// past it. The head CAS must succeed — spec.md §4.6 step 7 treats its
// failure as proof that the single-consumer-per-slot invariant broke.
func (s *Subscriber) retire(head, bodyOffset int64, bodyLength int32) {
	s.buf.Clear(bodyOffset, int64(bodyLength))
	s.buf.Clear(head, wire.MessageHeaderSize)

	newHead := head + wire.SlotSize(bodyLength)
	if !wire.CASHead(s.base, head, newHead) {
		panic(shmqerr.New(shmqerr.InternalBug, "queue.Subscriber.retire",
			fmt.Errorf("head CAS failed after exclusive slot lock at offset %d", head)))
	}
}

// TryDequeue is the non-blocking copying variant of TryDequeueInplace: it
// copies the body into dest (or a freshly allocated slice), truncating to
// dest's size if it is supplied and shorter than the body.
func (s *Subscriber) TryDequeue(ctx context.Context, dest []byte) (bool, []byte, error) {
	var out []byte
	ok, err := s.TryDequeueInplace(ctx, func(_ context.Context, span ring.WrappedSpan) bool {
		n := span.Len()
		if dest != nil && len(dest) < n {
			n = len(dest)
		}
		if dest != nil {
			out = dest[:n]
		} else {
			out = make([]byte, n)
		}
		span.Slice(0, n).TryRead(out)
		return true
	})
	if err != nil || !ok {
		return ok, nil, err
	}
	return true, out, nil
}

// DequeueInplace blocks until TryDequeueInplace succeeds or ctx (or this
// Subscriber's own disposal) is cancelled. It backs off on an empty queue
// with spec.md §4.6's adaptive ladder: a few cooperative yields, then
// Signal.Wait with an interval growing from 1ms to 10ms.
func (s *Subscriber) DequeueInplace(ctx context.Context, read ReaderFunc) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Millisecond
	bo.MaxInterval = 10 * time.Millisecond
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.Reset()

	attempt := 0
	for {
		if err := s.checkCancelled(ctx); err != nil {
			return err
		}

		ok, err := s.TryDequeueInplace(ctx, read)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		attempt++
		if attempt <= yieldAttempts {
			runtime.Gosched()
			continue
		}

		woke, err := s.signal.Wait(int(bo.NextBackOff() / time.Millisecond))
		if err != nil {
			return err
		}
		if woke {
			bo.Reset()
			attempt = 0
		}
	}
}

// Dequeue is the blocking copying variant of DequeueInplace.
func (s *Subscriber) Dequeue(ctx context.Context, dest []byte) ([]byte, error) {
	var out []byte
	err := s.DequeueInplace(ctx, func(_ context.Context, span ring.WrappedSpan) bool {
		n := span.Len()
		if dest != nil && len(dest) < n {
			n = len(dest)
		}
		if dest != nil {
			out = dest[:n]
		} else {
			out = make([]byte, n)
		}
		span.Slice(0, n).TryRead(out)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Subscriber) checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return shmqerr.New(shmqerr.Cancelled, "queue.Subscriber", ctx.Err())
	case <-s.local.Done():
		return shmqerr.New(shmqerr.Cancelled, "queue.Subscriber", s.local.Err())
	default:
		return nil
	}
}

// Close fires this Subscriber's local cancellation source (unblocking any
// in-flight blocking call) and releases the region mapping and semaphore
// handle.
func (s *Subscriber) Close() error {
	s.cancel()
	var result *multierror.Error
	if err := s.signal.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.region.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
