package queue

import (
	"context"
	"fmt"
	"math"
	"unsafe"

	"github.com/hashicorp/go-multierror"

	"github.com/vectorway/shmq/internal/shmqerr"
	"github.com/vectorway/shmq/region"
	"github.com/vectorway/shmq/ring"
	"github.com/vectorway/shmq/wire"
	"github.com/vectorway/shmq/xsignal"
)

// WriterFunc writes a reserved slot's body into span and returns the
// number of bytes actually written, which must equal len(span) (span.Len())
// for the message to commit; any other return — including a short write —
// aborts the message (spec.md §4.5 step 7). The caller must not retain span
// past return.
type WriterFunc func(ctx context.Context, span ring.WrappedSpan) int32

// Publisher is the single-producer side of a queue: it reserves space by
// CAS on TailOffset, writes the body, commits the slot header and signals
// waiters (spec.md §4.5).
type Publisher struct {
	name   string
	region *region.Region
	signal *xsignal.Signal
	buf    *ring.Buffer
	base   unsafe.Pointer
	body   int64
}

// NewPublisher opens (creating if absent) the named queue and its coupling
// signal, returning a Publisher ready to enqueue.
func NewPublisher(opts Options) (*Publisher, error) {
	if err := opts.validate("queue.NewPublisher"); err != nil {
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
	return &Publisher{name: opts.Name, region: reg, signal: sig, buf: buf, base: reg.Base(), body: body}, nil
}

// TryEnqueue copies body into a freshly reserved slot. It returns false,
// nil if there is not enough room — per spec.md §7, QueueFull is never
// raised as an error.
func (p *Publisher) TryEnqueue(body []byte) (bool, error) {
	if len(body) > math.MaxInt32 {
		return false, shmqerr.New(shmqerr.InvalidArgument, "queue.Publisher.TryEnqueue", fmt.Errorf("body of %d bytes exceeds int32", len(body)))
	}
	ok, err := p.TryEnqueueReserve(context.Background(), int32(len(body)), func(_ context.Context, span ring.WrappedSpan) int32 {
		span.TryWrite(body)
		return int32(len(body))
	})
	return ok, err
}

// TryEnqueueReserve implements the zero-copy reservation path: it reserves
// reserveBytes, hands the caller a WrappedSpan to write into, and commits
// the slot Ready or Aborted depending on what write returns. write is never
// invoked when there is no room (spec.md §8 scenario 5).
func (p *Publisher) TryEnqueueReserve(ctx context.Context, reserveBytes int32, write WriterFunc) (bool, error) {
	if reserveBytes < 0 {
		return false, shmqerr.New(shmqerr.InvalidArgument, "queue.Publisher.TryEnqueueReserve", fmt.Errorf("negative reserveBytes %d", reserveBytes))
	}
	slotSize := wire.SlotSize(reserveBytes)
	if slotSize > p.body {
		return false, nil
	}

	for {
		head := wire.LoadHead(p.base)
		tail := wire.LoadTail(p.base)
		if slotSize > p.body-(tail-head) {
			return false, nil
		}
		newTail := tail + slotSize
		if !wire.CASTail(p.base, tail, newTail) {
			continue // lost the race to another publisher; retry (spec.md §4.5 step 5)
		}

		// The slot [tail, newTail) is now exclusively ours.
		bodyOffset := tail + wire.MessageHeaderSize
		span := p.buf.GetWrappedSpan(bodyOffset, int64(reserveBytes))
		written := write(ctx, span)

		// The slot already occupies slotSize(reserveBytes) worth of ring
		// space from the tail-CAS above; a subscriber later reclaims
		// slotSize(BodyLength) of it (spec.md §4.6 step 7). The two must
		// agree, so anything other than writing the full reservation is
		// treated the same as an explicit abort: BodyLength is stamped
		// with reserveBytes either way, never with a smaller `written`.
		state, bodyLength := wire.ReadyToBeConsumed, reserveBytes
		if written != reserveBytes {
			state = wire.Aborted
		}
		wire.StoreBodyLength(p.buf, tail, bodyLength)
		wire.StoreState(p.buf, tail, state)

		if err := p.signal.Release(); err != nil {
			// spec.md §7: a failed release after a committed message
			// leaves the queue in a state other participants cannot
			// recover from. Fail-fast.
			panic(shmqerr.New(shmqerr.UnrecoverableWrite, "queue.Publisher.TryEnqueueReserve", err))
		}

		return state == wire.ReadyToBeConsumed, nil
	}
}

// Name returns the queue name this Publisher addresses.
func (p *Publisher) Name() string { return p.name }

// Close releases the region mapping and this handle's semaphore reference.
func (p *Publisher) Close() error {
	var result *multierror.Error
	if err := p.signal.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := p.region.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
