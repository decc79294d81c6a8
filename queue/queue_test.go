package queue

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorway/shmq/region"
	"github.com/vectorway/shmq/ring"
	"github.com/vectorway/shmq/wire"
	"github.com/vectorway/shmq/xsignal"
)

var testNameSeq atomic.Uint64

func testOptions(t *testing.T, capacity uint64) Options {
	t.Helper()
	name := fmt.Sprintf("q%d%d", time.Now().UnixNano()%1_000_000, testNameSeq.Add(1))
	opts := Options{Name: name, Dir: t.TempDir(), BytesCapacity: datasize.ByteSize(capacity)}
	t.Cleanup(func() {
		_ = region.Unlink(opts.regionConfig())
		_ = xsignal.Unlink(couplingName(opts.Name))
	})
	return opts
}

func openPair(t *testing.T, opts Options) (*Publisher, *Subscriber) {
	t.Helper()
	pub, err := NewPublisher(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	sub, err := NewSubscriber(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	return pub, sub
}

func TestPublishAndDequeueRoundTrip(t *testing.T) {
	pub, sub := openPair(t, testOptions(t, 256))

	ok, err := pub.TryEnqueue([]byte("hello"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, got, err := sub.TryDequeue(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), got)
}

func TestTryDequeueTruncatesToShortDest(t *testing.T) {
	pub, sub := openPair(t, testOptions(t, 256))

	require.NoError(t, publishOK(t, pub, []byte("hello world")))

	dest := make([]byte, 5)
	ok, got, err := sub.TryDequeue(context.Background(), dest)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), got)
}

func TestTryDequeueOnEmptyQueueReturnsFalse(t *testing.T) {
	_, sub := openPair(t, testOptions(t, 256))

	ok, got, err := sub.TryDequeue(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestTryEnqueueReturnsFalseWhenQueueIsFull(t *testing.T) {
	// One slot's worth of body capacity (header-aligned), nothing more.
	pub, _ := openPair(t, testOptions(t, uint64(wire.QueueHeaderSize+wire.MessageHeaderSize+8)))

	require.NoError(t, publishOK(t, pub, []byte("12345678")))

	ok, err := pub.TryEnqueue([]byte("x"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReserveNeverInvokesWriterWhenFull(t *testing.T) {
	pub, _ := openPair(t, testOptions(t, uint64(wire.QueueHeaderSize+wire.MessageHeaderSize+8)))
	require.NoError(t, publishOK(t, pub, []byte("12345678")))

	var invoked atomic.Bool
	ok, err := pub.TryEnqueueReserve(context.Background(), 8, func(_ context.Context, span ring.WrappedSpan) int32 {
		invoked.Store(true)
		return 8
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, invoked.Load(), "writer must never be invoked when there is no room")
}

func TestAbortedSlotIsReapedAndSkipped(t *testing.T) {
	pub, sub := openPair(t, testOptions(t, 512))

	ok, err := pub.TryEnqueueReserve(context.Background(), 4, func(_ context.Context, span ring.WrappedSpan) int32 {
		return 0 // abort: declines to write a body
	})
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, publishOK(t, pub, []byte("real")))

	ok, got, err := sub.TryDequeue(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("real"), got)

	stats := sub.Stats()
	assert.EqualValues(t, 1, stats.Reaped)
	assert.EqualValues(t, 1, stats.Dequeued)
}

func TestWrapAroundRoundTrip(t *testing.T) {
	capacity := uint64(wire.QueueHeaderSize + 4*(wire.MessageHeaderSize+8))
	pub, sub := openPair(t, testOptions(t, capacity))

	// Fill and drain repeatedly so the tail/head counters cross the ring's
	// physical wrap point many times over.
	for round := 0; round < 50; round++ {
		body := []byte(fmt.Sprintf("r%03d-ab", round%1000))
		require.NoError(t, publishOK(t, pub, body))

		ok, got, err := sub.TryDequeue(context.Background(), nil)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, body, got)
	}
}

func TestHighVolumeWrapRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping high-volume wrap test in short mode")
	}
	capacity := uint64(wire.QueueHeaderSize + 8*(wire.MessageHeaderSize+wire.Align8(66)))
	pub, sub := openPair(t, testOptions(t, capacity))

	const iterations = 20000
	body := make([]byte, 66)
	for i := range body {
		body[i] = byte(i)
	}

	for i := 0; i < iterations; i++ {
		require.NoError(t, publishOK(t, pub, body))
		ok, got, err := sub.TryDequeue(context.Background(), nil)
		require.NoError(t, err)
		require.True(t, ok, "iteration %d", i)
		assert.Equal(t, body, got)
	}
}

func TestDequeueBlocksUntilPublished(t *testing.T) {
	pub, sub := openPair(t, testOptions(t, 256))

	var got []byte
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var err error
		got, err = sub.Dequeue(context.Background(), nil)
		assert.NoError(t, err)
	}()

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, publishOK(t, pub, []byte("delayed")))

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
		assert.Equal(t, []byte("delayed"), got)
	case <-time.After(2 * time.Second):
		t.Fatal("Dequeue never unblocked after publish")
	}
}

func TestDequeueRespectsContextCancellation(t *testing.T) {
	_, sub := openPair(t, testOptions(t, 256))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := sub.Dequeue(ctx, nil)
	require.Error(t, err)
}

func TestCloseUnblocksInFlightDequeue(t *testing.T) {
	_, sub := openPair(t, testOptions(t, 256))

	errCh := make(chan error, 1)
	go func() {
		_, err := sub.Dequeue(context.Background(), nil)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, sub.Close())

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Dequeue never unblocked after Close")
	}
}

func TestFreshSubscriberAfterFullDrainSeesEmpty(t *testing.T) {
	opts := testOptions(t, 256)
	pub, sub := openPair(t, opts)

	require.NoError(t, publishOK(t, pub, []byte("only")))
	ok, _, err := sub.TryDequeue(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, ok)

	sub2, err := NewSubscriber(opts)
	require.NoError(t, err)
	defer sub2.Close()

	ok, got, err := sub2.TryDequeue(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestMultipleSubscribersEachMessageDeliveredOnce(t *testing.T) {
	capacity := uint64(wire.QueueHeaderSize + 64*(wire.MessageHeaderSize+8))
	opts := testOptions(t, capacity)
	pub, err := NewPublisher(opts)
	require.NoError(t, err)
	defer pub.Close()

	const nMessages = 40
	const nSubscribers = 4

	for i := 0; i < nMessages; i++ {
		require.NoError(t, publishOK(t, pub, []byte(fmt.Sprintf("msg-%03d", i))))
	}

	subs := make([]*Subscriber, nSubscribers)
	for i := range subs {
		s, err := NewSubscriber(opts)
		require.NoError(t, err)
		defer s.Close()
		subs[i] = s
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var consumed atomic.Int64
	var wg sync.WaitGroup
	for _, s := range subs {
		wg.Add(1)
		go func(s *Subscriber) {
			defer wg.Done()
			// TryDequeue returning false can mean either "empty" or "lost a
			// CAS race to a sibling subscriber" — it retries rather than
			// exiting on the first false so a transient race doesn't cut a
			// subscriber off from messages a sibling hasn't reached yet.
			for consumed.Load() < nMessages {
				ok, got, err := s.TryDequeue(context.Background(), nil)
				assert.NoError(t, err)
				if !ok {
					runtime.Gosched()
					continue
				}
				mu.Lock()
				seen[string(got)]++
				mu.Unlock()
				consumed.Add(1)
			}
		}(s)
	}
	wg.Wait()

	want := make(map[string]int, nMessages)
	for i := 0; i < nMessages; i++ {
		want[fmt.Sprintf("msg-%03d", i)] = 1
	}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("delivered multiset mismatch (-want +got):\n%s", diff)
	}
}

func TestHeadNeverExceedsTail(t *testing.T) {
	capacity := uint64(wire.QueueHeaderSize + 8*(wire.MessageHeaderSize+8))
	pub, sub := openPair(t, testOptions(t, capacity))

	for i := 0; i < 200; i++ {
		_, _ = pub.TryEnqueue([]byte("abcdefgh"))
		_, _, _ = sub.TryDequeue(context.Background(), nil)
		require.LessOrEqual(t, wire.LoadHead(pub.base), wire.LoadTail(pub.base), "cycle %d", i)
	}
}

func publishOK(t *testing.T, pub *Publisher, body []byte) error {
	t.Helper()
	ok, err := pub.TryEnqueue(body)
	if err != nil {
		return err
	}
	if !ok {
		t.Fatalf("TryEnqueue(%q) unexpectedly reported full", body)
	}
	return nil
}
