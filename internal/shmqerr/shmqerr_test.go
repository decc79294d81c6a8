package shmqerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	e := New(QueueFull, "queue.TryEnqueue", nil)
	assert.Equal(t, "queue.TryEnqueue: queue_full", e.Error())

	wrapped := New(PlatformDenied, "region.Open", fmt.Errorf("boom"))
	assert.Equal(t, "region.Open: platform_denied: boom", wrapped.Error())
}

func TestIsWalksWrapChain(t *testing.T) {
	inner := New(NotFound, "region.Unlink", errors.New("enoent"))
	outer := fmt.Errorf("teardown failed: %w", inner)

	assert.True(t, Is(outer, NotFound))
	assert.False(t, Is(outer, Unauthorized))
	assert.False(t, Is(errors.New("plain"), NotFound))
}

func TestFatalKinds(t *testing.T) {
	assert.True(t, InternalBug.Fatal())
	assert.True(t, UnrecoverableWrite.Fatal())
	assert.False(t, QueueFull.Fatal())
	assert.False(t, Cancelled.Fatal())
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("root cause")
	e := New(PlatformDenied, "op", inner)
	assert.Equal(t, inner, errors.Unwrap(e))
}
