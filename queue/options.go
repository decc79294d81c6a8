// Package queue implements the public surface spec.md §4.5-§4.7 and §6
// describe: Publisher, Subscriber, Channel and the factory that constructs
// them, wired on top of region (the mapped bytes), wire (the header
// layout) and xsignal (the wake-up hint).
package queue

import (
	"fmt"
	"strings"

	"github.com/c2h5oh/datasize"

	"github.com/vectorway/shmq/internal/shmqerr"
	"github.com/vectorway/shmq/region"
	"github.com/vectorway/shmq/wire"
)

// Options configures one queue endpoint: the region it maps and the
// semaphore it couples through.
type Options struct {
	// Name is the bare queue name (no path separators). It is used
	// verbatim, with platform-specific prefixes, for both the
	// shared-memory object name and the semaphore name (spec.md §6).
	Name string
	// Dir overrides region.DefaultDir.
	Dir string
	// BytesCapacity is the total shared-region size in bytes; must be
	// greater than wire.QueueHeaderSize and a multiple of 8.
	BytesCapacity datasize.ByteSize
	// DeleteOnDispose propagates to the region and the coupling Signal:
	// Close also removes the backing file and unlinks the semaphore
	// (spec.md §9 "Global state").
	DeleteOnDispose bool
}

func (o Options) validate(op string) error {
	if o.Name == "" {
		return shmqerr.New(shmqerr.InvalidArgument, op, fmt.Errorf("empty queue name"))
	}
	if strings.ContainsRune(o.Name, '/') || strings.ContainsRune(o.Name, '\\') {
		return shmqerr.New(shmqerr.InvalidArgument, op, fmt.Errorf("queue name %q must not contain a path separator", o.Name))
	}
	size := int64(o.BytesCapacity.Bytes())
	if size <= wire.QueueHeaderSize || size%8 != 0 {
		return shmqerr.New(shmqerr.InvalidArgument, op, fmt.Errorf("bytes capacity %d must be > %d and a multiple of 8", size, wire.QueueHeaderSize))
	}
	return nil
}

func (o Options) regionConfig() region.Config {
	return region.Config{Name: o.Name, Dir: o.Dir, BytesCapacity: o.BytesCapacity, DeleteOnDispose: o.DeleteOnDispose}
}

// couplingName derives the named semaphore's fully-qualified name from a
// queue name: a "C" tag (spec.md §4.3: "the coupling signal between
// publisher and subscriber") plus the POSIX "/" namespace prefix.
func couplingName(queueName string) string {
	return "/C" + queueName
}

// withName returns a copy of o addressing a different queue name, used by
// Channel to derive the "P"/"S" halves of a duplex from one base Options.
func (o Options) withName(name string) Options {
	o.Name = name
	return o
}
