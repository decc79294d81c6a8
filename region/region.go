// Package region maps the flat byte file that backs a queue: the file
// Dir/Name (by default under the tmpfs-backed /dev/shm) opened
// create-or-open, truncated to the requested capacity, and mmap'd MAP_SHARED
// so every process attaching to the same name observes the same bytes. The
// mapping/unmapping dance follows shmx.Shmx.Attach/reset in the retrieved
// shmx package; region adds the create-or-open semantics and zero-fill
// guarantee that spec.md §5 requires instead of shmx's O_EXCL master/slave
// split.
package region

import (
	"fmt"
	"math/bits"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/c2h5oh/datasize"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sys/unix"

	"github.com/vectorway/shmq/internal/shmqerr"
)

// DefaultDir is used when Config.Dir is empty. On Linux, /dev/shm is the
// tmpfs-backed POSIX shared memory mountpoint; it is also where the xsignal
// package's POSIX semaphores live conceptually (even though those go through
// sem_open, not a path under this directory).
const DefaultDir = "/dev/shm"

// Config describes the region to create or open.
type Config struct {
	// Name is the bare queue name (no path separators). The backing file
	// is Dir/Name.
	Name string
	// Dir overrides DefaultDir.
	Dir string
	// BytesCapacity is the total region size, header included. It must be
	// a multiple of 8 and large enough to hold the QueueHeader plus at
	// least one minimally-sized slot.
	BytesCapacity datasize.ByteSize
	// DeleteOnDispose marks this handle as the owner: Close also removes
	// the backing file, per spec.md §9 "Global state" (mirrored by
	// xsignal.Config.DeleteOnDispose for the coupling semaphore).
	DeleteOnDispose bool
}

// Region is a live mapping of a queue's backing file.
type Region struct {
	path            string
	file            *os.File
	data            []byte
	deleteOnDispose bool
}

func init() {
	if bits.UintSize != 64 {
		panic("shmq/region: only 64-bit targets are supported")
	}
}

func (c Config) path() string {
	dir := c.Dir
	if dir == "" {
		dir = DefaultDir
	}
	return filepath.Join(dir, c.Name)
}

// Open creates the backing file if it does not exist (zero-filling it to
// BytesCapacity) or opens it if it does, and maps it MAP_SHARED into the
// caller's address space. The returned Region must be closed with Close.
func Open(cfg Config) (*Region, error) {
	if cfg.Name == "" {
		return nil, shmqerr.New(shmqerr.InvalidArgument, "region.Open", fmt.Errorf("empty name"))
	}
	size := int64(cfg.BytesCapacity.Bytes())
	if size <= 0 || size%8 != 0 {
		return nil, shmqerr.New(shmqerr.InvalidArgument, "region.Open", fmt.Errorf("capacity %d is not a positive multiple of 8", size))
	}

	path := cfg.path()
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR, 0o777)
	if err != nil {
		return nil, mapOpenErr("region.Open", err)
	}
	file := os.NewFile(uintptr(fd), path)

	st, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, shmqerr.New(shmqerr.PlatformDenied, "region.Open", err)
	}
	if st.Size() == 0 {
		if err := unix.Ftruncate(fd, size); err != nil {
			file.Close()
			return nil, shmqerr.New(shmqerr.PlatformDenied, "region.Open", err)
		}
	} else if st.Size() != size {
		file.Close()
		return nil, shmqerr.New(shmqerr.InvalidArgument, "region.Open",
			fmt.Errorf("existing region %s has size %d, want %d", path, st.Size(), size))
	}

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, shmqerr.New(shmqerr.PlatformDenied, "region.Open", err)
	}

	return &Region{path: path, file: file, data: data, deleteOnDispose: cfg.DeleteOnDispose}, nil
}

// Base returns a pointer to the start of the mapped region.
func (r *Region) Base() unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(r.data))
}

// Bytes exposes the raw mapped slice, primarily for tests.
func (r *Region) Bytes() []byte {
	return r.data
}

// Capacity returns the mapped size in bytes.
func (r *Region) Capacity() int64 {
	return int64(len(r.data))
}

// Path returns the backing file's path.
func (r *Region) Path() string {
	return r.path
}

// Close unmaps and closes the backing file descriptor. It removes the
// backing file too when the Region was opened with DeleteOnDispose; call
// Unlink directly for any other handle that wants to tear the file down.
func (r *Region) Close() error {
	var result *multierror.Error
	if r.data != nil {
		if err := unix.Munmap(r.data); err != nil {
			result = multierror.Append(result, err)
		}
		r.data = nil
	}
	if err := r.file.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if r.deleteOnDispose {
		if err := unix.Unlink(r.path); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if result == nil {
		return nil
	}
	return shmqerr.New(shmqerr.PlatformDenied, "region.Close", result.ErrorOrNil())
}

// Unlink removes the backing file from the filesystem. Callers typically
// invoke this once, from whichever process is responsible for tearing the
// queue down; other attached processes keep a valid mapping until they
// Close.
func Unlink(cfg Config) error {
	if err := unix.Unlink(cfg.path()); err != nil {
		if err == unix.ENOENT {
			return shmqerr.New(shmqerr.NotFound, "region.Unlink", err)
		}
		return shmqerr.New(shmqerr.PlatformDenied, "region.Unlink", err)
	}
	return nil
}

func mapOpenErr(op string, err error) error {
	switch err {
	case unix.EACCES, unix.EPERM:
		return shmqerr.New(shmqerr.Unauthorized, op, err)
	case unix.ENAMETOOLONG:
		return shmqerr.New(shmqerr.NameTooLong, op, err)
	case unix.EMFILE, unix.ENFILE:
		return shmqerr.New(shmqerr.TooManyOpen, op, err)
	case unix.ENOSPC, unix.ENOMEM:
		return shmqerr.New(shmqerr.OutOfMemory, op, err)
	default:
		return shmqerr.New(shmqerr.PlatformDenied, op, err)
	}
}
