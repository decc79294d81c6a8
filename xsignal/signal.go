// Package xsignal implements the named, cross-process counting semaphore
// spec.md §4.3 calls "Signal": the coupling mechanism a publisher releases
// and a subscriber waits on. Correctness of the queue never depends on this
// package — every ordering guarantee comes from the atomic CAS protocol in
// wire and queue — Signal exists purely so a blocked subscriber sleeps
// instead of spinning.
//
// This is the POSIX backend spec.md §4.3 names directly: sem_open,
// sem_post, sem_wait/sem_trywait/sem_timedwait, sem_close, sem_unlink.
// There is no raw syscall form of these in the Linux ABI — they are glibc
// wrappers around a futex — so, like the teacher's own pdump ring buffer
// (modules/pdump/controlplane/ring.go, which binds the dataplane's C ring
// via cgo), this package reaches for cgo rather than reimplementing a
// named semaphore on top of something else. A Windows backend would swap
// this file for one calling CreateSemaphoreEx behind the same five-method
// surface; none of queue's code depends on which one is linked in.
package xsignal

/*
#include <semaphore.h>
#include <fcntl.h>
#include <errno.h>
#include <stdlib.h>
#include <time.h>

static sem_t *shmq_sem_open(const char *name, unsigned int value, int *err) {
	sem_t *s = sem_open(name, O_CREAT, 0777, value);
	if (s == SEM_FAILED) {
		*err = errno;
		return NULL;
	}
	*err = 0;
	return s;
}

static int shmq_sem_post(sem_t *s) {
	if (sem_post(s) != 0) {
		return errno;
	}
	return 0;
}

static int shmq_sem_wait(sem_t *s) {
	if (sem_wait(s) != 0) {
		return errno;
	}
	return 0;
}

static int shmq_sem_trywait(sem_t *s) {
	if (sem_trywait(s) != 0) {
		return errno;
	}
	return 0;
}

static int shmq_sem_timedwait(sem_t *s, long sec, long nsec) {
	struct timespec ts;
	ts.tv_sec = sec;
	ts.tv_nsec = nsec;
	if (sem_timedwait(s, &ts) != 0) {
		return errno;
	}
	return 0;
}

static int shmq_sem_close(sem_t *s) {
	if (sem_close(s) != 0) {
		return errno;
	}
	return 0;
}

static int shmq_sem_unlink(const char *name) {
	if (sem_unlink(name) != 0) {
		return errno;
	}
	return 0;
}
*/
import "C"

import (
	"fmt"
	"syscall"
	"time"
	"unsafe"

	"github.com/vectorway/shmq/internal/shmqerr"
)

// MaxInitialCount mirrors SEM_VALUE_MAX (commonly 32767) named in spec.md
// §4.3's error taxonomy.
const MaxInitialCount = 32767

// maxNameLen is the smallest platform limit spec.md §4.3 names (31 bytes
// including NUL on macOS); every name is held to it so it also fits a
// future macOS backend.
const maxNameLen = 31

// Config describes the semaphore to create or open.
type Config struct {
	// Name is the fully-qualified semaphore name, including the leading
	// "/" POSIX requires and the platform/tag prefix the caller composed
	// (see queue.couplingName).
	Name string
	// InitialCount is the semaphore's value immediately after creation.
	// Ignored when the semaphore already exists.
	InitialCount int
	// DeleteOnDispose marks this handle as the owner: Close also unlinks
	// the semaphore, per spec.md §9's "register a process-exit handler to
	// unlink POSIX semaphores the process created with
	// deleteOnDispose=true".
	DeleteOnDispose bool
}

// Signal is a named counting semaphore. The zero value is not usable; use
// Open.
type Signal struct {
	name            string
	sem             *C.sem_t
	deleteOnDispose bool
}

// Open creates the named semaphore if it does not exist (initialized to
// InitialCount) or opens it if it does.
func Open(cfg Config) (*Signal, error) {
	if cfg.Name == "" || cfg.Name[0] != '/' {
		return nil, shmqerr.New(shmqerr.InvalidArgument, "xsignal.Open", fmt.Errorf("name %q must start with '/'", cfg.Name))
	}
	if len(cfg.Name)+1 > maxNameLen {
		return nil, shmqerr.New(shmqerr.NameTooLong, "xsignal.Open", fmt.Errorf("name %q exceeds %d bytes", cfg.Name, maxNameLen-1))
	}
	if cfg.InitialCount < 0 || cfg.InitialCount > MaxInitialCount {
		return nil, shmqerr.New(shmqerr.InitialCountTooLarge, "xsignal.Open", fmt.Errorf("initial count %d", cfg.InitialCount))
	}

	cname := C.CString(cfg.Name)
	defer C.free(unsafe.Pointer(cname))

	var cerr C.int
	sem := C.shmq_sem_open(cname, C.uint(cfg.InitialCount), &cerr)
	if sem == nil {
		return nil, mapErrno("xsignal.Open", syscall.Errno(cerr))
	}
	return &Signal{name: cfg.Name, sem: sem, deleteOnDispose: cfg.DeleteOnDispose}, nil
}

// Release increments the semaphore's count and wakes one waiter.
func (s *Signal) Release() error {
	if errno := C.shmq_sem_post(s.sem); errno != 0 {
		return mapErrno("xsignal.Release", syscall.Errno(errno))
	}
	return nil
}

// Wait blocks up to timeoutMs milliseconds for the count to become
// positive, decrementing it by one on success. timeoutMs < 0 blocks
// indefinitely; timeoutMs == 0 polls without blocking. It returns false
// with a nil error on timeout or no-data — never as an error, per spec.md
// §7's policy that an empty wait is not an error condition.
func (s *Signal) Wait(timeoutMs int) (bool, error) {
	switch {
	case timeoutMs < 0:
		for {
			switch errno := syscall.Errno(C.shmq_sem_wait(s.sem)); errno {
			case 0:
				return true, nil
			case syscall.EINTR:
				continue
			default:
				return false, mapErrno("xsignal.Wait", errno)
			}
		}
	case timeoutMs == 0:
		switch errno := syscall.Errno(C.shmq_sem_trywait(s.sem)); errno {
		case 0:
			return true, nil
		case syscall.EAGAIN:
			return false, nil
		default:
			return false, mapErrno("xsignal.Wait", errno)
		}
	default:
		deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
		for {
			sec, nsec := deadline.Unix(), int64(deadline.Nanosecond())
			errno := syscall.Errno(C.shmq_sem_timedwait(s.sem, C.long(sec), C.long(nsec)))
			switch errno {
			case 0:
				return true, nil
			case syscall.ETIMEDOUT:
				return false, nil
			case syscall.EINTR:
				if !time.Now().Before(deadline) {
					return false, nil
				}
				continue
			default:
				return false, mapErrno("xsignal.Wait", errno)
			}
		}
	}
}

// Close releases this handle. When opened with DeleteOnDispose it also
// unlinks the underlying semaphore.
func (s *Signal) Close() error {
	if errno := syscall.Errno(C.shmq_sem_close(s.sem)); errno != 0 {
		return mapErrno("xsignal.Close", errno)
	}
	if s.deleteOnDispose {
		return Unlink(s.name)
	}
	return nil
}

// Unlink removes the named semaphore. Safe to call from any process;
// typically invoked by whichever side created it.
func Unlink(name string) error {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	if errno := syscall.Errno(C.shmq_sem_unlink(cname)); errno != 0 {
		if errno == syscall.ENOENT {
			return shmqerr.New(shmqerr.NotFound, "xsignal.Unlink", errno)
		}
		return mapErrno("xsignal.Unlink", errno)
	}
	return nil
}

func mapErrno(op string, errno syscall.Errno) error {
	switch errno {
	case syscall.EACCES, syscall.EPERM:
		return shmqerr.New(shmqerr.Unauthorized, op, errno)
	case syscall.ENAMETOOLONG:
		return shmqerr.New(shmqerr.NameTooLong, op, errno)
	case syscall.EEXIST:
		return shmqerr.New(shmqerr.AlreadyExists, op, errno)
	case syscall.EINTR:
		return shmqerr.New(shmqerr.Interrupted, op, errno)
	case syscall.EINVAL:
		return shmqerr.New(shmqerr.Invalid, op, errno)
	case syscall.EOVERFLOW:
		return shmqerr.New(shmqerr.Overflow, op, errno)
	case syscall.ENOENT:
		return shmqerr.New(shmqerr.NotFound, op, errno)
	case syscall.ENOSPC, syscall.ENOMEM:
		return shmqerr.New(shmqerr.OutOfMemory, op, errno)
	case syscall.EMFILE, syscall.ENFILE:
		return shmqerr.New(shmqerr.TooManyOpen, op, errno)
	default:
		return shmqerr.New(shmqerr.PlatformDenied, op, errno)
	}
}
