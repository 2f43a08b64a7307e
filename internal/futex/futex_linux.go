//go:build linux

package futex

import (
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux futex operations, from linux/futex.h. FUTEX_PRIVATE_FLAG is
// deliberately never used here: mpevent's words are shared across process
// boundaries and may be mapped at different virtual addresses in each
// process, so the kernel must hash waiters by the underlying page, not by
// virtual address — that's what the non-private ops do.
const (
	futexWait = 0
	futexWake = 1
)

// New builds a Word over the first 4 bytes of b. b must come from a shared
// mapping that outlives the Word.
func New(b []byte) (*Word, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("futex: word needs at least 4 bytes, got %d", len(b))
	}
	if uintptr(unsafe.Pointer(&b[0]))%4 != 0 {
		return nil, fmt.Errorf("futex: backing slice is not 4-byte aligned")
	}
	return &Word{addr: (*uint32)(unsafe.Pointer(&b[0]))}, nil
}

// Load atomically reads the current value.
func (w *Word) Load() uint32 {
	return atomic.LoadUint32(w.addr)
}

// Store atomically writes a value without waking anyone.
func (w *Word) Store(v uint32) {
	atomic.StoreUint32(w.addr, v)
}

// Wait blocks while the word's value equals expected. Returns immediately,
// without entering the kernel, if the value has already moved.
func (w *Word) Wait(expected uint32) error {
	return w.wait(expected, nil)
}

// WaitTimeout is Wait with a deadline; it returns ErrTimeout if the word's
// value is still expected when the deadline elapses.
func (w *Word) WaitTimeout(expected uint32, timeout time.Duration) error {
	ts := unix.NsecToTimespec(timeout.Nanoseconds())
	return w.wait(expected, &ts)
}

func (w *Word) wait(expected uint32, timeout *unix.Timespec) error {
	if w.Load() != expected {
		return nil
	}
	for {
		_, _, errno := unix.Syscall6(
			unix.SYS_FUTEX,
			uintptr(unsafe.Pointer(w.addr)),
			futexWait,
			uintptr(expected),
			uintptr(unsafe.Pointer(timeout)),
			0, 0,
		)
		switch errno {
		case 0, unix.EAGAIN:
			// EAGAIN means the value had already changed by the time the
			// kernel looked — equivalent to a successful wake for our
			// purposes (the caller re-checks the cell).
			return nil
		case unix.EINTR:
			continue
		case unix.ETIMEDOUT:
			return ErrTimeout
		default:
			return fmt.Errorf("futex: wait: %w", errno)
		}
	}
}

// Wake wakes up to count parked waiters, returning how many were actually
// woken. Waking with nobody parked is a cheap syscall, not a kernel park.
func (w *Word) Wake(count uint32) (int, error) {
	n, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(w.addr)),
		futexWake,
		uintptr(count),
		0, 0, 0,
	)
	if errno != 0 {
		return 0, fmt.Errorf("futex: wake: %w", errno)
	}
	return int(n), nil
}

// Post sets the word to 1 (armed) and wakes up to count waiters.
func (w *Word) Post(count uint32) (int, error) {
	return w.PostWithValue(1, count)
}

// PostWithValue sets the word to v and wakes up to count waiters.
func (w *Word) PostWithValue(v uint32, count uint32) (int, error) {
	w.Store(v)
	return w.Wake(count)
}
