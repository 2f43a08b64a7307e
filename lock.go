package mpevent

import (
	"os"
	"syscall"
	"time"

	"github.com/yangosoft/mpevent/internal/futex"
	"github.com/yangosoft/mpevent/internal/shm"
)

// stallProbeInterval is how long Lock waits on the futex before checking
// whether the current holder is still alive. staleAfterProbes is how many
// consecutive stalls must elapse before a dead holder's lock is stolen —
// this absorbs a holder that is merely slow (e.g. scheduled out while
// mutating the directory) without waiting forever for one that crashed.
const (
	stallProbeInterval = 100 * time.Millisecond
	staleAfterProbes   = 20 // default: ~2s of stalls before a liveness probe fires
)

// dirLock is the mutual-exclusion discipline over the Directory: a single
// shared futex word encoding "free" (0) or "held by pid P" ((P<<1)|1).
// Encoding the pid lets a waiter detect and recover from a holder that
// crashed mid-critical-section, without a kernel-level robust-mutex
// primitive, which a hand-rolled futex word doesn't get for free.
type dirLock struct {
	word *futex.Word
}

func newDirLock(region *shm.Region) (*dirLock, error) {
	w, err := futex.New(region.Bytes())
	if err != nil {
		return nil, newError("lock", KindLockPoisoned, err)
	}
	return &dirLock{word: w}, nil
}

func encodeLockWord(pid int) uint32 {
	return uint32(pid)<<1 | 1
}

func decodeLockPid(word uint32) int {
	return int(word >> 1)
}

// Lock acquires the directory lock, blocking until it is free or its
// holder is found to be dead.
func (l *dirLock) Lock() error {
	self := encodeLockWord(os.Getpid())
	stalls := 0
	for {
		if l.word.CompareAndSwap(0, self) {
			return nil
		}

		cur := l.word.Load()
		if cur == 0 {
			continue // lost the CAS race, retry immediately
		}

		err := l.word.WaitTimeout(cur, stallProbeInterval)
		if err == nil {
			stalls = 0
			continue
		}
		if err != futex.ErrTimeout {
			return newError("lock", KindLockPoisoned, err)
		}

		stalls++
		if stalls < currentStaleAfterProbes() {
			continue
		}
		stalls = 0

		holder := decodeLockPid(cur)
		if holder > 0 && !processAlive(holder) {
			currentLogger().WithField("holder_pid", holder).
				Warn("mpevent: stealing directory lock from dead holder")
			if l.word.CompareAndSwap(cur, self) {
				return nil
			}
		}
	}
}

// Unlock releases the lock and wakes one waiter, if any.
func (l *dirLock) Unlock() error {
	l.word.Store(0)
	_, err := l.word.Wake(1)
	if err != nil {
		return newError("unlock", KindLockPoisoned, err)
	}
	return nil
}

// processAlive reports whether pid names a live process, using the
// signal-0 liveness probe idiom (send no actual signal, just check
// whether the kernel would have let it through).
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
