// Package shm maps named POSIX shared-memory regions into the process
// address space. It is the accessor layer the rest of mpevent builds on:
// the Directory, the directory lock, and each per-event waitable are all
// plain Region values distinguished only by name and size.
package shm

import "errors"

// ErrUnsupported is returned on platforms without POSIX shared memory
// support (everything except Linux, for this module).
var ErrUnsupported = errors.New("shm: unsupported platform")

// DefaultDir is where regions are created when no override is given.
// Linux mounts tmpfs at /dev/shm; a region's backing file there is
// indistinguishable from one created with the shm_open(3) libc wrapper.
const DefaultDir = "/dev/shm"

// Region is a mapped shared-memory object.
type Region struct {
	dir     string
	name    string
	size    int
	fd      int
	data    []byte
	created bool
}

// Name returns the object name the region was opened with.
func (r *Region) Name() string { return r.name }

// Path returns the backing file path in the tmpfs mount.
func (r *Region) Path() string { return r.dir + "/" + r.name }

// Size returns the mapped region size in bytes.
func (r *Region) Size() int { return r.size }

// Created reports whether this call is the one that created the backing
// object (as opposed to attaching to one that already existed).
func (r *Region) Created() bool { return r.created }

// Bytes returns the mapped memory as a byte slice of length Size(). The
// slice is valid until Close.
func (r *Region) Bytes() []byte { return r.data }
