//go:build linux

package shm

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mapMode is the protection requested for every region mpevent maps: the
// directory, the lock word, and each event cell are all read-write for
// every attached process.
const mapMode = unix.PROT_READ | unix.PROT_WRITE

// Create opens a brand-new shared-memory object, failing if one with this
// name already exists. Only the process that wins this O_EXCL race is
// allowed to zero-initialize the Directory built on top of it.
func Create(dir, name string, size int) (*Region, error) {
	path := dir + "/" + name
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, 0o666)
	if err != nil {
		if err == unix.EEXIST {
			return nil, os.ErrExist
		}
		return nil, fmt.Errorf("shm: create %s: %w", path, err)
	}

	r, err := finishOpen(dir, name, path, fd, size, true)
	if err != nil {
		unix.Close(fd)
		unix.Unlink(path)
		return nil, err
	}
	return r, nil
}

// Attach maps an existing shared-memory object, failing if it does not
// exist. Contents are preserved.
func Attach(dir, name string, size int) (*Region, error) {
	path := dir + "/" + name
	fd, err := unix.Open(path, unix.O_RDWR, 0o666)
	if err != nil {
		if err == unix.ENOENT {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("shm: attach %s: %w", path, err)
	}

	r, err := finishOpen(dir, name, path, fd, size, false)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return r, nil
}

// OpenOrCreate attaches to name if it exists, otherwise creates it.
// Region.Created reports which branch was taken so the caller can decide
// whether to zero-initialize.
func OpenOrCreate(dir, name string, size int) (*Region, error) {
	r, err := Create(dir, name, size)
	if err == nil {
		return r, nil
	}
	if err != os.ErrExist {
		return nil, err
	}
	return Attach(dir, name, size)
}

// finishOpen grows the backing file to size (never shrinks an existing,
// larger file — a newer process attaching to an older, smaller region is
// not a supported upgrade path) and mmaps it.
func finishOpen(dir, name, path string, fd, size int, created bool) (*Region, error) {
	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		return nil, fmt.Errorf("shm: fstat %s: %w", path, err)
	}
	if int(stat.Size) < size {
		if err := unix.Ftruncate(fd, int64(size)); err != nil {
			return nil, fmt.Errorf("shm: ftruncate %s to %d: %w", path, size, err)
		}
	}

	data, err := unix.Mmap(fd, 0, size, mapMode, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}

	return &Region{
		dir:     dir,
		name:    name,
		size:    size,
		fd:      fd,
		data:    data,
		created: created,
	}, nil
}

// Close unmaps the region, closes the fd, and — if unlink is set — removes
// the backing tmpfs file. Other processes keep their mapping alive until
// they also close.
func (r *Region) Close(unlink bool) error {
	var errs []error
	if r.data != nil {
		if err := unix.Munmap(r.data); err != nil {
			errs = append(errs, fmt.Errorf("munmap %s: %w", r.Path(), err))
		}
		r.data = nil
	}
	if err := unix.Close(r.fd); err != nil {
		errs = append(errs, fmt.Errorf("close %s: %w", r.Path(), err))
	}
	if unlink {
		if err := unix.Unlink(r.Path()); err != nil && err != unix.ENOENT {
			errs = append(errs, fmt.Errorf("unlink %s: %w", r.Path(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
