package mpevent

import (
	"sync/atomic"
	"unicode/utf8"
	"unsafe"

	"github.com/yangosoft/mpevent/internal/shm"
)

// directoryMagic and directoryFormatVersion stamp the layout below into
// every fresh Directory region, so attaching to a stale or foreign region
// fails closed instead of misreading its bytes as live records.
var directoryMagic = [4]byte{'M', 'P', 'E', 'V'}

const directoryFormatVersion = 1

type participantRecord struct {
	ID   uint64
	Name [MaxParticipantNameSize]byte
}

type eventRecord struct {
	ID   uint64
	Name [MaxEventNameSize]byte
}

// directoryLayout is the fixed, C-compatible shape of the shared
// Directory region: a format header, the two monotonic counters, the
// dense participant/event tables, and the event ownership vector. It is
// never copied — directory always operates through a pointer obtained by
// casting the mmap'd byte slice, so every attached process sees the same
// memory.
type directoryLayout struct {
	Magic             [4]byte
	FormatVersion     uint32
	LastParticipantID uint64
	LastEventID       uint64
	Participants      [MaxParticipants]participantRecord
	Events            [MaxEvents]eventRecord
	EventOwners       [MaxEvents]uint64
}

func directorySize() int {
	return int(unsafe.Sizeof(directoryLayout{}))
}

// directory is a typed view over a Directory region. All table writes
// happen under the Coordinator's lock; the counters are read and written
// with atomic operations so an unlocked reader observes either the old or
// the new consistent prefix, never a torn record.
type directory struct {
	region *shm.Region
	layout *directoryLayout
}

func newDirectoryView(r *shm.Region) (*directory, error) {
	if r.Size() < directorySize() {
		return nil, newError("open_directory", KindIncompatibleFormat, nil)
	}
	return &directory{
		region: r,
		layout: (*directoryLayout)(unsafe.Pointer(&r.Bytes()[0])),
	}, nil
}

// initFresh zero-initializes counters and stamps the format header. Only
// the process that won the O_EXCL race to create the region may call
// this — the table bytes are already zero because a freshly ftruncate'd
// tmpfs file is zero-filled.
func (d *directory) initFresh() {
	d.layout.Magic = directoryMagic
	atomic.StoreUint32(&d.layout.FormatVersion, directoryFormatVersion)
	atomic.StoreUint64(&d.layout.LastParticipantID, 0)
	atomic.StoreUint64(&d.layout.LastEventID, 0)
}

// verify checks an attached (not just-created) region's header.
func (d *directory) verify() error {
	if d.layout.Magic != directoryMagic {
		return newError("open_directory", KindIncompatibleFormat, nil)
	}
	if atomic.LoadUint32(&d.layout.FormatVersion) != directoryFormatVersion {
		return newError("open_directory", KindIncompatibleFormat, nil)
	}
	return nil
}

func encodeName(dst []byte, name string) {
	for i := range dst {
		dst[i] = 0
	}
	copy(dst, name)
}

func decodeName(src []byte) string {
	n := 0
	for n < len(src) && src[n] != 0 {
		n++
	}
	return string(src[:n])
}

func (d *directory) numParticipants() uint64 {
	return atomic.LoadUint64(&d.layout.LastParticipantID)
}

func (d *directory) numEvents() uint64 {
	return atomic.LoadUint64(&d.layout.LastEventID)
}

func (d *directory) lastParticipantID() (uint64, bool) {
	n := d.numParticipants()
	if n == 0 {
		return 0, false
	}
	return n - 1, true
}

func (d *directory) lastEventID() (uint64, bool) {
	n := d.numEvents()
	if n == 0 {
		return 0, false
	}
	return n - 1, true
}

func (d *directory) participant(id uint64) (Participant, bool) {
	if id >= d.numParticipants() {
		return Participant{}, false
	}
	rec := d.layout.Participants[id]
	return Participant{ID: rec.ID, Name: decodeName(rec.Name[:])}, true
}

func (d *directory) participantIDByEventID(eventID uint64) (uint64, bool) {
	if eventID >= d.numEvents() {
		return 0, false
	}
	return d.layout.EventOwners[eventID], true
}

// addParticipant appends a new participant under the caller-held lock.
// Names must be pairwise distinct and the table has fixed capacity; both
// are enforced here.
func (d *directory) addParticipant(name string) (uint64, error) {
	if !utf8.ValidString(name) {
		return 0, newError("add_participant", KindNameTooLong, nil)
	}
	if len(name) > MaxParticipantNameSize-1 {
		return 0, newError("add_participant", KindNameTooLong, nil)
	}

	last := d.numParticipants()
	if last >= MaxParticipants {
		return 0, newError("add_participant", KindFull, nil)
	}
	for i := uint64(0); i < last; i++ {
		if decodeName(d.layout.Participants[i].Name[:]) == name {
			return 0, newError("add_participant", KindDuplicate, nil)
		}
	}

	rec := &d.layout.Participants[last]
	rec.ID = last
	encodeName(rec.Name[:], name)
	atomic.StoreUint64(&d.layout.LastParticipantID, last+1)
	return last, nil
}

// findEvent returns the id of an existing event with this qualified name,
// if any, scanning only the dense, already-written prefix.
func (d *directory) findEvent(qualifiedName string) (uint64, bool) {
	last := d.numEvents()
	for i := uint64(0); i < last; i++ {
		if decodeName(d.layout.Events[i].Name[:]) == qualifiedName {
			return i, true
		}
	}
	return 0, false
}

// addEvent appends a new event under the caller-held lock, or returns the
// id of an existing one with the same qualified name without allocating a
// new slot: registering the same event twice is not an error.
func (d *directory) addEvent(qualifiedName string, ownerID uint64) (id uint64, created bool, err error) {
	if len(qualifiedName) > MaxEventNameSize-1 {
		return 0, false, newError("add_event", KindNameTooLong, nil)
	}
	if existing, ok := d.findEvent(qualifiedName); ok {
		return existing, false, nil
	}

	last := d.numEvents()
	if last >= MaxEvents {
		return 0, false, newError("add_event", KindFull, nil)
	}

	rec := &d.layout.Events[last]
	rec.ID = last
	encodeName(rec.Name[:], qualifiedName)
	d.layout.EventOwners[last] = ownerID
	atomic.StoreUint64(&d.layout.LastEventID, last+1)
	return last, true, nil
}
