package mpevent

import (
	"time"

	"github.com/yangosoft/mpevent/internal/futex"
	"github.com/yangosoft/mpevent/internal/shm"
)

// Event is the Directory's event record as a standalone value: an id plus
// a qualified name, copyable and comparable, whose only non-trivial
// operation is deriving the Waitable that actually backs wait/post.
type Event struct {
	id   uint64
	name string // qualified "<namespace>_<user name>"
}

// ID returns the event's id within its Directory.
func (e Event) ID() uint64 { return e.id }

// SetID sets the event's id. Coordinator.AddEvent calls this once a slot
// has been assigned; ordinary callers never need it.
func (e *Event) SetID(id uint64) { e.id = id }

// Name returns the qualified name the event is stored under.
func (e Event) Name() string { return e.name }

// SetName sets the event's qualified name, failing with ErrNameTooLong if
// it does not fit the Directory's fixed-size name field.
func (e *Event) SetName(qualifiedName string) error {
	if len(qualifiedName) > MaxEventNameSize-1 {
		return newError("set_name", KindNameTooLong, nil)
	}
	e.name = qualifiedName
	return nil
}

// GetWaitable opens (creating it if necessary) the shared region named
// exactly after the event's qualified name and returns a Waitable view
// over it. This is the critical operation tying an Event record to the
// live shared cell other processes wait on and post to.
func (e Event) GetWaitable(dir string) (*Waitable, error) {
	return openWaitable(dir, e.name)
}

// Waitable is the view over an event's shared cell: an 8-byte region
// whose low 32 bits serve both as the futex word and as a non-zero/zero
// "armed" flag.
type Waitable struct {
	region *shm.Region
	word   *futex.Word
}

func openWaitable(dir, qualifiedName string) (*Waitable, error) {
	if qualifiedName == "" {
		return nil, newError("get_waitable", KindNoWaitable, nil)
	}
	region, err := shm.OpenOrCreate(dir, qualifiedName, waitableSize)
	if err != nil {
		return nil, newError("get_waitable", KindNoWaitable, err)
	}
	word, err := futex.New(region.Bytes())
	if err != nil {
		region.Close(false)
		return nil, newError("get_waitable", KindNoWaitable, err)
	}
	return &Waitable{region: region, word: word}, nil
}

// Wait blocks while the cell's value equals expected.
func (w *Waitable) Wait(expected uint32) error {
	return w.word.Wait(expected)
}

// WaitTimeout is Wait bounded by a deadline.
func (w *Waitable) WaitTimeout(expected uint32, timeout time.Duration) error {
	return w.word.WaitTimeout(expected, timeout)
}

// Post arms the cell (sets it to 1) and wakes up to count waiters.
func (w *Waitable) Post(count uint32) (int, error) {
	return w.word.Post(count)
}

// PostWithValue sets the cell to v and wakes up to count waiters.
func (w *Waitable) PostWithValue(v uint32, count uint32) (int, error) {
	return w.word.PostWithValue(v, count)
}

// GetValue reads the cell without waking anyone.
func (w *Waitable) GetValue() uint32 {
	return w.word.Load()
}

// SetValue writes the cell without waking anyone.
func (w *Waitable) SetValue(v uint32) {
	w.word.Store(v)
}

// Close unmaps the waitable's region, unlinking the backing file if
// unlink is set.
func (w *Waitable) Close(unlink bool) error {
	return w.region.Close(unlink)
}
