package mpevent

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/yangosoft/mpevent/internal/shm"
)

const wakeAll = uint32(math.MaxUint32)

// Participant is a named actor within a namespace, returned by queries
// against the Directory. It is a snapshot, not a live view.
type Participant struct {
	ID   uint64
	Name string
}

// Coordinator owns the mapping of one namespace's Directory and lock
// region. It provides the mutating operations (AddParticipant, AddEvent),
// the unlocked queries, and the lifecycle (close). Subscriber is built on
// top of it for applications that want the discovery conveniences too.
type Coordinator struct {
	namespace string
	shmDir    string
	log       logrus.FieldLogger

	dirRegion  *shm.Region
	directory  *directory
	lockRegion *shm.Region
	lock       *dirLock

	notifyGroup singleflight.Group
}

func lockName(namespace string) string { return namespace + "_mutex" }

func qualify(namespace, userName string) string { return namespace + "_" + userName }

// open maps (or creates) both regions for namespace and builds a
// Coordinator. attachOnly=true never creates anything, failing instead if
// either region is missing — the open_existing path. clean=true removes
// any residual backing files for namespace before mapping — the
// new_clean path.
func open(namespace string, attachOnly, clean bool) (*Coordinator, error) {
	shmDir := currentShmDir()

	if clean {
		removeResidual(shmDir, namespace)
	}

	var dirRegion *shm.Region
	var err error
	if attachOnly {
		dirRegion, err = shm.Attach(shmDir, namespace, directorySize())
	} else {
		dirRegion, err = shm.OpenOrCreate(shmDir, namespace, directorySize())
	}
	if err != nil {
		return nil, fmt.Errorf("mpevent: open directory %q: %w", namespace, err)
	}

	var lockRegion *shm.Region
	if attachOnly {
		lockRegion, err = shm.Attach(shmDir, lockName(namespace), 4)
	} else {
		lockRegion, err = shm.OpenOrCreate(shmDir, lockName(namespace), 4)
	}
	if err != nil {
		dirRegion.Close(false)
		return nil, fmt.Errorf("mpevent: open lock %q: %w", namespace, err)
	}

	dv, err := newDirectoryView(dirRegion)
	if err != nil {
		dirRegion.Close(false)
		lockRegion.Close(false)
		return nil, err
	}

	lock, err := newDirLock(lockRegion)
	if err != nil {
		dirRegion.Close(false)
		lockRegion.Close(false)
		return nil, err
	}

	// initFresh (by whichever process actually won the O_EXCL race to
	// create dirRegion) and verify (by every other attacher) must not
	// race: an attacher that reads the header before the creator has
	// stamped it would see an all-zero magic and reject a perfectly good,
	// freshly-created Directory. Taking the lock — shared across
	// processes via lockRegion — around this check serializes the true
	// first creator's write against every later attacher's read.
	if err := lock.Lock(); err != nil {
		dirRegion.Close(false)
		lockRegion.Close(false)
		return nil, err
	}
	if dirRegion.Created() {
		dv.initFresh()
	} else {
		err = dv.verify()
	}
	lock.Unlock()
	if err != nil {
		dirRegion.Close(false)
		lockRegion.Close(false)
		return nil, err
	}

	return &Coordinator{
		namespace:  namespace,
		shmDir:     shmDir,
		log:        currentLogger().WithField("namespace", namespace),
		dirRegion:  dirRegion,
		directory:  dv,
		lockRegion: lockRegion,
		lock:       lock,
	}, nil
}

// removeResidual deletes every backing file in dir whose name is
// namespace itself or starts with "namespace_" — the directory, the
// lock, and any event waitables. Used by NewClean.
func removeResidual(dir, namespace string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if name == namespace || strings.HasPrefix(name, namespace+"_") {
			os.Remove(dir + "/" + name)
		}
	}
}

// New creates or attaches to namespace's Directory. Failing to map either
// shared region is fatal: New panics, since a process that cannot reach
// its own coordination state cannot do anything useful.
func New(namespace string) *Coordinator {
	c, err := open(namespace, false, false)
	if err != nil {
		panic(fmt.Sprintf("mpevent: New(%q): %v", namespace, err))
	}
	return c
}

// NewClean removes any residual shared-memory files for namespace, then
// behaves like New. Intended for tests and one-shot initializers that
// want a guaranteed-empty Directory.
func NewClean(namespace string) *Coordinator {
	c, err := open(namespace, false, true)
	if err != nil {
		panic(fmt.Sprintf("mpevent: NewClean(%q): %v", namespace, err))
	}
	return c
}

// OpenExisting attaches to namespace's Directory without creating it. If
// either region is missing, it falls back to New (which creates them).
func OpenExisting(namespace string) *Coordinator {
	c, err := open(namespace, true, false)
	if err != nil {
		return New(namespace)
	}
	return c
}

// Close posts both built-in waitables (best-effort, so any blocked
// subscribers observe a wakeup) and then unmaps the Directory and lock
// regions, unlinking their backing files if unlink is set.
func (c *Coordinator) Close(unlink bool) error {
	c.notifyBuiltin(BuiltinNewParticipant)
	c.notifyBuiltin(BuiltinNewEvent)

	var errs []error
	if err := c.lockRegion.Close(unlink); err != nil {
		errs = append(errs, err)
	}
	if err := c.dirRegion.Close(unlink); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return newError("close", KindCloseFailed, errors.Join(errs...))
	}
	return nil
}

// Path returns the backing file path of the Directory region.
func (c *Coordinator) Path() string { return c.dirRegion.Path() }

// AddParticipant registers name as a new participant, returning its
// assigned id. Fails with ErrFull at capacity or ErrDuplicate if name is
// already registered.
func (c *Coordinator) AddParticipant(name string) (uint64, error) {
	if err := c.lock.Lock(); err != nil {
		return 0, err
	}
	id, err := c.directory.addParticipant(name)
	c.lock.Unlock()
	if err != nil {
		return 0, err
	}
	c.notifyBuiltin(BuiltinNewParticipant)
	return id, nil
}

// AddEvent registers userName (qualified as "<namespace>_<userName>") as
// owned by ownerID, returning a Waitable over its shared cell. Calling it
// again with the same name is not an error: no new slot is allocated and
// a Waitable for the existing event is returned. ownerID is recorded but
// never validated against the participant table (see DESIGN.md).
func (c *Coordinator) AddEvent(ownerID uint64, userName string) (*Waitable, error) {
	if userName == BuiltinNewParticipant || userName == BuiltinNewEvent {
		return nil, newError("add_event", KindReservedName, nil)
	}

	var e Event
	if err := e.SetName(qualify(c.namespace, userName)); err != nil {
		return nil, err
	}

	if err := c.lock.Lock(); err != nil {
		return nil, err
	}
	id, _, err := c.directory.addEvent(e.Name(), ownerID)
	c.lock.Unlock()
	if err != nil {
		return nil, err
	}
	e.SetID(id)

	w, err := e.GetWaitable(c.shmDir)
	if err != nil {
		return nil, err
	}
	c.notifyBuiltin(BuiltinNewEvent)
	return w, nil
}

// NumParticipants returns the number of registered participants.
func (c *Coordinator) NumParticipants() uint64 { return c.directory.numParticipants() }

// NumEvents returns the number of registered events.
func (c *Coordinator) NumEvents() uint64 { return c.directory.numEvents() }

// Participant returns the participant record for id, if it has been
// allocated.
func (c *Coordinator) Participant(id uint64) (Participant, bool) {
	return c.directory.participant(id)
}

// LastParticipantID returns the most recently assigned participant id, or
// false if no participant has been registered yet.
func (c *Coordinator) LastParticipantID() (uint64, bool) {
	return c.directory.lastParticipantID()
}

// LastEventID returns the most recently assigned event id, or false if no
// event has been registered yet.
func (c *Coordinator) LastEventID() (uint64, bool) {
	return c.directory.lastEventID()
}

// ParticipantIDByEventID returns the participant id that created
// eventID.
func (c *Coordinator) ParticipantIDByEventID(eventID uint64) (uint64, bool) {
	return c.directory.participantIDByEventID(eventID)
}

// notifyBuiltin resets a built-in event's cell to 0 and posts it with
// value 1, waking every waiter. Failures are logged and otherwise
// ignored — built-in notification is always best-effort. Concurrent
// notifications of the same built-in within this process collapse into
// one open+post via singleflight, since repeated open/attach of the same
// shm name is assumed (but not guaranteed free) to be idempotent.
func (c *Coordinator) notifyBuiltin(builtinName string) {
	qualified := qualify(c.namespace, builtinName)
	_, _, _ = c.notifyGroup.Do(qualified, func() (interface{}, error) {
		var e Event
		if err := e.SetName(qualified); err != nil {
			c.log.WithError(err).WithField("event", qualified).Warn("mpevent: notify_builtin: bad name")
			return nil, nil
		}
		w, err := e.GetWaitable(c.shmDir)
		if err != nil {
			c.log.WithError(err).WithField("event", qualified).Warn("mpevent: notify_builtin: open failed")
			return nil, nil
		}
		defer w.Close(false)

		w.SetValue(0)
		if _, err := w.PostWithValue(1, wakeAll); err != nil {
			c.log.WithError(err).WithField("event", qualified).Warn("mpevent: notify_builtin: post failed")
		}
		return nil, nil
	})
}
