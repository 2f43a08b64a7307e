package mpevent

// Fixed capacities. All Directory tables are compile-time bounded; there
// is no dynamic resizing.
const (
	MaxParticipants        = 64
	MaxEvents              = 64
	MaxParticipantNameSize = 64
	MaxEventNameSize       = 256
)

// Reserved built-in event names. Coordinator.AddEvent rejects a user event
// whose name collides with one of these, since both are qualified the
// same way and would otherwise alias the same shared waitable.
const (
	BuiltinNewParticipant = "mpevent_new_participant"
	BuiltinNewEvent       = "mpevent_new_event"
)

// waitableSize is the size in bytes of a per-event shared cell: a 64-bit
// word, though only the low 32 bits are used by futex operations.
const waitableSize = 8
