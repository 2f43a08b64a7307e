// Package mpevent is a multi-process event coordination library built on
// POSIX shared memory and Linux futexes. Processes that open the same
// namespace join one coordination group: they can register as
// participants, publish named events, and block/wake on those events
// without a broker process. Waiting on an event that has already been
// posted, and taking a free directory lock, stay in user space; posting
// an event and releasing the lock always make one futex wake system call,
// even when nobody is parked.
//
// A Coordinator owns the shared Directory for a namespace — the
// participant table, the event table, and the monotonic id counters. A
// Subscriber is a thin, per-process convenience layer over a Coordinator:
// it registers itself as a participant, caches the waitables it creates,
// and exposes edge-triggered discovery of new participants and events.
package mpevent
