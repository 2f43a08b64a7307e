package mpevent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// A single process creates a namespace, adds a participant, adds an
// event, posts it, and observes an immediate non-blocking wait.
func TestSoloScenario(t *testing.T) {
	withTempNamespace(t)

	c := NewClean("ns1")
	id, err := c.AddParticipant("alice")
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)

	w, err := c.AddEvent(id, "e")
	require.NoError(t, err)
	require.Equal(t, uint64(1), c.NumEvents())

	_, err = w.PostWithValue(1, 1)
	require.NoError(t, err)

	require.NoError(t, w.Wait(0))
	require.NotEqual(t, uint32(0), w.GetValue())
	w.SetValue(0)

	require.NoError(t, c.Close(true))
}

// Two participants share a namespace via OpenExisting.
func TestTwoParticipantsShareNamespace(t *testing.T) {
	withTempNamespace(t)

	c1 := NewClean("ns2")
	defer c1.Close(true)

	_, err := c1.AddParticipant("a")
	require.NoError(t, err)

	c2 := OpenExisting("ns2")
	require.Equal(t, uint64(1), c2.NumParticipants())

	_, err = c2.AddParticipant("b")
	require.NoError(t, err)

	require.Equal(t, uint64(2), c1.NumParticipants())
}

// Capacity is enforced exactly at MaxParticipants.
func TestParticipantCapacity(t *testing.T) {
	withTempNamespace(t)

	c := NewClean("ns3_capacity")
	defer c.Close(true)

	for i := 0; i < MaxParticipants; i++ {
		_, err := c.AddParticipant(fmt.Sprintf("p%d", i))
		require.NoError(t, err)
	}

	_, err := c.AddParticipant("overflow")
	require.ErrorIs(t, err, ErrFull)
	require.Equal(t, uint64(MaxParticipants), c.NumParticipants())
}

func TestAddEventRepeatedReturnsSameWaitable(t *testing.T) {
	withTempNamespace(t)

	c := NewClean("ns_repeat_event")
	defer c.Close(true)

	w1, err := c.AddEvent(0, "shared")
	require.NoError(t, err)
	defer w1.Close(false)

	w2, err := c.AddEvent(0, "shared")
	require.NoError(t, err)
	defer w2.Close(false)

	require.Equal(t, uint64(1), c.NumEvents())

	_, err = w1.PostWithValue(77, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(77), w2.GetValue())
}

func TestOpenExistingFallsBackToNew(t *testing.T) {
	withTempNamespace(t)

	c := OpenExisting("ns_fresh_via_open_existing")
	defer c.Close(true)

	require.Equal(t, uint64(0), c.NumParticipants())
}

func TestNewCleanWipesPriorState(t *testing.T) {
	withTempNamespace(t)

	c1 := NewClean("ns_wipe")
	_, err := c1.AddParticipant("a")
	require.NoError(t, err)
	require.NoError(t, c1.Close(true))

	c2 := NewClean("ns_wipe")
	defer c2.Close(true)
	require.Equal(t, uint64(0), c2.NumParticipants())
}

func TestAddParticipantDuplicateName(t *testing.T) {
	withTempNamespace(t)

	c := NewClean("ns_dup")
	defer c.Close(true)

	_, err := c.AddParticipant("bob")
	require.NoError(t, err)

	_, err = c.AddParticipant("bob")
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestAddEventRejectsReservedBuiltinNames(t *testing.T) {
	withTempNamespace(t)

	c := NewClean("ns_reserved")
	defer c.Close(true)

	_, err := c.AddEvent(0, BuiltinNewParticipant)
	require.ErrorIs(t, err, ErrReservedName)

	_, err = c.AddEvent(0, BuiltinNewEvent)
	require.ErrorIs(t, err, ErrReservedName)
}

func TestPathReturnsDirectoryBackingFile(t *testing.T) {
	withTempNamespace(t)

	c := NewClean("ns_path")
	defer c.Close(true)

	require.Contains(t, c.Path(), "ns_path")
}
