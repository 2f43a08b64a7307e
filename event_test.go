package mpevent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventSetNameRejectsOverlong(t *testing.T) {
	var e Event
	err := e.SetName(strings.Repeat("x", MaxEventNameSize))
	require.ErrorIs(t, err, ErrNameTooLong)
}

func TestEventSetIDAndName(t *testing.T) {
	var e Event
	require.NoError(t, e.SetName("ns_thing"))
	e.SetID(7)

	require.Equal(t, uint64(7), e.ID())
	require.Equal(t, "ns_thing", e.Name())
}

func TestEventGetWaitableRoundTrips(t *testing.T) {
	withTempNamespace(t)

	var e Event
	require.NoError(t, e.SetName("ns_event_waitable"))

	w, err := e.GetWaitable(currentShmDir())
	require.NoError(t, err)
	defer w.Close(true)

	_, err = w.PostWithValue(5, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(5), w.GetValue())
}

func TestEventGetWaitableEmptyNameFails(t *testing.T) {
	withTempNamespace(t)

	var e Event
	_, err := e.GetWaitable(currentShmDir())
	require.ErrorIs(t, err, ErrNoWaitable)
}
