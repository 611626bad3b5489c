package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestRoom(t *testing.T) *Room {
	t.Helper()
	return newRoom("room-1", "ABCDEF", testRoomConfig(), 42, createTestLogger())
}

func TestRoomLifecycle(t *testing.T) {
	r := newTestRoom(t)
	require.Equal(t, "waiting", r.Status())
	require.True(t, r.isWaiting())

	r.markStarted()
	require.Equal(t, "playing", r.Status())
	require.True(t, r.isPlaying())

	r.markEnded()
	require.Equal(t, "finished", r.Status())

	r.markClosed()
	require.Equal(t, "closed", r.Status())
	require.True(t, r.machine.Terminated())
}

func TestRoomClosesFromAnyState(t *testing.T) {
	r := newTestRoom(t)
	r.markStarted()
	r.markClosed()
	require.Equal(t, "closed", r.Status())
}

func TestRoomRosterManagement(t *testing.T) {
	r := newTestRoom(t)

	host := r.addPlayer("p0", "Host")
	guest := r.addPlayer("p1", "Guest")
	require.Equal(t, 0, host)
	require.Equal(t, 1, guest)
	require.Equal(t, 0, r.slotOf("p0"))
	require.Equal(t, 1, r.slotOf("p1"))
	require.Equal(t, -1, r.slotOf("p2"))

	// Colors are unique across slots.
	require.NotEqual(t, r.slots[0].Color, r.slots[1].Color)

	// Removing the host hands the room to the next slot.
	r.removeSlot(0)
	require.Equal(t, 0, r.hostSlot)
	require.Equal(t, "p1", r.slots[0].PlayerID)
}

func TestRoomReadiness(t *testing.T) {
	r := newTestRoom(t)
	r.addPlayer("p0", "A")
	r.addPlayer("p1", "B")
	require.False(t, r.allReady())

	r.slots[0].Ready = true
	r.slots[1].Ready = true
	require.True(t, r.allReady())

	r.unreadyAll()
	require.False(t, r.allReady())
}

func TestRoomTimerGenerations(t *testing.T) {
	r := newTestRoom(t)

	gen := r.timerGen
	r.cancelTurnTimer()
	require.Equal(t, gen+1, r.timerGen)

	gen = r.graceGen
	r.cancelGraceTimer()
	require.Equal(t, gen+1, r.graceGen)
}

func TestLobbyStateSnapshot(t *testing.T) {
	r := newTestRoom(t)
	r.addPlayer("p0", "A")
	r.addPlayer("p1", "B")
	r.slots[1].Ready = true

	ls := r.lobbyState()
	require.Equal(t, "ABCDEF", ls.RoomCode)
	require.Equal(t, "waiting", ls.Status)
	require.Len(t, ls.Players, 2)
	require.True(t, ls.Players[1].Ready)
	require.Equal(t, "rocket-ring", ls.TrackID)
	require.Equal(t, 30000, ls.TurnTimeoutMs)
}
