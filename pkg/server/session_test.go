package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionTokensAreLongAndUnique(t *testing.T) {
	sr := NewSessionRegistry(time.Hour, createTestLogger())
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		sess, err := sr.Create()
		require.NoError(t, err)
		// 24 bytes of entropy encode to far more than 20 base62 digits.
		require.Greater(t, len(sess.Token), 20)
		require.False(t, seen[sess.Token])
		seen[sess.Token] = true
	}
	require.Equal(t, 100, sr.Count())
}

func TestSessionLookupAndRoomBinding(t *testing.T) {
	sr := NewSessionRegistry(time.Hour, createTestLogger())
	sess, err := sr.Create()
	require.NoError(t, err)

	got, ok := sr.Lookup(sess.Token)
	require.True(t, ok)
	require.Same(t, sess, got)

	byPlayer, ok := sr.ByPlayer(sess.PlayerID)
	require.True(t, ok)
	require.Same(t, sess, byPlayer)

	sr.SetRoom(sess.PlayerID, "room-1")
	require.Equal(t, "room-1", sess.RoomID)
	sr.SetRoom(sess.PlayerID, "")
	require.Empty(t, sess.RoomID)
}

func TestSessionRemove(t *testing.T) {
	sr := NewSessionRegistry(time.Hour, createTestLogger())
	sess, err := sr.Create()
	require.NoError(t, err)

	sr.Remove(sess.Token)
	_, ok := sr.Lookup(sess.Token)
	require.False(t, ok)
	_, ok = sr.ByPlayer(sess.PlayerID)
	require.False(t, ok)
}

func TestSessionReapRespectsTTLAndPresence(t *testing.T) {
	sr := NewSessionRegistry(10*time.Millisecond, createTestLogger())

	offline, err := sr.Create()
	require.NoError(t, err)
	online, err := sr.Create()
	require.NoError(t, err)

	sr.Touch(offline.PlayerID, false)
	sr.Touch(online.PlayerID, true)
	time.Sleep(30 * time.Millisecond)

	reaped := sr.Reap()
	require.Equal(t, []string{offline.PlayerID}, reaped)

	_, ok := sr.Lookup(offline.Token)
	require.False(t, ok)
	_, ok = sr.Lookup(online.Token)
	require.True(t, ok)
}
