package engine

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientViewSelf(t *testing.T) {
	m := newTestMatch(t, 3, 42)

	for slot := 0; slot < 3; slot++ {
		view, err := ClientView(m, slot)
		require.NoError(t, err)

		p := m.players[slot]
		require.Equal(t, p.ID, view.Self.ID)
		require.Equal(t, slot, view.Self.Slot)
		require.Len(t, view.Self.Hand, HandSize)
		require.Len(t, view.Self.EngineCards, 6)
		require.Equal(t, p.Deck.DrawCount(), view.Self.DrawPileCount)
		require.Len(t, view.Opponents, 2)
		require.Len(t, view.PlayerInfo, 3)
	}
}

func TestClientViewHidesOpponentCards(t *testing.T) {
	m := newTestMatch(t, 2, 42)
	view, err := ClientView(m, 0)
	require.NoError(t, err)

	// Opponent entries serialize to counts and scalars only; no card
	// identity field may appear anywhere under opponents.
	data, err := json.Marshal(view.Opponents)
	require.NoError(t, err)
	require.False(t, strings.Contains(string(data), `"kind"`), "opponent view leaks card identities: %s", data)

	require.Equal(t, HandSize, view.Opponents[0].Counts.Hand)
	require.Equal(t, 6, view.Opponents[0].Counts.Engine)
}

func TestClientViewPure(t *testing.T) {
	m := newTestMatch(t, 2, 42)

	a, err := ClientView(m, 0)
	require.NoError(t, err)
	b, err := ClientView(m, 0)
	require.NoError(t, err)
	require.Equal(t, a, b)

	// Building a view must not disturb the authoritative state.
	before := m.State()
	_, err = ClientView(m, 1)
	require.NoError(t, err)
	require.Equal(t, before, m.State())
}

func TestClientViewSharedFields(t *testing.T) {
	m := newTestMatch(t, 2, 42)
	runRound(t, m)

	view, err := ClientView(m, 1)
	require.NoError(t, err)
	require.Equal(t, 2, view.Round)
	require.Equal(t, "gear-shift", view.Phase)
	require.Equal(t, "simultaneous", view.PhaseType)
	require.Equal(t, "racing", view.RaceStatus)
	require.Equal(t, 48, view.TotalSpaces)
	require.Equal(t, 1, view.LapTarget)
	require.Len(t, view.TurnOrder, 2)
}

func TestClientViewRejectsBadSlot(t *testing.T) {
	m := newTestMatch(t, 2, 42)
	_, err := ClientView(m, 2)
	require.Error(t, err)
	_, err = ClientView(m, -1)
	require.Error(t, err)
}
