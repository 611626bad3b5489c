package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchStateRoundTrip(t *testing.T) {
	m := newTestMatch(t, 3, 42)
	runRound(t, m)
	runRound(t, m)

	state := m.State()
	data, err := json.Marshal(state)
	require.NoError(t, err)

	var decoded MatchState
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, *state, decoded)

	restored, err := RestoreMatch(&decoded, createTestLogger())
	require.NoError(t, err)
	require.Equal(t, state, restored.State())
}

func TestRestoreRejectsNil(t *testing.T) {
	_, err := RestoreMatch(nil, nil)
	require.Error(t, err)
}

func TestRestoreRejectsUnknownTrack(t *testing.T) {
	m := newTestMatch(t, 2, 1)
	state := m.State()
	state.TrackID = "gone"
	_, err := RestoreMatch(state, nil)
	require.Error(t, err)
}
