package cards

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlayability(t *testing.T) {
	tests := []struct {
		card     Card
		playable bool
	}{
		{Speed(1), true},
		{Speed(4), true},
		{Heat(), false},
		{Stress(), false},
		{Upgrade(UpgradeSpeedZero), true},
		{Upgrade(UpgradeSpeedFive), true},
		{Upgrade(UpgradeStartingHeat), false},
	}
	for _, tt := range tests {
		if tt.card.Playable() != tt.playable {
			t.Errorf("%s: Playable() = %v, want %v", tt.card, tt.card.Playable(), tt.playable)
		}
	}
}

func TestMovementValue(t *testing.T) {
	v, ok := Speed(3).MovementValue()
	require.True(t, ok)
	require.Equal(t, 3, v)

	v, ok = Upgrade(UpgradeSpeedZero).MovementValue()
	require.True(t, ok)
	require.Equal(t, 0, v)

	v, ok = Upgrade(UpgradeSpeedFive).MovementValue()
	require.True(t, ok)
	require.Equal(t, 5, v)

	// Stress resolves through a draw-pile flip, not a fixed value.
	_, ok = Stress().MovementValue()
	require.False(t, ok)
}

func TestCardJSONRoundTrip(t *testing.T) {
	all := []Card{
		Speed(1), Speed(2), Speed(3), Speed(4),
		Heat(), Stress(),
		Upgrade(UpgradeSpeedZero), Upgrade(UpgradeSpeedFive), Upgrade(UpgradeStartingHeat),
	}
	for _, c := range all {
		data, err := json.Marshal(c)
		require.NoError(t, err)

		var back Card
		require.NoError(t, json.Unmarshal(data, &back))
		require.Equal(t, c, back, "round trip of %s", c)
	}
}

func TestCardJSONRejectsInvalid(t *testing.T) {
	for _, raw := range []string{
		`{"kind":"speed","value":5}`,
		`{"kind":"speed"}`,
		`{"kind":"upgrade","subtype":"nitro"}`,
		`{"kind":"wildcard"}`,
	} {
		var c Card
		require.Error(t, json.Unmarshal([]byte(raw), &c), "input %s", raw)
	}
}

func TestStartingDeckComposition(t *testing.T) {
	deck := StartingDeck(3)
	require.Len(t, deck, 18)

	byName := make(map[string]int)
	for _, c := range deck {
		byName[c.String()]++
	}
	for v := 1; v <= 4; v++ {
		require.Equal(t, 3, byName[Speed(v).String()], "speed %d count", v)
	}
	require.Equal(t, 1, byName["speed-0"])
	require.Equal(t, 1, byName["speed-5"])
	require.Equal(t, 1, byName["starting-heat"])
	require.Equal(t, 3, byName["stress"])

	// Heat never appears in the starting draw pile.
	require.Zero(t, byName["heat"])

	engine := StartingEngine()
	require.Len(t, engine, EngineHeatCount)
	for _, c := range engine {
		require.True(t, c.IsHeat())
	}
}
