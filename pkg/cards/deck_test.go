package cards

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeckDeterministicShuffle(t *testing.T) {
	a := NewDeck(StartingDeck(3), rand.New(rand.NewSource(42)))
	b := NewDeck(StartingDeck(3), rand.New(rand.NewSource(42)))

	for a.DrawCount() > 0 {
		ca, ok := a.Draw()
		require.True(t, ok)
		cb, ok := b.Draw()
		require.True(t, ok)
		require.Equal(t, ca, cb)
	}
}

func TestDeckRecyclesDiscard(t *testing.T) {
	d := NewDeck(StartingDeck(3), rand.New(rand.NewSource(1)))
	total := d.DrawCount()

	drawn := d.DrawN(total)
	require.Len(t, drawn, total)
	require.Zero(t, d.DrawCount())

	// Nothing left anywhere: draw fails.
	_, ok := d.Draw()
	require.False(t, ok)

	// Discard everything, then drawing shuffles the discard pile back in.
	d.Discard(drawn...)
	require.Equal(t, total, d.DiscardCount())

	c, ok := d.Draw()
	require.True(t, ok)
	require.NotZero(t, c.String())
	require.Zero(t, d.DiscardCount())
	require.Equal(t, total-1, d.DrawCount())
}

func TestDeckShortDraw(t *testing.T) {
	d := NewDeck([]Card{Speed(1), Speed(2)}, rand.New(rand.NewSource(1)))
	drawn := d.DrawN(5)
	require.Len(t, drawn, 2)
}

func TestDeckStateRoundTrip(t *testing.T) {
	d := NewDeck(StartingDeck(3), rand.New(rand.NewSource(7)))
	d.Discard(d.DrawN(4)...)

	state := d.State()
	restored := FromState(state, rand.New(rand.NewSource(7)))

	require.Equal(t, d.DrawCount(), restored.DrawCount())
	require.Equal(t, d.DiscardCount(), restored.DiscardCount())
	require.Equal(t, d.AllCards(), restored.AllCards())
}
