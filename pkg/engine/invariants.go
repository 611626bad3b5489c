package engine

import (
	"github.com/vctt94/heatracer/pkg/cards"
)

// cardCensus counts cards by their string form.
func cardCensus(cs []cards.Card) map[string]int {
	census := make(map[string]int)
	for _, c := range cs {
		census[c.String()]++
	}
	return census
}

// expectedCensus is the card composition a player must hold across all
// containers: the starting deck, the engine load and any spinout stress.
func (m *Match) expectedCensus(p *Player) map[string]int {
	expected := cardCensus(cards.StartingDeck(m.stressCount))
	for _, c := range cards.StartingEngine() {
		expected[c.String()]++
	}
	expected[cards.Stress().String()] += p.StressTaken
	return expected
}

// checkInvariants verifies internal consistency after a transition. A
// failure is fatal to the match; the caller surfaces it as an
// *InvariantError and closes the room.
func (m *Match) checkInvariants() error {
	// Turn order must be a permutation of the roster.
	if len(m.turnOrder) != len(m.players) {
		return invariantErr("turn order has %d entries for %d players", len(m.turnOrder), len(m.players))
	}
	seen := make(map[int]bool, len(m.turnOrder))
	for _, slot := range m.turnOrder {
		if slot < 0 || slot >= len(m.players) || seen[slot] {
			return invariantErr("turn order %v is not a permutation", m.turnOrder)
		}
		seen[slot] = true
	}

	for _, p := range m.players {
		// Card conservation across hand, draw, discard, engine and played.
		got := cardCensus(p.allCards())
		want := m.expectedCensus(p)
		if len(got) != len(want) {
			return invariantErr("player %s card census mismatch", p.ID)
		}
		for name, n := range want {
			if got[name] != n {
				return invariantErr("player %s holds %d %s cards, want %d", p.ID, got[name], name, n)
			}
		}

		if p.Gear < MinGear || p.Gear > MaxGear {
			return invariantErr("player %s in gear %d", p.ID, p.Gear)
		}
		if p.Position < 0 || p.PrevPosition < 0 {
			return invariantErr("player %s at negative position", p.ID)
		}

		// Played cards only exist between card selection and reveal.
		switch m.phase {
		case PhaseGearShift, PhaseDiscard, PhaseReplenish, PhaseFinished:
			if len(p.Played) != 0 {
				return invariantErr("player %s has played cards in phase %s", p.ID, m.phase)
			}
		}

		// Speed is zero outside the resolution phases.
		switch m.phase {
		case PhaseGearShift, PhasePlayCards:
			if p.Speed != 0 {
				return invariantErr("player %s has speed %d in phase %s", p.ID, p.Speed, m.phase)
			}
		}
	}

	return nil
}
