package engine

import (
	"fmt"
	"sort"

	"github.com/vctt94/heatracer/pkg/cards"
)

// Seat describes one entrant at match creation.
type Seat struct {
	ID    string
	Name  string
	Color string
}

// Player is the per-player authoritative state inside a match. All card
// containers together with the played pile hold a conserved multiset of
// cards; only stress added by spinouts grows it.
type Player struct {
	ID    string
	Name  string
	Color string
	Slot  int

	Gear int
	Hand []cards.Card
	Deck *cards.Deck // draw + discard piles
	// Engine holds heat cards paid for gear jumps, boosts and corners.
	Engine []cards.Card
	// Played holds face-down cards between play-cards and reveal.
	Played []cards.Card

	// Position is absolute: it accumulates past the loop length.
	Position     int
	PrevPosition int
	Laps         int

	// Per-round fields, reset at replenish.
	Speed           int
	HasBoosted      bool
	AdrenalineBonus int
	NonMover        bool

	// StressTaken counts stress cards added by spinouts, for conservation
	// checks.
	StressTaken int
}

// newPlayer builds a player with the starting deck and engine load.
func newPlayer(seat Seat, slot, stressCount int, m *Match) *Player {
	return &Player{
		ID:     seat.ID,
		Name:   seat.Name,
		Color:  seat.Color,
		Slot:   slot,
		Gear:   MinGear,
		Deck:   cards.NewDeck(cards.StartingDeck(stressCount), m.rng),
		Engine: cards.StartingEngine(),
	}
}

// engineHeat returns the number of heat cards in the engine.
func (p *Player) engineHeat() int {
	return cards.CountHeat(p.Engine)
}

// payHeat moves n heat cards from the engine to the discard pile. The caller
// must have checked availability.
func (p *Player) payHeat(n int) {
	for i := 0; i < n; i++ {
		idx := -1
		for j, c := range p.Engine {
			if c.IsHeat() {
				idx = j
				break
			}
		}
		if idx < 0 {
			panic(fmt.Sprintf("player %s: paying heat with empty engine", p.ID))
		}
		p.Deck.Discard(p.Engine[idx])
		p.Engine = append(p.Engine[:idx], p.Engine[idx+1:]...)
	}
}

// removeFromHand removes the cards at the given indices from the hand and
// returns them in index order. Indices must be pre-validated.
func (p *Player) removeFromHand(indices []int) []cards.Card {
	removed := make([]cards.Card, 0, len(indices))
	for _, idx := range indices {
		removed = append(removed, p.Hand[idx])
	}
	// Delete highest index first so remaining indices stay valid.
	del := make([]int, len(indices))
	copy(del, indices)
	sort.Sort(sort.Reverse(sort.IntSlice(del)))
	for _, idx := range del {
		p.Hand = append(p.Hand[:idx], p.Hand[idx+1:]...)
	}
	return removed
}

// validateHandIndices checks that indices are unique and within the hand.
func (p *Player) validateHandIndices(indices []int) error {
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(p.Hand) {
			return fmt.Errorf("card index %d out of range", idx)
		}
		if seen[idx] {
			return fmt.Errorf("duplicate card index %d", idx)
		}
		seen[idx] = true
	}
	return nil
}

// flipForSpeed flips cards off the draw pile until a speed card appears.
// Every flipped card, the terminating speed card included, goes to the
// discard pile. Returns the speed value found, or 0 when the piles run dry.
func (p *Player) flipForSpeed() int {
	for {
		card, ok := p.Deck.Draw()
		if !ok {
			return 0
		}
		p.Deck.Discard(card)
		if card.GetKind() == cards.KindSpeed {
			return card.GetValue()
		}
	}
}

// allCards returns every card the player owns across all containers.
func (p *Player) allCards() []cards.Card {
	cs := make([]cards.Card, 0, len(p.Hand)+len(p.Engine)+len(p.Played))
	cs = append(cs, p.Hand...)
	cs = append(cs, p.Deck.AllCards()...)
	cs = append(cs, p.Engine...)
	cs = append(cs, p.Played...)
	return cs
}
