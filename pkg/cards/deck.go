package cards

import (
	"math/rand"
)

// EngineHeatCount is the number of heat cards loaded into a player's engine
// at race start. Heat cards never appear in the starting draw pile.
const EngineHeatCount = 6

// DefaultStressCount is the number of stress cards in the default starting deck.
const DefaultStressCount = 3

// StartingDeck returns the starting draw pile composition for one player:
// three speed cards of each value 1..4, the three upgrade cards and
// stressCount stress cards.
func StartingDeck(stressCount int) []Card {
	deck := make([]Card, 0, 15+stressCount)
	for value := 1; value <= 4; value++ {
		for i := 0; i < 3; i++ {
			deck = append(deck, Speed(value))
		}
	}
	deck = append(deck,
		Upgrade(UpgradeSpeedZero),
		Upgrade(UpgradeSpeedFive),
		Upgrade(UpgradeStartingHeat),
	)
	for i := 0; i < stressCount; i++ {
		deck = append(deck, Stress())
	}
	return deck
}

// StartingEngine returns the heat cards a player's engine holds at race start.
func StartingEngine() []Card {
	engine := make([]Card, EngineHeatCount)
	for i := range engine {
		engine[i] = Heat()
	}
	return engine
}

// Deck holds a player's draw and discard piles. The draw pile is consumed
// from the top (index 0); when it empties the discard pile is shuffled in
// place and becomes the new draw pile.
type Deck struct {
	draw    []Card
	discard []Card
	rng     *rand.Rand
}

// NewDeck creates a deck from the given cards, shuffled with the supplied
// random number generator. The rng is retained for later reshuffles.
func NewDeck(cs []Card, rng *rand.Rand) *Deck {
	d := &Deck{
		draw: make([]Card, len(cs)),
		rng:  rng,
	}
	copy(d.draw, cs)
	d.shuffle()
	return d
}

// shuffle randomizes the order of the draw pile.
func (d *Deck) shuffle() {
	d.rng.Shuffle(len(d.draw), func(i, j int) {
		d.draw[i], d.draw[j] = d.draw[j], d.draw[i]
	})
}

// recycle moves the discard pile into the draw pile and shuffles it.
func (d *Deck) recycle() {
	d.draw = append(d.draw, d.discard...)
	d.discard = d.discard[:0]
	d.shuffle()
}

// Draw removes and returns the top card of the draw pile, recycling the
// discard pile if the draw pile is empty. Returns false when both piles
// are exhausted.
func (d *Deck) Draw() (Card, bool) {
	if len(d.draw) == 0 {
		if len(d.discard) == 0 {
			return Card{}, false
		}
		d.recycle()
	}
	card := d.draw[0]
	d.draw = d.draw[1:]
	return card, true
}

// DrawN draws up to n cards, returning fewer when draw and discard together
// hold less than n.
func (d *Deck) DrawN(n int) []Card {
	drawn := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		card, ok := d.Draw()
		if !ok {
			break
		}
		drawn = append(drawn, card)
	}
	return drawn
}

// Discard places cards on the discard pile.
func (d *Deck) Discard(cs ...Card) {
	d.discard = append(d.discard, cs...)
}

// DrawCount returns the number of cards in the draw pile.
func (d *Deck) DrawCount() int { return len(d.draw) }

// DiscardCount returns the number of cards in the discard pile.
func (d *Deck) DiscardCount() int { return len(d.discard) }

// DiscardCards returns a copy of the discard pile contents.
func (d *Deck) DiscardCards() []Card {
	cs := make([]Card, len(d.discard))
	copy(cs, d.discard)
	return cs
}

// AllCards returns a copy of every card currently in the deck, draw pile
// first. Used for conservation checks and state serialization.
func (d *Deck) AllCards() []Card {
	cs := make([]Card, 0, len(d.draw)+len(d.discard))
	cs = append(cs, d.draw...)
	cs = append(cs, d.discard...)
	return cs
}

// DeckState is the serializable state of a deck.
type DeckState struct {
	Draw    []Card `json:"draw"`
	Discard []Card `json:"discard"`
}

// State returns the current state of the deck.
func (d *Deck) State() DeckState {
	s := DeckState{
		Draw:    make([]Card, len(d.draw)),
		Discard: make([]Card, len(d.discard)),
	}
	copy(s.Draw, d.draw)
	copy(s.Discard, d.discard)
	return s
}

// FromState creates a deck holding exactly the given piles, unshuffled.
func FromState(s DeckState, rng *rand.Rand) *Deck {
	d := &Deck{
		draw:    make([]Card, len(s.Draw)),
		discard: make([]Card, len(s.Discard)),
		rng:     rng,
	}
	copy(d.draw, s.Draw)
	copy(d.discard, s.Discard)
	return d
}
