package engine

import (
	"fmt"

	"github.com/vctt94/heatracer/pkg/cards"
)

// PlayerInfo is the public identity of a slot, shared with every recipient.
type PlayerInfo struct {
	Slot  int    `json:"slot"`
	Name  string `json:"name"`
	Color string `json:"carColor"`
}

// SelfView is the recipient's own state: full card contents everywhere
// except the draw pile, which stays a count even for its owner.
type SelfView struct {
	ID                string       `json:"id"`
	Slot              int          `json:"slot"`
	Gear              int          `json:"gear"`
	Position          int          `json:"position"`
	PrevPosition      int          `json:"previousPosition"`
	Laps              int          `json:"lapCount"`
	Speed             int          `json:"speed"`
	HasBoosted        bool         `json:"hasBoosted"`
	AdrenalineBonus   int          `json:"adrenalineCooldownBonus"`
	Hand              []cards.Card `json:"hand"`
	DiscardPile       []cards.Card `json:"discardPile"`
	EngineCards       []cards.Card `json:"engine"`
	PlayedCards       []cards.Card `json:"playedCards"`
	DrawPileCount     int          `json:"drawPileCount"`
	CooldownSlotsLeft int          `json:"cooldownSlotsLeft"`
}

// OpponentCounts hides card identities behind container sizes.
type OpponentCounts struct {
	Hand    int `json:"hand"`
	Draw    int `json:"draw"`
	Discard int `json:"discard"`
	Engine  int `json:"engine"`
	Played  int `json:"played"`
}

// OpponentView is what a recipient learns about another slot: scalars and
// counts only, never a card identity.
type OpponentView struct {
	Slot       int            `json:"slot"`
	Gear       int            `json:"gear"`
	Position   int            `json:"position"`
	Laps       int            `json:"lapCount"`
	Speed      int            `json:"speed"`
	HasBoosted bool           `json:"hasBoosted"`
	Counts     OpponentCounts `json:"counts"`
}

// ClientGameState is the per-recipient partition of the match state carried
// by game-started and phase-changed messages.
type ClientGameState struct {
	Round       int            `json:"round"`
	Phase       string         `json:"phase"`
	PhaseType   string         `json:"phaseType"`
	ActiveSlot  int            `json:"activePlayerIndex"`
	TurnOrder   []int          `json:"turnOrder"`
	LapTarget   int            `json:"lapTarget"`
	RaceStatus  string         `json:"raceStatus"`
	TotalSpaces int            `json:"totalSpaces"`
	PlayerInfo  []PlayerInfo   `json:"playerInfo"`
	Self        SelfView       `json:"self"`
	Opponents   []OpponentView `json:"opponents"`
}

// ClientView partitions the match state for the recipient slot. It is a
// pure function of the match state: no side effects, stable output for a
// given input.
func ClientView(m *Match, slot int) (*ClientGameState, error) {
	if slot < 0 || slot >= len(m.players) {
		return nil, fmt.Errorf("slot %d out of range", slot)
	}
	self := m.players[slot]

	view := &ClientGameState{
		Round:       m.round,
		Phase:       m.phase.String(),
		PhaseType:   m.phase.Class().String(),
		ActiveSlot:  m.ActiveSlot(),
		TurnOrder:   m.TurnOrder(),
		LapTarget:   m.lapTarget,
		RaceStatus:  m.status.String(),
		TotalSpaces: m.track.TotalSpaces,
		Self: SelfView{
			ID:                self.ID,
			Slot:              self.Slot,
			Gear:              self.Gear,
			Position:          self.Position,
			PrevPosition:      self.PrevPosition,
			Laps:              self.Laps,
			Speed:             self.Speed,
			HasBoosted:        self.HasBoosted,
			AdrenalineBonus:   self.AdrenalineBonus,
			Hand:              copyCards(self.Hand),
			DiscardPile:       self.Deck.DiscardCards(),
			EngineCards:       copyCards(self.Engine),
			PlayedCards:       copyCards(self.Played),
			DrawPileCount:     self.Deck.DrawCount(),
			CooldownSlotsLeft: m.CooldownAllowance(slot),
		},
	}

	for _, p := range m.players {
		view.PlayerInfo = append(view.PlayerInfo, PlayerInfo{
			Slot:  p.Slot,
			Name:  p.Name,
			Color: p.Color,
		})
		if p.Slot == slot {
			continue
		}
		view.Opponents = append(view.Opponents, OpponentView{
			Slot:       p.Slot,
			Gear:       p.Gear,
			Position:   p.Position,
			Laps:       p.Laps,
			Speed:      p.Speed,
			HasBoosted: p.HasBoosted,
			Counts: OpponentCounts{
				Hand:    len(p.Hand),
				Draw:    p.Deck.DrawCount(),
				Discard: p.Deck.DiscardCount(),
				Engine:  len(p.Engine),
				Played:  len(p.Played),
			},
		})
	}

	return view, nil
}

// copyCards returns a defensive copy of a card slice, never nil.
func copyCards(cs []cards.Card) []cards.Card {
	out := make([]cards.Card, len(cs))
	copy(out, cs)
	return out
}
