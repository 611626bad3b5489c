package engine

import (
	"fmt"
	"math/rand"

	"github.com/decred/slog"
	"github.com/vctt94/heatracer/pkg/cards"
	"github.com/vctt94/heatracer/pkg/track"
)

// PlayerState is the serializable state of one player.
type PlayerState struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Color           string          `json:"carColor"`
	Slot            int             `json:"slot"`
	Gear            int             `json:"gear"`
	Hand            []cards.Card    `json:"hand"`
	Deck            cards.DeckState `json:"deck"`
	Engine          []cards.Card    `json:"engine"`
	Played          []cards.Card    `json:"played"`
	Position        int             `json:"position"`
	PrevPosition    int             `json:"previousPosition"`
	Laps            int             `json:"lapCount"`
	Speed           int             `json:"speed"`
	HasBoosted      bool            `json:"hasBoosted"`
	AdrenalineBonus int             `json:"adrenalineCooldownBonus"`
	NonMover        bool            `json:"nonMover"`
	StressTaken     int             `json:"stressTaken"`
}

// MatchState is the serializable authoritative state of a match. A
// serialize/deserialize round trip yields an equal snapshot; the RNG stream
// restarts from the stored seed, so restored matches are for inspection and
// tests rather than byte-for-byte continuation.
type MatchState struct {
	TrackID      string                `json:"trackId"`
	Seed         int64                 `json:"seed"`
	Round        int                   `json:"round"`
	Phase        Phase                 `json:"phase"`
	Status       RaceStatus            `json:"raceStatus"`
	TurnOrder    []int                 `json:"turnOrder"`
	Active       int                   `json:"active"`
	CooldownUsed int                   `json:"cooldownUsed"`
	LapTarget    int                   `json:"lapTarget"`
	StressCount  int                   `json:"stressCount"`
	Weather      *track.Weather        `json:"weather,omitempty"`
	Conditions   []track.RoadCondition `json:"conditions,omitempty"`
	Players      []PlayerState         `json:"players"`
}

// State returns a snapshot of the full authoritative match state.
func (m *Match) State() *MatchState {
	s := &MatchState{
		TrackID:      m.track.ID,
		Seed:         m.seed,
		Round:        m.round,
		Phase:        m.phase,
		Status:       m.status,
		TurnOrder:    m.TurnOrder(),
		Active:       m.active,
		CooldownUsed: m.cooldownUsed,
		LapTarget:    m.lapTarget,
		StressCount:  m.stressCount,
		Weather:      m.weather,
		Conditions:   m.conditions,
	}
	for _, p := range m.players {
		s.Players = append(s.Players, PlayerState{
			ID:              p.ID,
			Name:            p.Name,
			Color:           p.Color,
			Slot:            p.Slot,
			Gear:            p.Gear,
			Hand:            copyCards(p.Hand),
			Deck:            p.Deck.State(),
			Engine:          copyCards(p.Engine),
			Played:          copyCards(p.Played),
			Position:        p.Position,
			PrevPosition:    p.PrevPosition,
			Laps:            p.Laps,
			Speed:           p.Speed,
			HasBoosted:      p.HasBoosted,
			AdrenalineBonus: p.AdrenalineBonus,
			NonMover:        p.NonMover,
			StressTaken:     p.StressTaken,
		})
	}
	return s
}

// RestoreMatch rebuilds a match from a snapshot.
func RestoreMatch(s *MatchState, log slog.Logger) (*Match, error) {
	if s == nil {
		return nil, fmt.Errorf("match state is nil")
	}
	trk, err := track.Lookup(s.TrackID)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Disabled
	}

	m := &Match{
		track:        trk,
		rng:          rand.New(rand.NewSource(s.Seed)),
		seed:         s.Seed,
		round:        s.Round,
		phase:        s.Phase,
		status:       s.Status,
		active:       s.Active,
		cooldownUsed: s.CooldownUsed,
		lapTarget:    s.LapTarget,
		stressCount:  s.StressCount,
		weather:      s.Weather,
		conditions:   s.Conditions,
		log:          log,
	}
	m.turnOrder = make([]int, len(s.TurnOrder))
	copy(m.turnOrder, s.TurnOrder)

	for _, ps := range s.Players {
		m.players = append(m.players, &Player{
			ID:              ps.ID,
			Name:            ps.Name,
			Color:           ps.Color,
			Slot:            ps.Slot,
			Gear:            ps.Gear,
			Hand:            copyCards(ps.Hand),
			Deck:            cards.FromState(ps.Deck, m.rng),
			Engine:          copyCards(ps.Engine),
			Played:          copyCards(ps.Played),
			Position:        ps.Position,
			PrevPosition:    ps.PrevPosition,
			Laps:            ps.Laps,
			Speed:           ps.Speed,
			HasBoosted:      ps.HasBoosted,
			AdrenalineBonus: ps.AdrenalineBonus,
			NonMover:        ps.NonMover,
			StressTaken:     ps.StressTaken,
		})
	}

	if err := m.checkInvariants(); err != nil {
		return nil, err
	}
	return m, nil
}
