package engine

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/decred/slog"
	"github.com/vctt94/heatracer/pkg/cards"
	"github.com/vctt94/heatracer/pkg/track"
)

// Config holds configuration for a new match.
type Config struct {
	Track       *track.Track
	LapTarget   int
	Seed        int64
	StressCount int // stress cards per starting deck, 0 means default
	Weather     *track.Weather
	Conditions  []track.RoadCondition
	Log         slog.Logger
}

// Match is the authoritative state of one race. It is a pure state machine:
// callers serialize access, every mutation either fully applies or fails
// without partial effect, and the full run is reproducible from the initial
// config, the seed and the action log.
type Match struct {
	players []*Player
	track   *track.Track
	rng     *rand.Rand
	seed    int64

	round  int
	phase  Phase
	status RaceStatus

	// turnOrder is a permutation of slots, leader first. active indexes
	// into it during sequential phases.
	turnOrder []int
	active    int

	// cooldownUsed tracks heat cooled by the active player this react turn.
	cooldownUsed int

	lapTarget   int
	stressCount int
	weather     *track.Weather
	conditions  []track.RoadCondition

	log slog.Logger
}

// NewMatch creates a match with one player per seat, slot order preserved.
func NewMatch(cfg Config, seats []Seat) (*Match, error) {
	if cfg.Track == nil {
		return nil, fmt.Errorf("match requires a track")
	}
	if err := cfg.Track.Validate(); err != nil {
		return nil, err
	}
	if len(seats) < 1 {
		return nil, fmt.Errorf("match requires at least one player")
	}
	if cfg.LapTarget < 1 {
		return nil, fmt.Errorf("invalid lap target %d", cfg.LapTarget)
	}
	stressCount := cfg.StressCount
	if stressCount == 0 {
		stressCount = cards.DefaultStressCount
	}
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}

	m := &Match{
		track:      cfg.Track,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		seed:       cfg.Seed,
		round:      1,
		phase:      PhaseGearShift,
		status:     RaceRacing,
		lapTarget:   cfg.LapTarget,
		stressCount: stressCount,
		weather:     cfg.Weather,
		conditions:  cfg.Conditions,
		log:         log,
	}

	m.players = make([]*Player, len(seats))
	for slot, seat := range seats {
		m.players[slot] = newPlayer(seat, slot, stressCount, m)
	}
	for _, p := range m.players {
		p.Hand = p.Deck.DrawN(HandSize)
	}
	m.recomputeTurnOrder()

	return m, nil
}

// Players returns the roster in slot order. Callers must not mutate.
func (m *Match) Players() []*Player { return m.players }

// PlayerAt returns the player in the given slot.
func (m *Match) PlayerAt(slot int) (*Player, error) {
	if slot < 0 || slot >= len(m.players) {
		return nil, fmt.Errorf("slot %d out of range", slot)
	}
	return m.players[slot], nil
}

// Phase returns the current phase.
func (m *Match) Phase() Phase { return m.phase }

// Round returns the current round number, starting at 1.
func (m *Match) Round() int { return m.round }

// Status returns the race status.
func (m *Match) Status() RaceStatus { return m.status }

// LapTarget returns the number of laps needed to finish.
func (m *Match) LapTarget() int { return m.lapTarget }

// Track returns the match track.
func (m *Match) Track() *track.Track { return m.track }

// TurnOrder returns the current turn order permutation.
func (m *Match) TurnOrder() []int {
	order := make([]int, len(m.turnOrder))
	copy(order, m.turnOrder)
	return order
}

// ActiveSlot returns the slot whose turn it is during sequential phases,
// or -1 otherwise.
func (m *Match) ActiveSlot() int {
	switch m.phase.Class() {
	case ClassSequentialAuto, ClassSequentialInput:
		if m.active >= 0 && m.active < len(m.turnOrder) {
			return m.turnOrder[m.active]
		}
	}
	return -1
}

// recomputeTurnOrder sorts slots by absolute position descending, ties
// broken by lower slot index. The race-line refinement for exact ties is
// still pending; slot order stands in for it.
func (m *Match) recomputeTurnOrder() {
	order := make([]int, len(m.players))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		pi, pj := m.players[order[i]], m.players[order[j]]
		if pi.Position != pj.Position {
			return pi.Position > pj.Position
		}
		return pi.Slot < pj.Slot
	})
	m.turnOrder = order
}

// requirePhase fails unless the match sits in the given phase.
func (m *Match) requirePhase(p Phase) error {
	if m.phase != p {
		return fmt.Errorf("action not valid in phase %s", m.phase)
	}
	return nil
}

// requireActive fails unless slot is the active player of a sequential phase.
func (m *Match) requireActive(slot int) error {
	if m.ActiveSlot() != slot {
		return ErrNotYourTurn
	}
	return nil
}

// requireFullBatch fails unless the batch covers the roster exactly.
func (m *Match) requireFullBatch(size int) error {
	if size != len(m.players) {
		return fmt.Errorf("batch covers %d of %d players", size, len(m.players))
	}
	return nil
}

// advanceActive moves to the next player of a sequential phase. It returns
// true when the last player has been processed.
func (m *Match) advanceActive() bool {
	m.active++
	m.cooldownUsed = 0
	return m.active >= len(m.turnOrder)
}

// loopPos reduces an absolute position to a loop index.
func (m *Match) loopPos(abs int) int {
	return abs % m.track.TotalSpaces
}

// effectiveLimit applies weather and road conditions to a corner's limit.
func (m *Match) effectiveLimit(c track.Corner) int {
	return m.track.EffectiveSpeedLimit(c, m.weather, m.conditions)
}

// updateFinalRound flags the closing round once a player's pending movement
// will complete the lap target at replenish.
func (m *Match) updateFinalRound(p *Player) {
	if m.status != RaceRacing {
		return
	}
	crossings, err := m.track.CrossesFinishLine(p.PrevPosition, p.Position)
	if err != nil {
		return
	}
	if p.Laps+crossings >= m.lapTarget {
		m.status = RaceFinalRound
		m.log.Debugf("final round: %s reaches lap target on movement", p.ID)
	}
}

// Standings returns slots ranked by laps, then absolute position, then slot.
func (m *Match) Standings() []int {
	order := make([]int, len(m.players))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		pi, pj := m.players[order[i]], m.players[order[j]]
		if pi.Laps != pj.Laps {
			return pi.Laps > pj.Laps
		}
		if pi.Position != pj.Position {
			return pi.Position > pj.Position
		}
		return pi.Slot < pj.Slot
	})
	return order
}
