package engine

import (
	"sort"

	"github.com/vctt94/heatracer/pkg/cards"
)

// StepReveal resolves phase 3 for the current player in turn order: flip
// stress cards, sum speed, move the car. Returns the slot processed and
// whether the phase is complete, at which point the match sits in the
// adrenaline phase.
func (m *Match) StepReveal() (int, bool, error) {
	if err := m.requirePhase(PhaseRevealAndMove); err != nil {
		return -1, false, err
	}

	slot := m.turnOrder[m.active]
	p := m.players[slot]

	if p.NonMover {
		p.Speed = 0
	} else {
		speed := 0
		for _, c := range p.Played {
			if c.IsStress() {
				speed += p.flipForSpeed()
				continue
			}
			v, _ := c.MovementValue()
			speed += v
		}
		p.Deck.Discard(p.Played...)
		p.Played = nil
		p.Speed = speed
		p.Position += speed
		m.updateFinalRound(p)
		m.log.Debugf("round %d: %s reveals for speed %d, position %d", m.round, p.ID, speed, p.Position)
	}

	done := m.advanceActive()
	if done {
		m.phase = PhaseAdrenaline
		m.active = 0
	}
	if err := m.checkInvariants(); err != nil {
		return slot, done, err
	}
	return slot, done, nil
}

// adrenalineCount returns how many trailing players receive adrenaline.
func adrenalineCount(roster int) int {
	if roster >= 5 {
		return 2
	}
	return 1
}

// ApplyAdrenaline resolves phase 4: the hindmost player (hindmost two in a
// 5+ roster) gains one speed, one space and one cooldown slot for the round.
// The match then enters the react phase.
func (m *Match) ApplyAdrenaline() error {
	if err := m.requirePhase(PhaseAdrenaline); err != nil {
		return err
	}

	order := make([]int, len(m.players))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		pi, pj := m.players[order[i]], m.players[order[j]]
		if pi.Position != pj.Position {
			return pi.Position < pj.Position
		}
		return pi.Slot < pj.Slot
	})

	n := adrenalineCount(len(m.players))
	if n > len(order) {
		n = len(order)
	}
	for _, slot := range order[:n] {
		p := m.players[slot]
		p.Speed++
		p.Position++
		p.AdrenalineBonus = 1
		m.updateFinalRound(p)
		m.log.Debugf("round %d: %s gains adrenaline at position %d", m.round, p.ID, p.Position)
	}

	m.phase = PhaseReact
	m.active = 0
	m.cooldownUsed = 0
	return m.checkInvariants()
}

// CornerResult reports one player's corner-check outcome.
type CornerResult struct {
	Slot     int
	HeatPaid int
	SpunOut  bool
}

// StepCornerCheck resolves phase 7 for the current player in turn order:
// every corner crossed this round is checked against the player's corner
// speed, overspeed is paid in engine heat, and an unpayable corner spins the
// car out. Returns the result, and whether the phase is complete, at which
// point the match sits in the discard phase.
func (m *Match) StepCornerCheck() (CornerResult, bool, error) {
	if err := m.requirePhase(PhaseCheckCorner); err != nil {
		return CornerResult{}, false, err
	}

	slot := m.turnOrder[m.active]
	p := m.players[slot]
	res := CornerResult{Slot: slot}

	// Walk the traversal space by space so a spinout can land the car one
	// space before the corner it failed, in absolute coordinates.
	for abs := p.PrevPosition + 1; abs <= p.Position; abs++ {
		loop := m.loopPos(abs)
		for _, corner := range m.track.Corners {
			if corner.Position != loop {
				continue
			}
			overspeed := p.Speed - m.effectiveLimit(corner)
			if overspeed <= 0 {
				continue
			}
			if p.engineHeat() >= overspeed {
				p.payHeat(overspeed)
				res.HeatPaid += overspeed
				m.log.Debugf("round %d: %s pays %d heat at corner %d", m.round, p.ID, overspeed, corner.ID)
				continue
			}

			// Spinout: back to the space before the corner, bottom gear,
			// stress into the discard pile. Remaining corners are skipped.
			stress := spinoutStress(p.Gear)
			for i := 0; i < stress; i++ {
				p.Deck.Discard(cards.Stress())
			}
			p.StressTaken += stress
			p.Position = abs - 1
			p.Gear = MinGear
			res.SpunOut = true
			m.log.Debugf("round %d: %s spins out at corner %d, position %d", m.round, p.ID, corner.ID, p.Position)
		}
		if res.SpunOut {
			break
		}
	}

	done := m.advanceActive()
	if done {
		m.phase = PhaseDiscard
		m.active = 0
	}
	if err := m.checkInvariants(); err != nil {
		return res, done, err
	}
	return res, done, nil
}

// Replenish resolves phase 9: hands refill to seven, finish-line crossings
// bank laps, and either the race ends or the next round begins. Returns true
// when the race finished.
func (m *Match) Replenish() (bool, error) {
	if err := m.requirePhase(PhaseReplenish); err != nil {
		return false, err
	}

	for _, p := range m.players {
		if need := HandSize - len(p.Hand); need > 0 {
			p.Hand = append(p.Hand, p.Deck.DrawN(need)...)
		}
		crossings, err := m.track.CrossesFinishLine(p.PrevPosition, p.Position)
		if err != nil {
			return false, invariantErr("lap accounting for %s: %v", p.ID, err)
		}
		if crossings > 0 {
			p.Laps += crossings
			m.log.Debugf("round %d: %s completes lap %d", m.round, p.ID, p.Laps)
		}
	}

	finished := false
	for _, p := range m.players {
		if p.Laps >= m.lapTarget {
			finished = true
			break
		}
	}

	if finished {
		m.status = RaceFinished
		m.phase = PhaseFinished
		m.log.Infof("race finished after %d rounds", m.round)
		return true, m.checkInvariants()
	}

	for _, p := range m.players {
		p.Speed = 0
		p.HasBoosted = false
		p.AdrenalineBonus = 0
		p.Played = nil
		p.NonMover = false
		p.PrevPosition = p.Position
	}
	m.round++
	m.phase = PhaseGearShift
	m.recomputeTurnOrder()
	m.active = 0
	return false, m.checkInvariants()
}
