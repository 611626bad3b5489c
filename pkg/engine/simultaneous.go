package engine

import (
	"sort"
)

// ApplyGearShifts resolves phase 1 with one target gear per slot. The whole
// batch is validated before anything mutates: a single invalid selection
// rejects the batch and leaves the phase open.
func (m *Match) ApplyGearShifts(targets map[int]int) error {
	if err := m.requirePhase(PhaseGearShift); err != nil {
		return err
	}
	if err := m.requireFullBatch(len(targets)); err != nil {
		return err
	}

	// Validate every shift first.
	for slot, target := range targets {
		p, err := m.PlayerAt(slot)
		if err != nil {
			return err
		}
		if target < MinGear || target > MaxGear {
			return slotErr(slot, "invalid gear %d", target)
		}
		delta := target - p.Gear
		if delta < 0 {
			delta = -delta
		}
		if delta > 2 {
			return slotErr(slot, "cannot shift from gear %d to %d", p.Gear, target)
		}
		if delta == 2 && p.engineHeat() < 1 {
			return slotErr(slot, "shifting two gears requires a heat card in the engine")
		}
	}

	// Apply.
	for slot, target := range targets {
		p := m.players[slot]
		delta := target - p.Gear
		if delta < 0 {
			delta = -delta
		}
		if delta == 2 {
			p.payHeat(1)
		}
		if delta != 0 {
			m.log.Debugf("round %d: %s shifts %d -> %d", m.round, p.ID, p.Gear, target)
		}
		p.Gear = target
	}

	m.phase = PhasePlayCards
	return m.checkInvariants()
}

// ApplyPlayCards resolves phase 2 with one selection per slot. An empty
// selection takes the cluttered-hand path: gear resets to 1 and the player
// sits out movement. A non-empty selection must contain exactly the gear's
// card count, all playable. On success the turn order is recomputed and the
// match enters reveal-and-move.
func (m *Match) ApplyPlayCards(selections map[int][]int) error {
	if err := m.requirePhase(PhasePlayCards); err != nil {
		return err
	}
	if err := m.requireFullBatch(len(selections)); err != nil {
		return err
	}

	// Validate every selection first.
	for slot, indices := range selections {
		p, err := m.PlayerAt(slot)
		if err != nil {
			return err
		}
		if len(indices) == 0 {
			continue // cluttered hand
		}
		required := cardsRequired(p.Gear)
		if len(indices) != required {
			return slotErr(slot, "gear %d requires exactly %d cards, got %d", p.Gear, required, len(indices))
		}
		if err := p.validateHandIndices(indices); err != nil {
			return slotErr(slot, "%v", err)
		}
		for _, idx := range indices {
			if !p.Hand[idx].Playable() {
				return slotErr(slot, "card %s is not playable", p.Hand[idx])
			}
		}
	}

	// Apply.
	for slot, indices := range selections {
		p := m.players[slot]
		if len(indices) == 0 {
			p.Gear = MinGear
			p.Played = nil
			p.Speed = 0
			p.NonMover = true
			m.log.Debugf("round %d: %s has a cluttered hand", m.round, p.ID)
			continue
		}
		p.NonMover = false
		p.Played = append(p.Played, p.removeFromHand(indices)...)
	}

	// Leader first for the sequential phases of this round.
	m.recomputeTurnOrder()
	m.phase = PhaseRevealAndMove
	m.active = 0
	for _, p := range m.players {
		p.PrevPosition = p.Position
	}
	return m.checkInvariants()
}

// ApplyDiscards resolves phase 8 with an optional selection per slot. Only
// playable cards may be discarded.
func (m *Match) ApplyDiscards(selections map[int][]int) error {
	if err := m.requirePhase(PhaseDiscard); err != nil {
		return err
	}
	if err := m.requireFullBatch(len(selections)); err != nil {
		return err
	}

	for slot, indices := range selections {
		p, err := m.PlayerAt(slot)
		if err != nil {
			return err
		}
		if err := p.validateHandIndices(indices); err != nil {
			return slotErr(slot, "%v", err)
		}
		for _, idx := range indices {
			if !p.Hand[idx].Playable() {
				return slotErr(slot, "card %s cannot be discarded", p.Hand[idx])
			}
		}
	}

	for slot, indices := range selections {
		if len(indices) == 0 {
			continue
		}
		p := m.players[slot]
		sorted := make([]int, len(indices))
		copy(sorted, indices)
		sort.Ints(sorted)
		p.Deck.Discard(p.removeFromHand(sorted)...)
	}

	m.phase = PhaseReplenish
	return m.checkInvariants()
}
