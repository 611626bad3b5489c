package engine

// CooldownAllowance returns how many heat cards the slot may still move from
// hand to engine this react turn.
func (m *Match) CooldownAllowance(slot int) int {
	p := m.players[slot]
	allowance := cooldownSlots(p.Gear) + p.AdrenalineBonus - m.cooldownUsed
	if allowance < 0 {
		return 0
	}
	return allowance
}

// ReactCooldown moves the chosen heat cards from the active player's hand
// back into the engine, bounded by the gear's cooldown slots plus the
// adrenaline bonus. May be repeated within the same react turn up to the
// limit.
func (m *Match) ReactCooldown(slot int, heatIndices []int) error {
	if err := m.requirePhase(PhaseReact); err != nil {
		return err
	}
	if err := m.requireActive(slot); err != nil {
		return err
	}
	p := m.players[slot]

	if len(heatIndices) == 0 {
		return slotErr(slot, "no cards selected for cooldown")
	}
	if err := p.validateHandIndices(heatIndices); err != nil {
		return slotErr(slot, "%v", err)
	}
	for _, idx := range heatIndices {
		if !p.Hand[idx].IsHeat() {
			return slotErr(slot, "card %s is not a heat card", p.Hand[idx])
		}
	}
	if len(heatIndices) > m.CooldownAllowance(slot) {
		return slotErr(slot, "cooldown limit exceeded: %d slots left", m.CooldownAllowance(slot))
	}

	p.Engine = append(p.Engine, p.removeFromHand(heatIndices)...)
	m.cooldownUsed += len(heatIndices)
	m.log.Debugf("round %d: %s cools down %d heat", m.round, p.ID, len(heatIndices))
	return m.checkInvariants()
}

// ReactBoost spends one engine heat (free in a free-boost sector) to flip
// for an extra speed card. The value raises both position and speed, so it
// counts for the corner check. At most once per round.
func (m *Match) ReactBoost(slot int) error {
	if err := m.requirePhase(PhaseReact); err != nil {
		return err
	}
	if err := m.requireActive(slot); err != nil {
		return err
	}
	p := m.players[slot]

	if p.HasBoosted {
		return slotErr(slot, "already boosted this round")
	}
	free := m.track.FreeBoostAt(m.loopPos(p.Position), m.conditions)
	if !free && p.engineHeat() < 1 {
		return slotErr(slot, "boost requires a heat card in the engine")
	}

	if !free {
		p.payHeat(1)
	}
	value := p.flipForSpeed()
	p.Speed += value
	p.Position += value
	p.HasBoosted = true
	m.updateFinalRound(p)
	m.log.Debugf("round %d: %s boosts for %d, position %d", m.round, p.ID, value, p.Position)
	return m.checkInvariants()
}

// ReactDone ends the active player's react turn. Returns true when the
// phase is complete, at which point the match sits in the slipstream phase.
func (m *Match) ReactDone(slot int) (bool, error) {
	if err := m.requirePhase(PhaseReact); err != nil {
		return false, err
	}
	if err := m.requireActive(slot); err != nil {
		return false, err
	}

	done := m.advanceActive()
	if done {
		m.phase = PhaseSlipstream
		m.active = 0
	}
	return done, nil
}

// SlipstreamEligible reports whether the slot has another car one or two
// spaces ahead on the loop.
func (m *Match) SlipstreamEligible(slot int) bool {
	p := m.players[slot]
	mine := m.loopPos(p.Position)
	for _, other := range m.players {
		if other.Slot == slot {
			continue
		}
		gap := (m.loopPos(other.Position) - mine + m.track.TotalSpaces) % m.track.TotalSpaces
		if gap == 1 || gap == 2 {
			return true
		}
	}
	return false
}

// ApplySlipstream resolves the active player's slipstream decision. An
// accepted slipstream advances the car two spaces without touching speed, so
// it never influences the corner check. Returns true when the phase is
// complete, at which point the match sits in the check-corner phase.
func (m *Match) ApplySlipstream(slot int, accept bool) (bool, error) {
	if err := m.requirePhase(PhaseSlipstream); err != nil {
		return false, err
	}
	if err := m.requireActive(slot); err != nil {
		return false, err
	}
	p := m.players[slot]

	if accept {
		if !m.SlipstreamEligible(slot) {
			return false, slotErr(slot, "no car ahead to slipstream")
		}
		p.Position += 2
		m.updateFinalRound(p)
		m.log.Debugf("round %d: %s slipstreams to position %d", m.round, p.ID, p.Position)
	}

	done := m.advanceActive()
	if done {
		m.phase = PhaseCheckCorner
		m.active = 0
	}
	if err := m.checkInvariants(); err != nil {
		return done, err
	}
	return done, nil
}
