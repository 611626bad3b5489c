package server

import (
	"errors"
	"time"

	"github.com/vctt94/heatracer/pkg/engine"
	"github.com/vctt94/heatracer/pkg/track"
)

// startMatch builds the engine match and drives it to the first input
// point. Caller holds the room mutex.
func (s *Server) startMatch(r *Room) error {
	trk, err := track.Lookup(r.cfg.TrackID)
	if err != nil {
		return err
	}
	m, err := engine.NewMatch(engine.Config{
		Track:     trk,
		LapTarget: r.cfg.LapCount,
		Seed:      r.seed,
		Log:       s.log,
	}, r.seats())
	if err != nil {
		return err
	}

	r.match = m
	r.markStarted()
	r.touch()
	s.metrics.MatchesStarted.Inc()
	s.log.Infof("room %s started a %d-lap race on %s with %d players",
		r.code, r.cfg.LapCount, r.cfg.TrackID, len(r.slots))

	s.sendViews(r, MsgGameStarted)
	s.advance(r)
	return nil
}

// sendViews sends each roster member their partitioned view of the match.
func (s *Server) sendViews(r *Room, msgType string) {
	for i, slot := range r.slots {
		view, err := engine.ClientView(r.match, i)
		if err != nil {
			s.log.Errorf("room %s: partition for slot %d: %v", r.code, i, err)
			continue
		}
		s.sendToPlayer(slot.PlayerID, ServerMessage{Type: msgType, Payload: GameStatePayload{State: view}})
	}
}

// broadcastPhase pushes the current partitioned state to everyone.
func (s *Server) broadcastPhase(r *Room) {
	s.sendViews(r, MsgPhaseChanged)
}

// advance drives the engine forward through automatic and sequential-auto
// phases, auto-plays disconnected actors, and stops at the next point that
// needs player input. Caller holds the room mutex.
func (s *Server) advance(r *Room) {
	for {
		if r.match == nil || !r.isPlaying() {
			return
		}
		phase := r.match.Phase()

		switch {
		case phase == engine.PhaseFinished:
			s.finishMatch(r)
			return

		case phase == engine.PhaseAdrenaline:
			if err := r.match.ApplyAdrenaline(); err != nil {
				s.fatalRoomLocked(r, err)
				return
			}
			s.broadcastPhase(r)

		case phase == engine.PhaseReplenish:
			if _, err := r.match.Replenish(); err != nil {
				s.fatalRoomLocked(r, err)
				return
			}
			s.broadcastPhase(r)

		case phase == engine.PhaseRevealAndMove:
			if _, _, err := r.match.StepReveal(); err != nil {
				s.fatalRoomLocked(r, err)
				return
			}
			s.broadcastPhase(r)

		case phase == engine.PhaseCheckCorner:
			if _, _, err := r.match.StepCornerCheck(); err != nil {
				s.fatalRoomLocked(r, err)
				return
			}
			s.broadcastPhase(r)

		case phase.Class() == engine.ClassSimultaneous:
			r.pending = make(map[int]*pendingAction)
			r.phaseStartedAt = time.Now()
			s.broadcastPhase(r)
			if r.connectedCount() == 0 {
				// Everyone is gone; pause until a reconnect kickstarts us.
				r.cancelTurnTimer()
				return
			}
			s.startTurnTimer(r)
			return

		default: // sequential input: react or slipstream
			active := r.match.ActiveSlot()
			if active < 0 {
				s.fatalRoomLocked(r, errors.New("sequential phase without active player"))
				return
			}
			if !r.slots[active].Connected {
				if !s.applySequentialDefault(r, active) {
					return
				}
				s.broadcastPhase(r)
				continue
			}
			s.broadcastPhase(r)
			s.sendActionRequired(r, active)
			s.startTurnTimer(r)
			return
		}
	}
}

// applySequentialDefault plays the default action for a slot in a
// sequential-input phase: react finishes, slipstream declines. Returns
// false when the engine failed fatally.
func (s *Server) applySequentialDefault(r *Room, slot int) bool {
	var err error
	switch r.match.Phase() {
	case engine.PhaseReact:
		_, err = r.match.ReactDone(slot)
	case engine.PhaseSlipstream:
		_, err = r.match.ApplySlipstream(slot, false)
	}
	if err != nil {
		s.fatalRoomLocked(r, err)
		return false
	}
	return true
}

// simultaneousReady reports whether the open simultaneous phase can apply:
// every connected slot has submitted and at least one player remains online.
func (s *Server) simultaneousReady(r *Room) bool {
	if r.connectedCount() == 0 {
		return false
	}
	for i, slot := range r.slots {
		if !slot.Connected {
			continue
		}
		if _, ok := r.pending[i]; !ok {
			return false
		}
	}
	return true
}

// applySimultaneous builds the batch from collected actions, defaults
// filling the gaps, and applies it. A single invalid action rejects the
// whole batch: pending clears, the timer restarts, the offender gets the
// error and the phase stays open. Returns false when the room closed.
func (s *Server) applySimultaneous(r *Room) bool {
	phase := r.match.Phase()
	var err error

	switch phase {
	case engine.PhaseGearShift:
		batch := make(map[int]int, len(r.slots))
		players := r.match.Players()
		for i := range r.slots {
			if pa, ok := r.pending[i]; ok {
				batch[i] = pa.gear
			} else {
				batch[i] = players[i].Gear // no change
			}
		}
		err = r.match.ApplyGearShifts(batch)

	case engine.PhasePlayCards:
		batch := make(map[int][]int, len(r.slots))
		for i := range r.slots {
			if pa, ok := r.pending[i]; ok {
				batch[i] = pa.indices
			} else {
				batch[i] = nil // cluttered-hand default
			}
		}
		err = r.match.ApplyPlayCards(batch)

	case engine.PhaseDiscard:
		batch := make(map[int][]int, len(r.slots))
		for i := range r.slots {
			if pa, ok := r.pending[i]; ok {
				batch[i] = pa.indices
			} else {
				batch[i] = nil
			}
		}
		err = r.match.ApplyDiscards(batch)

	default:
		s.log.Errorf("room %s: applySimultaneous in phase %s", r.code, phase)
		return true
	}

	if err != nil {
		var inv *engine.InvariantError
		if errors.As(err, &inv) {
			s.fatalRoomLocked(r, err)
			return false
		}
		var se *engine.SlotError
		if errors.As(err, &se) {
			r.pending = make(map[int]*pendingAction)
			s.startTurnTimer(r)
			if se.Slot >= 0 && se.Slot < len(r.slots) {
				s.sendToPlayer(r.slots[se.Slot].PlayerID, errorMsg(se.Err.Error()))
			}
			s.broadcastPhase(r)
			return true
		}
		s.log.Errorf("room %s: batch apply: %v", r.code, err)
		return true
	}

	r.pending = make(map[int]*pendingAction)
	r.cancelTurnTimer()
	s.advance(r)
	return true
}

// actionPhase maps an inbound action kind to the phase it belongs to.
func actionPhase(msgType string) (engine.Phase, bool) {
	switch msgType {
	case MsgGearShift:
		return engine.PhaseGearShift, true
	case MsgPlayCards:
		return engine.PhasePlayCards, true
	case MsgReactCooldown, MsgReactBoost, MsgReactDone:
		return engine.PhaseReact, true
	case MsgSlipstream:
		return engine.PhaseSlipstream, true
	case MsgDiscard:
		return engine.PhaseDiscard, true
	}
	return 0, false
}

// handleGameAction authorizes and routes one in-match action.
func (s *Server) handleGameAction(c *client, msg *ClientMessage) {
	sess, err := s.sessionOf(c)
	if err != nil {
		c.enqueue(errorMsg(err.Error()))
		return
	}
	room, err := s.roomOfSession(sess)
	if err != nil {
		c.enqueue(errorMsg(err.Error()))
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	slot := room.slotOf(sess.PlayerID)
	if slot < 0 {
		c.enqueue(errorMsg(errNotInRoom.Error()))
		return
	}
	if !room.isPlaying() || room.match == nil {
		c.enqueue(errorMsg(errNoMatch.Error()))
		return
	}

	// Stale-action drop: an action kind that does not apply to the current
	// phase is ignored without an error, so retransmits and UI latency
	// stay silent.
	wantPhase, ok := actionPhase(msg.Type)
	if !ok || wantPhase != room.match.Phase() {
		s.log.Debugf("room %s: dropping stale %s from slot %d in phase %s",
			room.code, msg.Type, slot, room.match.Phase())
		return
	}
	room.touch()

	switch msg.Type {
	case MsgGearShift:
		room.pending[slot] = &pendingAction{gear: msg.TargetGear}
		s.maybeApplySimultaneous(room)

	case MsgPlayCards, MsgDiscard:
		room.pending[slot] = &pendingAction{indices: msg.CardIndices}
		s.maybeApplySimultaneous(room)

	case MsgReactCooldown:
		s.sequentialAction(room, c, func() error {
			return room.match.ReactCooldown(slot, msg.HeatIndices)
		}, false)

	case MsgReactBoost:
		s.sequentialAction(room, c, func() error {
			return room.match.ReactBoost(slot)
		}, false)

	case MsgReactDone:
		s.sequentialAction(room, c, func() error {
			_, err := room.match.ReactDone(slot)
			return err
		}, true)

	case MsgSlipstream:
		s.sequentialAction(room, c, func() error {
			_, err := room.match.ApplySlipstream(slot, msg.Accept)
			return err
		}, true)
	}
}

// maybeApplySimultaneous applies the open batch once every connected slot
// has submitted.
func (s *Server) maybeApplySimultaneous(r *Room) {
	if s.simultaneousReady(r) {
		r.cancelTurnTimer()
		s.applySimultaneous(r)
	}
}

// sequentialAction runs one sequential-phase engine call, reporting
// validation failures to the sender only. advances indicates the action
// may move the active player or phase forward.
func (s *Server) sequentialAction(r *Room, c *client, fn func() error, advances bool) {
	err := fn()
	if err != nil {
		var inv *engine.InvariantError
		if errors.As(err, &inv) {
			s.fatalRoomLocked(r, err)
			return
		}
		if errors.Is(err, engine.ErrNotYourTurn) {
			c.enqueue(errorMsg("Not your turn"))
			return
		}
		c.enqueue(errorMsg(err.Error()))
		return
	}
	if advances {
		r.cancelTurnTimer()
		s.advance(r)
	} else {
		s.broadcastPhase(r)
	}
}

// sendActionRequired prompts the active player of a sequential phase.
func (s *Server) sendActionRequired(r *Room, slot int) {
	payload := ActionRequiredPayload{
		Phase:      r.match.Phase().String(),
		ActiveSlot: slot,
	}
	if r.cfg.TurnTimeout > 0 {
		payload.DeadlineMs = int(r.cfg.TurnTimeout / time.Millisecond)
	}
	s.sendToPlayer(r.slots[slot].PlayerID, ServerMessage{Type: MsgActionRequired, Payload: payload})
}

// startTurnTimer arms the phase timer. The handle captures only the room id
// and generation; it re-looks the room up at fire time and no-ops when
// stale. A zero timeout disables phase timers.
func (s *Server) startTurnTimer(r *Room) {
	if r.cfg.TurnTimeout == 0 {
		return
	}
	r.cancelTurnTimer()
	gen := r.timerGen
	roomID := r.id
	r.phaseStartedAt = time.Now()
	time.AfterFunc(r.cfg.TurnTimeout, func() {
		s.onTurnTimeout(roomID, gen)
	})
}

// onTurnTimeout fills defaults for the stalled actors and advances.
func (s *Server) onTurnTimeout(roomID string, gen int) {
	room, ok := s.rooms.ByID(roomID)
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.timerGen != gen || !room.isPlaying() || room.match == nil {
		return
	}
	s.log.Debugf("room %s: phase %s timed out", room.code, room.match.Phase())

	switch room.match.Phase().Class() {
	case engine.ClassSimultaneous:
		room.cancelTurnTimer()
		s.applySimultaneous(room)
	case engine.ClassSequentialInput:
		active := room.match.ActiveSlot()
		if active < 0 {
			return
		}
		room.cancelTurnTimer()
		if s.applySequentialDefault(room, active) {
			s.advance(room)
		}
	}
}

// finishMatch closes out a finished race. Caller holds the room mutex.
func (s *Server) finishMatch(r *Room) {
	s.broadcastPhase(r)

	standings := r.match.Standings()
	players := r.match.Players()
	payload := GameOverPayload{}
	for rank, slot := range standings {
		p := players[slot]
		payload.Standings = append(payload.Standings, GameOverStanding{
			Rank:        rank + 1,
			Slot:        slot,
			DisplayName: p.Name,
			Laps:        p.Laps,
			Position:    p.Position,
		})
	}

	r.cancelTurnTimer()
	r.markEnded()
	r.match = nil
	r.pending = make(map[int]*pendingAction)
	r.touch()
	s.metrics.MatchesFinished.Inc()
	s.log.Infof("room %s race finished", r.code)

	s.broadcastRoom(r, ServerMessage{Type: MsgGameOver, Payload: payload})
}

// fatalRoomLocked handles an engine invariant violation: the match aborts
// and the room closes, while the process keeps serving other rooms. Caller
// holds the room mutex; store and session cleanup happen off it.
func (s *Server) fatalRoomLocked(r *Room, err error) {
	s.log.Errorf("room %s: fatal: %v", r.code, err)
	s.broadcastRoom(r, errorMsg("internal game error; the match has been aborted"))

	r.cancelTurnTimer()
	r.cancelGraceTimer()
	r.match = nil
	r.markClosed()

	members := make([]string, 0, len(r.slots))
	for _, slot := range r.slots {
		members = append(members, slot.PlayerID)
	}
	roomID := r.id
	go func() {
		s.rooms.Remove(roomID)
		for _, playerID := range members {
			if sess, ok := s.sessions.ByPlayer(playerID); ok && sess.RoomID == roomID {
				s.sessions.SetRoom(playerID, "")
			}
		}
		s.metrics.RoomsOpen.Set(float64(s.rooms.Count()))
	}()
}

// continueWithoutSlot keeps a playing room moving after a slot went
// offline. Caller holds the room mutex.
func (s *Server) continueWithoutSlot(r *Room, slot int) {
	if r.match == nil || !r.isPlaying() {
		return
	}
	switch r.match.Phase().Class() {
	case engine.ClassSimultaneous:
		s.maybeApplySimultaneous(r)
	case engine.ClassSequentialInput:
		if r.match.ActiveSlot() == slot {
			r.cancelTurnTimer()
			if s.applySequentialDefault(r, slot) {
				s.advance(r)
			}
		}
	}
}

// markDisconnected updates presence after a transport drop and keeps the
// room from stalling on the missing player.
func (s *Server) markDisconnected(playerID string) {
	sess, ok := s.sessions.ByPlayer(playerID)
	if !ok || sess.RoomID == "" {
		return
	}
	room, ok := s.rooms.ByID(sess.RoomID)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	slot := room.slotOf(playerID)
	if slot < 0 || !room.slots[slot].Connected {
		return
	}
	room.slots[slot].Connected = false
	s.log.Debugf("room %s: slot %d disconnected", room.code, slot)

	s.broadcastRoom(room, ServerMessage{Type: MsgPlayerDisconnected, Payload: PresencePayload{
		Slot:        slot,
		DisplayName: room.slots[slot].Name,
	}})

	if room.isWaiting() {
		if room.connectedCount() == 0 {
			s.scheduleGraceDestroy(room)
		} else {
			s.broadcastLobby(room)
		}
		return
	}
	s.continueWithoutSlot(room, slot)
}

// markReconnected restores presence after a session resume: the grace
// cleanup is canceled, the roster hears about the return and the player
// gets a fresh partitioned view of wherever the match now stands.
func (s *Server) markReconnected(sess *Session) {
	if sess.RoomID == "" {
		return
	}
	room, ok := s.rooms.ByID(sess.RoomID)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	slot := room.slotOf(sess.PlayerID)
	if slot < 0 {
		return
	}
	room.slots[slot].Connected = true
	room.cancelGraceTimer()
	room.touch()
	s.log.Debugf("room %s: slot %d reconnected", room.code, slot)

	s.broadcastRoom(room, ServerMessage{Type: MsgPlayerReconnected, Payload: PresencePayload{
		Slot:        slot,
		DisplayName: room.slots[slot].Name,
	}})

	s.resyncSlotLocked(room, slot)
	s.kickstart(room)
}

// resyncPlayer sends the player their current view; used for idempotent
// duplicate resumes.
func (s *Server) resyncPlayer(sess *Session) {
	if sess.RoomID == "" {
		return
	}
	room, ok := s.rooms.ByID(sess.RoomID)
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	slot := room.slotOf(sess.PlayerID)
	if slot < 0 {
		return
	}
	s.resyncSlotLocked(room, slot)
}

// resyncSlotLocked pushes the slot's current state. Caller holds the mutex.
func (s *Server) resyncSlotLocked(r *Room, slot int) {
	playerID := r.slots[slot].PlayerID
	if r.isPlaying() && r.match != nil {
		view, err := engine.ClientView(r.match, slot)
		if err != nil {
			s.log.Errorf("room %s: resync slot %d: %v", r.code, slot, err)
			return
		}
		s.sendToPlayer(playerID, ServerMessage{Type: MsgPhaseChanged, Payload: GameStatePayload{State: view}})
		return
	}
	s.sendToPlayer(playerID, ServerMessage{Type: MsgLobbyState, Payload: r.lobbyState()})
}

// kickstart re-arms the current input phase after a reconnect, including
// resuming a match that paused with the whole roster offline.
func (s *Server) kickstart(r *Room) {
	if !r.isPlaying() || r.match == nil {
		return
	}
	switch r.match.Phase().Class() {
	case engine.ClassSimultaneous:
		if s.simultaneousReady(r) {
			r.cancelTurnTimer()
			s.applySimultaneous(r)
			return
		}
		s.startTurnTimer(r)
	case engine.ClassSequentialInput:
		active := r.match.ActiveSlot()
		if active < 0 {
			return
		}
		if !r.slots[active].Connected {
			r.cancelTurnTimer()
			if s.applySequentialDefault(r, active) {
				s.advance(r)
			}
			return
		}
		s.sendActionRequired(r, active)
		s.startTurnTimer(r)
	default:
		s.advance(r)
	}
}
