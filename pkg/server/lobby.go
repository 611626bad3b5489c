package server

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/vctt94/heatracer/pkg/track"
)

// sessionOf resolves the connection's session, failing closed.
func (s *Server) sessionOf(c *client) (*Session, error) {
	playerID := c.PlayerID()
	if playerID == "" {
		return nil, errNoSession
	}
	sess, ok := s.sessions.ByPlayer(playerID)
	if !ok {
		return nil, errNoSession
	}
	return sess, nil
}

// roomOfSession resolves the session's current room.
func (s *Server) roomOfSession(sess *Session) (*Room, error) {
	if sess.RoomID == "" {
		return nil, errNotInRoom
	}
	room, ok := s.rooms.ByID(sess.RoomID)
	if !ok {
		return nil, errNotInRoom
	}
	return room, nil
}

// broadcastRoom queues a message for every roster member with a live
// connection. Safe to call while holding the room mutex: enqueue never
// blocks on I/O.
func (s *Server) broadcastRoom(r *Room, msg ServerMessage) {
	for _, slot := range r.slots {
		s.sendToPlayer(slot.PlayerID, msg)
	}
}

// broadcastLobby sends the lobby snapshot to the whole roster.
func (s *Server) broadcastLobby(r *Room) {
	s.broadcastRoom(r, ServerMessage{Type: MsgLobbyState, Payload: r.lobbyState()})
}

// validateDisplayName enforces the 1..20 character lobby rule.
func validateDisplayName(name string) error {
	if n := utf8.RuneCountInString(name); n < 1 || n > 20 {
		return fmt.Errorf("display name must be 1..20 characters")
	}
	return nil
}

func (s *Server) handleCreateRoom(c *client, msg *ClientMessage) {
	sess, err := s.sessionOf(c)
	if err != nil {
		c.enqueue(errorMsg(err.Error()))
		return
	}
	if sess.RoomID != "" {
		c.enqueue(errorMsg("already in a room"))
		return
	}
	if err := validateDisplayName(msg.DisplayName); err != nil {
		c.enqueue(errorMsg(err.Error()))
		return
	}
	if _, err := track.Lookup(msg.TrackID); err != nil {
		c.enqueue(errorMsg(err.Error()))
		return
	}

	cfg := RoomConfig{
		TrackID:     msg.TrackID,
		LapCount:    msg.LapCount,
		MaxPlayers:  msg.MaxPlayers,
		TurnTimeout: s.cfg.TurnTimeout,
	}
	if msg.TurnTimeoutMs != nil {
		cfg.TurnTimeout = time.Duration(*msg.TurnTimeoutMs) * time.Millisecond
	}
	if msg.SoloPractice != nil {
		cfg.SoloPractice = *msg.SoloPractice
	}
	if err := cfg.validate(); err != nil {
		c.enqueue(errorMsg(err.Error()))
		return
	}

	room, err := s.rooms.Create(cfg, s.log)
	if err != nil {
		c.enqueue(errorMsg(err.Error()))
		return
	}

	room.mu.Lock()
	room.addPlayer(sess.PlayerID, msg.DisplayName)
	lobby := room.lobbyState()
	code := room.code
	room.mu.Unlock()

	s.sessions.SetRoom(sess.PlayerID, room.id)
	s.metrics.RoomsOpen.Set(float64(s.rooms.Count()))
	s.log.Infof("player %s created room %s", sess.PlayerID, code)

	c.enqueue(ServerMessage{Type: MsgRoomCreated, Payload: RoomCreatedPayload{
		RoomCode: code,
		Lobby:    lobby,
	}})
}

func (s *Server) handleJoinRoom(c *client, msg *ClientMessage) {
	sess, err := s.sessionOf(c)
	if err != nil {
		c.enqueue(errorMsg(err.Error()))
		return
	}
	if sess.RoomID != "" {
		c.enqueue(errorMsg("already in a room"))
		return
	}
	if err := validateDisplayName(msg.DisplayName); err != nil {
		c.enqueue(errorMsg(err.Error()))
		return
	}
	room, ok := s.rooms.ByCode(msg.RoomCode)
	if !ok {
		c.enqueue(errorMsg(errRoomNotFound.Error()))
		return
	}

	room.mu.Lock()
	if !room.isWaiting() {
		room.mu.Unlock()
		c.enqueue(errorMsg(errRoomStarted.Error()))
		return
	}
	if len(room.slots) >= room.cfg.MaxPlayers {
		room.mu.Unlock()
		c.enqueue(errorMsg(errRoomFull.Error()))
		return
	}
	if room.slotOf(sess.PlayerID) >= 0 {
		room.mu.Unlock()
		c.enqueue(errorMsg("already a member of this room"))
		return
	}
	slot := room.addPlayer(sess.PlayerID, msg.DisplayName)
	room.cancelGraceTimer()
	s.broadcastRoom(room, ServerMessage{Type: MsgPlayerJoined, Payload: PlayerJoinedPayload{
		Slot:        slot,
		DisplayName: msg.DisplayName,
	}})
	s.broadcastLobby(room)
	roomID := room.id
	room.mu.Unlock()

	s.sessions.SetRoom(sess.PlayerID, roomID)
	s.log.Infof("player %s joined room %s", sess.PlayerID, msg.RoomCode)
}

func (s *Server) handleSetPlayerInfo(c *client, msg *ClientMessage) {
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
	if !room.isWaiting() {
		c.enqueue(errorMsg("cannot change player info during a game"))
		return
	}
	if msg.DisplayName != "" {
		if err := validateDisplayName(msg.DisplayName); err != nil {
			c.enqueue(errorMsg(err.Error()))
			return
		}
		room.slots[slot].Name = msg.DisplayName
	}
	if msg.CarColor != "" {
		if room.colorTaken(msg.CarColor, slot) {
			c.enqueue(errorMsg("car color already taken"))
			return
		}
		room.slots[slot].Color = msg.CarColor
	}

	// Changing identity resets readiness.
	room.slots[slot].Ready = false
	room.touch()
	s.broadcastLobby(room)
}

func (s *Server) handleSetReady(c *client, msg *ClientMessage) {
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
	if !room.isWaiting() {
		c.enqueue(errorMsg(errRoomStarted.Error()))
		return
	}
	room.slots[slot].Ready = msg.Ready
	room.touch()
	s.broadcastLobby(room)
}

func (s *Server) handleUpdateRoomConfig(c *client, msg *ClientMessage) {
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
	if slot != room.hostSlot {
		c.enqueue(errorMsg(errNotHost.Error()))
		return
	}
	if !room.isWaiting() {
		c.enqueue(errorMsg(errRoomStarted.Error()))
		return
	}

	cfg := room.cfg
	if msg.TrackID != "" {
		if _, err := track.Lookup(msg.TrackID); err != nil {
			c.enqueue(errorMsg(err.Error()))
			return
		}
		cfg.TrackID = msg.TrackID
	}
	if msg.LapCount != 0 {
		cfg.LapCount = msg.LapCount
	}
	if msg.MaxPlayers != 0 {
		if msg.MaxPlayers < len(room.slots) {
			c.enqueue(errorMsg("max players below current roster"))
			return
		}
		cfg.MaxPlayers = msg.MaxPlayers
	}
	if msg.TurnTimeoutMs != nil {
		cfg.TurnTimeout = time.Duration(*msg.TurnTimeoutMs) * time.Millisecond
	}
	if msg.SoloPractice != nil {
		cfg.SoloPractice = *msg.SoloPractice
	}
	if err := cfg.validate(); err != nil {
		c.enqueue(errorMsg(err.Error()))
		return
	}

	room.cfg = cfg
	// A config change invalidates everyone's consent to start.
	room.unreadyAll()
	room.touch()
	s.broadcastLobby(room)
}

func (s *Server) handleLeaveRoom(c *client) {
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
	slot := room.slotOf(sess.PlayerID)
	if slot < 0 {
		room.mu.Unlock()
		c.enqueue(errorMsg(errNotInRoom.Error()))
		return
	}

	if room.isWaiting() {
		name := room.slots[slot].Name
		room.removeSlot(slot)
		empty := len(room.slots) == 0
		if !empty {
			s.broadcastRoom(room, ServerMessage{Type: MsgPlayerLeft, Payload: PlayerLeftPayload{
				Slot:        slot,
				DisplayName: name,
				HostSlot:    room.hostSlot,
			}})
			s.broadcastLobby(room)
		}
		room.mu.Unlock()

		s.sessions.SetRoom(sess.PlayerID, "")
		if empty {
			s.destroyRoom(room, "last player left")
		}
		s.log.Infof("player %s left room %s", sess.PlayerID, room.code)
		return
	}

	// Mid-game the slot is preserved; the player goes permanently offline
	// and their turns auto-play.
	room.slots[slot].Connected = false
	name := room.slots[slot].Name
	s.broadcastRoom(room, ServerMessage{Type: MsgPlayerDisconnected, Payload: PresencePayload{
		Slot:        slot,
		DisplayName: name,
	}})
	s.continueWithoutSlot(room, slot)
	room.mu.Unlock()

	s.sessions.SetRoom(sess.PlayerID, "")
	s.log.Infof("player %s abandoned room %s mid-game", sess.PlayerID, room.code)
}

func (s *Server) handleStartGame(c *client) {
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
	if slot != room.hostSlot {
		c.enqueue(errorMsg(errNotHost.Error()))
		return
	}
	if !room.isWaiting() {
		c.enqueue(errorMsg(errRoomStarted.Error()))
		return
	}
	minPlayers := 2
	if room.cfg.SoloPractice {
		minPlayers = 1
	}
	if len(room.slots) < minPlayers {
		c.enqueue(errorMsg("not enough players to start"))
		return
	}
	if !room.allReady() {
		c.enqueue(errorMsg("not all players are ready"))
		return
	}

	if err := s.startMatch(room); err != nil {
		c.enqueue(errorMsg(err.Error()))
	}
}

// destroyRoom cancels every handle the room owns and drops it from the
// store. Session-registry edits happen outside the room mutex.
func (s *Server) destroyRoom(room *Room, reason string) {
	room.mu.Lock()
	room.cancelTurnTimer()
	room.cancelGraceTimer()
	room.markClosed()
	members := make([]string, 0, len(room.slots))
	for _, slot := range room.slots {
		members = append(members, slot.PlayerID)
	}
	room.mu.Unlock()

	s.rooms.Remove(room.id)
	for _, playerID := range members {
		if sess, ok := s.sessions.ByPlayer(playerID); ok && sess.RoomID == room.id {
			s.sessions.SetRoom(playerID, "")
		}
	}
	s.metrics.RoomsOpen.Set(float64(s.rooms.Count()))
	s.log.Infof("destroyed room %s: %s", room.code, reason)
}

// scheduleGraceDestroy arms the waiting-room grace period. The timer keeps
// only the room id and generation; it re-checks everything at fire time.
func (s *Server) scheduleGraceDestroy(room *Room) {
	room.cancelGraceTimer()
	gen := room.graceGen
	roomID := room.id
	time.AfterFunc(s.cfg.WaitingGrace, func() {
		s.onGraceExpired(roomID, gen)
	})
	s.log.Debugf("room %s empty, destruction in %s", room.code, s.cfg.WaitingGrace)
}

// onGraceExpired destroys a waiting room that stayed fully disconnected
// through the grace period.
func (s *Server) onGraceExpired(roomID string, gen int) {
	room, ok := s.rooms.ByID(roomID)
	if !ok {
		return
	}
	room.mu.Lock()
	if room.graceGen != gen || !room.isWaiting() || room.connectedCount() > 0 {
		room.mu.Unlock()
		return
	}
	room.mu.Unlock()
	s.destroyRoom(room, "grace period expired")
}
