package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/vctt94/heatracer/pkg/engine"
	"github.com/vctt94/heatracer/pkg/statemachine"
)

// RoomConfig is the host-adjustable room configuration.
type RoomConfig struct {
	TrackID      string
	LapCount     int
	MaxPlayers   int
	TurnTimeout  time.Duration
	SoloPractice bool
}

// validate rejects configurations outside the lobby limits.
func (c *RoomConfig) validate() error {
	if c.LapCount < 1 || c.LapCount > 3 {
		return fmt.Errorf("lap count must be 1..3")
	}
	if c.MaxPlayers < 2 || c.MaxPlayers > 6 {
		return fmt.Errorf("max players must be 2..6")
	}
	if c.TurnTimeout < 0 {
		return fmt.Errorf("turn timeout must not be negative")
	}
	return nil
}

// playerSlot is one roster entry. Slots are allocated on join and preserved
// across reconnection; they are only removable while the room is waiting.
type playerSlot struct {
	PlayerID  string
	Name      string
	Color     string
	Ready     bool
	Connected bool
}

// pendingAction is a collected simultaneous-phase action for one slot.
type pendingAction struct {
	gear    int
	indices []int
}

// RoomStateFn is a room lifecycle state function.
type RoomStateFn = statemachine.StateFn[Room]

// Room is one match lifecycle container. Every mutation happens under mu;
// the controller's per-room serialization hangs off this single mutex.
type Room struct {
	id   string
	code string
	cfg  RoomConfig
	mu   sync.Mutex

	hostSlot int
	slots    []*playerSlot

	match *engine.Match
	seed  int64

	// pending collects simultaneous-phase actions until the batch applies.
	pending map[int]*pendingAction

	// timerGen and graceGen invalidate stale timer firings: a handle that
	// fires with an old generation no-ops.
	timerGen       int
	graceGen       int
	phaseStartedAt time.Time
	lastActivityAt time.Time

	machine *statemachine.StateMachine[Room]
	started bool
	ended   bool
	closed  bool

	log slog.Logger
}

// Room lifecycle state functions.

func roomStateWaiting(r *Room, cb func(string, statemachine.StateEvent)) RoomStateFn {
	if r.closed {
		if cb != nil {
			cb("waiting", statemachine.StateExited)
		}
		return roomStateClosed
	}
	if r.started {
		if cb != nil {
			cb("waiting", statemachine.StateExited)
		}
		return roomStatePlaying
	}
	if cb != nil {
		cb("waiting", statemachine.StateEntered)
	}
	return roomStateWaiting
}

func roomStatePlaying(r *Room, cb func(string, statemachine.StateEvent)) RoomStateFn {
	if r.closed {
		if cb != nil {
			cb("playing", statemachine.StateExited)
		}
		return roomStateClosed
	}
	if r.ended {
		if cb != nil {
			cb("playing", statemachine.StateExited)
		}
		return roomStateFinished
	}
	if cb != nil {
		cb("playing", statemachine.StateEntered)
	}
	return roomStatePlaying
}

func roomStateFinished(r *Room, cb func(string, statemachine.StateEvent)) RoomStateFn {
	if r.closed {
		if cb != nil {
			cb("finished", statemachine.StateExited)
		}
		return roomStateClosed
	}
	if cb != nil {
		cb("finished", statemachine.StateEntered)
	}
	return roomStateFinished
}

func roomStateClosed(r *Room, cb func(string, statemachine.StateEvent)) RoomStateFn {
	if cb != nil {
		cb("closed", statemachine.StateEntered)
	}
	return nil // terminal
}

// newRoom builds a room in the waiting state.
func newRoom(id, code string, cfg RoomConfig, seed int64, log slog.Logger) *Room {
	r := &Room{
		id:             id,
		code:           code,
		cfg:            cfg,
		hostSlot:       0,
		pending:        make(map[int]*pendingAction),
		seed:           seed,
		lastActivityAt: time.Now(),
		log:            log,
	}
	r.machine = statemachine.New(r, roomStateWaiting)
	return r
}

// Status returns the lifecycle state name.
func (r *Room) Status() string {
	switch {
	case r.machine.Is(roomStateWaiting):
		return "waiting"
	case r.machine.Is(roomStatePlaying):
		return "playing"
	case r.machine.Is(roomStateFinished):
		return "finished"
	default:
		return "closed"
	}
}

// isWaiting reports whether the room still sits in the lobby.
func (r *Room) isWaiting() bool { return r.machine.Is(roomStateWaiting) }

// isPlaying reports whether a match is in progress.
func (r *Room) isPlaying() bool { return r.machine.Is(roomStatePlaying) }

// markStarted transitions waiting -> playing.
func (r *Room) markStarted() {
	r.started = true
	r.machine.Dispatch(nil)
}

// markEnded transitions playing -> finished.
func (r *Room) markEnded() {
	r.ended = true
	r.machine.Dispatch(nil)
}

// markClosed transitions any state -> closed and lets the closed state run
// once more so the machine terminates.
func (r *Room) markClosed() {
	r.closed = true
	r.machine.Dispatch(nil)
	r.machine.Dispatch(nil)
}

// slotOf returns the slot index for a player id, or -1.
func (r *Room) slotOf(playerID string) int {
	for i, s := range r.slots {
		if s != nil && s.PlayerID == playerID {
			return i
		}
	}
	return -1
}

// carColors is the palette assigned to joining players.
var carColors = []string{"red", "blue", "green", "yellow", "black", "silver"}

// pickColor returns the first palette color not in use.
func (r *Room) pickColor() string {
	used := make(map[string]bool, len(r.slots))
	for _, s := range r.slots {
		if s != nil {
			used[s.Color] = true
		}
	}
	for _, c := range carColors {
		if !used[c] {
			return c
		}
	}
	return carColors[0]
}

// addPlayer appends a roster slot. The caller checks capacity and state.
func (r *Room) addPlayer(playerID, name string) int {
	r.slots = append(r.slots, &playerSlot{
		PlayerID:  playerID,
		Name:      name,
		Color:     r.pickColor(),
		Connected: true,
	})
	r.touch()
	return len(r.slots) - 1
}

// removeSlot drops a roster slot; only legal while waiting. Host ownership
// moves to the first remaining slot when the host leaves.
func (r *Room) removeSlot(slot int) {
	r.slots = append(r.slots[:slot], r.slots[slot+1:]...)
	if r.hostSlot == slot {
		r.hostSlot = 0
	} else if r.hostSlot > slot {
		r.hostSlot--
	}
	r.touch()
}

// connectedCount returns how many roster members have a live connection.
func (r *Room) connectedCount() int {
	n := 0
	for _, s := range r.slots {
		if s.Connected {
			n++
		}
	}
	return n
}

// allReady reports whether every roster member is ready.
func (r *Room) allReady() bool {
	for _, s := range r.slots {
		if !s.Ready {
			return false
		}
	}
	return len(r.slots) > 0
}

// unreadyAll clears every ready flag, e.g. after a config change.
func (r *Room) unreadyAll() {
	for _, s := range r.slots {
		s.Ready = false
	}
}

// colorTaken reports whether another slot already uses the color.
func (r *Room) colorTaken(color string, exceptSlot int) bool {
	for i, s := range r.slots {
		if i != exceptSlot && s.Color == color {
			return true
		}
	}
	return false
}

// touch refreshes the inactivity clock read by the stale-room sweep.
func (r *Room) touch() {
	r.lastActivityAt = time.Now()
}

// lobbyState builds the lobby snapshot broadcast on lobby changes.
func (r *Room) lobbyState() *LobbyState {
	ls := &LobbyState{
		RoomCode:      r.code,
		Status:        r.Status(),
		HostSlot:      r.hostSlot,
		TrackID:       r.cfg.TrackID,
		LapCount:      r.cfg.LapCount,
		MaxPlayers:    r.cfg.MaxPlayers,
		TurnTimeoutMs: int(r.cfg.TurnTimeout / time.Millisecond),
		SoloPractice:  r.cfg.SoloPractice,
	}
	for i, s := range r.slots {
		ls.Players = append(ls.Players, LobbySlot{
			Slot:        i,
			DisplayName: s.Name,
			CarColor:    s.Color,
			Ready:       s.Ready,
			Connected:   s.Connected,
		})
	}
	return ls
}

// seats converts the roster to engine seats.
func (r *Room) seats() []engine.Seat {
	seats := make([]engine.Seat, len(r.slots))
	for i, s := range r.slots {
		seats[i] = engine.Seat{ID: s.PlayerID, Name: s.Name, Color: s.Color}
	}
	return seats
}

// cancelTurnTimer invalidates any outstanding phase timer.
func (r *Room) cancelTurnTimer() {
	r.timerGen++
}

// cancelGraceTimer invalidates any outstanding grace-period cleanup.
func (r *Room) cancelGraceTimer() {
	r.graceGen++
}
