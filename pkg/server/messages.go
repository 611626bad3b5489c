package server

import (
	"github.com/vctt94/heatracer/pkg/engine"
)

// Inbound message type tags.
const (
	MsgCreateRoom       = "create-room"
	MsgJoinRoom         = "join-room"
	MsgResumeSession    = "resume-session"
	MsgSetPlayerInfo    = "set-player-info"
	MsgSetReady         = "set-ready"
	MsgUpdateRoomConfig = "update-room-config"
	MsgLeaveRoom        = "leave-room"
	MsgStartGame        = "start-game"
	MsgGearShift        = "gear-shift"
	MsgPlayCards        = "play-cards"
	MsgReactCooldown    = "react-cooldown"
	MsgReactBoost       = "react-boost"
	MsgReactDone        = "react-done"
	MsgSlipstream       = "slipstream"
	MsgDiscard          = "discard"
	MsgPing             = "ping"
)

// Outbound message type tags.
const (
	MsgSessionCreated     = "session-created"
	MsgRoomCreated        = "room-created"
	MsgPlayerJoined       = "player-joined"
	MsgPlayerLeft         = "player-left"
	MsgLobbyState         = "lobby-state"
	MsgGameStarted        = "game-started"
	MsgPhaseChanged       = "phase-changed"
	MsgActionRequired     = "action-required"
	MsgPlayerDisconnected = "player-disconnected"
	MsgPlayerReconnected  = "player-reconnected"
	MsgGameOver           = "game-over"
	MsgError              = "error"
	MsgPong               = "pong"
)

// ClientMessage is the inbound tagged union, discriminated by Type. Only the
// fields relevant to the type are populated; pointer fields distinguish
// absent from zero where the difference matters.
type ClientMessage struct {
	Type string `json:"type"`

	// create-room, update-room-config
	TrackID       string `json:"trackId,omitempty"`
	LapCount      int    `json:"lapCount,omitempty"`
	MaxPlayers    int    `json:"maxPlayers,omitempty"`
	TurnTimeoutMs *int   `json:"turnTimeoutMs,omitempty"`
	SoloPractice  *bool  `json:"soloPractice,omitempty"`

	// create-room, join-room, set-player-info
	DisplayName string `json:"displayName,omitempty"`
	CarColor    string `json:"carColor,omitempty"`

	// join-room
	RoomCode string `json:"roomCode,omitempty"`

	// resume-session
	SessionToken string `json:"sessionToken,omitempty"`

	// set-ready
	Ready bool `json:"ready,omitempty"`

	// gear-shift
	TargetGear int `json:"targetGear,omitempty"`

	// play-cards, discard
	CardIndices []int `json:"cardIndices,omitempty"`

	// react-cooldown
	HeatIndices []int `json:"heatIndices,omitempty"`

	// slipstream
	Accept bool `json:"accept,omitempty"`
}

// ServerMessage is the outbound envelope.
type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// SessionCreatedPayload hands a fresh session token to a new connection.
type SessionCreatedPayload struct {
	SessionToken string `json:"sessionToken"`
	PlayerID     string `json:"playerId"`
}

// RoomCreatedPayload confirms room creation to the host.
type RoomCreatedPayload struct {
	RoomCode string      `json:"roomCode"`
	Lobby    *LobbyState `json:"lobby"`
}

// PlayerJoinedPayload announces a new roster member.
type PlayerJoinedPayload struct {
	Slot        int    `json:"slot"`
	DisplayName string `json:"displayName"`
}

// PlayerLeftPayload announces a roster departure.
type PlayerLeftPayload struct {
	Slot        int    `json:"slot"`
	DisplayName string `json:"displayName"`
	HostSlot    int    `json:"hostSlot"`
}

// LobbySlot is one roster entry in the lobby.
type LobbySlot struct {
	Slot        int    `json:"slot"`
	DisplayName string `json:"displayName"`
	CarColor    string `json:"carColor"`
	Ready       bool   `json:"ready"`
	Connected   bool   `json:"connected"`
}

// LobbyState is the full lobby snapshot broadcast on every lobby change.
type LobbyState struct {
	RoomCode      string      `json:"roomCode"`
	Status        string      `json:"status"`
	HostSlot      int         `json:"hostSlot"`
	TrackID       string      `json:"trackId"`
	LapCount      int         `json:"lapCount"`
	MaxPlayers    int         `json:"maxPlayers"`
	TurnTimeoutMs int         `json:"turnTimeoutMs"`
	SoloPractice  bool        `json:"soloPractice"`
	Players       []LobbySlot `json:"players"`
}

// GameStatePayload carries the recipient's partitioned view for
// game-started and phase-changed.
type GameStatePayload struct {
	State *engine.ClientGameState `json:"state"`
}

// ActionRequiredPayload prompts the active player of a sequential phase.
type ActionRequiredPayload struct {
	Phase      string `json:"phase"`
	ActiveSlot int    `json:"activePlayerIndex"`
	DeadlineMs int    `json:"deadlineMs,omitempty"`
}

// PresencePayload reports a player's connection change.
type PresencePayload struct {
	Slot        int    `json:"slot"`
	DisplayName string `json:"displayName"`
}

// GameOverStanding is one row of the final classification.
type GameOverStanding struct {
	Rank        int    `json:"rank"`
	Slot        int    `json:"slot"`
	DisplayName string `json:"displayName"`
	Laps        int    `json:"lapCount"`
	Position    int    `json:"position"`
}

// GameOverPayload closes out a race.
type GameOverPayload struct {
	Standings []GameOverStanding `json:"standings"`
}

// ErrorPayload is the uniform user-visible failure shape.
type ErrorPayload struct {
	Message string `json:"message"`
}

// errorMsg builds an error message.
func errorMsg(message string) ServerMessage {
	return ServerMessage{Type: MsgError, Payload: ErrorPayload{Message: message}}
}
