package server

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/decred/slog"
	"github.com/stretchr/testify/require"
	"github.com/vctt94/heatracer/pkg/config"
	"github.com/vctt94/heatracer/pkg/engine"
	"golang.org/x/time/rate"
)

// createTestLogger creates a quiet logger for tests.
func createTestLogger() slog.Logger {
	backend := slog.NewBackend(os.Stderr)
	log := backend.Logger("test")
	log.SetLevel(slog.LevelError)
	return log
}

// newTestServer builds a server with phase timers disabled so actions alone
// drive the match.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.TurnTimeout = 0
	return NewServer(cfg, createTestLogger())
}

// testConn is an in-process stand-in for a websocket connection: the pumps
// never run, handlers are invoked directly and outbound messages are read
// straight off the send queue.
type testConn struct {
	*client
	t     *testing.T
	token string
	inbox []envelope
}

// envelope decodes the outbound wire shape.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// connect attaches a fresh session-bound test connection, mirroring what
// handleWS does for a real socket.
func connect(t *testing.T, s *Server) *testConn {
	t.Helper()
	c := &client{
		id:      "test-conn",
		srv:     s,
		send:    make(chan []byte, 256),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(s.cfg.InboundRate), s.cfg.InboundBurst),
	}
	sess, err := s.sessions.Create()
	require.NoError(t, err)
	c.bind(sess.PlayerID)
	s.bindConn(sess.PlayerID, c)

	c.enqueue(ServerMessage{Type: MsgSessionCreated, Payload: SessionCreatedPayload{
		SessionToken: sess.Token,
		PlayerID:     sess.PlayerID,
	}})
	tc := &testConn{client: c, t: t, token: sess.Token}
	tc.expect(MsgSessionCreated)
	return tc
}

// submit feeds one inbound message through the dispatcher.
func (tc *testConn) submit(msg ClientMessage) {
	tc.srv.handleMessage(tc.client, &msg)
}

// pump moves queued outbound messages into the inbox.
func (tc *testConn) pump() {
	for {
		select {
		case data := <-tc.send:
			var env envelope
			require.NoError(tc.t, json.Unmarshal(data, &env))
			tc.inbox = append(tc.inbox, env)
		default:
			return
		}
	}
}

// drain consumes and returns every received message.
func (tc *testConn) drain() []envelope {
	tc.pump()
	out := tc.inbox
	tc.inbox = nil
	return out
}

// expect consumes and returns the first message of the given type, leaving
// the rest in the inbox, and fails when none arrived.
func (tc *testConn) expect(msgType string) envelope {
	tc.t.Helper()
	tc.pump()
	for i, env := range tc.inbox {
		if env.Type == msgType {
			tc.inbox = append(tc.inbox[:i], tc.inbox[i+1:]...)
			return env
		}
	}
	tc.t.Fatalf("no %s message queued", msgType)
	return envelope{}
}

// lastState consumes every queued game-state message and returns the most
// recent partitioned game state. Other messages stay in the inbox.
func (tc *testConn) lastState() *engine.ClientGameState {
	tc.t.Helper()
	var state *engine.ClientGameState
	var rest []envelope
	for _, env := range tc.drain() {
		if env.Type != MsgGameStarted && env.Type != MsgPhaseChanged {
			rest = append(rest, env)
			continue
		}
		var payload GameStatePayload
		require.NoError(tc.t, json.Unmarshal(env.Payload, &payload))
		state = payload.State
	}
	tc.inbox = rest
	require.NotNil(tc.t, state, "no game state message queued")
	return state
}

// setupLobby creates a room with the first connection and joins the rest.
func setupLobby(t *testing.T, s *Server, players int) ([]*testConn, string) {
	t.Helper()
	conns := make([]*testConn, players)
	conns[0] = connect(t, s)
	conns[0].submit(ClientMessage{
		Type:        MsgCreateRoom,
		TrackID:     "rocket-ring",
		LapCount:    1,
		MaxPlayers:  6,
		DisplayName: "Host",
	})
	created := conns[0].expect(MsgRoomCreated)
	var payload RoomCreatedPayload
	require.NoError(t, json.Unmarshal(created.Payload, &payload))
	code := payload.RoomCode

	for i := 1; i < players; i++ {
		conns[i] = connect(t, s)
		conns[i].submit(ClientMessage{
			Type:        MsgJoinRoom,
			RoomCode:    code,
			DisplayName: "Racer",
		})
		conns[i].expect(MsgLobbyState)
	}
	return conns, code
}

// startGame readies everyone and starts the match.
func startGame(t *testing.T, conns []*testConn) {
	t.Helper()
	for _, tc := range conns {
		tc.submit(ClientMessage{Type: MsgSetReady, Ready: true})
	}
	conns[0].submit(ClientMessage{Type: MsgStartGame})
	for _, tc := range conns {
		tc.expect(MsgGameStarted)
	}
}

func TestPingPong(t *testing.T) {
	s := newTestServer(t)
	tc := connect(t, s)
	tc.submit(ClientMessage{Type: MsgPing})
	tc.expect(MsgPong)
}

func TestUnknownMessageType(t *testing.T) {
	s := newTestServer(t)
	tc := connect(t, s)
	tc.submit(ClientMessage{Type: "warp-drive"})
	env := tc.expect(MsgError)
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	require.Contains(t, payload.Message, "unknown message type")
}

func TestCreateRoom(t *testing.T) {
	s := newTestServer(t)
	conns, code := setupLobby(t, s, 1)

	require.Len(t, code, roomCodeLength)
	require.Equal(t, 1, s.rooms.Count())

	room, ok := s.rooms.ByCode(code)
	require.True(t, ok)
	require.Equal(t, "waiting", room.Status())
	require.Equal(t, conns[0].PlayerID(), room.slots[0].PlayerID)
}

func TestCreateRoomValidation(t *testing.T) {
	s := newTestServer(t)
	tc := connect(t, s)

	tc.submit(ClientMessage{Type: MsgCreateRoom, TrackID: "nowhere", LapCount: 1, MaxPlayers: 4, DisplayName: "X"})
	tc.expect(MsgError)

	tc.submit(ClientMessage{Type: MsgCreateRoom, TrackID: "rocket-ring", LapCount: 9, MaxPlayers: 4, DisplayName: "X"})
	tc.expect(MsgError)

	tc.submit(ClientMessage{Type: MsgCreateRoom, TrackID: "rocket-ring", LapCount: 1, MaxPlayers: 4, DisplayName: ""})
	tc.expect(MsgError)
}

func TestJoinRoomByCode(t *testing.T) {
	s := newTestServer(t)
	conns, code := setupLobby(t, s, 2)

	// The host heard about the join.
	conns[0].expect(MsgPlayerJoined)

	// Codes are case-insensitive on the way in.
	tc := connect(t, s)
	lower := ClientMessage{Type: MsgJoinRoom, RoomCode: codeToLower(code), DisplayName: "Late"}
	tc.submit(lower)
	tc.expect(MsgLobbyState)

	room, _ := s.rooms.ByCode(code)
	require.Len(t, room.slots, 3)
}

func codeToLower(code string) string {
	out := []byte(code)
	for i, b := range out {
		if b >= 'A' && b <= 'Z' {
			out[i] = b + 'a' - 'A'
		}
	}
	return string(out)
}

func TestJoinUnknownRoom(t *testing.T) {
	s := newTestServer(t)
	tc := connect(t, s)
	tc.submit(ClientMessage{Type: MsgJoinRoom, RoomCode: "ZZZZZZ", DisplayName: "Lost"})
	tc.expect(MsgError)
}

func TestStartGameGate(t *testing.T) {
	s := newTestServer(t)
	conns, _ := setupLobby(t, s, 2)

	// Not ready yet.
	conns[0].submit(ClientMessage{Type: MsgStartGame})
	conns[0].expect(MsgError)

	// Only the host can start.
	for _, tc := range conns {
		tc.submit(ClientMessage{Type: MsgSetReady, Ready: true})
	}
	conns[1].submit(ClientMessage{Type: MsgStartGame})
	conns[1].expect(MsgError)

	conns[0].submit(ClientMessage{Type: MsgStartGame})
	for _, tc := range conns {
		tc.expect(MsgGameStarted)
	}
	room, _ := s.rooms.ByCode(roomCodeOf(t, s))
	require.Equal(t, "playing", room.Status())
	require.NotNil(t, room.match)
}

// roomCodeOf returns the code of the single open room.
func roomCodeOf(t *testing.T, s *Server) string {
	t.Helper()
	rooms := s.rooms.All()
	require.Len(t, rooms, 1)
	return rooms[0].code
}

func TestSetPlayerInfoUnreadies(t *testing.T) {
	s := newTestServer(t)
	conns, code := setupLobby(t, s, 2)

	conns[1].submit(ClientMessage{Type: MsgSetReady, Ready: true})
	room, _ := s.rooms.ByCode(code)
	require.True(t, room.slots[1].Ready)

	conns[1].submit(ClientMessage{Type: MsgSetPlayerInfo, DisplayName: "Speedy"})
	require.False(t, room.slots[1].Ready)
	require.Equal(t, "Speedy", room.slots[1].Name)
}

func TestSetPlayerInfoColorConflict(t *testing.T) {
	s := newTestServer(t)
	conns, code := setupLobby(t, s, 2)
	room, _ := s.rooms.ByCode(code)

	taken := room.slots[0].Color
	conns[1].submit(ClientMessage{Type: MsgSetPlayerInfo, CarColor: taken})
	conns[1].expect(MsgError)
	require.NotEqual(t, taken, room.slots[1].Color)
}

func TestUpdateRoomConfigUnreadiesAll(t *testing.T) {
	s := newTestServer(t)
	conns, code := setupLobby(t, s, 2)
	room, _ := s.rooms.ByCode(code)

	for _, tc := range conns {
		tc.submit(ClientMessage{Type: MsgSetReady, Ready: true})
	}
	conns[0].submit(ClientMessage{Type: MsgUpdateRoomConfig, LapCount: 2})
	require.Equal(t, 2, room.cfg.LapCount)
	for _, slot := range room.slots {
		require.False(t, slot.Ready)
	}

	// Non-host cannot touch the config.
	conns[1].submit(ClientMessage{Type: MsgUpdateRoomConfig, LapCount: 3})
	conns[1].expect(MsgError)
	require.Equal(t, 2, room.cfg.LapCount)
}

func TestLeaveRoomHostTransfer(t *testing.T) {
	s := newTestServer(t)
	conns, code := setupLobby(t, s, 2)
	room, _ := s.rooms.ByCode(code)

	conns[0].submit(ClientMessage{Type: MsgLeaveRoom})
	require.Len(t, room.slots, 1)
	require.Equal(t, 0, room.hostSlot)
	require.Equal(t, conns[1].PlayerID(), room.slots[0].PlayerID)

	// The last player leaving destroys the room immediately.
	conns[1].submit(ClientMessage{Type: MsgLeaveRoom})
	require.Zero(t, s.rooms.Count())
}

func TestSessionTokenRoundTrip(t *testing.T) {
	s := newTestServer(t)
	tc := connect(t, s)

	sess, ok := s.sessions.Lookup(tc.token)
	require.True(t, ok)
	require.Equal(t, tc.PlayerID(), sess.PlayerID)
}

func TestResumeSessionRebindsConnection(t *testing.T) {
	s := newTestServer(t)
	conns, code := setupLobby(t, s, 2)

	// The guest's transport drops.
	guest := conns[1]
	guestPlayer := guest.PlayerID()
	guest.close()
	s.handleDisconnect(guest.client)

	conns[0].expect(MsgPlayerDisconnected)
	room, _ := s.rooms.ByCode(code)
	require.False(t, room.slots[1].Connected)

	// A fresh connection resumes with the prior token.
	fresh := connect(t, s)
	fresh.submit(ClientMessage{Type: MsgResumeSession, SessionToken: guest.token})

	fresh.expect(MsgSessionCreated)
	fresh.expect(MsgLobbyState)
	require.Equal(t, guestPlayer, fresh.PlayerID())
	require.True(t, room.slots[1].Connected)
	conns[0].expect(MsgPlayerReconnected)

	// The table points at the new connection.
	bound, ok := s.connOf(guestPlayer)
	require.True(t, ok)
	require.Equal(t, fresh.client, bound)
}

func TestResumeWithBadToken(t *testing.T) {
	s := newTestServer(t)
	tc := connect(t, s)
	tc.submit(ClientMessage{Type: MsgResumeSession, SessionToken: "forged"})
	tc.expect(MsgError)
}
