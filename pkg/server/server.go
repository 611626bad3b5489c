package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/vctt94/heatracer/pkg/config"
)

// Server owns the room store, the session registry and the connection
// table, and mediates between transport frames and match state.
type Server struct {
	cfg      config.Config
	log      slog.Logger
	rooms    *RoomStore
	sessions *SessionRegistry
	metrics  *Metrics

	connMu sync.RWMutex
	conns  map[string]*client // playerID -> live connection, 0 or 1 per player

	upgrader websocket.Upgrader
	httpSrv  *http.Server
	cron     *cron.Cron
	promReg  *prometheus.Registry
}

// NewServer builds a server from configuration.
func NewServer(cfg config.Config, log slog.Logger) *Server {
	if log == nil {
		log = slog.Disabled
	}
	promReg := prometheus.NewRegistry()
	s := &Server{
		cfg:      cfg,
		log:      log,
		rooms:    NewRoomStore(log),
		sessions: NewSessionRegistry(cfg.SessionTTL, log),
		metrics:  NewMetrics(promReg),
		promReg:  promReg,
		conns:    make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  2048,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	return s
}

// Run serves until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))

	s.httpSrv = &http.Server{Addr: s.cfg.ListenAddr, Handler: mux}

	if err := s.startSweeper(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.cfg.ListenAddr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.Shutdown()
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Shutdown stops the sweeper and the listener.
func (s *Server) Shutdown() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.httpSrv != nil {
		s.httpSrv.Shutdown(context.Background())
	}
	s.log.Infof("server stopped")
}

// handleWS upgrades a connection, mints its session and starts the pumps.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("websocket upgrade failed: %v", err)
		return
	}

	c := newClient(conn, s)

	sess, err := s.sessions.Create()
	if err != nil {
		s.log.Errorf("create session: %v", err)
		conn.Close()
		return
	}
	c.bind(sess.PlayerID)
	s.bindConn(sess.PlayerID, c)
	s.metrics.ConnectionsOpen.Inc()
	s.metrics.SessionsActive.Set(float64(s.sessions.Count()))

	go c.writePump()
	go c.readPump()

	c.enqueue(ServerMessage{Type: MsgSessionCreated, Payload: SessionCreatedPayload{
		SessionToken: sess.Token,
		PlayerID:     sess.PlayerID,
	}})
}

// bindConn points the connection table at c for the given player, closing
// any previous connection bound to the same identity.
func (s *Server) bindConn(playerID string, c *client) {
	s.connMu.Lock()
	old := s.conns[playerID]
	s.conns[playerID] = c
	s.connMu.Unlock()

	if old != nil && old != c {
		old.close()
	}
}

// unbindConn clears the table entry if it still points at c.
func (s *Server) unbindConn(playerID string, c *client) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conns[playerID] == c {
		delete(s.conns, playerID)
		return true
	}
	return false
}

// connOf returns the live connection for a player, if any.
func (s *Server) connOf(playerID string) (*client, bool) {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	c, ok := s.conns[playerID]
	return c, ok
}

// sendToPlayer queues a message for a player's live connection; a missing
// connection just means the player is offline.
func (s *Server) sendToPlayer(playerID string, msg ServerMessage) {
	if c, ok := s.connOf(playerID); ok {
		c.enqueue(msg)
	}
}

// handleMessage dispatches one decoded inbound message.
func (s *Server) handleMessage(c *client, msg *ClientMessage) {
	switch msg.Type {
	case MsgPing:
		c.enqueue(ServerMessage{Type: MsgPong})
	case MsgResumeSession:
		s.handleResumeSession(c, msg)
	case MsgCreateRoom:
		s.handleCreateRoom(c, msg)
	case MsgJoinRoom:
		s.handleJoinRoom(c, msg)
	case MsgSetPlayerInfo:
		s.handleSetPlayerInfo(c, msg)
	case MsgSetReady:
		s.handleSetReady(c, msg)
	case MsgUpdateRoomConfig:
		s.handleUpdateRoomConfig(c, msg)
	case MsgLeaveRoom:
		s.handleLeaveRoom(c)
	case MsgStartGame:
		s.handleStartGame(c)
	case MsgGearShift, MsgPlayCards, MsgReactCooldown, MsgReactBoost,
		MsgReactDone, MsgSlipstream, MsgDiscard:
		s.handleGameAction(c, msg)
	default:
		c.enqueue(errorMsg("unknown message type: " + msg.Type))
	}
}

// handleResumeSession atomically rebinds a connection to a prior session:
// any stale connection closes, the player's room grace cleanup is canceled
// and their game state is resynchronized.
func (s *Server) handleResumeSession(c *client, msg *ClientMessage) {
	sess, ok := s.sessions.Lookup(msg.SessionToken)
	if !ok {
		c.enqueue(errorMsg("invalid session token"))
		return
	}

	prevID := c.PlayerID()
	if prevID == sess.PlayerID {
		// Duplicate resume on the same connection: just resync.
		s.resyncPlayer(sess)
		return
	}

	// Drop the placeholder session minted when this connection opened.
	if prev, ok := s.sessions.ByPlayer(prevID); ok && prev.RoomID == "" {
		s.sessions.Remove(prev.Token)
	}
	s.unbindConn(prevID, c)

	c.bind(sess.PlayerID)
	s.bindConn(sess.PlayerID, c)
	s.sessions.Touch(sess.PlayerID, true)
	s.metrics.SessionsActive.Set(float64(s.sessions.Count()))
	s.log.Debugf("connection %s resumed session for player %s", c.id, sess.PlayerID)

	c.enqueue(ServerMessage{Type: MsgSessionCreated, Payload: SessionCreatedPayload{
		SessionToken: sess.Token,
		PlayerID:     sess.PlayerID,
	}})

	s.markReconnected(sess)
}

// handleDisconnect runs when a connection's read pump exits.
func (s *Server) handleDisconnect(c *client) {
	playerID := c.PlayerID()
	if playerID == "" {
		return
	}
	s.metrics.ConnectionsOpen.Dec()
	if !s.unbindConn(playerID, c) {
		// A resume already replaced this connection; nothing else to do.
		return
	}
	s.sessions.Touch(playerID, false)
	s.markDisconnected(playerID)
}
