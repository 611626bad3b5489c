package server

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"
)

// tokenBytes gives tokens more than 128 bits of entropy.
const tokenBytes = 24

// newSessionToken returns an unguessable URL-safe base62 token.
func newSessionToken() (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("session token entropy: %w", err)
	}
	return new(big.Int).SetBytes(raw).Text(62), nil
}

// Session binds an opaque bearer token to a player identity and their
// current room. A session outlives any single transport connection.
type Session struct {
	Token    string
	PlayerID string
	RoomID   string

	// lastSeen is refreshed on every bind; the TTL reaper uses it once the
	// player has no live connection.
	lastSeen time.Time
	online   bool
}

// SessionRegistry owns every session in the process. Edits never hold a
// room mutex.
type SessionRegistry struct {
	mu       sync.RWMutex
	byToken  map[string]*Session
	byPlayer map[string]*Session
	ttl      time.Duration
	log      slog.Logger
}

// NewSessionRegistry creates a session registry with the given idle TTL.
func NewSessionRegistry(ttl time.Duration, log slog.Logger) *SessionRegistry {
	if log == nil {
		log = slog.Disabled
	}
	return &SessionRegistry{
		byToken:  make(map[string]*Session),
		byPlayer: make(map[string]*Session),
		ttl:      ttl,
		log:      log,
	}
}

// Create mints a new session with a fresh player identity.
func (sr *SessionRegistry) Create() (*Session, error) {
	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}
	sess := &Session{
		Token:    token,
		PlayerID: uuid.NewString(),
		lastSeen: time.Now(),
		online:   true,
	}

	sr.mu.Lock()
	sr.byToken[token] = sess
	sr.byPlayer[sess.PlayerID] = sess
	sr.mu.Unlock()

	sr.log.Debugf("created session for player %s", sess.PlayerID)
	return sess, nil
}

// Lookup resolves a token to its session.
func (sr *SessionRegistry) Lookup(token string) (*Session, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	sess, ok := sr.byToken[token]
	return sess, ok
}

// ByPlayer resolves a player id to their session.
func (sr *SessionRegistry) ByPlayer(playerID string) (*Session, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	sess, ok := sr.byPlayer[playerID]
	return sess, ok
}

// SetRoom records the player's current room; empty clears it.
func (sr *SessionRegistry) SetRoom(playerID, roomID string) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if sess, ok := sr.byPlayer[playerID]; ok {
		sess.RoomID = roomID
	}
}

// Touch marks the session online or offline, refreshing its TTL clock.
func (sr *SessionRegistry) Touch(playerID string, online bool) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if sess, ok := sr.byPlayer[playerID]; ok {
		sess.lastSeen = time.Now()
		sess.online = online
	}
}

// Remove destroys a session, e.g. on explicit logout.
func (sr *SessionRegistry) Remove(token string) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if sess, ok := sr.byToken[token]; ok {
		delete(sr.byToken, token)
		delete(sr.byPlayer, sess.PlayerID)
	}
}

// Count returns the number of live sessions.
func (sr *SessionRegistry) Count() int {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return len(sr.byToken)
}

// Reap drops sessions that have been offline past the TTL and returns the
// players whose sessions were dropped.
func (sr *SessionRegistry) Reap() []string {
	now := time.Now()

	sr.mu.Lock()
	defer sr.mu.Unlock()

	var reaped []string
	for token, sess := range sr.byToken {
		if sess.online || now.Sub(sess.lastSeen) < sr.ttl {
			continue
		}
		delete(sr.byToken, token)
		delete(sr.byPlayer, sess.PlayerID)
		reaped = append(reaped, sess.PlayerID)
		sr.log.Debugf("reaped idle session for player %s", sess.PlayerID)
	}
	return reaped
}
