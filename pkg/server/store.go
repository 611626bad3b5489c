package server

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"
)

// roomCodeAlphabet excludes the easily confused I, O, 0 and 1.
const (
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 6
	codeAttempts     = 32
)

// RoomStore owns the id and code indexes. Compound edits take the store
// lock once, with the id map updated before the code map.
type RoomStore struct {
	mu     sync.RWMutex
	byID   map[string]*Room
	byCode map[string]*Room

	rngMu sync.Mutex
	rng   *rand.Rand

	log slog.Logger
}

// NewRoomStore creates an empty room store.
func NewRoomStore(log slog.Logger) *RoomStore {
	if log == nil {
		log = slog.Disabled
	}
	return &RoomStore{
		byID:   make(map[string]*Room),
		byCode: make(map[string]*Room),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		log:    log,
	}
}

// newCode returns a random six character share code.
func (rs *RoomStore) newCode() string {
	rs.rngMu.Lock()
	defer rs.rngMu.Unlock()
	var b strings.Builder
	for i := 0; i < roomCodeLength; i++ {
		b.WriteByte(roomCodeAlphabet[rs.rng.Intn(len(roomCodeAlphabet))])
	}
	return b.String()
}

// newSeed returns a shuffle seed for a new room's match.
func (rs *RoomStore) newSeed() int64 {
	rs.rngMu.Lock()
	defer rs.rngMu.Unlock()
	return rs.rng.Int63()
}

// Create allocates a room with a fresh id and collision-free code.
func (rs *RoomStore) Create(cfg RoomConfig, log slog.Logger) (*Room, error) {
	seed := rs.newSeed()

	rs.mu.Lock()
	defer rs.mu.Unlock()

	var code string
	for i := 0; ; i++ {
		if i >= codeAttempts {
			return nil, fmt.Errorf("could not allocate an unused room code")
		}
		code = rs.newCode()
		if _, taken := rs.byCode[code]; !taken {
			break
		}
	}

	room := newRoom(uuid.NewString(), code, cfg, seed, log)
	rs.byID[room.id] = room
	rs.byCode[code] = room
	rs.log.Debugf("created room %s with code %s", room.id, code)
	return room, nil
}

// ByID looks a room up by id.
func (rs *RoomStore) ByID(id string) (*Room, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	room, ok := rs.byID[id]
	return room, ok
}

// ByCode looks a room up by share code, case-insensitively.
func (rs *RoomStore) ByCode(code string) (*Room, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	room, ok := rs.byCode[strings.ToUpper(code)]
	return room, ok
}

// Remove drops a room from both indexes.
func (rs *RoomStore) Remove(id string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if room, ok := rs.byID[id]; ok {
		delete(rs.byID, id)
		delete(rs.byCode, room.code)
	}
}

// Count returns the number of open rooms.
func (rs *RoomStore) Count() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.byID)
}

// All returns a snapshot of every open room.
func (rs *RoomStore) All() []*Room {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	rooms := make([]*Room, 0, len(rs.byID))
	for _, room := range rs.byID {
		rooms = append(rooms, room)
	}
	return rooms
}
