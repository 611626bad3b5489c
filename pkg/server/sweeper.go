package server

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// startSweeper schedules the periodic stale-room scan and session reap.
func (s *Server) startSweeper() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.cfg.SweepSchedule, s.sweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.cfg.SweepSchedule, err)
	}
	s.cron.Start()
	s.log.Infof("stale-room sweep scheduled %q, ttl %s", s.cfg.SweepSchedule, s.cfg.RoomTTL)
	return nil
}

// sweep destroys rooms idle past the TTL and reaps idle sessions. Playing
// rooms are otherwise kept indefinitely so their players can reconnect;
// only inactivity ages them out.
func (s *Server) sweep() {
	cutoff := time.Now().Add(-s.cfg.RoomTTL)

	for _, room := range s.rooms.All() {
		room.mu.Lock()
		stale := room.lastActivityAt.Before(cutoff)
		code := room.code
		room.mu.Unlock()

		if !stale {
			continue
		}
		s.log.Infof("sweeping stale room %s", code)
		s.destroyRoom(room, "inactivity ttl")
		s.metrics.RoomsSwept.Inc()
	}

	if reaped := s.sessions.Reap(); len(reaped) > 0 {
		s.metrics.SessionsActive.Set(float64(s.sessions.Count()))
	}
}
