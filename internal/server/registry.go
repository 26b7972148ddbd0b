package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/julianstephens/ididit/internal/achievement"
	apperrors "github.com/julianstephens/ididit/internal/errors"
	"github.com/julianstephens/ididit/internal/logger"
	"github.com/julianstephens/ididit/internal/models"
)

// apiSession is the achievement.Session of one bearer token.
type apiSession struct {
	userID  string
	expired atomic.Bool
}

func (s *apiSession) RequireUser() (string, error) {
	if s.expired.Load() {
		return "", apperrors.ErrSessionExpired
	}
	return s.userID, nil
}

func (s *apiSession) MarkExpired() {
	s.expired.Store(true)
}

type trackerEntry struct {
	userID  string
	session *apiSession
	tracker *achievement.Tracker
}

// registry keeps one Tracker per session so gate and celebration state
// survive between requests of the same client.
type registry struct {
	newTracker func(achievement.Session) *achievement.Tracker

	mu      sync.Mutex
	entries map[string]*trackerEntry
}

func newRegistry(newTracker func(achievement.Session) *achievement.Tracker) *registry {
	return &registry{newTracker: newTracker, entries: make(map[string]*trackerEntry)}
}

// get returns the session's tracker, creating it on first use.
func (r *registry) get(session models.Session) *achievement.Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[session.ID]; ok && !e.session.expired.Load() {
		return e.tracker
	}
	s := &apiSession{userID: session.UserID}
	e := &trackerEntry{userID: session.UserID, session: s, tracker: r.newTracker(s)}
	r.entries[session.ID] = e
	logger.Debug("tracker created", "session_id", session.ID, "at", time.Now().Format(time.RFC3339))
	return e.tracker
}

// drop forgets the trackers of the given sessions.
func (r *registry) drop(sessionIDs ...string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range sessionIDs {
		if e, ok := r.entries[id]; ok {
			e.session.MarkExpired()
			delete(r.entries, id)
			n++
		}
	}
	return n
}

// dropUser forgets every tracker of userID.
func (r *registry) dropUser(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.entries {
		if e.userID == userID {
			e.session.MarkExpired()
			delete(r.entries, id)
		}
	}
}

// invalidateUser bumps every tracker of userID after a change made outside them.
func (r *registry) invalidateUser(userID string) {
	r.mu.Lock()
	var trackers []*achievement.Tracker
	for _, e := range r.entries {
		if e.userID == userID {
			trackers = append(trackers, e.tracker)
		}
	}
	r.mu.Unlock()
	for _, t := range trackers {
		t.Invalidate()
	}
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
