package main

import (
	"sync"
	"time"
)

// SessionTracker keeps a process-wide map of session id to last activity
// time. It is purely an accelerator for the analysis sweep: a crash loses the
// timers, and the repository's unanalyzed-session query remains the source of
// correctness. Never durable, never exposed as a raw map.
type SessionTracker struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewSessionTracker() *SessionTracker {
	return &SessionTracker{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Touch records current time as the session's last activity. Last write wins.
func (t *SessionTracker) Touch(sessionID string) {
	if sessionID == "" {
		return
	}
	t.mu.Lock()
	t.seen[sessionID] = t.now()
	t.mu.Unlock()
}

// Expired returns the tracked sessions idle for at least timeout. Pure query,
// no side effect.
func (t *SessionTracker) Expired(timeout time.Duration) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var expired []string
	for sessionID, lastActivity := range t.seen {
		if now.Sub(lastActivity) >= timeout {
			expired = append(expired, sessionID)
		}
	}
	return expired
}

// Clear removes a session from tracking. Idempotent.
func (t *SessionTracker) Clear(sessionID string) {
	t.mu.Lock()
	delete(t.seen, sessionID)
	t.mu.Unlock()
}

// Len reports how many sessions are currently tracked.
func (t *SessionTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
