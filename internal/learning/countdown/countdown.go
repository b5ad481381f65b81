// Package countdown runs the per-question answer timers of active sessions.
package countdown

import (
	"sync"
	"time"
)

// ExpireFunc is called from the timer goroutine when a question runs out of time.
type ExpireFunc func(sessionID, questionID string)

type entry struct {
	questionID string
	gen        uint64
	timer      *time.Timer
}

// Manager holds at most one running countdown per session. Arming a new
// question replaces the previous countdown of that session.
type Manager struct {
	mu       sync.Mutex
	active   map[string]*entry
	gen      uint64
	stopped  bool
	onExpire ExpireFunc
}

func NewManager(onExpire ExpireFunc) *Manager {
	return &Manager{active: make(map[string]*entry), onExpire: onExpire}
}

// Arm starts the countdown for questionID. A non-positive limit only clears
// the previous countdown. Returns the deadline, zero when nothing was armed.
func (m *Manager) Arm(sessionID, questionID string, limit time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelLocked(sessionID)
	if m.stopped || limit <= 0 {
		return time.Time{}
	}

	m.gen++
	e := &entry{questionID: questionID, gen: m.gen}
	e.timer = time.AfterFunc(limit, func() { m.expire(sessionID, e.gen) })
	m.active[sessionID] = e
	return time.Now().Add(limit)
}

// Cancel stops the countdown of sessionID if it is running for questionID.
// An empty questionID matches any question. Reports whether one was stopped.
func (m *Manager) Cancel(sessionID, questionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.active[sessionID]
	if !ok || (questionID != "" && e.questionID != questionID) {
		return false
	}
	return m.cancelLocked(sessionID)
}

// Active returns the question whose countdown is running for sessionID.
func (m *Manager) Active(sessionID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.active[sessionID]
	if !ok {
		return "", false
	}
	return e.questionID, true
}

// Stop cancels every countdown; later Arm calls are ignored.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.active {
		m.cancelLocked(id)
	}
	m.stopped = true
}

func (m *Manager) cancelLocked(sessionID string) bool {
	e, ok := m.active[sessionID]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(m.active, sessionID)
	return true
}

func (m *Manager) expire(sessionID string, gen uint64) {
	m.mu.Lock()
	e, ok := m.active[sessionID]
	if !ok || e.gen != gen {
		// cancelled or re-armed after the timer fired
		m.mu.Unlock()
		return
	}
	delete(m.active, sessionID)
	m.mu.Unlock()

	if m.onExpire != nil {
		m.onExpire(sessionID, e.questionID)
	}
}
