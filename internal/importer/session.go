package importer

import "sync"

// SessionManager enforces the single-flight rule: at most one import
// session may be active system-wide. A trigger arriving while a session
// holds the guard is dropped, not queued.
type SessionManager struct {
	mu     sync.Mutex
	active bool
}

func NewSessionManager() *SessionManager {
	return &SessionManager{}
}

// Acquire claims the guard. On success it returns a release func that
// is safe to call more than once; callers defer it so every terminal
// path, including panics, gives the guard back.
func (m *SessionManager) Acquire() (release func(), ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return nil, false
	}
	m.active = true

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.active = false
			m.mu.Unlock()
		})
	}, true
}

// Active reports whether a session currently holds the guard.
func (m *SessionManager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}
