package timer

import "sync"

// The package-level singleton lets most of the runtime (Expiration
// timeouts, timer.After) reach the process's
// one Manager through here rather than threading a *Manager through
// every call.
var (
	instanceMu sync.RWMutex
	instance   *Manager
)

// SetDefaultInstance installs a freshly created Manager as the
// singleton, replacing any previous one (without shutting it down —
// callers that want a clean handoff should ReleaseInstance first).
func SetDefaultInstance() *Manager {
	m := New()
	instanceMu.Lock()
	instance = m
	instanceMu.Unlock()
	return m
}

// SetInstance installs a caller-provided Manager as the singleton.
func SetInstance(m *Manager) {
	instanceMu.Lock()
	instance = m
	instanceMu.Unlock()
}

// Instance returns the current singleton, or nil if none has been
// installed.
func Instance() *Manager {
	instanceMu.RLock()
	defer instanceMu.RUnlock()
	return instance
}

// ReleaseInstance shuts down and clears the singleton.
func ReleaseInstance() {
	instanceMu.Lock()
	m := instance
	instance = nil
	instanceMu.Unlock()

	if m != nil {
		m.Shutdown()
	}
}
