package led

import (
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/factoryd/internal/events"
)

// State is the last level driven onto each line.
type State struct {
	Lines     map[string]bool `json:"lines"` // line name -> lit
	UpdatedAt time.Time       `json:"updated_at"`
}

// Manager tracks LED state from LED change events. Lines start off, as the
// driver leaves them after initialization.
type Manager struct {
	eventBus    *events.Bus
	unsubscribe func()
	logger      *slog.Logger
	mu          sync.RWMutex
	lit         map[string]bool
	updatedAt   time.Time
}

// NewManager creates a manager that listens on eventBus.
func NewManager(eventBus *events.Bus, logger *slog.Logger) *Manager {
	lit := make(map[string]bool, len(Lines()))
	for _, l := range Lines() {
		lit[l.Name] = false
	}
	return &Manager{
		eventBus: eventBus,
		logger:   logger,
		lit:      lit,
	}
}

// Start begins listening for LED state change events
func (m *Manager) Start() {
	m.unsubscribe = m.eventBus.Subscribe(func(e events.LEDStateChangedEvent) {
		m.handleEvent(e)
	})
	m.logger.Info("LED manager started")
}

// Stop unsubscribes from events
func (m *Manager) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.logger.Info("LED manager stopped")
}

func (m *Manager) handleEvent(e events.LEDStateChangedEvent) {
	m.mu.Lock()
	for _, name := range e.Lines {
		m.lit[name] = e.On
	}
	m.updatedAt = e.At
	m.mu.Unlock()

	m.logger.Debug("LED state changed", "lines", e.Lines, "on", e.On)
}

// State returns a snapshot of the tracked LED state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lines := make(map[string]bool, len(m.lit))
	for k, v := range m.lit {
		lines[k] = v
	}
	return State{Lines: lines, UpdatedAt: m.updatedAt}
}
