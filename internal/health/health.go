// Package health tracks the status of the service's moving parts.
package health

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Status is the health of one component.
type Status string

const (
	Unknown   Status = "unknown"
	Healthy   Status = "healthy"
	Degraded  Status = "degraded"
	Unhealthy Status = "unhealthy"
)

// Component names reported by the service.
const (
	Telegram  = "telegram"
	Portal    = "portal"
	Scheduler = "scheduler"
	History   = "history"
)

// Check is the latest result for a component.
type Check struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Monitor holds the latest Check per component and notifies listeners when
// the overall status changes.
type Monitor struct {
	mu        sync.RWMutex
	checks    map[string]Check
	overall   Status
	listeners []func(Status)
}

// NewMonitor creates an empty monitor. Its overall status is Unknown until
// the first update.
func NewMonitor() *Monitor {
	return &Monitor{
		checks:  make(map[string]Check),
		overall: Unknown,
	}
}

// OnChange registers fn to run whenever the overall status changes. fn runs
// synchronously on the updating goroutine.
func (m *Monitor) OnChange(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Update records the status of a component.
func (m *Monitor) Update(name string, status Status, message string) {
	m.mu.Lock()
	prev, had := m.checks[name]
	m.checks[name] = Check{
		Name:      name,
		Status:    status,
		Message:   message,
		UpdatedAt: time.Now(),
	}
	overall := m.computeOverall()
	changed := overall != m.overall
	m.overall = overall
	listeners := append([]func(Status){}, m.listeners...)
	m.mu.Unlock()

	if status != Healthy && (!had || prev.Status != status) {
		slog.Warn("Component health changed", "component", name, "status", string(status), "message", message)
	}
	if changed {
		for _, fn := range listeners {
			fn(overall)
		}
	}
}

// Get returns the check for a component.
func (m *Monitor) Get(name string) (Check, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.checks[name]
	return c, ok
}

// Overall returns the worst status across all components.
func (m *Monitor) Overall() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overall
}

// All returns every check sorted by name.
func (m *Monitor) All() []Check {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Check, 0, len(m.checks))
	for _, c := range m.checks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Monitor) computeOverall() Status {
	if len(m.checks) == 0 {
		return Unknown
	}
	worst := Healthy
	for _, c := range m.checks {
		if rank(c.Status) > rank(worst) {
			worst = c.Status
		}
	}
	return worst
}

func rank(s Status) int {
	switch s {
	case Healthy:
		return 0
	case Degraded:
		return 1
	case Unhealthy:
		return 2
	default:
		return 3
	}
}
