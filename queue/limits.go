package queue

import (
	"slices"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Config caps how fast and how widely one queue's jobs start on a pool.
// Zero values mean unlimited.
type Config struct {
	Name           string  `json:"name"`
	MaxConcurrency int     `json:"max_concurrency,omitempty"`
	RateLimit      float64 `json:"rate_limit,omitempty"` // jobs per second
	RateBurst      int     `json:"rate_burst,omitempty"` // 1 when RateLimit is set
}

// Stats is a point-in-time view of one limited queue.
type Stats struct {
	Config
	Active   int `json:"active"`
	Rejected int `json:"rejected"`
}

type gate struct {
	cfg      Config
	tokens   *rate.Limiter
	active   int
	rejected int
}

func newGate(cfg Config) *gate {
	g := &gate{cfg: cfg}
	if cfg.RateLimit > 0 {
		g.tokens = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}
	return g
}

// admit checks the concurrency cap before taking a token so a job
// turned away for concurrency does not burn rate budget.
func (g *gate) admit() bool {
	full := g.cfg.MaxConcurrency > 0 && g.active >= g.cfg.MaxConcurrency
	if full || (g.tokens != nil && !g.tokens.Allow()) {
		g.rejected++
		return false
	}
	g.active++
	return true
}

// Manager applies Config limits per queue name. Queues without a Config
// are never limited. Safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	gates map[string]*gate
}

func NewManager(configs ...Config) *Manager {
	m := &Manager{gates: make(map[string]*gate, len(configs))}
	for _, c := range configs {
		m.gates[c.Name] = newGate(c)
	}
	return m
}

// Acquire reports whether a job on queue may start now. Every true result
// must be paired with a Release.
func (m *Manager) Acquire(queue string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gates[queue]
	return !ok || g.admit()
}

func (m *Manager) Release(queue string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.gates[queue]; ok && g.active > 0 {
		g.active--
	}
}

// SetQueueConfig installs or replaces the limits for cfg.Name. Jobs
// already running stay counted against the new limits.
func (m *Manager) SetQueueConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := newGate(cfg)
	if old, ok := m.gates[cfg.Name]; ok {
		g.active, g.rejected = old.active, old.rejected
	}
	m.gates[cfg.Name] = g
}

// ActiveCount returns how many jobs on queue hold a slot.
func (m *Manager) ActiveCount(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.gates[queue]; ok {
		return g.active
	}
	return 0
}

// Stats lists every configured queue ordered by name.
func (m *Manager) Stats() []Stats {
	m.mu.Lock()
	out := make([]Stats, 0, len(m.gates))
	for _, g := range m.gates {
		out = append(out, Stats{Config: g.cfg, Active: g.active, Rejected: g.rejected})
	}
	m.mu.Unlock()

	slices.SortFunc(out, func(a, b Stats) int { return strings.Compare(a.Name, b.Name) })
	return out
}
