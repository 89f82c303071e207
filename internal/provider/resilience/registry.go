package resilience

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Role is the part of location enrichment a provider serves.
type Role string

const (
	RoleGeocoder Role = "geocoder"
	RoleRainfall Role = "rainfall"
)

// Outcome is the result of a provider's most recent lookup.
type Outcome string

const (
	OutcomeNone        Outcome = "none"
	OutcomeOK          Outcome = "ok"
	OutcomeServerError Outcome = "server_error"
	OutcomeCircuitOpen Outcome = "circuit_open"
	OutcomeFailed      Outcome = "failed"
)

// Status values match the ops endpoint vocabulary.
type Status string

const (
	StatusOK       Status = "OK"
	StatusDegraded Status = "DEGRADED"
	StatusFail     Status = "FAIL"
)

// ProviderHealth is a point-in-time view of one enrichment provider.
type ProviderHealth struct {
	Name         string
	Role         Role
	CircuitState gobreaker.State
	Counts       gobreaker.Counts

	LastOutcome   Outcome
	LastLatency   time.Duration
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string

	// Lookups and Failures are lifetime totals; each failure meant the
	// prediction fell back to the sensor reading for this provider's value.
	Lookups  uint64
	Failures uint64
}

// Status folds the breaker state and the last lookup into one level. An
// open breaker fails the provider; a half-open breaker or a failed last
// lookup degrades it.
func (h *ProviderHealth) Status() Status {
	switch {
	case h.CircuitState == gobreaker.StateOpen:
		return StatusFail
	case h.CircuitState == gobreaker.StateHalfOpen:
		return StatusDegraded
	case h.LastOutcome != OutcomeOK && h.LastOutcome != OutcomeNone:
		return StatusDegraded
	default:
		return StatusOK
	}
}

// Registry tracks the enrichment providers for the ops status endpoint.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*registeredProvider
}

type registeredProvider struct {
	role          Role
	client        *Client
	lastOutcome   Outcome
	lastLatency   time.Duration
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
	lookups       uint64
	failures      uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*registeredProvider),
	}
}

// Register adds a provider client. Registering a name twice replaces the
// earlier client and its history.
func (r *Registry) Register(name string, role Role, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &registeredProvider{
		role:        role,
		client:      client,
		lastOutcome: OutcomeNone,
	}
}

// Record stores the outcome of one lookup. Unknown names are ignored.
func (r *Registry) Record(name string, outcome Outcome, latency time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[name]
	if !ok {
		return
	}
	now := time.Now()
	p.lookups++
	p.lastOutcome = outcome
	p.lastLatency = latency
	if outcome == OutcomeOK {
		p.lastSuccessAt = &now
		return
	}
	p.failures++
	p.lastFailureAt = &now
	if err != nil {
		p.lastError = err.Error()
	}
}

// Health returns the named provider's health, or nil if it is not registered.
func (r *Registry) Health(name string) *ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil
	}
	return p.health(name)
}

// Snapshot returns every provider's health ordered by name.
func (r *Registry) Snapshot() []*ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ProviderHealth, 0, len(r.providers))
	for name, p := range r.providers {
		out = append(out, p.health(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (p *registeredProvider) health(name string) *ProviderHealth {
	return &ProviderHealth{
		Name:          name,
		Role:          p.role,
		CircuitState:  p.client.CircuitBreakerState(),
		Counts:        p.client.CircuitBreakerCounts(),
		LastOutcome:   p.lastOutcome,
		LastLatency:   p.lastLatency,
		LastSuccessAt: p.lastSuccessAt,
		LastFailureAt: p.lastFailureAt,
		LastError:     p.lastError,
		Lookups:       p.lookups,
		Failures:      p.failures,
	}
}

// classify maps a client call result onto an Outcome.
func classify(statusCode int, err error) Outcome {
	switch {
	case errors.Is(err, ErrCircuitOpen):
		return OutcomeCircuitOpen
	case err != nil:
		return OutcomeFailed
	case statusCode >= 500:
		return OutcomeServerError
	default:
		return OutcomeOK
	}
}
