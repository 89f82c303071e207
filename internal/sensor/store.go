package sensor

import (
	"sync"
	"time"

	"github.com/cropsense/cropsense/internal/crop"
	"github.com/cropsense/cropsense/internal/location"
)

// State is the process-wide snapshot served to clients.
type State struct {
	Reading
	Location   location.Context `json:"location"`
	Prediction string           `json:"prediction"`
	Alert      *crop.Alert      `json:"alert"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// DefaultState is the state of a freshly started process.
func DefaultState() State {
	return State{
		Reading:    DefaultReading(),
		Location:   location.DefaultContext(),
		Prediction: crop.LabelWaiting,
	}
}

// Store holds the latest State. All access goes through one lock so readers
// never observe a partially applied update.
type Store struct {
	mu    sync.RWMutex
	state State
	now   func() time.Time
}

// NewStore creates a store seeded with DefaultState.
func NewStore() *Store {
	return &Store{
		state: DefaultState(),
		now:   time.Now,
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Apply merges a validated patch and returns the resulting state.
func (s *Store) Apply(p Patch) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Reading = p.ApplyTo(s.state.Reading)
	s.state.UpdatedAt = s.now()
	return s.copyLocked()
}

// ApplyEnrichment writes the location context. A non-nil rainfall replaces
// the reading's rainfall.
func (s *Store) ApplyEnrichment(loc location.Context, rainfall *float64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Location = loc
	if rainfall != nil {
		s.state.Rainfall = *rainfall
	}
	return s.copyLocked()
}

// RecordPrediction stores the latest label and alert. A nil alert clears it.
func (s *Store) RecordPrediction(label string, alert *crop.Alert) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Prediction = label
	if alert != nil {
		a := *alert
		s.state.Alert = &a
	} else {
		s.state.Alert = nil
	}
	return s.copyLocked()
}

func (s *Store) copyLocked() State {
	st := s.state
	if st.Alert != nil {
		a := *st.Alert
		st.Alert = &a
	}
	return st
}
