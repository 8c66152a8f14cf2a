package api

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dd0wney/cluso-bowtie/pkg/editor"
	"github.com/dd0wney/cluso-bowtie/pkg/metrics"
	"github.com/dd0wney/cluso-bowtie/pkg/pipeline"
)

var (
	ErrDiagramNotFound = errors.New("diagram not found")
	ErrTooManyDiagrams = errors.New("diagram limit reached")
	ErrDiagramExists   = errors.New("diagram already exists")
)

// Store holds the open diagrams in memory. It satisfies graphql.Source.
type Store struct {
	mu       sync.RWMutex
	diagrams map[string]*editor.Editor
	max      int
	metrics  *metrics.Registry
}

// NewStore creates a store holding at most max diagrams (0 = unlimited)
func NewStore(max int, reg *metrics.Registry) *Store {
	return &Store{
		diagrams: make(map[string]*editor.Editor),
		max:      max,
		metrics:  reg,
	}
}

// Add registers ed under its ID
func (s *Store) Add(ed *editor.Editor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.diagrams[ed.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDiagramExists, ed.ID())
	}
	if s.max > 0 && len(s.diagrams) >= s.max {
		return fmt.Errorf("%w (%d)", ErrTooManyDiagrams, s.max)
	}
	s.diagrams[ed.ID()] = ed
	s.observe()
	return nil
}

// Get returns the editor for id
func (s *Store) Get(id string) (*editor.Editor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ed, ok := s.diagrams[id]
	return ed, ok
}

// Delete removes id and reports whether it existed
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.diagrams[id]; !ok {
		return false
	}
	delete(s.diagrams, id)
	s.observe()
	return true
}

// IDs returns every diagram id in sorted order
func (s *Store) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.diagrams))
	for id := range s.diagrams {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// View returns the latest view of id
func (s *Store) View(id string) (*pipeline.View, bool) {
	ed, ok := s.Get(id)
	if !ok {
		return nil, false
	}
	return ed.View(), true
}

// Usage returns the number of open diagrams and the limit (0 = unlimited)
func (s *Store) Usage() (open, limit int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.diagrams), s.max
}

// Len returns the number of open diagrams
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.diagrams)
}

// observe must be called with mu held
func (s *Store) observe() {
	if s.metrics != nil {
		s.metrics.DiagramsActive.Set(float64(len(s.diagrams)))
	}
}
