package scope

import (
	"fmt"
	"sync"
)

// ErrStaticRewrite is returned when a static key is written more than once.
var ErrStaticRewrite = fmt.Errorf("scope: static values are write-once")

// Store holds one run's scoped context. Reads of undefined keys return the
// empty string, never an error, so prompt templates substitute blank text
// instead of failing. Thread-safe.
type Store struct {
	mu      sync.RWMutex
	values  map[string]map[string]string // scope.String() -> key -> value
	durable Durable                      // nil means store scopes are memory-only
	loaded  map[string]bool              // store names already pulled from the backend
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithDurable attaches a persistence backend for store:<name> scopes.
func WithDurable(d Durable) StoreOption {
	return func(s *Store) {
		s.durable = d
	}
}

// NewStore creates an empty context store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		values: make(map[string]map[string]string),
		loaded: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value for key in sc, or "" when undefined.
func (s *Store) Get(sc Scope, key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureLoaded(sc)
	return s.values[sc.String()][key]
}

// Set writes key=value in sc. Static keys reject rewrites; durable scopes
// write through to the backend.
func (s *Store) Set(sc Scope, key, value string) error {
	if !sc.Valid() {
		return fmt.Errorf("scope: invalid scope %q", sc.String())
	}
	if key == "" {
		return fmt.Errorf("scope: empty key in %s", sc)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureLoaded(sc)

	ns := sc.String()
	if sc.Kind == KindStatic {
		if _, exists := s.values[ns][key]; exists {
			return fmt.Errorf("%w: %s.%s", ErrStaticRewrite, ns, key)
		}
	}

	if s.values[ns] == nil {
		s.values[ns] = make(map[string]string)
	}
	s.values[ns][key] = value

	if sc.Durable() && s.durable != nil {
		if err := s.durable.Save(sc.ID, key, value); err != nil {
			return fmt.Errorf("scope: persist %s.%s: %w", ns, key, err)
		}
	}
	return nil
}

// GetAllInScope returns a copy of every key/value pair in sc.
func (s *Store) GetAllInScope(sc Scope) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureLoaded(sc)

	out := make(map[string]string, len(s.values[sc.String()]))
	for k, v := range s.values[sc.String()] {
		out[k] = v
	}
	return out
}

// ClearRunScoped drops everything except durable store scopes. Called when
// the run reaches a terminal status.
func (s *Store) ClearRunScoped() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ns := range s.values {
		sc, err := Parse(ns)
		if err != nil || !sc.Durable() {
			delete(s.values, ns)
		}
	}
}

// ensureLoaded lazily pulls a durable store namespace into the cache.
// Caller must hold s.mu.
func (s *Store) ensureLoaded(sc Scope) {
	if !sc.Durable() || s.durable == nil || s.loaded[sc.ID] {
		return
	}
	s.loaded[sc.ID] = true

	vals, err := s.durable.Load(sc.ID)
	if err != nil {
		// A missing or unreadable store behaves as empty; writes will
		// recreate it.
		return
	}
	ns := sc.String()
	if s.values[ns] == nil {
		s.values[ns] = make(map[string]string, len(vals))
	}
	for k, v := range vals {
		s.values[ns][k] = v
	}
}
