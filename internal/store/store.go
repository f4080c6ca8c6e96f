// Package store provides storage backends for OnboardPipe user state.
//
// It includes an in-memory store (the default; conversational state is
// volatile by design) plus SQLite and PostgreSQL backends selected by DSN.
package store

import (
	"strings"
	"sync"

	"github.com/BTreeMap/OnboardPipe/internal/models"
)

// Store defines the user-state persistence contract shared by all backends.
// GetUserState returns (nil, nil) when no state exists for the user.
type Store interface {
	SaveUserState(state models.UserState) error
	GetUserState(userID, flowType string) (*models.UserState, error)
	DeleteUserState(userID, flowType string) error
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option configures store creation.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite file path as the store DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string as the store DSN.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite".
// PostgreSQL DSNs use URL or key=value forms; everything else is treated
// as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a mutex-guarded in-memory user-state store.
// It is the default backend and also serves as the test double.
type InMemoryStore struct {
	mu     sync.RWMutex
	states map[string]models.UserState
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{states: make(map[string]models.UserState)}
}

func stateKey(userID, flowType string) string {
	return userID + "|" + flowType
}

// SaveUserState stores or replaces the state for a user.
func (s *InMemoryStore) SaveUserState(state models.UserState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[stateKey(state.UserID, state.FlowType)] = state
	return nil
}

// GetUserState retrieves the state for a user, or nil if absent.
func (s *InMemoryStore) GetUserState(userID, flowType string) (*models.UserState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[stateKey(userID, flowType)]
	if !ok {
		return nil, nil
	}
	// Copy the data map so callers cannot mutate stored state in place.
	copied := state
	if state.StateData != nil {
		copied.StateData = make(map[string]string, len(state.StateData))
		for k, v := range state.StateData {
			copied.StateData[k] = v
		}
	}
	return &copied, nil
}

// DeleteUserState removes the state for a user.
func (s *InMemoryStore) DeleteUserState(userID, flowType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, stateKey(userID, flowType))
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
