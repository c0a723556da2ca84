package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Logger defines the logging interface for the store.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Store is the node's configuration store. It holds the current record in
// memory; readers always see the latest value, and Persist writes it to
// the repository.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Note that the supervisor
//     only reads between polls, so an update made while a link attempt is
//     in flight applies from the next attempt onwards.
type Store struct {
	repo     Repository
	defaults Record
	logger   Logger

	mu    sync.RWMutex
	rec   Record
	dirty bool
}

// Open loads the stored record, seeding it with defaults if nothing is
// stored yet or the stored layout is from a different firmware.
//
// Parameters:
//   - ctx: Context for the initial load
//   - repo: Persistence backend
//   - defaults: Record used for first boot and for Reset
//   - logger: Optional logger (nil for none)
func Open(ctx context.Context, repo Repository, defaults Record, logger Logger) (*Store, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	s := &Store{repo: repo, defaults: defaults, logger: logger}

	rec, err := repo.Load(ctx)
	switch {
	case err == nil:
		s.rec = rec
		logger.Info("settings loaded")
	case errors.Is(err, ErrNotFound):
		logger.Info("no stored settings, seeding defaults")
		if err := s.seed(ctx); err != nil {
			return nil, err
		}
	case errors.Is(err, ErrLayoutMismatch):
		logger.Warn("stored settings layout changed, resetting to defaults", "error", err)
		if err := repo.Reset(ctx); err != nil {
			return nil, err
		}
		if err := s.seed(ctx); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("opening settings: %w", err)
	}

	return s, nil
}

func (s *Store) seed(ctx context.Context) error {
	s.rec = s.defaults
	if err := s.repo.Save(ctx, s.rec); err != nil {
		return fmt.Errorf("seeding settings: %w", err)
	}
	return nil
}

// Credentials returns the current network credentials.
func (s *Store) Credentials() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Credentials
}

// BrokerEndpoint returns the current broker endpoint.
func (s *Store) BrokerEndpoint() BrokerEndpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Broker
}

// Console returns the remote console settings.
func (s *Store) Console() Console {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Console
}

// Debug reports whether debug logging is enabled.
func (s *Store) Debug() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Debug
}

// Record returns a copy of the whole record.
func (s *Store) Record() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec
}

// Dirty reports whether the in-memory record has changes not yet persisted.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Update applies fn to a copy of the record and, if the result validates,
// makes it current. The change is not persisted until Persist is called.
//
// Returns:
//   - Record: The new current record (or the unchanged one on error)
//   - error: ErrInvalidRecord wrapped with details
func (s *Store) Update(fn func(*Record)) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.rec
	fn(&next)
	if err := next.Validate(); err != nil {
		return s.rec, err
	}

	if next != s.rec {
		s.rec = next
		s.dirty = true
	}
	return s.rec, nil
}

// Persist writes the current record to the repository.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Save(ctx, s.rec); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// Reset restores the defaults and persists them.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Reset(ctx); err != nil {
		return err
	}
	if err := s.seed(ctx); err != nil {
		return err
	}
	s.dirty = false
	s.logger.Info("settings reset to defaults")
	return nil
}
