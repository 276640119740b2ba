// Package service coordinates the store, the loader, the validator, the
// query engine, the traversal and the SQLite index.
//
// The service holds one loaded snapshot at a time. Reads work on the current
// snapshot; every mutation goes through the commit gate in write.go.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/starford/onto/internal/index"
	"github.com/starford/onto/internal/loader"
	"github.com/starford/onto/internal/model"
	"github.com/starford/onto/internal/storage"
	"github.com/starford/onto/internal/validator"
)

// ReloadHook is called after every successful reload with the new snapshot
// and its validation report.
type ReloadHook func(snap *loader.Snapshot, report *validator.Report)

// Service coordinates storage, graph and index operations.
type Service struct {
	store  storage.Provider
	db     index.GraphIndex
	logger *slog.Logger
	strict bool
	hooks  []ReloadHook

	mu     sync.RWMutex
	snap   *loader.Snapshot
	report *validator.Report

	// writeMu serialises the commit gate and Reload.
	writeMu sync.Mutex
	loads   singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithIndex attaches the SQLite projection. Without it listing falls back to
// scanning the in-memory graph.
func WithIndex(db index.GraphIndex) Option {
	return func(s *Service) { s.db = db }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithStrict makes the commit gate reject writes that leave warnings behind.
func WithStrict(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

// WithReloadHook registers fn to run after every reload.
func WithReloadHook(fn ReloadHook) Option {
	return func(s *Service) { s.hooks = append(s.hooks, fn) }
}

// New creates a service over store. Call Reload before serving reads.
func New(store storage.Provider, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reload rebuilds the graph from the store, validates it and re-syncs the
// index. Concurrent callers share one load. It waits for any in-flight
// commit, so a rejected write is never installed.
func (s *Service) Reload(ctx context.Context) error {
	_, err, _ := s.loads.Do("reload", func() (any, error) {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		return nil, s.reload(ctx)
	})
	return err
}

// reload is the unshared form used by the commit gate, which must observe
// its own write.
func (s *Service) reload(_ context.Context) error {
	snap, report, err := s.build()
	if err != nil {
		return err
	}
	s.install(snap, report)
	return nil
}

func (s *Service) build() (*loader.Snapshot, *validator.Report, error) {
	snap, err := loader.LoadSnapshot(s.store)
	if err != nil {
		return nil, nil, fmt.Errorf("service: load: %w", err)
	}
	return snap, validator.Validate(snap.Graph), nil
}

func (s *Service) install(snap *loader.Snapshot, report *validator.Report) {
	s.mu.Lock()
	s.snap, s.report = snap, report
	s.mu.Unlock()

	if s.db != nil {
		if _, err := index.Sync(s.db, snap, s.logger); err != nil {
			s.logger.Warn("service: index sync failed", slog.String("error", err.Error()))
		}
	}

	s.logger.Debug("service: reloaded",
		slog.Int("files", len(snap.Files)),
		slog.Int("instances", len(snap.Graph.Instances)),
		slog.Int("errors", len(report.Errors)),
		slog.Int("warnings", len(report.Warnings)))

	for _, fn := range s.hooks {
		fn(snap, report)
	}
}

// current returns the installed snapshot, loading it on first use.
func (s *Service) current(ctx context.Context) (*loader.Snapshot, *validator.Report, error) {
	s.mu.RLock()
	snap, report := s.snap, s.report
	s.mu.RUnlock()
	if snap != nil {
		return snap, report, nil
	}
	if err := s.Reload(ctx); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.report, nil
}

// Graph returns the currently loaded graph.
func (s *Service) Graph(ctx context.Context) (*model.Graph, error) {
	snap, _, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Graph, nil
}

// Validate returns the report for the currently loaded graph and whether it
// passes (warnings fail in strict mode).
func (s *Service) Validate(ctx context.Context, strict bool) (*validator.Report, bool, error) {
	_, report, err := s.current(ctx)
	if err != nil {
		return nil, false, err
	}
	return report, report.Passed(strict), nil
}

// Reindex rebuilds the SQLite projection from the current snapshot even when
// it looks fresh.
func (s *Service) Reindex(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("service: reindex: no index configured")
	}
	snap, _, err := s.current(ctx)
	if err != nil {
		return err
	}
	if err := s.db.Replace(snap.Graph, snap.Files); err != nil {
		return fmt.Errorf("service: reindex: %w", err)
	}
	return nil
}
