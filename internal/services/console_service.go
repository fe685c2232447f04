package services

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codecheckerai/analysis-console/internal/metrics"
	"github.com/codecheckerai/analysis-console/internal/normalize"
	"github.com/codecheckerai/analysis-console/internal/screen"
	"github.com/codecheckerai/analysis-console/internal/session"
	"github.com/codecheckerai/analysis-console/internal/utils"
)

var (
	// ErrUnknownScreen is returned when a screen name is not in the catalogue.
	ErrUnknownScreen = errors.New("unknown screen")
	// ErrSessionNotFound is returned for ids that were never mounted, were
	// unmounted, or were evicted.
	ErrSessionNotFound = errors.New("session not found")
)

// ConsoleService mounts screens and holds them in a bounded registry.
type ConsoleService struct {
	logger    *slog.Logger
	deps      screen.Deps
	sessions  *lru.Cache[string, screen.Binding]
	latencies *utils.LatencyTracker
}

// Options configure a ConsoleService.
type Options struct {
	MaxSessions    int
	MaxUploadBytes int64
}

// NewConsoleService constructs the console facade.
func NewConsoleService(logger *slog.Logger, analyzer screen.Analyzer, opts Options) (*ConsoleService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if analyzer == nil {
		return nil, errors.New("analysis client not configured")
	}

	s := &ConsoleService{
		logger:    logger,
		latencies: utils.NewLatencyTracker(1024),
	}
	s.deps = screen.Deps{
		Analyzer:       analyzer,
		Normalizer:     normalize.New(logger),
		Observer:       s.observe,
		Logger:         logger,
		MaxUploadBytes: opts.MaxUploadBytes,
	}

	cache, err := lru.NewWithEvict[string, screen.Binding](opts.MaxSessions, s.onEvict)
	if err != nil {
		return nil, fmt.Errorf("session registry: %w", err)
	}
	s.sessions = cache
	return s, nil
}

// Catalogue lists the screens that can be mounted.
func (s *ConsoleService) Catalogue() []screen.Entry {
	return screen.Catalogue()
}

// Mount creates an idle screen of the named kind and returns its id.
func (s *ConsoleService) Mount(name string) (string, screen.Binding, error) {
	kind, ok := screen.Lookup(name)
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownScreen, name)
	}
	b, err := screen.New(kind, s.deps)
	if err != nil {
		return "", nil, err
	}
	id := uuid.NewString()
	s.sessions.Add(id, b)
	metrics.SessionMounted(string(kind), 1)
	s.logger.Debug("screen mounted", slog.String("id", id), slog.String("screen", string(kind)))
	return id, b, nil
}

// Lookup returns the mounted screen with the given id.
func (s *ConsoleService) Lookup(id string) (screen.Binding, error) {
	b, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return b, nil
}

// View renders the current state of a mounted screen.
func (s *ConsoleService) View(id string) (screen.View, error) {
	b, err := s.Lookup(id)
	if err != nil {
		return screen.View{}, err
	}
	return b.View(), nil
}

// Submit hands form input to a mounted screen and returns the resulting view.
func (s *ConsoleService) Submit(id string, in screen.Input) (screen.View, error) {
	b, err := s.Lookup(id)
	if err != nil {
		return screen.View{}, err
	}
	return b.Submit(in), nil
}

// Unmount closes a screen. Responses still in flight for it are dropped.
func (s *ConsoleService) Unmount(id string) error {
	if !s.sessions.Remove(id) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// Active reports how many screens are mounted.
func (s *ConsoleService) Active() int {
	return s.sessions.Len()
}

// Shutdown unmounts every screen.
func (s *ConsoleService) Shutdown() {
	s.sessions.Purge()
}

// LatencyP95 returns the current p95 round-trip latency.
func (s *ConsoleService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}

func (s *ConsoleService) onEvict(id string, b screen.Binding) {
	b.Close()
	metrics.SessionMounted(string(b.Kind()), -1)
	s.logger.Debug("screen unmounted", slog.String("id", id), slog.String("screen", string(b.Kind())))
}

func (s *ConsoleService) observe(e session.Event) {
	metrics.ObserveSubmission(e.Screen, e.Outcome, e.Elapsed)
	if e.Outcome != metrics.OutcomeSuccess && e.Outcome != metrics.OutcomeTransport {
		return
	}
	s.latencies.Observe(e.Elapsed)
	if total := s.latencies.Total(); total >= 20 && total%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("analysis round-trip latency", slog.Duration("p95", p95), slog.Int("samples", s.latencies.Count()))
	}
}
