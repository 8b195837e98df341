// README: Location service keeps the most recent raw fix with an optional Redis mirror.
package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"livenav/internal/types"
)

var ErrNoFix = errors.New("no GNSS data yet")

// Mirror persists fixes outside the process.
type Mirror interface {
	Save(ctx context.Context, f Fix) error
	Load(ctx context.Context) (*Fix, error)
	// Position returns the last position mirrored for a route id.
	Position(ctx context.Context, routeID types.ID) (orb.Point, bool, error)
}

type Service struct {
	mu      sync.Mutex
	latest  *Fix
	byRoute map[types.ID]Fix
	mirror  Mirror
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates the latest-fix slot. mirror may be nil.
func NewService(mirror Mirror, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{mirror: mirror, byRoute: make(map[types.ID]Fix), logger: logger, now: time.Now}
}

// Record replaces the latest fix. Mirror failures are logged only.
func (s *Service) Record(ctx context.Context, f Fix) Fix {
	if f.RecordedAt.IsZero() {
		f.RecordedAt = s.now()
	}
	s.mu.Lock()
	cp := f
	s.latest = &cp
	if f.RouteID != "" {
		s.byRoute[f.RouteID] = f
	}
	s.mu.Unlock()

	if s.mirror != nil {
		if err := s.mirror.Save(ctx, f); err != nil {
			s.logger.Warn("location mirror save failed", zap.Error(err))
		}
	}
	return f
}

// Latest returns the most recent fix or ErrNoFix.
func (s *Service) Latest(ctx context.Context) (Fix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return Fix{}, ErrNoFix
	}
	return *s.latest, nil
}

// LatestForRoute returns the most recent fix recorded against a route. Routes
// not seen by this process fall back to the mirror, which keeps the position
// but not its heading or time.
func (s *Service) LatestForRoute(ctx context.Context, routeID types.ID) (Fix, error) {
	s.mu.Lock()
	f, ok := s.byRoute[routeID]
	s.mu.Unlock()
	if ok {
		return f, nil
	}
	if s.mirror == nil {
		return Fix{}, ErrNoFix
	}
	pos, ok, err := s.mirror.Position(ctx, routeID)
	if err != nil {
		return Fix{}, err
	}
	if !ok {
		return Fix{}, ErrNoFix
	}
	return Fix{Position: pos, RouteID: routeID}, nil
}

// Restore seeds the slot from the mirror, typically once at startup.
func (s *Service) Restore(ctx context.Context) error {
	if s.mirror == nil {
		return nil
	}
	f, err := s.mirror.Load(ctx)
	if errors.Is(err, ErrNoFix) {
		return nil
	}
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.latest == nil {
		s.latest = f
	}
	s.mu.Unlock()
	return nil
}
