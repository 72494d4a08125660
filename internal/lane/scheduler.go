package lane

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Scheduler owns the two global lanes shared by every index of a client:
// one for builds, one for searches. At most one build and one search run
// at any instant across the whole client.
type Scheduler struct {
	build  *Lane
	search *Lane
}

// NewScheduler starts the build and search lanes.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		build:  New(KindBuild, logger),
		search: New(KindSearch, logger),
	}
}

// Build returns the build lane.
func (s *Scheduler) Build() *Lane { return s.build }

// Search returns the search lane.
func (s *Scheduler) Search() *Lane { return s.search }

// Lane returns the lane for kind, or nil for an unknown kind.
func (s *Scheduler) Lane(kind Kind) *Lane {
	switch kind {
	case KindBuild:
		return s.build
	case KindSearch:
		return s.search
	default:
		return nil
	}
}

// Stats returns a snapshot of both lanes.
func (s *Scheduler) Stats() []Stats {
	return []Stats{s.build.Stats(), s.search.Stats()}
}

// Close drains both lanes concurrently. See Lane.Close.
func (s *Scheduler) Close(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range []*Lane{s.build, s.search} {
		g.Go(func() error {
			return l.Close(gctx)
		})
	}
	return g.Wait()
}
