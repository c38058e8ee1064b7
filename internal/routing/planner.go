package routing

import (
	"context"
	"errors"
	"sync"

	"backend-barrierfree/internal/observability"
	"backend-barrierfree/internal/proximity"
	"backend-barrierfree/internal/shared/geo"

	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidMode = errors.New("unknown transport mode")
	ErrNoRoute     = errors.New("no route found")
	ErrProvider    = errors.New("routing provider failed")
	// ErrSuperseded means a newer plan for the same caller replaced this one.
	ErrSuperseded = errors.New("route request superseded by a newer one")
)

const DefaultArrowEvery = 10

// BarrierSource loads approved barriers inside a bounding box.
type BarrierSource interface {
	BarriersWithin(ctx context.Context, b geo.Bounds) ([]proximity.Barrier, error)
}

type inflight struct {
	gen    uint64
	cancel context.CancelFunc
}

// Planner fetches a path per mode and scores each against nearby barriers.
// Plans are tracked per caller key; starting a new plan cancels the caller's
// previous one so a slow stale answer can never overwrite a fresh one.
type Planner struct {
	provider   Provider
	barriers   BarrierSource
	scorer     proximity.Scorer
	arrowEvery int
	log        logrus.FieldLogger

	mu       sync.Mutex
	next     uint64
	inflight map[string]inflight
}

func NewPlanner(provider Provider, barriers BarrierSource, scorer proximity.Scorer, log logrus.FieldLogger) *Planner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Planner{
		provider:   provider,
		barriers:   barriers,
		scorer:     scorer,
		arrowEvery: DefaultArrowEvery,
		log:        log,
		inflight:   map[string]inflight{},
	}
}

func (p *Planner) begin(ctx context.Context, key string) (context.Context, uint64, func()) {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.next++
	gen := p.next
	if key != "" {
		if prev, ok := p.inflight[key]; ok {
			prev.cancel()
		}
		p.inflight[key] = inflight{gen: gen, cancel: cancel}
	}
	p.mu.Unlock()

	return ctx, gen, func() {
		p.mu.Lock()
		if cur, ok := p.inflight[key]; ok && cur.gen == gen {
			delete(p.inflight, key)
		}
		p.mu.Unlock()
		cancel()
	}
}

func (p *Planner) current(key string, gen uint64) bool {
	if key == "" {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.inflight[key]
	return ok && cur.gen == gen
}

// Plan routes req for every requested mode. key identifies the caller; an
// empty key opts out of superseding.
func (p *Planner) Plan(ctx context.Context, key string, req PlanRequest) (Plan, error) {
	if err := req.Start.Validate(); err != nil {
		return Plan{}, err
	}
	if err := req.End.Validate(); err != nil {
		return Plan{}, err
	}
	modes, err := normalizeModes(req.Modes)
	if err != nil {
		return Plan{}, err
	}

	ctx, gen, done := p.begin(ctx, key)
	defer done()

	plan, err := p.plan(ctx, req.Start, req.End, modes)
	if !p.current(key, gen) {
		observability.RoutesPlanned.WithLabelValues("superseded").Inc()
		return Plan{}, ErrSuperseded
	}
	if err != nil {
		observability.RoutesPlanned.WithLabelValues("error").Inc()
		return Plan{}, err
	}
	plan.Generation = gen
	observability.RoutesPlanned.WithLabelValues("ok").Inc()
	return plan, nil
}

func (p *Planner) plan(ctx context.Context, start, end geo.Point, modes []Mode) (Plan, error) {
	paths := make([]Path, len(modes))
	errs := make([]error, len(modes))
	var wg sync.WaitGroup
	for i, mode := range modes {
		wg.Add(1)
		go func(i int, mode Mode) {
			defer wg.Done()
			paths[i], errs[i] = p.provider.Route(ctx, mode, start, end)
		}(i, mode)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}

	var (
		plan     Plan
		all      []geo.Point
		firstErr error
		routed   []Path
	)
	for i, err := range errs {
		if err != nil {
			p.log.WithError(err).WithField("mode", modes[i]).Warn("mode could not be routed")
			plan.Unavailable = append(plan.Unavailable, modes[i])
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		routed = append(routed, paths[i])
		all = append(all, paths[i].Points...)
	}
	if len(routed) == 0 {
		return Plan{}, firstErr
	}

	all = append(all, start, end)
	barriers, err := p.barriers.BarriersWithin(ctx, geo.BoundsOf(all, p.scorer.RadiusM))
	if err != nil {
		return Plan{}, err
	}

	plan.Options = make([]Option, 0, len(routed))
	for _, path := range routed {
		plan.Options = append(plan.Options, p.score(path, barriers))
	}
	return plan, nil
}

func (p *Planner) score(path Path, barriers []proximity.Barrier) Option {
	return Option{
		Mode:      path.Mode,
		DistanceM: path.DistanceM,
		DurationS: path.DurationS,
		Points:    path.Points,
		Segments:  p.scorer.Segments(path.Points, barriers),
		Arrows:    proximity.Arrows(path.Points, p.arrowEvery),
		Summary:   p.scorer.Summarize(path.Points, barriers),
	}
}

func normalizeModes(in []Mode) ([]Mode, error) {
	if len(in) == 0 {
		return AllModes, nil
	}
	seen := map[Mode]bool{}
	out := make([]Mode, 0, len(in))
	for _, m := range in {
		if _, err := ParseMode(string(m)); err != nil {
			return nil, err
		}
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out, nil
}
