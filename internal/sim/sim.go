// Package sim runs wandering entities against the current collision world.
// Each tick computes every move concurrently against a read-only snapshot of
// the world, then applies the results serially.
package sim

import (
	"context"
	"errors"
	"fmt"
	gomath "math"
	"math/rand"
	"time"

	"github.com/yohamta/donburi"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/tilecollide/internal/config"
	"github.com/Faultbox/tilecollide/internal/logger"
	"github.com/Faultbox/tilecollide/internal/world"
	"github.com/Faultbox/tilecollide/pkg/collision"
	"github.com/Faultbox/tilecollide/pkg/math"
)

// ErrNoWorld is returned when no world has been loaded yet.
var ErrNoWorld = errors.New("no world loaded")

// spawnAttempts bounds the random probes per spawned entity.
const spawnAttempts = 64

// Options configures a simulation.
type Options struct {
	TickRate     int
	Entities     int
	Workers      int
	EntityWidth  float64
	EntityHeight float64
	Speed        float64 // pixels per second
	Seed         int64
	Mask         collision.TagMask
}

// OptionsFromConfig converts the simulation section of the config.
func OptionsFromConfig(cfg config.SimulationConfig) Options {
	return Options{
		TickRate:     cfg.TickRate,
		Entities:     cfg.Entities,
		Workers:      cfg.Workers,
		EntityWidth:  cfg.EntityWidth,
		EntityHeight: cfg.EntityHeight,
		Speed:        cfg.Speed,
		Seed:         cfg.Seed,
		Mask:         collision.MaskAll,
	}
}

// Stats summarizes a simulation.
type Stats struct {
	Entities int
	Ticks    int64
	Hits     int
	Edges    int
}

// Sim owns the entity world and steps it against the current map.
type Sim struct {
	ecs     donburi.World
	current func() *world.World
	opts    Options
	rng     *rand.Rand
	ticks   int64
	log     *zap.Logger
}

// New creates a simulation reading its map from current, which is called
// once per tick so a hot reload takes effect on the next step.
func New(current func() *world.World, opts Options) (*Sim, error) {
	if opts.TickRate <= 0 {
		return nil, fmt.Errorf("tick rate must be positive, got %d", opts.TickRate)
	}
	if opts.EntityWidth <= 0 || opts.EntityHeight <= 0 {
		return nil, fmt.Errorf("entity size must be positive, got %vx%v", opts.EntityWidth, opts.EntityHeight)
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Mask == 0 {
		opts.Mask = collision.MaskAll
	}
	return &Sim{
		ecs:     donburi.NewWorld(),
		current: current,
		opts:    opts,
		rng:     rand.New(rand.NewSource(opts.Seed)),
		log:     logger.Named("sim"),
	}, nil
}

// Spawn places up to opts.Entities walkers on free spots of the current
// world, each heading in a random direction. It returns how many were placed.
func (s *Sim) Spawn() (int, error) {
	w := s.current()
	if w == nil {
		return 0, ErrNoWorld
	}

	bounds := w.Bounds()
	spanX := bounds.W - s.opts.EntityWidth
	spanY := bounds.H - s.opts.EntityHeight
	if spanX < 0 || spanY < 0 {
		return 0, fmt.Errorf("entity %vx%v does not fit map %s", s.opts.EntityWidth, s.opts.EntityHeight, w.Name)
	}

	placed := 0
	for i := 0; i < s.opts.Entities; i++ {
		for attempt := 0; attempt < spawnAttempts; attempt++ {
			box := math.NewRect(
				gomath.Floor(bounds.X+s.rng.Float64()*spanX),
				gomath.Floor(bounds.Y+s.rng.Float64()*spanY),
				s.opts.EntityWidth, s.opts.EntityHeight,
			)
			if !w.Overlaps(box, s.opts.Mask).Empty() {
				continue
			}
			angle := s.rng.Float64() * 2 * gomath.Pi
			s.Add(box, math.Vec2{X: gomath.Cos(angle), Y: gomath.Sin(angle)}.Scale(s.opts.Speed))
			placed++
			break
		}
	}

	if placed < s.opts.Entities {
		s.log.Warn("not every entity found a free spot",
			zap.Int("requested", s.opts.Entities),
			zap.Int("placed", placed))
	}
	return placed, nil
}

// Add creates a walker at box moving with velocity v.
func (s *Sim) Add(box math.Rect, v math.Vec2) donburi.Entity {
	entity := s.ecs.Create(Body, Velocity, Walker)
	entry := s.ecs.Entry(entity)
	Body.Set(entry, &BodyData{Rect: box})
	Velocity.Set(entry, &VelocityData{V: v})
	return entity
}

// Body returns the current box of an entity.
func (s *Sim) Body(e donburi.Entity) (math.Rect, bool) {
	if !s.ecs.Valid(e) {
		return math.Rect{}, false
	}
	return Body.Get(s.ecs.Entry(e)).Rect, true
}

// Bodies returns the boxes of all walkers in iteration order.
func (s *Sim) Bodies() []math.Rect {
	var out []math.Rect
	Walker.Each(s.ecs, func(entry *donburi.Entry) {
		out = append(out, Body.Get(entry).Rect)
	})
	return out
}

// Stats returns counters over all walkers.
func (s *Sim) Stats() Stats {
	st := Stats{Ticks: s.ticks}
	Walker.Each(s.ecs, func(entry *donburi.Entry) {
		wd := Walker.Get(entry)
		st.Entities++
		st.Hits += wd.Hits
		st.Edges += wd.Edges
	})
	return st
}

type pending struct {
	entry *donburi.Entry
	body  math.Rect
	vel   math.Vec2
	move  world.Move
}

// Step advances every walker by one tick.
func (s *Sim) Step(ctx context.Context) error {
	w := s.current()
	if w == nil {
		return ErrNoWorld
	}

	var batch []*pending
	Walker.Each(s.ecs, func(entry *donburi.Entry) {
		batch = append(batch, &pending{
			entry: entry,
			body:  Body.Get(entry).Rect,
			vel:   Velocity.Get(entry).V,
		})
	})

	dt := 1 / float64(s.opts.TickRate)
	mover := world.NewMover(w, s.opts.Mask)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, p := range batch {
		p := p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p.move = mover.MoveAndSlide(p.body, p.vel.Scale(dt))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	bounds := w.Bounds()
	for _, p := range batch {
		s.apply(p, bounds)
	}
	s.ticks++
	return nil
}

// apply writes a computed move back, reflecting the velocity off every
// surface hit. A move that would leave the map is dropped and the velocity
// turned around on the offending axis.
func (s *Sim) apply(p *pending, bounds math.Rect) {
	box := p.move.Rect
	v := p.vel
	wd := Walker.Get(p.entry)

	for _, n := range p.move.Normals {
		if d := v.Dot(n); d < 0 {
			v = v.Sub(n.Scale(2 * d))
		}
	}
	wd.Hits += p.move.Hits

	if box.X < bounds.X || box.MaxX() > bounds.MaxX() {
		v.X = -v.X
		box = p.body
		wd.Edges++
	}
	if box.Y < bounds.Y || box.MaxY() > bounds.MaxY() {
		v.Y = -v.Y
		box = p.body
		wd.Edges++
	}

	Body.Get(p.entry).Rect = box
	Velocity.Get(p.entry).V = v
}

// Run steps the simulation at the configured tick rate until ctx is done.
func (s *Sim) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(s.opts.TickRate))
	defer ticker.Stop()

	s.log.Info("simulation started",
		zap.Int("tick_rate", s.opts.TickRate),
		zap.Int("workers", s.opts.Workers),
		zap.Int("entities", s.Stats().Entities))

	for {
		select {
		case <-ctx.Done():
			st := s.Stats()
			s.log.Info("simulation stopped",
				zap.Int64("ticks", st.Ticks),
				zap.Int("hits", st.Hits),
				zap.Int("edges", st.Edges))
			return nil
		case <-ticker.C:
			if err := s.Step(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				if errors.Is(err, ErrNoWorld) {
					s.log.Debug("tick skipped, no world")
					continue
				}
				return err
			}
			if s.ticks%int64(s.opts.TickRate) == 0 {
				st := s.Stats()
				s.log.Debug("tick",
					zap.Int64("ticks", st.Ticks),
					zap.Int("hits", st.Hits),
					zap.Int("edges", st.Edges))
			}
		}
	}
}
