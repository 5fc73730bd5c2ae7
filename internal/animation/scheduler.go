package animation

import (
	"log/slog"
	"sort"
	"time"

	"github.com/guidoenr/beatviz/internal/logger"
)

// Beat-trigger and synchronized-run defaults.
const (
	BeatIntensity = 0.4
	BeatDuration  = 200 * time.Millisecond

	SyncIntensity = 0.3
	SyncDuration  = 300 * time.Millisecond
	SyncStagger   = 50 * time.Millisecond
)

// Config describes one run. Intensity is clamped to [0,1]; a non-positive
// Duration uses the preset default. Delay postpones the start.
type Config struct {
	Preset    Preset
	Intensity float64
	Duration  time.Duration
	Delay     time.Duration
}

// State is the published value of a target's run.
type State struct {
	Active    bool      `json:"isActive"`
	Progress  float64   `json:"progress"`
	Value     float64   `json:"value"`
	Property  Property  `json:"property"`
	Preset    Preset    `json:"preset"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats summarises the scheduler's published states.
type Stats struct {
	Total  int      `json:"totalAnimations"`
	Active int      `json:"activeAnimations"`
	IDs    []string `json:"animationIds"`
}

type run struct {
	preset    Preset
	intensity float64
	duration  time.Duration
	start     time.Time
	oneShot   bool
}

// Scheduler owns one run per target id; a new run for an id replaces the old
// one. It is driven by Tick and is not safe for concurrent use.
type Scheduler struct {
	now      func() time.Time
	log      *slog.Logger
	runs     map[string]*run
	states   map[string]State
	paused   bool
	pausedAt time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source used by operations that start runs.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// NewScheduler creates an empty scheduler.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		now:    time.Now,
		log:    logger.Discard(),
		runs:   make(map[string]*run),
		states: make(map[string]State),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("component", "animation"))
	return s
}

// CreateAnimation starts or replaces the run for id. Unknown presets are ignored.
func (s *Scheduler) CreateAnimation(id string, cfg Config) {
	s.start(id, cfg, false)
}

// TriggerBeatAnimation restarts id as a short one-shot of preset that stops
// itself after one period. Callers debounce repeated triggers.
func (s *Scheduler) TriggerBeatAnimation(id string, preset Preset) {
	s.StopAnimation(id)
	s.start(id, Config{Preset: preset, Intensity: BeatIntensity, Duration: BeatDuration}, true)
}

// CreateSynchronizedAnimations starts preset on every id, delaying the i-th
// start by i*stagger.
func (s *Scheduler) CreateSynchronizedAnimations(ids []string, preset Preset, intensity float64, duration, stagger time.Duration) {
	if stagger < 0 {
		stagger = 0
	}
	for i, id := range ids {
		s.start(id, Config{
			Preset:    preset,
			Intensity: intensity,
			Duration:  duration,
			Delay:     time.Duration(i) * stagger,
		}, false)
	}
}

func (s *Scheduler) start(id string, cfg Config, oneShot bool) {
	if !cfg.Preset.Valid() {
		s.log.Debug("unknown preset ignored", slog.String("target", id), slog.String("preset", string(cfg.Preset)))
		return
	}
	if cfg.Duration <= 0 {
		cfg.Duration = cfg.Preset.DefaultDuration()
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}

	s.deactivate(id)
	now := s.now()
	r := &run{
		preset:    cfg.Preset,
		intensity: clamp01(cfg.Intensity),
		duration:  cfg.Duration,
		start:     now.Add(cfg.Delay),
		oneShot:   oneShot,
	}
	s.runs[id] = r
	if cfg.Delay == 0 && !s.paused {
		s.advance(id, r, now)
	}
}

// StopAnimation deactivates id at once. Its last state stays readable with
// Active false. Unknown ids are ignored.
func (s *Scheduler) StopAnimation(id string) {
	s.deactivate(id)
}

// StopAllAnimations stops every run.
func (s *Scheduler) StopAllAnimations() {
	for id := range s.runs {
		s.deactivate(id)
	}
}

func (s *Scheduler) deactivate(id string) {
	delete(s.runs, id)
	if st, ok := s.states[id]; ok && st.Active {
		st.Active = false
		s.states[id] = st
	}
}

// Tick advances every started run to now and retires finished one-shots.
// It does nothing while paused.
func (s *Scheduler) Tick(now time.Time) {
	if s.paused {
		return
	}
	for id, r := range s.runs {
		s.advance(id, r, now)
	}
}

func (s *Scheduler) advance(id string, r *run, now time.Time) {
	if now.Before(r.start) {
		return
	}
	elapsed := now.Sub(r.start)
	if r.oneShot && elapsed >= r.duration {
		delete(s.runs, id)
		s.states[id] = State{
			Progress:  1,
			Value:     Rest(r.preset),
			Property:  r.preset.Property(),
			Preset:    r.preset,
			Timestamp: now,
		}
		return
	}
	progress := float64(elapsed%r.duration) / float64(r.duration)
	s.states[id] = State{
		Active:    true,
		Progress:  progress,
		Value:     Evaluate(r.preset, progress, r.intensity),
		Property:  r.preset.Property(),
		Preset:    r.preset,
		Timestamp: now,
	}
}

// Pause suspends every run until Resume.
func (s *Scheduler) Pause(now time.Time) {
	if s.paused {
		return
	}
	s.paused = true
	s.pausedAt = now
}

// Resume continues paused runs from where they stopped; the paused span is
// skipped rather than replayed.
func (s *Scheduler) Resume(now time.Time) {
	if !s.paused {
		return
	}
	s.paused = false
	gap := now.Sub(s.pausedAt)
	if gap <= 0 {
		return
	}
	for _, r := range s.runs {
		r.start = r.start.Add(gap)
	}
}

// Paused reports whether the scheduler is suspended.
func (s *Scheduler) Paused() bool { return s.paused }

// State returns the last published state for id.
func (s *Scheduler) State(id string) (State, bool) {
	st, ok := s.states[id]
	return st, ok
}

// ActiveIDs returns the ids whose state is active, sorted.
func (s *Scheduler) ActiveIDs() []string {
	ids := make([]string, 0, len(s.states))
	for id, st := range s.states {
		if st.Active {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Stats counts every published state and the active ones.
func (s *Scheduler) Stats() Stats {
	ids := s.ActiveIDs()
	return Stats{Total: len(s.states), Active: len(ids), IDs: ids}
}

// States returns a copy of every published state keyed by id.
func (s *Scheduler) States() map[string]State {
	out := make(map[string]State, len(s.states))
	for id, st := range s.states {
		out[id] = st
	}
	return out
}
