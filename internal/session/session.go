// Package session binds one audio source to its detector, scheduler and beat
// adapter. A session lives from start (or track change) until Close; a
// reset replaces it with a fresh one rather than clearing shared state.
package session

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/guidoenr/beatviz/internal/animation"
	"github.com/guidoenr/beatviz/internal/beat"
	"github.com/guidoenr/beatviz/internal/beatsync"
	"github.com/guidoenr/beatviz/internal/colormap"
	"github.com/guidoenr/beatviz/internal/logger"
	"github.com/guidoenr/beatviz/internal/track"
)

// Config wires a session. Detector.Now and Detector.Logger default to the
// session's clock and logger.
type Config struct {
	Detector beat.Config
	Sync     beatsync.Config
	Track    *track.Info
	Now      func() time.Time
	Logger   *slog.Logger
}

// Session is one run of the detection pipeline. Like its parts it is owned
// by a single goroutine.
type Session struct {
	ID        string
	StartedAt time.Time
	Track     *track.Info

	src       beat.Source
	detector  *beat.Detector
	scheduler *animation.Scheduler
	adapter   *beatsync.Adapter
	mapper    colormap.Mapper
	log       *slog.Logger

	spectrum []uint8
	frame    beat.Frame
	frames   int
	beats    int
	closed   bool
}

// Snapshot is the serialisable view of a session published to clients.
type Snapshot struct {
	ID           string                     `json:"id"`
	StartedAt    time.Time                  `json:"startedAt"`
	Track        *track.Info                `json:"track,omitempty"`
	Frames       int                        `json:"frames"`
	Beats        int                        `json:"beats"`
	Triggers     int                        `json:"triggers"`
	Beat         beat.Frame                 `json:"beat"`
	Thresholds   beat.Thresholds            `json:"thresholds"`
	Animations   animation.Stats            `json:"animations"`
	States       map[string]animation.State `json:"states"`
	Distribution map[string]float64         `json:"distribution"`
}

// New starts a session reading src. A nil src produces neutral frames.
func New(src beat.Source, cfg Config) *Session {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	id := uuid.NewString()
	log = log.With(slog.String("session", id))

	dc := cfg.Detector
	if dc.Now == nil {
		dc.Now = now
	}
	if dc.Logger == nil {
		dc.Logger = log
	}
	sc := cfg.Sync
	if sc.Logger == nil {
		sc.Logger = log
	}
	scheduler := animation.NewScheduler(animation.WithClock(now), animation.WithLogger(log))

	s := &Session{
		ID:        id,
		StartedAt: now(),
		Track:     cfg.Track,
		src:       src,
		detector:  beat.New(nil, dc),
		scheduler: scheduler,
		adapter:   beatsync.New(scheduler, sc),
		mapper:    colormap.WithNyquist(dc.Nyquist),
		log:       log,
	}
	if src != nil {
		s.spectrum = make([]uint8, max(0, src.BinCount()))
	}
	attrs := []any{slog.Int("bins", len(s.spectrum)), slog.String("mode", string(s.adapter.Mode()))}
	if s.Track != nil {
		attrs = append(attrs, slog.String("track", s.Track.Label()))
	}
	log.Info("session started", attrs...)
	return s
}

// Step acquires one snapshot, runs detection on it exactly once and hands
// the frame to the beat adapter.
func (s *Session) Step(now time.Time) beat.Frame {
	s.Acquire()
	return s.Detect(now)
}

// Acquire reads the next snapshot into the session's buffer.
func (s *Session) Acquire() {
	if s.src == nil {
		return
	}
	if n := s.src.BinCount(); n != len(s.spectrum) {
		s.spectrum = make([]uint8, max(0, n))
	}
	if len(s.spectrum) > 0 {
		s.src.ReadFrequencies(s.spectrum)
	}
}

// Detect analyzes the acquired snapshot and forwards the frame.
func (s *Session) Detect(now time.Time) beat.Frame {
	frame := s.detector.Analyze(s.spectrum)
	s.frame = frame
	s.frames++
	if frame.IsBeat {
		s.beats++
	}
	s.adapter.OnFrame(frame, now)
	return frame
}

// Spectrum is the snapshot read by the last Step. It is overwritten by the
// next one.
func (s *Session) Spectrum() []uint8 { return s.spectrum }

// Frame is the result of the last Step.
func (s *Session) Frame() beat.Frame { return s.frame }

// Animate advances every run to now.
func (s *Session) Animate(now time.Time) { s.scheduler.Tick(now) }

// Transform folds the active runs into one adjustment, in target order.
func (s *Session) Transform() animation.Transform {
	t := animation.Identity()
	for _, id := range s.adapter.Targets() {
		if st, ok := s.scheduler.State(id); ok {
			t.Apply(st)
		}
	}
	return t
}

// Pause freezes animations.
func (s *Session) Pause(now time.Time) { s.scheduler.Pause(now) }

// Paused reports whether the session is paused.
func (s *Session) Paused() bool { return s.scheduler.Paused() }

// Resume continues animations from now. The paused span does not count
// towards the tempo estimate.
func (s *Session) Resume(now time.Time) {
	s.detector.Resume()
	s.scheduler.Resume(now)
}

// SetThresholds updates the detector's gates; values are clamped to [0,1].
func (s *Session) SetThresholds(beatT, kick, bass float64) {
	s.detector.SetThresholds(beatT, kick, bass)
	s.log.Info("thresholds updated",
		slog.Float64("beat", beatT),
		slog.Float64("kick", kick),
		slog.Float64("bass", bass))
}

func (s *Session) Detector() *beat.Detector        { return s.detector }
func (s *Session) Scheduler() *animation.Scheduler { return s.scheduler }
func (s *Session) Adapter() *beatsync.Adapter      { return s.adapter }
func (s *Session) Mapper() colormap.Mapper         { return s.mapper }

// Snapshot copies the session's published state.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:           s.ID,
		StartedAt:    s.StartedAt,
		Track:        s.Track,
		Frames:       s.frames,
		Beats:        s.beats,
		Triggers:     s.adapter.Triggers(),
		Beat:         s.frame,
		Thresholds:   s.detector.Thresholds(),
		Animations:   s.scheduler.Stats(),
		States:       s.scheduler.States(),
		Distribution: s.mapper.Distribution(s.spectrum),
	}
}

// Close stops every animation of the session. It is safe to call twice.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.adapter.Stop()
	s.scheduler.StopAllAnimations()
	s.log.Info("session closed",
		slog.Int("frames", s.frames),
		slog.Int("beats", s.beats),
		slog.Int("bpm", s.detector.BPM()))
}
