// Package app runs the render loop: one goroutine that acquires a snapshot,
// detects beats, draws and animates on every tick, and applies input and
// remote commands between ticks.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
	"unicode"

	"github.com/eiannone/keyboard"

	"github.com/guidoenr/beatviz/internal/analyzer"
	"github.com/guidoenr/beatviz/internal/animation"
	"github.com/guidoenr/beatviz/internal/beat"
	"github.com/guidoenr/beatviz/internal/beatsync"
	"github.com/guidoenr/beatviz/internal/logger"
	"github.com/guidoenr/beatviz/internal/params"
	"github.com/guidoenr/beatviz/internal/render"
	"github.com/guidoenr/beatviz/internal/session"
)

// Config configures the application runtime.
type Config struct {
	Source   SourceConfig
	Detector beat.Config
	Sync     beatsync.Config

	// Backend is "ansi" or "screen".
	Backend string
	// Width and Height fix the frame size in cells; zero follows the terminal.
	Width      int
	Height     int
	TargetFPS  float64
	ShowStatus bool
	Visualizer string
	Palette    string
	Color      bool

	ProfilePath string
	// PublishHz caps how often snapshots reach the publisher.
	PublishHz float64
	Logger    *slog.Logger
}

// Publisher receives session snapshots from the loop.
type Publisher interface {
	Publish(session.Snapshot)
}

// Option overrides a collaborator, mostly for tests.
type Option func(*App)

// WithSource uses an already opened source.
func WithSource(src *Source) Option { return func(a *App) { a.src = src } }

// WithPresenter replaces the terminal presenter.
func WithPresenter(p render.Presenter) Option { return func(a *App) { a.presenter = p } }

// WithEvents replaces keyboard input.
func WithEvents(events <-chan render.Event) Option { return func(a *App) { a.events = events } }

// WithPublisher forwards snapshots, typically to the web hub.
func WithPublisher(p Publisher) Option { return func(a *App) { a.publisher = p } }

// WithClock sets the time source for ticks and sessions.
func WithClock(now func() time.Time) Option { return func(a *App) { a.now = now } }

type command struct {
	run  func(*App) error
	done chan error
}

// App ties together the spectrum source, the detection session and rendering.
type App struct {
	cfg       Config
	log       *slog.Logger
	now       func() time.Time
	src       *Source
	session   *session.Session
	renderer  *render.Renderer
	presenter render.Presenter
	events    <-chan render.Event
	publisher Publisher
	commands  chan command
	profiler  *profiler

	params   params.Parameters
	meter    *analyzer.LevelMeter
	smoother *animation.Smoother

	frameDuration time.Duration
	ticker        *time.Ticker
	tick          <-chan time.Time
	paused        bool
	last          time.Time
	lastPublish   time.Time
	publishEvery  time.Duration
	frames        int
}

// New constructs the application using the provided configuration.
func New(cfg Config, opts ...Option) (*App, error) {
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = 60
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	if cfg.PublishHz <= 0 {
		cfg.PublishHz = 30
	}

	a := &App{
		cfg:           cfg,
		log:           cfg.Logger.With(slog.String("component", "app")),
		now:           time.Now,
		commands:      make(chan command),
		params:        params.Defaults(),
		smoother:      animation.NewSmoother(int(cfg.TargetFPS)),
		frameDuration: time.Duration(float64(time.Second) / cfg.TargetFPS),
		publishEvery:  time.Duration(float64(time.Second) / cfg.PublishHz),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.src == nil {
		src, err := OpenSource(cfg.Source, a.now, cfg.Logger)
		if err != nil {
			return nil, err
		}
		a.src = src
	}

	if a.presenter == nil {
		if err := a.openPresenter(); err != nil {
			_ = a.src.Close()
			return nil, err
		}
	}

	width, height := cfg.Width, cfg.Height
	if w, h, ok := a.presenter.Size(); ok {
		if width <= 0 {
			width = w
		}
		if height <= 0 {
			height = h
		}
	}
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}
	renderer, err := render.New(render.Config{
		Width:      width,
		Height:     height,
		Visualizer: cfg.Visualizer,
		Palette:    cfg.Palette,
	})
	if err != nil {
		_ = a.presenter.Close()
		_ = a.src.Close()
		return nil, err
	}
	a.renderer = renderer
	a.meter = analyzer.NewLevelMeter(a.src.Nyquist)
	a.profiler = newProfiler(cfg.ProfilePath, a.log)
	a.session = a.newSession()
	return a, nil
}

func (a *App) openPresenter() error {
	if a.cfg.Backend == "screen" {
		screen, err := render.NewScreen(a.cfg.ShowStatus)
		if err != nil {
			return err
		}
		a.presenter = screen
		if a.events == nil {
			a.events = screen.Events()
		}
		return nil
	}
	a.presenter = render.NewTerminal(os.Stdout, render.TerminalConfig{
		FD:         int(os.Stdout.Fd()),
		Color:      a.cfg.Color,
		Palette:    a.cfg.Palette,
		ShowStatus: a.cfg.ShowStatus,
		AltScreen:  true,
	})
	return nil
}

func (a *App) newSession() *session.Session {
	dc := a.cfg.Detector
	if dc.Nyquist <= 0 {
		dc.Nyquist = a.src.Nyquist
	}
	return session.New(a.src, session.Config{
		Detector: dc,
		Sync:     a.cfg.Sync,
		Track:    a.src.Track,
		Now:      a.now,
		Logger:   a.cfg.Logger,
	})
}

// SetPublisher forwards snapshots to p. It must be called before Run.
func (a *App) SetPublisher(p Publisher) { a.publisher = p }

// Nyquist is the source's Nyquist frequency.
func (a *App) Nyquist() float64 { return a.src.Nyquist }

// Run drives the loop until the context is cancelled or the user quits.
func (a *App) Run(ctx context.Context) error {
	a.ticker = time.NewTicker(a.frameDuration)
	defer a.ticker.Stop()
	a.tick = a.ticker.C

	inputCtx, cancelInput := context.WithCancel(ctx)
	defer cancelInput()
	events := a.events
	if events == nil {
		events = a.startInputListener(inputCtx)
	}
	a.ensureDimensions()
	a.last = a.now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if a.handleEvent(evt) {
				return nil
			}
		case cmd := <-a.commands:
			cmd.done <- cmd.run(a)
		case <-a.tick:
			if err := a.step(a.now()); err != nil {
				if errors.Is(err, render.ErrRendererQuit) {
					return nil
				}
				return err
			}
		}
	}
}

// Close releases held resources.
func (a *App) Close() error {
	a.session.Close()
	return errors.Join(a.presenter.Close(), a.src.Close(), a.profiler.Close())
}

func (a *App) step(now time.Time) error {
	a.profiler.beginFrame()
	a.ensureDimensions()

	delta := now.Sub(a.last).Seconds()
	if delta <= 0 {
		delta = 1.0 / a.cfg.TargetFPS
	}
	a.last = now

	a.session.Acquire()
	a.profiler.markSection("acquire")
	frame := a.session.Detect(now)
	a.profiler.markSection("detect")

	spectrum := a.session.Spectrum()
	a.params.Apply(frame, a.meter.Measure(spectrum), delta)
	a.params.UpdateTime(delta)

	in := render.Input{
		Spectrum:  spectrum,
		Beat:      frame,
		Visual:    a.params,
		Transform: a.smoother.Step(a.session.Transform()),
		Mapper:    a.session.Mapper(),
	}
	img := a.renderer.Draw(in)
	status := a.renderer.Status(in, 1.0/delta)
	if a.src.Label != "" {
		status += " | " + a.src.Label
	}
	err := a.presenter.Present(img, status)
	a.profiler.markSection("render")
	if err != nil {
		return err
	}

	a.session.Animate(now)
	a.profiler.markSection("animate")

	if now.Sub(a.lastPublish) >= a.publishEvery {
		a.publish(now)
	}
	a.profiler.endFrame()
	a.frames++
	return nil
}

func (a *App) publish(now time.Time) {
	if a.publisher == nil {
		return
	}
	a.lastPublish = now
	a.publisher.Publish(a.session.Snapshot())
}

func (a *App) ensureDimensions() {
	if a.cfg.Width > 0 && a.cfg.Height > 0 {
		return
	}
	w, h, ok := a.presenter.Size()
	if !ok {
		return
	}
	if a.cfg.Width > 0 {
		w = a.cfg.Width
	}
	if a.cfg.Height > 0 {
		h = a.cfg.Height
	}
	if w == a.renderer.Width() && h == a.renderer.Height() {
		return
	}
	a.renderer.Resize(w, h)
	a.log.Debug("resized", slog.Int("width", w), slog.Int("height", h))
}

// handleEvent applies one input event and reports whether to quit.
func (a *App) handleEvent(evt render.Event) bool {
	switch evt.Kind {
	case render.EventQuit:
		return true
	case render.EventResize:
		a.ensureDimensions()
	case render.EventKey:
		switch unicode.ToLower(evt.Rune) {
		case ' ':
			a.togglePause()
		case 'r':
			a.resetSession()
		case 'v':
			kind := a.renderer.CycleKind()
			a.log.Info("visualizer changed", slog.String("visualizer", string(kind)))
		case 'q':
			return true
		}
	}
	return false
}

func (a *App) togglePause() {
	now := a.now()
	if !a.paused {
		a.paused = true
		a.ticker.Stop()
		a.tick = nil
		a.session.Pause(now)
		a.log.Info("paused")
		return
	}
	a.paused = false
	a.ticker.Reset(a.frameDuration)
	a.tick = a.ticker.C
	a.session.Resume(now)
	a.last = now
	a.log.Info("resumed")
}

func (a *App) resetSession() {
	old := a.session.ID
	a.session.Close()
	a.src.Restart()
	a.meter.Reset()
	a.smoother.Reset()
	a.params = params.Defaults()
	a.session = a.newSession()
	if a.paused {
		a.session.Pause(a.now())
	}
	a.log.Info("session reset", slog.String("previous", old), slog.String("session", a.session.ID))
	a.publish(a.now())
}

// do runs fn on the loop goroutine and waits for its result.
func (a *App) do(ctx context.Context, fn func(*App) error) error {
	cmd := command{run: fn, done: make(chan error, 1)}
	select {
	case a.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetThresholds updates the running detector's gates.
func (a *App) SetThresholds(ctx context.Context, t beat.Thresholds) error {
	return a.do(ctx, func(a *App) error {
		a.session.SetThresholds(t.Beat, t.Kick, t.Bass)
		a.publish(a.now())
		return nil
	})
}

// UpdateThresholds merges u into the running detector's gates on the loop
// and returns the clamped result.
func (a *App) UpdateThresholds(ctx context.Context, u beat.ThresholdsUpdate) (beat.Thresholds, error) {
	var t beat.Thresholds
	err := a.do(ctx, func(a *App) error {
		t = u.Merge(a.session.Detector().Thresholds())
		a.session.SetThresholds(t.Beat, t.Kick, t.Bass)
		t = a.session.Detector().Thresholds()
		a.publish(a.now())
		return nil
	})
	return t, err
}

// Reset replaces the running session with a fresh one.
func (a *App) Reset(ctx context.Context) error {
	return a.do(ctx, func(a *App) error {
		a.resetSession()
		return nil
	})
}

// Snapshot returns the running session's state.
func (a *App) Snapshot(ctx context.Context) (session.Snapshot, error) {
	var snap session.Snapshot
	err := a.do(ctx, func(a *App) error {
		snap = a.session.Snapshot()
		return nil
	})
	return snap, err
}

func (a *App) startInputListener(ctx context.Context) <-chan render.Event {
	if err := keyboard.Open(); err != nil {
		a.log.Warn("keyboard input disabled", slog.Any("error", err))
		return nil
	}

	events := make(chan render.Event, 16)

	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer close(events)
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			var evt render.Event
			switch {
			case key == keyboard.KeyEsc || key == keyboard.KeyCtrlC:
				evt = render.Event{Kind: render.EventQuit}
			case key == keyboard.KeySpace:
				evt = render.Event{Kind: render.EventKey, Rune: ' '}
			case char != 0:
				evt = render.Event{Kind: render.EventKey, Rune: char}
			default:
				continue
			}
			select {
			case events <- evt:
			case <-ctx.Done():
				return
			}
			if evt.Kind == render.EventQuit {
				return
			}
		}
	}()
	return events
}

func (a *App) String() string {
	return fmt.Sprintf("app(%s, %s)", a.renderer.Kind(), a.src.Label)
}
