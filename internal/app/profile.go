package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// profiler appends per-section frame timings as CSV. A nil profiler is a
// valid no-op.
type profiler struct {
	mu    sync.Mutex
	out   io.Writer
	file  *os.File
	now   func() time.Time
	start time.Time
	last  time.Time
}

func newProfiler(path string, logger *slog.Logger) *profiler {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Warn("profiler disabled", slog.String("path", path), slog.Any("error", err))
		return nil
	}
	p := newProfilerWriter(f, time.Now)
	p.file = f
	logger.Info("profiling frames", slog.String("path", path))
	return p
}

func newProfilerWriter(out io.Writer, now func() time.Time) *profiler {
	p := &profiler{out: out, now: now}
	fmt.Fprintln(p.out, "timestamp,section,delta_ms")
	return p
}

func (p *profiler) beginFrame() {
	if p == nil {
		return
	}
	now := p.now()
	p.start = now
	p.last = now
	p.log(now, "frame_start", 0)
}

func (p *profiler) markSection(name string) {
	if p == nil {
		return
	}
	now := p.now()
	delta := now.Sub(p.last).Seconds() * 1000
	p.last = now
	p.log(now, name, delta)
}

func (p *profiler) endFrame() {
	if p == nil {
		return
	}
	now := p.now()
	p.log(now, "frame_total", now.Sub(p.start).Seconds()*1000)
}

func (p *profiler) Close() error {
	if p == nil || p.file == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.file.Close()
	p.file = nil
	p.out = io.Discard
	return err
}

func (p *profiler) log(at time.Time, section string, deltaMs float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s,%s,%.3f\n", at.Format(time.RFC3339Nano), section, deltaMs)
}
