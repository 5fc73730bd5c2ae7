// Package beat turns per-tick byte spectra into debounced beat, kick and bass
// signals with a running tempo estimate.
package beat

import (
	"log/slog"
	"math"
	"time"

	"github.com/guidoenr/beatviz/internal/logger"
)

// Source supplies one spectrum snapshot per tick. ReadFrequencies fills dst,
// whose length equals BinCount, with magnitudes from lowest to highest bin.
type Source interface {
	BinCount() int
	ReadFrequencies(dst []uint8)
}

// Frame is the detector output for one tick.
type Frame struct {
	KickDetected bool    `json:"kickDetected"`
	BassDetected bool    `json:"bassDetected"`
	BeatStrength float64 `json:"beatStrength"`
	KickStrength float64 `json:"kickStrength"`
	BassStrength float64 `json:"bassStrength"`
	BPM          int     `json:"bpm"`
	IsBeat       bool    `json:"isBeat"`
	// StrongBeat is set when the smoothed beat strength exceeds the beat threshold.
	StrongBeat bool `json:"strongBeat"`
}

// Range is a frequency span [LoHz, HiHz).
type Range struct {
	LoHz float64
	HiHz float64
}

// Thresholds gate the boolean outputs of a Frame. Each lies in [0,1].
type Thresholds struct {
	Beat float64 `json:"beat"`
	Kick float64 `json:"kick"`
	Bass float64 `json:"bass"`
}

// DefaultThresholds returns beat 0.5, kick 0.6, bass 0.55.
func DefaultThresholds() Thresholds {
	return Thresholds{Beat: 0.5, Kick: 0.6, Bass: 0.55}
}

// ThresholdsUpdate changes any subset of the thresholds. Nil fields keep
// their current value.
type ThresholdsUpdate struct {
	Beat *float64 `json:"beat,omitempty"`
	Kick *float64 `json:"kick,omitempty"`
	Bass *float64 `json:"bass,omitempty"`
}

// Empty reports whether u changes nothing.
func (u ThresholdsUpdate) Empty() bool {
	return u.Beat == nil && u.Kick == nil && u.Bass == nil
}

// Merge returns t with the fields set in u replaced.
func (u ThresholdsUpdate) Merge(t Thresholds) Thresholds {
	if u.Beat != nil {
		t.Beat = *u.Beat
	}
	if u.Kick != nil {
		t.Kick = *u.Kick
	}
	if u.Bass != nil {
		t.Bass = *u.Bass
	}
	return t
}

func (t Thresholds) clamped() Thresholds {
	return Thresholds{Beat: clamp01(t.Beat), Kick: clamp01(t.Kick), Bass: clamp01(t.Bass)}
}

// Config controls detector behaviour. Zero values take defaults; a nil
// Thresholds means DefaultThresholds.
type Config struct {
	HistorySize      int
	IntervalCapacity int
	OnsetWindow      int
	OnsetSensitivity float64
	Cooldown         time.Duration
	Thresholds       *Thresholds
	Nyquist          float64
	KickBand         Range
	BassBand         Range
	InitialBPM       int
	Now              func() time.Time
	Logger           *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.HistorySize <= 0 {
		c.HistorySize = 60
	}
	if c.IntervalCapacity <= 0 {
		c.IntervalCapacity = 8
	}
	if c.OnsetWindow <= 0 {
		c.OnsetWindow = 9
	}
	if c.HistorySize < c.OnsetWindow+1 {
		c.HistorySize = c.OnsetWindow + 1
	}
	if c.OnsetSensitivity <= 0 {
		c.OnsetSensitivity = 1.5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 100 * time.Millisecond
	}
	t := DefaultThresholds()
	if c.Thresholds != nil {
		t = c.Thresholds.clamped()
	}
	c.Thresholds = &t
	if c.Nyquist <= 0 {
		c.Nyquist = 22050
	}
	if c.KickBand.HiHz <= c.KickBand.LoHz {
		c.KickBand = Range{LoHz: 60, HiHz: 200}
	}
	if c.BassBand.HiHz <= c.BassBand.LoHz {
		c.BassBand = Range{LoHz: 200, HiHz: 500}
	}
	if c.InitialBPM <= 0 {
		c.InitialBPM = DefaultBPM
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = logger.Discard()
	}
	return c
}

// Detector is a streaming onset detector for one audio session. It is not
// safe for concurrent use; call Detect at most once per tick.
type Detector struct {
	src Source
	cfg Config
	buf []uint8

	beat history
	kick history
	bass history

	thresholds Thresholds
	lastBeat   time.Time
	hasBeat    bool
	tempo      *TempoTracker
	log        *slog.Logger
}

// New creates a detector reading from src. A nil src yields neutral frames.
func New(src Source, cfg Config) *Detector {
	cfg = cfg.withDefaults()
	d := &Detector{
		src:        src,
		cfg:        cfg,
		beat:       newHistory(cfg.HistorySize),
		kick:       newHistory(cfg.HistorySize),
		bass:       newHistory(cfg.HistorySize),
		thresholds: *cfg.Thresholds,
		tempo:      NewTempoTracker(cfg.IntervalCapacity, cfg.InitialBPM),
		log:        cfg.Logger.With(slog.String("component", "beat")),
	}
	if src != nil {
		d.buf = make([]uint8, max(0, src.BinCount()))
	}
	return d
}

// Detect pulls a fresh snapshot from the source and analyzes it.
func (d *Detector) Detect() Frame {
	if d.src == nil {
		return d.neutral()
	}
	n := d.src.BinCount()
	if n <= 0 {
		return d.neutral()
	}
	if len(d.buf) != n {
		d.buf = make([]uint8, n)
	}
	d.src.ReadFrequencies(d.buf)
	return d.Analyze(d.buf)
}

// Analyze runs one tick of the pipeline over snapshot without reading the
// source. snapshot is not retained.
func (d *Detector) Analyze(snapshot []uint8) Frame {
	if len(snapshot) == 0 {
		return d.neutral()
	}

	kick := d.rangeEnergy(snapshot, d.cfg.KickBand)
	bass := d.rangeEnergy(snapshot, d.cfg.BassBand)
	combined := kick*0.6 + bass*0.4

	d.beat.push(combined)
	d.kick.push(kick)
	d.bass.push(bass)

	now := d.cfg.Now()
	isBeat := d.onset(combined, now)
	if isBeat {
		if d.tempo.Observe(now) {
			d.log.Debug("tempo updated", slog.Int("bpm", d.tempo.BPM()))
		}
	}

	smoothedBeat := d.beat.smoothed()
	return Frame{
		KickDetected: kick > d.thresholds.Kick,
		BassDetected: bass > d.thresholds.Bass,
		BeatStrength: smoothedBeat,
		KickStrength: d.kick.smoothed(),
		BassStrength: d.bass.smoothed(),
		BPM:          d.tempo.BPM(),
		IsBeat:       isBeat,
		StrongBeat:   smoothedBeat > d.thresholds.Beat,
	}
}

// onset compares current against mean + k*sigma of the samples before it.
// Nothing fires until the window is full.
func (d *Detector) onset(current float64, now time.Time) bool {
	prior := d.beat.window(d.cfg.OnsetWindow)
	if prior == nil {
		return false
	}
	mean, sigma := meanStdDev(prior)
	if current <= mean+sigma*d.cfg.OnsetSensitivity {
		return false
	}
	if d.hasBeat && now.Sub(d.lastBeat) <= d.cfg.Cooldown {
		return false
	}
	d.lastBeat = now
	d.hasBeat = true
	return true
}

// rangeEnergy averages bins [floor(lo/ny*n), floor(hi/ny*n)) and scales to [0,1].
func (d *Detector) rangeEnergy(snapshot []uint8, r Range) float64 {
	start, end := BinRange(r, d.cfg.Nyquist, len(snapshot))
	if start >= end {
		return 0
	}
	sum := 0
	for _, v := range snapshot[start:end] {
		sum += int(v)
	}
	return math.Min(1, float64(sum)/float64(end-start)/255)
}

// BinRange returns the bin span [start, end) that covers r in an n-bin snapshot.
func BinRange(r Range, nyquist float64, n int) (int, int) {
	if n <= 0 || nyquist <= 0 {
		return 0, 0
	}
	start := int(math.Floor(r.LoHz / nyquist * float64(n)))
	end := int(math.Floor(r.HiHz / nyquist * float64(n)))
	start = clampInt(start, 0, n)
	end = clampInt(end, 0, n)
	return start, end
}

func (d *Detector) neutral() Frame {
	return Frame{BPM: d.tempo.BPM()}
}

// Reset clears histories, the cooldown and tempo state. Thresholds are kept.
func (d *Detector) Reset() {
	d.beat.reset()
	d.kick.reset()
	d.bass.reset()
	d.hasBeat = false
	d.lastBeat = time.Time{}
	d.tempo.Reset()
}

// Resume is called after the caller stopped ticking. The tempo estimate
// is kept but the gap is not counted as a beat interval.
func (d *Detector) Resume() {
	d.tempo.Rebase()
}

// SetThresholds clamps each value to [0,1]; they apply from the next tick.
func (d *Detector) SetThresholds(beat, kick, bass float64) {
	d.thresholds = Thresholds{Beat: beat, Kick: kick, Bass: bass}.clamped()
}

// Thresholds returns the active thresholds.
func (d *Detector) Thresholds() Thresholds { return d.thresholds }

// BPM returns the current tempo estimate.
func (d *Detector) BPM() int { return d.tempo.BPM() }

// Intervals returns the recent beat intervals in milliseconds.
func (d *Detector) Intervals() []float64 { return d.tempo.Intervals() }

// BeatHistory returns a copy of the combined-strength history, oldest first.
func (d *Detector) BeatHistory() []float64 { return d.beat.snapshot() }

// BinCount reports the snapshot length the detector reads.
func (d *Detector) BinCount() int { return len(d.buf) }

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
