package beatsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guidoenr/beatviz/internal/animation"
	"github.com/guidoenr/beatviz/internal/beat"
	"github.com/guidoenr/beatviz/internal/logger"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newScheduler(now *time.Time) *animation.Scheduler {
	return animation.NewScheduler(
		animation.WithClock(func() time.Time { return *now }),
		animation.WithLogger(logger.NewTestLogger()),
	)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Frequency")
	require.NoError(t, err)
	assert.Equal(t, ModeFrequency, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeSingle, m)

	_, err = ParseMode("disco")
	assert.Error(t, err)
}

func TestOnFrameIgnoresNonBeats(t *testing.T) {
	now := t0
	s := newScheduler(&now)
	a := New(s, Config{Targets: []string{"bars"}})

	assert.False(t, a.OnFrame(beat.Frame{KickDetected: true, BeatStrength: 0.9}, now))
	assert.Zero(t, s.Stats().Total)
}

func TestOnFrameDebounces(t *testing.T) {
	now := t0
	s := newScheduler(&now)
	a := New(s, Config{Targets: []string{"bars"}, Logger: logger.NewTestLogger()})
	frame := beat.Frame{IsBeat: true}

	assert.True(t, a.OnFrame(frame, now))
	assert.False(t, a.OnFrame(frame, now.Add(99*time.Millisecond)))
	assert.True(t, a.OnFrame(frame, now.Add(100*time.Millisecond)))
	assert.Equal(t, 2, a.Triggers())
}

func TestSingleModeTriggersOneShot(t *testing.T) {
	now := t0
	s := newScheduler(&now)
	a := New(s, Config{Mode: ModeSingle, Targets: []string{"a", "b"}, Preset: animation.Glow})

	require.True(t, a.OnFrame(beat.Frame{IsBeat: true}, now))
	st, ok := s.State("b")
	require.True(t, ok)
	assert.True(t, st.Active)
	assert.Equal(t, animation.Glow, st.Preset)

	now = now.Add(animation.BeatDuration)
	s.Tick(now)
	assert.Empty(t, s.ActiveIDs())
}

func TestFrequencyModeChoosesPreset(t *testing.T) {
	assert.Equal(t, animation.Bounce, PresetFor(beat.Frame{KickStrength: 0.7, BassStrength: 0.9}))
	assert.Equal(t, animation.Scale, PresetFor(beat.Frame{KickStrength: 0.6, BassStrength: 0.61}))
	assert.Equal(t, animation.Pulse, PresetFor(beat.Frame{KickStrength: 0.2, BassStrength: 0.2, BeatStrength: 0.9}))

	now := t0
	s := newScheduler(&now)
	a := New(s, Config{Mode: ModeFrequency, Targets: []string{"logo"}})
	require.True(t, a.OnFrame(beat.Frame{IsBeat: true, KickStrength: 0.8}, now))
	st, _ := s.State("logo")
	assert.Equal(t, animation.Bounce, st.Preset)
	assert.Equal(t, animation.PropertyTranslation, st.Property)
}

func TestSynchronizedModeStaggers(t *testing.T) {
	now := t0
	s := newScheduler(&now)
	a := New(s, Config{Mode: ModeSynchronized, Targets: []string{"a", "b", "c"}, Preset: animation.Scale})

	require.True(t, a.OnFrame(beat.Frame{IsBeat: true}, now))
	assert.Equal(t, []string{"a"}, s.ActiveIDs())

	now = now.Add(animation.SyncStagger)
	s.Tick(now)
	assert.Equal(t, []string{"a", "b"}, s.ActiveIDs())

	now = now.Add(animation.SyncStagger)
	s.Tick(now)
	assert.Equal(t, []string{"a", "b", "c"}, s.ActiveIDs())
}

func TestStopDeactivatesTargets(t *testing.T) {
	now := t0
	s := newScheduler(&now)
	a := New(s, Config{Mode: ModeSynchronized, Targets: []string{"a", "b"}})
	a.OnFrame(beat.Frame{IsBeat: true}, now)
	a.Stop()
	assert.Empty(t, s.ActiveIDs())

	// The debounce window restarts after a stop.
	assert.True(t, a.OnFrame(beat.Frame{IsBeat: true}, now.Add(time.Millisecond)))
}

func TestAdapterWithoutTargets(t *testing.T) {
	now := t0
	a := New(newScheduler(&now), Config{})
	assert.False(t, a.OnFrame(beat.Frame{IsBeat: true}, now))
	assert.Equal(t, ModeSingle, a.Mode())
	assert.Empty(t, a.Targets())
}
