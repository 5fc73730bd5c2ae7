package config

const (
	defaultConfigPath  = "~/.config/beatviz/config.toml"
	projectConfigName  = "beatviz.toml"
	defaultBufferSize  = 2048
	defaultChannels    = 2
	defaultFFTSize     = 512
	defaultSmoothing   = 0.8
	defaultNoiseFloor  = 12
	defaultSynthBPM    = 120
	defaultBeatThresh  = 0.5
	defaultKickThresh  = 0.6
	defaultBassThresh  = 0.55
	defaultSensitivity = 1.5
	defaultCooldownMS  = 100
	defaultInitialBPM  = 120
	defaultSyncMode    = "single"
	defaultPreset      = "pulse"
	defaultIntensity   = 0.3
	defaultDurationMS  = 300
	defaultStaggerMS   = 50
	defaultIntervalMS  = 100
	defaultBackend     = "ansi"
	defaultVisualizer  = "bars"
	defaultPalette     = "default"
	defaultFPS         = 60
	defaultColor       = "auto"
	defaultWebBind     = "127.0.0.1:8080"
	defaultStreamHz    = 30
	defaultLogFormat   = "text"
	defaultLogLevel    = "info"
)

var defaultTargets = []string{"stage", "ring", "title"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Audio: Audio{
			BufferSize:   defaultBufferSize,
			Channels:     defaultChannels,
			FFTSize:      defaultFFTSize,
			Smoothing:    defaultSmoothing,
			NoiseFloor:   defaultNoiseFloor,
			SyntheticBPM: defaultSynthBPM,
		},
		Detector: Detector{
			BeatThreshold:    defaultBeatThresh,
			KickThreshold:    defaultKickThresh,
			BassThreshold:    defaultBassThresh,
			OnsetSensitivity: defaultSensitivity,
			CooldownMS:       defaultCooldownMS,
			InitialBPM:       defaultInitialBPM,
		},
		Animation: Animation{
			Mode:          defaultSyncMode,
			Targets:       append([]string(nil), defaultTargets...),
			Preset:        defaultPreset,
			Intensity:     defaultIntensity,
			DurationMS:    defaultDurationMS,
			StaggerMS:     defaultStaggerMS,
			MinIntervalMS: defaultIntervalMS,
		},
		Render: Render{
			Backend:    defaultBackend,
			Visualizer: defaultVisualizer,
			Palette:    defaultPalette,
			FPS:        defaultFPS,
			Color:      defaultColor,
			ShowStatus: true,
		},
		Web: Web{
			Bind:     defaultWebBind,
			StreamHz: defaultStreamHz,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
