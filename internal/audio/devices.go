package audio

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// ErrNoInputDevice is returned when no capture-capable device matches.
var ErrNoInputDevice = errors.New("no audio input device")

// Device describes a PortAudio device in a Go-friendly way.
type Device struct {
	Name            string  `json:"name"`
	MaxInput        int     `json:"maxInput"`
	MaxOutput       int     `json:"maxOutput"`
	DefaultSampleHz float64 `json:"defaultSampleRate"`
	HostAPI         string  `json:"hostApi"`
	IsDefaultInput  bool    `json:"defaultInput"`
	IsDefaultOutput bool    `json:"defaultOutput"`
	// Score ranks the device as a capture source; the highest is picked
	// when no device is named.
	Score int `json:"score"`
}

// ListDevices returns all available devices across host APIs sorted by host and name.
func ListDevices() ([]Device, error) {
	if err := acquire(); err != nil {
		return nil, err
	}
	defer release()

	hosts, err := portaudio.HostApis()
	if err != nil {
		return nil, fmt.Errorf("host apis: %w", err)
	}
	defaultInput, defaultHost := defaultIndexes()

	devices := make([]Device, 0, len(hosts)*4)
	for _, host := range hosts {
		for _, d := range host.Devices {
			devices = append(devices, Device{
				Name:            d.Name,
				MaxInput:        d.MaxInputChannels,
				MaxOutput:       d.MaxOutputChannels,
				DefaultSampleHz: d.DefaultSampleRate,
				HostAPI:         host.Name,
				IsDefaultInput:  d.Index == defaultInput,
				IsDefaultOutput: host.DefaultOutputDevice != nil && d.Index == host.DefaultOutputDevice.Index,
				Score:           scoreDevice(d.Name, d.MaxInputChannels, d.Index == defaultInput, d.Index == defaultHost),
			})
		}
	}

	sort.Slice(devices, func(i, j int) bool {
		if devices[i].HostAPI == devices[j].HostAPI {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].HostAPI < devices[j].HostAPI
	})

	return devices, nil
}

func findDevice(name string) (*portaudio.DeviceInfo, error) {
	if name != "" {
		return findDeviceByName(name)
	}

	if dev, err := portaudio.DefaultInputDevice(); err == nil && dev != nil && dev.MaxInputChannels > 0 {
		return dev, nil
	}

	if host, err := portaudio.DefaultHostApi(); err == nil {
		if host != nil && host.DefaultInputDevice != nil && host.DefaultInputDevice.MaxInputChannels > 0 {
			return host.DefaultInputDevice, nil
		}
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	if candidate := pickBestDevice(devices); candidate != nil {
		return candidate, nil
	}
	return nil, ErrNoInputDevice
}

func findDeviceByName(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	needle := strings.ToLower(name)
	for _, device := range devices {
		if device.MaxInputChannels == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(device.Name), needle) {
			return device, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrNoInputDevice, name)
}

func defaultIndexes() (input, host int) {
	input, host = -1, -1
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		input = def.Index
	}
	if h, err := portaudio.DefaultHostApi(); err == nil && h != nil && h.DefaultInputDevice != nil {
		host = h.DefaultInputDevice.Index
	}
	return input, host
}

func pickBestDevice(devices []*portaudio.DeviceInfo) *portaudio.DeviceInfo {
	defaultInput, defaultHost := defaultIndexes()

	candidates := make([]candidate, 0, len(devices))
	for _, d := range devices {
		if d == nil || d.MaxInputChannels <= 0 {
			continue
		}
		candidates = append(candidates, candidate{
			name:  d.Name,
			score: scoreDevice(d.Name, d.MaxInputChannels, d.Index == defaultInput, d.Index == defaultHost),
			dev:   d,
		})
	}
	best := bestCandidate(candidates)
	if best < 0 {
		return nil
	}
	return candidates[best].dev
}

type candidate struct {
	name  string
	score int
	dev   *portaudio.DeviceInfo
}

// loopbackKeywords mark devices that capture what the machine is playing.
var loopbackKeywords = []string{"monitor", "loopback", "mix", "stereo mix", "what u hear"}

// scoreDevice ranks an input device; output-only devices score zero.
func scoreDevice(name string, maxInput int, isDefaultInput, isHostDefault bool) int {
	if maxInput <= 0 {
		return 0
	}
	score := maxInput
	if isDefaultInput {
		score += 50
	}
	if isHostDefault {
		score += 40
	}
	lower := strings.ToLower(name)
	for _, kw := range loopbackKeywords {
		if strings.Contains(lower, kw) {
			score += 20
			break
		}
	}
	if strings.Contains(lower, "default") {
		score += 10
	}
	return score
}

// bestCandidate returns the index of the highest score, ties broken by
// name, or -1 when there are none.
func bestCandidate(cs []candidate) int {
	best := -1
	for i, c := range cs {
		if best < 0 {
			best = i
			continue
		}
		b := cs[best]
		if c.score > b.score || (c.score == b.score && strings.ToLower(c.name) < strings.ToLower(b.name)) {
			best = i
		}
	}
	return best
}
