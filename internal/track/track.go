// Package track decodes WAV files into mono PCM for offline beat analysis.
package track

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/mjibson/go-dsp/wav"
)

// ErrUnsupportedFormat is returned for input that is not a PCM or float WAV file.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// DecodeError carries the operation and file that failed to decode.
type DecodeError struct {
	Op   string // "open", "header", "read"
	Path string
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("track %s failed for '%s': %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("track %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Info describes a decoded track.
type Info struct {
	Path       string        `json:"path,omitempty"`
	Title      string        `json:"title"`
	Artist     string        `json:"artist,omitempty"`
	Album      string        `json:"album,omitempty"`
	SampleRate int           `json:"sampleRate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
}

// Label is the display name: "Artist - Title", or just the title.
func (i Info) Label() string {
	if i.Artist != "" {
		return i.Artist + " - " + i.Title
	}
	return i.Title
}

// Track holds mono samples in [-1,1].
type Track struct {
	Info
	Samples []float32
}

const readChunk = 1 << 14

// Load decodes the WAV file at path and reads its tags.
func Load(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	t, err := Decode(f, path)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err == nil {
		applyTags(&t.Info, f)
	}
	return t, nil
}

// Decode reads a WAV stream and mixes it down to mono. name is used for
// error context and as the fallback title.
func Decode(r io.Reader, name string) (*Track, error) {
	w, err := wav.New(r)
	if err != nil {
		return nil, &DecodeError{Op: "header", Path: name, Err: fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)}
	}
	channels := int(w.NumChannels)
	if channels <= 0 || w.SampleRate == 0 {
		return nil, &DecodeError{Op: "header", Path: name, Err: ErrUnsupportedFormat}
	}
	if w.AudioFormat == 1 && w.BitsPerSample != 8 && w.BitsPerSample != 16 {
		return nil, &DecodeError{Op: "header", Path: name, Err: fmt.Errorf("%w: %d-bit PCM", ErrUnsupportedFormat, w.BitsPerSample)}
	}

	// Integer PCM comes back in [0,1] and is recentred.
	recentre := w.AudioFormat == 1
	mono := make([]float32, 0, w.Samples/channels+1)
	var acc float32
	pending := 0
	mix := func(chunk []float32) {
		for _, v := range chunk {
			if recentre {
				v = v*2 - 1
			}
			acc += v
			pending++
			if pending == channels {
				mono = append(mono, acc/float32(channels))
				acc, pending = 0, 0
			}
		}
	}

	// w.Samples is rounded down to a multiple of 8, so the tail is read one
	// sample at a time until the data chunk runs out.
	for remaining := w.Samples; remaining > 0; {
		n := min(readChunk, remaining)
		chunk, err := w.ReadFloats(n)
		if err != nil {
			return nil, &DecodeError{Op: "read", Path: name, Err: err}
		}
		remaining -= n
		mix(chunk)
	}
	for {
		chunk, err := w.ReadFloats(1)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, &DecodeError{Op: "read", Path: name, Err: err}
		}
		mix(chunk)
	}

	return &Track{
		Info: Info{
			Path:       name,
			Title:      titleFromPath(name),
			SampleRate: int(w.SampleRate),
			Channels:   channels,
			Duration:   time.Duration(len(mono)) * time.Second / time.Duration(w.SampleRate),
		},
		Samples: mono,
	}, nil
}

// Frames yields successive windows of size samples, advancing by hop. The
// final partial window is zero-padded. The yielded slice is reused between
// iterations.
func (t *Track) Frames(size, hop int) iter.Seq2[int, []float32] {
	return func(yield func(int, []float32) bool) {
		if size <= 0 || hop <= 0 || len(t.Samples) == 0 {
			return
		}
		buf := make([]float32, size)
		for i, start := 0, 0; start < len(t.Samples); i, start = i+1, start+hop {
			n := copy(buf, t.Samples[start:])
			clear(buf[n:])
			if !yield(i, buf) {
				return
			}
		}
	}
}

// FrameCount is the number of windows Frames yields for hop.
func (t *Track) FrameCount(hop int) int {
	if hop <= 0 || len(t.Samples) == 0 {
		return 0
	}
	return (len(t.Samples) + hop - 1) / hop
}

func applyTags(info *Info, r io.ReadSeeker) {
	m, err := tag.ReadFrom(r)
	if err != nil || m == nil {
		return
	}
	if title := strings.TrimSpace(m.Title()); title != "" {
		info.Title = title
	}
	if artist := strings.TrimSpace(m.Artist()); artist != "" {
		info.Artist = artist
	}
	if album := strings.TrimSpace(m.Album()); album != "" {
		info.Album = album
	}
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
