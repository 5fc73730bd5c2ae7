package render

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// ErrRendererQuit is returned by a presenter whose window was closed.
var ErrRendererQuit = errors.New("renderer quit")

// EventKind classifies input delivered by an interactive presenter.
type EventKind int

const (
	EventKey EventKind = iota
	EventResize
	EventQuit
)

// Event is a key press or terminal change.
type Event struct {
	Kind EventKind
	Rune rune
}

// Screen is a full-screen tcell presenter in true colour. It also owns the
// terminal's input and forwards it on Events.
type Screen struct {
	screen     tcell.Screen
	showStatus bool
	events     chan Event
	quit       chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
	closed     bool
}

// NewScreen opens the controlling terminal.
func NewScreen(showStatus bool) (*Screen, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("open screen: %w", err)
	}
	return NewScreenWith(s, showStatus)
}

// NewScreenWith wraps an uninitialised tcell screen.
func NewScreenWith(s tcell.Screen, showStatus bool) (*Screen, error) {
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("init screen: %w", err)
	}
	s.HideCursor()
	s.Clear()

	sc := &Screen{
		screen:     s,
		showStatus: showStatus,
		events:     make(chan Event, 16),
		quit:       make(chan struct{}),
	}
	sc.wg.Add(1)
	go sc.poll()
	return sc, nil
}

// Events delivers input until Close. The channel is closed afterwards.
func (s *Screen) Events() <-chan Event { return s.events }

func (s *Screen) poll() {
	defer s.wg.Done()
	for {
		ev := s.screen.PollEvent()
		if ev == nil {
			return
		}
		var out Event
		switch e := ev.(type) {
		case *tcell.EventResize:
			out = Event{Kind: EventResize}
		case *tcell.EventKey:
			switch e.Key() {
			case tcell.KeyEscape, tcell.KeyCtrlC:
				out = Event{Kind: EventQuit}
			case tcell.KeyRune:
				out = Event{Kind: EventKey, Rune: e.Rune()}
			default:
				continue
			}
		default:
			continue
		}
		select {
		case s.events <- out:
		case <-s.quit:
			return
		}
	}
}

// Size reports the drawable cells, minus the status row when shown.
func (s *Screen) Size() (int, int, bool) {
	w, h := s.screen.Size()
	if s.showStatus && h > 1 {
		h--
	}
	return w, h, w > 0 && h > 0
}

// Present paints the raster as half blocks and flushes the screen.
func (s *Screen) Present(img *image.RGBA, status string) error {
	if s.closed {
		return ErrRendererQuit
	}
	w, h, _ := s.Size()
	cols := min(img.Rect.Dx(), w)
	rows := min((img.Rect.Dy()+1)/2, h)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			top := pixel(img, x, 2*y)
			bottom := pixel(img, x, 2*y+1)
			style := tcell.StyleDefault.
				Foreground(tcell.NewRGBColor(int32(top.R), int32(top.G), int32(top.B))).
				Background(tcell.NewRGBColor(int32(bottom.R), int32(bottom.G), int32(bottom.B)))
			s.screen.SetContent(x, y, halfBlock, nil, style)
		}
	}
	if s.showStatus {
		s.drawStatus(status, w, h)
	}
	s.screen.Show()
	return nil
}

func (s *Screen) drawStatus(status string, w, y int) {
	style := tcell.StyleDefault.Reverse(true)
	x := 0
	for _, r := range status {
		if x >= w {
			break
		}
		s.screen.SetContent(x, y, r, nil, style)
		x++
	}
	for ; x < w; x++ {
		s.screen.SetContent(x, y, ' ', nil, style)
	}
}

// Close restores the terminal and stops the input goroutine.
func (s *Screen) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true
		close(s.quit)
		s.screen.Fini()
		s.wg.Wait()
		close(s.events)
	})
	return nil
}
