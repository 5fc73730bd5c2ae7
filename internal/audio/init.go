package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	refMu sync.Mutex
	refs  int
)

// acquire initialises PortAudio for the first user; every successful call
// must be paired with release.
func acquire() error {
	refMu.Lock()
	defer refMu.Unlock()
	if refs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("initialize portaudio: %w", err)
		}
	}
	refs++
	return nil
}

// release terminates PortAudio once the last user is gone.
func release() {
	refMu.Lock()
	defer refMu.Unlock()
	if refs == 0 {
		return
	}
	refs--
	if refs == 0 {
		_ = portaudio.Terminate()
	}
}
