package audio

// ring keeps the most recent len(buf) mono samples.
type ring struct {
	buf   []float32
	index int
}

func newRing(size int) *ring {
	return &ring{buf: make([]float32, size)}
}

func (r *ring) write(in []float32) {
	if len(in) == 0 {
		return
	}
	if len(in) >= len(r.buf) {
		copy(r.buf, in[len(in)-len(r.buf):])
		r.index = 0
		return
	}
	if r.index+len(in) <= len(r.buf) {
		copy(r.buf[r.index:], in)
		r.index += len(in)
		if r.index == len(r.buf) {
			r.index = 0
		}
		return
	}
	remaining := len(r.buf) - r.index
	copy(r.buf[r.index:], in[:remaining])
	copy(r.buf, in[remaining:])
	r.index = len(in) - remaining
}

// copyTo writes the samples oldest first into dst, which is resized to the
// ring length.
func (r *ring) copyTo(dst []float32) []float32 {
	if cap(dst) < len(r.buf) {
		dst = make([]float32, len(r.buf))
	}
	dst = dst[:len(r.buf)]
	n := copy(dst, r.buf[r.index:])
	copy(dst[n:], r.buf[:r.index])
	return dst
}

// mixDown averages interleaved frames of channels samples into dst.
func mixDown(dst, in []float32, channels int) []float32 {
	frames := len(in) / channels
	if cap(dst) < frames {
		dst = make([]float32, frames)
	}
	dst = dst[:frames]
	for i := range dst {
		var sum float32
		base := i * channels
		for ch := 0; ch < channels; ch++ {
			sum += in[base+ch]
		}
		dst[i] = sum / float32(channels)
	}
	return dst
}
