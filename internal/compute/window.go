package compute

// WindowCapacity is the number of power-saved samples kept for the rolling average.
const WindowCapacity = 120

// Window is a fixed-capacity ring buffer of power-saved samples. The zero
// value is an empty window. Window is a value type: copying it copies the
// samples, so a State returned by Tick never aliases the previous one.
type Window struct {
	buf  [WindowCapacity]float64
	head int // index of the oldest sample
	n    int
}

// Push appends v, evicting the oldest sample when the window is full.
func (w *Window) Push(v float64) {
	if w.n < WindowCapacity {
		w.buf[(w.head+w.n)%WindowCapacity] = v
		w.n++
		return
	}
	w.buf[w.head] = v
	w.head = (w.head + 1) % WindowCapacity
}

// Len returns the number of samples held.
func (w Window) Len() int { return w.n }

// Mean returns the average sample, or 0 for an empty window.
func (w Window) Mean() float64 {
	if w.n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < w.n; i++ {
		sum += w.buf[(w.head+i)%WindowCapacity]
	}
	return sum / float64(w.n)
}

// Values returns the samples oldest first.
func (w Window) Values() []float64 {
	out := make([]float64, w.n)
	for i := range out {
		out[i] = w.buf[(w.head+i)%WindowCapacity]
	}
	return out
}
