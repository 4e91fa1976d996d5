/*
Package audio provides the sample storage used by the render graph.

An Array is a single channel of float32 samples with fixed length. A Bus
groups arrays of equal length into channels. Buses are allocated once and
then mutated in place every render quantum, so the steady-state render
cycle does not allocate.
*/
package audio

// Array is a fixed-length channel of samples.
type Array struct {
	data []float32
}

// NewArray allocates array of provided length.
func NewArray(length int) *Array {
	return &Array{data: make([]float32, length)}
}

// Len returns the number of samples in the array.
func (a *Array) Len() int {
	return len(a.data)
}

// Data returns the underlying samples. Returned slice must not be
// resized by the caller.
func (a *Array) Data() []float32 {
	return a.data
}

// Zero sets all samples to zero.
func (a *Array) Zero() {
	clear(a.data)
}

// ZeroRange sets n samples starting from offset to zero. The range is
// clipped to the array bounds.
func (a *Array) ZeroRange(offset, n int) {
	if offset < 0 {
		n += offset
		offset = 0
	}
	if offset >= len(a.data) || n <= 0 {
		return
	}
	end := min(offset+n, len(a.data))
	clear(a.data[offset:end])
}

// Copy copies samples from src. Number of copied samples is returned.
func (a *Array) Copy(src *Array) int {
	return copy(a.data, src.data)
}

// Sum adds samples of src to the array.
func (a *Array) Sum(src *Array) {
	n := min(len(a.data), len(src.data))
	for i := 0; i < n; i++ {
		a.data[i] += src.data[i]
	}
}

// Scale multiplies all samples by gain.
func (a *Array) Scale(gain float32) {
	for i := range a.data {
		a.data[i] *= gain
	}
}

// Fill sets all samples to v.
func (a *Array) Fill(v float32) {
	for i := range a.data {
		a.data[i] = v
	}
}
