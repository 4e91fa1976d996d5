package worklet

import "unsafe"

// Buffer is a channel memory shared with worklet runtime. Runtime reads
// and writes it in place.
type Buffer struct {
	data []float32
}

// NewBuffer allocates a buffer of frames length.
func NewBuffer(frames int) *Buffer {
	return &Buffer{data: make([]float32, frames)}
}

// Wrap returns a buffer that shares memory with data.
func Wrap(data []float32) *Buffer {
	return &Buffer{data: data}
}

// Reset points the buffer to another memory.
func (b *Buffer) Reset(data []float32) {
	b.data = data
}

// Len returns number of frames.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Data returns samples.
func (b *Buffer) Data() []float32 {
	return b.data
}

// Bytes returns the raw view of samples. Its length is Len()*4.
func (b *Buffer) Bytes() []byte {
	if len(b.data) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&b.data[0])), len(b.data)*int(unsafe.Sizeof(b.data[0])))
}
