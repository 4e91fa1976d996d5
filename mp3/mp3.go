// Package mp3 decodes mp3 files into audio buffers. Encoding requires
// libmp3lame and is available only with lame build tag.
package mp3

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"

	"pipelined.dev/webaudio/audio"
)

// ErrUnavailable is returned by encoding functions if package is built
// without lame support.
var ErrUnavailable = errors.New("mp3 encoder is not available")

const (
	// decoder always provides stereo 16-bit samples.
	numChannels = 2
	frameSize   = numChannels * 2
	scale       = 1 << 15
)

// Load decodes mp3 file.
func Load(path string) (*audio.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads the whole stream into buffer.
func Decode(r io.Reader) (*audio.Buffer, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	channels := make([][]float32, numChannels)
	if length := d.Length(); length > 0 {
		for i := range channels {
			channels[i] = make([]float32, 0, length/frameSize)
		}
	}
	frame := make([]byte, frameSize*512)
	for {
		n, err := io.ReadFull(d, frame)
		for i := 0; i+frameSize <= n; i += frameSize {
			for ch := range channels {
				v := int16(binary.LittleEndian.Uint16(frame[i+ch*2:]))
				channels[ch] = append(channels[ch], float32(v)/scale)
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode mp3: %w", err)
		}
	}
	return audio.BufferOf(float64(d.SampleRate()), channels...), nil
}
