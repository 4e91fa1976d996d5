// Package wav loads and saves audio buffers as PCM wav files.
package wav

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"pipelined.dev/webaudio/audio"
)

const pcmFormat = 1

var (
	// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
	ErrUnsupportedBitDepth = errors.New("only 16, 24 and 32 bit depth is supported")
	// ErrInvalidFile is returned when file is not a valid wav.
	ErrInvalidFile = errors.New("wav is not valid")
)

// Load reads the whole file into buffer.
func Load(path string) (*audio.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads the whole wav stream into buffer.
func Decode(r io.ReadSeeker) (*audio.Buffer, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, ErrInvalidFile
	}
	bitDepth := int(decoder.BitDepth)
	if err := validBitDepth(bitDepth); err != nil {
		return nil, err
	}
	ib, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	numChannels := ib.Format.NumChannels
	if numChannels <= 0 {
		return nil, ErrInvalidFile
	}
	length := len(ib.Data) / numChannels
	channels := make([][]float32, numChannels)
	for c := range channels {
		channels[c] = make([]float32, length)
	}
	scale := float32(int64(1) << (bitDepth - 1))
	for i := 0; i < length; i++ {
		for c := range channels {
			channels[c][i] = float32(ib.Data[i*numChannels+c]) / scale
		}
	}
	return audio.BufferOf(float64(ib.Format.SampleRate), channels...), nil
}

// Save writes buffer into the file with provided bit depth.
func Save(path string, buf *audio.Buffer, bitDepth int) error {
	if err := validBitDepth(bitDepth); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, buf, bitDepth); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode writes buffer as wav stream.
func Encode(w io.WriteSeeker, buf *audio.Buffer, bitDepth int) error {
	if err := validBitDepth(bitDepth); err != nil {
		return err
	}
	numChannels := buf.NumChannels()
	e := wav.NewEncoder(w, int(buf.SampleRate()), bitDepth, numChannels, pcmFormat)
	ib := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: numChannels,
			SampleRate:  int(buf.SampleRate()),
		},
		Data:           interleave(buf, bitDepth),
		SourceBitDepth: bitDepth,
	}
	if err := e.Write(ib); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return e.Close()
}

func interleave(buf *audio.Buffer, bitDepth int) []int {
	numChannels := buf.NumChannels()
	length := buf.Len()
	peak := float64(int64(1)<<(bitDepth-1)) - 1
	data := make([]int, numChannels*length)
	for c := 0; c < numChannels; c++ {
		ch, _ := buf.Channel(c)
		for i, v := range ch {
			s := float64(v)
			switch {
			case s > 1:
				s = 1
			case s < -1:
				s = -1
			}
			data[i*numChannels+c] = int(s * peak)
		}
	}
	return data
}

func validBitDepth(bitDepth int) error {
	switch bitDepth {
	case 16, 24, 32:
		return nil
	}
	return fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
}
