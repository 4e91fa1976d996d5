//go:build lame

package mp3

import (
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/viert/lame"

	"pipelined.dev/webaudio/audio"
)

// Save encodes buffer into mp3 file at path.
func Save(path string, buf *audio.Buffer, bitRate, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, buf, bitRate, quality); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode writes buffer as mp3 stream. Buffers with more than two
// channels are truncated to stereo.
func Encode(w io.Writer, buf *audio.Buffer, bitRate, quality int) error {
	channels := min(buf.NumChannels(), numChannels)
	wr := lame.NewWriter(w)
	wr.Encoder.SetBitrate(bitRate)
	wr.Encoder.SetQuality(quality)
	wr.Encoder.SetNumChannels(channels)
	wr.Encoder.SetInSamplerate(int(buf.SampleRate()))
	if channels == 1 {
		wr.Encoder.SetMode(lame.MONO)
	} else {
		wr.Encoder.SetMode(lame.JOINT_STEREO)
	}
	wr.Encoder.SetVBR(lame.VBR_RH)
	wr.Encoder.InitParams()

	data := make([][]float32, channels)
	for ch := range data {
		data[ch], _ = buf.Channel(ch)
	}
	pcm := make([]byte, 0, buf.Len()*channels*2)
	for i := 0; i < buf.Len(); i++ {
		for ch := range data {
			v := math.Max(-1, math.Min(1, float64(data[ch][i])))
			pcm = binary.LittleEndian.AppendUint16(pcm, uint16(int16(v*math.MaxInt16)))
		}
	}
	if _, err := wr.Write(pcm); err != nil {
		wr.Close()
		return err
	}
	return wr.Close()
}
