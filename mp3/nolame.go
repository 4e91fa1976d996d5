//go:build !lame

package mp3

import (
	"io"

	"pipelined.dev/webaudio/audio"
)

// Save returns ErrUnavailable.
func Save(path string, buf *audio.Buffer, bitRate, quality int) error {
	return ErrUnavailable
}

// Encode returns ErrUnavailable.
func Encode(w io.Writer, buf *audio.Buffer, bitRate, quality int) error {
	return ErrUnavailable
}
