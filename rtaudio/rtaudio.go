// Package rtaudio plays the engine's output bus on the default sound device.
// The PortAudio backend is compiled in with the portaudio build tag.
package rtaudio

import (
	"errors"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("orc.rtaudio")

// ErrUnavailable is returned by Open when no audio backend was compiled in.
var ErrUnavailable = errors.New("real-time audio not available; build with -tags portaudio")

// convert scales the interleaved output bus into buf, clipped to [-1, 1].
func convert(buf []float32, spout []float64, zeroDBFS float64) {
	scale := 1.0
	if zeroDBFS > 0 {
		scale = 1 / zeroDBFS
	}
	for i, s := range spout {
		if i >= len(buf) {
			break
		}
		v := s * scale
		switch {
		case v > 1:
			v = 1
		case v < -1:
			v = -1
		}
		buf[i] = float32(v)
	}
}
