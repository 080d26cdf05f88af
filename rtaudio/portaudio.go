//go:build portaudio

package rtaudio

import (
	"fmt"
	"strings"

	pa "github.com/gordonklaus/portaudio"
)

// Sink writes control cycles to a blocking PortAudio output stream.
type Sink struct {
	stream   *pa.Stream
	buf      []float32
	zeroDBFS float64
}

// Open initializes PortAudio and starts an output stream of nchnls
// interleaved channels with one control period per buffer.
func Open(sr float64, ksmps, nchnls int, zeroDBFS float64) (*Sink, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}
	s := &Sink{buf: make([]float32, ksmps*nchnls), zeroDBFS: zeroDBFS}
	stream, err := pa.OpenDefaultStream(0, nchnls, sr, ksmps, &s.buf)
	if err != nil {
		pa.Terminate()
		return nil, fmt.Errorf("opening output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		pa.Terminate()
		return nil, fmt.Errorf("starting output stream: %w", err)
	}
	s.stream = stream
	log.Infof("%s: %d channels at %.f Hz", strings.Split(pa.VersionText(), ",")[0], nchnls, stream.Info().SampleRate)
	return s, nil
}

// Write implements engine.AudioSink.
func (s *Sink) Write(spout []float64, nchnls int) error {
	convert(s.buf, spout, s.zeroDBFS)
	if err := s.stream.Write(); err != nil {
		if err == pa.OutputUnderflowed {
			log.Debugf("output underflow")
			return nil
		}
		return err
	}
	return nil
}

// Close stops the stream and releases PortAudio.
func (s *Sink) Close() error {
	s.stream.Stop()
	s.stream.Close()
	if err := pa.Terminate(); err != nil {
		return fmt.Errorf("terminating portaudio: %w", err)
	}
	return nil
}
