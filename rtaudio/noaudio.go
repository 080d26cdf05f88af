//go:build !portaudio

package rtaudio

// Sink is unavailable without the portaudio build tag.
type Sink struct{}

// Open always fails with ErrUnavailable.
func Open(sr float64, ksmps, nchnls int, zeroDBFS float64) (*Sink, error) {
	return nil, ErrUnavailable
}

// Write implements engine.AudioSink.
func (s *Sink) Write(spout []float64, nchnls int) error {
	return ErrUnavailable
}

// Close does nothing.
func (s *Sink) Close() error {
	return nil
}
