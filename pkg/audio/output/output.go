// ABOUTME: Audio sink interface definition
// ABOUTME: Common interface the playout loop drives for every playback backend
package output

import "errors"

// ErrNotStarted is returned by Write before Start
var ErrNotStarted = errors.New("sink not started")

// Sink is a PCM playback device. Only the playout loop calls Start, Write,
// FlushSilence and Stop.
type Sink interface {
	// Start opens the device for little-endian PCM of the given shape
	Start(sampleRate, channels, bitDepth int) error

	// Write queues pcm and returns how much was accepted; callers loop on short writes
	Write(pcm []byte) (int, error)

	// FlushSilence writes ms milliseconds of silence
	FlushSilence(ms int) error

	// Stop releases the device; Start may be called again afterwards
	Stop() error

	IsStarted() bool
}

// VolumeSink is a Sink with its own gain stage
type VolumeSink interface {
	Sink
	SetVolume(volume int) // 0-100
	SetMuted(muted bool)
}
