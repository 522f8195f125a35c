// ABOUTME: Opus audio decoder
// ABOUTME: Decodes Opus packets to 16-bit little-endian PCM
package decode

import (
	"fmt"
	"log"

	"github.com/Sendspin/sendspin-player/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// maxOpusFrameSamples is 120ms at 48kHz, the longest Opus frame
const maxOpusFrameSamples = 5760

// OpusDecoder decodes Opus audio
type OpusDecoder struct {
	decoder *opus.Decoder
	format  audio.Format
	pcm16   []int16
}

// NewOpus creates a new Opus decoder
func NewOpus(format audio.Format) (Decoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus decoder: %s", format.Codec)
	}

	dec, err := opus.NewDecoder(format.SampleRate, format.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		decoder: dec,
		format:  format,
		pcm16:   make([]int16, maxOpusFrameSamples*format.Channels),
	}, nil
}

// Decode converts one Opus packet to PCM bytes
func (d *OpusDecoder) Decode(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("opus decode failed: empty packet")
	}

	n, err := d.decoder.Decode(data, d.pcm16)
	if err != nil {
		return nil, fmt.Errorf("opus decode failed: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("opus decode failed: no samples")
	}

	return audio.Int16ToPCM(d.pcm16[:n*d.format.Channels]), nil
}

// Reset reinitializes decoder state so the next packet does not blend with the old stream
func (d *OpusDecoder) Reset() {
	if err := d.decoder.Init(d.format.SampleRate, d.format.Channels); err != nil {
		log.Printf("Opus decoder reset failed: %v", err)
	}
}
