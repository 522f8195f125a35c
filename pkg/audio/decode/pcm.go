// ABOUTME: PCM audio decoder
// ABOUTME: Passes 16-bit and 24-bit PCM through, trimmed to whole frames
package decode

import (
	"errors"
	"fmt"

	"github.com/Sendspin/sendspin-player/pkg/audio"
)

// PCMDecoder passes PCM through
type PCMDecoder struct {
	frameSize int
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	if format.Channels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", format.Channels)
	}

	return &PCMDecoder{frameSize: format.BytesPerFrame()}, nil
}

// Decode returns data cut to a whole number of frames
func (d *PCMDecoder) Decode(data []byte) ([]byte, error) {
	n := len(data) - len(data)%d.frameSize
	if n == 0 {
		return nil, errors.New("pcm chunk shorter than one frame")
	}
	return data[:n], nil
}

// Reset is a no-op; PCM has no inter-chunk state
func (d *PCMDecoder) Reset() {}
