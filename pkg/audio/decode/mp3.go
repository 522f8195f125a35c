// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes self-contained MP3 chunks to 16-bit little-endian PCM
package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Sendspin/sendspin-player/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes each chunk as an independent run of MP3 frames.
// go-mp3 always produces 16-bit stereo; mono streams are downmixed.
type MP3Decoder struct {
	format audio.Format
}

// NewMP3 creates a new MP3 decoder
func NewMP3(format audio.Format) (Decoder, error) {
	if format.Codec != "mp3" {
		return nil, fmt.Errorf("invalid codec for MP3 decoder: %s", format.Codec)
	}
	if format.Channels != 1 && format.Channels != 2 {
		return nil, fmt.Errorf("unsupported channel count for MP3: %d", format.Channels)
	}

	return &MP3Decoder{format: format}, nil
}

// Decode converts MP3 frames to PCM bytes
func (d *MP3Decoder) Decode(data []byte) ([]byte, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}
	if dec.SampleRate() != d.format.SampleRate {
		return nil, fmt.Errorf("mp3 sample rate %d does not match stream %d", dec.SampleRate(), d.format.SampleRate)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode error: %w", err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("mp3 decode error: no samples")
	}

	if d.format.Channels == 1 {
		pcm = downmixStereo16(pcm)
	}
	return pcm, nil
}

// Reset is a no-op; chunks are decoded independently
func (d *MP3Decoder) Reset() {}

// downmixStereo16 averages interleaved 16-bit stereo frames into mono
func downmixStereo16(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		l := int32(int16(uint16(pcm[i*4]) | uint16(pcm[i*4+1])<<8))
		r := int32(int16(uint16(pcm[i*4+2]) | uint16(pcm[i*4+3])<<8))
		m := uint16(int16((l + r) / 2))
		out[i*2] = byte(m)
		out[i*2+1] = byte(m >> 8)
	}
	return out
}
