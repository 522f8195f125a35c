// ABOUTME: Decoder interface definition and codec table
// ABOUTME: Common interface for all audio decoders plus the factory the player uses
package decode

import (
	"errors"
	"fmt"

	"github.com/Sendspin/sendspin-player/pkg/audio"
	"github.com/samber/lo"
)

// ErrUnsupportedCodec is returned by New for codecs without a decoder
var ErrUnsupportedCodec = errors.New("unsupported codec")

// SupportedCodecs lists the codecs this player can decode, in preference order
var SupportedCodecs = []string{"opus", "pcm", "mp3"}

// Decoder decodes encoded chunks to little-endian PCM
type Decoder interface {
	// Decode converts one encoded chunk to PCM. An error means the chunk is unusable.
	Decode(data []byte) ([]byte, error)

	// Reset drops any inter-chunk state, e.g. after a seek
	Reset()
}

// Supported reports whether codec can be decoded
func Supported(codec string) bool {
	return lo.Contains(SupportedCodecs, codec)
}

// New creates a decoder for the given stream format
func New(format audio.Format) (Decoder, error) {
	switch format.Codec {
	case "pcm":
		return NewPCM(format)
	case "opus":
		return NewOpus(format)
	case "mp3":
		return NewMP3(format)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, format.Codec)
	}
}

// OutputFormat is the PCM format a decoder for format produces
func OutputFormat(format audio.Format) audio.Format {
	out := format
	out.Codec = "pcm"
	if format.Codec != "pcm" {
		out.BitDepth = 16
	}
	return out
}
