// ABOUTME: Binary frame parsing for audio chunks
// ABOUTME: Frame layout is a type byte, a big-endian u64 server timestamp, then payload
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// BinaryMessageHeaderSize is the size of binary message header (type byte + timestamp)
	BinaryMessageHeaderSize = 1 + 8

	// AudioChunkMessageType is the binary message type ID for audio chunks.
	// Player role binary messages use IDs 4-7; slot 0 is audio.
	AudioChunkMessageType = 4
)

var (
	// ErrShortFrame is returned for frames smaller than the header
	ErrShortFrame = errors.New("binary frame too short")

	// ErrUnknownFrameType is returned for frames that are not player audio
	ErrUnknownFrameType = errors.New("unknown binary frame type")

	// ErrTimestampRange is returned for timestamps that do not fit in an int64
	ErrTimestampRange = errors.New("frame timestamp out of range")
)

// AudioChunk represents a timestamped audio frame
type AudioChunk struct {
	Timestamp int64  // Microseconds, server clock
	Data      []byte // Encoded audio
}

// ParseAudioChunk decodes a binary audio frame. Data aliases the input slice.
func ParseAudioChunk(frame []byte) (AudioChunk, error) {
	if len(frame) < BinaryMessageHeaderSize {
		return AudioChunk{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(frame))
	}
	if frame[0] != AudioChunkMessageType {
		return AudioChunk{}, fmt.Errorf("%w: %d", ErrUnknownFrameType, frame[0])
	}

	ts := binary.BigEndian.Uint64(frame[1:BinaryMessageHeaderSize])
	if ts > math.MaxInt64 {
		return AudioChunk{}, fmt.Errorf("%w: %d", ErrTimestampRange, ts)
	}

	return AudioChunk{
		Timestamp: int64(ts),
		Data:      frame[BinaryMessageHeaderSize:],
	}, nil
}

// AppendAudioChunk encodes a chunk as a binary frame appended to dst
func AppendAudioChunk(dst []byte, chunk AudioChunk) []byte {
	dst = append(dst, AudioChunkMessageType)
	dst = binary.BigEndian.AppendUint64(dst, uint64(chunk.Timestamp))
	return append(dst, chunk.Data...)
}
