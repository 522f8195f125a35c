// ABOUTME: Tests for binary audio frame parsing
// ABOUTME: Covers header layout, short frames, and unknown frame types
package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseAudioChunk(t *testing.T) {
	frame := []byte{4, 0, 0, 0, 0, 0, 0, 0x01, 0x00, 0xAA, 0xBB}

	chunk, err := ParseAudioChunk(frame)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if chunk.Timestamp != 256 {
		t.Errorf("expected timestamp 256, got %d", chunk.Timestamp)
	}
	if !bytes.Equal(chunk.Data, []byte{0xAA, 0xBB}) {
		t.Errorf("unexpected payload: %v", chunk.Data)
	}
}

func TestParseAudioChunkRoundTrip(t *testing.T) {
	in := AudioChunk{Timestamp: 1_700_000_000_123_456, Data: []byte{1, 2, 3}}

	out, err := ParseAudioChunk(AppendAudioChunk(nil, in))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if out.Timestamp != in.Timestamp || !bytes.Equal(out.Data, in.Data) {
		t.Errorf("expected %+v, got %+v", in, out)
	}
}

func TestParseAudioChunkErrors(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  error
	}{
		{"empty", nil, ErrShortFrame},
		{"header only minus one", make([]byte, BinaryMessageHeaderSize-1), ErrShortFrame},
		{"artwork frame", append([]byte{8}, make([]byte, 12)...), ErrUnknownFrameType},
		{"type zero", make([]byte, 12), ErrUnknownFrameType},
		{"timestamp above int64", []byte{AudioChunkMessageType, 0x80, 0, 0, 0, 0, 0, 0, 0, 1}, ErrTimestampRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseAudioChunk(tt.frame); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseHeaderOnlyFrame(t *testing.T) {
	frame := make([]byte, BinaryMessageHeaderSize)
	frame[0] = AudioChunkMessageType

	chunk, err := ParseAudioChunk(frame)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(chunk.Data) != 0 {
		t.Errorf("expected empty payload, got %d bytes", len(chunk.Data))
	}
}
