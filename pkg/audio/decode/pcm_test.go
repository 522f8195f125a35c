// ABOUTME: Tests for PCM decoder
// ABOUTME: Tests 16-bit and 24-bit PCM pass-through and frame trimming
package decode

import (
	"bytes"
	"testing"

	"github.com/Sendspin/sendspin-player/pkg/audio"
)

func TestNewPCM(t *testing.T) {
	tests := []struct {
		name    string
		format  audio.Format
		wantErr bool
	}{
		{"16-bit stereo", audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16}, false},
		{"24-bit stereo", audio.Format{Codec: "pcm", SampleRate: 96000, Channels: 2, BitDepth: 24}, false},
		{"8-bit", audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 8}, true},
		{"wrong codec", audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2, BitDepth: 16}, true},
		{"no channels", audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 0, BitDepth: 16}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoder, err := NewPCM(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if decoder != nil {
					t.Error("expected nil decoder on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("failed to create decoder: %v", err)
			}
		})
	}
}

func TestPCMDecodePassThrough(t *testing.T) {
	decoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16})
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	in := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	out, err := decoder.Decode(in)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Errorf("expected %v, got %v", in, out)
	}
}

func TestPCMDecodeTrimsPartialFrame(t *testing.T) {
	decoder, _ := NewPCM(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 24})

	// two 6-byte frames plus 2 stray bytes
	out, err := decoder.Decode(make([]byte, 14))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(out) != 12 {
		t.Errorf("expected 12 bytes, got %d", len(out))
	}
}

func TestPCMDecodeTooShort(t *testing.T) {
	decoder, _ := NewPCM(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16})

	if _, err := decoder.Decode([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for chunk shorter than one frame")
	}
	if _, err := decoder.Decode(nil); err == nil {
		t.Error("expected error for empty chunk")
	}
}
