// ABOUTME: Tests for Opus decoder
// ABOUTME: Tests creation, validation, and decoding of encoded packets
package decode

import (
	"testing"

	"github.com/Sendspin/sendspin-player/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

func TestNewOpus(t *testing.T) {
	format := audio.Format{
		Codec:      "opus",
		SampleRate: 48000,
		Channels:   2,
		BitDepth:   16,
	}

	decoder, err := NewOpus(format)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	if decoder == nil {
		t.Fatal("expected decoder to be created")
	}
}

func TestNewOpus_InvalidCodec(t *testing.T) {
	format := audio.Format{
		Codec:      "pcm",
		SampleRate: 48000,
		Channels:   2,
		BitDepth:   16,
	}

	decoder, err := NewOpus(format)
	if err == nil {
		t.Fatal("expected error for invalid codec, got nil")
	}

	if decoder != nil {
		t.Fatal("expected decoder to be nil for invalid codec")
	}

	expectedError := "invalid codec for Opus decoder: pcm"
	if err.Error() != expectedError {
		t.Errorf("expected error %q, got %q", expectedError, err.Error())
	}
}

func TestNewOpus_InvalidSampleRate(t *testing.T) {
	format := audio.Format{
		Codec:      "opus",
		SampleRate: 44100,
		Channels:   2,
		BitDepth:   16,
	}

	if _, err := NewOpus(format); err == nil {
		t.Fatal("expected error for sample rate Opus does not support")
	}
}

func TestOpusDecodeEncodedFrame(t *testing.T) {
	const sampleRate, channels, frameSamples = 48000, 2, 960 // 20ms

	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}

	pcm := make([]int16, frameSamples*channels)
	for i := range pcm {
		pcm[i] = int16((i % 200) * 50)
	}
	packet := make([]byte, 4000)
	n, err := enc.Encode(pcm, packet)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoder, err := NewOpus(audio.Format{Codec: "opus", SampleRate: sampleRate, Channels: channels, BitDepth: 16})
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	out, err := decoder.Decode(packet[:n])
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(out) != frameSamples*channels*2 {
		t.Errorf("expected %d bytes, got %d", frameSamples*channels*2, len(out))
	}

	decoder.Reset()
	if _, err := decoder.Decode(packet[:n]); err != nil {
		t.Errorf("decode after reset failed: %v", err)
	}
}

func TestOpusDecodeEmpty(t *testing.T) {
	decoder, err := NewOpus(audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2, BitDepth: 16})
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	if _, err := decoder.Decode(nil); err == nil {
		t.Error("expected error for empty packet")
	}
}
