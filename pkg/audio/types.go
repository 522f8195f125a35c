// ABOUTME: Audio type definitions
// ABOUTME: Defines stream formats and little-endian PCM helpers
package audio

import (
	"encoding/binary"
	"fmt"
)

// Format describes audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

func (f Format) String() string {
	return fmt.Sprintf("%s %dHz %dch %dbit", f.Codec, f.SampleRate, f.Channels, f.BitDepth)
}

// BytesPerFrame is the size of one sample across all channels
func (f Format) BytesPerFrame() int {
	return f.Channels * (f.BitDepth / 8)
}

// BytesForMs is the PCM byte count for ms milliseconds, frame aligned
func (f Format) BytesForMs(ms int) int {
	frames := f.SampleRate * ms / 1000
	return frames * f.BytesPerFrame()
}

// PCM24To16 narrows packed little-endian 24-bit samples to 16-bit by
// keeping the two most significant bytes
func PCM24To16(pcm []byte) []byte {
	n := len(pcm) / 3
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		out[i*2] = pcm[i*3+1]
		out[i*2+1] = pcm[i*3+2]
	}
	return out
}

// Int16ToPCM packs int16 samples as little-endian bytes
func Int16ToPCM(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// ScalePCM16 applies a linear gain to 16-bit little-endian PCM in place
func ScalePCM16(pcm []byte, gain float64) {
	if gain == 1 {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i:])))
		v := s * gain
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(v)))
	}
}
