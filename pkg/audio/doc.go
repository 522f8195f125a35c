// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and little-endian PCM helpers
// Package audio provides the stream format descriptor shared by decoders and sinks.
//
// PCM is carried as little-endian interleaved bytes end to end. Helpers cover
// frame arithmetic, 24→16-bit narrowing and software gain.
//
// Example:
//
//	format := audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16}
//	silence := make([]byte, format.BytesForMs(20))
package audio
