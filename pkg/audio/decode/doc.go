// ABOUTME: Audio decoder package for multiple codec support
// ABOUTME: Provides Decoder interface and implementations for PCM, Opus, MP3
// Package decode turns encoded stream chunks into little-endian PCM.
//
// Supports: PCM (16-bit and 24-bit pass-through), Opus, MP3.
//
// Example:
//
//	decoder, err := decode.New(format)
//	pcm, err := decoder.Decode(chunk)
package decode
