// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Sink interface and an oto implementation
// Package output provides audio playback sinks.
//
// Example:
//
//	sink := output.NewOto()
//	err := sink.Start(48000, 2, 16)
//	n, err := sink.Write(pcm)
package output
