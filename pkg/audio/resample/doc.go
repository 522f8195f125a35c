// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts 16-bit PCM between sample rates and channel layouts
// Package resample provides sample rate conversion for the output path.
//
// The audio device is opened once per process, so streams whose rate
// differs from the device rate are converted before playback. State is
// carried between chunks; call Reset on a discontinuity.
//
// Example:
//
//	r := resample.New(44100, 48000, 2)
//	out := r.Process(pcm)
package resample
