// ABOUTME: Linear resampler for 16-bit interleaved PCM
// ABOUTME: Keeps the last frame and phase between chunks so chunk boundaries stay continuous
package resample

import (
	"encoding/binary"
)

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	step       float64 // input frames per output frame
	position   float64 // next output position, in frames from the carried frame
	lastFrame  []int16
	haveLast   bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		step:       float64(inputRate) / float64(outputRate),
		lastFrame:  make([]int16, channels),
	}
}

// InputRate returns the source rate
func (r *Resampler) InputRate() int { return r.inputRate }

// OutputRate returns the target rate
func (r *Resampler) OutputRate() int { return r.outputRate }

// Process converts one chunk of 16-bit little-endian interleaved PCM.
// A trailing partial frame is ignored.
func (r *Resampler) Process(pcm []byte) []byte {
	bpf := r.channels * 2
	frames := len(pcm) / bpf
	if frames == 0 {
		return nil
	}
	if r.inputRate == r.outputRate {
		out := make([]byte, frames*bpf)
		copy(out, pcm)
		return out
	}

	// The carried frame, when present, sits at virtual index 0
	offset := 0
	if r.haveLast {
		offset = 1
	}
	n := frames + offset

	sample := func(frame, ch int) float64 {
		if frame < offset {
			return float64(r.lastFrame[ch])
		}
		i := ((frame-offset)*r.channels + ch) * 2
		return float64(int16(binary.LittleEndian.Uint16(pcm[i:])))
	}

	estimate := int(float64(n)/r.step) + 1
	out := make([]byte, 0, estimate*bpf)

	for {
		idx := int(r.position)
		if idx+1 >= n {
			break
		}
		frac := r.position - float64(idx)
		for ch := 0; ch < r.channels; ch++ {
			v := sample(idx, ch)*(1-frac) + sample(idx+1, ch)*frac
			out = binary.LittleEndian.AppendUint16(out, uint16(int16(v)))
		}
		r.position += r.step
	}

	// The last input frame becomes virtual index 0 of the next chunk
	for ch := 0; ch < r.channels; ch++ {
		r.lastFrame[ch] = int16(sample(n-1, ch))
	}
	r.haveLast = true
	r.position -= float64(n - 1)

	return out
}

// Reset drops the carried frame and phase, for discontinuities such as a seek
func (r *Resampler) Reset() {
	r.position = 0
	r.haveLast = false
	for i := range r.lastFrame {
		r.lastFrame[i] = 0
	}
}

// Remix converts 16-bit interleaved PCM between mono and stereo.
// Other conversions return the input unchanged.
func Remix(pcm []byte, from, to int) []byte {
	switch {
	case from == 1 && to == 2:
		out := make([]byte, len(pcm)/2*4)
		for i := 0; i+1 < len(pcm); i += 2 {
			copy(out[i*2:], pcm[i:i+2])
			copy(out[i*2+2:], pcm[i:i+2])
		}
		return out
	case from == 2 && to == 1:
		out := make([]byte, len(pcm)/4*2)
		for i := 0; i+3 < len(pcm); i += 4 {
			l := int32(int16(binary.LittleEndian.Uint16(pcm[i:])))
			r := int32(int16(binary.LittleEndian.Uint16(pcm[i+2:])))
			binary.LittleEndian.PutUint16(out[i/2:], uint16(int16((l+r)/2)))
		}
		return out
	}
	return pcm
}
