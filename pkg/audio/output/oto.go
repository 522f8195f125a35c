// ABOUTME: Oto-based audio sink implementation
// ABOUTME: Streams PCM into a persistent oto player through a pipe with software volume and rate conversion
package output

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/Sendspin/sendspin-player/pkg/audio"
	"github.com/Sendspin/sendspin-player/pkg/audio/resample"
	"github.com/ebitengine/oto/v3"
	"github.com/samber/lo"
)

// oto allows one context per process, so every sink shares it
var (
	otoMu         sync.Mutex
	otoCtx        *oto.Context
	otoSampleRate int
	otoChannels   int
)

// sharedContext returns the process context and the rate and channel count
// it was opened with, which later streams are converted to
func sharedContext(sampleRate, channels int) (*oto.Context, int, int, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoSampleRate != sampleRate || otoChannels != channels {
			log.Printf("Format change detected (%dHz %dch -> %dHz %dch), oto cannot reinitialize; converting to the existing context",
				sampleRate, channels, otoSampleRate, otoChannels)
		}
		return otoCtx, otoSampleRate, otoChannels, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	otoCtx = ctx
	otoSampleRate = sampleRate
	otoChannels = channels
	return ctx, sampleRate, channels, nil
}

// Oto is a Sink backed by the oto library. Input may be 16 or 24-bit;
// 24-bit is narrowed since oto plays 16-bit.
type Oto struct {
	mu         sync.Mutex
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	format     audio.Format // input
	device     audio.Format // what the context plays, always 16-bit
	resampler  *resample.Resampler
	volume     int
	muted      bool
}

// NewOto creates a stopped Oto sink at full volume
func NewOto() *Oto {
	return &Oto{volume: 100}
}

// Start opens a player on the shared oto context
func (o *Oto) Start(sampleRate, channels, bitDepth int) error {
	if bitDepth != 16 && bitDepth != 24 {
		return fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
	if channels < 1 || channels > 2 {
		return fmt.Errorf("unsupported channel count: %d", channels)
	}

	o.mu.Lock()
	started := o.player != nil
	o.mu.Unlock()
	if started {
		return nil
	}

	ctx, deviceRate, deviceChannels, err := sharedContext(sampleRate, channels)
	if err != nil {
		return err
	}

	var rs *resample.Resampler
	if deviceRate != sampleRate {
		rs = resample.New(sampleRate, deviceRate, deviceChannels)
	}

	pr, pw := io.Pipe()
	player := ctx.NewPlayer(pr)
	player.Play()

	o.mu.Lock()
	o.player = player
	o.pipeReader = pr
	o.pipeWriter = pw
	o.format = audio.Format{Codec: "pcm", SampleRate: sampleRate, Channels: channels, BitDepth: bitDepth}
	o.device = audio.Format{Codec: "pcm", SampleRate: deviceRate, Channels: deviceChannels, BitDepth: 16}
	o.resampler = rs
	o.mu.Unlock()

	log.Printf("Audio output started: %dHz, %d channels, %d-bit", sampleRate, channels, bitDepth)
	if rs != nil {
		log.Printf("Resampling %dHz -> %dHz", rs.InputRate(), rs.OutputRate())
	}
	return nil
}

// Write converts pcm to the device format, applies volume and blocks until the
// player takes it. The returned count is in input bytes.
func (o *Oto) Write(pcm []byte) (int, error) {
	o.mu.Lock()
	pw := o.pipeWriter
	format, device, rs := o.format, o.device, o.resampler
	gain := gainFor(o.volume, o.muted)
	o.mu.Unlock()

	if pw == nil {
		return 0, ErrNotStarted
	}

	bpf := format.BytesPerFrame()
	whole := len(pcm) / bpf * bpf
	if whole == 0 {
		return 0, nil
	}

	if _, err := pw.Write(convert(pcm[:whole], format, device, rs, gain)); err != nil {
		return 0, fmt.Errorf("pipe write failed: %w", err)
	}
	return whole, nil
}

// FlushSilence writes ms milliseconds of zeros
func (o *Oto) FlushSilence(ms int) error {
	o.mu.Lock()
	pw := o.pipeWriter
	device := o.device
	o.mu.Unlock()

	if pw == nil {
		return ErrNotStarted
	}

	if _, err := pw.Write(make([]byte, device.BytesForMs(ms))); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

// Stop closes the player; the shared context stays alive for the next Start
func (o *Oto) Stop() error {
	o.mu.Lock()
	player, pr, pw := o.player, o.pipeReader, o.pipeWriter
	o.player, o.pipeReader, o.pipeWriter = nil, nil, nil
	o.resampler = nil
	o.mu.Unlock()

	if player == nil {
		return nil
	}

	pw.Close()
	err := player.Close()
	pr.Close()

	log.Printf("Audio output stopped")
	if err != nil {
		return fmt.Errorf("player close failed: %w", err)
	}
	return nil
}

// IsStarted reports whether a player is open
func (o *Oto) IsStarted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.player != nil
}

// SetVolume sets the volume (0-100)
func (o *Oto) SetVolume(volume int) {
	o.mu.Lock()
	o.volume = lo.Clamp(volume, 0, 100)
	o.mu.Unlock()
}

// SetMuted sets mute state
func (o *Oto) SetMuted(muted bool) {
	o.mu.Lock()
	o.muted = muted
	o.mu.Unlock()
}

func gainFor(volume int, muted bool) float64 {
	if muted {
		return 0
	}
	return float64(volume) / 100
}

// convert brings whole frames of pcm to the device layout and rate
func convert(pcm []byte, in, device audio.Format, rs *resample.Resampler, gain float64) []byte {
	out := resample.Remix(prepare(pcm, in.BitDepth, gain), in.Channels, device.Channels)
	if rs != nil {
		out = rs.Process(out)
	}
	return out
}

// prepare returns a 16-bit copy of pcm with gain applied; the input is never modified
func prepare(pcm []byte, bitDepth int, gain float64) []byte {
	var out []byte
	if bitDepth == 24 {
		out = audio.PCM24To16(pcm)
	} else {
		out = make([]byte, len(pcm))
		copy(out, pcm)
	}
	audio.ScalePCM16(out, gain)
	return out
}
