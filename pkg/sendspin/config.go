// ABOUTME: Player configuration, playout tuning defaults and the clock abstraction
// ABOUTME: Zero-valued fields are filled with the defaults the client ships with
package sendspin

import (
	"context"
	"time"

	"github.com/Sendspin/sendspin-player/pkg/audio"
	"github.com/Sendspin/sendspin-player/pkg/audio/decode"
	"github.com/Sendspin/sendspin-player/pkg/audio/output"
	"github.com/Sendspin/sendspin-player/pkg/protocol"
)

// MaxPlayoutOffset bounds the user playout offset in both directions
const MaxPlayoutOffset = time.Second

// PlayerConfig holds player configuration
type PlayerConfig struct {
	// ServerAddr is the server address (host:port or a ws:// URL)
	ServerAddr string

	// ClientID identifies this player to the server; a UUID is generated when empty
	ClientID string

	// PlayerName is the display name for this player
	PlayerName string

	// Volume is the initial volume (0-100); nil means 100
	Volume *int

	// PlayoutOffset is the initial user playout offset, clamped to ±MaxPlayoutOffset
	PlayoutOffset time.Duration

	// DeviceInfo provides device identification
	DeviceInfo DeviceInfo

	// SupportedFormats is advertised in client/hello, most preferred first
	SupportedFormats []protocol.AudioFormat

	// BufferCapacity is the advertised buffer size in bytes
	BufferCapacity int

	Tuning Tuning

	// Transport, Sink, NewDecoder and Clock replace the default
	// websocket, oto, codec table and system clock
	Transport  protocol.Transport
	Sink       output.Sink
	NewDecoder func(audio.Format) (decode.Decoder, error)
	Clock      Clock

	// OnStateChange is called when the observable state changes
	OnStateChange func(PlayerState)

	// OnMetadata is called when track metadata is received
	OnMetadata func(Metadata)

	// OnStats is called from the stats loop
	OnStats func(PlayerStats)

	// OnError is called for non-fatal errors
	OnError func(error)
}

// DeviceInfo describes the player device
type DeviceInfo struct {
	ProductName     string
	Manufacturer    string
	SoftwareVersion string
}

// Tuning holds the playout policy constants
type Tuning struct {
	TargetBuffer      time.Duration // buffered lead wanted before the sink starts
	LateDrop          time.Duration // chunks later than this are dropped while polling
	CatchUpLate       time.Duration // lateness that triggers skip-ahead
	CatchUpTarget     time.Duration // skip-ahead stops at a chunk within this lateness
	EarlyThreshold    time.Duration // chunks earlier than this are waited for
	MaxEarlySleep     time.Duration
	RestartKeepWithin time.Duration // stale heads are dropped to within this before a start
	RestartMinAhead   time.Duration // usually negative
	RestartMinQueued  int

	StartPoll       time.Duration
	UnsupportedPoll time.Duration
	StarvedPoll     time.Duration
	StarvedSilence  time.Duration
	RetryDelay      time.Duration

	TimeSyncInterval time.Duration
	StatsInterval    time.Duration

	// Used by Run
	DialTimeout  time.Duration
	ReconnectMin time.Duration // first backoff after a lost connection, doubled per failure
	ReconnectMax time.Duration
}

// DefaultTuning returns the shipped playout policy
func DefaultTuning() Tuning {
	return Tuning{
		TargetBuffer:      200 * time.Millisecond,
		LateDrop:          50 * time.Millisecond,
		CatchUpLate:       80 * time.Millisecond,
		CatchUpTarget:     20 * time.Millisecond,
		EarlyThreshold:    5 * time.Millisecond,
		MaxEarlySleep:     50 * time.Millisecond,
		RestartKeepWithin: 20 * time.Millisecond,
		RestartMinAhead:   -20 * time.Millisecond,
		RestartMinQueued:  1,
		StartPoll:         10 * time.Millisecond,
		UnsupportedPoll:   50 * time.Millisecond,
		StarvedPoll:       2 * time.Millisecond,
		StarvedSilence:    20 * time.Millisecond,
		RetryDelay:        100 * time.Millisecond,
		TimeSyncInterval:  250 * time.Millisecond,
		StatsInterval:     3 * time.Second,
		DialTimeout:       10 * time.Second,
		ReconnectMin:      time.Second,
		ReconnectMax:      30 * time.Second,
	}
}

func (t Tuning) withDefaults() Tuning {
	d := DefaultTuning()
	fill := func(v *time.Duration, def time.Duration) {
		if *v == 0 {
			*v = def
		}
	}
	fill(&t.TargetBuffer, d.TargetBuffer)
	fill(&t.LateDrop, d.LateDrop)
	fill(&t.CatchUpLate, d.CatchUpLate)
	fill(&t.CatchUpTarget, d.CatchUpTarget)
	fill(&t.EarlyThreshold, d.EarlyThreshold)
	fill(&t.MaxEarlySleep, d.MaxEarlySleep)
	fill(&t.RestartKeepWithin, d.RestartKeepWithin)
	fill(&t.RestartMinAhead, d.RestartMinAhead)
	fill(&t.StartPoll, d.StartPoll)
	fill(&t.UnsupportedPoll, d.UnsupportedPoll)
	fill(&t.StarvedPoll, d.StarvedPoll)
	fill(&t.StarvedSilence, d.StarvedSilence)
	fill(&t.RetryDelay, d.RetryDelay)
	fill(&t.TimeSyncInterval, d.TimeSyncInterval)
	fill(&t.StatsInterval, d.StatsInterval)
	fill(&t.DialTimeout, d.DialTimeout)
	fill(&t.ReconnectMin, d.ReconnectMin)
	fill(&t.ReconnectMax, d.ReconnectMax)
	if t.RestartMinQueued <= 0 {
		t.RestartMinQueued = d.RestartMinQueued
	}
	return t
}

// DefaultFormats is the format list advertised when none is configured
func DefaultFormats() []protocol.AudioFormat {
	return []protocol.AudioFormat{
		// Prefer Opus for bandwidth efficiency
		{Codec: "opus", Channels: 2, SampleRate: 48000, BitDepth: 16},
		{Codec: "pcm", Channels: 2, SampleRate: 48000, BitDepth: 16},
		{Codec: "pcm", Channels: 2, SampleRate: 44100, BitDepth: 16},
		{Codec: "pcm", Channels: 2, SampleRate: 96000, BitDepth: 24},
		{Codec: "mp3", Channels: 2, SampleRate: 44100, BitDepth: 16},
	}
}

// Clock is the local monotonic time source in µs
type Clock interface {
	NowMicros() int64

	// Sleep waits for d or until ctx is done
	Sleep(ctx context.Context, d time.Duration) error
}

// systemClock is monotonic but reads as Unix µs so logs stay readable
type systemClock struct {
	base time.Time
}

func newSystemClock() *systemClock {
	return &systemClock{base: time.Now()}
}

func (c *systemClock) NowMicros() int64 {
	return c.base.UnixMicro() + time.Since(c.base).Microseconds()
}

func (c *systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
