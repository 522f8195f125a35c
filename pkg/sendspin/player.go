// ABOUTME: High-level Player API for Sendspin streaming
// ABOUTME: Owns the session lifecycle, the clock estimator and jitter buffer, and the player controls
package sendspin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sendspin/sendspin-player/internal/version"
	"github.com/Sendspin/sendspin-player/pkg/audio"
	"github.com/Sendspin/sendspin-player/pkg/audio/decode"
	"github.com/Sendspin/sendspin-player/pkg/audio/output"
	"github.com/Sendspin/sendspin-player/pkg/jitter"
	"github.com/Sendspin/sendspin-player/pkg/protocol"
	clocksync "github.com/Sendspin/sendspin-player/pkg/sync"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// PlayerRole is the only role this client implements
const PlayerRole = "player@v1"

var (
	// ErrNotConnected is returned by controls that need a completed handshake
	ErrNotConnected = errors.New("not connected")

	// ErrUnknownCommand is returned by SendCommand for actions servers do not accept
	ErrUnknownCommand = errors.New("unknown controller command")
)

// ControllerCommands are the group actions SendCommand accepts
var ControllerCommands = []string{"play", "pause", "stop", "next", "previous", "volume", "mute"}

// Player plays one synchronized Sendspin stream
type Player struct {
	config     PlayerConfig
	tuning     Tuning
	clock      Clock
	estimator  *clocksync.Estimator
	buffer     *jitter.Buffer
	transport  protocol.Transport
	newDecoder func(audio.Format) (decode.Decoder, error)

	playoutOffsetUs atomic.Int64

	received     atomic.Int64
	played       atomic.Int64
	catchUpDrops atomic.Int64
	starvations  atomic.Int64
	decodeErrors atomic.Int64

	// connectMu serializes Connect and Close
	connectMu sync.Mutex

	mu           sync.Mutex
	session      *session
	state        PlayerState
	metadata     Metadata
	stream       *streamDescriptor
	streamGen    uint64 // bumped with every stream boundary, together with a buffer clear
	pending      pendingResets
	lastReported *protocol.PlayerState
	published    jitter.Snapshot

	// Owned by the playout loop while a session runs, by teardown afterwards
	sink    output.Sink
	decoder decode.Decoder
	starved bool
}

// streamDescriptor is replaced wholesale, never mutated
type streamDescriptor struct {
	format audio.Format
	playAt *int64 // server µs; earlier chunks are held until then
}

// pendingResets are requested by message handlers and applied by the
// playout loop between iterations
type pendingResets struct {
	stopSink     bool
	resetDecoder bool
	dropDecoder  bool
	applyVolume  bool
}

// session is one transport connection and the loops it runs
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	done   chan struct{} // closed once teardown finishes

	// guarded by Player.mu
	closed        bool
	handshakeDone bool
	closeReason   string

	teardownOnce sync.Once
}

// NewPlayer creates a new player with the given configuration
func NewPlayer(config PlayerConfig) (*Player, error) {
	if config.Transport == nil && config.ServerAddr == "" {
		return nil, fmt.Errorf("server address is required")
	}

	// Set defaults
	if config.ClientID == "" {
		config.ClientID = uuid.New().String()
	}
	if config.PlayerName == "" {
		config.PlayerName = version.Product
	}
	volume := 100
	if config.Volume != nil {
		volume = lo.Clamp(*config.Volume, 0, 100)
	}
	if config.DeviceInfo.ProductName == "" {
		config.DeviceInfo.ProductName = version.Product
	}
	if config.DeviceInfo.Manufacturer == "" {
		config.DeviceInfo.Manufacturer = version.Manufacturer
	}
	if config.DeviceInfo.SoftwareVersion == "" {
		config.DeviceInfo.SoftwareVersion = version.Version
	}
	if len(config.SupportedFormats) == 0 {
		config.SupportedFormats = DefaultFormats()
	}
	if config.BufferCapacity == 0 {
		config.BufferCapacity = 2_000_000
	}
	if config.Transport == nil {
		config.Transport = protocol.NewClient(protocol.Config{URL: protocol.ServerURL(config.ServerAddr)})
	}
	if config.Sink == nil {
		config.Sink = output.NewOto()
	}
	if config.NewDecoder == nil {
		config.NewDecoder = decode.New
	}
	if config.Clock == nil {
		config.Clock = newSystemClock()
	}

	p := &Player{
		config:     config,
		tuning:     config.Tuning.withDefaults(),
		clock:      config.Clock,
		estimator:  clocksync.NewEstimator(),
		buffer:     jitter.NewBuffer(jitter.WithClock(config.Clock.NowMicros)),
		transport:  config.Transport,
		newDecoder: config.NewDecoder,
		sink:       config.Sink,
		state: PlayerState{
			Session: StateIdle,
			Status:  "idle",
			Volume:  volume,
		},
	}
	p.SetPlayoutOffset(config.PlayoutOffset)

	return p, nil
}

// Connect opens a new session, tearing down any previous one first.
// ctx bounds the dial only; the session runs until Close or a transport failure.
func (p *Player) Connect(ctx context.Context) error {
	_, err := p.connect(ctx)
	return err
}

func (p *Player) connect(ctx context.Context) (*session, error) {
	p.connectMu.Lock()
	defer p.connectMu.Unlock()

	p.mu.Lock()
	old := p.session
	p.mu.Unlock()
	if old != nil {
		p.transport.Close("reconnect")
		p.teardown(old, "reconnect")
	}

	p.estimator.Reset()

	sctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(sctx)
	s := &session{ctx: gctx, cancel: cancel, group: group, done: make(chan struct{})}

	p.mu.Lock()
	p.session = s
	p.lastReported = nil
	p.state.Session = StateConnecting
	p.state.Status = "connecting..."
	st := p.state
	p.mu.Unlock()
	p.notifyStateChange(st)

	if err := p.transport.Open(ctx, &sessionHandler{p: p, s: s}); err != nil {
		p.teardown(s, "failure: "+err.Error())
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	return s, nil
}

// Run connects and keeps reconnecting with the same parameters whenever the
// connection is lost, backing off between attempts. It returns nil once Close
// ends the session, or ctx's error when ctx is done; it never closes the
// session itself, so callers follow a cancelled Run with Close.
func (p *Player) Run(ctx context.Context) error {
	t := p.tuning
	backoff := t.ReconnectMin

	for {
		dialCtx, cancel := context.WithTimeout(ctx, t.DialTimeout)
		s, err := p.connect(dialCtx)
		cancel()

		if err != nil {
			log.Printf("Connect failed: %v", err)
		} else {
			select {
			case <-s.done:
			case <-ctx.Done():
				return ctx.Err()
			}

			p.mu.Lock()
			byClose := s.closeReason != ""
			p.mu.Unlock()
			if byClose {
				return nil
			}
			backoff = t.ReconnectMin
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		log.Printf("Reconnecting in %s", backoff)
		if err := p.clock.Sleep(ctx, backoff); err != nil {
			return err
		}
		backoff = min(backoff*2, t.ReconnectMax)
	}
}

// Close says goodbye, closes the transport and waits for the session to wind down
func (p *Player) Close(reason string) error {
	p.connectMu.Lock()
	defer p.connectMu.Unlock()

	p.mu.Lock()
	s := p.session
	if s != nil {
		s.closeReason = reason
	}
	p.mu.Unlock()
	if s == nil {
		return nil
	}

	if err := p.send(protocol.TypeClientGoodbye, protocol.ClientGoodbye{Reason: reason}); err != nil {
		log.Printf("Failed to send goodbye: %v", err)
	}

	err := p.transport.Close(reason)
	p.teardown(s, "client_close: "+reason)
	if err != nil {
		return fmt.Errorf("close failed: %w", err)
	}
	return nil
}

// teardown cancels the session's loops and resets everything stream related.
// Safe to call any number of times from any goroutine except the loops themselves.
func (p *Player) teardown(s *session, status string) {
	s.teardownOnce.Do(func() {
		p.mu.Lock()
		s.closed = true
		p.mu.Unlock()

		s.cancel()
		if err := s.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Session loop error: %v", err)
		}

		// The loops are gone, so the sink and decoder are ours
		if p.sink.IsStarted() {
			if err := p.sink.Stop(); err != nil {
				log.Printf("Failed to stop output: %v", err)
			}
		}
		p.decoder = nil
		p.starved = false
		p.buffer.Clear()

		p.mu.Lock()
		if p.session == s {
			p.session = nil
		}
		p.stream = nil
		p.pending = pendingResets{}
		p.lastReported = nil
		p.published = jitter.Snapshot{}
		p.state.Session = StateDisconnected
		p.state.Status = status
		p.state.Connected = false
		p.state.ServerName = ""
		p.state.ActiveRoles = nil
		p.state.PlaybackState = ""
		p.state.GroupName = ""
		p.state.GroupID = ""
		p.clearStreamStateLocked()
		st := p.state
		p.mu.Unlock()

		log.Printf("Session ended: %s", status)
		p.notifyStateChange(st)
		close(s.done)
	})
}

// current reports whether s is the live session
func (p *Player) current(s *session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session == s && !s.closed
}

// send encodes and sends one control message
func (p *Player) send(msgType string, payload interface{}) error {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		return err
	}
	return p.transport.SendText(data)
}

func (p *Player) sendHello() error {
	formats := lo.Filter(p.config.SupportedFormats, func(f protocol.AudioFormat, _ int) bool {
		return decode.Supported(f.Codec)
	})
	support := &protocol.PlayerV1Support{
		SupportedFormats:  formats,
		BufferCapacity:    p.config.BufferCapacity,
		SupportedCommands: []string{"volume", "mute"},
	}

	return p.send(protocol.TypeClientHello, protocol.ClientHello{
		ClientID:       p.config.ClientID,
		Name:           p.config.PlayerName,
		Version:        1,
		SupportedRoles: []string{PlayerRole},
		DeviceInfo: &protocol.DeviceInfo{
			ProductName:     p.config.DeviceInfo.ProductName,
			Manufacturer:    p.config.DeviceInfo.Manufacturer,
			SoftwareVersion: p.config.DeviceInfo.SoftwareVersion,
		},
		PlayerV1Support: support,
		PlayerSupport:   support,
	})
}

// reportPlayerState sends client/state when the reported tuple changes, or
// always when force is set. An empty state repeats the last reported one.
func (p *Player) reportPlayerState(state string, force bool) {
	p.mu.Lock()
	s := p.session
	if s == nil || s.closed || !s.handshakeDone {
		p.mu.Unlock()
		return
	}
	if state == "" {
		state = protocol.StateSynchronized
		if p.lastReported != nil {
			state = p.lastReported.State
		}
	}

	ps := protocol.PlayerState{State: state, Volume: p.state.Volume, Muted: p.state.Muted}
	if !force && p.lastReported != nil && *p.lastReported == ps {
		p.mu.Unlock()
		return
	}
	p.lastReported = &ps

	p.state.Session = StateSynchronized
	if state == protocol.StateError {
		p.state.Session = StateError
	}
	st := p.state
	p.mu.Unlock()

	if err := p.send(protocol.TypeClientState, protocol.ClientStateMessage{Player: &ps}); err != nil {
		log.Printf("Failed to send state: %v", err)
	}
	p.notifyStateChange(st)
}

// SetVolume sets the local volume (0-100) and reports it to the server
func (p *Player) SetVolume(volume int) error {
	p.mu.Lock()
	p.state.Volume = lo.Clamp(volume, 0, 100)
	p.pending.applyVolume = true
	st := p.state
	p.mu.Unlock()

	log.Printf("Volume set to %d", st.Volume)
	p.notifyStateChange(st)
	p.reportPlayerState("", false)
	return nil
}

// Mute sets the local mute state and reports it to the server
func (p *Player) Mute(muted bool) error {
	p.mu.Lock()
	p.state.Muted = muted
	p.pending.applyVolume = true
	st := p.state
	p.mu.Unlock()

	log.Printf("Muted: %v", muted)
	p.notifyStateChange(st)
	p.reportPlayerState("", false)
	return nil
}

// SetPlayoutOffset shifts every chunk's local play time; negative plays earlier.
// Clamped to ±MaxPlayoutOffset and effective from the next chunk.
func (p *Player) SetPlayoutOffset(d time.Duration) {
	d = lo.Clamp(d, -MaxPlayoutOffset, MaxPlayoutOffset)
	p.playoutOffsetUs.Store(d.Microseconds())

	p.mu.Lock()
	p.state.PlayoutOffsetMs = d.Milliseconds()
	st := p.state
	p.mu.Unlock()

	log.Printf("playoutOffset=%dms", d.Milliseconds())
	p.notifyStateChange(st)
}

// PlayoutOffset returns the user playout offset
func (p *Player) PlayoutOffset() time.Duration {
	return time.Duration(p.playoutOffsetUs.Load()) * time.Microsecond
}

// SendCommand asks the server to act on the whole group
func (p *Player) SendCommand(command string, volume *int, mute *bool) error {
	if !lo.Contains(ControllerCommands, command) {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}

	p.mu.Lock()
	s := p.session
	ready := s != nil && !s.closed && s.handshakeDone
	p.mu.Unlock()
	if !ready {
		return ErrNotConnected
	}

	cmd := &protocol.ControllerCommand{Command: command, Volume: volume, Mute: mute}
	if err := p.send(protocol.TypeClientCommand, protocol.ClientCommandMessage{Controller: cmd}); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}
	return nil
}

// Status returns the current player state
func (p *Player) Status() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Metadata returns the latest track metadata
func (p *Player) Metadata() Metadata {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metadata
}

// TrackPosition is the current track position, extrapolated from the last
// progress report with the synchronized server clock. ok is false until the
// server has reported progress.
func (p *Player) TrackPosition() (time.Duration, bool) {
	serverNow := p.clock.NowMicros() + p.estimator.Offset()
	return p.Metadata().PositionAt(serverNow)
}

// Stats returns playback statistics
func (p *Player) Stats() PlayerStats {
	p.mu.Lock()
	snap := p.published
	p.mu.Unlock()

	cs := p.estimator.State()
	return PlayerStats{
		Queued:          snap.Queued,
		AheadMs:         snap.AheadMs,
		LateDrops:       p.buffer.LateDrops(),
		CatchUpDrops:    p.catchUpDrops.Load(),
		Starvations:     p.starvations.Load(),
		DecodeErrors:    p.decodeErrors.Load(),
		Received:        p.received.Load(),
		Played:          p.played.Load(),
		OffsetUs:        cs.Offset,
		DriftPPM:        cs.DriftPPM,
		RTTUs:           cs.RTT,
		SyncQuality:     p.estimator.Quality(),
		PlayoutOffsetMs: p.PlayoutOffset().Milliseconds(),
	}
}

func (p *Player) clearStreamStateLocked() {
	p.state.Codec = ""
	p.state.SampleRate = 0
	p.state.Channels = 0
	p.state.BitDepth = 0
}

func streamDesc(codec string, sampleRate, channels, bitDepth int) string {
	return fmt.Sprintf("%s %dHz %dch %dbit", codec, sampleRate, channels, bitDepth)
}

// notifyStateChange calls the OnStateChange callback if set
func (p *Player) notifyStateChange(st PlayerState) {
	if p.config.OnStateChange != nil {
		p.config.OnStateChange(st)
	}
}

// notifyError calls the OnError callback if set
func (p *Player) notifyError(err error) {
	if p.config.OnError != nil {
		p.config.OnError(err)
	} else {
		log.Printf("Player error: %v", err)
	}
}
