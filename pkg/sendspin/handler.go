// ABOUTME: Transport callbacks and server message handling
// ABOUTME: Routes control messages to state updates and binary frames into the jitter buffer
package sendspin

import (
	"log"
	"strings"

	"github.com/Sendspin/sendspin-player/pkg/audio"
	"github.com/Sendspin/sendspin-player/pkg/audio/decode"
	"github.com/Sendspin/sendspin-player/pkg/protocol"
	"github.com/samber/lo"
)

// sessionHandler binds transport callbacks to the session that opened them,
// so events from a replaced connection are ignored
type sessionHandler struct {
	p *Player
	s *session
}

func (h *sessionHandler) OnOpen() { h.p.handleOpen(h.s) }

func (h *sessionHandler) OnText(data []byte) { h.p.handleText(h.s, data) }

func (h *sessionHandler) OnBinary(data []byte) { h.p.handleBinary(h.s, data) }

func (h *sessionHandler) OnClosed(code int, reason string) { h.p.handleClosed(h.s, code, reason) }

func (h *sessionHandler) OnFailure(err error) { h.p.handleFailure(h.s, err) }

func (p *Player) handleOpen(s *session) {
	p.mu.Lock()
	if p.session != s || s.closed {
		p.mu.Unlock()
		return
	}
	p.state.Session = StateHandshaking
	p.state.Status = "ws_open"
	p.state.Connected = true
	st := p.state
	p.mu.Unlock()

	log.Printf("Connected, sending client/hello")
	p.notifyStateChange(st)

	if err := p.sendHello(); err != nil {
		p.notifyError(err)
		return
	}

	p.mu.Lock()
	p.state.Status = "sent client/hello"
	st = p.state
	p.mu.Unlock()
	p.notifyStateChange(st)
}

func (p *Player) handleClosed(s *session, code int, reason string) {
	log.Printf("Connection closed code=%d reason=%s", code, reason)

	p.mu.Lock()
	status := "closed: " + reason
	if s.closeReason != "" {
		status = "client_close: " + s.closeReason
	}
	p.mu.Unlock()

	p.teardown(s, status)
}

func (p *Player) handleFailure(s *session, err error) {
	log.Printf("Connection failure: %v", err)
	p.teardown(s, "failure: "+err.Error())
}

func (p *Player) handleText(s *session, data []byte) {
	if !p.current(s) {
		return
	}

	msg, err := protocol.DecodeServerMessage(data)
	if err != nil {
		log.Printf("Bad message: %v", err)
		return
	}

	switch m := msg.(type) {
	case protocol.ServerHello:
		p.handleServerHello(s, m)
	case protocol.ServerTime:
		clientReceived := p.clock.NowMicros()
		p.estimator.OnRoundTrip(m.ClientTransmitted, clientReceived, m.ServerReceived, m.ServerTransmitted)
	case protocol.StreamStart:
		p.handleStreamStart(m)
	case protocol.StreamClear:
		p.handleStreamClear(m)
	case protocol.StreamEnd:
		p.handleStreamEnd(m)
	case protocol.GroupUpdate:
		p.handleGroupUpdate(m)
	case protocol.ServerState:
		p.handleServerState(m)
	case protocol.ServerCommand:
		p.handleServerCommand(m)
	}
}

func (p *Player) handleServerHello(s *session, m protocol.ServerHello) {
	p.mu.Lock()
	if p.session != s || s.closed {
		p.mu.Unlock()
		log.Printf("Ignoring server/hello for a closed session")
		return
	}
	if s.handshakeDone {
		p.mu.Unlock()
		log.Printf("Ignoring repeated server/hello")
		return
	}
	s.handshakeDone = true
	p.state.Status = "server/hello"
	p.state.ServerName = m.Name
	p.state.ActiveRoles = m.ActiveRoles

	// teardown marks the session closed under this lock before it waits on
	// the group, so loops are only added to a group nobody waits on yet
	s.group.Go(func() error { return p.timeSyncLoop(s.ctx) })
	s.group.Go(func() error { return p.playoutLoop(s.ctx) })
	s.group.Go(func() error { return p.statsLoop(s.ctx) })
	p.mu.Unlock()

	log.Printf("Handshake complete: server=%s id=%s roles=%v reason=%s",
		m.Name, m.ServerID, m.ActiveRoles, m.ConnectionReason)
	if !lo.Contains(m.ActiveRoles, PlayerRole) {
		log.Printf("Warning: server did not activate %s", PlayerRole)
	}

	p.reportPlayerState(protocol.StateSynchronized, true)
}

func (p *Player) handleStreamStart(m protocol.StreamStart) {
	pl := m.Player
	format := audio.Format{
		Codec:      pl.Codec,
		SampleRate: pl.SampleRate,
		Channels:   pl.Channels,
		BitDepth:   pl.BitDepth,
	}
	// None of the supported codecs needs out-of-band setup
	if pl.CodecHeader != "" {
		log.Printf("Ignoring codec_header for %s", pl.Codec)
	}

	log.Printf("Stream starting: %s", format)
	if !decode.Supported(format.Codec) {
		log.Printf("Unsupported codec %s, audio will be ignored", format.Codec)
	}

	p.mu.Lock()
	p.buffer.Clear()
	p.streamGen++
	p.stream = &streamDescriptor{format: format, playAt: pl.PlayAt}
	p.pending.stopSink = true
	p.pending.dropDecoder = true
	p.state.Status = "stream/start"
	p.state.Codec = format.Codec
	p.state.SampleRate = format.SampleRate
	p.state.Channels = format.Channels
	p.state.BitDepth = format.BitDepth
	st := p.state
	p.mu.Unlock()

	p.notifyStateChange(st)
}

func (p *Player) handleStreamClear(m protocol.StreamClear) {
	if !forPlayer(m.Roles) {
		return
	}
	log.Printf("Stream clear")

	p.mu.Lock()
	p.buffer.Clear()
	p.streamGen++
	p.pending.resetDecoder = true
	p.state.Status = "stream/clear"
	st := p.state
	p.mu.Unlock()

	p.notifyStateChange(st)
}

func (p *Player) handleStreamEnd(m protocol.StreamEnd) {
	if !forPlayer(m.Roles) {
		return
	}
	log.Printf("Stream ended")

	p.mu.Lock()
	p.buffer.Clear()
	p.streamGen++
	p.stream = nil
	p.pending.stopSink = true
	p.pending.dropDecoder = true
	p.state.Status = "stream/end"
	p.clearStreamStateLocked()
	st := p.state
	p.mu.Unlock()

	p.notifyStateChange(st)
}

func (p *Player) handleGroupUpdate(m protocol.GroupUpdate) {
	p.mu.Lock()
	if m.PlaybackState != nil {
		p.state.PlaybackState = *m.PlaybackState
	}
	if m.GroupID != nil {
		p.state.GroupID = *m.GroupID
	}
	if m.GroupName != nil {
		p.state.GroupName = *m.GroupName
	}
	st := p.state
	p.mu.Unlock()

	p.notifyStateChange(st)
}

func (p *Player) handleServerState(m protocol.ServerState) {
	if m.Metadata != nil {
		p.mu.Lock()
		p.metadata = mergeMetadata(p.metadata, m.Metadata)
		meta := p.metadata
		p.mu.Unlock()

		if p.config.OnMetadata != nil {
			p.config.OnMetadata(meta)
		}
	}

	if m.Controller != nil {
		p.mu.Lock()
		p.state.SupportedCommands = m.Controller.SupportedCommands
		p.state.GroupVolume = m.Controller.Volume
		p.state.GroupMuted = m.Controller.Muted
		st := p.state
		p.mu.Unlock()

		p.notifyStateChange(st)
	}
}

// handleServerCommand applies a volume or mute command and acknowledges it
// with client/state
func (p *Player) handleServerCommand(m protocol.ServerCommand) {
	cmd := m.Player
	if cmd == nil {
		return
	}

	p.mu.Lock()
	switch cmd.Command {
	case "volume":
		if cmd.Volume == nil {
			p.mu.Unlock()
			log.Printf("Ignoring volume command without a volume")
			return
		}
		p.state.Volume = lo.Clamp(*cmd.Volume, 0, 100)
	case "mute":
		if cmd.Mute == nil {
			p.mu.Unlock()
			log.Printf("Ignoring mute command without a mute flag")
			return
		}
		p.state.Muted = *cmd.Mute
	default:
		p.mu.Unlock()
		log.Printf("Ignoring unknown player command: %s", cmd.Command)
		return
	}
	p.pending.applyVolume = true
	volume, muted := p.state.Volume, p.state.Muted
	p.mu.Unlock()

	log.Printf("Server command %s: volume=%d muted=%v", cmd.Command, volume, muted)
	p.reportPlayerState("", true)
}

// handleBinary queues an audio chunk for the current stream. The push happens
// under p.mu so it cannot land on either side of a stream boundary by mistake.
func (p *Player) handleBinary(s *session, data []byte) {
	chunk, err := protocol.ParseAudioChunk(data)
	if err != nil || len(chunk.Data) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != s || s.closed || !s.handshakeDone ||
		p.stream == nil || !decode.Supported(p.stream.format.Codec) {
		return
	}

	p.buffer.Push(chunk.Timestamp, chunk.Data)
	p.received.Add(1)
}

// forPlayer reports whether a roles filter includes the player role.
// An empty filter means every role.
func forPlayer(roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	return lo.ContainsBy(roles, func(r string) bool {
		return r == "player" || strings.HasPrefix(r, "player@")
	})
}
