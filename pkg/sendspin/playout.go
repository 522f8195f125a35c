// ABOUTME: Session loops: time sync probes, periodic stats and the playout scheduler
// ABOUTME: The playout loop owns the sink and decoder and applies catch-up and slow-down policy
package sendspin

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"github.com/Sendspin/sendspin-player/pkg/audio/decode"
	"github.com/Sendspin/sendspin-player/pkg/audio/output"
	"github.com/Sendspin/sendspin-player/pkg/jitter"
	"github.com/Sendspin/sendspin-player/pkg/protocol"
)

// timeSyncLoop sends a client/time probe every interval
func (p *Player) timeSyncLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		probe := protocol.ClientTime{ClientTransmitted: p.clock.NowMicros()}
		if err := p.send(protocol.TypeClientTime, probe); err != nil {
			log.Printf("Failed to send time sync: %v", err)
		}

		if err := p.clock.Sleep(ctx, p.tuning.TimeSyncInterval); err != nil {
			return err
		}
	}
}

// statsLoop logs a diagnostic snapshot every interval
func (p *Player) statsLoop(ctx context.Context) error {
	for {
		if err := p.clock.Sleep(ctx, p.tuning.StatsInterval); err != nil {
			return err
		}

		stats := p.Stats()
		codec := p.Status().Codec
		log.Printf("stats: offset=%dus drift=%.3fppm rtt~=%dus sync=%s queued=%d ahead~=%dms lateDrops=%d catchUp=%d codec=%s playoutOffset=%dms",
			stats.OffsetUs, stats.DriftPPM, stats.RTTUs, stats.SyncQuality, stats.Queued, stats.AheadMs,
			stats.LateDrops, stats.CatchUpDrops, codec, stats.PlayoutOffsetMs)

		if p.config.OnStats != nil {
			p.config.OnStats(stats)
		}
	}
}

func (p *Player) playoutLoop(ctx context.Context) error {
	for {
		if err := p.playoutStep(ctx); err != nil {
			return err
		}
	}
}

// playoutStep runs one scheduling pass. It only returns an error once ctx is done.
func (p *Player) playoutStep(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := p.tuning

	stream, gen, resets := p.takeResets()
	p.applyResets(resets)

	offset := p.estimator.Offset()
	snap := p.buffer.Snapshot(offset)
	p.publish(snap)

	if stream == nil || !decode.Supported(stream.format.Codec) {
		return p.clock.Sleep(ctx, t.UnsupportedPoll)
	}

	if !p.sink.IsStarted() || p.decoder == nil {
		started, err := p.startOutput(ctx, stream, snap, offset)
		if !started {
			return err
		}
	}

	chunk, ok, current := p.pollStream(gen, offset, t.LateDrop.Microseconds())
	if !current {
		// A stream boundary arrived during this pass; apply it first
		return nil
	}
	if !ok {
		if p.buffer.IsEmpty() {
			p.starve()
		}
		return p.clock.Sleep(ctx, t.StarvedPoll)
	}

	pcm, ok := p.decodeChunk(chunk)
	if !ok {
		return nil
	}

	earlyUs := localPlayTime(chunk.Timestamp, stream.playAt, offset, p.playoutOffsetUs.Load()) - p.clock.NowMicros()

	// Far behind: skip ahead audibly rather than drift
	if earlyUs < -t.CatchUpLate.Microseconds() {
		p.catchUp(stream, gen, offset, earlyUs)
		return nil
	}

	if earlyUs > t.EarlyThreshold.Microseconds() {
		wait := min(time.Duration(earlyUs/1000)*time.Millisecond, t.MaxEarlySleep)
		if err := p.clock.Sleep(ctx, wait); err != nil {
			return err
		}
		if !p.streamIs(gen) {
			log.Printf("Dropping chunk ts=%d: stream changed while waiting", chunk.Timestamp)
			return nil
		}
	}

	p.play(pcm)
	return nil
}

// startOutput brings up the decoder and sink once enough audio is queued.
// It reports false after sleeping when playback cannot start yet.
func (p *Player) startOutput(ctx context.Context, stream *streamDescriptor, snap jitter.Snapshot, offset int64) (bool, error) {
	t := p.tuning
	minAheadMs := t.RestartMinAhead.Milliseconds()

	// A stale head would keep ahead negative forever and the queue would grow
	if snap.Queued > 0 && snap.AheadMs < minAheadMs {
		dropped := p.buffer.DropWhileLate(p.clock.NowMicros(), offset, t.RestartKeepWithin.Microseconds())
		if dropped > 0 {
			log.Printf("restart-catchup: dropped=%d head was late (ahead~%dms)", dropped, snap.AheadMs)
		}
		snap = p.buffer.Snapshot(offset)
	}

	canStart := snap.Queued >= t.RestartMinQueued &&
		(snap.AheadMs >= t.TargetBuffer.Milliseconds() || snap.AheadMs >= minAheadMs)
	if !canStart {
		return false, p.clock.Sleep(ctx, t.StartPoll)
	}

	if p.decoder == nil {
		dec, err := p.newDecoder(stream.format)
		if err != nil {
			p.notifyError(fmt.Errorf("failed to create decoder: %w", err))
			p.reportPlayerState(protocol.StateError, false)
			return false, p.clock.Sleep(ctx, t.RetryDelay)
		}
		p.decoder = dec
	}

	if !p.sink.IsStarted() {
		out := decode.OutputFormat(stream.format)
		if err := p.sink.Start(out.SampleRate, out.Channels, out.BitDepth); err != nil {
			p.notifyError(fmt.Errorf("failed to start output: %w", err))
			p.reportPlayerState(protocol.StateError, false)
			return false, p.clock.Sleep(ctx, t.RetryDelay)
		}
		p.applyVolume()
		log.Printf("Audio output started sr=%d ch=%d bd=%d codec=%s",
			out.SampleRate, out.Channels, out.BitDepth, stream.format.Codec)
	}

	p.starved = false
	p.reportPlayerState(protocol.StateSynchronized, false)
	return true, nil
}

// catchUp discards chunks until one is within the catch-up target, then plays it
func (p *Player) catchUp(stream *streamDescriptor, gen uint64, offset, earlyUs int64) {
	targetUs := p.tuning.CatchUpTarget.Microseconds()
	dropped := int64(1)

	for {
		next, ok, current := p.pollStream(gen, offset, math.MaxInt64)
		if !ok || !current {
			break
		}
		nextEarly := localPlayTime(next.Timestamp, stream.playAt, offset, p.playoutOffsetUs.Load()) - p.clock.NowMicros()
		if nextEarly >= -targetUs {
			if pcm, ok := p.decodeChunk(next); ok {
				p.play(pcm)
			}
			break
		}
		dropped++
	}

	p.catchUpDrops.Add(dropped)
	log.Printf("catch-up: late=%dms dropped=%d playoutOffset=%dms",
		-earlyUs/1000, dropped, p.PlayoutOffset().Milliseconds())
}

func (p *Player) starve() {
	if !p.starved {
		p.starved = true
		p.starvations.Add(1)
		log.Printf("Buffer underrun")
	}
	p.reportPlayerState(protocol.StateError, false)

	if err := p.sink.FlushSilence(int(p.tuning.StarvedSilence.Milliseconds())); err != nil {
		log.Printf("Failed to write silence: %v", err)
	}
}

func (p *Player) decodeChunk(chunk jitter.Chunk) ([]byte, bool) {
	pcm, err := p.decoder.Decode(chunk.Payload)
	if err == nil && len(pcm) == 0 {
		err = fmt.Errorf("empty PCM data after decode")
	}
	if err != nil {
		p.decodeErrors.Add(1)
		log.Printf("Dropping chunk ts=%d: %v", chunk.Timestamp, err)
		return nil, false
	}
	return pcm, true
}

func (p *Player) play(pcm []byte) {
	if err := writeAll(p.sink, pcm); err != nil {
		p.notifyError(fmt.Errorf("playback error: %w", err))
		return
	}
	p.played.Add(1)
	if p.starved {
		p.starved = false
		p.reportPlayerState(protocol.StateSynchronized, false)
	}
}

// localPlayTime maps a server timestamp to the local clock, holding chunks
// before the play-at floor and shifting by the user playout offset
func localPlayTime(serverTs int64, playAt *int64, offset, playoutOffsetUs int64) int64 {
	if playAt != nil && *playAt > serverTs {
		serverTs = *playAt
	}
	return serverTs - offset + playoutOffsetUs
}

// writeAll loops on short writes
func writeAll(sink output.Sink, pcm []byte) error {
	for len(pcm) > 0 {
		n, err := sink.Write(pcm)
		if err != nil {
			return err
		}
		if n <= 0 {
			return io.ErrShortWrite
		}
		pcm = pcm[n:]
	}
	return nil
}

func (p *Player) takeResets() (*streamDescriptor, uint64, pendingResets) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := p.pending
	p.pending = pendingResets{}
	return p.stream, p.streamGen, r
}

// pollStream polls the buffer only while the stream is still generation gen.
// Boundaries clear the buffer and bump the generation under p.mu, so a chunk
// returned here always belongs to the stream the caller set the sink up for.
func (p *Player) pollStream(gen uint64, offset, lateDropThresholdUs int64) (chunk jitter.Chunk, ok, current bool) {
	now := p.clock.NowMicros()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.streamGen != gen {
		return jitter.Chunk{}, false, false
	}
	chunk, ok = p.buffer.PollPlayable(now, offset, lateDropThresholdUs)
	return chunk, ok, true
}

func (p *Player) streamIs(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streamGen == gen
}

func (p *Player) applyResets(r pendingResets) {
	if r.stopSink && p.sink.IsStarted() {
		if err := p.sink.Stop(); err != nil {
			log.Printf("Failed to stop output: %v", err)
		}
	}

	switch {
	case r.dropDecoder:
		p.decoder = nil
	case r.resetDecoder && p.decoder != nil:
		p.decoder.Reset()
	}

	if r.applyVolume {
		p.applyVolume()
	}
}

// applyVolume pushes the current volume to sinks with their own gain stage
func (p *Player) applyVolume() {
	vs, ok := p.sink.(output.VolumeSink)
	if !ok {
		return
	}

	p.mu.Lock()
	volume, muted := p.state.Volume, p.state.Muted
	p.mu.Unlock()

	vs.SetVolume(volume)
	vs.SetMuted(muted)
}

func (p *Player) publish(snap jitter.Snapshot) {
	p.mu.Lock()
	p.published = snap
	p.mu.Unlock()
}
