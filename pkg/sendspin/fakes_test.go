// ABOUTME: Test doubles for the player's clock, sink, decoder and transport
// ABOUTME: Lets playout and session tests run deterministically without audio hardware or sockets
package sendspin

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sendspin/sendspin-player/pkg/audio"
	"github.com/Sendspin/sendspin-player/pkg/audio/decode"
	"github.com/Sendspin/sendspin-player/pkg/protocol"
)

// fakeClock advances virtual time on Sleep unless frozen. Session tests freeze
// it so concurrent loops cannot age queued chunks, and pace loops with realDelay.
type fakeClock struct {
	mu        sync.Mutex
	now       int64
	sleeps    []time.Duration
	frozen    bool
	realDelay time.Duration
	hook      func() // runs once on the next NowMicros, outside the clock lock
}

func newFakeClock(now int64) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) NowMicros() int64 {
	c.mu.Lock()
	now := c.now
	hook := c.hook
	c.hook = nil
	c.mu.Unlock()

	if hook != nil {
		hook()
	}
	return now
}

func (c *fakeClock) onNextNow(hook func()) {
	c.mu.Lock()
	c.hook = hook
	c.mu.Unlock()
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	if !c.frozen {
		c.now += d.Microseconds()
	}
	c.sleeps = append(c.sleeps, d)
	delay := c.realDelay
	c.mu.Unlock()

	if delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type sinkWrite struct {
	at  int64
	pcm []byte
}

type fakeSink struct {
	mu        sync.Mutex
	clock     *fakeClock
	started   bool
	starts    int
	stops     int
	writes    []sinkWrite
	silenceMs []int
	volume    int
	muted     bool
	startErr  error
	maxWrite  int // 0 = accept everything
}

func newFakeSink(clock *fakeClock) *fakeSink {
	return &fakeSink{clock: clock, volume: 100}
}

func (s *fakeSink) Start(sampleRate, channels, bitDepth int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	s.starts++
	return nil
}

func (s *fakeSink) Write(pcm []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(pcm)
	if s.maxWrite > 0 && n > s.maxWrite {
		n = s.maxWrite
	}
	s.writes = append(s.writes, sinkWrite{at: s.clock.NowMicros(), pcm: append([]byte(nil), pcm[:n]...)})
	return n, nil
}

func (s *fakeSink) FlushSilence(ms int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silenceMs = append(s.silenceMs, ms)
	return nil
}

func (s *fakeSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.stops++
	}
	s.started = false
	return nil
}

func (s *fakeSink) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *fakeSink) SetVolume(volume int) {
	s.mu.Lock()
	s.volume = volume
	s.mu.Unlock()
}

func (s *fakeSink) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

func (s *fakeSink) Writes() []sinkWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkWrite(nil), s.writes...)
}

// fakeDecoder fails on payloads starting with 0xFF and counts resets
type fakeDecoder struct {
	resets int
}

func (d *fakeDecoder) Decode(data []byte) ([]byte, error) {
	if len(data) > 0 && data[0] == 0xFF {
		return nil, errors.New("corrupt packet")
	}
	return data, nil
}

func (d *fakeDecoder) Reset() { d.resets++ }

type fakeTransport struct {
	mu      sync.Mutex
	handler protocol.Handler
	sent    [][]byte
	opens   int
	closes  int
	openErr error
}

func (f *fakeTransport) Open(ctx context.Context, h protocol.Handler) error {
	f.mu.Lock()
	f.opens++
	err := f.openErr
	if err == nil {
		f.handler = h
	}
	f.mu.Unlock()

	if err != nil {
		h.OnFailure(err)
		return err
	}
	h.OnOpen()
	return nil
}

func (f *fakeTransport) SendText(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) Close(reason string) error {
	f.mu.Lock()
	h := f.handler
	f.handler = nil
	f.closes++
	f.mu.Unlock()

	if h != nil {
		h.OnClosed(1000, reason)
	}
	return nil
}

func (f *fakeTransport) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func (f *fakeTransport) currentHandler() protocol.Handler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler
}

func (f *fakeTransport) deliver(t *testing.T, msgType string, payload interface{}) {
	t.Helper()
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		t.Fatalf("encode %s: %v", msgType, err)
	}
	f.currentHandler().OnText(data)
}

type sentMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (f *fakeTransport) messages(msgType string) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []sentMessage
	for _, data := range f.sent {
		var m sentMessage
		if err := json.Unmarshal(data, &m); err == nil && m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// waitFor polls cond until it holds or the test times out
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var pcmFormat = audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16}

// newStepPlayer builds a player whose playout loop is driven by hand
func newStepPlayer(t *testing.T, tuning Tuning) (*Player, *fakeClock, *fakeSink) {
	t.Helper()
	clock := newFakeClock(1_000_000)
	sink := newFakeSink(clock)

	p, err := NewPlayer(PlayerConfig{
		ServerAddr: "localhost:8927",
		Transport:  &fakeTransport{},
		Sink:       sink,
		Clock:      clock,
		Tuning:     tuning,
		NewDecoder: decode.New,
	})
	if err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}
	p.stream = &streamDescriptor{format: pcmFormat}
	return p, clock, sink
}

// frame is one 16-bit stereo frame filled with b, so writes are identifiable
func frame(b byte) []byte {
	return []byte{b, b, b, b}
}
