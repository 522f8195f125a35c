// ABOUTME: Tests for clock offset estimation
// ABOUTME: Tests midpoint alignment, window smoothing, outlier rejection, and drift
package sync

import (
	"math"
	"testing"
	"time"
)

func TestSingleRoundTrip(t *testing.T) {
	e := NewEstimator()

	// rtt=1000, serverProc=200, clientMid=500, serverMid=500
	if !e.OnRoundTrip(0, 1000, 400, 600) {
		t.Fatal("expected sample to be accepted")
	}

	if got := e.Offset(); got != 0 {
		t.Errorf("expected offset 0, got %d", got)
	}
	if got := e.RTT(); got != 1000 {
		t.Errorf("expected rtt 1000, got %d", got)
	}
	if got := e.DriftPPM(); got != 0 {
		t.Errorf("expected drift 0, got %f", got)
	}
}

func TestNegativeIntervalsClampToZero(t *testing.T) {
	e := NewEstimator()

	// clientReceived before clientSent and serverSent before serverReceived
	e.OnRoundTrip(1000, 900, 5000, 4000)

	state := e.State()
	if state.RTT != 0 {
		t.Errorf("expected rtt clamped to 0, got %d", state.RTT)
	}
	// clientMid=1000, serverMid=5000
	if state.Offset != 4000 {
		t.Errorf("expected offset 4000, got %d", state.Offset)
	}
}

func TestOffsetIsWindowMean(t *testing.T) {
	e := NewEstimator()

	offsets := []int64{1000, 2000, 3000, 6000}
	for i, off := range offsets {
		sent := int64(i) * 1_000_000
		e.OnRoundTrip(sent, sent+100, sent+50+off, sent+50+off)
	}

	// (1000+2000+3000+6000)/4
	if got := e.Offset(); got != 3000 {
		t.Errorf("expected mean offset 3000, got %d", got)
	}
}

func TestWindowEvictsOldest(t *testing.T) {
	e := NewEstimator()

	// 40 samples at offset 0, then one at 41000
	for i := 0; i < WindowSize; i++ {
		sent := int64(i) * 250_000
		e.OnRoundTrip(sent, sent+2000, sent+1000, sent+1000)
	}
	if got := e.State().Samples; got != WindowSize {
		t.Fatalf("expected %d samples, got %d", WindowSize, got)
	}

	sent := int64(WindowSize) * 250_000
	e.OnRoundTrip(sent, sent+2000, sent+1000+41000, sent+1000+41000)

	state := e.State()
	if state.Samples != WindowSize {
		t.Errorf("expected window capped at %d, got %d", WindowSize, state.Samples)
	}
	// 39 zeros and one 41000 -> 1025
	if state.Offset != 1025 {
		t.Errorf("expected offset 1025, got %d", state.Offset)
	}
}

func TestOutlierRejected(t *testing.T) {
	e := NewEstimator()

	e.OnRoundTrip(0, 1000, 10500, 10500)
	before := e.State()

	// jump of 300ms
	if e.OnRoundTrip(1_000_000, 1_001_000, 1_310_500, 1_310_500) {
		t.Fatal("expected outlier to be rejected")
	}

	after := e.State()
	if after != before {
		t.Errorf("expected state unchanged, before=%+v after=%+v", before, after)
	}
}

func TestJumpAtLimitAccepted(t *testing.T) {
	e := NewEstimator()

	e.OnRoundTrip(0, 0, 0, 0)
	if !e.OnRoundTrip(1000, 1000, 1000+MaxOffsetJumpUs, 1000+MaxOffsetJumpUs) {
		t.Error("expected jump of exactly the limit to be accepted")
	}
}

func TestDriftRequiresTenSamples(t *testing.T) {
	e := NewEstimator()

	// offset grows 100µs per second: 100ppm
	for i := 0; i < MinDriftSamples-1; i++ {
		sent := int64(i) * 1_000_000
		off := int64(i) * 100
		e.OnRoundTrip(sent, sent, sent+off, sent+off)
		if got := e.DriftPPM(); got != 0 {
			t.Fatalf("expected drift 0 with %d samples, got %f", i+1, got)
		}
	}

	sent := int64(MinDriftSamples-1) * 1_000_000
	off := int64(MinDriftSamples-1) * 100
	e.OnRoundTrip(sent, sent, sent+off, sent+off)

	if got := e.DriftPPM(); math.Abs(got-100) > 1e-6 {
		t.Errorf("expected drift 100ppm, got %f", got)
	}
}

func TestDriftZeroWhenMidpointsEqual(t *testing.T) {
	e := NewEstimator()

	for i := 0; i < MinDriftSamples+2; i++ {
		off := int64(i) * 10
		e.OnRoundTrip(5000, 5000, 5000+off, 5000+off)
	}

	if got := e.DriftPPM(); got != 0 {
		t.Errorf("expected drift 0 for zero x-variance, got %f", got)
	}
}

func TestQuality(t *testing.T) {
	e := NewEstimator()
	now := time.Now()
	e.now = func() time.Time { return now }

	if q := e.Quality(); q != QualityLost {
		t.Errorf("expected QualityLost before any sample, got %v", q)
	}

	e.OnRoundTrip(0, 20000, 10000, 10000)
	if q := e.Quality(); q != QualityGood {
		t.Errorf("expected QualityGood for 20ms rtt, got %v", q)
	}

	e.OnRoundTrip(1_000_000, 1_080_000, 1_040_000, 1_040_000)
	if q := e.Quality(); q != QualityDegraded {
		t.Errorf("expected QualityDegraded for 80ms rtt, got %v", q)
	}

	now = now.Add(6 * time.Second)
	if q := e.Quality(); q != QualityLost {
		t.Errorf("expected QualityLost after 6s without samples, got %v", q)
	}
}

func TestReset(t *testing.T) {
	e := NewEstimator()
	e.OnRoundTrip(0, 1000, 5000, 5000)
	e.Reset()

	state := e.State()
	if state.Offset != 0 || state.RTT != 0 || state.Samples != 0 || state.DriftPPM != 0 {
		t.Errorf("expected zero state after reset, got %+v", state)
	}

	// a large offset is accepted after reset since there is no previous sample
	if !e.OnRoundTrip(0, 0, 10_000_000, 10_000_000) {
		t.Error("expected first sample after reset to be accepted")
	}
}

func TestConcurrentAccess(t *testing.T) {
	e := NewEstimator()

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				e.State()
				e.Quality()
				sent := int64(j * 1000)
				e.OnRoundTrip(sent, sent+500, sent+300, sent+350)
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	if n := e.State().Samples; n != WindowSize {
		t.Errorf("expected full window after concurrent access, got %d", n)
	}
}
