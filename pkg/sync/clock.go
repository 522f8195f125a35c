// ABOUTME: Clock offset and drift estimation from round-trip time probes
// ABOUTME: Keeps a sliding window of midpoint-aligned offsets and fits drift by least squares
package sync

import (
	"log"
	"sync"
	"time"
)

const (
	// WindowSize is the number of accepted samples kept for smoothing
	WindowSize = 40

	// MinDriftSamples is the window size required before drift is estimated
	MinDriftSamples = 10

	// MaxOffsetJumpUs rejects samples whose offset moved further than this
	// from the previously accepted one (250ms)
	MaxOffsetJumpUs = 250_000
)

// Quality represents sync quality
type Quality int

const (
	QualityGood Quality = iota
	QualityDegraded
	QualityLost
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityDegraded:
		return "degraded"
	default:
		return "lost"
	}
}

// Sample is one accepted probe: the client-side midpoint and the offset measured there
type Sample struct {
	LocalMidpoint int64
	Offset        int64
}

// State is a self-consistent view of the estimator
type State struct {
	Offset   int64   // µs, server ≈ local + offset
	DriftPPM float64 // parts per million
	RTT      int64   // µs, latest accepted round trip
	Samples  int
}

// Estimator converts round-trip probes into a smoothed local→server offset.
// Safe for concurrent use; readers always see the tuple produced by one sample.
type Estimator struct {
	mu       sync.RWMutex
	samples  []Sample
	offset   int64
	driftPPM float64
	rtt      int64
	lastSync time.Time
	now      func() time.Time
}

// NewEstimator creates an empty estimator
func NewEstimator() *Estimator {
	return &Estimator{
		samples: make([]Sample, 0, WindowSize+1),
		now:     time.Now,
	}
}

// OnRoundTrip feeds one probe. All values are µs; client times are on the local
// clock, server times on the server clock. Returns false if the sample was rejected.
func (e *Estimator) OnRoundTrip(clientSent, clientReceived, serverReceived, serverSent int64) bool {
	rtt := max(0, clientReceived-clientSent)
	serverProc := max(0, serverSent-serverReceived)

	clientMid := clientSent + rtt/2
	serverMid := serverReceived + serverProc/2
	candidate := serverMid - clientMid

	e.mu.Lock()
	defer e.mu.Unlock()

	if n := len(e.samples); n > 0 {
		last := e.samples[n-1].Offset
		if jump := candidate - last; jump > MaxOffsetJumpUs || jump < -MaxOffsetJumpUs {
			log.Printf("Discarding sync sample: offset jump %dμs (rtt=%dμs)", jump, rtt)
			return false
		}
	}

	e.samples = append(e.samples, Sample{LocalMidpoint: clientMid, Offset: candidate})
	if len(e.samples) > WindowSize {
		e.samples = append(e.samples[:0], e.samples[len(e.samples)-WindowSize:]...)
	}

	e.rtt = rtt
	e.offset = meanOffset(e.samples)
	if len(e.samples) >= MinDriftSamples {
		e.driftPPM = slope(e.samples) * 1e6
	}
	e.lastSync = e.now()

	if len(e.samples) <= 3 {
		log.Printf("Sync #%d: offset=%dμs, rtt=%dμs, serverProc=%dμs",
			len(e.samples), e.offset, rtt, serverProc)
	}

	return true
}

// meanOffset is the unweighted mean of the window, truncated toward zero
func meanOffset(samples []Sample) int64 {
	var sum int64
	for _, s := range samples {
		sum += s.Offset
	}
	return sum / int64(len(samples))
}

// slope fits offset = a + b*midpoint by ordinary least squares and returns b.
// Midpoints are taken relative to the first sample to keep float64 precision.
func slope(samples []Sample) float64 {
	n := float64(len(samples))
	base := samples[0].LocalMidpoint
	baseOff := samples[0].Offset

	var xMean, yMean float64
	for _, s := range samples {
		xMean += float64(s.LocalMidpoint - base)
		yMean += float64(s.Offset - baseOff)
	}
	xMean /= n
	yMean /= n

	var num, den float64
	for _, s := range samples {
		dx := float64(s.LocalMidpoint-base) - xMean
		num += dx * (float64(s.Offset-baseOff) - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// Offset returns the smoothed offset in µs (0 before any sample)
func (e *Estimator) Offset() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.offset
}

// DriftPPM returns the estimated drift in parts per million
func (e *Estimator) DriftPPM() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.driftPPM
}

// RTT returns the latest accepted round-trip time in µs
func (e *Estimator) RTT() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rtt
}

// State returns offset, drift and rtt from the same update
func (e *Estimator) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return State{
		Offset:   e.offset,
		DriftPPM: e.driftPPM,
		RTT:      e.rtt,
		Samples:  len(e.samples),
	}
}

// Quality grades the sync from the latest rtt and how long ago a sample was accepted
func (e *Estimator) Quality() Quality {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.samples) == 0 || e.now().Sub(e.lastSync) > 5*time.Second {
		return QualityLost
	}
	if e.rtt < 50000 {
		return QualityGood
	}
	return QualityDegraded
}

// Reset forgets every sample. Used on a full reconnect.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.samples = e.samples[:0]
	e.offset = 0
	e.driftPPM = 0
	e.rtt = 0
	e.lastSync = time.Time{}
}
