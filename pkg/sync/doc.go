// ABOUTME: Clock synchronization package
// ABOUTME: Estimates the offset and drift between the local clock and a Sendspin server
// Package sync provides clock synchronization for precise audio timing.
//
// Round-trip probes are aligned at their midpoints; the offset is the mean of a
// sliding window of accepted samples and drift is a least-squares slope over it.
//
// Example:
//
//	est := sync.NewEstimator()
//	est.OnRoundTrip(clientSent, clientReceived, serverReceived, serverSent)
//	serverNow := localNow + est.Offset()
package sync
