// Package jitter buffers timestamped audio chunks between the network and the
// playout loop.
//
// Chunks are kept in server-timestamp order regardless of arrival order. Chunks
// whose play time has passed beyond a caller-given tolerance are evicted and
// counted; the counter survives Clear and only resets with a new Buffer.
package jitter
