// ABOUTME: High-level Sendspin player API
// ABOUTME: Synchronized playback of a Sendspin group stream
// Package sendspin plays a Sendspin server's stream in sync with the rest of the group.
//
// A Player composes the clock estimator (pkg/sync), the jitter buffer
// (pkg/jitter), a transport (pkg/protocol), a decoder and a sink. Once the
// handshake completes it runs three loops per session: time sync probes,
// periodic stats, and the playout scheduler that decides when each chunk is
// written, skipped or waited for.
//
// Example:
//
//	player, err := sendspin.NewPlayer(sendspin.PlayerConfig{
//	    ServerAddr: "localhost:8927",
//	    PlayerName: "Living Room",
//	    Volume:     80,
//	})
//	err = player.Connect(ctx)
//	player.SetPlayoutOffset(-50 * time.Millisecond)
//	defer player.Close("shutdown")
package sendspin
