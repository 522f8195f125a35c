// ABOUTME: Sendspin wire protocol package
// ABOUTME: Defines protocol messages, binary frames and the WebSocket transport
// Package protocol implements the Sendspin wire protocol for the player role.
//
// Incoming text frames decode into a closed set of ServerMessage kinds;
// binary frames carry audio chunks stamped with server time.
//
// Example:
//
//	client := protocol.NewClient(protocol.Config{URL: protocol.ServerURL("localhost:8927")})
//	err := client.Open(ctx, handler)
//	msg, err := protocol.DecodeServerMessage(data)
package protocol
