// ABOUTME: Sendspin Protocol message type definitions
// ABOUTME: Defines structs for the player@v1 messages a client sends and receives
package protocol

// Message type names on the wire
const (
	TypeClientHello   = "client/hello"
	TypeClientTime    = "client/time"
	TypeClientState   = "client/state"
	TypeClientCommand = "client/command"
	TypeClientGoodbye = "client/goodbye"

	TypeServerHello   = "server/hello"
	TypeServerTime    = "server/time"
	TypeServerState   = "server/state"
	TypeServerCommand = "server/command"
	TypeStreamStart   = "stream/start"
	TypeStreamClear   = "stream/clear"
	TypeStreamEnd     = "stream/end"
	TypeGroupUpdate   = "group/update"
)

// Player state values reported in client/state
const (
	StateSynchronized = "synchronized"
	StateError        = "error"
)

// Message is the top-level wrapper for outgoing protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID        string           `json:"client_id"`
	Name            string           `json:"name"`
	Version         int              `json:"version"`
	SupportedRoles  []string         `json:"supported_roles"`
	DeviceInfo      *DeviceInfo      `json:"device_info,omitempty"`
	PlayerV1Support *PlayerV1Support `json:"player@v1_support,omitempty"`
	// Older servers read the unversioned key
	PlayerSupport *PlayerV1Support `json:"player_support,omitempty"`
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// PlayerV1Support describes player@v1 capabilities
type PlayerV1Support struct {
	SupportedFormats  []AudioFormat `json:"supported_formats"`
	BufferCapacity    int           `json:"buffer_capacity"`
	SupportedCommands []string      `json:"supported_commands"`
}

// AudioFormat describes a supported audio format
type AudioFormat struct {
	Codec      string `json:"codec"`
	Channels   int    `json:"channels"`
	SampleRate int    `json:"sample_rate"`
	BitDepth   int    `json:"bit_depth"`
}

// ClientTime is sent for clock synchronization
type ClientTime struct {
	ClientTransmitted int64 `json:"client_transmitted"`
}

// ClientStateMessage is sent as client/state with role-specific objects
type ClientStateMessage struct {
	Player *PlayerState `json:"player,omitempty"`
}

// PlayerState reports the player's current state
type PlayerState struct {
	State  string `json:"state"` // "synchronized" or "error"
	Volume int    `json:"volume"`
	Muted  bool   `json:"muted"`
}

// ClientCommandMessage is sent as client/command with role-specific objects
type ClientCommandMessage struct {
	Controller *ControllerCommand `json:"controller,omitempty"`
}

// ControllerCommand asks the server to act on the whole group
type ControllerCommand struct {
	Command string `json:"command"` // play, pause, stop, next, previous, volume, mute
	Volume  *int   `json:"volume,omitempty"`
	Mute    *bool  `json:"mute,omitempty"`
}

// ClientGoodbye is sent before graceful disconnect
type ClientGoodbye struct {
	Reason string `json:"reason"` // "another_server", "shutdown", "restart", "user_request"
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID         string   `json:"server_id"`
	Name             string   `json:"name"`
	Version          int      `json:"version"`
	ActiveRoles      []string `json:"active_roles"`
	ConnectionReason string   `json:"connection_reason"`
}

// ServerTime is the response to client/time
type ServerTime struct {
	ClientTransmitted int64 `json:"client_transmitted"`
	ServerReceived    int64 `json:"server_received"`
	ServerTransmitted int64 `json:"server_transmitted"`
}

// StreamStart notifies the client of a new stream format
type StreamStart struct {
	Player *StreamStartPlayer `json:"player,omitempty"`
}

// StreamStartPlayer contains the audio format details
type StreamStartPlayer struct {
	Codec       string `json:"codec"`
	SampleRate  int    `json:"sample_rate"`
	Channels    int    `json:"channels"`
	BitDepth    int    `json:"bit_depth"`
	CodecHeader string `json:"codec_header,omitempty"` // base64
	PlayAt      *int64 `json:"play_at,omitempty"`      // server µs; no chunk plays before it
}

// StreamClear instructs clients to clear buffers (for seek)
type StreamClear struct {
	Roles []string `json:"roles,omitempty"`
}

// StreamEnd ends streams for specified roles
type StreamEnd struct {
	Roles []string `json:"roles,omitempty"`
}

// GroupUpdate is sent as group/update
type GroupUpdate struct {
	PlaybackState *string `json:"playback_state,omitempty"` // "playing", "paused", "stopped"
	GroupID       *string `json:"group_id,omitempty"`
	GroupName     *string `json:"group_name,omitempty"`
}

// ServerState is sent as server/state with role-specific objects
type ServerState struct {
	Metadata   *MetadataState   `json:"metadata,omitempty"`
	Controller *ControllerState `json:"controller,omitempty"`
}

// MetadataState contains track metadata
type MetadataState struct {
	Timestamp   int64          `json:"timestamp"`
	Title       *string        `json:"title,omitempty"`
	Artist      *string        `json:"artist,omitempty"`
	AlbumArtist *string        `json:"album_artist,omitempty"`
	Album       *string        `json:"album,omitempty"`
	ArtworkURL  *string        `json:"artwork_url,omitempty"`
	Year        *int           `json:"year,omitempty"`
	Track       *int           `json:"track,omitempty"`
	Progress    *ProgressState `json:"progress,omitempty"`
	Repeat      *string        `json:"repeat,omitempty"` // "off", "one", "all"
	Shuffle     *bool          `json:"shuffle,omitempty"`
}

// ProgressState contains playback progress info
type ProgressState struct {
	TrackProgress int64 `json:"track_progress"` // ms
	TrackDuration int64 `json:"track_duration"` // ms, 0 = unknown
	PlaybackSpeed int   `json:"playback_speed"` // speed * 1000
}

// ControllerState contains group controller state
type ControllerState struct {
	SupportedCommands []string `json:"supported_commands"`
	Volume            int      `json:"volume"`
	Muted             bool     `json:"muted"`
}

// ServerCommand is sent as server/command with role-specific objects
type ServerCommand struct {
	Player *PlayerCommand `json:"player,omitempty"`
}

// PlayerCommand is a control command for the local player
type PlayerCommand struct {
	Command string `json:"command"` // "volume" or "mute"
	Volume  *int   `json:"volume,omitempty"`
	Mute    *bool  `json:"mute,omitempty"`
}
