// ABOUTME: Observable player state, track metadata and playout statistics
// ABOUTME: Snapshots are copied out under the player lock and handed to callbacks
package sendspin

import (
	"time"

	"github.com/Sendspin/sendspin-player/pkg/protocol"
	"github.com/Sendspin/sendspin-player/pkg/sync"
)

// SessionState is the connection lifecycle state
type SessionState int

const (
	StateIdle SessionState = iota
	StateConnecting
	StateHandshaking
	StateSynchronized
	StateError
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateSynchronized:
		return "synchronized"
	case StateError:
		return "error"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// PlayerState describes the current state
type PlayerState struct {
	Session SessionState
	Status  string // last lifecycle event, e.g. "stream/start" or "closed: bye"

	Connected   bool
	ServerName  string
	ActiveRoles []string

	// Current stream, empty when none
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int

	// Group
	GroupID       string
	GroupName     string
	PlaybackState string // "playing", "paused", "stopped"

	// Controller
	SupportedCommands []string
	GroupVolume       int
	GroupMuted        bool

	// Local player
	Volume          int
	Muted           bool
	PlayoutOffsetMs int64
}

// StreamDesc renders the stream as "codec rateHz Nch Nbit"
func (s PlayerState) StreamDesc() string {
	if s.Codec == "" {
		return ""
	}
	return streamDesc(s.Codec, s.SampleRate, s.Channels, s.BitDepth)
}

// Metadata contains track information
type Metadata struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	ArtworkURL  string
	Track       int
	Year        int

	// Progress as sampled by the server at Timestamp (server µs)
	HasProgress   bool
	Timestamp     int64
	ProgressMs    int64
	DurationMs    int64 // 0 = unknown
	PlaybackSpeed int   // speed * 1000
	Repeat        string
	Shuffle       bool
}

// PositionAt extrapolates the track position to serverNowUs from the last
// progress report. A stopped track (speed 0) stays where it was reported, and
// the result is clamped to the track when its duration is known.
func (m Metadata) PositionAt(serverNowUs int64) (time.Duration, bool) {
	if !m.HasProgress {
		return 0, false
	}
	pos := m.ProgressMs
	if m.PlaybackSpeed != 0 {
		elapsedMs := (serverNowUs - m.Timestamp) / 1000
		pos += int64(float64(elapsedMs) * float64(m.PlaybackSpeed) / 1000)
	}

	pos = max(pos, 0)
	if m.DurationMs > 0 {
		pos = min(pos, m.DurationMs)
	}
	return time.Duration(pos) * time.Millisecond, true
}

// PlayerStats contains playback statistics
type PlayerStats struct {
	Queued       int
	AheadMs      int64
	LateDrops    int64 // evicted by the buffer
	CatchUpDrops int64 // skipped by skip-ahead
	Starvations  int64
	DecodeErrors int64
	Received     int64
	Played       int64

	OffsetUs    int64
	DriftPPM    float64
	RTTUs       int64
	SyncQuality sync.Quality

	PlayoutOffsetMs int64
}

// mergeMetadata applies the fields present in an update
func mergeMetadata(m Metadata, u *protocol.MetadataState) Metadata {
	if u.Title != nil {
		m.Title = *u.Title
	}
	if u.Artist != nil {
		m.Artist = *u.Artist
	}
	if u.Album != nil {
		m.Album = *u.Album
	}
	if u.AlbumArtist != nil {
		m.AlbumArtist = *u.AlbumArtist
	}
	if u.ArtworkURL != nil {
		m.ArtworkURL = *u.ArtworkURL
	}
	if u.Track != nil {
		m.Track = *u.Track
	}
	if u.Year != nil {
		m.Year = *u.Year
	}
	if u.Progress != nil {
		m.HasProgress = true
		m.Timestamp = u.Timestamp
		m.ProgressMs = u.Progress.TrackProgress
		m.DurationMs = u.Progress.TrackDuration
		m.PlaybackSpeed = u.Progress.PlaybackSpeed
	}
	if u.Repeat != nil {
		m.Repeat = *u.Repeat
	}
	if u.Shuffle != nil {
		m.Shuffle = *u.Shuffle
	}
	return m
}
