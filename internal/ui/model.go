// ABOUTME: Bubbletea model for player TUI
// ABOUTME: Renders session, sync and buffer state and maps keys to player controls
package ui

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Sendspin/sendspin-player/internal/version"
	"github.com/Sendspin/sendspin-player/pkg/sendspin"
	clocksync "github.com/Sendspin/sendspin-player/pkg/sync"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"
)

const (
	volumeStep   = 5
	offsetStep   = 10 * time.Millisecond
	statsRefresh = 500 * time.Millisecond
)

// Controls is the subset of the player the TUI drives
type Controls interface {
	SetVolume(volume int) error
	Mute(muted bool) error
	SetPlayoutOffset(d time.Duration)
	PlayoutOffset() time.Duration
	SendCommand(command string, volume *int, mute *bool) error
	Stats() sendspin.PlayerStats
	Status() sendspin.PlayerState
	TrackPosition() (time.Duration, bool)
}

// Model represents the TUI state
type Model struct {
	controls Controls

	// Connection
	session    sendspin.SessionState
	status     string
	connected  bool
	serverName string
	groupName  string
	playback   string
	commands   []string

	// Sync
	syncOffset  int64
	syncDrift   float64
	syncRTT     int64
	syncQuality clocksync.Quality

	// Stream
	codec      string
	sampleRate int
	channels   int
	bitDepth   int

	// Metadata
	title       string
	artist      string
	album       string
	artworkPath string
	position    time.Duration
	hasPosition bool
	duration    time.Duration // 0 = unknown

	// Playback
	volume        int
	muted         bool
	playoutOffset int64 // ms

	// Stats
	received     int64
	played       int64
	lateDrops    int64
	catchUpDrops int64
	starvations  int64
	queued       int
	aheadMs      int64

	showDebug bool

	// Dimensions
	width  int
	height int
}

// StateMsg carries a player state change
type StateMsg sendspin.PlayerState

// StatsMsg carries a periodic stats snapshot
type StatsMsg sendspin.PlayerStats

// MetadataMsg carries updated track metadata
type MetadataMsg sendspin.Metadata

// ArtworkMsg carries the local path of the current artwork, empty when none
type ArtworkMsg string

type tickMsg time.Time

// NewModel creates a new TUI model. controls may be nil.
func NewModel(controls Controls) Model {
	m := Model{
		controls: controls,
		volume:   100,
		session:  sendspin.StateIdle,
	}
	if controls != nil {
		m.playoutOffset = controls.PlayoutOffset().Milliseconds()
	}
	return m
}

// Init starts the periodic refresh from the player
func (m Model) Init() tea.Cmd {
	if m.controls == nil {
		return nil
	}
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(statsRefresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StateMsg:
		m.applyState(sendspin.PlayerState(msg))
	case StatsMsg:
		m.applyStats(sendspin.PlayerStats(msg))
	case tickMsg:
		if m.controls != nil {
			m.applyState(m.controls.Status())
			m.applyStats(m.controls.Stats())
			m.position, m.hasPosition = m.controls.TrackPosition()
			return m, tick()
		}
	case MetadataMsg:
		m.title = msg.Title
		m.artist = msg.Artist
		m.album = msg.Album
		m.duration = time.Duration(msg.DurationMs) * time.Millisecond
		if msg.HasProgress {
			// Until the next tick extrapolates it
			m.position = time.Duration(msg.ProgressMs) * time.Millisecond
			m.hasPosition = true
		}
	case ArtworkMsg:
		m.artworkPath = string(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderStreamInfo()
	s += m.renderControls()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders connection and sync status
func (m Model) renderHeader() string {
	connStatus := m.session.String()
	if m.connected && m.serverName != "" {
		connStatus = fmt.Sprintf("%s to %s", m.session, m.serverName)
	}
	if m.groupName != "" {
		connStatus += fmt.Sprintf(" [%s]", m.groupName)
	}

	syncIcon := "✗"
	syncText := "Lost"
	switch m.syncQuality {
	case clocksync.QualityGood:
		syncIcon = "✓"
		syncText = fmt.Sprintf("Synced (offset: %+.1fms, rtt: %.1fms)",
			float64(m.syncOffset)/1000.0, float64(m.syncRTT)/1000.0)
	case clocksync.QualityDegraded:
		syncIcon = "⚠"
		syncText = fmt.Sprintf("Degraded (rtt: %.1fms)", float64(m.syncRTT)/1000.0)
	}

	title := fmt.Sprintf("─ %s ", version.Product)
	return fmt.Sprintf(`┌%s%s┐
│ Status: %-44s │
│ Sync:   %s %-42s │
├──────────────────────────────────────────────────────┤
`, title, strings.Repeat("─", 54-len([]rune(title))),
		truncate(connStatus, 44), syncIcon, truncate(syncText, 42))
}

// renderStreamInfo renders current stream and metadata
func (m Model) renderStreamInfo() string {
	if !m.connected || m.codec == "" {
		return "│ No stream                                            │\n"
	}

	s := "│ Now Playing:                                         │\n"
	if m.title != "" {
		s += fmt.Sprintf("│   Track:  %-42s │\n", truncate(m.title, 42))
		s += fmt.Sprintf("│   Artist: %-42s │\n", truncate(m.artist, 42))
		s += fmt.Sprintf("│   Album:  %-42s │\n", truncate(m.album, 42))
		if m.hasPosition {
			s += fmt.Sprintf("│   Time:   %-42s │\n", m.renderPosition())
		}
		if m.artworkPath != "" {
			s += fmt.Sprintf("│   Art:    %-42s │\n", truncate(m.artworkPath, 42))
		}
	} else {
		s += "│   (No metadata)                                      │\n"
	}

	s += "│                                                      │\n"
	format := fmt.Sprintf("%s %dHz %s %d-bit", m.codec, m.sampleRate, channelName(m.channels), m.bitDepth)
	s += fmt.Sprintf("│ Format: %-44s │\n", truncate(format, 44))

	return s
}

// renderControls renders volume, playout offset and buffer status
func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " (muted)"
	}

	volume := fmt.Sprintf("[%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, muteIcon)
	buffer := fmt.Sprintf("%dms ahead (%d chunks)", m.aheadMs, m.queued)
	offset := fmt.Sprintf("%+dms", m.playoutOffset)

	return fmt.Sprintf("│                                                      │\n"+
		"│ Volume: %-44s │\n"+
		"│ Offset: %-44s │\n"+
		"│ Buffer: %-44s │\n",
		volume, offset, buffer)
}

// renderStats renders playback statistics
func (m Model) renderStats() string {
	line := fmt.Sprintf("RX: %d  Played: %d  Late: %d  Skip: %d  Underruns: %d",
		m.received, m.played, m.lateDrops, m.catchUpDrops, m.starvations)
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ %-52s │
│                                                      │
`, truncate(line, 52))
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ ↑/↓:Volume m:Mute [/]:Offset 0:Reset space:Play q:Quit│
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Status: %-42s │
│   Clock Offset: %-+36d │
│   Drift: %-43s │
│   Playback: %-41s │
`, truncate(m.status, 42), m.syncOffset, fmt.Sprintf("%.3fppm", m.syncDrift), truncate(m.playback, 41))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up":
		m.setVolume(m.volume + volumeStep)
	case "down":
		m.setVolume(m.volume - volumeStep)
	case "m":
		m.muted = !m.muted
		if m.controls != nil {
			if err := m.controls.Mute(m.muted); err != nil {
				log.Printf("Mute failed: %v", err)
			}
		}
	case "[":
		m.shiftOffset(-offsetStep)
	case "]":
		m.shiftOffset(offsetStep)
	case "0":
		m.shiftOffset(-time.Duration(m.playoutOffset) * time.Millisecond)
	case " ":
		m.togglePlayback()
	case "n":
		m.command("next")
	case "p":
		m.command("previous")
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m *Model) setVolume(volume int) {
	m.volume = lo.Clamp(volume, 0, 100)
	if m.controls == nil {
		return
	}
	if err := m.controls.SetVolume(m.volume); err != nil {
		log.Printf("Volume change failed: %v", err)
	}
}

// shiftOffset moves the playout offset and reads back the clamped value
func (m *Model) shiftOffset(delta time.Duration) {
	if m.controls == nil {
		return
	}
	current := m.controls.PlayoutOffset()
	m.controls.SetPlayoutOffset(current + delta)
	m.playoutOffset = m.controls.PlayoutOffset().Milliseconds()
}

// togglePlayback sends pause while playing and play otherwise
func (m *Model) togglePlayback() {
	if m.playback == "playing" {
		m.command("pause")
		return
	}
	m.command("play")
}

func (m *Model) command(name string) {
	if m.controls == nil {
		return
	}
	if len(m.commands) > 0 && !lo.Contains(m.commands, name) {
		log.Printf("Server does not support %s", name)
		return
	}
	if err := m.controls.SendCommand(name, nil, nil); err != nil {
		log.Printf("Command %s failed: %v", name, err)
	}
}

// applyState updates the model from a player state change
func (m *Model) applyState(st sendspin.PlayerState) {
	m.session = st.Session
	m.status = st.Status
	m.connected = st.Connected
	m.serverName = st.ServerName
	m.groupName = st.GroupName
	m.playback = st.PlaybackState
	m.commands = st.SupportedCommands

	m.codec = st.Codec
	m.sampleRate = st.SampleRate
	m.channels = st.Channels
	m.bitDepth = st.BitDepth

	m.volume = st.Volume
	m.muted = st.Muted
	m.playoutOffset = st.PlayoutOffsetMs
}

// applyStats updates the model from a stats snapshot
func (m *Model) applyStats(s sendspin.PlayerStats) {
	m.syncOffset = s.OffsetUs
	m.syncDrift = s.DriftPPM
	m.syncRTT = s.RTTUs
	m.syncQuality = s.SyncQuality

	m.queued = s.Queued
	m.aheadMs = s.AheadMs
	m.received = s.Received
	m.played = s.Played
	m.lateDrops = s.LateDrops
	m.catchUpDrops = s.CatchUpDrops
	m.starvations = s.Starvations
	m.playoutOffset = s.PlayoutOffsetMs
}

// renderPosition renders "m:ss / m:ss", or just the position when the duration is unknown
func (m Model) renderPosition() string {
	if m.duration <= 0 {
		return formatClock(m.position)
	}
	return fmt.Sprintf("%s / %s", formatClock(m.position), formatClock(m.duration))
}

// Utility functions
func formatClock(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func renderBar(value, max, width int) string {
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	if channels == 1 {
		return "Mono"
	}
	return "Stereo"
}
