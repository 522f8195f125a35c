// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and forwards player callbacks into it
package ui

import (
	"github.com/Sendspin/sendspin-player/pkg/sendspin"
	tea "github.com/charmbracelet/bubbletea"
)

// TUI owns the bubbletea program
type TUI struct {
	program *tea.Program
	msgs    chan tea.Msg
	done    chan struct{}
	err     error
}

// New creates the program without starting it
func New(controls Controls) *TUI {
	return &TUI{
		program: tea.NewProgram(NewModel(controls), tea.WithAltScreen()),
		msgs:    make(chan tea.Msg, 64),
		done:    make(chan struct{}),
	}
}

// Start runs the program in the background
func (t *TUI) Start() {
	go func() {
		defer close(t.done)
		_, t.err = t.program.Run()
	}()
	go t.forward()
}

// forward feeds queued messages to the program. Player callbacks can fire
// from inside Update (a key press changing the volume), where a direct Send
// would block the event loop on itself.
func (t *TUI) forward() {
	for {
		select {
		case msg := <-t.msgs:
			t.program.Send(msg)
		case <-t.done:
			return
		}
	}
}

// enqueue drops the message when the queue is full; the refresh tick catches up
func (t *TUI) enqueue(msg tea.Msg) {
	select {
	case t.msgs <- msg:
	default:
	}
}

// Done is closed when the user quits or the program fails
func (t *TUI) Done() <-chan struct{} {
	return t.done
}

// Err reports why the program stopped. Valid after Done is closed.
func (t *TUI) Err() error {
	return t.err
}

// Stop quits the program and waits for the terminal to be restored
func (t *TUI) Stop() {
	t.program.Quit()
	<-t.done
}

// OnStateChange forwards player state into the program
func (t *TUI) OnStateChange(st sendspin.PlayerState) {
	t.enqueue(StateMsg(st))
}

// OnMetadata forwards track metadata into the program
func (t *TUI) OnMetadata(meta sendspin.Metadata) {
	t.enqueue(MetadataMsg(meta))
}

// OnArtwork forwards a downloaded artwork path into the program
func (t *TUI) OnArtwork(path string) {
	t.enqueue(ArtworkMsg(path))
}
