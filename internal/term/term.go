// Package term switches a terminal between line and character input.
package term

import (
	"golang.org/x/term"
)

// State is the terminal mode saved by MakeInput.
type State struct {
	fd    int
	saved *term.State
}

// IsTerminal returns true if fd refers to a terminal.
func IsTerminal(fd int) bool {
	return term.IsTerminal(fd)
}

// MakeInput puts the terminal into character input mode: canonical line
// editing and echo are disabled, and each read returns as soon as one byte
// is available. Output processing is left alone.
func MakeInput(fd int) (state *State, err error) {
	saved, err := term.GetState(fd)
	if err != nil {
		return
	}

	err = makeInput(fd)
	if err != nil {
		return
	}

	state = &State{fd: fd, saved: saved}
	return
}

// Restore returns the terminal to the mode it had before MakeInput.
func (state *State) Restore() (err error) {
	if state == nil {
		return
	}
	return term.Restore(state.fd, state.saved)
}
