// Package tui provides a Bubble Tea dashboard that follows machines through
// the provisioning phases.
package tui

// PhaseMsg reports that a machine entered, finished, or failed a phase.
type PhaseMsg struct {
	Machine string
	Phase   string
	Step    int // position within the current phase list, 1-based
	Total   int
	Done    bool
	Err     string
}

// LineMsg carries the latest output line of a machine.
type LineMsg struct {
	Machine string
	Text    string
	Warning bool
}

// InterruptedMsg marks a machine whose run was interrupted.
type InterruptedMsg struct {
	Machine string
}

// ErrMsg carries the final error of the run.
type ErrMsg struct{ Err error }

// DoneMsg signals that the run is complete.
type DoneMsg struct{}
