package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/proxmate/internal/provisioning"
)

// Sender delivers messages to a running program.
type Sender interface {
	Send(msg tea.Msg)
}

// Observer forwards pipeline output to the dashboard. Messages without a
// machine field are dropped.
type Observer struct {
	sender Sender
	fields map[string]string
}

var _ provisioning.Observer = (*Observer)(nil)

// NewObserver creates an observer sending to sender.
func NewObserver(sender Sender) *Observer {
	return &Observer{sender: sender, fields: map[string]string{}}
}

func (o *Observer) machine() string {
	return o.fields["machine"]
}

func (o *Observer) line(warning bool, format string, v ...any) {
	if o.machine() == "" {
		return
	}
	text := strings.TrimSpace(fmt.Sprintf(format, v...))
	if text == "" {
		return
	}
	o.sender.Send(LineMsg{Machine: o.machine(), Text: text, Warning: warning})
}

// Printf implements provisioning.Logger. Debug output is not shown.
func (o *Observer) Printf(string, ...any) {}

// Info implements provisioning.Observer.
func (o *Observer) Info(format string, v ...any) { o.line(false, format, v...) }

// Detail implements provisioning.Observer.
func (o *Observer) Detail(format string, v ...any) { o.line(false, format, v...) }

// Warn implements provisioning.Observer.
func (o *Observer) Warn(format string, v ...any) { o.line(true, format, v...) }

// Event implements provisioning.Observer.
func (o *Observer) Event(event provisioning.Event) {
	machine := o.machine()
	if machine == "" {
		return
	}
	name, step, total := ParsePhaseLabel(event.Phase)
	switch event.Type {
	case provisioning.EventPhaseStarted:
		o.sender.Send(PhaseMsg{Machine: machine, Phase: name, Step: step, Total: total})
	case provisioning.EventPhaseCompleted:
		o.sender.Send(PhaseMsg{Machine: machine, Phase: name, Step: step, Total: total, Done: true})
	case provisioning.EventPhaseFailed:
		o.sender.Send(PhaseMsg{Machine: machine, Phase: name, Step: step, Total: total, Err: event.Message})
	case provisioning.EventPhaseInterrupted:
		o.sender.Send(InterruptedMsg{Machine: machine})
	case provisioning.EventValidationError:
		o.sender.Send(LineMsg{Machine: machine, Text: event.Message, Warning: true})
	}
}

// WithFields implements provisioning.Observer.
func (o *Observer) WithFields(fields map[string]string) provisioning.Observer {
	merged := make(map[string]string, len(o.fields)+len(fields))
	for k, v := range o.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Observer{sender: o.sender, fields: merged}
}
