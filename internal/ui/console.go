package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/imamik/proxmate/internal/provisioning"
)

// Console is a provisioning.Observer writing to a terminal or a plain stream.
type Console struct {
	out     io.Writer
	mu      *sync.Mutex
	styled  bool
	verbose bool
	fields  map[string]string
}

// NewConsole creates a console writing to out. Styling is applied only when
// styled is true.
func NewConsole(out io.Writer, styled, verbose bool) *Console {
	return &Console{
		out:     out,
		mu:      &sync.Mutex{},
		styled:  styled,
		verbose: verbose,
		fields:  map[string]string{},
	}
}

// NewStdoutConsole writes to stdout, styled when stdout is a terminal.
func NewStdoutConsole(verbose bool) *Console {
	return NewConsole(os.Stdout, IsTerminal(os.Stdout), verbose)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *Console) render(style func(string) string, text string) {
	prefix := ""
	if m := c.fields["machine"]; m != "" {
		prefix = "==> " + m + ": "
		if c.styled {
			prefix = machineStyle.Render("==> "+m+":") + " "
		}
	}
	if c.styled && style != nil {
		text = style(text)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, prefix+text)
}

// Printf implements provisioning.Logger.
func (c *Console) Printf(format string, v ...any) {
	c.render(nil, fmt.Sprintf(format, v...))
}

// Info implements provisioning.Observer.
func (c *Console) Info(format string, v ...any) {
	c.render(func(s string) string { return infoStyle.Render(s) }, fmt.Sprintf(format, v...))
}

// Detail implements provisioning.Observer.
func (c *Console) Detail(format string, v ...any) {
	c.render(func(s string) string { return detailStyle.Render(s) }, "  "+fmt.Sprintf(format, v...))
}

// Warn implements provisioning.Observer.
func (c *Console) Warn(format string, v ...any) {
	c.render(func(s string) string { return warningStyle.Render(s) }, "WARNING: "+fmt.Sprintf(format, v...))
}

// Event implements provisioning.Observer. Failures and resource changes are
// always shown; other events only in verbose mode.
func (c *Console) Event(event provisioning.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	switch event.Type {
	case provisioning.EventPhaseFailed, provisioning.EventValidationError:
		c.render(func(s string) string { return failedStyle.Render(s) }, eventLine(event))
	case provisioning.EventResourceCreated, provisioning.EventResourceDeleted:
		c.render(func(s string) string { return successStyle.Render(s) }, eventLine(event))
	default:
		if c.verbose {
			c.render(func(s string) string { return detailStyle.Render(s) }, provisioning.FormatEvent(event))
		}
	}
}

func eventLine(event provisioning.Event) string {
	parts := make([]string, 0, 3)
	if event.Phase != "" {
		parts = append(parts, "["+event.Phase+"]")
	}
	if event.Resource != "" {
		parts = append(parts, event.Resource)
	}
	parts = append(parts, event.Message)
	return strings.Join(parts, " ")
}

// WithFields implements provisioning.Observer.
func (c *Console) WithFields(fields map[string]string) provisioning.Observer {
	merged := make(map[string]string, len(c.fields)+len(fields))
	for k, v := range c.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Console{out: c.out, mu: c.mu, styled: c.styled, verbose: c.verbose, fields: merged}
}
