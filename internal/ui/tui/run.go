package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/proxmate/internal/provisioning"
)

// Run shows the dashboard while fn runs. fn receives a context that is
// cancelled when the user presses ctrl+c, and an observer feeding the
// dashboard. The error of fn is returned once the dashboard closes.
func Run(ctx context.Context, title string, fn func(context.Context, provisioning.Observer) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(title, cancel), tea.WithAltScreen())

	result := make(chan error, 1)
	go func() {
		err := fn(ctx, NewObserver(p))
		result <- err
		if err != nil {
			p.Send(ErrMsg{Err: err})
			return
		}
		p.Send(DoneMsg{})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-result
		return fmt.Errorf("TUI error: %w", err)
	}
	return <-result
}
