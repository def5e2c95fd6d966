package tui

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// MachineRow is the display state of one machine.
type MachineRow struct {
	Name        string
	Phase       string
	Step        int
	Total       int
	Active      bool
	Err         string
	Interrupted bool
	LastLine    string
	Warning     bool
}

// Progress returns the share of the current phase list that has finished.
func (r MachineRow) Progress() float64 {
	if r.Total == 0 {
		return 0
	}
	done := r.Step
	if r.Active {
		done--
	}
	if done < 0 {
		done = 0
	}
	return float64(done) / float64(r.Total)
}

// Model is the Bubble Tea model of the dashboard.
type Model struct {
	Title    string
	Machines []MachineRow
	index    map[string]int

	spinner spinner.Model

	StartTime time.Time
	Width     int
	Err       error
	Done      bool

	// Interrupting is set once the user asked to stop. The run keeps
	// going until in-flight phases return.
	Interrupting bool
	cancel       context.CancelFunc
}

// NewModel creates a dashboard titled title. cancel is called when the
// user presses ctrl+c.
func NewModel(title string, cancel context.CancelFunc) Model {
	return Model{
		Title:     title,
		index:     map[string]int{},
		spinner:   spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(rowLooks[rowWorking].style)),
		StartTime: time.Now(),
		cancel:    cancel,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !m.Interrupting && m.cancel != nil {
				m.Interrupting = true
				m.cancel()
			}
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width

	case PhaseMsg:
		m.updatePhase(msg)

	case LineMsg:
		row := m.row(msg.Machine)
		row.LastLine = msg.Text
		row.Warning = msg.Warning

	case InterruptedMsg:
		row := m.row(msg.Machine)
		row.Active = false
		row.Interrupted = true

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ErrMsg:
		m.Err = msg.Err
		return m, tea.Quit

	case DoneMsg:
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

// row returns the row of machine, adding it on first sight.
func (m *Model) row(machine string) *MachineRow {
	if m.index == nil {
		m.index = map[string]int{}
	}
	i, ok := m.index[machine]
	if !ok {
		i = len(m.Machines)
		m.index[machine] = i
		m.Machines = append(m.Machines, MachineRow{Name: machine})
	}
	return &m.Machines[i]
}

func (m *Model) updatePhase(msg PhaseMsg) {
	row := m.row(msg.Machine)
	row.Phase = msg.Phase
	row.Step = msg.Step
	row.Total = msg.Total
	row.Active = !msg.Done && msg.Err == ""
	if msg.Err != "" {
		row.Err = msg.Err
	}
}

// phaseLabel matches the "name (i/n)" labels of phase events.
var phaseLabel = regexp.MustCompile(`^(.*) \((\d+)/(\d+)\)$`)

// ParsePhaseLabel splits a phase event label into name, step and total.
// Labels without a position yield step and total 0.
func ParsePhaseLabel(label string) (string, int, int) {
	match := phaseLabel.FindStringSubmatch(label)
	if match == nil {
		return label, 0, 0
	}
	step, _ := strconv.Atoi(match[2])
	total, _ := strconv.Atoi(match[3])
	return match[1], step, total
}

// View implements tea.Model.
func (m Model) View() string {
	return renderView(m)
}
