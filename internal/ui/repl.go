package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	PromptPrimary   = ">>> "
	PromptSecondary = "... "
)

// CellResult is what running one cell produced.
type CellResult struct {
	Output string
	// NeedMore asks for another line before the cell can run.
	NeedMore bool
	// Err is the rendered traceback or diagnostic, empty on success.
	Err string
}

// CellRunner executes accumulated REPL input.
type CellRunner func(src string) CellResult

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	echoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	bannerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
)

// REPLModel is an interactive session: a text input, a pending multi-line
// cell, and a command history navigated with the arrow keys.
type REPLModel struct {
	input   textinput.Model
	run     CellRunner
	banner  string
	pending []string
	history []string
	histPos int
	// transcript keeps everything printed so far.
	transcript []string
	quitting   bool
}

// NewREPLModel creates a session that runs cells with run.
func NewREPLModel(banner string, run CellRunner) *REPLModel {
	in := textinput.New()
	in.Prompt = PromptPrimary
	in.PromptStyle = promptStyle
	in.Focus()
	return &REPLModel{input: in, run: run, banner: banner}
}

// Transcript returns the session output, one entry per printed chunk.
func (m *REPLModel) Transcript() []string { return m.transcript }

func (m *REPLModel) Init() tea.Cmd {
	if m.banner == "" {
		return textinput.Blink
	}
	return tea.Batch(m.print(bannerStyle.Render(m.banner)), textinput.Blink)
}

func (m *REPLModel) print(s string) tea.Cmd {
	m.transcript = append(m.transcript, s)
	return tea.Println(s)
}

func (m *REPLModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	switch key.Type {
	case tea.KeyCtrlD:
		if m.input.Value() == "" {
			m.quitting = true
			return m, tea.Quit
		}
	case tea.KeyCtrlC:
		if len(m.pending) == 0 && m.input.Value() == "" {
			m.quitting = true
			return m, tea.Quit
		}
		m.pending = nil
		m.input.Reset()
		m.input.Prompt = PromptPrimary
		return m, m.print("KeyboardInterrupt")
	case tea.KeyUp:
		m.recall(-1)
		return m, nil
	case tea.KeyDown:
		m.recall(1)
		return m, nil
	case tea.KeyEnter:
		return m, m.submit()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *REPLModel) recall(dir int) {
	if len(m.history) == 0 {
		return
	}
	m.histPos = min(max(m.histPos+dir, 0), len(m.history))
	if m.histPos == len(m.history) {
		m.input.SetValue("")
		return
	}
	m.input.SetValue(m.history[m.histPos])
	m.input.CursorEnd()
}

func (m *REPLModel) submit() tea.Cmd {
	line := m.input.Value()
	m.input.Reset()
	cmds := []tea.Cmd{m.print(echoStyle.Render(m.input.Prompt + line))}

	if len(m.pending) == 0 && strings.TrimSpace(line) == "" {
		return tea.Batch(cmds...)
	}
	if strings.TrimSpace(line) != "" {
		m.history = append(m.history, line)
	}
	m.histPos = len(m.history)
	m.pending = append(m.pending, line)

	res := m.run(strings.Join(m.pending, "\n") + "\n")
	if res.NeedMore {
		m.input.Prompt = PromptSecondary
		return tea.Batch(cmds...)
	}
	m.pending = nil
	m.input.Prompt = PromptPrimary
	if out := strings.TrimRight(res.Output, "\n"); out != "" {
		cmds = append(cmds, m.print(out))
	}
	if res.Err != "" {
		cmds = append(cmds, m.print(errStyle.Render(strings.TrimRight(res.Err, "\n"))))
	}
	return tea.Batch(cmds...)
}

func (m *REPLModel) View() string {
	if m.quitting {
		return ""
	}
	return m.input.View() + "\n"
}
