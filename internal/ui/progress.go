package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"krait/internal/driver"
)

// recentRows bounds how many finished files stay on screen; errors stay
// regardless.
const recentRows = 8

var (
	statusStyles = map[driver.Status]lipgloss.Style{
		driver.StatusQueued:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		driver.StatusWorking: lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		driver.StatusDone:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		driver.StatusCached:  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		driver.StatusError:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
	stageLabels  = map[driver.Stage]string{driver.StageLoad: "loading", driver.StageLex: "lexing", driver.StageCompile: "compiling"}
	stageWeights = map[driver.Stage]float64{driver.StageLoad: 0.1, driver.StageLex: 0.3, driver.StageCompile: 0.6}
	headerStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type fileItem struct {
	path    string
	status  driver.Status
	stage   driver.Stage
	elapsed time.Duration
	seq     int // order of completion, 0 while unfinished
}

func (it *fileItem) finished() bool {
	return it.status == driver.StatusDone || it.status == driver.StatusError || it.status == driver.StatusCached
}

func (it *fileItem) weight() float64 {
	switch {
	case it.finished():
		return 1
	case it.status == driver.StatusWorking:
		return stageWeights[it.stage]
	}
	return 0
}

func (it *fileItem) label() string {
	if it.status == driver.StatusWorking {
		if l, ok := stageLabels[it.stage]; ok {
			return l
		}
	}
	return string(it.status)
}

type progressModel struct {
	title    string
	events   <-chan driver.Event
	spinner  spinner.Model
	bar      progress.Model
	items    []fileItem
	byPath   map[string]int
	width    int
	finished int
	failed   int
	cached   int
	done     bool
}

type eventMsg driver.Event
type doneMsg struct{}

// NewProgressModel renders the progress of driver.Check from its event
// channel and quits when the channel is closed.
func NewProgressModel(title string, files []string, events <-chan driver.Event) tea.Model {
	m := &progressModel{
		title:   title,
		events:  events,
		spinner: spinner.New(spinner.WithSpinner(spinner.MiniDot)),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		items:   make([]fileItem, len(files)),
		byPath:  make(map[string]int, len(files)),
		width:   80,
	}
	m.spinner.Style = statusStyles[driver.StatusWorking]
	m.bar.Width = m.width - 12
	for i, f := range files {
		m.items[i] = fileItem{path: f, status: driver.StatusQueued}
		m.byPath[f] = i
	}
	return m
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.next())
}

func (m *progressModel) next() tea.Cmd {
	return func() tea.Msg {
		if ev, ok := <-m.events; ok {
			return eventMsg(ev)
		}
		return doneMsg{}
	}
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m, tea.Batch(m.applyEvent(driver.Event(msg)), m.next())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.bar.Width = max(msg.Width-12, 10)
		}
	case spinner.TickMsg:
		if !m.done {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) applyEvent(ev driver.Event) tea.Cmd {
	i, ok := m.byPath[ev.File]
	if !ok {
		return nil
	}
	it := &m.items[i]
	wasFinished := it.finished()
	if ev.Stage != "" {
		it.stage = ev.Stage
	}
	it.status = ev.Status
	if ev.Elapsed > 0 {
		it.elapsed = ev.Elapsed
	}
	if it.finished() && !wasFinished {
		m.finished++
		it.seq = m.finished
		switch it.status {
		case driver.StatusError:
			m.failed++
		case driver.StatusCached:
			m.cached++
		}
	}
	return m.bar.SetPercent(m.fraction())
}

// fraction counts finished files as whole and in-flight ones by stage.
func (m *progressModel) fraction() float64 {
	if len(m.items) == 0 {
		return 0
	}
	var sum float64
	for i := range m.items {
		sum += m.items[i].weight()
	}
	return sum / float64(len(m.items))
}

// visible picks the rows to draw: files in flight, every failure, and the
// most recently finished ones.
func (m *progressModel) visible() (rows []*fileItem, queued int) {
	cutoff := m.finished - recentRows
	for i := range m.items {
		it := &m.items[i]
		switch {
		case it.status == driver.StatusQueued:
			queued++
		case it.status == driver.StatusWorking,
			it.status == driver.StatusError,
			it.seq > cutoff:
			rows = append(rows, it)
		}
	}
	return rows, queued
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	var b strings.Builder
	if m.done {
		b.WriteString(headerStyle.Render(fmt.Sprintf("done: %s (%d failed, %d cached)", m.title, m.failed, m.cached)))
	} else {
		b.WriteString(m.spinner.View() + " " + headerStyle.Render(fmt.Sprintf("%s %d/%d", m.title, m.finished, len(m.items))))
	}
	b.WriteString("\n\n")

	rows, queued := m.visible()
	nameWidth := max(m.width-24, 20)
	for _, it := range rows {
		status := statusStyles[it.status].Render(fmt.Sprintf("%10s", it.label()))
		fmt.Fprintf(&b, "  %s %s", status, truncate(it.path, nameWidth))
		if it.finished() && it.elapsed > 0 {
			b.WriteString(dimStyle.Render(" " + it.elapsed.Round(time.Millisecond).String()))
		}
		b.WriteByte('\n')
	}
	if queued > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  … %d queued", queued)))
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	if m.done {
		b.WriteString(m.bar.ViewAs(1))
	} else {
		b.WriteString(m.bar.View())
	}
	b.WriteByte('\n')
	return b.String()
}

// truncate cuts value to width terminal cells.
func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	tail := "..."
	if width <= len(tail) {
		tail = ""
	}
	return runewidth.Truncate(value, width, tail)
}
