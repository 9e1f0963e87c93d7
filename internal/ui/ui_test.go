package ui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"krait/internal/driver"
)

func typeLine(m *REPLModel, line string) {
	m.input.SetValue(line)
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
}

func TestREPLMultilineCell(t *testing.T) {
	var ran []string
	m := NewREPLModel("", func(src string) CellResult {
		ran = append(ran, src)
		if strings.HasSuffix(src, ":\n") || !strings.HasSuffix(src, "\n\n") && strings.Contains(src, ":") {
			return CellResult{NeedMore: true}
		}
		return CellResult{Output: "ok\n"}
	})

	typeLine(m, "def f():")
	if m.input.Prompt != PromptSecondary {
		t.Fatalf("prompt = %q", m.input.Prompt)
	}
	typeLine(m, "    return 1")
	typeLine(m, "")
	if m.input.Prompt != PromptPrimary || len(m.pending) != 0 {
		t.Fatalf("cell not finished: prompt=%q pending=%v", m.input.Prompt, m.pending)
	}
	if last := ran[len(ran)-1]; last != "def f():\n    return 1\n\n" {
		t.Fatalf("last cell = %q", last)
	}
	tr := m.Transcript()
	if tr[len(tr)-1] != "ok" {
		t.Fatalf("transcript = %q", tr)
	}
}

func TestREPLHistoryAndInterrupt(t *testing.T) {
	m := NewREPLModel("", func(string) CellResult { return CellResult{Err: "NameError: name 'x' is not defined"} })
	typeLine(m, "x")
	typeLine(m, "y")
	if !strings.Contains(strings.Join(m.Transcript(), "\n"), "NameError") {
		t.Fatalf("error not printed: %q", m.Transcript())
	}

	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if m.input.Value() != "y" {
		t.Fatalf("up = %q", m.input.Value())
	}
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if m.input.Value() != "x" {
		t.Fatalf("up x2 = %q", m.input.Value())
	}
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if m.input.Value() != "" {
		t.Fatalf("down past end = %q", m.input.Value())
	}

	m.input.SetValue("half")
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if m.quitting || m.input.Value() != "" {
		t.Fatal("first ctrl+c clears the line")
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !m.quitting || cmd == nil {
		t.Fatal("ctrl+c on an empty line quits")
	}
}

func TestProgressModelCounts(t *testing.T) {
	files := []string{"a.kr", "b.kr", "c.kr"}
	m := NewProgressModel("checking", files, nil).(*progressModel)
	m.applyEvent(driver.Event{File: "a.kr", Stage: driver.StageCompile, Status: driver.StatusWorking})
	if got := m.fraction(); got < 0.19 || got > 0.21 {
		t.Fatalf("fraction = %v", got)
	}
	m.applyEvent(driver.Event{File: "a.kr", Status: driver.StatusDone})
	m.applyEvent(driver.Event{File: "b.kr", Status: driver.StatusError})
	m.applyEvent(driver.Event{File: "c.kr", Status: driver.StatusCached})
	m.applyEvent(driver.Event{File: "unknown.kr", Status: driver.StatusDone})
	if m.fraction() != 1 || m.failed != 1 || m.cached != 1 {
		t.Fatalf("fraction=%v failed=%d cached=%d", m.fraction(), m.failed, m.cached)
	}
	m.Update(doneMsg{})
	if v := m.View(); !strings.Contains(v, "1 failed, 1 cached") || !strings.Contains(v, "b.kr") {
		t.Fatalf("view:\n%s", v)
	}
}

func TestProgressWindow(t *testing.T) {
	var files []string
	for i := range 20 {
		files = append(files, fmt.Sprintf("f%02d.kr", i))
	}
	m := NewProgressModel("checking", files, nil).(*progressModel)
	m.applyEvent(driver.Event{File: "f00.kr", Status: driver.StatusError})
	for i := 1; i < 15; i++ {
		m.applyEvent(driver.Event{File: files[i], Status: driver.StatusDone, Elapsed: time.Millisecond})
	}
	m.applyEvent(driver.Event{File: "f15.kr", Stage: driver.StageLex, Status: driver.StatusWorking})

	rows, queued := m.visible()
	if queued != 4 {
		t.Fatalf("queued = %d", queued)
	}
	// ошибка, 8 последних готовых и один в работе
	if len(rows) != 1+recentRows+1 {
		t.Fatalf("rows = %d", len(rows))
	}
	v := m.View()
	for _, want := range []string{"f00.kr", "f14.kr", "lexing", "4 queued", "15/20"} {
		if !strings.Contains(v, want) {
			t.Fatalf("view lacks %q:\n%s", want, v)
		}
	}
	if strings.Contains(v, "f03.kr") {
		t.Fatalf("old row still shown:\n%s", v)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefgh", 6); got != "abc..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
	// ширина считается в ячейках терминала
	if got := truncate("日本語テキスト", 8); runewidth.StringWidth(got) > 8 {
		t.Fatalf("truncate wide = %q", got)
	}
}
