package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Mohsinsiddi/w3probe/internal/suite"
	tea "github.com/charmbracelet/bubbletea"
)

// ActionRunner runs one action to completion.
type ActionRunner interface {
	Run(ctx context.Context, a suite.Action) suite.Result
}

// resultMsg carries a finished action back into the update loop.
type resultMsg struct {
	idx int
	res suite.Result
}

type tickMsg struct{}

const maxLogLines = 12

// RunnerModel is the interactive shell: one row per action, Enter runs the
// selected one, `a` runs them all in order. Actions run off the update loop;
// while one is running every key except quit is ignored.
type RunnerModel struct {
	Title   string
	Actions []suite.Action

	runner  ActionRunner
	ctx     context.Context
	cursor  int
	busy    bool
	current int
	queue   []int
	frame   int
	results map[string]suite.Result
	log     []string

	Quitting bool
}

// NewRunnerModel builds the shell over r. ctx bounds every action it starts.
func NewRunnerModel(ctx context.Context, title string, actions []suite.Action, r ActionRunner) RunnerModel {
	return RunnerModel{
		Title:   title,
		Actions: actions,
		runner:  r,
		ctx:     ctx,
		current: -1,
		results: make(map[string]suite.Result, len(actions)),
	}
}

// Busy reports whether an action is in flight.
func (m RunnerModel) Busy() bool { return m.busy }

// Results returns the latest result per action name.
func (m RunnerModel) Results() map[string]suite.Result { return m.results }

func (m RunnerModel) Init() tea.Cmd { return nil }

func (m RunnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Quitting = true
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.Actions)-1 {
				m.cursor++
			}
		case "enter", " ":
			if len(m.Actions) > 0 {
				return m.start(m.cursor)
			}
		case "a":
			if len(m.Actions) > 0 {
				for i := 1; i < len(m.Actions); i++ {
					m.queue = append(m.queue, i)
				}
				return m.start(0)
			}
		}

	case resultMsg:
		a := m.Actions[msg.idx]
		m.results[a.Name] = msg.res
		m.appendLog(logLine(msg.res))
		if len(m.queue) > 0 {
			next := m.queue[0]
			m.queue = m.queue[1:]
			return m.start(next)
		}
		m.busy, m.current = false, -1

	case tickMsg:
		if m.busy {
			m.frame++
			return m, tick()
		}
	}
	return m, nil
}

func (m RunnerModel) start(idx int) (tea.Model, tea.Cmd) {
	m.busy, m.current = true, idx
	a := m.Actions[idx]
	m.appendLog(StyleInfo.Render("▶ " + a.Name))
	run := func() tea.Msg {
		return resultMsg{idx: idx, res: m.runner.Run(m.ctx, a)}
	}
	return m, tea.Batch(run, tick())
}

func (m *RunnerModel) appendLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

func logLine(r suite.Result) string {
	line := fmt.Sprintf("%s %s %s", PassFail(r.Passed), r.Name, Meta(r.Duration().String()))
	switch {
	case r.Error != "":
		line += "\n    " + StyleError.Render(r.Error)
	case r.ExpectRevert && r.Reason != "":
		line += "\n    " + Meta("reverted: "+r.Reason)
	}
	for _, f := range r.Failures {
		line += "\n    " + StyleWarning.Render("assert: ") + f
	}
	return line
}

func (m RunnerModel) View() string {
	if m.Quitting {
		return ""
	}

	var sb strings.Builder
	const sepWidth = 72
	ruler := StyleMeta.Render(strings.Repeat("─", sepWidth))

	sb.WriteString(StyleTitle.Render("  w3probe  ·  "+m.Title) + "\n")

	for i, a := range m.Actions {
		prefix := "    "
		if i == m.cursor {
			prefix = "  ▸ "
		}
		status := Meta("····")
		if i == m.current {
			status = StyleAccent.Render(spinnerFrames[m.frame%len(spinnerFrames)] + "   ")
		} else if r, ok := m.results[a.Name]; ok {
			status = PassFail(r.Passed)
		}
		name := a.Name
		if a.ExpectRevert {
			name += Meta("  (expects revert)")
		}
		line := fmt.Sprintf("%s%s  %s", prefix, status, name)
		if i == m.cursor && !m.busy {
			line = StyleSelected.Render(line)
		}
		sb.WriteString(line + "\n")
	}

	sb.WriteString("\n" + ruler + "\n")
	if len(m.Actions) > 0 {
		sb.WriteString(StyleMeta.Render("  "+m.Actions[m.cursor].Description) + "\n")
	}
	sb.WriteString(ruler + "\n")
	for _, l := range m.log {
		sb.WriteString("  " + l + "\n")
	}
	sb.WriteString("\n")

	if m.busy {
		sb.WriteString(StyleMeta.Render("  running…  [ q ] quit\n"))
	} else {
		sb.WriteString(
			StyleMeta.Render("  [ ↑↓ / jk ]") + " navigate   " +
				StyleInfo.Render("[ Enter ]") + " run   " +
				StyleInfo.Render("[ a ]") + " run all   " +
				StyleMeta.Render("[ q ]") + " quit\n")
	}
	return sb.String()
}

// RunShell starts the shell on the alternate screen and returns the final
// model once the user quits.
func RunShell(m RunnerModel) (RunnerModel, error) {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	final, err := p.Run()
	if err != nil {
		return m, fmt.Errorf("shell: %w", err)
	}
	return final.(RunnerModel), nil
}
