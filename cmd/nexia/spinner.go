package main

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type answerMsg struct {
	text string
}

// waitModel shows a spinner on stderr while a bridge call is in flight.
type waitModel struct {
	spinner spinner.Model
	label   string
	work    func() string
	cancel  context.CancelFunc

	answer      string
	done        bool
	interrupted bool
}

func newWaitModel(label string, cancel context.CancelFunc, work func() string) waitModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styleTitle
	return waitModel{spinner: s, label: label, work: work, cancel: cancel}
}

func (m waitModel) Init() tea.Cmd {
	work := m.work
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return answerMsg{text: work()}
	})
}

func (m waitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case answerMsg:
		m.answer = msg.text
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "esc" {
			m.interrupted = true
			m.cancel()
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m waitModel) View() string {
	if m.done || m.interrupted {
		return ""
	}
	return m.spinner.View() + " " + styleDim.Render(m.label)
}

// withSpinner runs work under a spinner when out is a terminal, and plainly
// otherwise.
func withSpinner(ctx context.Context, out io.Writer, label string, work func(ctx context.Context) string) (string, error) {
	if !isTerminal(out) {
		return work(ctx), nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newWaitModel(label, cancel, func() string { return work(ctx) })
	final, err := tea.NewProgram(m, tea.WithOutput(out), tea.WithContext(ctx)).Run()
	if err != nil {
		return "", err
	}
	wm := final.(waitModel)
	if wm.interrupted {
		return "", context.Canceled
	}
	return wm.answer, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
