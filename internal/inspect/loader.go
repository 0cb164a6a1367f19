package inspect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrCancelled is returned by RunLoader when the user aborts the fetch.
var ErrCancelled = errors.New("cancelled")

type reportDoneMsg struct {
	report Report
	err    error
}

type loaderModel struct {
	sourceName string
	buildFn    func(ctx context.Context) (Report, error)
	timeout    time.Duration
	spinner    spinner.Model
	result     Report
	err        error
	done       bool
}

func newLoaderModel(sourceName string, timeout time.Duration, buildFn func(ctx context.Context) (Report, error)) loaderModel {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	return loaderModel{
		sourceName: sourceName,
		buildFn:    buildFn,
		timeout:    timeout,
		spinner:    sp,
	}
}

func (m loaderModel) Init() tea.Cmd {
	return tea.Batch(m.doBuild(), m.spinner.Tick)
}

func (m loaderModel) doBuild() tea.Cmd {
	buildFn, timeout := m.buildFn, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		report, err := buildFn(ctx)
		return reportDoneMsg{report: report, err: err}
	}
}

func (m loaderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case reportDoneMsg:
		m.result = msg.report
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			m.err = ErrCancelled
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m loaderModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s Fetching and extracting %s...\n", m.spinner.View(), m.sourceName)
}

// RunLoader shows a spinner while buildFn runs. It renders inline (no alt screen).
func RunLoader(sourceName string, timeout time.Duration, buildFn func(ctx context.Context) (Report, error)) (Report, error) {
	result, err := tea.NewProgram(newLoaderModel(sourceName, timeout, buildFn)).Run()
	if err != nil {
		return Report{}, err
	}
	final := result.(loaderModel)
	return final.result, final.err
}
