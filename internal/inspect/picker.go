package inspect

import (
	"fmt"
	"net/url"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/internradar/internal/model"
)

var (
	pickerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Padding(1, 0, 1, 2)

	pickerItemStyle = lipgloss.NewStyle().
			Padding(0, 0, 0, 4)

	pickerSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 0, 0, 2)

	pickerHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 2)
)

const (
	pickerPending = -1
	pickerQuit    = -2
)

type pickerModel struct {
	sources []model.Source
	cursor  int
	chosen  int
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.chosen = pickerQuit
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.sources)-1 {
				m.cursor++
			}
		case "enter":
			if len(m.sources) > 0 {
				m.chosen = m.cursor
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m pickerModel) View() string {
	s := pickerTitleStyle.Render("Source Inspector: select a source")
	s += "\n"

	for i, src := range m.sources {
		label := sourceLabel(src)
		if i == m.cursor {
			s += pickerSelectedStyle.Render("> "+label) + "\n"
		} else {
			s += pickerItemStyle.Render(label) + "\n"
		}
	}

	s += pickerHintStyle.Render("↑/↓/j/k navigate  enter select  q quit")
	return s
}

func sourceLabel(src model.Source) string {
	host := src.URL
	if u, err := url.Parse(src.URL); err == nil && u.Host != "" {
		host = u.Host
	}
	render := src.Render
	if render == "" {
		render = model.RenderHTTP
	}
	return fmt.Sprintf("%s (%s, %s)", src.Name, host, render)
}

// RunSourcePicker shows an interactive source selector.
// Returns the index of the chosen source, or -1 if the user quit.
func RunSourcePicker(sources []model.Source) (int, error) {
	m := pickerModel{sources: sources, chosen: pickerPending}

	result, err := tea.NewProgram(m).Run()
	if err != nil {
		return -1, err
	}
	final := result.(pickerModel)
	if final.chosen < 0 {
		return -1, nil
	}
	return final.chosen, nil
}
