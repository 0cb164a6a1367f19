package inspect

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/internradar/internal/model"
)

// Lines per record in a pane (title + subtitle + blank separator).
const recordHeight = 3

const (
	paneExtracted = iota
	paneRelevant
)

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39"))

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	activeHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("39"))

	inactiveHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	selectedTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("24"))

	relevantMarkStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("42"))

	rejectedMarkStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(14)

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	dividerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	descStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

type inspectModel struct {
	report   Report
	panes    [2][]Record
	viewport [2]viewport.Model
	cursor   [2]int
	active   int
	width    int
	height   int
	ready    bool

	view           viewState
	detail         Record
	detailViewport viewport.Model

	wantQuit bool
}

func newInspectModel(report Report) inspectModel {
	m := inspectModel{report: report}
	m.panes[paneExtracted] = report.Records
	for _, r := range report.Records {
		if r.Relevant {
			m.panes[paneRelevant] = append(m.panes[paneRelevant], r)
		}
	}
	return m
}

func (m inspectModel) Init() tea.Cmd {
	return nil
}

func (m inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}
	return m, nil
}

func (m inspectModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "b":
		m.wantQuit = false
		return m, tea.Quit
	case "tab", "left", "right":
		m.active = 1 - m.active
		m.recalcContent()
		return m, nil
	case "up", "k":
		m.moveCursor(-1)
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		return m, nil
	case "enter":
		return m.openDetail()
	}

	var cmd tea.Cmd
	m.viewport[m.active], cmd = m.viewport[m.active].Update(msg)
	return m, cmd
}

func (m inspectModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "o":
		openURL(m.detail.Job.URL)
		return m, nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m *inspectModel) moveCursor(delta int) {
	m.cursor[m.active] = clamp(m.cursor[m.active]+delta, 0, max(len(m.panes[m.active])-1, 0))
	m.recalcContent()

	vp := &m.viewport[m.active]
	top := m.cursor[m.active] * recordHeight
	bottom := top + recordHeight - 1
	if top < vp.YOffset {
		vp.SetYOffset(top)
	} else if bottom >= vp.YOffset+vp.Height {
		vp.SetYOffset(bottom - vp.Height + 1)
	}
}

func (m inspectModel) openDetail() (tea.Model, tea.Cmd) {
	records := m.panes[m.active]
	if len(records) == 0 {
		return m, nil
	}
	m.view = viewDetail
	m.detail = records[m.cursor[m.active]]
	m.detailViewport = viewport.New(m.width-4, m.height-4)
	m.detailViewport.SetContent(m.renderDetail())
	return m, nil
}

func (m *inspectModel) recalcLayout() {
	// 2 border chars per pane + 1 gap between panes.
	paneWidth := max((m.width-5)/2, 20)
	// Header, top and bottom border, status bar.
	paneHeight := max(m.height-4, 5)

	for i := range m.viewport {
		if !m.ready {
			m.viewport[i] = viewport.New(paneWidth, paneHeight)
			continue
		}
		m.viewport[i].Width = paneWidth
		m.viewport[i].Height = paneHeight
	}
	m.ready = true
	m.recalcContent()
}

func (m *inspectModel) recalcContent() {
	for i := range m.viewport {
		m.viewport[i].SetContent(renderRecords(m.panes[i], m.cursor[i], m.active == i))
	}
}

func (m inspectModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.view == viewDetail {
		return m.viewDetail()
	}
	return m.viewList()
}

func (m inspectModel) viewList() string {
	paneWidth := m.viewport[paneExtracted].Width
	headers := [2]string{
		fmt.Sprintf(" Extracted (%d)", len(m.panes[paneExtracted])),
		fmt.Sprintf(" Relevant (%d)", len(m.panes[paneRelevant])),
	}

	var renderedHeaders, renderedPanes [2]string
	for i := range headers {
		hs, bs := inactiveHeaderStyle, inactiveBorderStyle
		if i == m.active {
			hs, bs = activeHeaderStyle, activeBorderStyle
		}
		renderedHeaders[i] = lipgloss.NewStyle().Width(paneWidth + 2).Render(hs.Render(headers[i]))
		renderedPanes[i] = bs.Width(paneWidth).Render(m.viewport[i].View())
	}

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top, renderedHeaders[0], " ", renderedHeaders[1])
	panes := lipgloss.JoinHorizontal(lipgloss.Top, renderedPanes[0], " ", renderedPanes[1])

	status := fmt.Sprintf(" %s | %d listings | %d discarded | %d relevant | %s    Tab switch  ↑/↓ cursor  Enter detail  Esc back  q quit",
		m.report.Source.Name, m.report.Listings, m.report.Discarded, len(m.panes[paneRelevant]), m.report.Elapsed.Round(time.Millisecond))
	statusBar := statusBarStyle.Width(m.width).Render(status)

	return headerRow + "\n" + panes + "\n" + statusBar
}

func (m inspectModel) viewDetail() string {
	title := detailTitleStyle.Render("Posting")
	content := activeBorderStyle.Width(m.width - 2).Render(m.detailViewport.View())
	statusBar := statusBarStyle.Width(m.width).Render(" o open URL  esc/backspace back  ↑/↓ scroll  q quit")
	return title + "\n" + content + "\n" + statusBar
}

func (m inspectModel) renderDetail() string {
	return renderDetail(m.detail, max(m.width-8, 20))
}

func renderDetail(r Record, wrapWidth int) string {
	j := r.Job
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(value)
		b.WriteByte('\n')
	}

	addField("Title", j.Title)
	addField("Company", j.Company)
	addField("Location", j.Location)
	addField("Posted", j.PostedDate)
	addField("Source", j.Source)
	addField("URL", j.URL)
	if r.Relevant {
		addField("Relevant", "yes")
	} else {
		addField("Relevant", "no")
	}

	if j.Description != "" {
		label := "── Description "
		b.WriteByte('\n')
		b.WriteString(dividerStyle.Render(label+strings.Repeat("─", max(wrapWidth-len([]rune(label)), 3))) + "\n\n")
		b.WriteString(descStyle.Render(wordWrap(j.Description, wrapWidth)) + "\n")
	}
	return b.String()
}

func renderRecords(records []Record, cursor int, isActive bool) string {
	if len(records) == 0 {
		return "  (no records)"
	}

	var b strings.Builder
	for i, r := range records {
		ts, ss := titleStyle, subtitleStyle
		prefix := "  "
		if isActive && i == cursor {
			ts, ss = selectedTitleStyle, selectedSubtitleStyle
			prefix = "> "
		}

		mark := rejectedMarkStyle.Render("·")
		if r.Relevant {
			mark = relevantMarkStyle.Render("✓")
		}

		b.WriteString(prefix + mark + " ")
		b.WriteString(ts.Render(r.Job.Title))
		b.WriteByte('\n')
		b.WriteString(prefix + "  ")
		b.WriteString(ss.Render(subtitle(r.Job)))
		b.WriteByte('\n')

		if i < len(records)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func subtitle(j model.Job) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{j.Company, j.Location, j.PostedDate} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "n/a"
	}
	return strings.Join(parts, " · ")
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= width {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// RunInspectTUI shows the extracted and relevant records of report side by side.
// Returns wantQuit=true if the user pressed q/ctrl+c, false if they pressed esc
// to return to the source picker.
func RunInspectTUI(report Report) (bool, error) {
	result, err := tea.NewProgram(newInspectModel(report), tea.WithAltScreen()).Run()
	if err != nil {
		return false, err
	}
	return result.(inspectModel).wantQuit, nil
}
