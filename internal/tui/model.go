package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"textdedup/internal/domain"
)

// DedupPort is the TUI-facing subset of the dedup service.
type DedupPort interface {
	Run(ctx context.Context) (domain.RunReport, error)
}

// Model is the Bubble Tea model for browsing a run's duplicate groups.
type Model struct {
	service  DedupPort
	input    textinput.Model
	viewport viewport.Model
	report   domain.RunReport
	groups   []domain.GroupReport
	filter   string
	status   string
	cursor   int
	ready    bool
}

// New creates a browser over an existing report. service may be nil, in
// which case re-running is disabled.
func New(service DedupPort, report domain.RunReport) Model {
	ti := textinput.New()
	ti.Prompt = "filter> "
	ti.Placeholder = "Path substring, Enter to apply, Esc to clear"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	m := Model{service: service, input: ti, viewport: vp, report: report}
	m.applyFilter("")
	m.status = fmt.Sprintf("%d duplicate groups. Up/Down to browse, Ctrl+R to re-run.", len(m.groups))
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := groupBoxStyle.GetFrameSize()
		_, fh := filterBoxStyle.GetFrameSize()
		reserved := 2 + 1 + fh + 1 // header + summary, status, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentGroup())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			m.applyFilter(strings.TrimSpace(m.input.Value()))
			if m.filter == "" {
				m.status = fmt.Sprintf("%d duplicate groups", len(m.groups))
			} else {
				m.status = fmt.Sprintf("%d groups matching %q", len(m.groups), m.filter)
			}
			m.viewport.SetContent(m.renderCurrentGroup())
			return m, nil
		case "esc":
			m.input.SetValue("")
			m.applyFilter("")
			m.status = "Filter cleared"
			m.viewport.SetContent(m.renderCurrentGroup())
			return m, nil
		case "ctrl+r":
			if m.service == nil {
				m.status = "Re-run not available"
				return m, nil
			}
			rep, err := m.service.Run(context.Background())
			if err != nil {
				m.status = "Error: " + err.Error()
				return m, nil
			}
			m.report = rep
			m.applyFilter(m.filter)
			m.status = fmt.Sprintf("Re-run finished: %d kept, %d removed", rep.KeptFiles, rep.DroppedFiles)
			m.viewport.SetContent(m.renderCurrentGroup())
			return m, nil
		case "down":
			if len(m.groups) > 0 {
				m.cursor = (m.cursor + 1) % len(m.groups)
				m.viewport.SetContent(m.renderCurrentGroup())
				return m, nil
			}
		case "up":
			if len(m.groups) > 0 {
				m.cursor = (m.cursor - 1 + len(m.groups)) % len(m.groups)
				m.viewport.SetContent(m.renderCurrentGroup())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and current group.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Text Deduplication")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summaryLine())
	input := filterBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	groups := groupBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + groups + "\n" + input + "\n" + status
}

func (m Model) summaryLine() string {
	r := m.report
	return fmt.Sprintf("%d scanned, %d kept, %d removed (%.2f%%), %d empty, %d failures",
		r.TotalFiles, r.KeptFiles, r.DroppedFiles, r.RemovalPercentage(), r.EmptyFiles, len(r.Failures))
}

func (m *Model) applyFilter(filter string) {
	m.filter = filter
	m.cursor = 0
	m.groups = m.groups[:0:0]
	needle := strings.ToLower(filter)
	for _, g := range m.report.Groups {
		if needle == "" || groupMatches(g, needle) {
			m.groups = append(m.groups, g)
		}
	}
}

func groupMatches(g domain.GroupReport, needle string) bool {
	for _, mem := range g.Members {
		if strings.Contains(strings.ToLower(mem.RelPath), needle) {
			return true
		}
	}
	return false
}

func (m Model) renderCurrentGroup() string {
	if len(m.groups) == 0 {
		if m.filter != "" {
			return "No groups match the filter."
		}
		return "No duplicate groups found."
	}
	g := m.groups[m.cursor]
	title := fmt.Sprintf("Group %d/%d  %d files", m.cursor+1, len(m.groups), len(g.Members))
	lines := make([]string, 0, len(g.Members))
	for _, mem := range g.Members {
		line := fmt.Sprintf("%s  (%d tokens, %d bytes)", mem.RelPath, mem.Tokens, mem.SizeBytes)
		if mem.RelPath == g.Kept {
			line = highlightStyle.Render("kept     " + line)
		} else {
			line = "removed  " + line
		}
		lines = append(lines, line)
	}
	return title + "\n\n" + strings.Join(lines, "\n")
}

var (
	groupBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	filterBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)
