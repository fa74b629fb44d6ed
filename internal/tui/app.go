package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mpataki/arena/internal/models"
	"github.com/mpataki/arena/internal/storage"
	"github.com/mpataki/arena/internal/workflowdef"
)

type View int

const (
	ViewRecordList View = iota
	ViewRecordDetail
	ViewWorkflows
)

const recordLimit = 50

// Source supplies archived run records.
type Source interface {
	ListRecords(limit int) ([]models.Record, error)
}

// RunFunc executes a workflow definition and archives the result.
type RunFunc func(def *workflowdef.Definition) error

type App struct {
	source Source
	defs   map[string]*workflowdef.Definition
	names  []string
	run    RunFunc

	view        View
	records     []models.Record
	selectedIdx int
	selectedWf  int
	detail      viewport.Model
	status      string

	width  int
	height int
	err    error
}

func NewApp(source Source, defs map[string]*workflowdef.Definition, run RunFunc) *App {
	return &App{
		source: source,
		defs:   defs,
		names:  workflowdef.Names(defs),
		run:    run,
		view:   ViewRecordList,
		detail: viewport.New(80, 20),
	}
}

func (a *App) Init() tea.Cmd {
	return a.loadRecords
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.detail.Width = msg.Width
		a.detail.Height = max(msg.Height-4, 1)
		return a, nil

	case recordsLoadedMsg:
		a.records = msg.records
		a.err = msg.err
		if a.selectedIdx >= len(a.records) {
			a.selectedIdx = max(len(a.records)-1, 0)
		}
		return a, nil

	case workflowRanMsg:
		a.err = msg.err
		if msg.err == nil {
			a.status = fmt.Sprintf("ran workflow %q", msg.name)
		}
		a.view = ViewRecordList
		return a, a.loadRecords
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.view {
	case ViewRecordList:
		return a.handleRecordListKey(msg)
	case ViewRecordDetail:
		return a.handleRecordDetailKey(msg)
	case ViewWorkflows:
		return a.handleWorkflowsKey(msg)
	}
	return a, nil
}

func (a *App) handleRecordListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case "down", "j":
		if a.selectedIdx < len(a.records)-1 {
			a.selectedIdx++
		}

	case "enter":
		if len(a.records) > 0 && a.selectedIdx < len(a.records) {
			a.detail.SetContent(formatRecordDetail(a.records[a.selectedIdx]))
			a.detail.GotoTop()
			a.view = ViewRecordDetail
		}

	case "w":
		a.view = ViewWorkflows

	case "r":
		return a, a.loadRecords
	}

	return a, nil
}

func (a *App) handleRecordDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		a.view = ViewRecordList
		return a, nil

	case "ctrl+c":
		return a, tea.Quit
	}

	var cmd tea.Cmd
	a.detail, cmd = a.detail.Update(msg)
	return a, cmd
}

func (a *App) handleWorkflowsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		a.view = ViewRecordList

	case "ctrl+c":
		return a, tea.Quit

	case "up", "k":
		if a.selectedWf > 0 {
			a.selectedWf--
		}

	case "down", "j":
		if a.selectedWf < len(a.names)-1 {
			a.selectedWf++
		}

	case "enter":
		if a.run != nil && a.selectedWf < len(a.names) {
			name := a.names[a.selectedWf]
			return a, a.runWorkflow(name, a.defs[name])
		}
	}

	return a, nil
}

func (a *App) View() string {
	switch a.view {
	case ViewRecordList:
		return a.viewRecordList()
	case ViewRecordDetail:
		return a.viewRecordDetail()
	case ViewWorkflows:
		return a.viewWorkflows()
	}
	return ""
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	kindStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

func (a *App) viewRecordList() string {
	s := titleStyle.Render("Arena") + "\n\n"

	if a.err != nil {
		s += failureStyle.Render(fmt.Sprintf("Error: %v", a.err)) + "\n"
	} else if a.status != "" {
		s += dimStyle.Render(a.status) + "\n"
	}

	if len(a.records) == 0 {
		s += "No runs recorded yet.\n"
	} else {
		s += "Run Log\n"
		s += "───────\n"

		for i, rec := range a.records {
			line := formatRecordLine(rec)
			if i == a.selectedIdx {
				line = selectedStyle.Render("▶ " + line)
			} else {
				line = "  " + line
			}
			s += line + "\n"
		}
	}

	s += "\n" + helpStyle.Render("[enter] view  [w] workflows  [r] refresh  [q] quit")

	return s
}

func formatRecordLine(rec models.Record) string {
	kind := kindStyle.Render(fmt.Sprintf("%-13s", rec.Kind()))

	switch r := rec.(type) {
	case *models.BattleRecord:
		age := storage.FormatTimeAgo(unixTime(r.Timestamp))
		return fmt.Sprintf("%s %s vs %s  %-8s %s", kind, r.AgentA, r.AgentB, age, truncate(string(r.Task), 35))
	case *models.CollaborationRecord:
		return fmt.Sprintf("%s %d steps  %s", kind, len(r.Steps), truncate(r.Objective, 40))
	case *models.WorkflowRun:
		failed := r.Failures()
		result := successStyle.Render(fmt.Sprintf("%d ok", len(r.Results)-failed))
		if failed > 0 {
			result += " " + failureStyle.Render(fmt.Sprintf("%d failed", failed))
		}
		return fmt.Sprintf("%s %s  %s", kind, r.WorkflowID, result)
	}
	return string(rec.Kind())
}

func formatRecordDetail(rec models.Record) string {
	var b strings.Builder

	switch r := rec.(type) {
	case *models.BattleRecord:
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Task:"), r.Task)
		fmt.Fprintf(&b, "%s %s\n\n", labelStyle.Render("At:"), unixTime(r.Timestamp).Format(time.RFC3339))
		writeOutcome(&b, r.OutcomeA, r.LatencyA)
		writeOutcome(&b, r.OutcomeB, r.LatencyB)
		if faster := r.Faster(); faster != "" {
			fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Faster:"), faster)
		}

	case *models.CollaborationRecord:
		fmt.Fprintf(&b, "%s %s\n\n", labelStyle.Render("Objective:"), r.Objective)
		for i, step := range r.Steps {
			fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, step.Agent, step.Output)
		}
		if len(r.Steps) == 0 {
			b.WriteString("(no steps)\n")
		}

	case *models.WorkflowRun:
		fmt.Fprintf(&b, "%s %s\n\n", labelStyle.Render("Workflow:"), r.WorkflowID)
		for i, out := range r.Results {
			fmt.Fprintf(&b, "%d. ", i+1)
			writeOutcome(&b, out, -1)
		}
	}

	return b.String()
}

func writeOutcome(b *strings.Builder, out models.Outcome, latency float64) {
	mark := successStyle.Render("✓")
	if !out.Succeeded() {
		mark = failureStyle.Render("✗")
	}
	fmt.Fprintf(b, "%s %s", mark, out.Agent)
	if latency >= 0 {
		fmt.Fprintf(b, "  %s", dimStyle.Render(formatDuration(time.Duration(latency*float64(time.Second)))))
	}
	fmt.Fprintf(b, "\n   %s\n", out.Output)
}

func (a *App) viewRecordDetail() string {
	if len(a.records) == 0 || a.selectedIdx >= len(a.records) {
		return "No record selected"
	}

	rec := a.records[a.selectedIdx]
	header := fmt.Sprintf("%s %s", rec.Kind(), rec.RecordID())
	s := titleStyle.Render(header) + "\n\n"
	s += a.detail.View() + "\n"
	s += helpStyle.Render("[↑/↓] scroll  [esc] back")

	return s
}

func (a *App) viewWorkflows() string {
	s := titleStyle.Render("Workflows") + "\n\n"

	if len(a.names) == 0 {
		s += "  (no workflow files found)\n"
	}
	for i, name := range a.names {
		line := fmt.Sprintf("%-24s %d steps", name, len(a.defs[name].Steps))
		if i == a.selectedWf {
			line = selectedStyle.Render("▶ " + line)
		} else {
			line = "  " + line
		}
		s += line + "\n"
	}

	help := "[esc] back"
	if a.run != nil {
		help = "[enter] run  " + help
	}
	s += "\n" + helpStyle.Render(help)

	return s
}

// Messages

type recordsLoadedMsg struct {
	records []models.Record
	err     error
}

type workflowRanMsg struct {
	name string
	err  error
}

// Commands

func (a *App) loadRecords() tea.Msg {
	records, err := a.source.ListRecords(recordLimit)
	return recordsLoadedMsg{records: records, err: err}
}

func (a *App) runWorkflow(name string, def *workflowdef.Definition) tea.Cmd {
	return func() tea.Msg {
		return workflowRanMsg{name: name, err: a.run(def)}
	}
}

func unixTime(seconds float64) time.Time {
	return time.Unix(0, int64(seconds*float64(time.Second)))
}

// truncate shortens s to at most maxLen runes, cutting on a rune boundary.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}
