package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kbase/internal/domain"
)

// KnowledgePort is the TUI-facing subset of the orchestrator service.
type KnowledgePort interface {
	Search(qtype, value string) ([]domain.DocumentRecord, error)
	Reclassify(filename string) (domain.Category, error)
	Documents() []domain.DocumentRecord
}

type mode int

const (
	modeMenu mode = iota
	modeInput
)

// action identifies the menu entry awaiting a value in input mode.
type action int

const (
	actionSearchCategory action = iota
	actionSearchKeyword
	actionSearchRelated
	actionReclassify
)

// Model is the Bubble Tea model for the knowledge base menu.
type Model struct {
	service  KnowledgePort
	input    textinput.Model
	viewport viewport.Model
	mode     mode
	pending  action
	status   string
	ready    bool
}

// New creates a new TUI model instance.
func New(service KnowledgePort, ingestStatus string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{service: service, input: ti, viewport: vp, status: ingestStatus}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		reserved := len(menuLines) + 4 // header, status, input line, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if m.mode == modeMenu {
			return m.updateMenu(msg)
		}
		return m.updateInput(msg)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "1":
		return m.promptFor(actionSearchCategory, "Category keyword to search"), textinput.Blink
	case "2":
		return m.promptFor(actionSearchKeyword, "Keyword to search"), textinput.Blink
	case "3":
		return m.promptFor(actionSearchRelated, "Related document ID"), textinput.Blink
	case "4":
		docs := m.service.Documents()
		if len(docs) == 0 {
			m.status = "No processed documents in knowledge base"
			return m, nil
		}
		m.viewport.SetContent(renderDocumentList(docs))
		return m.promptFor(actionReclassify, "Filename to reclassify"), textinput.Blink
	case "5", "q", "esc":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) promptFor(a action, placeholder string) Model {
	m.mode = modeInput
	m.pending = a
	m.input.Placeholder = placeholder
	m.input.SetValue("")
	m.input.Focus()
	return m
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeMenu
		m.input.Blur()
		m.status = ""
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		if value == "" {
			m.status = "Error: value cannot be empty"
			return m, nil
		}
		m.runAction(value)
		m.mode = modeMenu
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) runAction(value string) {
	switch m.pending {
	case actionSearchCategory, actionSearchKeyword, actionSearchRelated:
		qtype := map[action]string{
			actionSearchCategory: domain.QueryCategory,
			actionSearchKeyword:  domain.QueryKeyword,
			actionSearchRelated:  domain.QueryRelated,
		}[m.pending]
		results, err := m.service.Search(qtype, value)
		switch {
		case errors.Is(err, domain.ErrNoResults):
			m.status = "No matching documents found"
			m.viewport.SetContent("")
		case err != nil:
			m.status = "Error: " + err.Error()
		default:
			m.status = fmt.Sprintf("Results for %q in %s", value, qtype)
			m.viewport.SetContent(renderResults(results))
		}
	case actionReclassify:
		category, err := m.service.Reclassify(value)
		if err != nil {
			m.status = "Error: " + err.Error()
			return
		}
		m.status = fmt.Sprintf("Reclassified %s → %s", value, category.Path())
		m.viewport.SetContent(renderDocumentList(m.service.Documents()))
	}
}

var menuLines = []string{
	"1. Search by Category",
	"2. Search by Keyword",
	"3. Search by Related Document ID",
	"4. Reclassify Document",
	"5. Exit",
}

// View renders the menu, results viewport and input line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Knowledge Base Search System")
	menu := strings.Join(menuLines, "\n")
	results := resultBoxStyle.Render(m.viewport.View())
	status := statusStyle.Render(m.status)
	body := header + "\n" + menu + "\n" + results + "\n"
	if m.mode == modeInput {
		body += m.input.View() + "\n"
	}
	return body + status
}

func renderResults(docs []domain.DocumentRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d matching results:\n", len(docs))
	for i, doc := range docs {
		firstIdea := ""
		if len(doc.CoreIdeas) > 0 {
			firstIdea = doc.CoreIdeas[0]
		}
		fmt.Fprintf(&b, "%d. Filename: %s\n", i+1, doc.Filename)
		fmt.Fprintf(&b, "   Category: %s\n", doc.Category.Path())
		fmt.Fprintf(&b, "   Core Ideas: %s (and %d more)\n", firstIdea, len(doc.CoreIdeas))
		fmt.Fprintf(&b, "   Path: %s\n\n", doc.Path)
	}
	return b.String()
}

func renderDocumentList(docs []domain.DocumentRecord) string {
	var b strings.Builder
	b.WriteString("Processed documents:\n")
	for i, doc := range docs {
		fmt.Fprintf(&b, "%d. %s (current category: %s)\n", i+1, doc.Filename, doc.Category.Path())
	}
	return b.String()
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
