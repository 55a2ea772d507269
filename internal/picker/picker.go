package picker

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nikbrunner/marks/internal/model"
	"github.com/nikbrunner/marks/internal/search"
)

var (
	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")).
			Bold(true).
			MarginBottom(1)

	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("114"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))
)

// Picker is a simple TUI for selecting a bookmark from search results.
// `/` re-filters the full list, `y` copies the highlighted URL.
type Picker struct {
	nodes     []model.Node
	results   []search.Result
	query     string
	prevQuery string
	input     textinput.Model
	filtering bool
	note      string
	cursor    int
	selected  bool
	cancelled bool
	width     int
	height    int
}

// New creates a Picker over the given nodes, pre-filtered by query. An
// empty query lists every bookmark.
func New(nodes []model.Node, query string) Picker {
	input := textinput.New()
	input.Placeholder = "filter"
	input.CharLimit = 120

	p := Picker{
		nodes:  nodes,
		query:  query,
		input:  input,
		cursor: 0,
		width:  80,
		height: 24,
	}
	p.results = filter(nodes, query)
	return p
}

// filter returns the search results for a query, or every bookmark when
// the query is empty.
func filter(nodes []model.Node, query string) []search.Result {
	if query != "" {
		return search.Bookmarks(nodes, query)
	}
	var results []search.Result
	for _, n := range nodes {
		if n.IsBookmark() {
			results = append(results, search.Result{Node: n})
		}
	}
	return results
}

// Init implements tea.Model.
func (p Picker) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
		return p, nil

	case tea.KeyMsg:
		if p.filtering {
			return p.updateFiltering(msg)
		}

		switch msg.Type {
		case tea.KeyEsc, tea.KeyCtrlC:
			p.cancelled = true
			return p, tea.Quit

		case tea.KeyEnter:
			if len(p.results) > 0 {
				p.selected = true
				return p, tea.Quit
			}
			return p, nil

		case tea.KeyDown:
			if p.cursor < len(p.results)-1 {
				p.cursor++
			}
			return p, nil

		case tea.KeyUp:
			if p.cursor > 0 {
				p.cursor--
			}
			return p, nil
		}

		// Handle vim keys
		if msg.Type == tea.KeyRunes {
			switch string(msg.Runes) {
			case "j":
				if p.cursor < len(p.results)-1 {
					p.cursor++
				}
				return p, nil
			case "k":
				if p.cursor > 0 {
					p.cursor--
				}
				return p, nil
			case "q":
				p.cancelled = true
				return p, tea.Quit
			case "y":
				p.yank()
				return p, nil
			case "/":
				p.filtering = true
				p.prevQuery = p.query
				p.input.SetValue(p.query)
				p.input.Focus()
				return p, textinput.Blink
			}
		}
	}

	return p, nil
}

// updateFiltering feeds keys into the filter input and re-runs the search
// on every change. Enter keeps the filter, Esc restores the previous one.
func (p Picker) updateFiltering(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		p.filtering = false
		p.input.Blur()
		return p, nil

	case tea.KeyEsc, tea.KeyCtrlC:
		p.filtering = false
		p.input.Blur()
		p.applyFilter(p.prevQuery)
		return p, nil
	}

	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	p.applyFilter(p.input.Value())
	return p, cmd
}

func (p *Picker) applyFilter(query string) {
	p.query = query
	p.results = filter(p.nodes, query)
	p.cursor = 0
	p.note = ""
}

// yank copies the highlighted URL to the system clipboard.
func (p *Picker) yank() {
	if p.cursor >= len(p.results) {
		return
	}
	url := p.results[p.cursor].Node.URL
	if err := clipboard.WriteAll(url); err != nil {
		p.note = "copy failed: " + err.Error()
		return
	}
	p.note = "copied " + url
}

// View implements tea.Model.
func (p Picker) View() string {
	var b strings.Builder

	if p.filtering {
		b.WriteString(headerStyle.Render("Filter: " + p.input.View()))
	} else {
		b.WriteString(headerStyle.Render(fmt.Sprintf("Search: %s (%d results)", p.query, len(p.results))))
	}
	b.WriteString("\n\n")

	for i, result := range p.results {
		cursor := "  "
		style := normalStyle
		if i == p.cursor {
			cursor = "> "
			style = selectedStyle
		}

		title := style.Render(result.Node.Title)
		url := urlStyle.Render(result.Node.URL)

		b.WriteString(fmt.Sprintf("%s%s\n", cursor, title))
		b.WriteString(fmt.Sprintf("   %s\n", url))
	}

	b.WriteString("\n")
	if p.note != "" {
		b.WriteString(noteStyle.Render(p.note))
		b.WriteString("\n")
	}
	b.WriteString(footerStyle.Render("j/k: move  Enter: open  y: yank  /: filter  q/Esc: cancel"))

	return b.String()
}

// SelectedNode returns the chosen bookmark, false when cancelled or
// nothing was picked.
func (p Picker) SelectedNode() (model.Node, bool) {
	if p.cancelled || !p.selected {
		return model.Node{}, false
	}
	if p.cursor < len(p.results) {
		return p.results[p.cursor].Node, true
	}
	return model.Node{}, false
}

// Cancelled returns true if the user cancelled the selection.
func (p Picker) Cancelled() bool {
	return p.cancelled
}
