// Command bowtie-tui is an interactive terminal editor for a bow-tie diagram
// file. Barriers can be failed and restored, branches collapsed and
// highlighted, and the result is evaluated live.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
	"github.com/dd0wney/cluso-bowtie/pkg/editor"
	"github.com/dd0wney/cluso-bowtie/pkg/pipeline"
	"github.com/dd0wney/cluso-bowtie/pkg/propagation"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF")).
			MarginLeft(2).
			MarginTop(1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(1, 2)

	breachedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	partialStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500"))

	intactStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

type keyMap struct {
	Fail      key.Binding
	Collapse  key.Binding
	Highlight key.Binding
	Details   key.Binding
	Layout    key.Binding
	Save      key.Binding
	Up        key.Binding
	Down      key.Binding
	Quit      key.Binding
}

var keys = keyMap{
	Fail: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "fail/restore barrier"),
	),
	Collapse: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "collapse branch"),
	),
	Highlight: key.NewBinding(
		key.WithKeys("h"),
		key.WithHelp("h", "highlight"),
	),
	Details: key.NewBinding(
		key.WithKeys("enter", " "),
		key.WithHelp("enter", "details"),
	),
	Layout: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "auto layout"),
	),
	Save: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "save"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Fail, k.Collapse, k.Highlight, k.Save, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Details},
		{k.Fail, k.Collapse, k.Highlight},
		{k.Layout, k.Save, k.Quit},
	}
}

// nodeItem adapts a view node to list.DefaultItem
type nodeItem struct {
	node bowtie.Node
}

func (i nodeItem) FilterValue() string { return i.node.Data.BaseLabel }

func (i nodeItem) Title() string {
	m := i.node.Data.Meta
	title := i.node.Data.BaseLabel
	if title == "" {
		title = i.node.ID
	}
	switch {
	case m.Breached:
		title = breachedStyle.Render("● ") + title
	case m.PartiallyBreached:
		title = partialStyle.Render("◐ ") + title
	default:
		title = mutedStyle.Render("○ ") + title
	}
	if m.Highlighted {
		title += " *"
	}
	return title
}

func (i nodeItem) Description() string {
	m := i.node.Data.Meta
	parts := []string{string(m.Kind)}
	if m.Kind == bowtie.KindBarrier {
		parts = append(parts, string(m.BarrierType))
		if m.Failed {
			parts = append(parts, "FAILED")
		}
	}
	if i.node.Hidden {
		parts = append(parts, "hidden")
	}
	return strings.Join(parts, " · ")
}

type model struct {
	editor  *editor.Editor
	path    string
	nodes   list.Model
	help    help.Model
	keys    keyMap
	message string
	failed  bool
	dirty   bool
	width   int
	height  int
}

func newModel(ed *editor.Editor, path string) model {
	l := list.New(nil, list.NewDefaultDelegate(), 40, 20)
	l.Title = "Nodes"
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	// f and h are editor keys, keep paging on the arrows only
	l.KeyMap.NextPage = key.NewBinding(key.WithKeys("right", "pgdown"))
	l.KeyMap.PrevPage = key.NewBinding(key.WithKeys("left", "pgup"))
	l.KeyMap.Quit = key.NewBinding(key.WithDisabled())

	m := model{
		editor: ed,
		path:   path,
		nodes:  l,
		help:   help.New(),
		keys:   keys,
	}
	m.refresh(ed.View())
	return m
}

// refresh rebuilds the node list from a view, keeping the cursor in place
func (m *model) refresh(v *pipeline.View) {
	items := make([]list.Item, 0, len(v.Graph.Nodes))
	for _, n := range v.Graph.Nodes {
		items = append(items, nodeItem{node: n})
	}
	cursor := m.nodes.Index()
	m.nodes.SetItems(items)
	if cursor < len(items) {
		m.nodes.Select(cursor)
	}
}

func (m model) selected() (bowtie.Node, bool) {
	item, ok := m.nodes.SelectedItem().(nodeItem)
	if !ok {
		return bowtie.Node{}, false
	}
	return item.node, true
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.nodes.SetSize(msg.Width/2, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Fail):
			m.apply("toggled", m.editor.ToggleFailed)
			return m, nil
		case key.Matches(msg, m.keys.Collapse):
			m.apply("collapsed/expanded", m.editor.ToggleCollapse)
			return m, nil
		case key.Matches(msg, m.keys.Highlight):
			m.apply("highlight toggled on", m.editor.ToggleHighlight)
			return m, nil
		case key.Matches(msg, m.keys.Details):
			m.apply("details toggled on", m.editor.ToggleDetails)
			return m, nil
		case key.Matches(msg, m.keys.Layout):
			v, err := m.editor.AutoLayout()
			m.report(v, err, "layout recomputed")
			return m, nil
		case key.Matches(msg, m.keys.Save):
			m.save()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.nodes, cmd = m.nodes.Update(msg)
	return m, cmd
}

// apply runs an editor operation against the selected node
func (m *model) apply(what string, op func(id string) (*pipeline.View, error)) {
	n, ok := m.selected()
	if !ok {
		return
	}
	v, err := op(n.ID)
	m.report(v, err, fmt.Sprintf("%s %s", what, n.ID))
}

func (m *model) report(v *pipeline.View, err error, success string) {
	if err != nil {
		m.message = err.Error()
		m.failed = true
		return
	}
	m.message = success
	m.failed = false
	m.dirty = true
	m.refresh(v)
}

func (m *model) save() {
	data, err := m.editor.Export()
	if err == nil {
		err = os.WriteFile(m.path, data, 0o644)
	}
	if err != nil {
		m.message = fmt.Sprintf("save failed: %v", err)
		m.failed = true
		return
	}
	m.message = "saved " + m.path
	m.failed = false
	m.dirty = false
}

func (m model) View() string {
	var b strings.Builder

	title := "Bow-tie · " + m.path
	if m.dirty {
		title += " (modified)"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.nodes.View(),
		panelStyle.Render(m.summary()),
	))
	b.WriteString("\n")

	if m.message != "" {
		style := intactStyle
		if m.failed {
			style = breachedStyle
		}
		b.WriteString("  " + style.Render(m.message) + "\n")
	}
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

// summary renders the evaluation report and the selected node's label
func (m model) summary() string {
	v := m.editor.View()
	r := v.Report

	var b strings.Builder
	if r.TopEventID == "" {
		b.WriteString(mutedStyle.Render("No top event"))
	} else if r.TopEventBreached {
		b.WriteString(breachedStyle.Render("TOP EVENT BREACHED"))
	} else {
		b.WriteString(intactStyle.Render("Top event intact"))
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Paths\n  full     %d\n  partial  %d\n  safe     %d\n",
		r.Count(propagation.VerdictFull), r.Count(propagation.VerdictPartial), r.Count(propagation.VerdictSafe))
	if r.Truncated {
		b.WriteString(partialStyle.Render("  (truncated)") + "\n")
	}
	if len(v.Issues) > 0 {
		fmt.Fprintf(&b, "\n%d issue(s)\n", len(v.Issues))
		for _, is := range v.Issues {
			b.WriteString(mutedStyle.Render("  "+is.Message) + "\n")
		}
	}

	if n, ok := m.selected(); ok {
		b.WriteString("\n")
		b.WriteString(n.Data.Label)
		b.WriteString("\n")
	}
	return b.String()
}

func main() {
	risk := flag.Bool("risk", false, "score residual risk")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: bowtie-tui [-risk] diagram.json")
		os.Exit(2)
	}
	path := flag.Arg(0)

	ed, err := load(path, pipeline.Options{RiskScoring: *risk, MaxPathsPerThreat: 10000})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bowtie-tui: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(newModel(ed, path), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "bowtie-tui: %v\n", err)
		os.Exit(1)
	}
}

// load opens path as a diagram. A missing file starts an empty diagram.
func load(path string, opts pipeline.Options) (*editor.Editor, error) {
	ed := editor.New(bowtie.Graph{}, editor.Config{ID: path, Pipeline: opts})
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ed, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := ed.Import(data); err != nil {
		return nil, err
	}
	return ed, nil
}
