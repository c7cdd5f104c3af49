// Package tui provides the interactive pickers for the mpykit CLI.
//
// Pickers launch only for humans in a terminal: piped output, --quiet,
// and --json all fall back to the plain numbered prompt in internal/ui.
package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Brand colors (mirrors internal/ui/styles.go).
var (
	teal    = lipgloss.Color("#14B8A6")
	dimGray = lipgloss.Color("#9CA3AF")
	white   = lipgloss.Color("#E5E7EB")
)

var (
	pickerTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(teal)
	pickerCursorStyle   = lipgloss.NewStyle().Foreground(teal)
	pickerItemStyle     = lipgloss.NewStyle().Foreground(white)
	pickerSelectedStyle = lipgloss.NewStyle().Foreground(teal).Bold(true)
	pickerDimStyle      = lipgloss.NewStyle().Foreground(dimGray)
)

// ShouldRunTUI returns true if interactive pickers should be used.
// Returns false when stdout is not a terminal, or --json/--quiet are set.
//
// Parameters:
//   - jsonOutput: whether --json was passed
//   - quiet: whether --quiet was passed
//
// Returns:
//   - bool: true if pickers may run
func ShouldRunTUI(jsonOutput, quiet bool) bool {
	if jsonOutput || quiet {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Item is one selectable entry in a picker.
type Item struct {
	// Label is the primary display text.
	Label string

	// Description is dimmed detail shown after the label.
	Description string
}

// pickerModel is the Bubble Tea model for a filterable single-select list.
type pickerModel struct {
	title    string
	items    []Item
	filtered []int
	cursor   int
	filter   textinput.Model
	choice   int
	aborted  bool
}

// newPickerModel builds the picker over the given items.
func newPickerModel(title string, items []Item) pickerModel {
	ti := textinput.New()
	ti.Placeholder = "type to filter"
	ti.Prompt = "/ "
	ti.CharLimit = 64
	ti.Focus()

	m := pickerModel{title: title, items: items, filter: ti, choice: -1}
	m.refilter()
	return m
}

// refilter recomputes the visible item indexes for the current filter.
func (m *pickerModel) refilter() {
	query := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.filtered = m.filtered[:0]
	for i, item := range m.items {
		if query == "" ||
			strings.Contains(strings.ToLower(item.Label), query) ||
			strings.Contains(strings.ToLower(item.Description), query) {
			m.filtered = append(m.filtered, i)
		}
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = 0
	}
}

// Init implements tea.Model.
func (m pickerModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "ctrl+c", "esc":
		m.aborted = true
		return m, tea.Quit
	case "up", "ctrl+k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "ctrl+j":
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
		}
		return m, nil
	case "enter":
		if m.cursor < len(m.filtered) {
			m.choice = m.filtered[m.cursor]
		}
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(keyMsg)
	m.refilter()
	return m, cmd
}

// View implements tea.Model.
func (m pickerModel) View() string {
	var b strings.Builder

	b.WriteString(pickerTitleStyle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(m.filter.View())
	b.WriteString("\n\n")

	if len(m.filtered) == 0 {
		b.WriteString(pickerDimStyle.Render("  no matches"))
		b.WriteString("\n")
	}

	for pos, idx := range m.filtered {
		item := m.items[idx]
		cursor := "  "
		label := pickerItemStyle.Render(item.Label)
		if pos == m.cursor {
			cursor = pickerCursorStyle.Render("> ")
			label = pickerSelectedStyle.Render(item.Label)
		}
		b.WriteString(cursor + label)
		if item.Description != "" {
			b.WriteString(" " + pickerDimStyle.Render(item.Description))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(pickerDimStyle.Render("enter select · esc cancel"))
	b.WriteString("\n")
	return b.String()
}

// Pick runs a single-select picker and returns the chosen item index.
//
// Parameters:
//   - title: The picker heading
//   - items: Entries to choose from
//
// Returns:
//   - int: Index into items of the selection
//   - error: When the user aborted or the terminal failed
func Pick(title string, items []Item) (int, error) {
	if len(items) == 0 {
		return -1, fmt.Errorf("nothing to select")
	}

	p := tea.NewProgram(newPickerModel(title, items))
	final, err := p.Run()
	if err != nil {
		return -1, fmt.Errorf("picker failed: %w", err)
	}

	m := final.(pickerModel)
	if m.aborted || m.choice < 0 {
		return -1, fmt.Errorf("selection cancelled")
	}
	return m.choice, nil
}
