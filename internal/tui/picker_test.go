// Package tui provides the interactive pickers for the mpykit CLI.
package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

// keys feeds a sequence of key messages to the model and returns the
// final state.
func keys(m pickerModel, presses ...string) pickerModel {
	for _, k := range presses {
		var msg tea.Msg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(pickerModel)
	}
	return m
}

func testItems() []Item {
	return []Item{
		{Label: "blinky", Description: "/ws/blinky"},
		{Label: "sensor-node", Description: "/ws/sensor"},
		{Label: "display", Description: "/ws/display"},
	}
}

// TestPickerSelection verifies cursor movement and enter selection.
func TestPickerSelection(t *testing.T) {
	m := keys(newPickerModel("Select a project", testItems()), "down", "down", "enter")
	if m.aborted {
		t.Fatal("selection reported as aborted")
	}
	if m.choice != 2 {
		t.Errorf("choice = %d, want 2", m.choice)
	}
}

// TestPickerCursorBounds verifies the cursor stays inside the list.
func TestPickerCursorBounds(t *testing.T) {
	m := keys(newPickerModel("x", testItems()), "up", "up")
	if m.cursor != 0 {
		t.Errorf("cursor = %d after up at top, want 0", m.cursor)
	}

	m = keys(m, "down", "down", "down", "down")
	if m.cursor != 2 {
		t.Errorf("cursor = %d after down at bottom, want 2", m.cursor)
	}
}

// TestPickerFilter verifies that typing narrows the list and selection
// maps back to the original index.
func TestPickerFilter(t *testing.T) {
	m := keys(newPickerModel("x", testItems()), "s", "e", "n", "s")
	if len(m.filtered) != 1 {
		t.Fatalf("filtered = %v, want one match", m.filtered)
	}

	m = keys(m, "enter")
	if m.choice != 1 {
		t.Errorf("choice = %d, want original index 1", m.choice)
	}
}

// TestPickerFilterMatchesDescription verifies filtering against the
// description text.
func TestPickerFilterMatchesDescription(t *testing.T) {
	m := keys(newPickerModel("x", testItems()), "/", "w", "s", "/", "d")
	if len(m.filtered) != 1 || m.filtered[0] != 2 {
		t.Errorf("filtered = %v, want [2]", m.filtered)
	}
}

// TestPickerAbort verifies escape abandons the selection.
func TestPickerAbort(t *testing.T) {
	m := keys(newPickerModel("x", testItems()), "esc")
	if !m.aborted {
		t.Error("esc did not abort")
	}
	if m.choice != -1 {
		t.Errorf("choice = %d, want -1", m.choice)
	}
}

// TestPickerViewShowsNoMatches verifies the empty-filter rendering.
func TestPickerViewShowsNoMatches(t *testing.T) {
	m := keys(newPickerModel("x", testItems()), "z", "z", "z")
	if !strings.Contains(m.View(), "no matches") {
		t.Error("View() missing the no-matches hint")
	}
}
