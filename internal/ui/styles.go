// Package ui provides terminal output helpers for the mpykit CLI.
//
// This package contains the lipgloss styling and the small set of
// message and prompt primitives every command shares.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Brand colors.
var (
	// Primary accent - MicroPython teal
	Teal = lipgloss.Color("#14B8A6")

	// Secondary colors
	Red     = lipgloss.Color("#EF4444")
	Amber   = lipgloss.Color("#F59E0B")
	Green   = lipgloss.Color("#22C55E")
	Gray    = lipgloss.Color("#6B7280")
	DimGray = lipgloss.Color("#9CA3AF")
)

// Text styles.
var (
	// TitleStyle for headings
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Teal)

	// SuccessStyle for success messages
	SuccessStyle = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	// ErrorStyle for error messages
	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	// WarningStyle for warning messages
	WarningStyle = lipgloss.NewStyle().
			Foreground(Amber)

	// InfoStyle for informational messages
	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5E7EB"))

	// DimStyle for less important text
	DimStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	// AccentStyle for highlighted fragments (ports, paths, numbers)
	AccentStyle = lipgloss.NewStyle().
			Foreground(Teal)

	// OutputStyle for verbatim mpytool output lines
	OutputStyle = lipgloss.NewStyle()
)
