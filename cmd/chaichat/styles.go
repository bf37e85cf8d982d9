package main

import "github.com/charmbracelet/lipgloss"

// Centralized style definitions for the terminal output.
var (
	userPrefixStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")) // green
	assistantPrefixStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")) // cyan
	titleStyle           = lipgloss.NewStyle().Bold(true)
	dimStyle             = lipgloss.NewStyle().Foreground(lipgloss.Color("8")) // gray
	selectedStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("5")) // magenta
	errorStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // red

	stepRuleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Faint(true)
)
