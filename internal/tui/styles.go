package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	colorPurple    = lipgloss.Color("#7D56F4")
	colorGreen     = lipgloss.Color("#04B575")
	colorRed       = lipgloss.Color("#FF4141")
	colorGray      = lipgloss.Color("#626262")
	colorLightGray = lipgloss.Color("#9e9e9e")
	colorWhite     = lipgloss.Color("#FFFFFF")
	colorBlue      = lipgloss.Color("#007BFF")

	styleFrame = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPurple).
			Padding(0, 1)

	styleTitle = lipgloss.NewStyle().
			Foreground(colorPurple).
			Bold(true).
			MarginBottom(1)

	styleStepDone = lipgloss.NewStyle().
			Foreground(colorGreen)

	styleStepCurrent = lipgloss.NewStyle().
				Foreground(colorWhite).
				Background(colorPurple).
				Padding(0, 1).
				Bold(true)

	styleStepPending = lipgloss.NewStyle().
				Foreground(colorGray)

	styleLabel = lipgloss.NewStyle().
			Foreground(colorLightGray).
			Width(22)

	styleLabelFocused = lipgloss.NewStyle().
				Foreground(colorBlue).
				Bold(true).
				Width(22)

	styleValue = lipgloss.NewStyle().
			Foreground(colorWhite)

	styleError = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	styleSuccess = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	styleHelp = lipgloss.NewStyle().
			Foreground(colorGray)

	styleToast = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	styleToastSuccess = styleToast.BorderForeground(colorGreen)
	styleToastError   = styleToast.BorderForeground(colorRed)
	styleToastInfo    = styleToast.BorderForeground(colorBlue)
)
