package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorSuccess = lipgloss.Color("#00D787")
	colorError   = lipgloss.Color("#FF5F87")
	colorWarning = lipgloss.Color("#FFAF00")
	colorInfo    = lipgloss.Color("#5FAFFF")
	colorMuted   = lipgloss.Color("#888888")
)

var (
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleError   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	styleInfo    = lipgloss.NewStyle().Foreground(colorInfo)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	styleTitle   = lipgloss.NewStyle().Foreground(colorInfo).Bold(true)
)

func printSuccess(format string, a ...interface{}) {
	fmt.Println(styleSuccess.Render("✓ " + fmt.Sprintf(format, a...)))
}

func printWarning(format string, a ...interface{}) {
	fmt.Println(styleWarning.Render("! " + fmt.Sprintf(format, a...)))
}

func printInfo(format string, a ...interface{}) {
	fmt.Println(styleInfo.Render(fmt.Sprintf(format, a...)))
}
