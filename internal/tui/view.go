package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"dlnacast.app/dlnacast/internal/avtransport"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	paneStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	playingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	faintStyle    = lipgloss.NewStyle().Faint(true)
	overlayStyle  = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			Padding(1, 2)
)

func (m model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	switch m.overlay {
	case overlayHelp:
		return m.centered(helpOverlay())
	case overlayDevice:
		return m.centered(m.deviceOverlay())
	}

	listWidth := m.width / 2
	statusWidth := m.width - listWidth - 6

	left := paneStyle.Width(listWidth).Render(m.playlistPane(listWidth))
	right := paneStyle.Width(statusWidth).Render(m.statusPane(statusWidth))

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	footer := faintStyle.Render("space play-pause  enter cast  n/N next/prev  s stop  d device  h help  q quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(" dlnacast "),
		body,
		footer,
	)
}

func (m model) playlistPane(width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Playlist"))
	b.WriteString("\n")

	for i, entry := range m.entries {
		label := clampWidth(entryLabel(entry), width-4)
		line := "  " + label
		if i == m.snap.EntryIndex {
			line = playingStyle.Render("▶ " + label)
		}
		if i == m.cursor {
			line = selectedStyle.Render("> " + label)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) statusPane(width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Status"))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Render  %s\n", clampWidth(m.render.Name, width-10))
	fmt.Fprintf(&b, "State   %s\n", strings.ToUpper(string(m.snap.State)))
	fmt.Fprintf(&b, "Entry   %d/%d\n", m.snap.EntryIndex+1, m.snap.EntryCount)
	if m.snap.Loop {
		b.WriteString("Loop    on\n")
	}

	if m.snap.Duration > 0 {
		ratio := float64(m.snap.Elapsed) / float64(m.snap.Duration)
		b.WriteString("\n")
		b.WriteString(progressBar(ratio, width-6))
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s / %s\n",
			avtransport.FormatClock(m.snap.Elapsed), avtransport.FormatClock(m.snap.Duration))
	}

	if m.snap.Message != "" {
		b.WriteString("\n")
		b.WriteString(faintStyle.Render(clampWidth(m.snap.Message, width-4)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) deviceOverlay() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Device"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Name        %s\n", m.render.Name)
	fmt.Fprintf(&b, "UDN         %s\n", m.render.UDN)
	fmt.Fprintf(&b, "Descriptor  %s\n", m.render.Location)
	fmt.Fprintf(&b, "Control     %s\n", m.render.ControlURL)
	b.WriteString("\n")
	b.WriteString(faintStyle.Render("press any key to close"))
	return overlayStyle.Render(b.String())
}

func helpOverlay() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Keys"))
	b.WriteString("\n\n")
	for _, row := range [][2]string{
		{"space, p", "toggle play/pause"},
		{"enter", "cast highlighted entry"},
		{"j/k, arrows", "move highlight"},
		{"n / N", "next / previous entry"},
		{"s", "stop playback"},
		{"l", "toggle loop"},
		{"r", "refresh status"},
		{"d", "device details"},
		{"q, esc", "quit"},
	} {
		fmt.Fprintf(&b, "%-12s %s\n", row[0], row[1])
	}
	b.WriteString("\n")
	b.WriteString(faintStyle.Render("press any key to close"))
	return overlayStyle.Render(b.String())
}

func (m model) centered(content string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
