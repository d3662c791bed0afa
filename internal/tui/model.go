// Package tui is the full-screen control surface: playlist navigation on
// the left, transport status on the right, modal overlays for help and
// device details.
package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"dlnacast.app/dlnacast/internal/domain"
	"dlnacast.app/dlnacast/internal/playlist"
	"dlnacast.app/dlnacast/internal/session"
)

type overlay int

const (
	overlayNone overlay = iota
	overlayHelp
	overlayDevice
)

type snapshotMsg session.Snapshot

type sessionDoneMsg struct{}

type model struct {
	controller *session.Controller
	render     domain.Render
	entries    []playlist.Entry

	snap    session.Snapshot
	cursor  int
	overlay overlay
	width   int
	height  int
}

// Run takes over the terminal until the session ends or the user quits.
func Run(ctx context.Context, controller *session.Controller, render domain.Render, entries []playlist.Entry) error {
	m := model{
		controller: controller,
		render:     render,
		entries:    entries,
	}
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd {
	return m.waitForSnapshot()
}

func (m model) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.controller.Snapshots()
		if !ok {
			return sessionDoneMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case snapshotMsg:
		m.snap = session.Snapshot(msg)
		if m.snap.State.Terminal() {
			return m, tea.Quit
		}
		return m, m.waitForSnapshot()

	case sessionDoneMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Any key dismisses an open overlay.
	if m.overlay != overlayNone {
		m.overlay = overlayNone
		return m, nil
	}

	switch key {
	case "j", "down":
		if m.cursor+1 < len(m.entries) {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "enter":
		m.controller.Send(session.Command{Kind: session.CmdSelectEntry, Index: m.cursor})
	case " ", "p":
		m.controller.Send(session.Command{Kind: session.CmdTogglePlayPause})
	case "n":
		m.controller.Send(session.Command{Kind: session.CmdNext})
	case "N", "b":
		m.controller.Send(session.Command{Kind: session.CmdPrevious})
	case "s":
		m.controller.Send(session.Command{Kind: session.CmdStop})
	case "l":
		m.controller.Send(session.Command{Kind: session.CmdToggleLoop})
	case "r":
		m.controller.Send(session.Command{Kind: session.CmdRefreshStatus})
	case "d":
		m.overlay = overlayDevice
	case "h", "?":
		m.overlay = overlayHelp
	case "q", "esc", "ctrl+c":
		m.controller.Send(session.Command{Kind: session.CmdQuit})
		return m, tea.Quit
	}
	return m, nil
}

func entryLabel(e playlist.Entry) string {
	label := e.Name()
	if e.Subtitle != "" {
		label += " [sub]"
	}
	return label
}

func clampWidth(s string, width int) string {
	if width <= 0 || len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}

func progressBar(ratio float64, width int) string {
	if width < 4 {
		return ""
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
