// Package interactive provides the inline keyboard control surface: a
// single status line plus hotkeys, without taking over the terminal.
package interactive

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dlnacast.app/dlnacast/internal/avtransport"
	"dlnacast.app/dlnacast/internal/session"
)

var (
	stateStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

type snapshotMsg session.Snapshot

type sessionDoneMsg struct{}

type model struct {
	controller *session.Controller
	snap       session.Snapshot
	showHelp   bool
}

// Run blocks until the session ends or the user quits.
func Run(ctx context.Context, controller *session.Controller) error {
	m := model{controller: controller}
	p := tea.NewProgram(m, tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd {
	return m.waitForSnapshot()
}

// waitForSnapshot relays the controller's latest state into the tea loop.
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
	switch msg.String() {
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
	case "h", "?":
		m.showHelp = !m.showHelp
	case "q", "esc", "ctrl+c":
		m.controller.Send(session.Command{Kind: session.CmdQuit})
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(statusLine(m.snap))
	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(dimStyle.Render(helpLine()))
		b.WriteString("\n")
	}
	return b.String()
}

func statusLine(snap session.Snapshot) string {
	if snap.SessionID == "" {
		return dimStyle.Render("connecting...")
	}

	parts := []string{
		stateStyle.Render(strings.ToUpper(string(snap.State))),
		fmt.Sprintf("[%d/%d] %s", snap.EntryIndex+1, snap.EntryCount, snap.EntryName),
	}
	if snap.Duration > 0 {
		parts = append(parts, fmt.Sprintf("%s / %s",
			avtransport.FormatClock(snap.Elapsed), avtransport.FormatClock(snap.Duration)))
	}
	if snap.Loop {
		parts = append(parts, dimStyle.Render("loop"))
	}
	if snap.Message != "" {
		parts = append(parts, dimStyle.Render(snap.Message))
	}
	return strings.Join(parts, "  ")
}

func helpLine() string {
	return "space/p play-pause  n next  N prev  s stop  l loop  r refresh  q quit"
}
