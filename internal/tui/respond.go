package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/akarlsen/kal/internal/core"
	"github.com/akarlsen/kal/internal/editor"
)

// RespondKeyMap defines the keybindings for the response picker.
type RespondKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Choose key.Binding
	Quit   key.Binding
}

var DefaultRespondKeyMap = RespondKeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓", "down"),
	),
	Choose: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "respond"),
	),
	Quit: key.NewBinding(
		key.WithKeys("esc", "q", "ctrl+c"),
		key.WithHelp("esc", "cancel"),
	),
}

var responseChoices = []struct {
	label  string
	status core.AttendeeStatus
}{
	{"Accept", core.StatusAccepted},
	{"Decline", core.StatusDeclined},
	{"Tentative", core.StatusTentative},
}

// respondedMsg carries the result of sending the reply.
type respondedMsg struct {
	outcome editor.Outcome
	err     error
}

// RespondModel is the Bubble Tea model for answering an invitation.
type RespondModel struct {
	logger   *slog.Logger
	store    core.Storage
	notifier editor.Notifier
	target   core.Calendar
	event    *core.Event
	address  string

	keys     RespondKeyMap
	cursor   int
	sending  bool
	done     bool
	err      error
	warnings []string
}

// NewRespondModel builds the picker for one invitation. address is the
// user's own address on the guest list; target is the calendar the event is
// filed into when it is not stored yet.
func NewRespondModel(logger *slog.Logger, store core.Storage, notifier editor.Notifier, target core.Calendar, ev *core.Event, address string) RespondModel {
	return RespondModel{
		logger:   logger,
		store:    store,
		notifier: notifier,
		target:   target,
		event:    ev,
		address:  address,
		keys:     DefaultRespondKeyMap,
	}
}

// Init implements tea.Model.
func (m RespondModel) Init() tea.Cmd { return nil }

// Update handles messages.
func (m RespondModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case respondedMsg:
		m.sending = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		for _, failure := range msg.outcome.NotifyFailures {
			m.warnings = append(m.warnings, failure.Error())
		}
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		if m.sending {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(responseChoices)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Choose):
			m.sending = true
			m.err = nil
			return m, m.respondCmd(responseChoices[m.cursor].status)
		}
	}
	return m, nil
}

func (m RespondModel) respondCmd(decision core.AttendeeStatus) tea.Cmd {
	return func() tea.Msg {
		_, outcome, err := editor.RespondToInvitation(
			context.Background(), m.logger, m.store, m.notifier,
			m.target, m.event, m.address, decision,
		)
		return respondedMsg{outcome: outcome, err: err}
	}
}

// View renders the picker.
func (m RespondModel) View() string {
	header := HeaderStyle.Render("Respond to invitation")

	var lines []string
	lines = append(lines, ValueStyle.Render(m.event.Summary))
	if m.event.Organizer != "" {
		lines = append(lines, LabelStyle.Render("From")+" "+ValueStyle.Render(m.event.Organizer))
	}
	lines = append(lines, LabelStyle.Render("When")+" "+ValueStyle.Render(formatEventTime(m.event)))
	lines = append(lines, "")

	for i, choice := range responseChoices {
		line := "  " + choice.label
		if i == m.cursor {
			line = SelectedRowStyle.Render("> " + choice.label)
		}
		lines = append(lines, line)
	}

	switch {
	case m.err != nil:
		lines = append(lines, "", ErrorStyle.Render(m.err.Error()))
	case m.sending:
		lines = append(lines, "", lipgloss.NewStyle().Foreground(mutedColor).Render("Sending reply..."))
	case m.done:
		lines = append(lines, "", SavedStyle.Render("Reply sent ✓"))
	}
	for _, w := range m.warnings {
		lines = append(lines, WarningStyle.Render("notification failed: "+w))
	}

	help := HelpStyle.Render(strings.Join([]string{
		HelpKeyStyle.Render("↑/↓") + " choose",
		HelpKeyStyle.Render("enter") + " respond",
		HelpKeyStyle.Render("esc") + " cancel",
	}, "  •  "))

	body := strings.Join(lines, "\n")
	return AppStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, DialogStyle.Render(body), help))
}

func formatEventTime(ev *core.Event) string {
	start := ev.Start.In(ev.Zone())
	if ev.AllDay {
		return start.Format("Mon, Jan 2") + " (all day)"
	}
	end := ev.End.In(ev.Zone())
	if start.Day() == end.Day() {
		return fmt.Sprintf("%s, %s - %s",
			start.Format("Mon, Jan 2"),
			start.Format("15:04"),
			end.Format("15:04"))
	}
	return fmt.Sprintf("%s - %s",
		start.Format("Mon, Jan 2 15:04"),
		end.Format("Mon, Jan 2 15:04"))
}
