// Package tui contains the interactive dialogs: the event editor and the
// invitation response picker.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/akarlsen/kal/internal/core"
	"github.com/akarlsen/kal/internal/editor"
)

// EditorKeyMap defines the keybindings for the edit dialog.
type EditorKeyMap struct {
	Next         key.Binding
	Prev         key.Binding
	Save         key.Binding
	ToggleAllDay key.Binding
	ToggleClass  key.Binding
	Remove       key.Binding
	Accept       key.Binding
	Decline      key.Binding
	Tentative    key.Binding
	Quit         key.Binding
}

var DefaultEditorKeyMap = EditorKeyMap{
	Next: key.NewBinding(
		key.WithKeys("tab", "down"),
		key.WithHelp("tab", "next field"),
	),
	Prev: key.NewBinding(
		key.WithKeys("shift+tab", "up"),
		key.WithHelp("shift+tab", "prev field"),
	),
	Save: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("ctrl+s", "save"),
	),
	ToggleAllDay: key.NewBinding(
		key.WithKeys("ctrl+a"),
		key.WithHelp("ctrl+a", "all day"),
	),
	ToggleClass: key.NewBinding(
		key.WithKeys("ctrl+x"),
		key.WithHelp("ctrl+x", "confidential"),
	),
	Remove: key.NewBinding(
		key.WithKeys("x", "delete"),
		key.WithHelp("x", "remove guest"),
	),
	Accept: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "accept"),
	),
	Decline: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "decline"),
	),
	Tentative: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "tentative"),
	),
	Quit: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "discard"),
	),
}

// Text field indices. Fields come first in the focus order, attendee rows
// follow.
const (
	fieldSummary = iota
	fieldLocation
	fieldDescription
	fieldStart
	fieldEnd
	fieldAttendee
	fieldRepeat
	fieldInterval
	fieldEnds
	fieldCount

	numFields
)

const timeLayout = "2006-01-02 15:04"

// editorMode tracks which screen of the dialog is active.
type editorMode int

const (
	modeEdit editorMode = iota
	modeConfirm
	modeDone
)

// savedMsg carries the result of an asynchronous save.
type savedMsg struct {
	outcome editor.Outcome
	err     error
}

// EditorModel is the Bubble Tea model for the event edit dialog.
type EditorModel struct {
	ed     *editor.Editor
	inputs []textinput.Model
	focus  int
	keys   EditorKeyMap
	width  int

	mode       editorMode
	sendUpdate bool
	saving     bool
	err        error
	warnings   []string
}

// NewEditorModel builds the dialog around an editor session. Input fields
// for content the role cannot change start out locked.
func NewEditorModel(ed *editor.Editor) EditorModel {
	draft := ed.Draft()

	inputs := make([]textinput.Model, numFields)
	for i := range inputs {
		inputs[i] = textinput.New()
		inputs[i].Prompt = ""
		inputs[i].CharLimit = 256
	}

	inputs[fieldSummary].SetValue(draft.Summary)
	inputs[fieldLocation].SetValue(draft.Location)
	inputs[fieldDescription].SetValue(draft.Description)
	inputs[fieldStart].SetValue(draft.Start.In(draft.Zone()).Format(timeLayout))
	inputs[fieldEnd].SetValue(draft.End.In(draft.Zone()).Format(timeLayout))
	inputs[fieldAttendee].Placeholder = "guest@example.org"

	if cfg := ed.Repeat(); cfg != nil {
		inputs[fieldRepeat].SetValue(frequencyName(cfg.Frequency))
		inputs[fieldInterval].SetValue(strconv.Itoa(cfg.Interval))
		if cfg.End == core.EndUntilDate {
			inputs[fieldEnds].SetValue(cfg.UntilDate.Format("2006-01-02"))
		}
		if cfg.End == core.EndCount {
			inputs[fieldCount].SetValue(strconv.FormatInt(cfg.Count, 10))
		}
	}
	inputs[fieldRepeat].Placeholder = "daily/weekly/monthly/annually"

	m := EditorModel{
		ed:     ed,
		inputs: inputs,
		keys:   DefaultEditorKeyMap,
	}
	m.inputs[fieldSummary].Focus()
	return m
}

// Init implements tea.Model.
func (m EditorModel) Init() tea.Cmd {
	return textinput.Blink
}

// focusable returns how many rows the focus cursor can land on: the text
// fields plus one row per attendee.
func (m EditorModel) focusable() int {
	return len(m.inputs) + len(m.ed.Draft().Attendees)
}

// attendeeAt maps a focus index onto an attendee row, or -1 when a text
// field is focused.
func (m EditorModel) attendeeAt(focus int) int {
	idx := focus - len(m.inputs)
	if idx < 0 || idx >= len(m.ed.Draft().Attendees) {
		return -1
	}
	return idx
}

// Update handles messages.
func (m EditorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case savedMsg:
		m.saving = false
		if msg.err != nil {
			m.err = msg.err
			m.mode = modeEdit
			return m, nil
		}
		for _, failure := range msg.outcome.NotifyFailures {
			m.warnings = append(m.warnings, failure.Error())
		}
		if msg.outcome.Saved {
			m.mode = modeDone
			return m, tea.Quit
		}
		m.mode = modeEdit
		return m, nil

	case tea.KeyMsg:
		if m.saving {
			return m, nil
		}
		if m.mode == modeConfirm {
			return m.updateConfirm(msg)
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Save):
			return m.startSave()

		case key.Matches(msg, m.keys.ToggleAllDay):
			m.ed.SetAllDay(!m.ed.Draft().AllDay)
			return m, nil

		case key.Matches(msg, m.keys.ToggleClass):
			m.ed.SetConfidential(!m.ed.Draft().Confidential)
			return m, nil

		case key.Matches(msg, m.keys.Next):
			return m.moveFocus(1), nil

		case key.Matches(msg, m.keys.Prev):
			return m.moveFocus(-1), nil
		}

		if idx := m.attendeeAt(m.focus); idx >= 0 {
			return m.updateAttendeeRow(msg, idx)
		}

		if msg.Type == tea.KeyEnter && m.focus == fieldAttendee {
			address := strings.TrimSpace(m.inputs[fieldAttendee].Value())
			if address != "" {
				m.ed.AddAttendee(core.Attendee{Address: address})
				m.inputs[fieldAttendee].SetValue("")
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	if m.focus < len(m.inputs) {
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	}
	return m, cmd
}

// updateAttendeeRow handles keys while an attendee row is focused.
func (m EditorModel) updateAttendeeRow(msg tea.KeyMsg, idx int) (tea.Model, tea.Cmd) {
	attendee := m.ed.Draft().Attendees[idx]
	switch {
	case key.Matches(msg, m.keys.Remove):
		m.ed.RemoveAttendee(attendee.Address)
		if m.focus >= m.focusable() {
			m.focus = m.focusable() - 1
		}
	case key.Matches(msg, m.keys.Accept):
		m.ed.SetOwnStatus(core.StatusAccepted)
	case key.Matches(msg, m.keys.Decline):
		m.ed.SetOwnStatus(core.StatusDeclined)
	case key.Matches(msg, m.keys.Tentative):
		m.ed.SetOwnStatus(core.StatusTentative)
	}
	return m, nil
}

// updateConfirm handles the "send updates?" prompt.
func (m EditorModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch strings.ToLower(msg.String()) {
	case "y":
		m.sendUpdate = true
	case "n", "esc":
		m.sendUpdate = false
	default:
		return m, nil
	}
	m.saving = true
	return m, m.saveCmd()
}

func (m EditorModel) moveFocus(delta int) EditorModel {
	if m.focus < len(m.inputs) {
		m.inputs[m.focus].Blur()
	}
	m.focus = (m.focus + delta + m.focusable()) % m.focusable()
	if m.focus < len(m.inputs) {
		m.inputs[m.focus].Focus()
	}
	return m
}

// startSave commits field values to the editor and either asks about update
// notifications or saves straight away.
func (m EditorModel) startSave() (tea.Model, tea.Cmd) {
	if err := m.commitFields(); err != nil {
		m.err = err
		return m, nil
	}
	m.err = nil

	if n := m.ed.PendingUpdateCount(); n > 0 {
		m.mode = modeConfirm
		return m, nil
	}
	m.saving = true
	return m, m.saveCmd()
}

// commitFields pushes the text field values into the editor. Parse errors
// abort the save so the user can fix the field.
func (m *EditorModel) commitFields() error {
	m.ed.SetSummary(m.inputs[fieldSummary].Value())
	m.ed.SetLocation(m.inputs[fieldLocation].Value())
	m.ed.SetDescription(m.inputs[fieldDescription].Value())

	zone := m.ed.Draft().Zone()
	start, err := time.ParseInLocation(timeLayout, m.inputs[fieldStart].Value(), zone)
	if err != nil {
		return fmt.Errorf("start time must look like %q", timeLayout)
	}
	end, err := time.ParseInLocation(timeLayout, m.inputs[fieldEnd].Value(), zone)
	if err != nil {
		return fmt.Errorf("end time must look like %q", timeLayout)
	}
	m.ed.SetTimeRange(start, end)

	cfg, err := m.repeatFromFields()
	if err != nil {
		return err
	}
	m.ed.SetRepeat(cfg)
	return nil
}

// repeatFromFields parses the repeat fields. An empty frequency means the
// event does not repeat.
func (m *EditorModel) repeatFromFields() (*editor.RepeatConfig, error) {
	freqText := strings.TrimSpace(strings.ToLower(m.inputs[fieldRepeat].Value()))
	if freqText == "" {
		return nil, nil
	}

	cfg := &editor.RepeatConfig{Interval: 1}
	switch freqText {
	case "daily":
		cfg.Frequency = core.FreqDaily
	case "weekly":
		cfg.Frequency = core.FreqWeekly
	case "monthly":
		cfg.Frequency = core.FreqMonthly
	case "annually", "yearly":
		cfg.Frequency = core.FreqAnnually
	default:
		return nil, fmt.Errorf("unknown repeat frequency %q", freqText)
	}

	if v := strings.TrimSpace(m.inputs[fieldInterval].Value()); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("repeat interval must be a number")
		}
		cfg.Interval = n
	}

	untilText := strings.TrimSpace(m.inputs[fieldEnds].Value())
	countText := strings.TrimSpace(m.inputs[fieldCount].Value())
	switch {
	case untilText != "":
		d, err := time.Parse("2006-01-02", untilText)
		if err != nil {
			return nil, fmt.Errorf("repeat end date must look like 2006-01-02")
		}
		cfg.End = core.EndUntilDate
		cfg.UntilDate = d
	case countText != "":
		n, err := strconv.ParseInt(countText, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("repeat count must be a number")
		}
		cfg.End = core.EndCount
		cfg.Count = n
	default:
		cfg.End = core.EndNever
	}
	return cfg, nil
}

func (m EditorModel) saveCmd() tea.Cmd {
	send := m.sendUpdate
	return func() tea.Msg {
		outcome, err := m.ed.Save(context.Background(), editor.SaveOptions{
			ConfirmUpdates: func(int) bool { return send },
		})
		return savedMsg{outcome: outcome, err: err}
	}
}

// View renders the dialog.
func (m EditorModel) View() string {
	draft := m.ed.Draft()

	title := "Edit event"
	if draft.Summary == "" {
		title = "New event"
	}
	header := HeaderStyle.Render(title) + "  " +
		lipgloss.NewStyle().Foreground(mutedColor).Render(m.ed.Role().String())

	var lines []string
	lines = append(lines, m.renderField("Summary", fieldSummary))
	lines = append(lines, m.renderField("Location", fieldLocation))
	lines = append(lines, m.renderField("Description", fieldDescription))
	lines = append(lines, m.renderField("Starts", fieldStart))
	lines = append(lines, m.renderField("Ends", fieldEnd))
	lines = append(lines, m.renderFlag("All day", draft.AllDay))
	lines = append(lines, m.renderFlag("Confidential", draft.Confidential))
	lines = append(lines, m.renderField("Repeats", fieldRepeat))
	lines = append(lines, m.renderField("Every", fieldInterval))
	lines = append(lines, m.renderField("Until", fieldEnds))
	lines = append(lines, m.renderField("Times", fieldCount))
	lines = append(lines, "")
	lines = append(lines, LabelStyle.Render("Guests"))
	lines = append(lines, m.renderField("Add guest", fieldAttendee))
	for i, a := range draft.Attendees {
		lines = append(lines, m.renderAttendee(a, m.attendeeAt(m.focus) == i))
	}

	if m.err != nil {
		lines = append(lines, "", ErrorStyle.Render(m.err.Error()))
	}
	for _, w := range m.warnings {
		lines = append(lines, WarningStyle.Render("notification failed: "+w))
	}

	switch {
	case m.mode == modeConfirm:
		prompt := fmt.Sprintf("Send updated invitation to %d guest(s)? (y/n)", m.ed.PendingUpdateCount())
		lines = append(lines, "", PromptStyle.Render(prompt))
	case m.saving:
		lines = append(lines, "", lipgloss.NewStyle().Foreground(mutedColor).Render("Saving..."))
	case m.mode == modeDone:
		lines = append(lines, "", SavedStyle.Render("Saved ✓"))
	}

	body := strings.Join(lines, "\n")
	if m.width > 8 {
		body = ansi.Wordwrap(body, m.width-8, "")
	}

	help := HelpStyle.Render(strings.Join([]string{
		HelpKeyStyle.Render("tab") + " field",
		HelpKeyStyle.Render("ctrl+s") + " save",
		HelpKeyStyle.Render("ctrl+a") + " all day",
		HelpKeyStyle.Render("x") + " remove guest",
		HelpKeyStyle.Render("a/d/t") + " respond",
		HelpKeyStyle.Render("esc") + " discard",
	}, "  •  "))

	return AppStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, DialogStyle.Render(body), help))
}

func (m EditorModel) renderField(label string, idx int) string {
	style := LabelStyle
	if m.focus == idx {
		style = FocusedLabelStyle
	}
	return style.Render(label) + " " + m.inputs[idx].View()
}

func (m EditorModel) renderFlag(label string, on bool) string {
	mark := "[ ]"
	if on {
		mark = "[x]"
	}
	return LabelStyle.Render(label) + " " + ValueStyle.Render(mark)
}

func (m EditorModel) renderAttendee(a core.Attendee, selected bool) string {
	line := fmt.Sprintf("%s %s", statusGlyph(a.Status), a.Address)
	if a.Name != "" {
		line += " (" + a.Name + ")"
	}
	if a.External {
		line += " " + LockedStyle.Render("external")
	}
	if selected {
		return SelectedRowStyle.Render(line)
	}
	return AttendeeStyle.Render(line)
}

func statusGlyph(status core.AttendeeStatus) string {
	switch status {
	case core.StatusAccepted:
		return StatusGoingStyle.Render("✓")
	case core.StatusDeclined:
		return StatusNoStyle.Render("✗")
	case core.StatusTentative:
		return StatusMaybeStyle.Render("?")
	default:
		return LockedStyle.Render("·")
	}
}

func frequencyName(f core.RepeatFrequency) string {
	switch f {
	case core.FreqWeekly:
		return "weekly"
	case core.FreqMonthly:
		return "monthly"
	case core.FreqAnnually:
		return "annually"
	default:
		return "daily"
	}
}
