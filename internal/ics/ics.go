// Package ics converts between the internal event model and its iCalendar
// form, which is both the CalDAV storage format and the payload of
// invitation mails.
package ics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"github.com/akarlsen/kal/internal/core"
)

const productID = "-//kal//calendar//EN"

// EventCalendar renders an event as a single-VEVENT VCALENDAR. Alarms are
// included only when asked for: they belong in the stored copy, never in
// invitation payloads.
func EventCalendar(ev *core.Event, includeAlarms bool) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, ev.UID)
	ve.Props.SetText(ical.PropSummary, ev.Summary)
	ve.Props.SetText(ical.PropSequence, strconv.FormatInt(ev.Sequence, 10))
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, ev.Start)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, ev.End)
	if ev.AllDay {
		ve.Props.SetText("X-KAL-ALLDAY", "1")
	}
	if ev.Timezone != "" {
		ve.Props.SetText("X-KAL-TZ", ev.Timezone)
	}

	if ev.Location != "" {
		ve.Props.SetText(ical.PropLocation, ev.Location)
	}
	if ev.Description != "" {
		ve.Props.SetText(ical.PropDescription, ev.Description)
	}
	if ev.Confidential {
		ve.Props.SetText(ical.PropClass, "CONFIDENTIAL")
	}
	if ev.Repeat != nil && ev.Repeat.RRule != "" {
		ve.Props.SetText(ical.PropRecurrenceRule, ev.Repeat.RRule)
	}
	if ev.Organizer != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.SetText("mailto:" + ev.Organizer)
		ve.Props.Add(p)
	}
	for _, a := range ev.Attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.Params.Set("PARTSTAT", PartStat(a.Status))
		if a.Name != "" {
			p.Params.Set("CN", a.Name)
		}
		p.SetText("mailto:" + a.Address)
		ve.Props.Add(p)
	}

	if includeAlarms {
		for _, al := range ev.Alarms {
			va := ical.NewComponent("VALARM")
			va.Props.SetText("ACTION", "DISPLAY")
			va.Props.SetText("TRIGGER", FormatTrigger(al.Trigger))
			ve.Children = append(ve.Children, va)
		}
	}

	cal.Children = append(cal.Children, ve)
	return cal
}

// DecodeEvent reads the first VEVENT of a calendar object back into the
// internal model.
func DecodeEvent(cal *ical.Calendar, calendarID string) (*core.Event, error) {
	events := cal.Events()
	if len(events) == 0 {
		return nil, fmt.Errorf("calendar object has no VEVENT")
	}
	ve := events[0]

	ev := &core.Event{CalendarID: calendarID}
	ev.UID, _ = ve.Props.Text(ical.PropUID)
	ev.Summary, _ = ve.Props.Text(ical.PropSummary)
	ev.Location, _ = ve.Props.Text(ical.PropLocation)
	ev.Description, _ = ve.Props.Text(ical.PropDescription)

	if v, _ := ve.Props.Text("X-KAL-ALLDAY"); v == "1" {
		ev.AllDay = true
	}
	ev.Timezone, _ = ve.Props.Text("X-KAL-TZ")
	loc := ev.Zone()

	start, err := ve.DateTimeStart(loc)
	if err != nil {
		return nil, fmt.Errorf("parse DTSTART: %w", err)
	}
	end, err := ve.DateTimeEnd(loc)
	if err != nil {
		return nil, fmt.Errorf("parse DTEND: %w", err)
	}
	ev.Start, ev.End = start, end

	if v, _ := ve.Props.Text(ical.PropSequence); v != "" {
		ev.Sequence, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, _ := ve.Props.Text(ical.PropClass); v == "CONFIDENTIAL" {
		ev.Confidential = true
	}

	if p := ve.Props.Get(ical.PropOrganizer); p != nil {
		ev.Organizer = strings.TrimPrefix(p.Value, "mailto:")
	}
	for _, p := range ve.Props.Values(ical.PropAttendee) {
		a := core.Attendee{
			Address: strings.TrimPrefix(p.Value, "mailto:"),
			Name:    p.Params.Get("CN"),
			Status:  statusFromPartStat(p.Params.Get("PARTSTAT")),
		}
		ev.Attendees = append(ev.Attendees, a)
	}

	if v, _ := ve.Props.Text(ical.PropRecurrenceRule); v != "" {
		rule, err := DecodeRepeatRule(v, loc, ev.AllDay)
		if err != nil {
			return nil, fmt.Errorf("parse RRULE: %w", err)
		}
		ev.Repeat = rule
	}

	for _, child := range ve.Children {
		if child.Name != "VALARM" {
			continue
		}
		if v, _ := child.Props.Text("TRIGGER"); v != "" {
			if d, err := ParseTrigger(v); err == nil {
				ev.Alarms = append(ev.Alarms, core.Alarm{Trigger: d})
			}
		}
	}

	return ev, nil
}

// DecodeRepeatRule maps RRULE text back to the stored rule shape. RRULE
// UNTIL is inclusive while the internal boundary is exclusive, so the
// boundary comes back as UNTIL plus the second the encoder subtracted.
// All-day boundaries are re-anchored to UTC, timed ones to the event zone.
func DecodeRepeatRule(text string, loc *time.Location, allDay bool) (*core.RepeatRule, error) {
	opt, err := rrule.StrToROption(text)
	if err != nil {
		return nil, err
	}

	rule := &core.RepeatRule{
		Interval: opt.Interval,
		RRule:    text,
		Timezone: loc.String(),
	}
	if rule.Interval < 1 {
		rule.Interval = 1
	}
	switch opt.Freq {
	case rrule.WEEKLY:
		rule.Frequency = core.FreqWeekly
	case rrule.MONTHLY:
		rule.Frequency = core.FreqMonthly
	case rrule.YEARLY:
		rule.Frequency = core.FreqAnnually
	default:
		rule.Frequency = core.FreqDaily
	}

	switch {
	case opt.Count > 0:
		rule.End = core.EndCount
		rule.Count = int64(opt.Count)
	case !opt.Until.IsZero():
		rule.End = core.EndUntilDate
		boundary := opt.Until.Add(time.Second)
		if allDay {
			rule.Until = boundary.UTC()
			rule.Timezone = "UTC"
		} else {
			rule.Until = boundary.In(loc)
		}
	default:
		rule.End = core.EndNever
	}
	return rule, nil
}

// PartStat maps an attendee status to its iCalendar PARTSTAT value.
func PartStat(status core.AttendeeStatus) string {
	switch status {
	case core.StatusAccepted:
		return "ACCEPTED"
	case core.StatusDeclined:
		return "DECLINED"
	case core.StatusTentative:
		return "TENTATIVE"
	default:
		return "NEEDS-ACTION"
	}
}

func statusFromPartStat(v string) core.AttendeeStatus {
	switch strings.ToUpper(v) {
	case "ACCEPTED":
		return core.StatusAccepted
	case "DECLINED":
		return core.StatusDeclined
	case "TENTATIVE":
		return core.StatusTentative
	default:
		return core.StatusNeedsAction
	}
}

// FormatTrigger renders an alarm offset as a negative ISO 8601 duration,
// e.g. 15m before start becomes "-PT15M".
func FormatTrigger(before time.Duration) string {
	if before < 0 {
		before = -before
	}
	minutes := int64(before / time.Minute)
	days := minutes / (24 * 60)
	minutes -= days * 24 * 60
	hours := minutes / 60
	minutes -= hours * 60

	var b strings.Builder
	b.WriteString("-P")
	if days > 0 {
		fmt.Fprintf(&b, "%dD", days)
	}
	if hours > 0 || minutes > 0 || days == 0 {
		b.WriteString("T")
		if hours > 0 {
			fmt.Fprintf(&b, "%dH", hours)
		}
		fmt.Fprintf(&b, "%dM", minutes)
	}
	return b.String()
}

// ParseTrigger reads the duration forms FormatTrigger produces, plus the
// common variants servers send (PT1H30M, -P1DT2H, PT0S).
func ParseTrigger(s string) (time.Duration, error) {
	orig := s
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "-")
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("invalid trigger duration %q", orig)
	}
	s = s[1:]

	var total time.Duration
	inTime := false
	num := ""
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'T':
			inTime = true
		case r == 'W' || r == 'D' || r == 'H' || r == 'M' || r == 'S':
			if num == "" {
				return 0, fmt.Errorf("invalid trigger duration %q", orig)
			}
			n, err := strconv.Atoi(num)
			if err != nil {
				return 0, fmt.Errorf("invalid trigger duration %q", orig)
			}
			num = ""
			switch r {
			case 'W':
				total += time.Duration(n) * 7 * 24 * time.Hour
			case 'D':
				total += time.Duration(n) * 24 * time.Hour
			case 'H':
				total += time.Duration(n) * time.Hour
			case 'M':
				if inTime {
					total += time.Duration(n) * time.Minute
				} else {
					// months are not meaningful for alarm offsets
					return 0, fmt.Errorf("unsupported month in trigger %q", orig)
				}
			case 'S':
				total += time.Duration(n) * time.Second
			}
		default:
			return 0, fmt.Errorf("invalid trigger duration %q", orig)
		}
	}
	if num != "" {
		return 0, fmt.Errorf("invalid trigger duration %q", orig)
	}
	return total, nil
}
