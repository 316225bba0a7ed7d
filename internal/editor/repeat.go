package editor

import (
	"time"

	"github.com/teambition/rrule-go"

	"github.com/akarlsen/kal/internal/core"
)

// RepeatConfig is the user-facing repeat configuration from the edit dialog,
// before it is turned into a persisted rule.
type RepeatConfig struct {
	Frequency core.RepeatFrequency
	// Interval between occurrences; anything below 1 defaults to 1
	Interval int
	End      core.RepeatEnd
	// Occurrence count when End == EndCount
	Count int64
	// Calendar date (only year/month/day are read) when End == EndUntilDate
	UntilDate time.Time
}

// BuildRepeatRule converts the dialog configuration into a persisted rule.
//
// Invalid occurrence counts (below 1) degrade silently to a never-ending
// rule; this mirrors how the edit dialog treats unparseable count input and
// must not become an error.
//
// For "until date" the stored boundary is exclusive: midnight of the day
// after the chosen date. Timed events compute it in the event's zone;
// all-day events store it as a UTC calendar date so the boundary survives
// zone offsets on either side of UTC midnight. A boundary that is not
// strictly after the event's resolved start fails with
// ErrRepeatEndBeforeStart and nothing is persisted.
func BuildRepeatRule(cfg RepeatConfig, start time.Time, zone *time.Location, allDay bool) (*core.RepeatRule, error) {
	if zone == nil {
		zone = time.UTC
	}

	interval := cfg.Interval
	if interval < 1 {
		interval = 1
	}

	rule := &core.RepeatRule{
		Frequency: cfg.Frequency,
		Interval:  interval,
		End:       cfg.End,
		Timezone:  zone.String(),
	}

	switch cfg.End {
	case core.EndCount:
		if cfg.Count < 1 {
			rule.End = core.EndNever
		} else {
			rule.Count = cfg.Count
		}

	case core.EndUntilDate:
		y, m, d := cfg.UntilDate.Date()
		var until, ruleStart time.Time
		if allDay {
			until = time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
			sy, sm, sd := start.In(zone).Date()
			ruleStart = time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
			rule.Timezone = "UTC"
		} else {
			until = time.Date(y, m, d+1, 0, 0, 0, 0, zone)
			ruleStart = start.In(zone)
		}
		if !until.After(ruleStart) {
			return nil, ErrRepeatEndBeforeStart
		}
		rule.Until = until
	}

	rule.RRule = rruleString(rule, start)
	return rule, nil
}

// rruleString derives the canonical RRULE text carried in iCalendar payloads
// and CalDAV objects. An empty string means the rule could not be expressed,
// which only happens for inputs the builder already rejected.
func rruleString(rule *core.RepeatRule, start time.Time) string {
	opt := rrule.ROption{
		Freq:     rruleFreq(rule.Frequency),
		Interval: rule.Interval,
		Dtstart:  start,
	}
	switch rule.End {
	case core.EndCount:
		opt.Count = int(rule.Count)
	case core.EndUntilDate:
		// RRULE UNTIL is inclusive; the stored boundary is exclusive.
		opt.Until = rule.Until.Add(-time.Second).UTC()
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return ""
	}
	return r.String()
}

func rruleFreq(f core.RepeatFrequency) rrule.Frequency {
	switch f {
	case core.FreqWeekly:
		return rrule.WEEKLY
	case core.FreqMonthly:
		return rrule.MONTHLY
	case core.FreqAnnually:
		return rrule.YEARLY
	default:
		return rrule.DAILY
	}
}
