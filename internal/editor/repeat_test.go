package editor

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/akarlsen/kal/internal/core"
)

func TestBuildRepeatRuleInterval(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		interval int
		want     int
	}{
		{name: "zero defaults to 1", interval: 0, want: 1},
		{name: "negative defaults to 1", interval: -3, want: 1},
		{name: "positive kept", interval: 2, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rule, err := BuildRepeatRule(RepeatConfig{Frequency: core.FreqDaily, Interval: tt.interval}, start, time.UTC, false)
			if err != nil {
				t.Fatalf("BuildRepeatRule() error = %v", err)
			}
			if rule.Interval != tt.want {
				t.Errorf("Interval = %d, want %d", rule.Interval, tt.want)
			}
		})
	}
}

func TestBuildRepeatRuleCountDegradesToNever(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	for _, count := range []int64{0, -5} {
		rule, err := BuildRepeatRule(RepeatConfig{
			Frequency: core.FreqWeekly,
			End:       core.EndCount,
			Count:     count,
		}, start, time.UTC, false)
		if err != nil {
			t.Fatalf("BuildRepeatRule(count=%d) error = %v", count, err)
		}
		if rule.End != core.EndNever {
			t.Errorf("End = %v, want EndNever for count %d", rule.End, count)
		}
		if strings.Contains(rule.RRule, "COUNT") {
			t.Errorf("RRULE %q should not carry COUNT for count %d", rule.RRule, count)
		}
	}
}

func TestBuildRepeatRuleUntilTimed(t *testing.T) {
	t.Parallel()

	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2024, 4, 1, 9, 0, 0, 0, berlin)

	rule, err := BuildRepeatRule(RepeatConfig{
		Frequency: core.FreqDaily,
		End:       core.EndUntilDate,
		UntilDate: time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC),
	}, start, berlin, false)
	if err != nil {
		t.Fatalf("BuildRepeatRule() error = %v", err)
	}

	// Exclusive boundary: midnight in the event zone of the day after the
	// chosen date.
	want := time.Date(2024, 4, 11, 0, 0, 0, 0, berlin)
	if !rule.Until.Equal(want) {
		t.Errorf("Until = %v, want %v", rule.Until, want)
	}
	if rule.Timezone != "Europe/Berlin" {
		t.Errorf("Timezone = %s, want Europe/Berlin", rule.Timezone)
	}
	if !strings.Contains(rule.RRule, "UNTIL=") {
		t.Errorf("RRULE %q missing UNTIL", rule.RRule)
	}
}

func TestBuildRepeatRuleUntilAllDay(t *testing.T) {
	t.Parallel()

	// For all-day events the boundary is a UTC calendar date regardless of
	// the event zone: choosing 2024-04-01 yields 2024-04-02T00:00Z.
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2024, 3, 25, 0, 0, 0, 0, tokyo)

	rule, err := BuildRepeatRule(RepeatConfig{
		Frequency: core.FreqDaily,
		End:       core.EndUntilDate,
		UntilDate: time.Date(2024, 4, 1, 0, 0, 0, 0, tokyo),
	}, start, tokyo, true)
	if err != nil {
		t.Fatalf("BuildRepeatRule() error = %v", err)
	}

	want := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	if !rule.Until.Equal(want) {
		t.Errorf("Until = %v, want %v", rule.Until, want)
	}
	if rule.Timezone != "UTC" {
		t.Errorf("Timezone = %s, want UTC", rule.Timezone)
	}
}

func TestBuildRepeatRuleEndBeforeStart(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)

	_, err := BuildRepeatRule(RepeatConfig{
		Frequency: core.FreqDaily,
		End:       core.EndUntilDate,
		UntilDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}, start, time.UTC, false)
	if !errors.Is(err, ErrRepeatEndBeforeStart) {
		t.Errorf("error = %v, want ErrRepeatEndBeforeStart", err)
	}

	// Same calendar date as the start is fine: the boundary is the next
	// midnight, which is after the start.
	_, err = BuildRepeatRule(RepeatConfig{
		Frequency: core.FreqDaily,
		End:       core.EndUntilDate,
		UntilDate: time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC),
	}, start, time.UTC, false)
	if err != nil {
		t.Errorf("same-day until: error = %v, want nil", err)
	}
}
